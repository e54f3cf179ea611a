package domain

import "errors"

var (
	// ErrValidation covers missing or malformed input the user can correct.
	ErrValidation = errors.New("validation failed")
	// ErrConflict covers duplicate identities and duplicate room names.
	ErrConflict = errors.New("already exists")
	// ErrUnauthorized covers bad credentials and wrong room passwords.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound covers unknown rooms, archive entries and files.
	ErrNotFound = errors.New("not found")
	// ErrBackend covers persistence and storage failures.
	ErrBackend = errors.New("backend failure")
	// ErrStateInconsistency marks an event the room state machine ignores.
	ErrStateInconsistency = errors.New("state inconsistency")
)

// ErrorCode returns a stable machine code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStateInconsistency):
		return "ignored"
	default:
		return "backend"
	}
}

// PublicMessage returns the text a client may see for err.
// Backend failures never leak their cause.
func PublicMessage(err error) string {
	switch ErrorCode(err) {
	case "":
		return ""
	case "backend":
		return "something went wrong, try again"
	default:
		return err.Error()
	}
}
