package core

// SessionID identifies one live network connection.
// An identity may own several sessions at once.
type SessionID string
