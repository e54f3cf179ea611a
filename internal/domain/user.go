// Package domain contains the chat entities, their validation and the error taxonomy.
package domain

import (
	"fmt"
	"strings"
)

const (
	MaxIdentityLen = 36
	MaxPasswordLen = 72
)

// Identity is an authenticated user handle.
type Identity string

// DefaultAdmin is the reserved identity excluded from presence listings.
const DefaultAdmin Identity = "admin"

type User struct {
	ID Identity `json:"id"`
}

// Credentials is what a client submits to register or log in.
type Credentials struct {
	ID       Identity
	Password string
}

func (c Credentials) Validate() error {
	id := strings.TrimSpace(string(c.ID))
	if id == "" || c.Password == "" {
		return fmt.Errorf("%w: id and password required", ErrValidation)
	}
	if len(id) > MaxIdentityLen {
		return fmt.Errorf("%w: id too long", ErrValidation)
	}
	if len(c.Password) > MaxPasswordLen {
		return fmt.Errorf("%w: password too long", ErrValidation)
	}
	return nil
}
