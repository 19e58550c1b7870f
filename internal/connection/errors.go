package connection

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Errors
var (
	ErrInvalidIdentity  = errors.New("invalid identity")
	ErrAlreadyConnected = errors.New("gateway already connected")
	ErrClosing          = errors.New("gateway is closing")
)

// Identity length bounds, in code points.
const (
	MinIdentityLength = 2
	MaxIdentityLength = 32
)

// InvalidIdentityError reports an identity outside the allowed length.
type InvalidIdentityError struct {
	Identity string
	Length   int
}

func (e *InvalidIdentityError) Error() string {
	return fmt.Sprintf("identity must be %d-%d characters long, got %d",
		MinIdentityLength, MaxIdentityLength, e.Length)
}

func (e *InvalidIdentityError) Unwrap() error { return ErrInvalidIdentity }

// ValidateIdentity checks the identity length constraint.
func ValidateIdentity(identity string) error {
	n := utf8.RuneCountInString(identity)
	if n < MinIdentityLength || n > MaxIdentityLength {
		return &InvalidIdentityError{Identity: identity, Length: n}
	}
	return nil
}

// TransportError wraps a dial, read or write failure on the socket.
type TransportError struct {
	Op  string // "dial", "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedEventError reports an inbound frame that could not be decoded.
// The frame is dropped; the session stays open.
type MalformedEventError struct {
	Op   string // envelope op, empty if the envelope itself was invalid
	Data []byte
	Err  error
}

func (e *MalformedEventError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("malformed gateway frame: %v", e.Err)
	}
	return fmt.Sprintf("malformed %s payload: %v", e.Op, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }
