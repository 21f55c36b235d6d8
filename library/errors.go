package library

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the library core. Match them with errors.Is.
var (
	ErrIO               = errors.New("resource i/o failed")
	ErrFormat           = errors.New("malformed record")
	ErrDuplicateUser    = errors.New("username already exists")
	ErrAuthentication   = errors.New("invalid username or password")
	ErrBookNotFound     = errors.New("book not found")
	ErrUnknownRole      = errors.New("unknown role")
	ErrUnknownAction    = errors.New("unknown borrow action")
	ErrPermissionDenied = errors.New("permission denied")
	ErrSessionEnded     = errors.New("no active session")
)

// FormatError describes a line that could not be parsed.
type FormatError struct {
	Resource string
	Line     int
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s line %d: %s", e.Resource, e.Line, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }
