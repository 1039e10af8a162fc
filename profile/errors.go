package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches every ParseError.
	ErrParse = errors.New("profile: parse failed")

	// ErrResourceType is wrapped when a file's resourceType does not match
	// its name prefix.
	ErrResourceType = errors.New("unexpected resourceType")
)

// ParseError reports a definition file that could not be read or parsed.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
