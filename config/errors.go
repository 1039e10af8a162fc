package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey matches a ConfigError for a key that is not set.
	ErrMissingKey = errors.New("config: missing key")

	// ErrEmptyValue matches a ConfigError for a key set to an empty value.
	ErrEmptyValue = errors.New("config: empty value")

	// ErrNilConfig is returned when validating a nil store.
	ErrNilConfig = errors.New("config: configuration is nil")
)

// Kind classifies a ConfigError.
type Kind int

const (
	MissingKey Kind = iota + 1
	EmptyValue
)

func (k Kind) String() string {
	switch k {
	case MissingKey:
		return "missing key"
	case EmptyValue:
		return "empty value"
	default:
		return "unknown"
	}
}

// ConfigError reports the first required key that failed validation.
type ConfigError struct {
	Kind Kind
	Key  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s is missing or has empty value, please add to the configuration (%s)", e.Key, e.Kind)
}

// Unwrap lets errors.Is match ErrMissingKey or ErrEmptyValue.
func (e *ConfigError) Unwrap() error {
	switch e.Kind {
	case MissingKey:
		return ErrMissingKey
	case EmptyValue:
		return ErrEmptyValue
	default:
		return nil
	}
}
