package flags

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredConfig is returned when a mandatory value is unset and no default applies.
	ErrMissingRequiredConfig = errors.New("missing required configuration")
	// ErrMalformedConfig is returned when a value is present but fails shape validation.
	ErrMalformedConfig = errors.New("malformed configuration")
	// ErrNoViewport is reported by metrics providers whose host has no visual surface.
	ErrNoViewport = errors.New("host has no viewport")
	// ErrInvalidPolicy is returned by NewResolver for an inconsistent resolution policy.
	ErrInvalidPolicy = errors.New("invalid resolution policy")
)

// FieldError ties a resolution failure to the environment key that caused it.
type FieldError struct {
	Key string
	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func missing(key string) error {
	return &FieldError{Key: key, Err: ErrMissingRequiredConfig}
}

func malformed(key, format string, args ...any) error {
	return &FieldError{Key: key, Err: fmt.Errorf("%w: %s", ErrMalformedConfig, fmt.Sprintf(format, args...))}
}
