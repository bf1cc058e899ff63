package settings

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by KeyError.
var (
	ErrMissingKey   = errors.New("settings: missing key")
	ErrWrongType    = errors.New("settings: wrong type")
	ErrInvalidValue = errors.New("settings: invalid value")
)

// KeyError names the configuration key that could not be used.
type KeyError struct {
	Key  string
	Want string // expected type or constraint
	Got  any    // offending value, nil when missing
	Err  error
}

func (e *KeyError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMissingKey):
		return fmt.Sprintf("settings: %s: required key missing (want %s)", e.Key, e.Want)
	case errors.Is(e.Err, ErrWrongType):
		return fmt.Sprintf("settings: %s: want %s, got %T (%v)", e.Key, e.Want, e.Got, e.Got)
	default:
		return fmt.Sprintf("settings: %s: invalid value %v: %s", e.Key, e.Got, e.Want)
	}
}

func (e *KeyError) Unwrap() error { return e.Err }

func missing(key, want string) error {
	return &KeyError{Key: key, Want: want, Err: ErrMissingKey}
}

func wrongType(key, want string, got any) error {
	return &KeyError{Key: key, Want: want, Got: got, Err: ErrWrongType}
}

func invalid(key, reason string, got any) error {
	return &KeyError{Key: key, Want: reason, Got: got, Err: ErrInvalidValue}
}
