package service

import (
	"errors"
	"fmt"
)

// ErrLoginRequired is returned when an OTP operation arrives for an
// account whose credentials were not verified in this session.
var ErrLoginRequired = errors.New("login required")

// ValidationError reports malformed input for one field. It is always
// recoverable: the caller renders the message and the user retries.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AsValidationError unwraps err into a *ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
