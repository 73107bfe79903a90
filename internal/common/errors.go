package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy for the extraction/validation pipeline.
var (
	// ErrProvider covers transport failures and timeouts talking to the
	// vision model. Retried with backoff, then degrades to early termination.
	ErrProvider = errors.New("vision provider error")
	// ErrMalformedResponse means no structured segment could be located in
	// the model output.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrParseFailure is the loop-level outcome after the strict re-prompt
	// also fails to parse.
	ErrParseFailure = errors.New("validation response parse failure")
	// ErrTypeCoercion scopes to a single correction op whose value cannot be
	// coerced to the field's declared type.
	ErrTypeCoercion = errors.New("type coercion failed")
	// ErrExtraction is fatal for the current page only: no text to work from.
	ErrExtraction = errors.New("text extraction failed")
	// ErrInvalidInput covers bad configuration and schema declarations.
	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
