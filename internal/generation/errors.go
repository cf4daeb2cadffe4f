package generation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aura-webinar/studio/internal/completion"
)

// ErrMalformedOutput means the completion service answered but the text could
// not be turned into the expected record.
var ErrMalformedOutput = errors.New("the generated output could not be understood")

// Error is a failed generation operation with a message fit for end users.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationError is returned before any call is made when the input is incomplete.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func wrapCall(op string, err error) error {
	msg := "generation failed, please try again"
	var cerr *completion.Error
	switch {
	case errors.As(err, &cerr) && errors.Is(err, completion.ErrNoContent):
		return &Error{Op: op, Message: "the service returned no content", Err: fmt.Errorf("%w: %w", ErrMalformedOutput, err)}
	case errors.As(err, &cerr):
		msg = cerr.Message
	}
	return &Error{Op: op, Message: msg, Err: err}
}

func malformed(op string, err error) error {
	if !errors.Is(err, ErrMalformedOutput) {
		err = fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return &Error{Op: op, Message: "the generated output could not be understood, please try again", Err: err}
}

func isNoContent(err error) bool {
	return errors.Is(err, completion.ErrNoContent)
}

// HTTPStatus maps an error returned by this package to a response status and
// a message that is safe to show to users.
func HTTPStatus(err error) (int, string) {
	var verr *ValidationError
	var gerr *Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &gerr) && errors.Is(err, ErrMalformedOutput):
		return http.StatusUnprocessableEntity, gerr.Message
	case errors.As(err, &gerr):
		return http.StatusBadGateway, gerr.Message
	}
	return http.StatusInternalServerError, "generation failed, please try again"
}
