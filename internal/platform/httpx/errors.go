package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors handlers wrap to select a response status.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
)

// Error carries a client-facing message and matches its Kind sentinel.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is match the sentinel kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Invalid builds a validation error with a client-facing message.
func Invalid(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// NotFound builds a not-found error with a client-facing message.
func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// RespondError maps domain errors to RFC7807 responses. Unmapped errors become
// a 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	detail := err.Error()
	var herr *Error
	if errors.As(err, &herr) {
		detail = herr.Message
	}
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", detail)
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
