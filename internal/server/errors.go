package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/hire-intake/internal/intake"
	"github.com/spigell/hire-intake/internal/store"
)

// ErrValidation indicates request validation failure.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

var errUnauthorized = errors.New("invalid api key")

// validationError converts validator output into an *ErrValidation for the
// first failing field.
func validationError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return &ErrValidation{Field: fields[0].Field(), Message: fields[0].Tag()}
	}
	return &ErrValidation{Field: "request", Message: err.Error()}
}

// HTTPStatus returns the status code for an error.
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &validation),
		errors.Is(err, store.ErrInvalidRole),
		errors.Is(err, intake.ErrEmptyText):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
