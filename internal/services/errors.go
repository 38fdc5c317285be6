package services

import (
	"errors"
	"fmt"

	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
)

// Error kinds returned by EscrowService. Callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("escrow not found")
	ErrInvalidState = errors.New("invalid escrow state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation error")
	ErrNotarization = errors.New("notarization failed")
)

func invalidState(required models.EscrowStatus) error {
	return fmt.Errorf("%w: escrow is not in %s state", ErrInvalidState, required)
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotarization):
		return "notarization"
	}
	return "error"
}
