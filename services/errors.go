package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error kinds. Handlers map kinds to status codes; callers never
// switch on message text.
const (
	ErrValidation   = "validation"
	ErrNotFound     = "not_found"
	ErrUnauthorized = "unauthorized"
	ErrStore        = "store"
)

// GameError is the structured failure every service operation returns.
// Store errors keep the underlying cause for the 500 body; the rest are
// caller mistakes and carry only a message.
type GameError struct {
	Kind    string
	Message string
	Cause   error
}

func (e *GameError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GameError) Unwrap() error { return e.Cause }

func validationErr(msg string) *GameError {
	return &GameError{Kind: ErrValidation, Message: msg}
}

func notFoundErr(msg string) *GameError {
	return &GameError{Kind: ErrNotFound, Message: msg}
}

func unauthorizedErr(msg string) *GameError {
	return &GameError{Kind: ErrUnauthorized, Message: msg}
}

func storeErr(msg string, cause error) *GameError {
	return &GameError{Kind: ErrStore, Message: msg, Cause: cause}
}

// asGameError passes service errors through untouched and wraps raw
// database errors as store failures, so transaction plumbing never
// leaks a bare gorm error to the handler layer.
func asGameError(err error, msg string) *GameError {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge
	}
	return storeErr(msg, err)
}

// HTTPStatus maps a service error to its response code.
func HTTPStatus(err error) int {
	var ge *GameError
	if errors.As(err, &ge) {
		switch ge.Kind {
		case ErrValidation:
			return fiber.StatusBadRequest
		case ErrNotFound:
			return fiber.StatusNotFound
		case ErrUnauthorized:
			return fiber.StatusUnauthorized
		}
	}
	return fiber.StatusInternalServerError
}
