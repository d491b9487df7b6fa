package core

import (
	"errors"
	"net/http"

	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
)

// statusFor maps manager errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kipcm.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kipcm.ErrDuplicate), errors.Is(err, kipcm.ErrFactoryInUse):
		return http.StatusConflict
	case errors.Is(err, kipcm.ErrInvalidArgument),
		errors.Is(err, kipcm.ErrInvalidSDU),
		errors.Is(err, kipcm.ErrMissingAttributes):
		return http.StatusBadRequest
	case errors.Is(err, kipcm.ErrQueueFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, kipcm.ErrUnderrun):
		return http.StatusNoContent
	default:
		return http.StatusInternalServerError
	}
}
