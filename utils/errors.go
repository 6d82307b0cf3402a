package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Sentinel errors for the failure modes the API distinguishes. Lower
// layers wrap these with context via fmt.Errorf("%w: ...", ...) and
// handlers map them onto HTTP responses with FailErr.
var (
	// ErrAuthUnavailable means a session could not be established.
	ErrAuthUnavailable = errors.New("auth unavailable")
	// ErrValidation means user input was rejected before any store call.
	ErrValidation = errors.New("validation failed")
	// ErrTransferFailed means the binary payload never reached object storage.
	ErrTransferFailed = errors.New("object transfer failed")
	// ErrURLResolution means the object was stored but no retrievable URL was obtained.
	ErrURLResolution = errors.New("object url resolution failed")
	// ErrStoreRead / ErrStoreWrite surface backend failures with the backend's message.
	ErrStoreRead  = errors.New("store read failed")
	ErrStoreWrite = errors.New("store write failed")
	// ErrNotFound means the record does not exist or belongs to another user.
	ErrNotFound = errors.New("record not found")
)

// FailErr maps a taxonomy error onto the standard JSON error envelope.
// The wrapped message is passed through so the caller sees the backend's
// reason instead of a swallowed failure.
func FailErr(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Error(ctx, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, ErrNotFound):
		Error(ctx, http.StatusNotFound, 40401, err.Error())
	case errors.Is(err, ErrAuthUnavailable):
		Error(ctx, http.StatusServiceUnavailable, 50301, err.Error())
	case errors.Is(err, ErrTransferFailed):
		Error(ctx, http.StatusBadGateway, 50210, err.Error())
	case errors.Is(err, ErrURLResolution):
		Error(ctx, http.StatusBadGateway, 50211, err.Error())
	case errors.Is(err, ErrStoreRead):
		Error(ctx, http.StatusInternalServerError, 50021, err.Error())
	case errors.Is(err, ErrStoreWrite):
		Error(ctx, http.StatusInternalServerError, 50020, err.Error())
	default:
		Error(ctx, http.StatusInternalServerError, 50000, err.Error())
	}
}
