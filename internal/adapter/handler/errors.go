package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/order-stock/internal/core/domain"
)

// errorClass maps an order flow error onto both transports.
func errorClass(err error) (int, codes.Code) {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrDuplicateProductOrder),
		errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, codes.InvalidArgument
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, codes.NotFound
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict, codes.FailedPrecondition
	case errors.Is(err, domain.ErrLockAcquireFailed):
		return http.StatusServiceUnavailable, codes.Unavailable
	default:
		return http.StatusInternalServerError, codes.Internal
	}
}

// publicMessage hides internal failures from clients.
func publicMessage(err error) string {
	if _, code := errorClass(err); code == codes.Internal {
		return "internal error"
	}
	return err.Error()
}
