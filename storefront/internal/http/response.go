package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/rx_cart/storefront/internal/checkout"
	"github.com/fjod/rx_cart/storefront/internal/repository"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{checkout.ErrGatewayUnavailable, http.StatusServiceUnavailable, "payment_unavailable"},
	{checkout.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{checkout.ErrTotalMismatch, http.StatusConflict, "total_mismatch"},
	{checkout.ErrPaymentNotCompleted, http.StatusPaymentRequired, "payment_not_completed"},
	{checkout.ErrPaymentNotVerified, http.StatusBadRequest, "payment_not_verified"},
	{checkout.ErrStatusLogFailed, http.StatusBadGateway, "status_log_failed"},
	{checkout.ErrOrderNotStored, http.StatusInternalServerError, "order_not_stored"},
	{checkout.ErrAttemptNotFound, http.StatusNotFound, "attempt_not_found"},
	{checkout.ErrAttemptResolved, http.StatusConflict, "attempt_resolved"},
	{checkout.ErrAttemptCanceled, http.StatusGone, "attempt_canceled"},
	{checkout.ErrPaymentInProgress, http.StatusConflict, "payment_in_progress"},
	{repository.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{session.ErrInvalidID, http.StatusBadRequest, "invalid_session"},
}

// handleError answers with the user-facing message of the first known error in
// err's chain. Unknown errors become a generic 500.
func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.Error("request failed", zap.Error(err))
			}
			respondError(w, m.status, m.code, m.err.Error())
			return
		}
	}
	logger.Error("unexpected error", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
