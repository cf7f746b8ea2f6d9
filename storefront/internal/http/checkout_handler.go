package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/checkout"
	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/payment"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
	timeout      time.Duration
	logger       *zap.Logger
}

func NewCheckoutHandler(o *checkout.Orchestrator, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{orchestrator: o, timeout: timeout, logger: logger}
}

type InitiateCheckoutRequestDTO struct {
	// Total is a decimal string; empty means the current cart total.
	Total string `json:"total"`
}

type PrefillDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// CheckoutAttemptDTO has the fields the hosted checkout widget is opened with.
type CheckoutAttemptDTO struct {
	AttemptID     string     `json:"attemptId"`
	Key           string     `json:"key"`
	OrderID       string     `json:"orderId"`
	Amount        int64      `json:"amount"`
	AmountDisplay string     `json:"amountDisplay"`
	Currency      string     `json:"currency"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Prefill       PrefillDTO `json:"prefill"`
	CallbackURL   string     `json:"callbackUrl"`
}

type CheckoutCompletedDTO struct {
	Message string        `json:"message"`
	Order   *domain.Order `json:"order"`
}

func (h *CheckoutHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	var req InitiateCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	a, err := h.orchestrator.Initiate(ctx, sess, req.Total)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutAttemptDTO{
		AttemptID:     a.ID,
		Key:           a.Gateway.KeyID,
		OrderID:       a.Gateway.GatewayOrderID,
		Amount:        a.AmountMinor,
		AmountDisplay: a.Amount.StringFixed(2),
		Currency:      a.Currency,
		Name:          a.DisplayName,
		Description:   a.Description,
		Prefill: PrefillDTO{
			Name:    a.Prefill.Name,
			Email:   a.Prefill.Email,
			Contact: a.Prefill.PhoneNumber,
		},
		CallbackURL: "/api/v1/checkout/" + a.ID + "/callback",
	})
}

func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	attemptID := chi.URLParam(r, "attempt_id")
	a, err := h.orchestrator.Attempt(attemptID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if a.SessionID != sessionFromContext(r.Context()).ID {
		// do not reveal attempts of other sessions
		handleError(w, h.logger, checkout.ErrAttemptNotFound)
		return
	}

	var resp payment.Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orchestrator.Complete(ctx, attemptID, resp)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, CheckoutCompletedDTO{
		Message: "Payment successful! Your order has been placed.",
		Order:   order,
	})
}

func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attempt_id")
	a, err := h.orchestrator.Attempt(attemptID)
	if err != nil || a.SessionID != sessionFromContext(r.Context()).ID {
		handleError(w, h.logger, checkout.ErrAttemptNotFound)
		return
	}

	if err := h.orchestrator.Cancel(attemptID); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "checkout canceled"})
}
