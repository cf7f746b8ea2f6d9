package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/repository"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SessionHeader carries the browser origin's session id.
const SessionHeader = "X-Session-ID"

type ctxKey int

const sessionKey ctxKey = iota

// SessionMiddleware attaches the caller's session, creating it on first use.
func SessionMiddleware(registry *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				respondError(w, http.StatusUnauthorized, "missing_session", "missing "+SessionHeader+" header")
				return
			}
			if !session.ValidID(id) {
				respondError(w, http.StatusBadRequest, "invalid_session", session.ErrInvalidID.Error())
				return
			}

			sess, err := registry.Get(r.Context(), id)
			if errors.Is(err, repository.ErrCartUnavailable) {
				respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "cart storage is unavailable, try again")
				return
			}
			if err != nil {
				respondError(w, http.StatusInternalServerError, "internal_error", "could not open session")
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey).(*session.Session)
	return sess
}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
