package http

import (
	"net/http"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/checkout"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"github.com/fjod/rx_cart/storefront/internal/tracking"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Sessions       *session.Registry
	Checkout       *checkout.Orchestrator
	Projector      *tracking.Projector
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cartHandler := NewCartHandler(timeout, logger)
	checkoutHandler := NewCheckoutHandler(d.Checkout, timeout, logger)
	ordersHandler := NewOrdersHandler(d.Projector, timeout, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(d.Sessions))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{item_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{item_id}", cartHandler.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkoutHandler.Initiate)
			r.Post("/{attempt_id}/callback", checkoutHandler.Callback)
			r.Delete("/{attempt_id}", checkoutHandler.Cancel)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/latest", ordersHandler.LatestOrder)
			r.Get("/{tracking_id}", ordersHandler.GetOrder)
			r.Get("/{tracking_id}/status", ordersHandler.GetOrderStatus)
		})

		r.Delete("/session", func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromContext(r.Context())
			if err := d.Checkout.CancelSession(sess.ID); err != nil {
				handleError(w, logger, err)
				return
			}
			d.Sessions.End(sess.ID)
			respondJSON(w, http.StatusOK, MessageResponse{Message: "session ended"})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
