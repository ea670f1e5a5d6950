package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/canteen/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Cart       *CartHandler
	Orders     *OrdersHandler
	Canteen    *CanteenHandler
	Complaints *ComplaintsHandler
}

// NewRouter mounts the API under /api/v1. Everything except /health requires X-User-ID.
func NewRouter(h Handlers, log zerolog.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.HTTPMiddleware(log, UserIDFromRequest))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(IdentityMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Patch("/items/{lineID}", h.Cart.UpdateItem)
			r.Delete("/items/{lineID}", h.Cart.RemoveItem)
			r.Put("/pickup", h.Cart.SetPickup)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.CreateOrder)
			r.Get("/", h.Orders.ListOrders)
			r.Get("/active", h.Orders.ListActiveOrders)
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", h.Orders.GetOrder)
				r.Get("/timeline", h.Orders.GetTimeline)
				r.Post("/status", h.Orders.UpdateStatus)
				r.Post("/cancel", h.Orders.CancelOrder)
				r.Post("/payment", h.Orders.UpdatePayment)
				r.Get("/complaints", h.Complaints.ListOrderComplaints)
				r.Post("/complaints", h.Complaints.FileComplaint)
			})
		})

		r.Route("/canteens/{canteenID}", func(r chi.Router) {
			r.Get("/orders", h.Canteen.ListOrders)
			r.Get("/stats", h.Canteen.GetStats)
			r.Get("/promotions", h.Canteen.ListPromotions)
			r.Post("/promotions", h.Canteen.CreatePromotion)
			r.Get("/menu", h.Canteen.GetMenu)
			r.Get("/complaints", h.Complaints.ListCanteenComplaints)
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Get("/", h.Complaints.ListMyComplaints)
			r.Route("/{complaintID}", func(r chi.Router) {
				r.Get("/", h.Complaints.GetComplaint)
				r.Patch("/", h.Complaints.EditComplaint)
				r.Post("/escalate", h.Complaints.EscalateComplaint)
				r.Post("/close", h.Complaints.CloseComplaint)
			})
		})
	})

	return otelhttp.NewHandler(r, "canteen-api")
}
