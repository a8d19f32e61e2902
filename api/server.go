/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     zap request logging (method, path, status, duration)
  4. CORS:       Cross-origin requests for the till frontend

ROUTE GROUPS:
  /api/pos/*        Sale flow
  /api/sales/*      Sale history
  /api/inventory/*  Stock maintenance and alerts
  /api/catalog/*    Catalog import
  /api/scenarios/*  Demo scenarios
  /healthz          Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Sale flow
		r.Route("/pos", func(r chi.Router) {
			r.Post("/sale", h.ProcessSale)
			r.Post("/validate-stock", h.ValidateStock)
			r.Post("/calculate-total", h.CalculateTotal)
			r.Get("/product/{barcode}", h.GetProductByBarcode)
			r.Get("/today-sales", h.GetTodaySales)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/{id}", h.GetSale)
		})

		// Inventory routes
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/status", h.GetInventoryStatus)
			r.Get("/low-stock-alerts", h.GetLowStockAlerts)
			r.Get("/expiry-alerts", h.GetExpiryAlerts)
			r.Post("/adjust-stock", h.AdjustStock)
			r.Post("/receive", h.ReceiveStock)
			r.Put("/{id}/settings", h.UpdateStockSettings)
			r.Get("/{id}/movements", h.GetMovements)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/import", h.ImportCatalog)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs every completed request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("client_ip", r.RemoteAddr),
			)
		})
	}
}
