package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/rogerio-castellano/stock-ledger/docs"
	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/http/handlers"
	"github.com/rogerio-castellano/stock-ledger/internal/http/rate_limiter"
	"github.com/rogerio-castellano/stock-ledger/internal/metrics"
)

// Deps are the collaborators the router wires into routes.
type Deps struct {
	Server  *handlers.Server
	Auth    *auth.Service
	Metrics *metrics.Metrics
	// Limiter throttles /login and /register per client IP.
	Limiter *rate_limiter.Limiter
	// TrustProxy rewrites RemoteAddr from forwarding headers. Off by
	// default, the limiter keys on the TCP peer.
	TrustProxy bool
	Logger     zerolog.Logger
	// Health is called by /healthz; nil always reports healthy.
	Health func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	s := d.Server
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(d.Logger, d.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler(d.Health))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}
		r.Post("/login", s.LoginHandler)
		r.Post("/register", s.RegisterHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(d.Auth))

		r.Post("/logout", s.LogoutHandler)
		r.Get("/me", s.MeHandler)
		r.Post("/users", s.CreateUserHandler)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.GetProductsHandler)
			r.Post("/", s.CreateProductHandler)
			r.Get("/search", s.FilterProductsHandler)
			r.Post("/import", s.ImportProductsHandler)
			r.Get("/{id}", s.GetProductByIDHandler)
			r.Put("/{id}", s.UpdateProductHandler)
			r.Delete("/{id}", s.DeleteProductHandler)
		})

		r.Route("/movements", func(r chi.Router) {
			r.Get("/", s.GetMovementsHandler)
			r.Post("/", s.AppendMovementHandler)
			r.Get("/export", s.ExportMovementsHandler)
			r.Delete("/{id}", s.RemoveMovementHandler)
		})

		r.Get("/dashboard", s.GetDashboardHandler)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/low-stock", s.LowStockReportHandler)
			r.Get("/usage", s.UsageReportHandler)
			r.Get("/forecast", s.ForecastReportHandler)
			r.Get("/movements", s.MovementReportHandler)
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}
}
