// Package api exposes the HTTP surface of the shopping backend.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nikhilbhutani/fincommerce/internal/api/handlers"
	"github.com/nikhilbhutani/fincommerce/internal/api/middleware"
	"github.com/nikhilbhutani/fincommerce/internal/auth"
	"github.com/nikhilbhutani/fincommerce/internal/metrics"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

// Deps are the services behind the routes. Clients are built by the caller.
type Deps struct {
	Search    vectorstore.ProductSearcher
	Assistant handlers.Assistant
	Recorder  handlers.EventRecorder
	Feed      handlers.FeedService
	Users     handlers.UserLookup
	Usage     handlers.UsageReporter
	Pruner    handlers.PruneEnqueuer
	Checks    map[string]handlers.Check

	Registry      *prometheus.Registry
	RateLimiter   *middleware.RateLimiter
	AdminAuth     *auth.JWTMiddleware
	CORSOrigins   []string
	MaxImageBytes int64
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(d.CORSOrigins))

	health := handlers.NewHealthHandler(d.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Registry))
	}

	r.Route("/api", func(r chi.Router) {
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Limit)
		}

		searchH := handlers.NewSearchHandler(d.Search, d.Users)
		r.Get("/search", searchH.Search)

		assistantH := handlers.NewAssistantHandler(d.Assistant, d.Users, d.MaxImageBytes)
		r.Post("/search-products", assistantH.SearchProducts)

		trackH := handlers.NewTrackHandler(d.Recorder)
		r.Post("/track", trackH.Track)

		productsH := handlers.NewProductsHandler(d.Feed)
		r.Get("/products", productsH.List)
		r.Get("/recommendations", productsH.Recommendations)

		usersH := handlers.NewUsersHandler(d.Users)
		r.Get("/users", usersH.Find)
		r.Get("/users/{id}", usersH.Get)

		adminH := handlers.NewAdminHandler(d.Usage, d.Pruner)
		r.Route("/admin", func(r chi.Router) {
			r.Use(d.AdminAuth.RequireAdmin)
			r.Get("/usage", adminH.Usage)
			r.Post("/retention/prune", adminH.Prune)
		})
	})

	return r
}
