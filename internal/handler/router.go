package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	appI18n "github.com/edugenai/insights/internal/i18n"
	"github.com/edugenai/insights/internal/metrics"
)

// RouterOptions configures the middleware stack around the API routes.
type RouterOptions struct {
	Metrics     *metrics.Metrics
	CORSOrigins []string
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter builds the full HTTP handler for h.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(NewRateLimiter(opts.RateLimit, opts.RateBurst).Middleware)
		}
		r.Use(appI18n.Middleware)
		h.Routes(r)
	})

	if len(opts.CORSOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type", "X-Client-ID"},
		MaxAge:         300,
	})
	return c.Handler(r)
}
