package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moroccoguide/platform/pkg/health"
	"github.com/moroccoguide/platform/pkg/middleware"
	"github.com/moroccoguide/platform/services/review/internal/domain"
	"github.com/moroccoguide/platform/services/review/internal/service"
)

const serviceName = "review"

// RouterConfig carries everything NewRouter wires into the handler tree.
type RouterConfig struct {
	ReviewService  *service.ReviewService
	Idempotency    IdempotencyStore
	TokenValidator middleware.TokenValidator
	Health         *health.Handler
	Logger         *slog.Logger

	CORS       middleware.CORSConfig
	PprofCIDRs []string

	// SubmitRPS and SubmitBurst bound review submissions per user.
	SubmitRPS   float64
	SubmitBurst int
}

// NewRouter creates a chi router with all review service routes registered.
// ctx bounds background work such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	reviewHandler := NewReviewHandler(cfg.ReviewService, cfg.Idempotency, logger)
	requireAuth := middleware.Auth(cfg.TokenValidator)
	submitLimit := middleware.RateLimit(ctx, cfg.SubmitRPS, cfg.SubmitBurst, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Reviews nested under the reviewed entity.
		for _, tt := range []domain.TargetType{domain.TargetDestination, domain.TargetPlace} {
			r.Route("/"+string(tt)+"s/{targetId}/reviews", func(r chi.Router) {
				r.With(middleware.NoStore).Get("/", reviewHandler.ListReviews(tt))
				r.With(middleware.NoStore).Get("/stats", reviewHandler.GetReviewStats(tt))
				r.With(requireAuth, submitLimit).Post("/", reviewHandler.SubmitReview(tt))
			})
		}

		r.Route("/reviews/{id}", func(r chi.Router) {
			r.With(middleware.NoStore).Get("/", reviewHandler.GetReview)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Delete("/", reviewHandler.DeleteReview)
				r.Post("/helpful", reviewHandler.MarkHelpful)
				r.Post("/report", reviewHandler.ReportReview)
			})
		})

		r.With(requireAuth, middleware.NoStore).Get("/users/me/reviews", reviewHandler.ListMyReviews)
	})

	return r
}
