package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/services/review/internal/domain"
	"github.com/moroccoguide/platform/services/review/internal/repository"
)

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "review_store_breaker_state",
		Help: "State of the review store circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// Config controls when the breaker opens.
type Config struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open duration before probing
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns the production defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Repository decorates a ReviewRepository with a circuit breaker. Every
// infrastructure failure, and every call rejected while the breaker is open,
// surfaces as STORE_UNAVAILABLE. Domain outcomes pass through untouched and
// do not count as failures. Nothing is retried.
type Repository struct {
	next    repository.ReviewRepository
	breaker *gobreaker.CircuitBreaker[any]
}

var _ repository.ReviewRepository = (*Repository)(nil)

func New(next repository.ReviewRepository, cfg Config, logger *slog.Logger) *Repository {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isDomainError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("review store breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &Repository{next: next, breaker: gobreaker.NewCircuitBreaker[any](settings)}
}

// State exposes the breaker state for readiness checks.
func (r *Repository) State() gobreaker.State {
	return r.breaker.State()
}

// Ping fails while the breaker is open.
func (r *Repository) Ping(context.Context) error {
	if r.breaker.State() == gobreaker.StateOpen {
		return apperrors.StoreUnavailable(gobreaker.ErrOpenState)
	}
	return nil
}

func (r *Repository) CreateUnlessRecent(ctx context.Context, review *domain.Review, cutoff time.Time) error {
	_, err := call(r, func() (struct{}, error) {
		return struct{}{}, r.next.CreateUnlessRecent(ctx, review, cutoff)
	})
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	return call(r, func() (*domain.Review, error) { return r.next.GetByID(ctx, id) })
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	return call(r, func() (bool, error) { return r.next.Delete(ctx, id) })
}

func (r *Repository) ListByTarget(ctx context.Context, target domain.Target, limit int) ([]domain.Review, error) {
	return call(r, func() ([]domain.Review, error) { return r.next.ListByTarget(ctx, target, limit) })
}

func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Review, error) {
	return call(r, func() ([]domain.Review, error) { return r.next.ListByUser(ctx, userID, limit) })
}

func (r *Repository) IncrementHelpful(ctx context.Context, id string) (int, error) {
	return call(r, func() (int, error) { return r.next.IncrementHelpful(ctx, id) })
}

func (r *Repository) MarkReported(ctx context.Context, id string) error {
	_, err := call(r, func() (struct{}, error) { return struct{}{}, r.next.MarkReported(ctx, id) })
	return err
}

func call[T any](r *Repository, fn func() (T, error)) (T, error) {
	var zero T

	res, err := r.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if isDomainError(err) || errors.Is(err, context.Canceled) {
			return zero, err
		}
		return zero, apperrors.StoreUnavailable(err)
	}

	out, _ := res.(T)
	return out, nil
}

func isDomainError(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrAlreadyReviewed) ||
		errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrInvalidInput)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
