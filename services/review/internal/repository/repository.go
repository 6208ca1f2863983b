package repository

import (
	"context"
	"time"

	"github.com/moroccoguide/platform/services/review/internal/domain"
)

// ReviewRepository is the document store behind the review ledger.
//
// Implementations return apperrors.ErrNotFound for missing reviews and
// apperrors.ErrAlreadyReviewed when CreateUnlessRecent finds a blocking review.
type ReviewRepository interface {
	// CreateUnlessRecent inserts review unless the same user already reviewed
	// the same target at or after cutoff. Check and insert are atomic.
	CreateUnlessRecent(ctx context.Context, review *domain.Review, cutoff time.Time) error

	// GetByID returns a single review.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// Delete removes a review and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// ListByTarget returns the target's reviews newest first. limit <= 0 returns all.
	ListByTarget(ctx context.Context, target domain.Target, limit int) ([]domain.Review, error)

	// ListByUser returns a user's reviews newest first. limit <= 0 returns all.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Review, error)

	// IncrementHelpful adds one to the helpful counter and returns the new value.
	IncrementHelpful(ctx context.Context, id string) (int, error)

	// MarkReported flags a review as reported.
	MarkReported(ctx context.Context, id string) error
}
