package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/services/review/internal/domain"
)

// ReviewRepository keeps reviews in process memory. A single mutex makes the
// duplicate check and the insert atomic.
type ReviewRepository struct {
	mu      sync.RWMutex
	reviews map[string]domain.Review
}

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{reviews: make(map[string]domain.Review)}
}

func (r *ReviewRepository) CreateUnlessRecent(_ context.Context, review *domain.Review, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := review.Target()
	for _, existing := range r.reviews {
		if existing.BlocksSubmission(target, review.UserID, cutoff) {
			return apperrors.ErrAlreadyReviewed
		}
	}

	if _, ok := r.reviews[review.ID]; ok {
		return apperrors.Conflict("review id already exists")
	}

	r.reviews[review.ID] = copyReview(*review)
	return nil
}

func (r *ReviewRepository) GetByID(_ context.Context, id string) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rv, ok := r.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	out := copyReview(rv)
	return &out, nil
}

func (r *ReviewRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reviews[id]; !ok {
		return false, nil
	}
	delete(r.reviews, id)
	return true, nil
}

func (r *ReviewRepository) ListByTarget(_ context.Context, target domain.Target, limit int) ([]domain.Review, error) {
	return r.list(limit, func(rv *domain.Review) bool {
		return rv.TargetType == target.Type && rv.TargetID == target.ID
	}), nil
}

func (r *ReviewRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Review, error) {
	return r.list(limit, func(rv *domain.Review) bool {
		return rv.UserID == userID
	}), nil
}

func (r *ReviewRepository) IncrementHelpful(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rv, ok := r.reviews[id]
	if !ok {
		return 0, apperrors.NotFound("review", id)
	}
	rv.Helpful++
	r.reviews[id] = rv
	return rv.Helpful, nil
}

func (r *ReviewRepository) MarkReported(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rv, ok := r.reviews[id]
	if !ok {
		return apperrors.NotFound("review", id)
	}
	rv.Reported = true
	r.reviews[id] = rv
	return nil
}

// Len returns the number of stored reviews.
func (r *ReviewRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reviews)
}

func (r *ReviewRepository) list(limit int, match func(*domain.Review) bool) []domain.Review {
	r.mu.RLock()
	out := make([]domain.Review, 0)
	for _, rv := range r.reviews {
		if match(&rv) {
			out = append(out, copyReview(rv))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, newestFirst)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// newestFirst matches the Postgres ORDER BY created_at DESC, id DESC.
func newestFirst(a, b domain.Review) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

func copyReview(rv domain.Review) domain.Review {
	rv.Images = slices.Clone(rv.Images)
	if rv.Images == nil {
		rv.Images = []string{}
	}
	return rv
}
