package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/pkg/logger"
	"github.com/moroccoguide/platform/services/review/internal/domain"
	"github.com/moroccoguide/platform/services/review/internal/repository"
)

// Input limits.
const (
	MaxTitleLength   = 200
	MaxContentLength = 5000
	MaxImages        = 10
	MaxNameLength    = 100
)

// EventPublisher is notified after successful writes.
type EventPublisher interface {
	PublishReviewSubmitted(ctx context.Context, review *domain.Review) error
	PublishReviewDeleted(ctx context.Context, review *domain.Review) error
}

// SubmitReviewInput is a review without the server-assigned fields.
type SubmitReviewInput struct {
	Target  domain.Target
	UserID  string
	Rating  int
	Title   string
	Content string
	Images  []string
	Author  domain.Author
}

// ReviewService is the review ledger: it enforces the one-review-per-window
// rule, owns deletion rights and aggregates stats.
type ReviewService struct {
	repo   repository.ReviewRepository
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes a ReviewService.
type Option func(*ReviewService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ReviewService) { s.now = now }
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(fn func() string) Option {
	return func(s *ReviewService) { s.newID = fn }
}

// NewReviewService creates the service. events may be nil.
func NewReviewService(repo repository.ReviewRepository, events EventPublisher, logger *slog.Logger, opts ...Option) *ReviewService {
	s := &ReviewService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitReview stores a new review unless the user already reviewed the same
// target within ReviewWindow.
func (s *ReviewService) SubmitReview(ctx context.Context, input *SubmitReviewInput) (*domain.Review, error) {
	if err := validateSubmission(input); err != nil {
		reviewsRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	// Postgres keeps microseconds; match it so the returned review equals the stored one.
	now := s.now().UTC().Truncate(time.Microsecond)

	images := make([]string, len(input.Images))
	copy(images, input.Images)

	review := &domain.Review{
		ID:         s.newID(),
		TargetType: input.Target.Type,
		TargetID:   input.Target.ID,
		UserID:     input.UserID,
		Rating:     input.Rating,
		Title:      input.Title,
		Content:    input.Content,
		Images:     images,
		User:       input.Author,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.CreateUnlessRecent(ctx, review, domain.WindowStart(now)); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyReviewed) {
			reviewsRejected.WithLabelValues("duplicate").Inc()
			s.log(ctx).InfoContext(ctx, "review rejected, already reviewed within window",
				slog.String("target", review.Target().String()),
				slog.String("user_id", review.UserID),
			)
			return nil, apperrors.AlreadyReviewedThisYear()
		}
		return nil, fmt.Errorf("submit review: %w", err)
	}

	reviewsSubmitted.WithLabelValues(string(review.TargetType)).Inc()
	s.log(ctx).InfoContext(ctx, "review submitted",
		slog.String("review_id", review.ID),
		slog.String("target", review.Target().String()),
		slog.String("user_id", review.UserID),
		slog.Int("rating", review.Rating),
	)

	if s.events != nil {
		if err := s.events.PublishReviewSubmitted(context.WithoutCancel(ctx), review); err != nil {
			s.log(ctx).WarnContext(ctx, "failed to publish review.submitted",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return review, nil
}

// DeleteReview removes a review on behalf of its author. Deleting a review
// that does not exist succeeds so clients can retry freely.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, requestingUserID string) error {
	if requestingUserID == "" {
		return apperrors.Unauthorized("authentication required")
	}

	review, err := s.repo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete review: %w", err)
	}

	if !review.OwnedBy(requestingUserID) {
		s.log(ctx).WarnContext(ctx, "review delete denied",
			slog.String("review_id", reviewID),
			slog.String("owner_id", review.UserID),
			slog.String("requested_by", requestingUserID),
		)
		return apperrors.NotAuthorized("only the author can delete this review")
	}

	existed, err := s.repo.Delete(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if !existed {
		return nil
	}

	reviewsDeleted.WithLabelValues(string(review.TargetType)).Inc()
	s.log(ctx).InfoContext(ctx, "review deleted",
		slog.String("review_id", reviewID),
		slog.String("target", review.Target().String()),
	)

	if s.events != nil {
		if err := s.events.PublishReviewDeleted(context.WithoutCancel(ctx), review); err != nil {
			s.log(ctx).WarnContext(ctx, "failed to publish review.deleted",
				slog.String("review_id", reviewID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// ListReviews returns a target's reviews newest first. limit <= 0 returns all.
func (s *ReviewService) ListReviews(ctx context.Context, target domain.Target, limit int) ([]domain.Review, error) {
	if err := validateTarget(target); err != nil {
		return nil, err
	}

	reviews, err := s.repo.ListByTarget(ctx, target, limit)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// GetReviewStats recomputes stats from every review of the target.
func (s *ReviewService) GetReviewStats(ctx context.Context, target domain.Target) (domain.ReviewStats, error) {
	if err := validateTarget(target); err != nil {
		return domain.ReviewStats{}, err
	}

	reviews, err := s.repo.ListByTarget(ctx, target, 0)
	if err != nil {
		return domain.ReviewStats{}, fmt.Errorf("get review stats: %w", err)
	}
	return domain.ComputeStats(reviews), nil
}

// GetReview returns a single review.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

// ListUserReviews returns a user's own reviews newest first.
func (s *ReviewService) ListUserReviews(ctx context.Context, userID string, limit int) ([]domain.Review, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	reviews, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user reviews: %w", err)
	}
	return reviews, nil
}

// MarkHelpful increments the helpful counter and returns the new value.
func (s *ReviewService) MarkHelpful(ctx context.Context, id string) (int, error) {
	helpful, err := s.repo.IncrementHelpful(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("mark review helpful: %w", err)
	}
	return helpful, nil
}

// ReportReview flags a review for moderation. Reporting twice is harmless.
func (s *ReviewService) ReportReview(ctx context.Context, id, reporterID string) error {
	if err := s.repo.MarkReported(ctx, id); err != nil {
		return fmt.Errorf("report review: %w", err)
	}

	s.log(ctx).InfoContext(ctx, "review reported",
		slog.String("review_id", id),
		slog.String("reported_by", reporterID),
	)
	return nil
}

func (s *ReviewService) log(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return s.logger
}

func validateTarget(t domain.Target) error {
	if !t.Type.Valid() {
		return apperrors.InvalidInput("target_type must be destination or place")
	}
	if t.ID == "" {
		return apperrors.InvalidInput("target_id is required")
	}
	return nil
}

func validateSubmission(in *SubmitReviewInput) error {
	if in == nil {
		return apperrors.InvalidInput("review is required")
	}
	if err := validateTarget(in.Target); err != nil {
		return err
	}
	if in.UserID == "" {
		return apperrors.InvalidInput("user_id is required")
	}
	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return apperrors.InvalidInput("rating must be between 1 and 5")
	}
	if in.Author.Name == "" {
		return apperrors.InvalidInput("author name is required")
	}
	if utf8.RuneCountInString(in.Author.Name) > MaxNameLength {
		return apperrors.InvalidInput(fmt.Sprintf("author name must be at most %d characters", MaxNameLength))
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return apperrors.InvalidInput(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Content) > MaxContentLength {
		return apperrors.InvalidInput(fmt.Sprintf("content must be at most %d characters", MaxContentLength))
	}
	if len(in.Images) > MaxImages {
		return apperrors.InvalidInput(fmt.Sprintf("at most %d images are allowed", MaxImages))
	}
	for _, img := range in.Images {
		u, err := url.Parse(img)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperrors.InvalidInput("images must be absolute http(s) URLs")
		}
	}
	return nil
}
