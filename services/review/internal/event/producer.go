package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/moroccoguide/platform/pkg/kafka"
	"github.com/moroccoguide/platform/pkg/logger"
	"github.com/moroccoguide/platform/services/review/internal/domain"
)

var (
	TopicReviewSubmitted = pkgkafka.Topic("review", "submitted")
	TopicReviewDeleted   = pkgkafka.Topic("review", "deleted")
)

const (
	AggregateTypeReview = "review"
	SourceReviewService = "review-service"
)

// ReviewSubmittedData is the payload of review.submitted.
type ReviewSubmittedData struct {
	ID         string    `json:"id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	UserID     string    `json:"user_id"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewDeletedData is the payload of review.deleted. Rating is included so
// consumers holding cached stats can apply the incremental delete.
type ReviewDeletedData struct {
	ID         string `json:"id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	UserID     string `json:"user_id"`
	Rating     int    `json:"rating"`
}

// Producer publishes review events. Messages are keyed by target so all
// events for one target land on the same partition.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

func (p *Producer) PublishReviewSubmitted(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewSubmitted, "review.submitted", review, ReviewSubmittedData{
		ID:         review.ID,
		TargetType: string(review.TargetType),
		TargetID:   review.TargetID,
		UserID:     review.UserID,
		Rating:     review.Rating,
		CreatedAt:  review.CreatedAt,
	})
}

func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewDeleted, "review.deleted", review, ReviewDeletedData{
		ID:         review.ID,
		TargetType: string(review.TargetType),
		TargetID:   review.TargetID,
		UserID:     review.UserID,
		Rating:     review.Rating,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType string, review *domain.Review, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, review.Target().String(), AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	evt.WithMetadata("review_id", review.ID)
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "review event published",
		slog.String("event_type", eventType),
		slog.String("review_id", review.ID),
	)
	return nil
}
