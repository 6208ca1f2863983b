package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/moroccoguide/platform/pkg/kafka"
	"github.com/moroccoguide/platform/pkg/logger"
	"github.com/moroccoguide/platform/services/review/internal/domain"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func sampleReview() *domain.Review {
	return &domain.Review{
		ID:         "rev-1",
		TargetType: domain.TargetPlace,
		TargetID:   "bahia-palace",
		UserID:     "user-1",
		Rating:     4,
		CreatedAt:  time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "moroccoguide.review.submitted", TopicReviewSubmitted)
	assert.Equal(t, "moroccoguide.review.deleted", TopicReviewDeleted)
}

func TestPublishReviewSubmitted(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, logger.Discard())
	ctx := logger.WithCorrelationID(context.Background(), "corr-7")

	var captured *pkgkafka.Event
	pub.On("Publish", ctx, TopicReviewSubmitted, mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	require.NoError(t, p.PublishReviewSubmitted(ctx, sampleReview()))

	require.NotNil(t, captured)
	assert.Equal(t, "review.submitted", captured.EventType)
	assert.Equal(t, "place/bahia-palace", captured.AggregateID)
	assert.Equal(t, AggregateTypeReview, captured.AggregateType)
	assert.Equal(t, "corr-7", captured.CorrelationID)
	assert.Equal(t, "rev-1", captured.Metadata["review_id"])

	var data ReviewSubmittedData
	require.NoError(t, json.Unmarshal(captured.Data, &data))
	assert.Equal(t, 4, data.Rating)
	assert.Equal(t, "place", data.TargetType)
	pub.AssertExpectations(t)
}

func TestPublishReviewDeleted_Error(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, logger.Discard())
	ctx := context.Background()

	pub.On("Publish", ctx, TopicReviewDeleted, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishReviewDeleted(ctx, sampleReview())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish review.deleted")
}

func TestNoopPublisher(t *testing.T) {
	p := NewProducer(pkgkafka.NoopPublisher{}, logger.Discard())
	assert.NoError(t, p.PublishReviewSubmitted(context.Background(), sampleReview()))
}
