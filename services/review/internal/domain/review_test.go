package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetType(t *testing.T) {
	tests := []struct {
		in      string
		want    TargetType
		wantErr bool
	}{
		{"place", TargetPlace, false},
		{"places", TargetPlace, false},
		{"destination", TargetDestination, false},
		{"destinations", TargetDestination, false},
		{"riad", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTargetType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}

	assert.False(t, TargetType("hotel").Valid())
}

func TestBlocksSubmission_WindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cutoff := WindowStart(now)
	target := Target{Type: TargetPlace, ID: "p1"}

	review := Review{TargetType: TargetPlace, TargetID: "p1", UserID: "u1"}

	review.CreatedAt = now.Add(-ReviewWindow)
	assert.True(t, review.BlocksSubmission(target, "u1", cutoff), "exactly 365 days is still inside the window")

	review.CreatedAt = now.Add(-ReviewWindow - time.Nanosecond)
	assert.False(t, review.BlocksSubmission(target, "u1", cutoff))

	review.CreatedAt = now.Add(-24 * time.Hour)
	assert.True(t, review.BlocksSubmission(target, "u1", cutoff))
	assert.False(t, review.BlocksSubmission(target, "u2", cutoff))
	assert.False(t, review.BlocksSubmission(Target{Type: TargetDestination, ID: "p1"}, "u1", cutoff))
	assert.False(t, review.BlocksSubmission(Target{Type: TargetPlace, ID: "p2"}, "u1", cutoff))
}

func TestReview_OwnedBy(t *testing.T) {
	r := Review{UserID: "u1"}

	assert.True(t, r.OwnedBy("u1"))
	assert.False(t, r.OwnedBy("u2"))
	assert.False(t, (&Review{}).OwnedBy(""))
}

func TestReview_Keys(t *testing.T) {
	r := Review{TargetType: TargetDestination, TargetID: "marrakech", UserID: "u1"}

	assert.Equal(t, "destination|marrakech|u1", r.DuplicateKey())
	assert.Equal(t, "destination/marrakech", r.Target().String())
}
