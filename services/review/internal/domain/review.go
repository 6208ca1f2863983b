package domain

import (
	"fmt"
	"time"
)

// ReviewWindow is how long a review blocks another review of the same target
// by the same user.
const ReviewWindow = 365 * 24 * time.Hour

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// TargetType identifies the kind of entity a review is about.
type TargetType string

const (
	TargetDestination TargetType = "destination"
	TargetPlace       TargetType = "place"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetDestination, TargetPlace:
		return true
	}
	return false
}

// ParseTargetType accepts the singular and plural forms used in URLs.
func ParseTargetType(s string) (TargetType, error) {
	switch s {
	case "destination", "destinations":
		return TargetDestination, nil
	case "place", "places":
		return TargetPlace, nil
	}
	return "", fmt.Errorf("unknown target type %q", s)
}

// Target is the reviewed entity. An ID is only meaningful together with its type.
type Target struct {
	Type TargetType `json:"target_type"`
	ID   string     `json:"target_id"`
}

func (t Target) String() string {
	return string(t.Type) + "/" + t.ID
}

// Author is the profile snapshot taken when the review was written. It is
// not refreshed when the profile changes.
type Author struct {
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Country string `json:"country,omitempty"`
}

// Review is one user's opinion of one target.
type Review struct {
	ID         string     `json:"id"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`
	UserID     string     `json:"user_id"`
	Rating     int        `json:"rating"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Images     []string   `json:"images"`
	User       Author     `json:"user"`
	Helpful    int        `json:"helpful"`
	Reported   bool       `json:"reported"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Target returns the reviewed entity.
func (r *Review) Target() Target {
	return Target{Type: r.TargetType, ID: r.TargetID}
}

// OwnedBy reports whether userID authored the review.
func (r *Review) OwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// DuplicateKey identifies the (target, user) triple the one-review-per-window
// rule applies to.
func (r *Review) DuplicateKey() string {
	return string(r.TargetType) + "|" + r.TargetID + "|" + r.UserID
}

// WindowStart returns the earliest creation time that still blocks a new
// submission at now. The bound is inclusive.
func WindowStart(now time.Time) time.Time {
	return now.Add(-ReviewWindow)
}

// BlocksSubmission reports whether r prevents userID from reviewing target
// again at the time whose window starts at cutoff.
func (r *Review) BlocksSubmission(target Target, userID string, cutoff time.Time) bool {
	return r.TargetType == target.Type &&
		r.TargetID == target.ID &&
		r.UserID == userID &&
		!r.CreatedAt.Before(cutoff)
}
