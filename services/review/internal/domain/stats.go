package domain

import "math"

// ReviewStats is derived from a target's reviews on every read and never stored.
type ReviewStats struct {
	AverageRating      float64     `json:"average_rating"`
	TotalReviews       int         `json:"total_reviews"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Bucket maps a rating onto the 1..5 distribution keys.
func Bucket(rating int) int {
	return min(max(rating, MinRating), MaxRating)
}

// EmptyStats returns stats for a target with no reviews.
func EmptyStats() ReviewStats {
	return ReviewStats{RatingDistribution: emptyDistribution()}
}

func emptyDistribution() map[int]int {
	d := make(map[int]int, MaxRating)
	for i := MinRating; i <= MaxRating; i++ {
		d[i] = 0
	}
	return d
}

// ComputeStats aggregates reviews. Distribution buckets use the clamped
// rating while the average uses the raw one.
func ComputeStats(reviews []Review) ReviewStats {
	stats := EmptyStats()
	if len(reviews) == 0 {
		return stats
	}

	sum := 0
	for i := range reviews {
		stats.RatingDistribution[Bucket(reviews[i].Rating)]++
		sum += reviews[i].Rating
	}

	stats.TotalReviews = len(reviews)
	stats.AverageRating = Round2(float64(sum) / float64(stats.TotalReviews))
	return stats
}

// WithInserted returns the stats after adding a review rated rating,
// without the full review set.
func (s ReviewStats) WithInserted(rating int) ReviewStats {
	next := s.clone()
	next.TotalReviews = s.TotalReviews + 1
	next.RatingDistribution[Bucket(rating)]++
	next.AverageRating = Round2((s.AverageRating*float64(s.TotalReviews) + float64(rating)) / float64(next.TotalReviews))
	return next
}

// WithDeleted returns the stats after removing a review rated rating.
// Counts never go below zero.
func (s ReviewStats) WithDeleted(rating int) ReviewStats {
	next := s.clone()
	next.TotalReviews = max(0, s.TotalReviews-1)

	b := Bucket(rating)
	next.RatingDistribution[b] = max(0, next.RatingDistribution[b]-1)

	if next.TotalReviews == 0 {
		next.AverageRating = 0
		return next
	}
	next.AverageRating = Round2((s.AverageRating*float64(s.TotalReviews) - float64(rating)) / float64(next.TotalReviews))
	return next
}

func (s ReviewStats) clone() ReviewStats {
	out := ReviewStats{
		AverageRating:      s.AverageRating,
		TotalReviews:       s.TotalReviews,
		RatingDistribution: emptyDistribution(),
	}
	for k, v := range s.RatingDistribution {
		out.RatingDistribution[k] = v
	}
	return out
}
