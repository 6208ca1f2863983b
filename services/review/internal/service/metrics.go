package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_submitted_total",
			Help: "Reviews accepted, by target type",
		},
		[]string{"target_type"},
	)

	reviewsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_rejected_total",
			Help: "Review submissions rejected, by reason",
		},
		[]string{"reason"},
	)

	reviewsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_deleted_total",
			Help: "Reviews deleted by their author, by target type",
		},
		[]string{"target_type"},
	)
)
