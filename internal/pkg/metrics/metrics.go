// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LeaveTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostelpg_leave_transitions_total",
			Help: "Applied leave status transitions",
		},
		[]string{"from", "to", "actor_role"},
	)

	RollCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostelpg_roll_calls_total",
			Help: "Roll-call attempts by outcome",
		},
		[]string{"outcome"},
	)

	Movements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostelpg_movements_total",
			Help: "Recorded entry/exit movements",
		},
		[]string{"type"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostelpg_notifications_dropped_total",
			Help: "Notifications refused because the queue was full",
		},
	)

	NotificationDelivery = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostelpg_notification_delivery_seconds",
			Help:    "Push provider call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
)

// Outcome labels for RollCalls besides the rejection reasons.
const (
	OutcomeRecorded = "recorded"
	OutcomeError    = "error"
)
