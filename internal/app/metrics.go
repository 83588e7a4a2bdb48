package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// submissions by outcome: passed, failed, rejected, error
	quizSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_quiz_submissions_total",
			Help: "Total number of quiz submissions",
		},
		[]string{"outcome"},
	)

	xpApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_xp_applied_total",
			Help: "Sum of positive XP deltas written to the ledger",
		},
		[]string{"activity"},
	)

	xpDeducted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_xp_deducted_total",
			Help: "Sum of negative XP deltas written to the ledger, as a positive number",
		},
		[]string{"activity"},
	)

	ledgerEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_xp_ledger_entries_total",
			Help: "Number of XP ledger entries appended",
		},
		[]string{"activity"},
	)

	certificatesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "academy_certificates_issued_total",
			Help: "Number of course certificates issued",
		},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_notification_failures_total",
			Help: "Notifications that could not be delivered",
		},
		[]string{"event"},
	)

	submissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "academy_quiz_submission_duration_seconds",
			Help:    "Time spent processing quiz submissions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)
