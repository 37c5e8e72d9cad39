// internal/messaging/metrics.go

package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Total number of messages inserted",
		},
		[]string{"kind"}, // user, greeting, system
	)

	saleConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_sale_confirmations_total",
			Help: "Total number of confirmation actions by role",
		},
		[]string{"role"},
	)

	salesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_sales_completed_total",
			Help: "Total number of sales reaching both-confirmed",
		},
	)

	confirmationConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_confirmation_conflicts_total",
			Help: "Optimistic-concurrency conflicts during confirmation",
		},
	)

	markReadBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "messaging_mark_read_batch_size",
			Help:    "Number of messages per mark-read batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		},
	)
)
