package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for webhookEvents.
const (
	outcomeMessage   = "message"
	outcomeDuplicate = "duplicate"
	outcomeTakeover  = "takeover"
	outcomeIgnored   = "ignored"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
)

var (
	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook events by outcome.",
		},
		[]string{"outcome"},
	)

	tokenCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_token_cache_total",
			Help: "Token cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)
