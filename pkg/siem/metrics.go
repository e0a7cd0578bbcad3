package siem

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "siem",
		Name:      "events_sent_total",
		Help:      "Events successfully delivered, by backend.",
	}, []string{"backend"})

	eventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "siem",
		Name:      "events_failed_total",
		Help:      "Delivery attempts that failed after retries, by backend.",
	}, []string{"backend"})

	eventsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "siem",
		Name:      "events_dead_lettered_total",
		Help:      "Events moved to the dead-letter queue.",
	})

	bufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "custodia",
		Subsystem: "siem",
		Name:      "buffer_depth",
		Help:      "Events currently buffered awaiting flush.",
	})
)
