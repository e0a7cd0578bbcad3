package accumulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "evidence",
		Name:      "entries_recorded_total",
		Help:      "Evidence entries recorded, by kind.",
	}, []string{"kind"})

	packsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "evidence",
		Name:      "packs_persisted_total",
		Help:      "Evidence packs successfully persisted to disk.",
	})
)
