package reconciliation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_detections_total",
		Help: "Campaign detections by outcome",
	}, []string{"outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_transitions_total",
		Help: "Reconciliation status transitions by target status",
	}, []string{"to"})

	purgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_purges_total",
		Help: "Hard deletes of reconciliations by verb",
	}, []string{"verb"})
)
