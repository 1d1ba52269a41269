package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// graphResults counts Execute/Resume outcomes by graph and result state
	graphResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketflow_graph_results_total",
		Help: "Graph call results by graph, state, and outcome",
	}, []string{"graph", "state", "outcome"})

	// graphDuration tracks Execute/Resume latency
	graphDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticketflow_graph_duration_seconds",
		Help:    "Graph call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"graph", "op"})

	// checkpointWrites counts checkpoint saves by graph, checkpoint id, and result
	checkpointWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketflow_checkpoint_writes_total",
		Help: "Checkpoint writes by graph, checkpoint, and result",
	}, []string{"graph", "checkpoint", "result"})
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func outcomeLabel(res Result) string {
	switch {
	case res.Success:
		return "success"
	case res.Suspended():
		return "suspended"
	default:
		return "failure"
	}
}
