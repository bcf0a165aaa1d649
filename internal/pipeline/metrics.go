package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datacollect",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		},
		[]string{"status"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "datacollect",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		},
	)

	fetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datacollect",
			Name:      "fetch_errors_total",
			Help:      "Failed fetches by source",
		},
		[]string{"source"},
	)

	datasetRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "datacollect",
			Name:      "dataset_rows",
			Help:      "Rows in the last written dataset, before and after cleaning",
		},
		[]string{"dataset", "stage"},
	)
)
