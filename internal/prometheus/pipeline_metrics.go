package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Targets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "targets_total",
		Namespace: Namespace,
		Help:      "Targets processed, by outcome",
	}, []string{"pipeline", "os", "result"})
)

var (
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "step_duration_seconds",
		Namespace: Namespace,
		Help:      "Duration of a single pipeline step.",
		Buckets:   []float64{.1, .5, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096},
	}, []string{"pipeline", "step"})
)

func TargetFinished(pipeline, os, result string) {
	Targets.WithLabelValues(pipeline, os, result).Inc()
}

func ObserveStep(pipeline, step string, started time.Time) {
	StepDuration.WithLabelValues(pipeline, step).Observe(time.Since(started).Seconds())
}
