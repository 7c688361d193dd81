package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "uploads_total",
		Namespace: Namespace,
		Help:      "Total files uploaded to object storage",
	}, []string{"backend", "result"})
)

func UploadFinished(backend string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	Uploads.WithLabelValues(backend, result).Inc()
}
