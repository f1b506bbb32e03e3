package gateway

import (
	"mitra/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	gatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mitra_gateway_calls_total",
		Help: "Partner API calls by operation and outcome kind",
	}, []string{"operation", "outcome"})

	gatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mitra_gateway_call_duration_seconds",
		Help:    "Partner API call latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"operation"})
)

func observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind := models.KindOf(err); kind != "" {
			outcome = string(kind)
		}
	}
	gatewayCallsTotal.WithLabelValues(operation, outcome).Inc()
}
