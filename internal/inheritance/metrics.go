package inheritance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_inheritance_rejections_total",
		Help: "Product class relations rejected by reason",
	}, []string{"reason"})

	traversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_inheritance_traversal_duration_seconds",
		Help:    "Inheritance graph traversal duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
	}, []string{"op"})
)

func rejected(reason string) {
	relationRejections.WithLabelValues(reason).Inc()
}

func observe(op string, start time.Time) {
	traversalDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
