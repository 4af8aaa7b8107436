package rotation

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickTotal            *prometheus.CounterVec
	refreshDuration      prometheus.Histogram
	lastSuccessTimestamp prometheus.Gauge

	metricsOnce sync.Once
)

// initMetrics registers the rotation metrics on the default registry.
// Registration is guarded so tests constructing several rotators do not
// panic on duplicate registration.
func initMetrics() {
	metricsOnce.Do(func() {
		tickTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "melitoken_rotation_ticks_total",
				Help: "Total number of rotation ticks by result",
			},
			[]string{"status"},
		)

		refreshDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "melitoken_refresh_duration_seconds",
				Help:    "Duration of the upstream refresh call in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		)

		lastSuccessTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "melitoken_last_successful_rotation_timestamp_seconds",
				Help: "Unix timestamp of the last successful rotation tick",
			},
		)
	})
}

func observeTickSuccess(at time.Time, refreshTook time.Duration) {
	initMetrics()
	tickTotal.WithLabelValues("success").Inc()
	refreshDuration.Observe(refreshTook.Seconds())
	lastSuccessTimestamp.Set(float64(at.Unix()))
}

func observeTickFailure() {
	initMetrics()
	tickTotal.WithLabelValues("failure").Inc()
}
