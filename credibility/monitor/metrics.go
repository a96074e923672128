package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("monitor")

var checkCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pinokio_monitor_checks",
	Help: "Number of review-bombing checks, by outcome",
}, []string{"outcome"})

var checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "pinokio_monitor_check_duration_sec",
	Help: "Duration of review-bombing checks",
})

var lastSampleSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pinokio_monitor_sample_size",
	Help: "Number of posts in the most recent review-bombing window",
})

var lastSuspectFraction = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pinokio_monitor_suspect_fraction",
	Help: "Fraction of Unknown or Warning verdicts in the most recent window",
})

var flaggedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pinokio_monitor_flagged_posts",
	Help: "Number of posts flagged for manual review by the monitor",
})
