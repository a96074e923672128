package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("engine")

var postsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pinokio_posts_ingested",
	Help: "Number of posts processed by the ingestion gate, by outcome",
}, []string{"outcome"})

var postsScored = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pinokio_posts_scored",
	Help: "Number of posts scored, by verdict",
}, []string{"verdict"})

var scoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pinokio_post_score",
	Help:    "Distribution of credibility scores",
	Buckets: prometheus.LinearBuckets(0, 0.1, 11),
})

var evaluationsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pinokio_evaluations_received",
	Help: "Number of user evaluations recorded, by verdict",
}, []string{"verdict"})

var reportsReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pinokio_reports_received",
	Help: "Number of user reports recorded",
})

var statusLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pinokio_status_lookups",
	Help: "Number of post status lookups, by result",
}, []string{"result"})

var modeChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pinokio_mode_changes",
	Help: "Number of moderation mode changes, by mode and source",
}, []string{"mode", "source"})

var notificationErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pinokio_notification_errors",
	Help: "Number of failed operator notifications",
})
