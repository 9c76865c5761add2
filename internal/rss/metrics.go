package rss

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes used as the result label.
const (
	resultOK        = "ok"
	resultHTTPError = "http_error"
	resultError     = "error"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crabnews_fetch_total",
		Help: "Feed fetches by result.",
	}, []string{"result"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crabnews_fetch_duration_seconds",
		Help:    "Time spent fetching a feed, including rate limit waits.",
		Buckets: prometheus.DefBuckets,
	})
)
