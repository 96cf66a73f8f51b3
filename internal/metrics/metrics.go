// Package metrics holds the prometheus collectors for the poller and renderers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PollCycles counts route cycles by final state.
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_poll_cycles_total",
		Help: "Route poll cycles by result",
	}, []string{"route", "result"})

	// RenderOutcomes counts render invocations by style and error kind.
	RenderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_render_outcomes_total",
		Help: "Render invocations by style and result",
	}, []string{"style", "result"})

	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_render_duration_seconds",
		Help:    "Render invocation wall time",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"style"})

	// RenderSkips counts cycles whose digest matched the previous render.
	RenderSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_render_skips_total",
		Help: "Renders skipped because the board content was unchanged",
	}, []string{"route"})

	MalformedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_malformed_lines_total",
		Help: "Board lines dropped by the modern parser",
	})

	// UpstreamErrors counts failed upstream calls after retries.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_upstream_errors_total",
		Help: "Upstream calls that failed after retries",
	}, []string{"call"})

	PushNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_push_notifications_total",
		Help: "Web push deliveries by result",
	}, []string{"result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
