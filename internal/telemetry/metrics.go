package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	EmitCounter      = prometheus.NewCounter(prometheus.CounterOpts{Name: "events_emitted_total", Help: "Total accepted job events"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "events_rate_limit_rejects_total", Help: "Emissions rejected by rate limiter"})
	WorkerSuccess    = prometheus.NewCounter(prometheus.CounterOpts{Name: "events_completed_total", Help: "Events handled successfully"})
	WorkerFailures   = prometheus.NewCounter(prometheus.CounterOpts{Name: "events_failed_total", Help: "Handler failures that will retry"})
	WorkerDeadLetter = prometheus.NewCounter(prometheus.CounterOpts{Name: "events_dead_letter_total", Help: "Events moved to DLQ"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "events_queue_depth", Help: "Ready queue depth across priorities"})
	BacklogGauge     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "events_visible_backlog", Help: "Queued events due to run per the durable store"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "events_inflight", Help: "Events currently leased"})
	LeaderGauge      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_leader", Help: "1 when this replica holds the bot leader lock"})
	InboundMessages  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bot_inbound_messages_total", Help: "Inbound Telegram messages by content type"}, []string{"type"})
	RealtimePublish  = prometheus.NewCounter(prometheus.CounterOpts{Name: "realtime_messages_published_total", Help: "Messages published to realtime channels"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			EmitCounter,
			RateLimitRejects,
			WorkerSuccess,
			WorkerFailures,
			WorkerDeadLetter,
			QueueDepthGauge,
			BacklogGauge,
			InFlightGauge,
			LeaderGauge,
			InboundMessages,
			RealtimePublish,
		)
	})
	return promhttp.Handler()
}
