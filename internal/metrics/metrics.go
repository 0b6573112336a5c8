// ABOUTME: Prometheus metrics for the relay
// ABOUTME: Session, frame, turn, and error counters plus the HTTP handler
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the relay
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsClosed  prometheus.Counter
	AuthFailures    prometheus.Counter

	// Relay metrics
	FramesRelayed    prometheus.Counter
	BytesRelayed     prometheus.Counter
	TurnsCompleted   prometheus.Counter
	TurnsRejected    prometheus.Counter
	ParseErrors      prometheus.Counter
	UpstreamErrors   prometheus.Counter
	ArtifactBytes    prometheus.Counter
	ArtifactFailures prometheus.Counter
}

// New creates and registers all relay metrics on the given registerer.
// A nil registerer uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_active_sessions",
			Help: "Number of currently open relay sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_started_total",
			Help: "Total number of relay sessions opened",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_closed_total",
			Help: "Total number of relay sessions closed",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_auth_failures_total",
			Help: "Total number of rejected connection attempts",
		}),
		FramesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_frames_relayed_total",
			Help: "Total number of client audio frames forwarded upstream",
		}),
		BytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_bytes_relayed_total",
			Help: "Total PCM bytes forwarded upstream",
		}),
		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_turns_completed_total",
			Help: "Total number of completed model turns",
		}),
		TurnsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_turns_rejected_total",
			Help: "Total number of turns rejected by the balance check",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_parse_errors_total",
			Help: "Total number of malformed messages dropped",
		}),
		UpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_upstream_errors_total",
			Help: "Total number of upstream session failures",
		}),
		ArtifactBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_artifact_bytes_total",
			Help: "Total bytes of WAV artifacts persisted",
		}),
		ArtifactFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_artifact_failures_total",
			Help: "Total number of artifact writes that failed",
		}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
