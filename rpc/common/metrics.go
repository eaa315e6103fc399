package common

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

// Counters shared by the transport packages. All names carry the feval_ prefix.
var (
	FramesSent       = metrics.GetOrCreateCounter("feval_frames_sent_total")
	FramesReceived   = metrics.GetOrCreateCounter("feval_frames_received_total")
	BytesSent        = metrics.GetOrCreateCounter("feval_bytes_sent_total")
	BytesReceived    = metrics.GetOrCreateCounter("feval_bytes_received_total")
	HandshakesOK     = metrics.GetOrCreateCounter(`feval_handshakes_total{result="ok"}`)
	HandshakesFailed = metrics.GetOrCreateCounter(`feval_handshakes_total{result="failed"}`)
	ConnsOpened      = metrics.GetOrCreateCounter("feval_connections_opened_total")
	ConnsClosed      = metrics.GetOrCreateCounter("feval_connections_closed_total")
	DesyncErrors     = metrics.GetOrCreateCounter(`feval_protocol_errors_total{kind="desync"}`)
	IntegrityErrors  = metrics.GetOrCreateCounter(`feval_protocol_errors_total{kind="integrity"}`)
	SessionsSwept    = metrics.GetOrCreateCounter("feval_kcp_sessions_swept_total")
)

// MetricsHandler writes all registered metrics in the prometheus text format
func MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		metrics.WritePrometheus(w, true)
	})
}
