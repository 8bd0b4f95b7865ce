// Package metrics exposes Prometheus counters and gauges for the tick
// loop, transport, and netcode reconciliation paths. Registration is
// eager (promauto) so every unlabelled counter and gauge exists from
// process start, even at zero, which keeps dashboards from flapping on
// first use; each labelled InputsDropped series appears on first use.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netcode/logging"
)

var (
	TicksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_ticks_processed_total",
		Help: "Total server ticks executed.",
	})
	InputsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_inputs_accepted_total",
		Help: "Total input samples accepted into a client's buffer.",
	})
	InputsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netcode_inputs_dropped_total",
		Help: "Total input samples dropped, labeled by reason.",
	}, []string{"reason"})
	MalformedPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_malformed_packets_total",
		Help: "Total packets dropped for failing to decode.",
	})
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netcode_clients_connected",
		Help: "Current number of connected clients.",
	})
	ClientsRejectedFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_clients_rejected_full_total",
		Help: "Total Connect attempts rejected because the server was full.",
	})
	ClientTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_client_timeouts_total",
		Help: "Total connections dropped for exceeding the idle timeout.",
	})
	SnapshotsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_snapshots_sent_total",
		Help: "Total GameState snapshots broadcast (summed across recipients).",
	})
	SnapshotBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_snapshot_bytes_sent_total",
		Help: "Total bytes sent across all snapshot broadcasts.",
	})
	Reconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcode_client_reconciliations_total",
		Help: "Total times the client engine replayed pending inputs after a snapshot.",
	})
)

// Reason label values for InputsDropped (kept small and stable to bound
// cardinality).
const (
	ReasonDuplicate   = "duplicate_or_stale"
	ReasonUnknownPeer = "unknown_peer"
	ReasonBufferFull  = "buffer_full"
	ReasonRateLimited = "rate_limited"
)

// StartHTTP serves Prometheus metrics at /metrics on addr. The caller is
// responsible for shutting it down; a nil/empty addr means the caller
// should not call this at all (metrics disabled).
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}
