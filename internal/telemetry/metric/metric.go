// Package metric provides Prometheus metrics for the server.
//
// All metrics live in a private registry so tests can create
// registries freely without duplicate registration panics.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slatekv"

// Registry holds all application metrics.
type Registry struct {
	// CommandsTotal counts executed commands by name and outcome.
	// Status is "ok" or "error".
	CommandsTotal *prometheus.CounterVec

	// CommandDuration observes command execution time by name.
	CommandDuration *prometheus.HistogramVec

	// ConnectionsActive tracks currently open client connections.
	ConnectionsActive prometheus.Gauge

	// ConnectionsTotal counts accepted connections.
	ConnectionsTotal prometheus.Counter

	// RateLimitedTotal counts commands rejected by the rate limiter.
	RateLimitedTotal prometheus.Counter

	// KeysLive tracks the number of live keys.
	KeysLive prometheus.Gauge

	// SnapshotsTotal counts snapshot captures by outcome.
	SnapshotsTotal *prometheus.CounterVec

	// SnapshotDuration observes snapshot capture time.
	SnapshotDuration prometheus.Histogram

	// SnapshotLastSequence records the mutation sequence of the most
	// recent successful snapshot.
	SnapshotLastSequence prometheus.Gauge

	// WALBytesWritten counts bytes appended to the write-ahead log.
	WALBytesWritten prometheus.Counter

	reg *prometheus.Registry
}

// NewRegistry creates a metrics registry with all collectors
// registered, including the standard Go runtime and process
// collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command name and outcome.",
		}, []string{"cmd", "status"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"cmd"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted client connections.",
		}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Commands rejected by the per-IP rate limiter.",
		}),
		KeysLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keys_live",
			Help:      "Live keys in the keyspace.",
		}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot captures, by outcome.",
		}, []string{"status"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Snapshot capture time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		SnapshotLastSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_last_sequence",
			Help:      "Mutation sequence of the most recent successful snapshot.",
		}),
		WALBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wal_bytes_written_total",
			Help:      "Bytes appended to the write-ahead log.",
		}),
		reg: reg,
	}

	reg.MustRegister(
		r.CommandsTotal,
		r.CommandDuration,
		r.ConnectionsActive,
		r.ConnectionsTotal,
		r.RateLimitedTotal,
		r.KeysLive,
		r.SnapshotsTotal,
		r.SnapshotDuration,
		r.SnapshotLastSequence,
		r.WALBytesWritten,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveCommand records one executed command.
func (r *Registry) ObserveCommand(cmd string, isErr bool, seconds float64) {
	status := "ok"
	if isErr {
		status = "error"
	}
	r.CommandsTotal.WithLabelValues(cmd, status).Inc()
	r.CommandDuration.WithLabelValues(cmd).Observe(seconds)
}

// ObserveSnapshot records one snapshot attempt.
func (r *Registry) ObserveSnapshot(err error, seconds float64, sequence uint64) {
	if err != nil {
		r.SnapshotsTotal.WithLabelValues("error").Inc()
		return
	}
	r.SnapshotsTotal.WithLabelValues("ok").Inc()
	r.SnapshotDuration.Observe(seconds)
	r.SnapshotLastSequence.Set(float64(sequence))
}
