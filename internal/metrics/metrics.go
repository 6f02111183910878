package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	intentActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "intent",
			Name:      "actions_total",
			Help:      "Number of routed messages per resolved action.",
		}, []string{"action"},
	)
	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "guard",
			Name:      "rejections_total",
			Help:      "Number of requests refused because the same operation was already in flight.",
		}, []string{"operation"},
	)
	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Number of backup attempts by result.",
		}, []string{"result"},
	)
	backupBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jarvis",
			Subsystem: "backup",
			Name:      "archive_bytes",
			Help:      "Size of the most recent backup archive.",
		},
	)
	backupsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "backup",
			Name:      "pruned_total",
			Help:      "Number of archives deleted by the retention sweep.",
		},
	)
	serverOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jarvis",
			Subsystem: "server",
			Name:      "online",
			Help:      "Last observed liveness of the supervised server (1 = online).",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{intentActions, guardRejections, backups, backupBytes, backupsPruned, serverOnline}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register has succeeded.

func IncAction(action string) {
	if regOK.Load() {
		intentActions.WithLabelValues(action).Inc()
	}
}

func IncGuardRejection(operation string) {
	if regOK.Load() {
		guardRejections.WithLabelValues(operation).Inc()
	}
}

func IncBackup(result string) {
	if regOK.Load() {
		backups.WithLabelValues(result).Inc()
	}
}

func SetBackupBytes(n int64) {
	if regOK.Load() {
		backupBytes.Set(float64(n))
	}
}

func AddPruned(n int) {
	if regOK.Load() && n > 0 {
		backupsPruned.Add(float64(n))
	}
}

func SetServerOnline(online bool) {
	if regOK.Load() {
		var value float64
		if online {
			value = 1
		}
		serverOnline.Set(value)
	}
}
