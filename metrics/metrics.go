// Package metrics wraps the Prometheus instrumentation for version
// negotiation and migration orchestration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a dedicated Prometheus registry and the metric
// vectors recorded by the resolver and the migration executor.
type Collector struct {
	registry *prometheus.Registry

	VersionResolutions *prometheus.CounterVec
	Negotiations       *prometheus.CounterVec
	MigrationRuns      *prometheus.CounterVec
	MigrationSteps     *prometheus.CounterVec
	MigrationDuration  *prometheus.HistogramVec
	ActiveMigrations   prometheus.Gauge
}

// NewCollector creates a Collector with its own registry under the
// given namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		VersionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_resolutions_total",
			Help:      "Version resolutions by detection method and outcome",
		}, []string{"method", "outcome"}),
		Negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiations_total",
			Help:      "Version negotiations by whether a migration is required",
		}, []string{"migration_required"}),
		MigrationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_runs_total",
			Help:      "Migration executions by kind (execute/rollback) and final status",
		}, []string{"kind", "status"}),
		MigrationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_steps_total",
			Help:      "Executed migration steps by type and result",
		}, []string{"type", "result"}),
		MigrationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_duration_seconds",
			Help:      "Wall-clock duration of migration runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		ActiveMigrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_migrations",
			Help:      "Migrations currently executing in this process",
		}),
	}

	reg.MustRegister(
		c.VersionResolutions,
		c.Negotiations,
		c.MigrationRuns,
		c.MigrationSteps,
		c.MigrationDuration,
		c.ActiveMigrations,
	)
	return c
}

// Handler returns the HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
