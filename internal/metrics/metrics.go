// Package metrics provides the Prometheus collectors the replication
// engine exposes on its status HTTP surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the engine registers, grouped by the
// component that updates them.
type Metrics struct {
	JobsTotal        *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	ResourcesSynced  *prometheus.CounterVec
	MonitorTasksRunning prometheus.Gauge
	DetectorChecksTotal *prometheus.CounterVec
}

// New builds and registers a Metrics instance against registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hissync_jobs_total",
				Help: "Total number of sync jobs, by configuration and final status.",
			},
			[]string{"configuration_id", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hissync_job_duration_seconds",
				Help:    "Sync job duration in seconds, by configuration.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"configuration_id"},
		),
		ResourcesSynced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hissync_resources_synced_total",
				Help: "Total number of metadata/data resources synced, by phase and outcome.",
			},
			[]string{"phase", "outcome"},
		),
		MonitorTasksRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hissync_monitor_tasks_running",
				Help: "Current number of live scheduler monitor tasks.",
			},
		),
		DetectorChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hissync_detector_checks_total",
				Help: "Total number of change-detector checks, by phase and result.",
			},
			[]string{"phase", "result"},
		),
	}

	registerer.MustRegister(m.JobsTotal, m.JobDuration, m.ResourcesSynced, m.MonitorTasksRunning, m.DetectorChecksTotal)
	return m
}
