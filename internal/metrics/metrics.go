// Package metrics exports check results as Prometheus gauges for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/jandubois/multiping/internal/report"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gauges of one check run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	bestRTT   *prometheus.GaugeVec
	attempts  *prometheus.GaugeVec
	replies   *prometheus.GaugeVec
	status    *prometheus.GaugeVec
	lastRun   *prometheus.GaugeVec
	targetCnt *prometheus.GaugeVec
}

// New creates the gauges and registers them.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bestRTT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "multiping_best_rtt_seconds",
			Help: "Best round-trip time observed per target",
		}, []string{"check", "host", "address"}),
		attempts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "multiping_probe_attempts",
			Help: "Echo requests sent per target in the last run",
		}, []string{"check", "host", "address"}),
		replies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "multiping_probe_replies",
			Help: "Echo replies received per target in the last run",
		}, []string{"check", "host", "address"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "multiping_status",
			Help: "Check status as exit code (0 ok, 1 warning, 2 critical, 3 unknown)",
		}, []string{"check"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "multiping_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}, []string{"check"}),
		targetCnt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "multiping_targets",
			Help: "Number of resolved targets",
		}, []string{"check"}),
	}
	m.registry.MustRegister(m.bestRTT, m.attempts, m.replies, m.status, m.lastRun, m.targetCnt)
	return m
}

// Observe records a finished run. Targets without a reply get no best RTT
// sample.
func (m *Metrics) Observe(check string, r *report.Report, at time.Time) {
	for i, s := range r.Results {
		t := r.Targets[i]
		labels := prometheus.Labels{"check": check, "host": t.Host, "address": t.Addr.String()}
		m.attempts.With(labels).Set(float64(s.Attempts))
		m.replies.With(labels).Set(float64(s.Replies))
		if v, ok := s.Best.Value(); ok {
			m.bestRTT.With(labels).Set(v)
		}
	}
	m.status.WithLabelValues(check).Set(float64(r.Status().ExitCode()))
	m.targetCnt.WithLabelValues(check).Set(float64(len(r.Targets)))
	m.lastRun.WithLabelValues(check).Set(float64(at.Unix()))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all gauges to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
