// Package multiping provides the multiping probe: it resolves a host list,
// measures the best echo latency across all addresses in parallel and
// classifies the result against warning and critical thresholds.
package multiping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jandubois/multiping/internal/db"
	"github.com/jandubois/multiping/internal/latency"
	"github.com/jandubois/multiping/internal/metrics"
	"github.com/jandubois/multiping/internal/notify"
	"github.com/jandubois/multiping/internal/pinger"
	"github.com/jandubois/multiping/internal/probe"
	"github.com/jandubois/multiping/internal/report"
	"github.com/jandubois/multiping/internal/resolve"
)

// Name is the probe subcommand name.
const Name = "ping"

// GetDescription returns the probe description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "multiping",
		Description: "Report the best round-trip time to any address of a set of hosts",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"targets": {
					Type:        "array",
					Description: "Host names or IP addresses to probe",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"warning": {
					Type:        "number",
					Description: "Warning threshold in milliseconds, also the early stop cutoff",
					Default:     float64(50),
				},
				"critical": {
					Type:        "number",
					Description: "Critical threshold in milliseconds",
					Default:     float64(500),
				},
				"family": {
					Type:        "string",
					Description: "Restrict targets to one address family",
					Default:     "any",
					Enum:        []string{"any", "ipv4", "ipv6"},
				},
				"backend": {
					Type:        "string",
					Description: "Echo implementation",
					Default:     pinger.BackendICMP,
					Enum:        []string{pinger.BackendICMP, pinger.BackendGoPing},
				},
				"timeout": {
					Type:        "string",
					Description: "Reply wait per echo request",
					Default:     "2s",
				},
				"interval": {
					Type:        "string",
					Description: "Minimum spacing between requests to one address",
					Default:     "500ms",
				},
				"payload_size": {
					Type:        "string",
					Description: "Echo payload size",
					Default:     "56B",
				},
			},
		},
	}
}

// HostResolver turns host arguments into probe targets.
type HostResolver interface {
	Resolve(ctx context.Context, hosts []string) *resolve.Targets
}

// Thresholds converts millisecond thresholds to seconds and validates them.
func Thresholds(warningMs, criticalMs float64) (latency.Thresholds, error) {
	th := latency.Thresholds{Warning: warningMs / 1000, Critical: criticalMs / 1000}
	if err := th.Validate(); err != nil {
		return latency.Thresholds{}, err
	}
	return th, nil
}

// Run resolves hosts, measures every target and classifies the outcome. The
// warning threshold is the early stop cutoff. The only error is a transport
// setup failure, in which case nothing was measured.
func Run(ctx context.Context, r HostResolver, tr latency.Transport, hosts []string, th latency.Thresholds) (*report.Report, error) {
	resolved := r.Resolve(ctx, hosts)
	slog.Debug("resolved targets", "hosts", len(hosts), "targets", len(resolved.Targets), "warnings", len(resolved.Warnings))

	results, err := latency.Measure(ctx, tr, resolved.Targets, th.Warning)
	if err != nil {
		return nil, err
	}
	rep := report.New(resolved.Targets, results, th, resolved.Warnings)
	slog.Debug("check finished", "status", rep.Status(), "condition", rep.Verdict.Condition)
	return rep, nil
}

// Recorder stores finished runs and reports status changes.
type Recorder struct {
	db       *db.DB
	notifier *notify.Dispatcher
}

// NewRecorder creates a Recorder. notifier may be nil.
func NewRecorder(database *db.DB, notifier *notify.Dispatcher) *Recorder {
	return &Recorder{db: database, notifier: notifier}
}

// Record stores rep under name and notifies when the status differs from the
// previous run with the same name. Notification failures are logged only.
func (r *Recorder) Record(ctx context.Context, name string, rep *report.Report, startedAt time.Time, duration time.Duration) error {
	previous, _, err := r.db.LastStatus(ctx, name)
	if err != nil {
		return fmt.Errorf("load previous status: %w", err)
	}

	run := db.NewRun(name, rep, startedAt, duration)
	if err := r.db.InsertRun(ctx, run); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	slog.Debug("run stored", "id", run.ID, "name", name, "status", run.Status)

	if r.notifier == nil {
		return nil
	}
	change := &notify.StatusChange{
		CheckName: name,
		OldStatus: previous,
		NewStatus: rep.Status(),
		Message:   rep.Message(),
	}
	if err := r.notifier.NotifyStatusChange(ctx, change); err != nil {
		slog.Warn("status change notification failed", "name", name, "error", err)
	}
	return nil
}

// ExportMetrics writes the gauges of rep to a node_exporter textfile.
func ExportMetrics(path, name string, rep *report.Report, at time.Time) error {
	m := metrics.New()
	m.Observe(name, rep, at)
	return m.WriteTextfile(path)
}
