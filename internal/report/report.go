// Package report renders measurement results as monitoring-plugin output
// and as monitor JSON results.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jandubois/multiping/internal/latency"
	"github.com/jandubois/multiping/internal/probe"
)

// Report bundles everything needed to render one check run.
type Report struct {
	Targets    []latency.Target
	Results    latency.ResultSet
	Verdict    latency.Verdict
	Thresholds latency.Thresholds
	Warnings   []string
}

// New classifies results and builds a Report. targets and results must have
// the same length and order.
func New(targets []latency.Target, results latency.ResultSet, th latency.Thresholds, warnings []string) *Report {
	return &Report{
		Targets:    targets,
		Results:    results,
		Verdict:    latency.Classify(results, th),
		Thresholds: th,
		Warnings:   warnings,
	}
}

// Status is the overall check status.
func (r *Report) Status() probe.Status {
	return r.Verdict.Status
}

// Message is the human-readable part of the summary, without perfdata.
func (r *Report) Message() string {
	switch r.Verdict.Condition {
	case latency.ConditionNoTargets:
		return "no targets found"
	case latency.ConditionNoData:
		return "no data"
	default:
		t := r.Targets[r.Verdict.Index]
		return fmt.Sprintf("best rtt %.0f ms (for %s)", r.Verdict.Best*1e3, label(t))
	}
}

// Summary is the message followed by perfdata, or just the message when
// there are no targets.
func (r *Report) Summary() string {
	if r.Verdict.Condition == latency.ConditionNoTargets {
		return r.Message()
	}
	return r.Message() + " |" + r.Perfdata()
}

// Perfdata renders one " 'addr'=<rtt>s;warn;crit;0" entry per target.
func (r *Report) Perfdata() string {
	var b strings.Builder
	b.Grow(len(r.Results) * 40)
	warn, crit := formatFloat(r.Thresholds.Warning), formatFloat(r.Thresholds.Critical)
	for i, s := range r.Results {
		fmt.Fprintf(&b, " '%s'=%ss;%s;%s;0", r.Targets[i].Addr, FormatLatency(s.Best), warn, crit)
	}
	return b.String()
}

// Output is the complete plugin output: "<name>: <STATUS> - <summary>"
// followed by one "warning: ..." line per unresolved host.
func (r *Report) Output(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s - %s", name, r.Status().Label(), r.Summary())
	for _, w := range r.Warnings {
		b.WriteString("\nwarning: ")
		b.WriteString(w)
	}
	return b.String()
}

// Result converts the report into the monitor JSON result format.
func (r *Report) Result() *probe.Result {
	replied := 0
	targets := make([]map[string]any, len(r.Results))
	for i, s := range r.Results {
		entry := map[string]any{
			"host":     r.Targets[i].Host,
			"address":  r.Targets[i].Addr.String(),
			"attempts": s.Attempts,
			"replies":  s.Replies,
		}
		if v, ok := s.Best.Value(); ok {
			entry["best_rtt_seconds"] = v
			replied++
		}
		targets[i] = entry
	}

	metrics := map[string]any{
		"targets": len(r.Results),
		"replied": replied,
	}
	if r.Verdict.Condition == latency.ConditionMeasured {
		metrics["best_rtt_seconds"] = r.Verdict.Best
	}

	data := map[string]any{
		"condition":        r.Verdict.Condition.String(),
		"targets":          targets,
		"warning_seconds":  r.Thresholds.Warning,
		"critical_seconds": r.Thresholds.Critical,
	}
	if len(r.Warnings) > 0 {
		data["warnings"] = r.Warnings
	}

	return &probe.Result{
		Status:  r.Status(),
		Message: r.Message(),
		Metrics: metrics,
		Data:    data,
	}
}

// FormatLatency renders a best latency for perfdata. Missing values render
// as "U"; values are cut to six characters.
func FormatLatency(b latency.Best) string {
	v, ok := b.Value()
	if !ok {
		return "U"
	}
	s := formatFloat(v)
	if len(s) > 6 {
		s = s[:6]
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// label names a target as "host/addr", or just "addr" when the host was
// given as a literal address.
func label(t latency.Target) string {
	addr := t.Addr.String()
	if t.Host == addr {
		return addr
	}
	return t.Host + "/" + addr
}
