package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jandubois/multiping/internal/probe"
	"github.com/jandubois/multiping/internal/report"
)

// Run is one stored check execution.
type Run struct {
	ID        string
	Name      string
	Status    probe.Status
	Condition string
	Message   string
	BestRTT   sql.NullFloat64
	Warning   float64
	Critical  float64
	Warnings  []string
	Duration  time.Duration
	StartedAt time.Time
	Targets   []RunTarget
}

// RunTarget is the stored result of one target within a run.
type RunTarget struct {
	Host     string
	Address  string
	BestRTT  sql.NullFloat64
	Attempts int
	Replies  int
}

// NewRun converts a rendered report into a Run ready for InsertRun.
func NewRun(name string, r *report.Report, startedAt time.Time, duration time.Duration) *Run {
	run := &Run{
		Name:      name,
		Status:    r.Status(),
		Condition: r.Verdict.Condition.String(),
		Message:   r.Message(),
		Warning:   r.Thresholds.Warning,
		Critical:  r.Thresholds.Critical,
		Warnings:  r.Warnings,
		Duration:  duration,
		StartedAt: startedAt,
	}
	if v, ok := bestOf(r); ok {
		run.BestRTT = sql.NullFloat64{Float64: v, Valid: true}
	}
	for i, s := range r.Results {
		t := RunTarget{
			Host:     r.Targets[i].Host,
			Address:  r.Targets[i].Addr.String(),
			Attempts: s.Attempts,
			Replies:  s.Replies,
		}
		if v, ok := s.Best.Value(); ok {
			t.BestRTT = sql.NullFloat64{Float64: v, Valid: true}
		}
		run.Targets = append(run.Targets, t)
	}
	return run
}

func bestOf(r *report.Report) (float64, bool) {
	if r.Verdict.Index < 0 {
		return 0, false
	}
	return r.Verdict.Best, true
}

// InsertRun stores run and its targets in one transaction. An empty ID is
// filled with a new UUID.
func (d *DB) InsertRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO check_runs (id, name, status, condition, message, best_rtt_seconds,
			warning_seconds, critical_seconds, warnings, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Name, string(run.Status), run.Condition, run.Message, run.BestRTT,
		run.Warning, run.Critical, JSONStringArray(run.Warnings), run.Duration.Milliseconds(), FormatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, t := range run.Targets {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO check_targets (run_id, position, host, address, best_rtt_seconds, attempts, replies)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, t.Host, t.Address, t.BestRTT, t.Attempts, t.Replies)
		if err != nil {
			return fmt.Errorf("insert target %s: %w", t.Address, err)
		}
	}

	return tx.Commit()
}

// LastStatus returns the status of the most recent run named name. ok is
// false when no run was stored yet.
func (d *DB) LastStatus(ctx context.Context, name string) (status probe.Status, ok bool, err error) {
	var s string
	err = d.db.QueryRowContext(ctx, `
		SELECT status FROM check_runs
		WHERE name = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, name).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query last status: %w", err)
	}
	return probe.Status(s), true, nil
}

// RecentRuns returns up to limit runs, newest first, including their
// targets. An empty name matches every check.
func (d *DB) RecentRuns(ctx context.Context, name string, limit int) ([]*Run, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, status, condition, message, best_rtt_seconds,
			warning_seconds, critical_seconds, warnings, duration_ms, started_at
		FROM check_runs
		WHERE ? = '' OR name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, name, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []*Run
	for rows.Next() {
		var run Run
		var status string
		var warnings JSONStringArray
		var durationMs int64
		var startedAt NullTime
		err := rows.Scan(&run.ID, &run.Name, &status, &run.Condition, &run.Message, &run.BestRTT,
			&run.Warning, &run.Critical, &warnings, &durationMs, &startedAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = probe.Status(status)
		run.Warnings = warnings
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.StartedAt = startedAt.Time
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, run := range runs {
		if run.Targets, err = d.runTargets(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (d *DB) runTargets(ctx context.Context, runID string) ([]RunTarget, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT host, address, best_rtt_seconds, attempts, replies
		FROM check_targets
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var targets []RunTarget
	for rows.Next() {
		var t RunTarget
		if err := rows.Scan(&t.Host, &t.Address, &t.BestRTT, &t.Attempts, &t.Replies); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
