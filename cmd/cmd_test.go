package cmd

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jandubois/multiping/internal/db"
	"github.com/jandubois/multiping/internal/probe"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPingWithoutMatchingTargetsIsUnknown(t *testing.T) {
	out, err := execute(t, "ping", "--ipv6", "192.0.2.1")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.ExitCode() != 3 {
		t.Errorf("expected exit code 3, got %d", statusErr.ExitCode())
	}
	if expected := "multiping: UNKNOWN - no targets found\n"; out != expected {
		t.Errorf("expected %q, got %q", expected, out)
	}
}

func TestPingRejectsBadThresholds(t *testing.T) {
	_, err := execute(t, "ping", "-w", "600", "-c", "500", "192.0.2.1")
	if err == nil {
		t.Fatal("expected an argument error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Error("argument errors must not look like a check status")
	}
}

func TestPingRequiresTarget(t *testing.T) {
	if _, err := execute(t, "ping"); err == nil {
		t.Error("expected an error without targets")
	}
}

func TestDescribe(t *testing.T) {
	out, err := execute(t, "--describe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var descs []probe.Description
	if err := json.Unmarshal([]byte(out), &descs); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(descs) != 1 || descs[0].Subcommand != "ping" {
		t.Errorf("unexpected descriptions %+v", descs)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status probe.Status
		code   int
	}{
		{probe.StatusWarning, 1},
		{probe.StatusCritical, 2},
		{probe.StatusUnknown, 3},
	}
	for _, tt := range tests {
		err := &StatusError{Status: tt.status}
		if err.ExitCode() != tt.code {
			t.Errorf("expected exit code %d for %s, got %d", tt.code, tt.status, err.ExitCode())
		}
		if !strings.Contains(err.Error(), tt.status.Label()) {
			t.Errorf("expected %q in error %q", tt.status.Label(), err.Error())
		}
	}
}

func TestWriteHistory(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	runs := []*db.Run{
		{
			Name:      "uplink",
			Status:    probe.StatusWarning,
			Message:   "best rtt 70 ms (for 192.0.2.2)",
			BestRTT:   sql.NullFloat64{Float64: 0.07, Valid: true},
			Duration:  1500 * time.Millisecond,
			StartedAt: now.Add(-5 * time.Minute),
			Targets: []db.RunTarget{
				{Address: "192.0.2.2", BestRTT: sql.NullFloat64{Float64: 0.07, Valid: true}, Attempts: 5, Replies: 1},
				{Address: "192.0.2.3", Attempts: 5},
			},
		},
	}

	var out bytes.Buffer
	if err := writeHistory(&out, runs, true, now); err != nil {
		t.Fatalf("writeHistory: %v", err)
	}
	text := out.String()
	for _, want := range []string{"STARTED", "5 minutes ago", "uplink", "WARNING", "70.0 ms", "1.5s", "192.0.2.3", "0/5"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestToHistoryRun(t *testing.T) {
	r := &db.Run{ID: "x", Status: probe.StatusCritical, Duration: 2 * time.Second}
	h := toHistoryRun(r)
	if h.BestRTTSeconds != nil {
		t.Error("expected no best rtt")
	}
	if h.DurationMs != 2000 || h.Status != "critical" {
		t.Errorf("unexpected run %+v", h)
	}
}

func TestHistoryReadsDatabaseFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	configPath := filepath.Join(dir, "multiping.yaml")
	if err := os.WriteFile(configPath, []byte("database: "+dbPath+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Cleanup(func() { rootCmd.PersistentFlags().Set("config", "") })

	if _, err := execute(t, "migrate", "--config", configPath); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database at config path: %v", err)
	}

	out, err := execute(t, "history", "--config", configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.HasPrefix(out, "STARTED") {
		t.Errorf("expected table header, got %q", out)
	}
}
