package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/jandubois/multiping/internal/db"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent check runs from the history database",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("name", "", "Only show runs of this check")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs")
	historyCmd.Flags().Bool("targets", false, "Include per-target results")
	historyCmd.Flags().Bool("json", false, "Print runs as JSON")
}

type historyTarget struct {
	Host           string   `json:"host"`
	Address        string   `json:"address"`
	BestRTTSeconds *float64 `json:"best_rtt_seconds,omitempty"`
	Attempts       int      `json:"attempts"`
	Replies        int      `json:"replies"`
}

type historyRun struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	Condition      string          `json:"condition"`
	Message        string          `json:"message"`
	BestRTTSeconds *float64        `json:"best_rtt_seconds,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
	StartedAt      time.Time       `json:"started_at"`
	Targets        []historyTarget `json:"targets,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := databasePath(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("history requires --database")
	}
	name, _ := cmd.Flags().GetString("name")
	limit, _ := cmd.Flags().GetInt("limit")
	withTargets, _ := cmd.Flags().GetBool("targets")
	asJSON, _ := cmd.Flags().GetBool("json")

	database, err := db.Connect(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.RecentRuns(cmd.Context(), name, limit)
	if err != nil {
		return err
	}

	if asJSON {
		out := make([]historyRun, 0, len(runs))
		for _, r := range runs {
			out = append(out, toHistoryRun(r))
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	}
	return writeHistory(cmd.OutOrStdout(), runs, withTargets, time.Now())
}

func toHistoryRun(r *db.Run) historyRun {
	h := historyRun{
		ID:         r.ID,
		Name:       r.Name,
		Status:     string(r.Status),
		Condition:  r.Condition,
		Message:    r.Message,
		Warnings:   r.Warnings,
		DurationMs: r.Duration.Milliseconds(),
		StartedAt:  r.StartedAt,
	}
	if r.BestRTT.Valid {
		v := r.BestRTT.Float64
		h.BestRTTSeconds = &v
	}
	for _, t := range r.Targets {
		ht := historyTarget{Host: t.Host, Address: t.Address, Attempts: t.Attempts, Replies: t.Replies}
		if t.BestRTT.Valid {
			v := t.BestRTT.Float64
			ht.BestRTTSeconds = &v
		}
		h.Targets = append(h.Targets, ht)
	}
	return h
}

func writeHistory(w io.Writer, runs []*db.Run, withTargets bool, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tNAME\tSTATUS\tBEST\tDURATION\tMESSAGE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s ago\t%s\t%s\t%s\t%s\t%s\n",
			units.HumanDuration(now.Sub(r.StartedAt)),
			r.Name,
			r.Status.Label(),
			formatRTT(r.BestRTT.Float64, r.BestRTT.Valid),
			r.Duration.Round(time.Millisecond),
			r.Message,
		)
		if !withTargets {
			continue
		}
		for _, t := range r.Targets {
			fmt.Fprintf(tw, "\t  %s\t\t%s\t%d/%d\t\n",
				t.Address,
				formatRTT(t.BestRTT.Float64, t.BestRTT.Valid),
				t.Replies, t.Attempts,
			)
		}
	}
	return tw.Flush()
}

func formatRTT(seconds float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f ms", seconds*1e3)
}
