package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jandubois/multiping/internal/config"
	"github.com/jandubois/multiping/internal/probe"
	"github.com/jandubois/multiping/internal/probes"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/jandubois/multiping/cmd.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "multiping",
	Short: "Best-of latency check across many hosts",
	Long: `Multiping sends a few ICMP echo requests to every address of every given
host in parallel and reports the best round-trip time, classified against
warning and critical thresholds with monitoring-plugin exit codes.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

const probeGroupID = "probes"

// StatusError reports a completed check whose status is not OK. Its output
// has already been written.
type StatusError struct {
	Status probe.Status
}

func (e *StatusError) Error() string {
	return "check status " + e.Status.Label()
}

// ExitCode maps the status to monitoring-plugin exit codes.
func (e *StatusError) ExitCode() int {
	return e.Status.ExitCode()
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: probeGroupID, Title: "Built-in Probes:"})
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().StringP("database", "d", "", "SQLite database path for run history")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.Flags().BoolP("version", "v", false, "Print version and exit")
	rootCmd.Flags().Bool("describe", false, "Output built-in probe descriptions as JSON array")

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "multiping version %s\n", Version)
			return nil
		}
		if describe, _ := cmd.Flags().GetBool("describe"); describe {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(probes.GetAllDescriptions())
		}
		return cmd.Help()
	}
}

// setupLogging sends structured logs to stderr so stdout only carries the
// check output.
func setupLogging(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return fmt.Errorf("invalid log level %q", name)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// databasePath returns the history database from flags, environment or
// config file. It is empty when none is configured.
func databasePath(cmd *cobra.Command) (string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return "", err
	}
	return cfg.Database, nil
}
