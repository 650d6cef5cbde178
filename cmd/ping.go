package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jandubois/multiping/internal/config"
	"github.com/jandubois/multiping/internal/db"
	"github.com/jandubois/multiping/internal/notify"
	"github.com/jandubois/multiping/internal/pinger"
	"github.com/jandubois/multiping/internal/probe"
	"github.com/jandubois/multiping/internal/probes/multiping"
	"github.com/jandubois/multiping/internal/report"
	"github.com/jandubois/multiping/internal/resolve"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   multiping.Name + " [flags] TARGET...",
	Short: "Measure the best round-trip time to a set of hosts",
	Long: `Every address of every TARGET is probed in parallel with up to five echo
requests; probing an address stops early once a reply is faster than the
warning threshold. The best round-trip time over all addresses decides the
status. Exit codes: 0 ok, 1 warning, 2 critical, 3 unknown or error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPing,
}

func init() {
	pingCmd.GroupID = probeGroupID
	rootCmd.AddCommand(pingCmd)

	f := pingCmd.Flags()
	f.Float64P("warning", "w", 50, "Warning threshold in milliseconds")
	f.Float64P("critical", "c", 500, "Critical threshold in milliseconds")
	f.BoolP("ipv4", "4", false, "Only probe IPv4 addresses")
	f.BoolP("ipv6", "6", false, "Only probe IPv6 addresses")
	f.String("backend", pinger.BackendICMP, "Echo implementation (icmp, go-ping)")
	f.Duration("timeout", 2*time.Second, "Reply wait per echo request")
	f.Duration("interval", 500*time.Millisecond, "Minimum spacing between requests to one address")
	f.String("payload-size", "56B", "Echo payload size")
	f.Bool("unprivileged", false, "Use unprivileged datagram ICMP sockets")
	f.String("dns-server", "", "Resolve names against this DNS server instead of the system resolver")
	f.String("name", "multiping", "Check name used in output, history and metrics")
	f.String("textfile", "", "Write Prometheus metrics to this node_exporter textfile")
	f.Bool("json", false, "Print the result as monitor JSON")
	f.String("ntfy-server", "", "ntfy server URL (default https://ntfy.sh)")
	f.String("ntfy-topic", "", "ntfy topic for status change notifications (requires --database)")
	f.String("ntfy-token", "", "ntfy access token")
	pingCmd.MarkFlagsMutuallyExclusive("ipv4", "ipv6")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	th, err := multiping.Thresholds(cfg.Warning, cfg.Critical)
	if err != nil {
		return err
	}
	ipv4, _ := cmd.Flags().GetBool("ipv4")
	ipv6, _ := cmd.Flags().GetBool("ipv6")
	family, err := resolve.FamilyFromFlags(ipv4, ipv6)
	if err != nil {
		return err
	}
	size, err := pinger.ParsePayloadSize(cfg.PayloadSize)
	if err != nil {
		return err
	}
	tr, err := pinger.NewTransport(cfg.Backend, pinger.Options{
		Timeout:      cfg.Timeout,
		Interval:     cfg.Interval,
		PayloadSize:  size,
		Unprivileged: cfg.Unprivileged,
	})
	if err != nil {
		return err
	}

	var lookup resolve.Lookuper
	if cfg.DNSServer != "" {
		lookup = resolve.NewDNSLookuper(cfg.DNSServer)
	}
	resolver := resolve.New(family, lookup)

	slog.Debug("starting check", "name", cfg.Name, "hosts", len(args), "backend", cfg.Backend, "family", family)
	startedAt := time.Now()
	rep, err := multiping.Run(ctx, resolver, tr, args, th)
	if err != nil {
		return err
	}
	duration := time.Since(startedAt)

	if err := printReport(cmd, cfg, rep); err != nil {
		return err
	}

	// History, notifications and metrics never change the check status.
	if cfg.Database != "" {
		if err := recordRun(ctx, cfg, rep, startedAt, duration); err != nil {
			slog.Error("failed to record run", "database", cfg.Database, "error", err)
		}
	}
	if cfg.Textfile != "" {
		if err := multiping.ExportMetrics(cfg.Textfile, cfg.Name, rep, startedAt.Add(duration)); err != nil {
			slog.Error("failed to export metrics", "path", cfg.Textfile, "error", err)
		}
	}

	if status := rep.Status(); status != probe.StatusOK {
		return &StatusError{Status: status}
	}
	return nil
}

func printReport(cmd *cobra.Command, cfg *config.CheckConfig, rep *report.Report) error {
	out := cmd.OutOrStdout()
	if cfg.JSON {
		return json.NewEncoder(out).Encode(rep.Result())
	}
	_, err := fmt.Fprintln(out, rep.Output(cfg.Name))
	return err
}

func recordRun(ctx context.Context, cfg *config.CheckConfig, rep *report.Report, startedAt time.Time, duration time.Duration) error {
	if err := db.RunMigrations(cfg.Database); err != nil {
		return err
	}
	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	var dispatcher *notify.Dispatcher
	if cfg.NotifyEnabled() {
		dispatcher = notify.NewDispatcher(notify.NewNtfyChannel(cfg.Ntfy))
	}
	return multiping.NewRecorder(database, dispatcher).Record(ctx, cfg.Name, rep, startedAt, duration)
}
