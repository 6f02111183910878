package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/jarvis/internal/backup"
	"github.com/stellarlinkco/jarvis/internal/channel"
	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/cron"
	"github.com/stellarlinkco/jarvis/internal/embed"
	"github.com/stellarlinkco/jarvis/internal/gateway"
	"github.com/stellarlinkco/jarvis/internal/intent"
	"github.com/stellarlinkco/jarvis/internal/lifecycle"
	"github.com/stellarlinkco/jarvis/internal/logging"
	"github.com/stellarlinkco/jarvis/internal/rcon"
)

// ChatOptions for running the console chat with custom dependencies
type ChatOptions struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Gateway gateway.Options
}

var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "jarvis - chat butler for a Minecraft server",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the bot (telegram + scheduled jobs + metrics)",
	RunE:  runGateway,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal",
	RunE:  runChat,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the server directory, then prune old archives",
	RunE:  runBackup,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archives older than the retention window",
	RunE:  runPrune,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, backup and job status",
	RunE:  runStatus,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Show how a message would be routed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default config file",
	RunE:  runOnboard,
}

var daysFlag int

// livenessFor checks the server before a CLI backup. Tests swap it out.
var livenessFor = func(cfg *config.Config) backup.LivenessChecker { return newProbe(cfg) }

func init() {
	pruneCmd.Flags().IntVar(&daysFlag, "days", -1, "Retention window in days (default from config)")
	rootCmd.AddCommand(gatewayCmd, chatCmd, backupCmd, pruneCmd, statusCmd, classifyCmd, onboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !cfg.Channels.Telegram.Enabled || cfg.Channels.Telegram.Token == "" {
		return fmt.Errorf("telegram token not set. Run 'jarvis onboard' or set JARVIS_TELEGRAM_TOKEN")
	}

	if closer := logging.Setup(cfg.Log); closer != nil {
		defer closer.Close()
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runChat(cmd *cobra.Command, args []string) error {
	return runChatWithOptions(ChatOptions{})
}

// runChatWithOptions runs a gateway whose only channel is the terminal.
// It returns when input ends or the bot is terminated.
func runChatWithOptions(opts ChatOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Channels.Telegram.Enabled = false
	cfg.Metrics.Enabled = false

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if closer := logging.Setup(cfg.Log); closer != nil {
		defer closer.Close()
	}

	// The person at the terminal acts as the authorized user.
	sender := cfg.AuthorizedUser
	if sender == "" {
		sender = "console"
	}

	gw, err := gateway.NewWithOptions(cfg, opts.Gateway)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	console := channel.NewConsoleChannel(gw.Bus(), stdin, stdout, sender)
	gw.AddChannel(console)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-console.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintln(stdout, "jarvis chat (end input with Ctrl-D)")
	return gw.Run(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newBackupManager builds a manager for one-off CLI runs. Pruning needs no
// liveness checker; archiving always has one.
func newBackupManager(cfg *config.Config, liveness backup.LivenessChecker) *backup.Manager {
	return backup.NewManager(backup.Options{
		SourceDir: cfg.Server.Dir,
		DestDir:   cfg.Backup.Dest,
		Exclude:   cfg.Backup.Exclude,
		Retention: backup.RetentionPolicy{MaxAgeDays: cfg.Backup.RetentionDays},
	}, liveness, nil, backup.NewAuditLog(cfg.AuditLogPath()))
}

func newProbe(cfg *config.Config) *lifecycle.Probe {
	timeout := time.Duration(cfg.Server.ProbeTimeoutMs) * time.Millisecond
	return lifecycle.NewProbe(rcon.NewClient(cfg.RCONAddr(), cfg.Server.RCONPassword, timeout))
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Server.Dir == "" {
		return fmt.Errorf("server.dir not set. Edit %s or set JARVIS_SERVER_DIR", config.ConfigPath())
	}
	out := cmd.OutOrStdout()

	mgr := newBackupManager(cfg, livenessFor(cfg))

	rec, err := mgr.CreateBackup(commandContext(cmd), cfg.Server.Dir, cfg.Backup.Dest)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	fmt.Fprintf(out, "Backup created at: %s (%d bytes)\n", rec.ArchivePath, rec.SizeBytes)

	return pruneAndReport(out, mgr, cfg.Backup.Dest, cfg.Backup.RetentionDays)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	days := cfg.Backup.RetentionDays
	if daysFlag >= 0 {
		days = daysFlag
	}
	return pruneAndReport(cmd.OutOrStdout(), newBackupManager(cfg, nil), cfg.Backup.Dest, days)
}

func pruneAndReport(out io.Writer, mgr *backup.Manager, dest string, days int) error {
	deleted, err := mgr.PruneOldBackups(dest, backup.RetentionPolicy{MaxAgeDays: days})
	for _, path := range deleted {
		fmt.Fprintf(out, "Deleted old backup: %s\n", path)
	}
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if len(deleted) == 0 {
		fmt.Fprintf(out, "No archives older than %d days\n", days)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(out, "Console: %s\n", cfg.RCONAddr())

	fmt.Fprintf(out, "Server: %s\n", newProbe(cfg).State(commandContext(cmd)))

	fmt.Fprintf(out, "Backups: %s (keep %d days)\n", cfg.Backup.Dest, cfg.Backup.RetentionDays)
	records, err := backup.ListBackups(cfg.Backup.Dest)
	switch {
	case err != nil && os.IsNotExist(err):
		fmt.Fprintln(out, "Archives: none")
	case err != nil:
		fmt.Fprintf(out, "Archives: error (%v)\n", err)
	case len(records) == 0:
		fmt.Fprintln(out, "Archives: none")
	default:
		latest := records[len(records)-1]
		fmt.Fprintf(out, "Archives: %d, latest %s (%s)\n", len(records), filepath.Base(latest.ArchivePath), latest.CreatedAt.Format(time.DateTime))
	}

	jobs, err := cron.LoadJobs(config.JobStorePath())
	if err != nil {
		fmt.Fprintf(out, "Jobs: error (%v)\n", err)
		return nil
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "Jobs: none")
		return nil
	}
	fmt.Fprintln(out, "Jobs:")
	for _, job := range jobs {
		fmt.Fprintf(out, "  %s [%s] enabled=%v last=%s\n", job.Name, scheduleDisplay(job.Schedule), job.Enabled, lastRunDisplay(job.State))
	}
	return nil
}

func scheduleDisplay(s cron.Schedule) string {
	if s.Kind == cron.KindEvery {
		return "every " + (time.Duration(s.EveryMs) * time.Millisecond).String()
	}
	return s.Expr
}

func lastRunDisplay(st cron.JobState) string {
	if st.LastRunAtMs == 0 {
		return "never"
	}
	at := time.UnixMilli(st.LastRunAtMs).Format(time.DateTime)
	if st.LastStatus == "error" {
		return fmt.Sprintf("%s error: %s", at, st.LastError)
	}
	return fmt.Sprintf("%s %s", at, st.LastStatus)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	text := strings.Join(args, " ")

	routes := intent.DefaultRoutes(intent.Thresholds{
		Action: cfg.Intent.ActionThreshold,
		Chat:   cfg.Intent.ChatThreshold,
	})
	scorer := intent.NewRouteScorer(embed.New(cfg.Intent.Embedding), routes)
	router := intent.NewRouter(scorer, routes, cfg.Intent.EasterEgg)

	return printClassification(commandContext(cmd), cmd.OutOrStdout(), router, text)
}

func printClassification(ctx context.Context, out io.Writer, router *intent.Router, text string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tSCORE\tTHRESHOLD\tMATCH")
	for _, s := range router.Scores(ctx, text) {
		match := ""
		if s.Matched() {
			match = "yes"
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.0f\t%s\n", s.Action, s.Score, s.Threshold, match)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	action := router.Classify(ctx, text)
	if action == intent.Unrecognized {
		if cmdAction, ok := intent.ParseCommand(text); ok {
			fmt.Fprintf(out, "Action: %s (command)\n", cmdAction)
			return nil
		}
	}
	fmt.Fprintf(out, "Action: %s\n", action)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set server.dir, server.startCommand and server.rconPassword\n", cfgPath)
	fmt.Fprintln(out, "  2. Set JARVIS_TELEGRAM_TOKEN (or channels.telegram.token) and authorizedUser")
	fmt.Fprintln(out, "  3. Run 'jarvis chat' to try it locally, then 'jarvis gateway'")

	return nil
}
