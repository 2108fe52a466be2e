// Package main implements the job-runner CLI for invoking scheduler job
// categories directly, bypassing EventBridge and the Lambda shim.
//
// This tool is intended for local development, manual backfilling, and
// operational debugging. It builds the same component graph as the Lambda
// and calls Runner.Run, so locks, cooldowns and job history behave exactly
// as in production.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --job=reminders
//	go run ./cmd/tools/job-runner --job=alerts --reference-time=2025-03-01T06:00:00Z
//	go run ./cmd/tools/job-runner --job=all --dry-run
//	go run ./cmd/tools/job-runner --job=cleanup --payload
//	go run ./cmd/tools/job-runner --list
//
// Configuration comes from the environment (or a .env file). --dry-run
// evaluates the rules and prints the notifications that would fire without
// claiming cooldowns or writing anything. --payload prints the EventBridge
// JSON payload for manual Lambda invocation and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"growcycle/internal/app"
	"growcycle/internal/config"
	"growcycle/internal/rules"
	"growcycle/internal/scheduler"
)

// jobDescriptions is shown by --list, in AllJobCategories order plus "all".
var jobDescriptions = map[scheduler.JobCategory]string{
	scheduler.JobReminders:    "Irrigation and fertilization reminders",
	scheduler.JobAlerts:       "Harvest, phase transition and severe problem alerts",
	scheduler.JobAchievements: "Completed cycle achievements",
	scheduler.JobCleanup:      "Purge old notifications and expired cooldowns",
	scheduler.JobMaintenance:  "Redeliver notifications whose hand-off failed",
	scheduler.JobAll:          "Every category above, in order",
}

// errUsage signals that usage has already been printed.
var errUsage = errors.New("usage")

type options struct {
	job           scheduler.JobCategory
	referenceTime *time.Time
	list          bool
	dryRun        bool
	payload       bool
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(2)
	}

	if opts.list {
		engine, err := listEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printJobs(os.Stdout, engine)
		return
	}
	if opts.payload {
		if err := printPayload(os.Stdout, opts); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs parses and validates the command line.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("job-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)

	jobFlag := fs.String("job", "", "Job category to run (see --list)")
	refTimeFlag := fs.String("reference-time", "", "Override reference time (RFC3339, e.g., 2025-03-01T06:00:00Z)")
	listFlag := fs.Bool("list", false, "List all job categories and exit")
	dryRunFlag := fs.Bool("dry-run", false, "Print the notifications that would fire without writing anything")
	payloadFlag := fs.Bool("payload", false, "Print the EventBridge JSON payload and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(stderr, "Run scheduler job categories directly, bypassing Lambda.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return options{}, errUsage
		}
		return options{}, err
	}

	opts := options{list: *listFlag, dryRun: *dryRunFlag, payload: *payloadFlag}
	if opts.list {
		return opts, nil
	}

	if *jobFlag == "" {
		fs.Usage()
		return options{}, errors.New("--job is required")
	}
	job, err := scheduler.ParseJobCategory(*jobFlag)
	if err != nil {
		return options{}, fmt.Errorf("unknown job %q, use --list to see categories", *jobFlag)
	}
	opts.job = job

	if *refTimeFlag != "" {
		t, err := time.Parse(time.RFC3339, *refTimeFlag)
		if err != nil {
			return options{}, fmt.Errorf("invalid --reference-time %q: expected RFC3339", *refTimeFlag)
		}
		t = t.UTC()
		opts.referenceTime = &t
	}

	if opts.dryRun && opts.payload {
		return options{}, errors.New("--dry-run and --payload are mutually exclusive")
	}
	return opts, nil
}

// execute builds the components and runs or previews the job.
func execute(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel, os.Stderr)

	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	now := time.Now().UTC()
	if opts.referenceTime != nil {
		now = *opts.referenceTime
	}

	if opts.dryRun {
		drafts, err := comps.Runner.Preview(ctx, opts.job, now)
		if err != nil {
			return fmt.Errorf("previewing %s: %w", opts.job, err)
		}
		logger.Info("dry run complete", "job", string(opts.job), "notifications", len(drafts))
		return writeJSON(os.Stdout, drafts)
	}

	result := comps.Runner.Run(ctx, opts.job, now)
	if err := writeJSON(os.Stdout, result); err != nil {
		return err
	}
	if result.Status == scheduler.StatusFailed {
		return fmt.Errorf("job %s failed", opts.job)
	}
	return nil
}

// listEngine builds the rule registry shown by --list. Without a loadable
// configuration the default thresholds are shown.
func listEngine() (*rules.Engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return rules.NewEngine(rules.DefaultRules(rules.DefaultThresholds())...)
	}
	return app.NewEngine(cfg.Rules)
}

func printJobs(w io.Writer, engine *rules.Engine) {
	fmt.Fprintf(w, "Available job categories:\n\n")
	jobs := append(scheduler.AllJobCategories(), scheduler.JobAll)
	for _, job := range jobs {
		fmt.Fprintf(w, "  %-14s %s\n", job, jobDescriptions[job])
	}

	fmt.Fprintf(w, "\nRules:\n\n")
	for _, ri := range engine.Rules() {
		state := "enabled"
		if !ri.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "  %-28s %-13s cooldown %4dd  %s\n", ri.ID, ri.Category, ri.CooldownDays, state)
	}
}

func printPayload(w io.Writer, opts options) error {
	return writeJSON(w, scheduler.JobPayload{Job: opts.job, ReferenceTime: opts.referenceTime})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
