// Package main is the entrypoint for the scheduler Lambda function.
//
// EventBridge rules invoke the function on a fixed cadence with a JobPayload
// naming the job category. The handler runs that category through the
// shared scheduler.Runner, which serializes overlapping invocations per
// category and records job history.
//
// A failed run is returned as an error so the invocation shows up as failed
// and EventBridge retry policy applies. Partial and already_running results
// succeed; their detail is in the returned RunResult.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"growcycle/internal/app"
	"growcycle/internal/config"
	"growcycle/internal/scheduler"
	"growcycle/internal/types"
)

// JobRunner is the part of *scheduler.Runner the handler calls.
type JobRunner interface {
	Run(ctx context.Context, job scheduler.JobCategory, now time.Time) scheduler.RunResult
}

// Handler adapts EventBridge payloads onto a JobRunner.
type Handler struct {
	Runner JobRunner
	Clock  types.Clock
	Logger *slog.Logger
}

// Handle runs the category named in payload.
func (h *Handler) Handle(ctx context.Context, payload scheduler.JobPayload) (scheduler.RunResult, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	job, err := scheduler.ParseJobCategory(string(payload.Job))
	if err != nil {
		logger.ErrorContext(ctx, "rejecting scheduler payload", "job", payload.Job, "error", err)
		return scheduler.RunResult{}, err
	}

	now := clock.Now()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	logger.InfoContext(ctx, "scheduler handler invoked",
		"job", string(job),
		"reference_time", now.Format(time.RFC3339),
	)

	result := h.Runner.Run(ctx, job, now)

	if result.Status == scheduler.StatusFailed {
		return result, fmt.Errorf("job %s failed", job)
	}

	logger.InfoContext(ctx, "scheduler run finished",
		"job", string(job),
		"status", string(result.Status),
	)
	return result, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stdout)
	logger.Info("scheduler Lambda initializing (cold start)", "build", cfg.Build.String())

	// Components are built once per cold start and reused across invocations.
	comps, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build components", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		Runner: comps.Runner,
		Clock:  types.RealClock{},
		Logger: logger,
	}

	logger.Info("scheduler Lambda initialized")
	lambda.Start(handler.Handle)
}
