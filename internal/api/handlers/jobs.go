// Package handlers contains the HTTP handlers of the growcycle API.
//
// Handlers depend on small locally declared interfaces so they can be tested
// with hand-written fakes; cmd/api wires the concrete scheduler and
// repositories.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"growcycle/internal/core"
	"growcycle/internal/scheduler"
	"growcycle/internal/types"
)

// JobRunner is the part of *scheduler.Runner the jobs endpoints use.
type JobRunner interface {
	Run(ctx context.Context, job scheduler.JobCategory, now time.Time) scheduler.RunResult
	Stats() scheduler.JobRunStats
}

// JobsHandler triggers job runs and reports their statistics.
type JobsHandler struct {
	runner    JobRunner
	clock     types.Clock
	validator *core.Validator
	logger    *slog.Logger
}

// NewJobsHandler creates a JobsHandler. A nil clock uses the wall clock and
// a nil validator gets a fresh one.
func NewJobsHandler(runner JobRunner, clock types.Clock, val *core.Validator, logger *slog.Logger) *JobsHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &JobsHandler{runner: runner, clock: clock, validator: val, logger: logger}
}

// RegisterRoutes mounts the job endpoints. auth guards the trigger only;
// statistics are read-only aggregate counts.
func (h *JobsHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.With(auth).Post("/jobs", h.HandleTrigger)
	r.Get("/jobs/stats", h.HandleStats)
}

// triggerRequest is the optional JSON body of POST /jobs. Query parameters
// take precedence over the body.
type triggerRequest struct {
	Job           string `json:"job"`
	ReferenceTime string `json:"reference_time" validate:"omitempty,rfc3339"`
}

// HandleTrigger handles POST /jobs?job=<category>[&reference_time=RFC3339].
//
// The run is detached from the request context so a client disconnect or the
// request deadline cannot abort a run half way through its writes. Every run
// outcome is answered with 200 and the RunResult; its status is one of
// completed, partial, already_running (the category was busy) or failed (a
// category could not load its input). Callers must read the status rather
// than rely on the HTTP code.
func (h *JobsHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	req := triggerRequest{
		Job:           r.URL.Query().Get("job"),
		ReferenceTime: r.URL.Query().Get("reference_time"),
	}
	if req.Job == "" && r.ContentLength > 0 &&
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	job, err := scheduler.ParseJobCategory(req.Job)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	if req.ReferenceTime != "" {
		// Already checked by the rfc3339 tag.
		ref, _ := time.Parse(time.RFC3339, req.ReferenceTime)
		now = ref.UTC()
	}

	logger := types.LoggerFromContext(r.Context(), h.logger)
	logger.Info("job triggered over http",
		slog.String("job", string(job)),
		slog.Time("reference_time", now),
	)

	result := h.runner.Run(context.WithoutCancel(r.Context()), job, now)
	core.JSON(w, r, http.StatusOK, result)
}

// HandleStats handles GET /jobs/stats.
func (h *JobsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.runner.Stats())
}
