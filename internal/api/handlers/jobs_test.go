package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"growcycle/internal/config"
	"growcycle/internal/core"
	"growcycle/internal/scheduler"
	"growcycle/internal/types"
)

const testSecret = "trigger-secret"

var clockNow = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock runner ---

type runCall struct {
	ctx context.Context
	job scheduler.JobCategory
	now time.Time
}

type mockJobRunner struct {
	mu     sync.Mutex
	calls  []runCall
	status scheduler.RunStatus
	stats  scheduler.JobRunStats
}

func (m *mockJobRunner) Run(ctx context.Context, job scheduler.JobCategory, now time.Time) scheduler.RunResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, runCall{ctx: ctx, job: job, now: now})
	status := m.status
	if status == "" {
		status = scheduler.StatusCompleted
	}
	return scheduler.RunResult{Job: job, Status: status, Stats: m.stats, Timestamp: now}
}

func (m *mockJobRunner) Stats() scheduler.JobRunStats { return m.stats }

// newJobsServer mounts the jobs routes behind the real middleware chain so
// authentication ordering is exercised.
func newJobsServer(t *testing.T, runner JobRunner) http.Handler {
	t.Helper()
	cfg := &config.Config{Environment: "local", Jobs: config.JobsConfig{TriggerSecret: testSecret}}
	srv, err := core.NewServer(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	h := NewJobsHandler(runner, types.FixedClock{At: clockNow}, srv.Validator, testLogger())
	srv.RouteRegistrars = []core.RouteRegistrar{func(r chi.Router) {
		h.RegisterRoutes(r, srv.RequireTriggerSecret)
	}}
	srv.MountRoutes()
	return srv.Handler()
}

func trigger(t *testing.T, h http.Handler, target, secret string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return resp.Error.Code
}

// --- Tests ---

func TestHandleTrigger_Success(t *testing.T) {
	runner := &mockJobRunner{}
	h := newJobsServer(t, runner)

	rec := trigger(t, h, "/jobs?job=reminders", testSecret, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result scheduler.RunResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Job != scheduler.JobReminders || result.Status != scheduler.StatusCompleted {
		t.Errorf("result = %s/%s, want reminders/completed", result.Job, result.Status)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("Run called %d times, want 1", len(runner.calls))
	}
	if !runner.calls[0].now.Equal(clockNow) {
		t.Errorf("now = %v, want clock time %v", runner.calls[0].now, clockNow)
	}
	if runner.calls[0].ctx.Done() != nil {
		t.Error("run context should be detached from the request")
	}
}

func TestHandleTrigger_AuthBeforeValidation(t *testing.T) {
	runner := &mockJobRunner{}
	h := newJobsServer(t, runner)

	tests := []struct {
		name     string
		target   string
		secret   string
		wantCode string
	}{
		{"missing secret with unknown job", "/jobs?job=harvest", "", "auth_token_missing"},
		{"wrong secret with missing job", "/jobs", "wrong", "auth_token_invalid"},
		{"wrong secret with valid job", "/jobs?job=all", "wrong", "auth_token_invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := trigger(t, h, tt.target, tt.secret, "")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if got := errorCode(t, rec); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
	if len(runner.calls) != 0 {
		t.Errorf("Run called %d times for unauthenticated requests", len(runner.calls))
	}
}

func TestHandleTrigger_BadRequests(t *testing.T) {
	runner := &mockJobRunner{}
	h := newJobsServer(t, runner)

	tests := []struct {
		name     string
		target   string
		body     string
		wantCode string
	}{
		{"missing job", "/jobs", "", "validation_missing_required_field"},
		{"unknown job", "/jobs?job=harvest", "", "validation_unknown_job"},
		{"bad reference time", "/jobs?job=alerts&reference_time=tomorrow", "", "validation_invalid_reference_time"},
		{"malformed body", "/jobs", `{"job":`, "validation_invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := trigger(t, h, tt.target, testSecret, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := errorCode(t, rec); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
	if len(runner.calls) != 0 {
		t.Errorf("Run called %d times for invalid requests", len(runner.calls))
	}
}

func TestHandleTrigger_ReferenceTimeFieldError(t *testing.T) {
	runner := &mockJobRunner{}
	h := newJobsServer(t, runner)

	for _, tc := range []struct{ target, body string }{
		{"/jobs?job=alerts&reference_time=2025-13-01", ""},
		{"/jobs", `{"job":"alerts","reference_time":"next tuesday"}`},
	} {
		rec := trigger(t, h, tc.target, testSecret, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		var resp core.APIErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error.Code != "validation_invalid_reference_time" {
			t.Errorf("code = %q", resp.Error.Code)
		}
		fields, _ := resp.Error.Details["errors"].([]any)
		if len(fields) != 1 {
			t.Fatalf("details = %#v, want one field error", resp.Error.Details)
		}
		field, _ := fields[0].(map[string]any)
		if field["field"] != "reference_time" || field["code"] != "rfc3339" {
			t.Errorf("field error = %#v", field)
		}
	}
	if len(runner.calls) != 0 {
		t.Errorf("Run called %d times", len(runner.calls))
	}
}

func TestHandleTrigger_ReferenceTime(t *testing.T) {
	runner := &mockJobRunner{}
	h := newJobsServer(t, runner)

	rec := trigger(t, h, "/jobs?job=achievements&reference_time=2025-06-01T12:00:00%2B02:00", testSecret, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if got := runner.calls[0].now; !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("now = %v, want %v in UTC", got, want)
	}
}

func TestHandleTrigger_JSONBody(t *testing.T) {
	runner := &mockJobRunner{}
	h := newJobsServer(t, runner)

	rec := trigger(t, h, "/jobs", testSecret, `{"job":"cleanup","reference_time":"2025-01-01T00:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	call := runner.calls[0]
	if call.job != scheduler.JobCleanup {
		t.Errorf("job = %q, want cleanup", call.job)
	}
	if !call.now.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("now = %v", call.now)
	}
}

func TestHandleTrigger_EveryOutcomeIs200(t *testing.T) {
	for _, status := range []scheduler.RunStatus{
		scheduler.StatusPartial,
		scheduler.StatusAlreadyRunning,
		scheduler.StatusFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			runner := &mockJobRunner{status: status}
			h := newJobsServer(t, runner)

			rec := trigger(t, h, "/jobs?job=alerts", testSecret, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"status":"`+string(status)+`"`) {
				t.Errorf("body = %s, want %s", rec.Body.String(), status)
			}
		})
	}
}

func TestHandleStats_NoAuthRequired(t *testing.T) {
	runner := &mockJobRunner{stats: scheduler.JobRunStats{
		IsRunning: true,
		Running:   []scheduler.JobCategory{scheduler.JobAlerts},
		RunCounts: map[scheduler.JobCategory]int{scheduler.JobAlerts: 3},
		RulesEngine: scheduler.RulesEngineStats{
			TotalRules: 7, ActiveRules: 6, CooldownsActive: 2,
		},
	}}
	h := newJobsServer(t, runner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats scheduler.JobRunStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !stats.IsRunning || stats.RunCounts[scheduler.JobAlerts] != 3 || stats.RulesEngine.ActiveRules != 6 {
		t.Errorf("stats = %+v", stats)
	}
	if len(runner.calls) != 0 {
		t.Error("stats must not trigger a run")
	}
}
