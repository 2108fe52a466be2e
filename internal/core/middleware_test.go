package core

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"growcycle/internal/types"
)

func TestRecoverer_WritesEnvelope(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	detail := readEnvelope(t, rec.Body)
	if detail.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q, want %q", detail.Code, types.ErrCodeInternalUnexpected)
	}
	if strings.Contains(detail.Message, "boom") {
		t.Error("panic value leaked to the client")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	t.Run("propagates incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if seen != "abc-123" {
			t.Errorf("context id = %q, want abc-123", seen)
		}
		if rec.Header().Get("X-Request-Id") != "abc-123" {
			t.Errorf("response header = %q, want abc-123", rec.Header().Get("X-Request-Id"))
		}
	})

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if len(seen) != 36 {
			t.Errorf("generated id = %q, want a UUID", seen)
		}
	})
}

func TestRequestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(logger, defaultRedactedHeaders)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	req.Header.Set("User-Agent", "cron/1.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, testSecret) {
		t.Errorf("log line leaked the bearer secret: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("log line missing redaction marker: %s", out)
	}
	if !strings.Contains(out, "cron/1.0") {
		t.Errorf("log line missing non-sensitive header: %s", out)
	}
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("log line should record a 4xx at WARN: %s", out)
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	m := &mockMetrics{}
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/cultivations/{id}/lifecycle", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	srv.Metrics = m
	srv.MountRoutes()

	srv.Handler().ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/cultivations/c-42/lifecycle", nil))

	if len(m.calls) != 1 {
		t.Fatalf("RecordRequest called %d times, want 1", len(m.calls))
	}
	got := m.calls[0]
	if got.endpoint != "/cultivations/{id}/lifecycle" {
		t.Errorf("endpoint = %q, want the route pattern", got.endpoint)
	}
	if got.status != http.StatusNoContent || got.method != http.MethodGet {
		t.Errorf("call = %+v, want GET 204", got)
	}
}

func TestRequireTriggerSecret(t *testing.T) {
	srv := newTestServer(t)
	var reached bool
	h := srv.RequireTriggerSecret(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  types.ErrorCode
	}{
		{"missing header", "", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"wrong scheme", "Basic " + testSecret, http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"empty token", "Bearer   ", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"wrong secret", "Bearer nope", http.StatusUnauthorized, types.ErrCodeAuthTokenInvalid},
		{"valid", "Bearer " + testSecret, http.StatusOK, ""},
		{"scheme is case-insensitive", "bearer " + testSecret, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantErr == "" {
				if !reached {
					t.Error("next handler was not called")
				}
				return
			}
			if reached {
				t.Error("next handler ran for an unauthenticated request")
			}
			if got := readEnvelope(t, rec.Body).Code; got != string(tt.wantErr) {
				t.Errorf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}
