package main

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"growcycle/internal/rules"
	"growcycle/internal/scheduler"
)

func TestParseArgs_Valid(t *testing.T) {
	opts, err := parseArgs([]string{"--job=alerts", "--reference-time=2025-03-01T08:00:00+02:00", "--dry-run"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.job != scheduler.JobAlerts {
		t.Errorf("job = %q, want alerts", opts.job)
	}
	want := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	if opts.referenceTime == nil || !opts.referenceTime.Equal(want) || opts.referenceTime.Location() != time.UTC {
		t.Errorf("reference time = %v, want %v in UTC", opts.referenceTime, want)
	}
	if !opts.dryRun {
		t.Error("dry-run should be set")
	}
}

func TestParseArgs_ListNeedsNoJob(t *testing.T) {
	opts, err := parseArgs([]string{"--list"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.list {
		t.Error("list should be set")
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"missing job", nil, "--job is required"},
		{"unknown job", []string{"--job=harvest"}, "unknown job"},
		{"bad reference time", []string{"--job=all", "--reference-time=yesterday"}, "invalid --reference-time"},
		{"conflicting modes", []string{"--job=all", "--dry-run", "--payload"}, "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %v, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestPrintJobs_ListsEveryCategory(t *testing.T) {
	engine, err := rules.NewEngine(rules.DefaultRules(rules.DefaultThresholds())...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := engine.SetEnabled(rules.RuleHarvestAlert, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	var buf bytes.Buffer
	printJobs(&buf, engine)

	for _, job := range append(scheduler.AllJobCategories(), scheduler.JobAll) {
		if !strings.Contains(buf.String(), string(job)) {
			t.Errorf("output missing %q", job)
		}
		if jobDescriptions[job] == "" {
			t.Errorf("no description for %q", job)
		}
	}
	for _, ri := range engine.Rules() {
		if !strings.Contains(buf.String(), ri.ID) {
			t.Errorf("output missing rule %q", ri.ID)
		}
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, rules.RuleHarvestAlert) && !strings.HasSuffix(line, "disabled") {
			t.Errorf("harvest alert line = %q, want it marked disabled", line)
		}
	}
}

func TestPrintPayload(t *testing.T) {
	ref := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := printPayload(&buf, options{job: scheduler.JobCleanup, referenceTime: &ref}); err != nil {
		t.Fatalf("printPayload: %v", err)
	}

	var got scheduler.JobPayload
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if got.Job != scheduler.JobCleanup || got.ReferenceTime == nil || !got.ReferenceTime.Equal(ref) {
		t.Errorf("payload = %+v", got)
	}
}
