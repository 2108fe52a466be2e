package config

import "testing"

// TestNewBuildInfoDefaults verifies the linker defaults are used when ldflags
// are not set, as in normal test runs.
func TestNewBuildInfoDefaults(t *testing.T) {
	info := NewBuildInfo()

	if info.Version != "dev" {
		t.Errorf("NewBuildInfo().Version = %q, want %q", info.Version, "dev")
	}
	if info.Commit != "none" {
		t.Errorf("NewBuildInfo().Commit = %q, want %q", info.Commit, "none")
	}
	if info.BuildTime != "unknown" {
		t.Errorf("NewBuildInfo().BuildTime = %q, want %q", info.BuildTime, "unknown")
	}
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{Version: "1.4.0", Commit: "abc123", BuildTime: "2025-03-01T06:00:00Z"}

	want := "1.4.0 (abc123, built 2025-03-01T06:00:00Z)"
	if got := info.String(); got != want {
		t.Errorf("BuildInfo.String() = %q, want %q", got, want)
	}
}
