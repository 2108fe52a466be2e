// Package scheduler runs the job categories that turn cultivation state into
// notifications and keep the supporting tables tidy.
//
// The package is not self-scheduling. A caller (EventBridge through
// cmd/scheduler, the HTTP trigger in cmd/api, or the job-runner CLI) invokes
// Runner.Run with a category and a reference time.
package scheduler

import (
	"time"

	"growcycle/internal/rules"
	"growcycle/internal/types"
)

// JobCategory identifies a job the Runner can execute.
type JobCategory string

const (
	JobReminders    JobCategory = "reminders"
	JobAlerts       JobCategory = "alerts"
	JobAchievements JobCategory = "achievements"
	JobCleanup      JobCategory = "cleanup"
	JobMaintenance  JobCategory = "maintenance"

	// JobAll runs every other category in sequence.
	JobAll JobCategory = "all"
)

// AllJobCategories returns the concrete categories in the order JobAll runs
// them.
func AllJobCategories() []JobCategory {
	return []JobCategory{JobReminders, JobAlerts, JobAchievements, JobCleanup, JobMaintenance}
}

// ParseJobCategory validates a job name from a trigger.
func ParseJobCategory(s string) (JobCategory, error) {
	if s == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "job is required", nil)
	}
	c := JobCategory(s)
	if c == JobAll {
		return c, nil
	}
	for _, known := range AllJobCategories() {
		if c == known {
			return c, nil
		}
	}
	return "", types.NewAppErrorWithDetails(types.ErrCodeValidationUnknownJob,
		"unknown job category", nil, map[string]any{"job": s})
}

// ruleCategory maps a rule-driven job to the rules it evaluates.
func (c JobCategory) ruleCategory() (rules.Category, bool) {
	switch c {
	case JobReminders:
		return rules.CategoryReminders, true
	case JobAlerts:
		return rules.CategoryAlerts, true
	case JobAchievements:
		return rules.CategoryAchievements, true
	default:
		return "", false
	}
}

// RunStatus is the outcome of a run.
type RunStatus string

const (
	StatusCompleted      RunStatus = "completed"
	StatusPartial        RunStatus = "partial"
	StatusAlreadyRunning RunStatus = "already_running"
	StatusFailed         RunStatus = "failed"
)

// JobCounts tallies the work done by one category run. Zero fields are
// omitted from JSON so each category only reports what it touches.
type JobCounts struct {
	Cultivations        int `json:"cultivations,omitempty"`
	Notifications       int `json:"notifications,omitempty"`
	CooldownSkips       int `json:"cooldown_skips,omitempty"`
	RuleErrors          int `json:"rule_errors,omitempty"`
	CooldownErrors      int `json:"cooldown_errors,omitempty"`
	PersistErrors       int `json:"persist_errors,omitempty"`
	DeliveryErrors      int `json:"delivery_errors,omitempty"`
	NotificationsPurged int `json:"notifications_purged,omitempty"`
	CooldownsPurged     int `json:"cooldowns_purged,omitempty"`
	Redelivered         int `json:"redelivered,omitempty"`
	StepErrors          int `json:"step_errors,omitempty"`
}

func (c *JobCounts) add(o JobCounts) {
	c.Cultivations += o.Cultivations
	c.Notifications += o.Notifications
	c.CooldownSkips += o.CooldownSkips
	c.RuleErrors += o.RuleErrors
	c.CooldownErrors += o.CooldownErrors
	c.PersistErrors += o.PersistErrors
	c.DeliveryErrors += o.DeliveryErrors
	c.NotificationsPurged += o.NotificationsPurged
	c.CooldownsPurged += o.CooldownsPurged
	c.Redelivered += o.Redelivered
	c.StepErrors += o.StepErrors
}

// failures counts the errors that make a run partial. Delivery errors from
// rule jobs are excluded: those notifications are persisted and maintenance
// retries them.
func (c JobCounts) failures() int {
	return c.RuleErrors + c.CooldownErrors + c.PersistErrors + c.StepErrors
}

// items is the work total recorded in job history.
func (c JobCounts) items() int {
	return c.Notifications + c.NotificationsPurged + c.CooldownsPurged + c.Redelivered
}

// CategoryResult is the outcome of one category inside a run.
type CategoryResult struct {
	Job    JobCategory `json:"job"`
	Status RunStatus   `json:"status"`
	Counts JobCounts   `json:"counts"`
	Error  string      `json:"error,omitempty"`
}

// RunResult is returned to the trigger.
type RunResult struct {
	Job        JobCategory      `json:"job"`
	Status     RunStatus        `json:"status"`
	Stats      JobRunStats      `json:"stats"`
	Timestamp  time.Time        `json:"timestamp"`
	Categories []CategoryResult `json:"categories"`
}

// RulesEngineStats summarizes the rule registry and cooldown table.
type RulesEngineStats struct {
	TotalRules      int `json:"total_rules"`
	ActiveRules     int `json:"active_rules"`
	CooldownsActive int `json:"cooldowns_active"`
}

// JobRunStats is a point-in-time snapshot of the Runner.
type JobRunStats struct {
	IsRunning   bool                      `json:"is_running"`
	Running     []JobCategory             `json:"running"`
	LastRunAt   map[JobCategory]time.Time `json:"last_run_at"`
	RunCounts   map[JobCategory]int       `json:"run_counts"`
	RulesEngine RulesEngineStats          `json:"rules_engine"`
}

// JobPayload is the event body EventBridge sends to cmd/scheduler.
//
//	{
//	  "job": "reminders",
//	  "reference_time": "2025-03-01T06:00:00Z"
//	}
type JobPayload struct {
	Job JobCategory `json:"job"`
	// ReferenceTime overrides "now" for backfills. Nil means time.Now().UTC().
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
