// Package rules decides which notifications a cultivation is due for. Rules
// are pure predicates over a cultivation snapshot; cooldown bookkeeping is
// left to the caller.
package rules

import (
	"time"

	"growcycle/internal/genetics"
	"growcycle/internal/lifecycle"
	"growcycle/internal/types"
)

// Kind identifies a rule variant.
type Kind string

const (
	KindIrrigationReminder    Kind = "irrigation_reminder"
	KindFertilizationReminder Kind = "fertilization_reminder"
	KindHarvestAlert          Kind = "harvest_alert"
	KindPhaseTransition       Kind = "phase_transition"
	KindSevereProblem         Kind = "severe_problem"
	KindHarvestRecorded       Kind = "harvest_recorded"
	KindCycleCompleted        Kind = "cycle_completed"
)

// Category groups rules into the job that evaluates them.
type Category string

const (
	CategoryReminders    Category = "reminders"
	CategoryAlerts       Category = "alerts"
	CategoryAchievements Category = "achievements"
)

// Input is everything a rule may look at for one cultivation.
type Input struct {
	Cultivation *types.Cultivation
	Profile     genetics.Profile
	Phase       lifecycle.PhaseInfo
	Now         time.Time
}

// Draft is a notification a rule wants to emit, before persistence.
type Draft struct {
	RuleID        string                 `json:"rule_id"`
	Kind          Kind                   `json:"kind"`
	CultivationID string                 `json:"cultivation_id"`
	Type          types.NotificationType `json:"type"`
	Priority      types.Priority         `json:"priority"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
}

// Rule is one notification rule. Eligible must not have side effects; an
// error means the cultivation data could not be interpreted.
type Rule interface {
	ID() string
	Kind() Kind
	Category() Category
	CooldownDays() int
	Eligible(in Input) (bool, error)
	Build(in Input) Draft
}

// base carries the identity shared by every built-in rule.
type base struct {
	id       string
	kind     Kind
	category Category
	cooldown int
}

func (b base) ID() string         { return b.id }
func (b base) Kind() Kind         { return b.kind }
func (b base) Category() Category { return b.category }
func (b base) CooldownDays() int  { return b.cooldown }

func (b base) draft(in Input, nt types.NotificationType, p types.Priority, title, msg string) Draft {
	return Draft{
		RuleID:        b.id,
		Kind:          b.kind,
		CultivationID: in.Cultivation.ID,
		Type:          nt,
		Priority:      p,
		Title:         title,
		Message:       msg,
		Metadata: map[string]any{
			"phase":            string(in.Phase.Phase),
			"days_since_start": in.Phase.DaysSinceStart,
		},
	}
}
