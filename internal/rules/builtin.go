package rules

import (
	"fmt"
	"strings"

	"growcycle/internal/lifecycle"
	"growcycle/internal/types"
)

// Built-in rule IDs.
const (
	RuleIrrigation      = "irrigation_reminder"
	RuleFertilization   = "fertilization_reminder"
	RuleHarvestAlert    = "harvest_alert"
	RulePhaseTransition = "phase_transition_suggestion"
	RuleSevereProblem   = "severe_problem_alert"
	RuleHarvestRecorded = "achievement_harvest_recorded"
	RuleCycleCompleted  = "achievement_cycle_completed"
)

// Thresholds configures the built-in rules.
type Thresholds struct {
	IrrigationDays    int
	FertilizationDays int
	HarvestAlertDays  int
	VegetativeDays    int

	IrrigationCooldownDays      int
	FertilizationCooldownDays   int
	HarvestAlertCooldownDays    int
	PhaseTransitionCooldownDays int
	SevereProblemCooldownDays   int
	AchievementCooldownDays     int
}

// DefaultThresholds returns the reference thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		IrrigationDays:    3,
		FertilizationDays: 7,
		HarvestAlertDays:  70,
		VegetativeDays:    60,

		IrrigationCooldownDays:      1,
		FertilizationCooldownDays:   3,
		HarvestAlertCooldownDays:    7,
		PhaseTransitionCooldownDays: 7,
		SevereProblemCooldownDays:   1,
		AchievementCooldownDays:     3650,
	}
}

// DefaultRules builds the built-in rule set.
func DefaultRules(t Thresholds) []Rule {
	return []Rule{
		&IrrigationReminder{
			base:          base{RuleIrrigation, KindIrrigationReminder, CategoryReminders, t.IrrigationCooldownDays},
			ThresholdDays: t.IrrigationDays,
		},
		&FertilizationReminder{
			base:          base{RuleFertilization, KindFertilizationReminder, CategoryReminders, t.FertilizationCooldownDays},
			ThresholdDays: t.FertilizationDays,
		},
		&HarvestAlert{
			base:          base{RuleHarvestAlert, KindHarvestAlert, CategoryAlerts, t.HarvestAlertCooldownDays},
			ThresholdDays: t.HarvestAlertDays,
		},
		&PhaseTransitionSuggestion{
			base:          base{RulePhaseTransition, KindPhaseTransition, CategoryAlerts, t.PhaseTransitionCooldownDays},
			ThresholdDays: t.VegetativeDays,
		},
		&SevereProblemAlert{
			base: base{RuleSevereProblem, KindSevereProblem, CategoryAlerts, t.SevereProblemCooldownDays},
		},
		&HarvestRecorded{
			base: base{RuleHarvestRecorded, KindHarvestRecorded, CategoryAchievements, t.AchievementCooldownDays},
		},
		&CycleCompleted{
			base: base{RuleCycleCompleted, KindCycleCompleted, CategoryAchievements, t.AchievementCooldownDays},
		},
	}
}

// IrrigationReminder fires when no irrigation has been recorded for
// ThresholdDays, counting from the start date when there is none.
type IrrigationReminder struct {
	base
	ThresholdDays int
}

func (r *IrrigationReminder) since(in Input) int {
	ref := in.Cultivation.StartDate
	if ev, ok := latestEvent(in.Cultivation.Events, types.EventIrrigation); ok {
		ref = ev.Date
	}
	return lifecycle.DaysBetween(ref, in.Now)
}

func (r *IrrigationReminder) Eligible(in Input) (bool, error) {
	return r.since(in) >= r.ThresholdDays, nil
}

func (r *IrrigationReminder) Build(in Input) Draft {
	days := r.since(in)
	d := r.draft(in, types.NotificationIrrigationReminder, types.PriorityMedium,
		fmt.Sprintf("Time to water %s", in.Cultivation.Name),
		fmt.Sprintf("No irrigation recorded for %d days. Check the medium moisture and water if needed.", days))
	d.Metadata["days_since_irrigation"] = days
	return d
}

// FertilizationReminder fires when no feeding has been recorded for
// ThresholdDays, counting from the start date when there is none.
type FertilizationReminder struct {
	base
	ThresholdDays int
}

func (r *FertilizationReminder) since(in Input) int {
	ref := in.Cultivation.StartDate
	if ev, ok := latestEvent(in.Cultivation.Events, types.EventFertilization); ok {
		ref = ev.Date
	}
	return lifecycle.DaysBetween(ref, in.Now)
}

func (r *FertilizationReminder) Eligible(in Input) (bool, error) {
	return r.since(in) >= r.ThresholdDays, nil
}

func (r *FertilizationReminder) Build(in Input) Draft {
	days := r.since(in)
	d := r.draft(in, types.NotificationFertilizationReminder, types.PriorityLow,
		fmt.Sprintf("Feeding due for %s", in.Cultivation.Name),
		fmt.Sprintf("Last feeding was %d days ago. Nutrient needs in the %s phase may not be met.", days, in.Phase.Phase))
	d.Metadata["days_since_fertilization"] = days
	return d
}

// HarvestAlert fires once flowering has lasted ThresholdDays, measured from
// the most recent recorded phase change into flowering.
type HarvestAlert struct {
	base
	ThresholdDays int
}

func (r *HarvestAlert) Eligible(in Input) (bool, error) {
	start, ok, err := floweringStart(in.Cultivation.Events)
	if err != nil || !ok {
		return false, err
	}
	return lifecycle.DaysBetween(start, in.Now) >= r.ThresholdDays, nil
}

func (r *HarvestAlert) Build(in Input) Draft {
	start, _, _ := floweringStart(in.Cultivation.Events)
	days := lifecycle.DaysBetween(start, in.Now)
	d := r.draft(in, types.NotificationHarvestAlert, types.PriorityHigh,
		fmt.Sprintf("%s may be ready to harvest", in.Cultivation.Name),
		fmt.Sprintf("Flowering started %d days ago. Inspect trichomes and pistils to confirm ripeness.", days))
	d.Metadata["days_in_flowering"] = days
	d.Metadata["flowering_started_at"] = start
	return d
}

// PhaseTransitionSuggestion suggests switching a photoperiod plant to
// flowering once it has run ThresholdDays without a recorded transition.
type PhaseTransitionSuggestion struct {
	base
	ThresholdDays int
}

func (r *PhaseTransitionSuggestion) Eligible(in Input) (bool, error) {
	if in.Profile.IsAutoflowering || in.Cultivation.ManualTransition {
		return false, nil
	}
	_, flowering, err := floweringStart(in.Cultivation.Events)
	if err != nil || flowering {
		return false, err
	}
	return in.Phase.DaysSinceStart >= r.ThresholdDays, nil
}

func (r *PhaseTransitionSuggestion) Build(in Input) Draft {
	d := r.draft(in, types.NotificationPhaseTransition, types.PriorityMedium,
		fmt.Sprintf("Consider flipping %s to flowering", in.Cultivation.Name),
		fmt.Sprintf("%s has been growing for %d days with no flowering transition recorded. Switch to %d hours of light to trigger flowering.",
			in.Cultivation.Name, in.Phase.DaysSinceStart, in.Profile.LightHoursFlower))
	d.Metadata["light_hours_flower"] = in.Profile.LightHoursFlower
	return d
}

// SevereProblemAlert re-fires every cooldown window while the cultivation is
// flagged with a severe problem.
type SevereProblemAlert struct {
	base
}

func (r *SevereProblemAlert) Eligible(in Input) (bool, error) {
	return in.Cultivation.HasSevereProblems, nil
}

func (r *SevereProblemAlert) Build(in Input) Draft {
	msg := "A severe problem was reported. Inspect the plant and act quickly."
	d := r.draft(in, types.NotificationSevereProblem, types.PriorityCritical,
		fmt.Sprintf("Severe problem on %s", in.Cultivation.Name), msg)

	if a := in.Cultivation.Analysis; a != nil && a.Issue != "" {
		msg = fmt.Sprintf("Analysis detected %s (%s).", a.Issue, a.Severity)
		if len(a.Recommendations) > 0 {
			msg += " Recommended: " + strings.Join(a.Recommendations, "; ") + "."
		}
		d.Message = msg
		d.Metadata["issue"] = a.Issue
		d.Metadata["severity"] = a.Severity
		d.Metadata["analysis_confidence"] = a.Confidence
	}
	return d
}

// HarvestRecorded celebrates the first recorded harvest.
type HarvestRecorded struct {
	base
}

func (r *HarvestRecorded) Eligible(in Input) (bool, error) {
	_, ok := latestEvent(in.Cultivation.Events, types.EventHarvest)
	return ok, nil
}

func (r *HarvestRecorded) Build(in Input) Draft {
	return r.draft(in, types.NotificationAchievement, types.PriorityLow,
		"Harvest recorded",
		fmt.Sprintf("You harvested %s after %d days. Drying comes next.", in.Cultivation.Name, in.Phase.DaysSinceStart))
}

// CycleCompleted fires once the lifecycle reaches Completed.
type CycleCompleted struct {
	base
}

func (r *CycleCompleted) Eligible(in Input) (bool, error) {
	return in.Phase.Phase == types.PhaseCompleted, nil
}

func (r *CycleCompleted) Build(in Input) Draft {
	return r.draft(in, types.NotificationAchievement, types.PriorityLow,
		"Cycle completed",
		fmt.Sprintf("%s finished its %d-day cycle.", in.Cultivation.Name, in.Phase.TotalCycleDays))
}
