// Package lifecycle derives phase, harvest and efficiency figures from a
// cultivation start date and its resolved genetics profile. Every function
// here is pure: the reference time is always passed in.
package lifecycle

import (
	"math"
	"time"

	"growcycle/internal/genetics"
	"growcycle/internal/types"
)

const (
	day = 24 * time.Hour

	// dryingShare is the part of the drying/curing window spent drying.
	dryingShare = 0.6
	// maxDryingDays caps the drying sub-window.
	maxDryingDays = 15
)

// PhaseInfo describes where a cultivation stands on a given day.
type PhaseInfo struct {
	Phase                 types.Phase  `json:"phase"`
	DaysSinceStart        int          `json:"days_since_start"`
	DaysInCurrentPhase    int          `json:"days_in_current_phase"`
	TotalCycleDays        int          `json:"total_cycle_days"`
	ProgressPercent       float64      `json:"progress_percent"`
	ExpectedRemainingDays int          `json:"expected_remaining_days"`
	NextPhase             *types.Phase `json:"next_phase"`
	PhaseDescription      string       `json:"phase_description"`
}

// Boundaries holds the last day (inclusive, counted from start) of each phase.
type Boundaries struct {
	Germination int `json:"germination"`
	Seedling    int `json:"seedling"`
	Vegetative  int `json:"vegetative"`
	Flowering   int `json:"flowering"`
	Drying      int `json:"drying"`
	Curing      int `json:"curing"`
}

// PhaseBoundaries computes the phase thresholds for p.
func PhaseBoundaries(p genetics.Profile) Boundaries {
	b := Boundaries{
		Germination: genetics.GerminationDays,
		Seedling:    genetics.PreVegDays,
	}
	b.Vegetative = b.Seedling + p.VegetativeDays
	b.Flowering = b.Vegetative + p.FloweringDays
	b.Drying = b.Flowering + DryingDays(p)
	b.Curing = p.TotalCycleDays()
	return b
}

// DryingDays is the drying sub-window of the drying/curing stage.
func DryingDays(p genetics.Profile) int {
	d := int(math.Floor(float64(p.DryingCuringDays) * dryingShare))
	if d > maxDryingDays {
		d = maxDryingDays
	}
	if d < 0 {
		d = 0
	}
	return d
}

// DaysBetween counts whole days elapsed from start to now, clamped at zero.
func DaysBetween(start, now time.Time) int {
	if !now.After(start) {
		return 0
	}
	return int(now.Sub(start) / day)
}

// ComputePhase places a cultivation on its lifecycle at now. A start date in
// the future yields day zero (Germination).
func ComputePhase(start, now time.Time, p genetics.Profile) PhaseInfo {
	d := DaysBetween(start, now)
	b := PhaseBoundaries(p)

	var (
		phase      types.Phase
		phaseStart int
	)
	switch {
	case d <= b.Germination:
		phase, phaseStart = types.PhaseGermination, 0
	case d <= b.Seedling:
		phase, phaseStart = types.PhaseSeedling, b.Germination
	case d <= b.Vegetative:
		phase, phaseStart = types.PhaseVegetative, b.Seedling
	case d <= b.Flowering:
		phase, phaseStart = types.PhaseFlowering, b.Vegetative
	case d <= b.Drying:
		phase, phaseStart = types.PhaseDrying, b.Flowering
	case d <= b.Curing:
		phase, phaseStart = types.PhaseCuring, b.Drying
	default:
		phase, phaseStart = types.PhaseCompleted, b.Curing
	}

	total := b.Curing
	info := PhaseInfo{
		Phase:                 phase,
		DaysSinceStart:        d,
		DaysInCurrentPhase:    d - phaseStart,
		TotalCycleDays:        total,
		ProgressPercent:       math.Min(100, float64(d)/float64(total)*100),
		ExpectedRemainingDays: max(0, total-d),
		PhaseDescription:      describe(phase),
	}
	if next, ok := phase.Next(); ok {
		info.NextPhase = &next
	}
	return info
}

func describe(p types.Phase) string {
	switch p {
	case types.PhaseGermination:
		return "Seed is germinating; keep the medium warm and moist."
	case types.PhaseSeedling:
		return "Seedling is developing its first true leaves."
	case types.PhaseVegetative:
		return "Vegetative growth: the plant builds stems, roots and foliage."
	case types.PhaseFlowering:
		return "Flowering: buds are forming and maturing."
	case types.PhaseDrying:
		return "Harvested material is drying."
	case types.PhaseCuring:
		return "Dried material is curing in sealed containers."
	case types.PhaseCompleted:
		return "Cultivation cycle completed."
	}
	return ""
}
