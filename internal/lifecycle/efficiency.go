package lifecycle

import (
	"fmt"
	"math"

	"growcycle/internal/genetics"
	"growcycle/internal/types"
)

const (
	timeEfficiencyFloor = 90.0
	yieldLowThreshold   = 70.0
	yieldHighThreshold  = 120.0
)

// Efficiency scores a cultivation against its plant-type baseline. Nil
// sub-scores were not computable.
type Efficiency struct {
	TimeEfficiency  *float64 `json:"time_efficiency,omitempty"`
	YieldEfficiency *float64 `json:"yield_efficiency,omitempty"`
	OverallScore    float64  `json:"overall_score"`
	Recommendations []string `json:"recommendations"`
}

// DefaultsLookup returns the baseline profile for a plant type.
type DefaultsLookup interface {
	Defaults(plantType types.PlantType) genetics.Profile
}

// Scorer computes Efficiency against plant-type defaults.
type Scorer struct {
	defaults DefaultsLookup
}

// NewScorer returns a Scorer using defaults as the baseline.
func NewScorer(defaults DefaultsLookup) *Scorer {
	return &Scorer{defaults: defaults}
}

// Score rates elapsed time against the plant-type default cycle and, when an
// actual yield is known, yield against the expected yield.
func (s *Scorer) Score(info PhaseInfo, p genetics.Profile, expectedYield float64, actualYield *float64) Efficiency {
	eff := Efficiency{Recommendations: []string{}}
	var scores []float64

	expected := s.defaults.Defaults(p.PlantType).TotalCycleDays()
	if info.TotalCycleDays > 0 {
		v := math.Min(100, float64(expected)/float64(info.TotalCycleDays)*100)
		eff.TimeEfficiency = &v
		scores = append(scores, v)
		if v < timeEfficiencyFloor {
			eff.Recommendations = append(eff.Recommendations, fmt.Sprintf(
				"Cycle runs %d days against a %d-day baseline; review light schedule and vegetative length.",
				info.TotalCycleDays, expected))
		}
	}

	if actualYield != nil && expectedYield > 0 {
		ratio := *actualYield / expectedYield * 100
		v := math.Min(100, ratio)
		eff.YieldEfficiency = &v
		scores = append(scores, v)
		switch {
		case ratio < yieldLowThreshold:
			eff.Recommendations = append(eff.Recommendations,
				"Yield is well below expectation; check nutrition, lighting intensity and pest pressure.")
		case ratio > yieldHighThreshold:
			eff.Recommendations = append(eff.Recommendations,
				"Yield exceeded expectation; raise the expected yield for this genetics.")
		}
	}

	if len(scores) > 0 {
		var sum float64
		for _, v := range scores {
			sum += v
		}
		eff.OverallScore = sum / float64(len(scores))
	}
	return eff
}
