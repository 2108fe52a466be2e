package lifecycle

import (
	"math"
	"time"

	"growcycle/internal/genetics"
	"growcycle/internal/types"
)

// HarvestPrediction holds the projected end-of-cycle dates.
type HarvestPrediction struct {
	EstimatedHarvestDate time.Time        `json:"estimated_harvest_date"`
	EstimatedDryDate     time.Time        `json:"estimated_dry_date"`
	EstimatedCureDate    time.Time        `json:"estimated_cure_date"`
	Confidence           types.Confidence `json:"confidence"`
}

// PredictHarvest projects harvest, dry and cure dates from start. customized
// reports whether the caller supplied its own timeline, which lowers
// confidence for photoperiod plants.
func PredictHarvest(start time.Time, p genetics.Profile, customized bool) HarvestPrediction {
	harvest := start.AddDate(0, 0, genetics.PreVegDays+p.VegetativeDays+p.FloweringDays)
	dry := harvest.AddDate(0, 0, int(math.Floor(float64(p.DryingCuringDays)*dryingShare)))
	cure := start.AddDate(0, 0, p.TotalCycleDays())

	return HarvestPrediction{
		EstimatedHarvestDate: harvest,
		EstimatedDryDate:     dry,
		EstimatedCureDate:    cure,
		Confidence:           confidenceFor(p, customized),
	}
}

func confidenceFor(p genetics.Profile, customized bool) types.Confidence {
	switch {
	case p.IsAutoflowering:
		return types.ConfidenceHigh
	case p.PlantType == types.PlantFastVersion, customized:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
