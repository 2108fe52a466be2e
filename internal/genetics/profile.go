// Package genetics resolves the growth profile of a cultivation from its
// genetics name, plant type and caller overrides.
package genetics

import "growcycle/internal/types"

// Pre-vegetative stages shared by every profile: germination (days 0-7)
// followed by seedling (days 8-14).
const (
	GerminationDays = 7
	SeedlingDays    = 7
	PreVegDays      = GerminationDays + SeedlingDays
)

// Profile is a fully-populated growth timeline for one cultivation.
// All day counts are positive once resolved.
type Profile struct {
	PlantType        types.PlantType `json:"plant_type"`
	VegetativeDays   int             `json:"vegetative_days"`
	FloweringDays    int             `json:"flowering_days"`
	DryingCuringDays int             `json:"drying_curing_days"`
	LightHoursVeg    int             `json:"light_hours_veg"`
	LightHoursFlower int             `json:"light_hours_flower"`
	IsAutoflowering  bool            `json:"is_autoflowering"`
}

// TotalDays is vegetative + flowering + drying/curing.
func (p Profile) TotalDays() int {
	return p.VegetativeDays + p.FloweringDays + p.DryingCuringDays
}

// TotalCycleDays adds the pre-vegetative stages to TotalDays.
func (p Profile) TotalCycleDays() int {
	return p.TotalDays() + PreVegDays
}

// defaultProfiles are the plant-type defaults.
var defaultProfiles = map[types.PlantType]Profile{
	types.PlantAutoflowering: {
		PlantType:        types.PlantAutoflowering,
		VegetativeDays:   25,
		FloweringDays:    45,
		DryingCuringDays: 28,
		LightHoursVeg:    20,
		LightHoursFlower: 20,
		IsAutoflowering:  true,
	},
	types.PlantPhotoperiod: {
		PlantType:        types.PlantPhotoperiod,
		VegetativeDays:   60,
		FloweringDays:    63,
		DryingCuringDays: 30,
		LightHoursVeg:    18,
		LightHoursFlower: 12,
	},
	types.PlantFastVersion: {
		PlantType:        types.PlantFastVersion,
		VegetativeDays:   45,
		FloweringDays:    49,
		DryingCuringDays: 30,
		LightHoursVeg:    18,
		LightHoursFlower: 12,
	},
}

// knownGenetics maps normalized genetics names to their profiles.
var knownGenetics = map[string]Profile{
	"northern lights auto": {
		PlantType: types.PlantAutoflowering, VegetativeDays: 21, FloweringDays: 49,
		DryingCuringDays: 28, LightHoursVeg: 20, LightHoursFlower: 20, IsAutoflowering: true,
	},
	"gorilla glue auto": {
		PlantType: types.PlantAutoflowering, VegetativeDays: 28, FloweringDays: 56,
		DryingCuringDays: 28, LightHoursVeg: 18, LightHoursFlower: 18, IsAutoflowering: true,
	},
	"white widow": {
		PlantType: types.PlantPhotoperiod, VegetativeDays: 45, FloweringDays: 60,
		DryingCuringDays: 30, LightHoursVeg: 18, LightHoursFlower: 12,
	},
	"og kush": {
		PlantType: types.PlantPhotoperiod, VegetativeDays: 50, FloweringDays: 63,
		DryingCuringDays: 30, LightHoursVeg: 18, LightHoursFlower: 12,
	},
	"amnesia haze": {
		PlantType: types.PlantPhotoperiod, VegetativeDays: 60, FloweringDays: 77,
		DryingCuringDays: 35, LightHoursVeg: 18, LightHoursFlower: 12,
	},
	"critical fast": {
		PlantType: types.PlantFastVersion, VegetativeDays: 40, FloweringDays: 49,
		DryingCuringDays: 30, LightHoursVeg: 18, LightHoursFlower: 12,
	},
}
