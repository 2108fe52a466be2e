package genetics

import (
	"fmt"
	"sort"
	"strings"

	"growcycle/internal/types"
)

// Source records which table a resolution started from.
type Source string

const (
	SourceGenetics  Source = "genetics"
	SourcePlantType Source = "plant_type_default"
)

// Resolution is the outcome of Resolve. Warnings are advisory and never
// prevent a profile from being returned.
type Resolution struct {
	Profile    Profile  `json:"profile"`
	Source     Source   `json:"source"`
	Customized bool     `json:"customized"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Resolver looks up growth profiles. The zero value is not usable; call
// NewResolver.
type Resolver struct {
	genetics map[string]Profile
	defaults map[types.PlantType]Profile
}

// NewResolver returns a Resolver over the built-in genetics and plant-type
// tables. extra entries are merged over the built-in genetics table, keyed by
// their display name.
func NewResolver(extra map[string]Profile) *Resolver {
	r := &Resolver{
		genetics: make(map[string]Profile, len(knownGenetics)+len(extra)),
		defaults: defaultProfiles,
	}
	for name, p := range knownGenetics {
		r.genetics[name] = p
	}
	for name, p := range extra {
		r.genetics[normalizeName(name)] = p
	}
	return r
}

// Resolve builds the profile for a cultivation. Lookup order is the named
// genetics table, then the plant-type default, then overrides field by field.
// An unknown genetics name falls back to the plant-type default.
func (r *Resolver) Resolve(plantType types.PlantType, geneticsName string, overrides *types.GeneticsOverrides) Resolution {
	var res Resolution

	if p, ok := r.genetics[normalizeName(geneticsName)]; ok && geneticsName != "" {
		res.Profile = p
		res.Source = SourceGenetics
	} else {
		if !plantType.Valid() {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("unknown plant type %q, using %s defaults", plantType, types.PlantPhotoperiod))
			plantType = types.PlantPhotoperiod
		}
		res.Profile = r.defaults[plantType]
		res.Source = SourcePlantType
	}

	if !overrides.IsZero() {
		applied, warnings := applyOverrides(&res.Profile, overrides)
		res.Customized = applied
		res.Warnings = append(res.Warnings, warnings...)
	}

	if res.Profile.IsAutoflowering && res.Profile.LightHoursVeg != res.Profile.LightHoursFlower {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"autoflowering plants usually keep one light schedule; got %dh vegetative and %dh flowering",
			res.Profile.LightHoursVeg, res.Profile.LightHoursFlower))
	}

	return res
}

// Defaults returns the plant-type default profile. Unknown types get the
// photoperiod default.
func (r *Resolver) Defaults(plantType types.PlantType) Profile {
	if p, ok := r.defaults[plantType]; ok {
		return p
	}
	return r.defaults[types.PlantPhotoperiod]
}

// Known returns the normalized names of every genetics entry, sorted.
func (r *Resolver) Known() []string {
	names := make([]string, 0, len(r.genetics))
	for name := range r.genetics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func applyOverrides(p *Profile, o *types.GeneticsOverrides) (bool, []string) {
	var (
		applied  bool
		warnings []string
	)

	days := []struct {
		name string
		src  *int
		dst  *int
	}{
		{"vegetative_days", o.VegetativeDays, &p.VegetativeDays},
		{"flowering_days", o.FloweringDays, &p.FloweringDays},
		{"drying_curing_days", o.DryingCuringDays, &p.DryingCuringDays},
	}
	for _, d := range days {
		if d.src == nil {
			continue
		}
		if *d.src <= 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring non-positive override %s=%d", d.name, *d.src))
			continue
		}
		*d.dst = *d.src
		applied = true
	}

	hours := []struct {
		name string
		src  *int
		dst  *int
	}{
		{"light_hours_veg", o.LightHoursVeg, &p.LightHoursVeg},
		{"light_hours_flower", o.LightHoursFlower, &p.LightHoursFlower},
	}
	for _, h := range hours {
		if h.src == nil {
			continue
		}
		if *h.src <= 0 || *h.src > 24 {
			warnings = append(warnings, fmt.Sprintf("ignoring out-of-range override %s=%d", h.name, *h.src))
			continue
		}
		*h.dst = *h.src
		applied = true
	}

	return applied, warnings
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
