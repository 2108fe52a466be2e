package types

import (
	"time"
)

// GeneticsOverrides carries caller-supplied profile fields. Nil fields keep
// the resolved value.
type GeneticsOverrides struct {
	VegetativeDays   *int `json:"vegetative_days,omitempty"`
	FloweringDays    *int `json:"flowering_days,omitempty"`
	DryingCuringDays *int `json:"drying_curing_days,omitempty"`
	LightHoursVeg    *int `json:"light_hours_veg,omitempty"`
	LightHoursFlower *int `json:"light_hours_flower,omitempty"`
}

// IsZero reports whether no override field is set.
func (o *GeneticsOverrides) IsZero() bool {
	return o == nil || (o.VegetativeDays == nil && o.FloweringDays == nil &&
		o.DryingCuringDays == nil && o.LightHoursVeg == nil && o.LightHoursFlower == nil)
}

// AnalysisSummary is the structured result of an external plant-health
// analysis. It is only read when building alert content.
type AnalysisSummary struct {
	Issue           string    `json:"issue"`
	Severity        string    `json:"severity"`
	Confidence      float64   `json:"confidence"`
	Recommendations []string  `json:"recommendations,omitempty"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// Cultivation is the per-cultivation input to the lifecycle and rule
// engines. Jobs never mutate it.
type Cultivation struct {
	ID                 string             `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	StartDate          time.Time          `json:"start_date" db:"start_date"`
	PlantType          PlantType          `json:"plant_type" db:"plant_type"`
	GeneticsName       string             `json:"genetics_name,omitempty" db:"genetics_name"`
	Overrides          *GeneticsOverrides `json:"overrides,omitempty" db:"overrides"`
	ManualTransition   bool               `json:"manual_transition" db:"manual_transition"`
	HasSevereProblems  bool               `json:"has_severe_problems" db:"has_severe_problems"`
	Analysis           *AnalysisSummary   `json:"analysis,omitempty" db:"analysis"`
	ExpectedYieldGrams float64            `json:"expected_yield_grams" db:"expected_yield_grams"`
	ActualYieldGrams   *float64           `json:"actual_yield_grams,omitempty" db:"actual_yield_grams"`
	Status             CultivationStatus  `json:"status" db:"status"`
	Events             []CultivationEvent `json:"events,omitempty" db:"-"`
}

// CultivationEvent is a grower-recorded action on a cultivation.
type CultivationEvent struct {
	ID            string         `json:"id" db:"id"`
	CultivationID string         `json:"cultivation_id" db:"cultivation_id"`
	Date          time.Time      `json:"date" db:"date"`
	Type          EventType      `json:"type" db:"type"`
	Details       map[string]any `json:"details,omitempty" db:"details"`
}

// Notification is a persisted, user-facing message produced by a rule.
type Notification struct {
	ID            string           `json:"id" db:"id"`
	CultivationID string           `json:"cultivation_id" db:"cultivation_id"`
	RuleID        string           `json:"rule_id" db:"rule_id"`
	Type          NotificationType `json:"type" db:"type"`
	Priority      Priority         `json:"priority" db:"priority"`
	Title         string           `json:"title" db:"title"`
	Message       string           `json:"message" db:"message"`
	Metadata      map[string]any   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	IsRead        bool             `json:"is_read" db:"is_read"`
	DeliveredAt   *time.Time       `json:"delivered_at,omitempty" db:"delivered_at"`
}

// JobRun is one row of job_history: a single category run and its outcome.
type JobRun struct {
	ID            int64
	Job           string
	ReferenceTime time.Time
	Status        string
	Notifications int
	Failures      int
	Items         int
	Error         string
}
