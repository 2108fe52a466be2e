package types

// PlantType classifies a cultivar by how it triggers flowering.
type PlantType string

const (
	PlantAutoflowering PlantType = "autoflowering"
	PlantPhotoperiod   PlantType = "photoperiod"
	PlantFastVersion   PlantType = "fast_version"
)

// Valid reports whether t is one of the known plant types.
func (t PlantType) Valid() bool {
	switch t {
	case PlantAutoflowering, PlantPhotoperiod, PlantFastVersion:
		return true
	}
	return false
}

// Phase is a stage of the cultivation lifecycle.
type Phase string

const (
	PhaseGermination Phase = "germination"
	PhaseSeedling    Phase = "seedling"
	PhaseVegetative  Phase = "vegetative"
	PhaseFlowering   Phase = "flowering"
	PhaseDrying      Phase = "drying"
	PhaseCuring      Phase = "curing"
	PhaseCompleted   Phase = "completed"
)

// phaseOrder lists phases in lifecycle order.
var phaseOrder = []Phase{
	PhaseGermination,
	PhaseSeedling,
	PhaseVegetative,
	PhaseFlowering,
	PhaseDrying,
	PhaseCuring,
	PhaseCompleted,
}

// Phases returns all phases in lifecycle order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Order returns the zero-based position of p in the lifecycle, or -1 when p
// is not a known phase.
func (p Phase) Order() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p. Completed (and unknown phases) have
// no successor.
func (p Phase) Next() (Phase, bool) {
	i := p.Order()
	if i < 0 || i >= len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[i+1], true
}

// CultivationStatus is the administrative state of a cultivation.
type CultivationStatus string

const (
	CultivationActive    CultivationStatus = "active"
	CultivationCompleted CultivationStatus = "completed"
	CultivationArchived  CultivationStatus = "archived"
)

// EventType identifies a grower-recorded cultivation event.
type EventType string

const (
	EventIrrigation    EventType = "irrigation"
	EventFertilization EventType = "fertilization"
	EventPruning       EventType = "pruning"
	EventPhaseChange   EventType = "phase_change"
	EventHarvest       EventType = "harvest"
	EventOther         EventType = "other"
)

// Priority orders notifications by urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// NotificationType identifies the rule family that produced a notification.
type NotificationType string

const (
	NotificationIrrigationReminder    NotificationType = "irrigation_reminder"
	NotificationFertilizationReminder NotificationType = "fertilization_reminder"
	NotificationHarvestAlert          NotificationType = "harvest_alert"
	NotificationPhaseTransition       NotificationType = "phase_transition"
	NotificationSevereProblem         NotificationType = "severe_problem"
	NotificationAchievement           NotificationType = "achievement"
)

// Confidence is the reliability class of a harvest prediction.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)
