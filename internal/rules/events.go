package rules

import (
	"fmt"
	"time"

	"growcycle/internal/types"
)

// latestEvent returns the most recent event of type t.
func latestEvent(events []types.CultivationEvent, t types.EventType) (types.CultivationEvent, bool) {
	var (
		found  types.CultivationEvent
		exists bool
	)
	for _, ev := range events {
		if ev.Type != t {
			continue
		}
		if !exists || ev.Date.After(found.Date) {
			found, exists = ev, true
		}
	}
	return found, exists
}

// floweringStart returns the date of the most recent phase change into
// flowering. A phase_change event without a string "to" detail is malformed.
func floweringStart(events []types.CultivationEvent) (time.Time, bool, error) {
	var (
		start  time.Time
		exists bool
	)
	for _, ev := range events {
		if ev.Type != types.EventPhaseChange {
			continue
		}
		to, ok := ev.Details["to"].(string)
		if !ok {
			return time.Time{}, false, fmt.Errorf("phase_change event %s has no target phase", ev.ID)
		}
		if types.Phase(to) != types.PhaseFlowering {
			continue
		}
		if !exists || ev.Date.After(start) {
			start, exists = ev.Date, true
		}
	}
	return start, exists, nil
}
