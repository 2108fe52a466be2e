// Package cooldown tracks when each rule last fired for each cultivation and
// answers whether it may fire again.
package cooldown

import (
	"context"
	"time"
)

const day = 24 * time.Hour

// Record is the last firing of one rule for one cultivation.
type Record struct {
	RuleID          string    `json:"rule_id" db:"rule_id"`
	CultivationID   string    `json:"cultivation_id" db:"cultivation_id"`
	LastTriggeredAt time.Time `json:"last_triggered_at" db:"last_triggered_at"`
}

// Store persists cooldown records. Implementations must make TryAcquire a
// single critical section per (rule, cultivation) pair.
type Store interface {
	// IsEligible reports whether the rule may fire: no record exists, or at
	// least cooldownDays have passed since the last firing.
	IsEligible(ctx context.Context, ruleID, cultivationID string, cooldownDays int, now time.Time) (bool, error)

	// MarkTriggered upserts the record with now.
	MarkTriggered(ctx context.Context, ruleID, cultivationID string, now time.Time) error

	// TryAcquire checks eligibility and marks the pair as triggered in one
	// step. It returns false when the pair is cooling down or another caller
	// holds it.
	TryAcquire(ctx context.Context, ruleID, cultivationID string, cooldownDays int, now time.Time) (bool, error)

	// Release removes a record written by TryAcquire at firedAt, restoring
	// eligibility. A record since overwritten by another firing is kept.
	Release(ctx context.Context, ruleID, cultivationID string, firedAt time.Time) error

	// PurgeOlderThan deletes records last triggered before cutoff and returns
	// how many were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// CountActive counts records still inside their rule's window. windows
	// maps rule IDs to cooldown days; rules absent from it are not counted.
	CountActive(ctx context.Context, now time.Time, windows map[string]int) (int, error)
}

// Window converts a cooldown in days to a duration.
func Window(cooldownDays int) time.Duration {
	if cooldownDays <= 0 {
		return 0
	}
	return time.Duration(cooldownDays) * day
}

// Elapsed reports whether a record last triggered at last is out of its
// cooldown window at now.
func Elapsed(last time.Time, cooldownDays int, now time.Time) bool {
	return now.Sub(last) >= Window(cooldownDays)
}

// Purge removes records older than age relative to now.
func Purge(ctx context.Context, s Store, now time.Time, age time.Duration) (int, error) {
	return s.PurgeOlderThan(ctx, now.Add(-age))
}
