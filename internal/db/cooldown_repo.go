package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"growcycle/internal/cooldown"
	"growcycle/internal/types"
)

var _ cooldown.Store = (*CooldownRepository)(nil)

// CooldownRepository stores rule cooldowns in the rule_cooldowns table,
// keyed by (rule_id, cultivation_id). TryAcquire is a single conditional
// upsert, so concurrent runners on different hosts cannot both win the same
// window.
type CooldownRepository struct {
	db DBTX
}

// NewCooldownRepository creates a new CooldownRepository backed by the given
// database connection (pool or transaction).
func NewCooldownRepository(db DBTX) *CooldownRepository {
	return &CooldownRepository{db: db}
}

func (r *CooldownRepository) IsEligible(ctx context.Context, ruleID, cultivationID string, cooldownDays int, now time.Time) (bool, error) {
	var last time.Time
	err := r.db.QueryRow(ctx,
		`SELECT last_triggered_at FROM rule_cooldowns
		 WHERE rule_id = $1 AND cultivation_id = $2`,
		ruleID,
		cultivationID,
	).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to read rule cooldown", err)
	}
	return cooldown.Elapsed(last, cooldownDays, now), nil
}

func (r *CooldownRepository) MarkTriggered(ctx context.Context, ruleID, cultivationID string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO rule_cooldowns (rule_id, cultivation_id, last_triggered_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (rule_id, cultivation_id) DO UPDATE
		   SET last_triggered_at = EXCLUDED.last_triggered_at`,
		ruleID,
		cultivationID,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark rule triggered", err)
	}
	return nil
}

// TryAcquire inserts or refreshes the record only when the existing one is
// at least cooldownDays old. RowsAffected is 0 while the rule is cooling down.
//
//	INSERT INTO rule_cooldowns (rule_id, cultivation_id, last_triggered_at)
//	VALUES ($1, $2, $3)
//	ON CONFLICT (rule_id, cultivation_id) DO UPDATE
//	  SET last_triggered_at = EXCLUDED.last_triggered_at
//	  WHERE rule_cooldowns.last_triggered_at <= $4
//
// The cutoff ($4) is computed in Go to avoid interval arithmetic in SQL.
func (r *CooldownRepository) TryAcquire(ctx context.Context, ruleID, cultivationID string, cooldownDays int, now time.Time) (bool, error) {
	cutoff := now.Add(-cooldown.Window(cooldownDays))

	tag, err := r.db.Exec(ctx,
		`INSERT INTO rule_cooldowns (rule_id, cultivation_id, last_triggered_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (rule_id, cultivation_id) DO UPDATE
		   SET last_triggered_at = EXCLUDED.last_triggered_at
		   WHERE rule_cooldowns.last_triggered_at <= $4`,
		ruleID,
		cultivationID,
		now,
		cutoff,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire rule cooldown", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CooldownRepository) Release(ctx context.Context, ruleID, cultivationID string, firedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM rule_cooldowns
		 WHERE rule_id = $1 AND cultivation_id = $2 AND last_triggered_at = $3`,
		ruleID,
		cultivationID,
		firedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release rule cooldown", err)
	}
	return nil
}

func (r *CooldownRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM rule_cooldowns WHERE last_triggered_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge rule cooldowns", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountActive joins the records against the supplied windows so expiry is
// evaluated per rule.
func (r *CooldownRepository) CountActive(ctx context.Context, now time.Time, windows map[string]int) (int, error) {
	if len(windows) == 0 {
		return 0, nil
	}
	ruleIDs := make([]string, 0, len(windows))
	cutoffs := make([]time.Time, 0, len(windows))
	for id, days := range windows {
		ruleIDs = append(ruleIDs, id)
		cutoffs = append(cutoffs, now.Add(-cooldown.Window(days)))
	}

	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM rule_cooldowns c
		 JOIN unnest($1::text[], $2::timestamptz[]) AS w(rule_id, cutoff)
		   ON w.rule_id = c.rule_id
		 WHERE c.last_triggered_at > w.cutoff`,
		ruleIDs,
		cutoffs,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count active cooldowns", err)
	}
	return count, nil
}
