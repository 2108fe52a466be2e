package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"growcycle/internal/cooldown"
	"growcycle/internal/types"
)

// cleanup deletes read notifications past retention and cooldown records
// that no rule window can still see. Each step runs even if the other fails.
func (r *Runner) cleanup(ctx context.Context, logger *slog.Logger, now time.Time) (JobCounts, error) {
	var counts JobCounts

	cutoff := now.Add(-r.cfg.NotificationRetention)
	purged, err := r.deps.Notifications.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		logger.ErrorContext(ctx, "failed to purge read notifications", "error", err)
		counts.StepErrors++
	} else {
		counts.NotificationsPurged = purged
	}

	age := r.cooldownPurgeAge()
	removed, cerr := cooldown.Purge(ctx, r.deps.Cooldowns, now, age)
	if cerr != nil {
		logger.ErrorContext(ctx, "failed to purge cooldown records", "error", cerr)
		counts.StepErrors++
	} else {
		counts.CooldownsPurged = removed
	}

	if err != nil && cerr != nil {
		return counts, fmt.Errorf("cleanup: %w", err)
	}

	logger.InfoContext(ctx, "cleanup complete",
		"notifications_purged", counts.NotificationsPurged,
		"cooldowns_purged", counts.CooldownsPurged,
		"notification_cutoff", cutoff.Format(time.RFC3339),
		"cooldown_age_days", int(age/(24*time.Hour)),
	)
	return counts, nil
}

// cooldownPurgeAge never undercuts the longest registered rule window, so
// purging cannot make a rule eligible early.
func (r *Runner) cooldownPurgeAge() time.Duration {
	age := r.cfg.CooldownRetention
	for _, days := range r.deps.Engine.Windows() {
		if w := cooldown.Window(days); w > age {
			age = w
		}
	}
	return age
}

// maintain re-delivers notifications whose hand-off failed, oldest first,
// in a bounded batch.
func (r *Runner) maintain(ctx context.Context, logger *slog.Logger, now time.Time) (JobCounts, error) {
	var counts JobCounts

	pending, err := r.deps.Notifications.ListUndelivered(ctx, now.Add(-r.cfg.RedeliveryGrace), r.cfg.RedeliveryBatch)
	if err != nil {
		return counts, fmt.Errorf("listing undelivered notifications: %w", err)
	}

	for i := range pending {
		n := &pending[i]
		msg := types.NewNotificationMessage(n)
		msg.RetryCount = 1

		if err := r.deps.Deliverer.Deliver(ctx, msg); err != nil {
			logger.WarnContext(ctx, "redelivery failed",
				"notification_id", n.ID,
				"rule_id", n.RuleID,
				"error", err,
			)
			counts.DeliveryErrors++
			if r.metrics != nil {
				r.metrics.RecordDeliveryFailure(ctx, n.Type)
			}
			continue
		}
		if err := r.deps.Notifications.MarkDelivered(ctx, n.ID, now); err != nil {
			logger.ErrorContext(ctx, "failed to mark notification delivered",
				"notification_id", n.ID,
				"error", err,
			)
			counts.StepErrors++
			continue
		}
		counts.Redelivered++
	}

	if len(pending) > 0 {
		logger.InfoContext(ctx, "redelivery complete",
			"pending", len(pending),
			"redelivered", counts.Redelivered,
			"failed", counts.DeliveryErrors,
		)
	}
	return counts, nil
}
