package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growcycle/internal/genetics"
	"growcycle/internal/rules"
	"growcycle/internal/types"
)

// ============================================================
// Cleanup
// ============================================================

func shortWindows() rules.Thresholds {
	th := rules.DefaultThresholds()
	th.AchievementCooldownDays = 10
	return th
}

func TestCleanup_PurgesNotificationsAndExpiredCooldowns(t *testing.T) {
	h := newHarnessWithThresholds(t, shortWindows())
	h.notifications.purgeCount = 5
	ctx := context.Background()
	require.NoError(t, h.cooldowns.MarkTriggered(ctx, rules.RuleIrrigation, "old", daysAgo(400)))
	require.NoError(t, h.cooldowns.MarkTriggered(ctx, rules.RuleIrrigation, "recent", daysAgo(2)))
	r := h.runner(t)

	res := r.Run(ctx, JobCleanup, testNow)

	require.Equal(t, StatusCompleted, res.Status)
	counts := res.Categories[0].Counts
	assert.Equal(t, 5, counts.NotificationsPurged)
	assert.Equal(t, 1, counts.CooldownsPurged)
	assert.Equal(t, testNow.Add(-90*24*time.Hour), h.notifications.purgeCut)

	snap := h.cooldowns.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "recent", snap[0].CultivationID)
}

func TestCleanup_NeverPurgesInsideLongestWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// Achievements keep a ten-year window by default.
	require.NoError(t, h.cooldowns.MarkTriggered(ctx, rules.RuleCycleCompleted, "c1", daysAgo(400)))
	r := h.runner(t)

	assert.Equal(t, 3650*24*time.Hour, r.cooldownPurgeAge())

	res := r.Run(ctx, JobCleanup, testNow)
	assert.Equal(t, 0, res.Categories[0].Counts.CooldownsPurged)
	assert.Len(t, h.cooldowns.Snapshot(), 1)
}

func TestCleanup_OneStepFailingIsPartial(t *testing.T) {
	h := newHarness(t)
	h.notifications.purgeErr = errors.New("timeout")
	r := h.runner(t)

	res := r.Run(context.Background(), JobCleanup, testNow)

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.Categories[0].Counts.StepErrors)
	assert.Empty(t, res.Categories[0].Error)
}

// ============================================================
// Maintenance
// ============================================================

func pendingNotification(id string) types.Notification {
	return types.Notification{
		ID:            id,
		CultivationID: "c1",
		RuleID:        rules.RuleIrrigation,
		Type:          types.NotificationIrrigationReminder,
		Priority:      types.PriorityMedium,
		Title:         "Water",
		CreatedAt:     daysAgo(1),
	}
}

func TestMaintenance_RedeliversBatch(t *testing.T) {
	h := newHarness(t)
	h.notifications.undelivered = []types.Notification{
		pendingNotification("n1"), pendingNotification("n2"), pendingNotification("n3"),
	}
	cfg := DefaultRunnerConfig()
	cfg.RedeliveryBatch = 2
	r, err := NewRunner(Deps{
		Cultivations:  h.cultivations,
		Notifications: h.notifications,
		Cooldowns:     h.cooldowns,
		Engine:        h.engine,
		Resolver:      genetics.NewResolver(nil),
		Deliverer:     h.deliverer,
	}, cfg, testLogger())
	require.NoError(t, err)

	res := r.Run(context.Background(), JobMaintenance, testNow)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Categories[0].Counts.Redelivered)
	assert.Len(t, h.deliverer.sent, 2)
	assert.Equal(t, testNow, h.notifications.delivered["n1"])
}

func TestMaintenance_DeliveryFailureIsPartial(t *testing.T) {
	h := newHarness(t)
	h.notifications.undelivered = []types.Notification{pendingNotification("n1")}
	h.deliverer.err = errors.New("still down")
	r := h.runner(t)

	res := r.Run(context.Background(), JobMaintenance, testNow)

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.Categories[0].Counts.DeliveryErrors)
	assert.Empty(t, h.notifications.delivered)
}

func TestMaintenance_MarkFailureIsPartial(t *testing.T) {
	h := newHarness(t)
	h.notifications.undelivered = []types.Notification{pendingNotification("n1")}
	h.notifications.markErr = types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	r := h.runner(t)

	res := r.Run(context.Background(), JobMaintenance, testNow)

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.Categories[0].Counts.StepErrors)
	assert.Equal(t, 0, res.Categories[0].Counts.Redelivered)
}

func TestMaintenance_ListFailureFails(t *testing.T) {
	h := newHarness(t)
	h.notifications.listErr = errors.New("db down")
	r := h.runner(t)

	res := r.Run(context.Background(), JobMaintenance, testNow)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Categories[0].Error, "listing undelivered notifications")
}

// ============================================================
// Stats
// ============================================================

func TestStats_SnapshotIsACopy(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t)
	r.Run(context.Background(), JobCleanup, testNow)

	snap := r.Stats()
	snap.RunCounts[JobCleanup] = 99
	snap.LastRunAt[JobCleanup] = time.Time{}

	fresh := r.Stats()
	assert.Equal(t, 1, fresh.RunCounts[JobCleanup])
	assert.Equal(t, testNow, fresh.LastRunAt[JobCleanup])
}
