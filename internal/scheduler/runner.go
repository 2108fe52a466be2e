package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"growcycle/internal/cooldown"
	"growcycle/internal/genetics"
	"growcycle/internal/lifecycle"
	"growcycle/internal/rules"
	"growcycle/internal/types"
)

// CultivationSource loads the cultivations a rule job evaluates.
type CultivationSource interface {
	ListActive(ctx context.Context) ([]types.Cultivation, error)
}

// NotificationStore persists notifications and tracks their delivery.
type NotificationStore interface {
	Create(ctx context.Context, n *types.Notification) error
	ListUndelivered(ctx context.Context, createdBefore time.Time, limit int) ([]types.Notification, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ProfileResolver resolves the growth profile for a cultivation.
type ProfileResolver interface {
	Resolve(plantType types.PlantType, geneticsName string, overrides *types.GeneticsOverrides) genetics.Resolution
}

// Deliverer hands a persisted notification to the delivery channel.
type Deliverer interface {
	Deliver(ctx context.Context, msg types.NotificationMessage) error
}

// JobLocker is a cross-instance lock. db.JobLockRepository implements it.
type JobLocker interface {
	Acquire(ctx context.Context, lockID, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID, workerID string) error
}

// JobHistory records run outcomes. db.JobHistoryRepository implements it.
type JobHistory interface {
	Start(ctx context.Context, job string, referenceTime time.Time) (int64, error)
	Finish(ctx context.Context, run types.JobRun) error
}

// Metrics receives run telemetry. core.CloudWatchMetrics implements it.
type Metrics interface {
	RecordJobRun(ctx context.Context, job, status string, duration time.Duration)
	RecordNotification(ctx context.Context, t types.NotificationType)
	RecordEvaluationFailure(ctx context.Context, job string, count int)
	RecordDeliveryFailure(ctx context.Context, t types.NotificationType)
}

// RunnerConfig holds the tunables of a Runner.
type RunnerConfig struct {
	// Concurrency bounds how many cultivations are evaluated at once.
	Concurrency int
	// NotificationRetention is how long read notifications are kept.
	NotificationRetention time.Duration
	// CooldownRetention is the minimum age of a purged cooldown record. The
	// longest rule window is used instead when it is larger.
	CooldownRetention time.Duration
	// RedeliveryGrace keeps maintenance away from notifications whose first
	// hand-off may still be in flight.
	RedeliveryGrace time.Duration
	// RedeliveryBatch caps notifications re-delivered per maintenance run.
	RedeliveryBatch int
	// LockTTL is the lifetime of a distributed job lock.
	LockTTL time.Duration
}

// DefaultRunnerConfig returns the production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Concurrency:           8,
		NotificationRetention: 90 * 24 * time.Hour,
		CooldownRetention:     30 * 24 * time.Hour,
		RedeliveryGrace:       5 * time.Minute,
		RedeliveryBatch:       100,
		LockTTL:               15 * time.Minute,
	}
}

// Deps are the collaborators every Runner needs.
type Deps struct {
	Cultivations  CultivationSource
	Notifications NotificationStore
	Cooldowns     cooldown.Store
	Engine        *rules.Engine
	Resolver      ProfileResolver
	Deliverer     Deliverer
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithJobLocker enables the distributed lock in addition to the in-process
// one.
func WithJobLocker(l JobLocker) Option {
	return func(r *Runner) { r.locker = l }
}

// WithHistory records every run in job history.
func WithHistory(h JobHistory) Option {
	return func(r *Runner) { r.history = h }
}

// WithMetrics publishes run telemetry.
func WithMetrics(m Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithIDGenerator overrides notification ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) { r.newID = fn }
}

// Runner executes job categories. Each category runs at most once at a time
// per process; a concurrent trigger for a running category is answered with
// StatusAlreadyRunning instead of waiting.
type Runner struct {
	deps    Deps
	cfg     RunnerConfig
	logger  *slog.Logger
	locker  JobLocker
	history JobHistory
	metrics Metrics
	newID   func() string

	workerID string

	// locks is built once in NewRunner and never mutated.
	locks map[JobCategory]*sync.Mutex

	statsMu   sync.RWMutex
	running   map[JobCategory]bool
	lastRunAt map[JobCategory]time.Time
	runCounts map[JobCategory]int
	engine    RulesEngineStats
}

// NewRunner creates a Runner. A nil logger falls back to slog.Default().
func NewRunner(deps Deps, cfg RunnerConfig, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if deps.Cultivations == nil || deps.Notifications == nil || deps.Cooldowns == nil ||
		deps.Engine == nil || deps.Resolver == nil || deps.Deliverer == nil {
		return nil, errors.New("scheduler: all runner dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	r := &Runner{
		deps:      deps,
		cfg:       cfg,
		logger:    logger,
		newID:     uuid.NewString,
		workerID:  uuid.NewString(),
		locks:     make(map[JobCategory]*sync.Mutex),
		running:   make(map[JobCategory]bool),
		lastRunAt: make(map[JobCategory]time.Time),
		runCounts: make(map[JobCategory]int),
	}
	for _, c := range append(AllJobCategories(), JobAll) {
		r.locks[c] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(r)
	}

	st := deps.Engine.Stats()
	r.engine = RulesEngineStats{TotalRules: st.TotalRules, ActiveRules: st.ActiveRules}
	return r, nil
}

// Run executes job at the reference time now. It never returns an error:
// every outcome, including failure, is expressed in the RunResult.
func (r *Runner) Run(ctx context.Context, job JobCategory, now time.Time) RunResult {
	var results []CategoryResult
	var status RunStatus

	if _, known := r.locks[job]; !known {
		_, err := ParseJobCategory(string(job))
		if err == nil {
			err = types.NewAppErrorWithDetails(types.ErrCodeValidationUnknownJob,
				"unknown job category", nil, map[string]any{"job": string(job)})
		}
		r.logger.ErrorContext(ctx, "refusing to run unknown job", "job", string(job))
		return RunResult{
			Job:        job,
			Status:     StatusFailed,
			Stats:      r.Stats(),
			Timestamp:  now,
			Categories: []CategoryResult{{Job: job, Status: StatusFailed, Error: err.Error()}},
		}
	}

	if job == JobAll {
		status, results = r.runAll(ctx, now)
	} else {
		res := r.runCategory(ctx, job, now)
		status, results = res.Status, []CategoryResult{res}
	}

	return RunResult{
		Job:        job,
		Status:     status,
		Stats:      r.Stats(),
		Timestamp:  now,
		Categories: results,
	}
}

func (r *Runner) runAll(ctx context.Context, now time.Time) (RunStatus, []CategoryResult) {
	unlock, ok := r.lock(ctx, JobAll)
	if !ok {
		return StatusAlreadyRunning, []CategoryResult{alreadyRunning(JobAll)}
	}
	defer unlock()

	r.setRunning(JobAll, true)
	status := StatusCompleted
	results := make([]CategoryResult, 0, len(AllJobCategories()))
	for _, c := range AllJobCategories() {
		res := r.runCategory(ctx, c, now)
		if res.Status != StatusCompleted {
			status = StatusPartial
		}
		results = append(results, res)
	}
	r.finish(ctx, JobAll, now)
	return status, results
}

func (r *Runner) runCategory(ctx context.Context, job JobCategory, now time.Time) CategoryResult {
	logger := r.logger.With("job", string(job))

	unlock, ok := r.lock(ctx, job)
	if !ok {
		logger.InfoContext(ctx, "job already running, skipping trigger")
		return alreadyRunning(job)
	}
	defer unlock()

	r.setRunning(job, true)
	started := time.Now()
	historyID := r.startHistory(ctx, job, now)

	var (
		counts JobCounts
		err    error
	)
	if cat, isRule := job.ruleCategory(); isRule {
		counts, err = r.evaluate(ctx, logger, job, cat, now)
	} else if job == JobCleanup {
		counts, err = r.cleanup(ctx, logger, now)
	} else {
		counts, err = r.maintain(ctx, logger, now)
	}

	res := CategoryResult{Job: job, Counts: counts, Status: statusFor(job, counts, err)}
	if err != nil {
		res.Error = err.Error()
		logger.ErrorContext(ctx, "job failed", "error", err)
	} else {
		logger.InfoContext(ctx, "job finished",
			"status", string(res.Status),
			"notifications", counts.Notifications,
			"failures", counts.failures(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}

	r.finish(ctx, job, now)
	r.finishHistory(ctx, historyID, now, res)
	if r.metrics != nil {
		r.metrics.RecordJobRun(ctx, string(job), string(res.Status), time.Since(started))
		r.metrics.RecordEvaluationFailure(ctx, string(job), counts.failures())
	}
	return res
}

func alreadyRunning(job JobCategory) CategoryResult {
	err := types.NewAppErrorWithDetails(types.ErrCodeConflictJobRunning,
		"job is already running", nil, map[string]any{"job": string(job)})
	return CategoryResult{Job: job, Status: StatusAlreadyRunning, Error: err.Error()}
}

func statusFor(job JobCategory, counts JobCounts, err error) RunStatus {
	switch {
	case err != nil:
		return StatusFailed
	case counts.failures() > 0:
		return StatusPartial
	case job == JobMaintenance && counts.DeliveryErrors > 0:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

// lock takes the in-process lock for job and, when configured, the
// distributed one. The returned func releases both.
func (r *Runner) lock(ctx context.Context, job JobCategory) (func(), bool) {
	mu := r.locks[job]
	if !mu.TryLock() {
		return nil, false
	}
	if r.locker == nil {
		return mu.Unlock, true
	}

	lockID := "job:" + string(job)
	acquired, err := r.locker.Acquire(ctx, lockID, r.workerID, r.cfg.LockTTL)
	if err != nil || !acquired {
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to acquire distributed job lock", "job", string(job), "error", err)
		}
		mu.Unlock()
		return nil, false
	}
	return func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), lockID, r.workerID); err != nil {
			r.logger.WarnContext(ctx, "failed to release distributed job lock", "job", string(job), "error", err)
		}
		mu.Unlock()
	}, true
}

// evaluate runs the rules of cat against every active cultivation.
// Per-cultivation failures are counted, never returned.
func (r *Runner) evaluate(ctx context.Context, logger *slog.Logger, job JobCategory, cat rules.Category, now time.Time) (JobCounts, error) {
	var counts JobCounts

	list, err := r.deps.Cultivations.ListActive(ctx)
	if err != nil {
		return counts, fmt.Errorf("loading active cultivations: %w", err)
	}
	counts.Cultivations = len(list)
	if len(list) == 0 {
		return counts, nil
	}

	windows := r.deps.Engine.Windows()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.cfg.Concurrency)
	for i := range list {
		c := &list[i]
		g.Go(func() error {
			res := r.evaluateOne(ctx, logger, c, cat, windows, now)
			mu.Lock()
			counts.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return counts, nil
}

func (r *Runner) evaluateOne(ctx context.Context, logger *slog.Logger, c *types.Cultivation, cat rules.Category, windows map[string]int, now time.Time) (counts JobCounts) {
	logger = logger.With("cultivation_id", c.ID)
	defer func() {
		if p := recover(); p != nil {
			logger.ErrorContext(ctx, "cultivation evaluation panicked", "panic", fmt.Sprint(p))
			counts.RuleErrors++
		}
	}()

	res := r.deps.Resolver.Resolve(c.PlantType, c.GeneticsName, c.Overrides)
	for _, w := range res.Warnings {
		logger.DebugContext(ctx, "profile warning", "warning", w)
	}

	in := rules.Input{
		Cultivation: c,
		Profile:     res.Profile,
		Phase:       lifecycle.ComputePhase(c.StartDate, now, res.Profile),
		Now:         now,
	}
	drafts, ruleErrs := r.deps.Engine.Evaluate(in, cat)
	for _, re := range ruleErrs {
		logger.WarnContext(ctx, "rule evaluation failed", "rule_id", re.RuleID, "error", re.Err)
		counts.RuleErrors++
	}

	for _, d := range drafts {
		r.fire(ctx, logger.With("rule_id", d.RuleID), d, windows[d.RuleID], now, &counts)
	}
	return counts
}

// fire claims the cooldown for d, persists the notification and hands it to
// delivery. A notification that cannot be persisted gives its cooldown back.
func (r *Runner) fire(ctx context.Context, logger *slog.Logger, d rules.Draft, cooldownDays int, now time.Time, counts *JobCounts) {
	acquired, err := r.deps.Cooldowns.TryAcquire(ctx, d.RuleID, d.CultivationID, cooldownDays, now)
	if err != nil {
		logger.ErrorContext(ctx, "cooldown check failed", "error", err)
		counts.CooldownErrors++
		return
	}
	if !acquired {
		counts.CooldownSkips++
		return
	}

	n := &types.Notification{
		ID:            r.newID(),
		CultivationID: d.CultivationID,
		RuleID:        d.RuleID,
		Type:          d.Type,
		Priority:      d.Priority,
		Title:         d.Title,
		Message:       d.Message,
		Metadata:      d.Metadata,
		CreatedAt:     now,
	}
	if err := r.deps.Notifications.Create(ctx, n); err != nil {
		logger.ErrorContext(ctx, "failed to persist notification", "error", err)
		counts.PersistErrors++
		if rerr := r.deps.Cooldowns.Release(ctx, d.RuleID, d.CultivationID, now); rerr != nil {
			logger.ErrorContext(ctx, "failed to release cooldown", "error", rerr)
		}
		return
	}
	counts.Notifications++
	if r.metrics != nil {
		r.metrics.RecordNotification(ctx, n.Type)
	}

	if err := r.deps.Deliverer.Deliver(ctx, types.NewNotificationMessage(n)); err != nil {
		logger.WarnContext(ctx, "notification delivery failed, left for maintenance",
			"notification_id", n.ID, "error", err)
		counts.DeliveryErrors++
		if r.metrics != nil {
			r.metrics.RecordDeliveryFailure(ctx, n.Type)
		}
		return
	}
	if err := r.deps.Notifications.MarkDelivered(ctx, n.ID, now); err != nil {
		logger.WarnContext(ctx, "failed to mark notification delivered",
			"notification_id", n.ID, "error", err)
	}
}

// Preview reports the drafts a rule job would emit at now without claiming
// cooldowns or writing anything. Cleanup and maintenance have no preview.
func (r *Runner) Preview(ctx context.Context, job JobCategory, now time.Time) ([]rules.Draft, error) {
	cats := []JobCategory{job}
	if job == JobAll {
		cats = AllJobCategories()
	}

	list, err := r.deps.Cultivations.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active cultivations: %w", err)
	}
	windows := r.deps.Engine.Windows()

	var out []rules.Draft
	for _, c := range cats {
		cat, ok := c.ruleCategory()
		if !ok {
			continue
		}
		for i := range list {
			cult := &list[i]
			res := r.deps.Resolver.Resolve(cult.PlantType, cult.GeneticsName, cult.Overrides)
			drafts, _ := r.deps.Engine.Evaluate(rules.Input{
				Cultivation: cult,
				Profile:     res.Profile,
				Phase:       lifecycle.ComputePhase(cult.StartDate, now, res.Profile),
				Now:         now,
			}, cat)
			for _, d := range drafts {
				eligible, err := r.deps.Cooldowns.IsEligible(ctx, d.RuleID, d.CultivationID, windows[d.RuleID], now)
				if err != nil {
					return nil, err
				}
				if eligible {
					out = append(out, d)
				}
			}
		}
	}
	return out, nil
}

// Stats returns a snapshot of the run state. It may trail an in-flight run.
func (r *Runner) Stats() JobRunStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()

	st := JobRunStats{
		Running:     make([]JobCategory, 0, len(r.running)),
		LastRunAt:   make(map[JobCategory]time.Time, len(r.lastRunAt)),
		RunCounts:   make(map[JobCategory]int, len(r.runCounts)),
		RulesEngine: r.engine,
	}
	for c, on := range r.running {
		if on {
			st.Running = append(st.Running, c)
		}
	}
	slices.Sort(st.Running)
	st.IsRunning = len(st.Running) > 0
	for c, t := range r.lastRunAt {
		st.LastRunAt[c] = t
	}
	for c, n := range r.runCounts {
		st.RunCounts[c] = n
	}
	return st
}

func (r *Runner) setRunning(job JobCategory, on bool) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.running[job] = on
}

// finish moves job back to idle and recomputes the engine stats. The
// cooldown count is read before taking the stats lock.
func (r *Runner) finish(ctx context.Context, job JobCategory, now time.Time) {
	st := r.deps.Engine.Stats()
	active, err := r.deps.Cooldowns.CountActive(ctx, now, r.deps.Engine.Windows())
	if err != nil {
		r.logger.WarnContext(ctx, "failed to count active cooldowns", "job", string(job), "error", err)
	}

	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.running[job] = false
	r.lastRunAt[job] = now
	r.runCounts[job]++
	r.engine.TotalRules = st.TotalRules
	r.engine.ActiveRules = st.ActiveRules
	if err == nil {
		r.engine.CooldownsActive = active
	}
}

func (r *Runner) startHistory(ctx context.Context, job JobCategory, now time.Time) int64 {
	if r.history == nil {
		return 0
	}
	id, err := r.history.Start(ctx, string(job), now)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to record job start", "job", string(job), "error", err)
		return 0
	}
	return id
}

func (r *Runner) finishHistory(ctx context.Context, id int64, now time.Time, res CategoryResult) {
	if r.history == nil || id == 0 {
		return
	}
	run := types.JobRun{
		ID:            id,
		Job:           string(res.Job),
		ReferenceTime: now,
		Status:        string(res.Status),
		Notifications: res.Counts.Notifications,
		Failures:      res.Counts.failures(),
		Items:         res.Counts.items(),
		Error:         res.Error,
	}
	if err := r.history.Finish(context.WithoutCancel(ctx), run); err != nil {
		r.logger.WarnContext(ctx, "failed to record job finish", "job", string(res.Job), "error", err)
	}
}
