// Package app assembles the growcycle dependency graph from a Config. The
// API server, the scheduler Lambda and the job-runner CLI all start from
// Build so they run the same rules against the same stores.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"growcycle/internal/config"
	"growcycle/internal/db"
	"growcycle/internal/external"
	"growcycle/internal/genetics"
	"growcycle/internal/lifecycle"
	notifcore "growcycle/internal/notifications/core"
	"growcycle/internal/rules"
	"growcycle/internal/scheduler"
)

// Components is the assembled graph. Metrics is nil when metrics are
// disabled.
type Components struct {
	Config *config.Config
	Logger *slog.Logger

	Pool          *pgxpool.Pool
	Cultivations  *db.CultivationRepository
	Notifications *db.NotificationRepository
	Cooldowns     *db.CooldownRepository

	Engine    *rules.Engine
	Resolver  *genetics.Resolver
	Scorer    *lifecycle.Scorer
	Deliverer scheduler.Deliverer
	Metrics   *notifcore.CloudWatchMetrics
	Runner    *scheduler.Runner
}

// Close releases the database pool.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// NewLogger returns a JSON logger writing to w at the named level. Unknown
// levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Build connects to the database and AWS and wires every component.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := NewEngine(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("building rules engine: %w", err)
	}

	pool, err := NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		pool.Close()
		return nil, err
	}

	c := &Components{
		Config:        cfg,
		Logger:        logger,
		Pool:          pool,
		Cultivations:  db.NewCultivationRepository(pool),
		Notifications: db.NewNotificationRepository(pool),
		Cooldowns:     db.NewCooldownRepository(pool),
		Engine:        engine,
		Resolver:      genetics.NewResolver(nil),
	}
	c.Scorer = lifecycle.NewScorer(c.Resolver)

	c.Deliverer, err = NewDeliverer(cfg, awsCfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.Observability.EnableMetrics {
		c.Metrics = notifcore.NewCloudWatchMetrics(
			cloudwatch.NewFromConfig(awsCfg, cloudWatchEndpoint(cfg.AWS.EndpointURL)),
			cfg.Observability.MetricNamespace, logger)
	}

	opts := []scheduler.Option{}
	if cfg.Jobs.DistributedLock {
		opts = append(opts, scheduler.WithJobLocker(db.NewJobLockRepository(pool)))
	}
	if cfg.Jobs.RecordHistory {
		opts = append(opts, scheduler.WithHistory(db.NewJobHistoryRepository(pool)))
	}
	if c.Metrics != nil {
		opts = append(opts, scheduler.WithMetrics(c.Metrics))
	}

	c.Runner, err = scheduler.NewRunner(scheduler.Deps{
		Cultivations:  c.Cultivations,
		Notifications: c.Notifications,
		Cooldowns:     c.Cooldowns,
		Engine:        engine,
		Resolver:      c.Resolver,
		Deliverer:     c.Deliverer,
	}, RunnerConfig(cfg.Jobs), logger, opts...)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building runner: %w", err)
	}

	logger.Info("components ready",
		slog.String("delivery_mode", cfg.Delivery.Mode),
		slog.Bool("metrics", c.Metrics != nil),
		slog.Bool("distributed_lock", cfg.Jobs.DistributedLock),
	)
	return c, nil
}

// NewPool opens a pgx pool tuned from cfg and verifies connectivity within
// the acquire timeout.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// NewEngine registers the built-in rules with thresholds from cfg and
// switches off every rule named in cfg.Disabled.
func NewEngine(cfg config.RulesConfig) (*rules.Engine, error) {
	engine, err := rules.NewEngine(rules.DefaultRules(Thresholds(cfg))...)
	if err != nil {
		return nil, err
	}
	for _, id := range cfg.Disabled {
		if err := engine.SetEnabled(id, false); err != nil {
			return nil, fmt.Errorf("disabling rule %q: %w", id, err)
		}
	}
	return engine, nil
}

// Thresholds maps rule configuration onto rules.Thresholds.
func Thresholds(cfg config.RulesConfig) rules.Thresholds {
	return rules.Thresholds{
		IrrigationDays:              cfg.IrrigationDays,
		FertilizationDays:           cfg.FertilizationDays,
		HarvestAlertDays:            cfg.HarvestAlertDays,
		VegetativeDays:              cfg.VegetativeDays,
		IrrigationCooldownDays:      cfg.IrrigationCooldownDays,
		FertilizationCooldownDays:   cfg.FertilizationCooldownDays,
		HarvestAlertCooldownDays:    cfg.HarvestAlertCooldownDays,
		PhaseTransitionCooldownDays: cfg.PhaseTransitionCooldownDays,
		SevereProblemCooldownDays:   cfg.SevereProblemCooldownDays,
		AchievementCooldownDays:     cfg.AchievementCooldownDays,
	}
}

// RunnerConfig maps job configuration onto scheduler.RunnerConfig.
func RunnerConfig(cfg config.JobsConfig) scheduler.RunnerConfig {
	return scheduler.RunnerConfig{
		Concurrency:           cfg.Concurrency,
		NotificationRetention: cfg.NotificationRetention,
		CooldownRetention:     cfg.CooldownRetention,
		RedeliveryGrace:       cfg.RedeliveryGrace,
		RedeliveryBatch:       cfg.RedeliveryBatch,
		LockTTL:               cfg.LockTTL,
	}
}

// NewDeliverer selects the delivery channel named by cfg.Delivery.Mode.
func NewDeliverer(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (scheduler.Deliverer, error) {
	switch cfg.Delivery.Mode {
	case config.DeliverySQS:
		client := sqs.NewFromConfig(awsCfg, sqsEndpoint(cfg.AWS.EndpointURL))
		return notifcore.NewNotificationPublisher(client, cfg.AWS.NotificationQueue, logger), nil
	case config.DeliveryPush:
		return external.NewDefaultPushClient(cfg.Delivery.PushURL, cfg.Delivery.PushToken, cfg.Delivery.PushTimeout), nil
	case config.DeliveryNone:
		logger.Warn("notification delivery disabled; notifications are only persisted")
		return notifcore.NopDeliverer{}, nil
	default:
		return nil, fmt.Errorf("unknown delivery mode %q", cfg.Delivery.Mode)
	}
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// sqsEndpoint points the SQS client at AWS_ENDPOINT_URL (LocalStack) when set.
func sqsEndpoint(endpoint string) func(*sqs.Options) {
	return func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}
}

func cloudWatchEndpoint(endpoint string) func(*cloudwatch.Options) {
	return func(o *cloudwatch.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}
}
