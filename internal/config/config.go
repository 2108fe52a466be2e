// Package config defines the process configuration for growcycle. It is
// loaded once at startup and treated as immutable thereafter.
//
// Values are resolved with the priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct defaults (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"growcycle/internal/types"
)

// SecretString is an alias for types.SecretString so secrets are redacted
// wherever the config is logged or serialized.
type SecretString = types.SecretString

// PlaceholderTriggerSecret is the shipped default for JOB_TRIGGER_SECRET. It
// is accepted only when APP_ENV is local or dev.
const PlaceholderTriggerSecret = "change-me"

// Delivery modes.
const (
	DeliverySQS  = "sqs"
	DeliveryPush = "push"
	DeliveryNone = "none"
)

// Config is the top-level configuration.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"growcycle"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Jobs          JobsConfig
	Rules         RulesConfig
	Delivery      DeliveryConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"5m"` // job runs are synchronous
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region            string `envconfig:"AWS_REGION" default:"us-east-1"`
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`

	// LocalStack support. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// JobsConfig controls job triggering and the runner.
type JobsConfig struct {
	TriggerSecret SecretString `envconfig:"JOB_TRIGGER_SECRET" default:"change-me" validate:"required"`

	Concurrency     int           `envconfig:"JOBS_CONCURRENCY" default:"8" validate:"min=1,max=64"`
	DistributedLock bool          `envconfig:"JOBS_DISTRIBUTED_LOCK" default:"true"`
	LockTTL         time.Duration `envconfig:"JOBS_LOCK_TTL" default:"15m"`
	RecordHistory   bool          `envconfig:"JOBS_RECORD_HISTORY" default:"true"`

	NotificationRetention time.Duration `envconfig:"NOTIFICATION_RETENTION" default:"2160h"`
	CooldownRetention     time.Duration `envconfig:"COOLDOWN_RETENTION" default:"720h"`
	RedeliveryGrace       time.Duration `envconfig:"REDELIVERY_GRACE" default:"5m"`
	RedeliveryBatch       int           `envconfig:"REDELIVERY_BATCH" default:"100" validate:"min=1,max=1000"`
}

// RulesConfig holds the built-in rule thresholds and cooldown windows, all
// in days.
type RulesConfig struct {
	IrrigationDays    int `envconfig:"RULE_IRRIGATION_THRESHOLD_DAYS" default:"3" validate:"min=1"`
	FertilizationDays int `envconfig:"RULE_FERTILIZATION_THRESHOLD_DAYS" default:"7" validate:"min=1"`
	HarvestAlertDays  int `envconfig:"RULE_HARVEST_THRESHOLD_DAYS" default:"70" validate:"min=1"`
	VegetativeDays    int `envconfig:"RULE_VEGETATIVE_THRESHOLD_DAYS" default:"60" validate:"min=1"`

	IrrigationCooldownDays      int `envconfig:"RULE_IRRIGATION_COOLDOWN_DAYS" default:"1" validate:"min=0"`
	FertilizationCooldownDays   int `envconfig:"RULE_FERTILIZATION_COOLDOWN_DAYS" default:"3" validate:"min=0"`
	HarvestAlertCooldownDays    int `envconfig:"RULE_HARVEST_COOLDOWN_DAYS" default:"7" validate:"min=0"`
	PhaseTransitionCooldownDays int `envconfig:"RULE_PHASE_TRANSITION_COOLDOWN_DAYS" default:"7" validate:"min=0"`
	SevereProblemCooldownDays   int `envconfig:"RULE_SEVERE_PROBLEM_COOLDOWN_DAYS" default:"1" validate:"min=0"`
	AchievementCooldownDays     int `envconfig:"RULE_ACHIEVEMENT_COOLDOWN_DAYS" default:"3650" validate:"min=0"`

	// Disabled lists rule IDs registered but switched off.
	Disabled []string `envconfig:"RULE_DISABLED"`
}

// DeliveryConfig selects how persisted notifications leave the system.
type DeliveryConfig struct {
	Mode        string        `envconfig:"DELIVERY_MODE" default:"sqs" validate:"oneof=sqs push none"`
	PushURL     string        `envconfig:"DELIVERY_PUSH_URL" validate:"omitempty,url"`
	PushToken   SecretString  `envconfig:"DELIVERY_PUSH_TOKEN"`
	PushTimeout time.Duration `envconfig:"DELIVERY_PUSH_TIMEOUT" default:"10s"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"GrowCycle"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// IsLocal reports whether the environment tolerates development defaults.
func (c *Config) IsLocal() bool {
	return c.Environment == "local" || c.Environment == "dev"
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a value could not be parsed into its target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrInsecureDefault indicates a shipped placeholder is still in use
	// outside local development.
	ErrInsecureDefault ConfigErrorType = "INSECURE_DEFAULT"
)
