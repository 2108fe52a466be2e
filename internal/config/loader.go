// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
//  6. Apply cross-field and deployment checks.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the configuration from the environment.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	// godotenv does not override variables that are already set.
	_ = godotenv.Load()

	if _, ok := os.LookupEnv("APP_ENV"); !ok {
		return nil, &ConfigError{
			Type:    ErrMissingEnv,
			Message: "APP_ENV must be set",
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// check enforces rules the struct tags cannot express.
func (c *Config) check() error {
	if !c.IsLocal() && c.Jobs.TriggerSecret.Matches(PlaceholderTriggerSecret) {
		return &ConfigError{
			Type:    ErrInsecureDefault,
			Message: fmt.Sprintf("JOB_TRIGGER_SECRET still has its placeholder value in %s", c.Environment),
		}
	}

	switch c.Delivery.Mode {
	case DeliverySQS:
		if c.AWS.NotificationQueue == "" {
			return &ConfigError{
				Type:    ErrMissingEnv,
				Message: "SQS_NOTIFICATIONS is required when DELIVERY_MODE=sqs",
			}
		}
	case DeliveryPush:
		if c.Delivery.PushURL == "" {
			return &ConfigError{
				Type:    ErrMissingEnv,
				Message: "DELIVERY_PUSH_URL is required when DELIVERY_MODE=push",
			}
		}
	}
	return nil
}
