package core

import (
	"fmt"
	"strings"
	"time"
)

// RetryConfig carries the external tunables for the resilience executor.
// Durations are expressed in integer units so the config survives koanf and
// environment-variable round trips without custom decode hooks.
type RetryConfig struct {
	MaxAttempts        int     `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS   int     `koanf:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	BackoffFactor      float64 `koanf:"backoff_factor" mapstructure:"backoff_factor"`
	OperationTimeoutMS int     `koanf:"operation_timeout_ms" mapstructure:"operation_timeout_ms"`
	AcquireTimeoutMS   int     `koanf:"acquire_timeout_ms" mapstructure:"acquire_timeout_ms"`
}

type IngestConfig struct {
	RescheduleDelayMS  int `koanf:"reschedule_delay_ms" mapstructure:"reschedule_delay_ms"`
	DedupBucketSeconds int `koanf:"dedup_bucket_seconds" mapstructure:"dedup_bucket_seconds"`
}

type Config struct {
	ServiceName string       `koanf:"service_name" mapstructure:"service_name"`
	Retry       RetryConfig  `koanf:"retry" mapstructure:"retry"`
	Ingest      IngestConfig `koanf:"ingest" mapstructure:"ingest"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "inbox",
		Retry: RetryConfig{
			MaxAttempts:        3,
			InitialBackoffMS:   1000,
			BackoffFactor:      1.5,
			OperationTimeoutMS: 30_000,
			AcquireTimeoutMS:   5_000,
		},
		Ingest: IngestConfig{
			RescheduleDelayMS:  5_000,
			DedupBucketSeconds: 1,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("core: retry.max_attempts must be >= 1")
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("core: retry.backoff_factor must be >= 1")
	}
	if c.Retry.InitialBackoffMS < 0 ||
		c.Retry.OperationTimeoutMS < 0 ||
		c.Retry.AcquireTimeoutMS < 0 ||
		c.Ingest.RescheduleDelayMS < 0 {
		return fmt.Errorf("core: durations must not be negative")
	}
	if c.Ingest.DedupBucketSeconds < 1 {
		return fmt.Errorf("core: ingest.dedup_bucket_seconds must be >= 1")
	}
	return nil
}

func (c RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

func (c RetryConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutMS) * time.Millisecond
}

func (c RetryConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMS) * time.Millisecond
}

func (c IngestConfig) RescheduleDelay() time.Duration {
	return time.Duration(c.RescheduleDelayMS) * time.Millisecond
}

func (c IngestConfig) DedupBucket() time.Duration {
	return time.Duration(c.DedupBucketSeconds) * time.Second
}
