package core

import (
	"context"
	"testing"
)

func TestCfgxConfigProviderAppliesDefaults(t *testing.T) {
	provider := NewCfgxConfigProvider(nil)

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "inbox" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.OperationTimeoutMS != 30_000 {
		t.Fatalf("expected 30s operation timeout, got %dms", cfg.Retry.OperationTimeoutMS)
	}
}

func TestCfgxConfigProviderOverridesFromLoader(t *testing.T) {
	provider := NewCfgxConfigProvider(NewStaticRawConfigLoader(map[string]any{
		"retry": map[string]any{
			"max_attempts": 5,
		},
	}))

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("expected loader override, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialBackoffMS != 1000 {
		t.Fatalf("expected untouched default backoff, got %d", cfg.Retry.InitialBackoffMS)
	}
}

func TestGoOptionsResolverRuntimeWins(t *testing.T) {
	defaults := DefaultConfig()
	loaded := defaults
	loaded.Retry.MaxAttempts = 4

	runtime := Config{}
	runtime.Retry.MaxAttempts = 7
	runtime.Ingest.RescheduleDelayMS = 2_500

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if resolved.Retry.MaxAttempts != 7 {
		t.Fatalf("expected runtime layer to win, got %d", resolved.Retry.MaxAttempts)
	}
	if resolved.Ingest.RescheduleDelayMS != 2_500 {
		t.Fatalf("expected runtime reschedule delay, got %d", resolved.Ingest.RescheduleDelayMS)
	}
	if resolved.ServiceName != "inbox" {
		t.Fatalf("expected default service name to survive, got %q", resolved.ServiceName)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retry.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero attempts")
	}

	cfg = DefaultConfig()
	cfg.Retry.BackoffFactor = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for shrinking backoff")
	}

	cfg = DefaultConfig()
	cfg.ServiceName = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for blank service name")
	}
}
