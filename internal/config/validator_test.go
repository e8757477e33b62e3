package config

import (
	"strings"
	"testing"
	"time"
)

func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func TestConfig_Validate_Store(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		hasError bool
	}{
		{"file backend", func(c *Config) { c.Store.Backend = "file" }, "store.backend", false},
		{"sqlite backend", func(c *Config) { c.Store.Backend = "sqlite" }, "store.backend", false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend", true},
		{"empty backend", func(c *Config) { c.Store.Backend = "" }, "store.backend", true},
		{"backend is case sensitive", func(c *Config) { c.Store.Backend = "SQLite" }, "store.backend", true},
		{"absolute root", func(c *Config) { c.Store.Root = "/tmp/colony" }, "store.root", false},
		{"empty root uses default", func(c *Config) { c.Store.Root = "" }, "store.root", false},
		{"null byte in root", func(c *Config) { c.Store.Root = "bad\x00root" }, "store.root", true},
		{"overlong root", func(c *Config) { c.Store.Root = strings.Repeat("a", 5000) }, "store.root", true},
		{"zero busy timeout", func(c *Config) { c.Store.SQLiteBusyTimeoutMs = 0 }, "store.sqlite_busy_timeout_ms", false},
		{"negative busy timeout", func(c *Config) { c.Store.SQLiteBusyTimeoutMs = -1 }, "store.sqlite_busy_timeout_ms", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if got := hasFieldError(cfg.Validate(), tt.field); got != tt.hasError {
				t.Errorf("Validate() error on %s = %v, want %v", tt.field, got, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_Claim(t *testing.T) {
	tests := []struct {
		name     string
		claim    ClaimConfig
		field    string
		hasError bool
	}{
		{"defaults", ClaimConfig{MaxRetries: 8, BackoffBaseMs: 5, BackoffMaxMs: 200}, "claim.max_retries", false},
		{"single attempt", ClaimConfig{MaxRetries: 1}, "claim.max_retries", false},
		{"zero retries", ClaimConfig{MaxRetries: 0}, "claim.max_retries", true},
		{"too many retries", ClaimConfig{MaxRetries: 5000}, "claim.max_retries", true},
		{"negative base", ClaimConfig{MaxRetries: 1, BackoffBaseMs: -5}, "claim.backoff_base_ms", true},
		{"max below base", ClaimConfig{MaxRetries: 1, BackoffBaseMs: 50, BackoffMaxMs: 10}, "claim.backoff_max_ms", true},
		{"max equals base", ClaimConfig{MaxRetries: 1, BackoffBaseMs: 50, BackoffMaxMs: 50}, "claim.backoff_max_ms", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Claim = tt.claim
			if got := hasFieldError(cfg.Validate(), tt.field); got != tt.hasError {
				t.Errorf("Validate() error on %s = %v, want %v", tt.field, got, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_Agent(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		hasError bool
	}{
		{"unset", "", false},
		{"simple", "agent-a", false},
		{"dotted", "worker.1", false},
		{"reserved all", "all", true},
		{"reserved auto", "auto", true},
		{"leading dash", "-agent", true},
		{"contains slash", "team/agent", true},
		{"contains space", "agent a", true},
		{"too long", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Agent.ID = tt.id
			if got := hasFieldError(cfg.Validate(), "agent.id"); got != tt.hasError {
				t.Errorf("Validate() for id=%q: hasError=%v, want %v", tt.id, got, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_Watch(t *testing.T) {
	tests := []struct {
		interval time.Duration
		hasError bool
	}{
		{5 * time.Second, false},
		{10 * time.Millisecond, false},
		{time.Millisecond, true},
		{0, true},
		{-time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			cfg := Default()
			cfg.Watch.Interval = tt.interval
			if got := hasFieldError(cfg.Validate(), "watch.interval"); got != tt.hasError {
				t.Errorf("Validate() for interval=%s: hasError=%v, want %v", tt.interval, got, tt.hasError)
			}
		})
	}
}

func TestConfig_Validate_Output(t *testing.T) {
	for _, format := range []string{"table", "json", "yaml", ""} {
		cfg := Default()
		cfg.Output.Format = format
		if hasFieldError(cfg.Validate(), "output.format") {
			t.Errorf("format %q should be valid", format)
		}
	}

	cfg := Default()
	cfg.Output.Format = "xml"
	if !hasFieldError(cfg.Validate(), "output.format") {
		t.Error("expected error for unknown output format")
	}
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", ""} {
			cfg := Default()
			cfg.Logging.Level = level
			if hasFieldError(cfg.Validate(), "logging.level") {
				t.Errorf("level %q should be valid", level)
			}
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "invalid"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for invalid log level")
		}
	})

	t.Run("case sensitive log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "INFO"
		if !hasFieldError(cfg.Validate(), "logging.level") {
			t.Error("expected error for uppercase log level")
		}
	})

	t.Run("max size must be positive", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 0
		if !hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("expected error for zero max size")
		}
	})

	t.Run("max size too large", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 2000
		if !hasFieldError(cfg.Validate(), "logging.max_size_mb") {
			t.Error("expected error for excessive max size")
		}
	})

	t.Run("negative max backups", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = -1
		if !hasFieldError(cfg.Validate(), "logging.max_backups") {
			t.Error("expected error for negative max backups")
		}
	})

	t.Run("zero max backups is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = 0
		if hasFieldError(cfg.Validate(), "logging.max_backups") {
			t.Error("zero max backups should be valid")
		}
	})
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}

	if len(levels) != len(expected) {
		t.Fatalf("ValidLogLevels() length = %d, want %d", len(levels), len(expected))
	}
	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], level)
		}
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "bogus"
	cfg.Claim.MaxRetries = 0
	cfg.Logging.Level = "invalid"
	cfg.Watch.Interval = 0

	errs := cfg.Validate()
	if len(errs) < 4 {
		t.Errorf("expected at least 4 errors, got %d: %v", len(errs), errs)
	}
}
