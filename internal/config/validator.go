package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "claim.max_retries")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// agentIDRegex matches the ids the record store accepts as log names
var agentIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// reservedAgentIDs are recipient keywords that can never name a real agent
var reservedAgentIDs = []string{"all", "auto"}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateClaim()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if path := c.Store.Root; path != "" {
		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "store.root",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "store.root",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	if c.Store.SQLiteBusyTimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.sqlite_busy_timeout_ms",
			Value:   c.Store.SQLiteBusyTimeoutMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateClaim validates the ClaimConfig
func (c *Config) validateClaim() []ValidationError {
	var errors []ValidationError

	if c.Claim.MaxRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "claim.max_retries",
			Value:   c.Claim.MaxRetries,
			Message: "must be at least 1",
		})
	}

	const maxRetries = 1000
	if c.Claim.MaxRetries > maxRetries {
		errors = append(errors, ValidationError{
			Field:   "claim.max_retries",
			Value:   c.Claim.MaxRetries,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRetries),
		})
	}

	if c.Claim.BackoffBaseMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "claim.backoff_base_ms",
			Value:   c.Claim.BackoffBaseMs,
			Message: "must be non-negative",
		})
	}

	if c.Claim.BackoffMaxMs < c.Claim.BackoffBaseMs {
		errors = append(errors, ValidationError{
			Field:   "claim.backoff_max_ms",
			Value:   c.Claim.BackoffMaxMs,
			Message: fmt.Sprintf("must be at least backoff_base_ms (%d)", c.Claim.BackoffBaseMs),
		})
	}

	return errors
}

// validateAgent validates the AgentConfig
func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	// An unset id is fine here; commands that send messages reject it themselves
	id := c.Agent.ID
	if id == "" {
		return errors
	}

	if !agentIDRegex.MatchString(id) || len(id) > 128 {
		errors = append(errors, ValidationError{
			Field:   "agent.id",
			Value:   id,
			Message: "must start with a letter or digit and contain only letters, digits, '.', '_' or '-' (max 128)",
		})
	}

	if slices.Contains(reservedAgentIDs, id) {
		errors = append(errors, ValidationError{
			Field:   "agent.id",
			Value:   id,
			Message: fmt.Sprintf("is reserved (%s)", strings.Join(reservedAgentIDs, ", ")),
		})
	}

	return errors
}

// validateWatch validates the WatchConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	const minInterval = 10 * time.Millisecond
	if c.Watch.Interval < minInterval {
		errors = append(errors, ValidationError{
			Field:   "watch.interval",
			Value:   c.Watch.Interval,
			Message: fmt.Sprintf("must be at least %s", minInterval),
		})
	}

	return errors
}

// validateOutput validates the OutputConfig
func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	if c.Output.Format != "" && !slices.Contains(ValidOutputFormats(), c.Output.Format) {
		errors = append(errors, ValidationError{
			Field:   "output.format",
			Value:   c.Output.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputFormats(), ", ")),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
