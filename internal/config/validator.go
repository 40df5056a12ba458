package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "polling.interval_ms")
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

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBus()...)
	errors = append(errors, c.validatePolling()...)
	errors = append(errors, c.validateCleanup()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateBus validates the BusConfig
func (c *Config) validateBus() []ValidationError {
	var errors []ValidationError

	if c.Bus.Root != "" {
		path := c.Bus.Root

		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "bus.root",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Most filesystems cap paths around 4096
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "bus.root",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

// validatePolling validates the PollingConfig
func (c *Config) validatePolling() []ValidationError {
	var errors []ValidationError

	const minInterval = 10    // 10ms minimum
	const maxInterval = 60000 // 1 minute maximum

	if c.Polling.IntervalMs < minInterval {
		errors = append(errors, ValidationError{
			Field:   "polling.interval_ms",
			Value:   c.Polling.IntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minInterval),
		})
	}
	if c.Polling.IntervalMs > maxInterval {
		errors = append(errors, ValidationError{
			Field:   "polling.interval_ms",
			Value:   c.Polling.IntervalMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxInterval),
		})
	}

	if c.Polling.WaitTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "polling.wait_timeout_seconds",
			Value:   c.Polling.WaitTimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateCleanup validates the CleanupConfig
func (c *Config) validateCleanup() []ValidationError {
	var errors []ValidationError

	if c.Cleanup.StaleThresholdMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "cleanup.stale_threshold_minutes",
			Value:   c.Cleanup.StaleThresholdMinutes,
			Message: "must be non-negative (0 treats all instances as stale)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
