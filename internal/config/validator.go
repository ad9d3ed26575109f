package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
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

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// validHistoryBackends are the supported recent history stores.
var validHistoryBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(config *Config) error {
	var errs ValidationErrors

	addError := func(path, format string, args ...interface{}) {
		errs = append(errs, ValidationError{
			Path:    path,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if config.Port < 1 || config.Port > 65535 {
		addError("port", "must be between 1 and 65535, got %d", config.Port)
	}

	if config.MaxBodyBytes < 0 {
		addError("maxBodyBytes", "must not be negative, got %d", config.MaxBodyBytes)
	}

	if config.UpstreamTimeout < 0 {
		addError("upstreamTimeout", "must not be negative, got %s", config.UpstreamTimeout)
	}

	if config.RoutesFile == "" {
		addError("routesFile", "must not be empty")
	}

	if config.HistoryFile == "" {
		addError("historyFile", "must not be empty")
	}

	if config.HistoryCapacity < 1 {
		addError("historyCapacity", "must be at least 1, got %d", config.HistoryCapacity)
	}

	if !validHistoryBackends[config.HistoryBackend] {
		addError("historyBackend", "must be one of memory, redis; got %q", config.HistoryBackend)
	}

	if config.HistoryBackend == "redis" && config.RedisAddress == "" {
		addError("redisAddress", "must be set when historyBackend is redis")
	}

	for i, host := range config.AllowedHosts {
		if strings.TrimSpace(host) == "" {
			addError(fmt.Sprintf("allowedHosts[%d]", i), "must not be blank")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
