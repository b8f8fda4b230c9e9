package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. validator caches struct metadata,
// so a single instance is cheaper than creating one per call.
var validate = validator.New()

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct tag validation (ports, required fields) is handled by validator;
// cross-field rules and values outside tag expressiveness are checked here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateLogging(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// A secret set in the config file must already be long enough.
	// An env-provided secret is checked again at server startup.
	if cfg.API.JWT.Secret != "" && len(cfg.API.JWT.Secret) < 32 {
		return fmt.Errorf("api.jwt.secret must be at least 32 characters")
	}

	return nil
}

// validateLogging checks the logging section.
func validateLogging(cfg *Config) error {
	switch cfg.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR (got %q)", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", cfg.Logging.Format)
	}

	if cfg.Logging.Output == "" {
		return fmt.Errorf("logging.output must be set")
	}

	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s failed %q validation",
			strings.ToLower(fieldErr.Namespace()), fieldErr.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
