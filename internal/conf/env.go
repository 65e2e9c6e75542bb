// env.go - Environment variable configuration and validation for PetMood
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "PETMOOD_DEBUG", validateEnvBool},
		{"logging.default_level", "PETMOOD_LOG_LEVEL", validateEnvLogLevel},

		// Web server
		{"webserver.host", "PETMOOD_HOST", nil},
		{"webserver.port", "PETMOOD_PORT", validateEnvPort},
		{"webserver.ratelimit.rps", "PETMOOD_RATELIMIT_RPS", validateEnvNonNegativeFloat},
		{"webserver.ratelimit.burst", "PETMOOD_RATELIMIT_BURST", validateEnvNonNegativeInt},

		// Database
		{"database.type", "PETMOOD_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "PETMOOD_SQLITE_PATH", nil},
		{"database.mysql.host", "PETMOOD_MYSQL_HOST", nil},
		{"database.mysql.port", "PETMOOD_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "PETMOOD_MYSQL_USERNAME", nil},
		{"database.mysql.password", "PETMOOD_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "PETMOOD_MYSQL_DATABASE", nil},

		// Models
		{"emotion.cat.modelpath", "PETMOOD_CAT_MODELPATH", nil},
		{"emotion.cat.modelurl", "PETMOOD_CAT_MODELURL", validateEnvURL},
		{"emotion.cat.backend", "PETMOOD_CAT_BACKEND", validateEnvBackend},
		{"emotion.dog.modelpath", "PETMOOD_DOG_MODELPATH", nil},
		{"emotion.dog.modelurl", "PETMOOD_DOG_MODELURL", validateEnvURL},
		{"emotion.dog.backend", "PETMOOD_DOG_BACKEND", validateEnvBackend},
		{"emotion.inference.threads", "PETMOOD_INFERENCE_THREADS", validateEnvNonNegativeInt},
		{"emotion.inference.onnxlibrarypath", "PETMOOD_ONNX_LIBRARY", nil},

		// MQTT
		{"mqtt.enabled", "PETMOOD_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "PETMOOD_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "PETMOOD_MQTT_USERNAME", nil},
		{"mqtt.password", "PETMOOD_MQTT_PASSWORD", nil},

		// Telemetry
		{"sentry.enabled", "PETMOOD_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "PETMOOD_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative, got %d", n)
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("must be non-negative, got %g", f)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	return oneOf(strings.ToLower(value), validLogLevels)
}

func validateEnvDatabaseType(value string) error {
	return oneOf(value, validDatabaseTypes)
}

func validateEnvBackend(value string) error {
	return oneOf(value, validBackends)
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host, got %q", value)
	}
	return nil
}

func oneOf(value string, valid []string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("must be one of: %s", strings.Join(valid, ", "))
}
