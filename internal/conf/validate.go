// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strings"
)

var (
	validLogLevels       = []string{"trace", "debug", "info", "warn", "error"}
	validDatabaseTypes   = []string{"sqlite", "mysql"}
	validBackends        = []string{"auto", "tflite", "onnx"}
	validNormalizations  = []string{"", "unit", "imagenet", "raw255"}
	supportedMQTTSchemes = []string{"tcp://", "ssl://", "tls://", "ws://", "wss://", "mqtt://", "mqtts://"}
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateLoggingSettings,
		func(s *Settings) error { return validateWebServerSettings(&s.WebServer) },
		func(s *Settings) error { return validateDatabaseSettings(&s.Database) },
		func(s *Settings) error { return validateEmotionSettings(&s.Emotion) },
		func(s *Settings) error { return validateMQTTSettings(&s.MQTT) },
		func(s *Settings) error { return validateSentrySettings(&s.Sentry) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(s *Settings) error {
	var errs []error
	check := func(name, level string) {
		if level == "" {
			return
		}
		if err := oneOf(strings.ToLower(level), validLogLevels); err != nil {
			errs = append(errs, fmt.Errorf("logging %s level: %w", name, err))
		}
	}

	check("default", s.Logging.DefaultLevel)
	if s.Logging.Console != nil {
		check("console", s.Logging.Console.Level)
	}
	if s.Logging.FileOutput != nil {
		check("file", s.Logging.FileOutput.Level)
	}
	for module, level := range s.Logging.ModuleLevels {
		check(module, level)
	}
	return errors.Join(errs...)
}

func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []error

	if settings.Port < 1 || settings.Port > 65535 {
		errs = append(errs, fmt.Errorf("webserver port must be between 1 and 65535, got %d", settings.Port))
	}
	if settings.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("webserver maxuploadmb must be positive, got %d", settings.MaxUploadMB))
	}
	if settings.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("webserver ratelimit rps must be non-negative, got %g", settings.RateLimit.RPS))
	}
	if settings.RateLimit.RPS > 0 && settings.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("webserver ratelimit burst must be positive when rps is set, got %d", settings.RateLimit.Burst))
	}
	if settings.History.DefaultLimit < 1 {
		errs = append(errs, fmt.Errorf("webserver history defaultlimit must be positive, got %d", settings.History.DefaultLimit))
	}
	if settings.History.MaxLimit < settings.History.DefaultLimit {
		errs = append(errs, fmt.Errorf("webserver history maxlimit (%d) must not be below defaultlimit (%d)",
			settings.History.MaxLimit, settings.History.DefaultLimit))
	}
	if settings.History.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("webserver history cachettl must be non-negative, got %s", settings.History.CacheTTL))
	}

	return errors.Join(errs...)
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	if err := oneOf(settings.Type, validDatabaseTypes); err != nil {
		return fmt.Errorf("database type %q: %w", settings.Type, err)
	}

	switch settings.Type {
	case "sqlite":
		if settings.SQLite.Path == "" {
			return errors.New("database sqlite path is required")
		}
	case "mysql":
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" || settings.MySQL.Username == "" {
			return errors.New("database mysql host, username and database are required")
		}
	}
	return nil
}

func validateEmotionSettings(settings *EmotionSettings) error {
	var errs []error

	for species, d := range map[string]DetectorSettings{"cat": settings.Cat, "dog": settings.Dog} {
		if !d.Enabled {
			continue
		}
		if d.ModelPath == "" {
			errs = append(errs, fmt.Errorf("emotion %s modelpath is required", species))
		}
		if err := oneOf(d.Backend, validBackends); err != nil {
			errs = append(errs, fmt.Errorf("emotion %s backend %q: %w", species, d.Backend, err))
		}
		if err := oneOf(d.Normalization, validNormalizations); err != nil {
			errs = append(errs, fmt.Errorf("emotion %s normalization %q: %w", species, d.Normalization, err))
		}
		if d.ModelURL != "" {
			if err := validateEnvURL(d.ModelURL); err != nil {
				errs = append(errs, fmt.Errorf("emotion %s modelurl: %w", species, err))
			}
		}
	}

	if settings.Inference.Threads < 0 {
		errs = append(errs, fmt.Errorf("emotion inference threads must be non-negative, got %d", settings.Inference.Threads))
	}
	if settings.Inference.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("emotion inference maxconcurrent must be positive, got %d", settings.Inference.MaxConcurrent))
	}

	return errors.Join(errs...)
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []error
	if settings.Broker == "" {
		errs = append(errs, errors.New("mqtt broker is required when mqtt is enabled"))
	} else if !hasSupportedScheme(settings.Broker) {
		errs = append(errs, fmt.Errorf("mqtt broker %q must start with one of %s",
			settings.Broker, strings.Join(supportedMQTTSchemes, ", ")))
	}
	if settings.Topic == "" {
		errs = append(errs, errors.New("mqtt topic is required when mqtt is enabled"))
	}
	if settings.QoS < 0 || settings.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", settings.QoS))
	}
	return errors.Join(errs...)
}

func hasSupportedScheme(broker string) bool {
	for _, scheme := range supportedMQTTSchemes {
		if strings.HasPrefix(broker, scheme) {
			return true
		}
	}
	return false
}

func validateSentrySettings(settings *SentrySettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.DSN == "" {
		return errors.New("sentry dsn is required when sentry is enabled")
	}
	if settings.SampleRate < 0 || settings.SampleRate > 1 {
		return fmt.Errorf("sentry samplerate must be between 0 and 1, got %g", settings.SampleRate)
	}
	return nil
}
