// Package telemetry provides opt-in, privacy-filtered error tracking.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/privacy"
)

// allowedExtra lists the event extra keys that survive filtering.
var allowedExtra = map[string]bool{
	"error_type": true,
	"component":  true,
}

// InitSentry initializes the Sentry SDK and installs it as the error
// reporter. It does nothing unless sentry is enabled in settings.
func InitSentry(settings *conf.Settings, release string, log logger.Logger) error {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	log = log.Module("telemetry")

	if !settings.Sentry.Enabled {
		log.Debug("sentry telemetry disabled")
		return nil
	}

	if err := sentry.Init(clientOptions(&settings.Sentry, release)); err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("app", "petmood")
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
	})

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("sentry telemetry enabled",
		logger.String("environment", settings.Sentry.Environment),
		logger.Float64("sample_rate", settings.Sentry.SampleRate))
	return nil
}

// Flush waits up to timeout for buffered events to be sent and detaches
// the reporter.
func Flush(timeout time.Duration) bool {
	errors.SetTelemetryReporter(nil)
	return sentry.Flush(timeout)
}

func clientOptions(settings *conf.SentrySettings, release string) sentry.ClientOptions {
	sampleRate := settings.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}
	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	return sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          "petmood@" + release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
}

// applyPrivacyFilters strips host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if !allowedExtra[k] {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	if event.Request != nil {
		event.Request.Cookies = ""
		event.Request.Headers = nil
		event.Request.URL = privacy.ScrubMessage(event.Request.URL)
		event.Request.QueryString = ""
	}

	return event
}
