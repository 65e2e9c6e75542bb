package telemetry

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/privacy"
)

// mockTransport captures events instead of sending them.
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool               { return true }
func (t *mockTransport) FlushWithContext(context.Context) bool { return true }
func (t *mockTransport) Close()                                {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func initTestSentry(t *testing.T) *mockTransport {
	t.Helper()

	transport := &mockTransport{}
	opts := clientOptions(&conf.SentrySettings{
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
	}, "test")
	opts.Transport = transport
	require.NoError(t, sentry.Init(opts))

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	t.Cleanup(func() {
		errors.SetTelemetryReporter(nil)
		errors.SetPrivacyScrubber(nil)
	})
	return transport
}

func TestInitSentryDisabled(t *testing.T) {
	settings := &conf.Settings{}
	err := InitSentry(settings, "dev", logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestClientOptionsDefaults(t *testing.T) {
	opts := clientOptions(&conf.SentrySettings{SampleRate: 7}, "1.2.3")
	assert.InDelta(t, 1.0, opts.SampleRate, 0)
	assert.Equal(t, "production", opts.Environment)
	assert.Equal(t, "petmood@1.2.3", opts.Release)
	assert.False(t, opts.AttachStacktrace)
	assert.Empty(t, opts.ServerName)

	opts = clientOptions(&conf.SentrySettings{SampleRate: 0.25, Environment: "staging"}, "1.2.3")
	assert.InDelta(t, 0.25, opts.SampleRate, 0)
	assert.Equal(t, "staging", opts.Environment)
}

func TestReportedErrorIsScrubbed(t *testing.T) {
	transport := initTestSentry(t)

	_ = errors.New(errors.NewStd("download https://models.example.com/cat.tflite: status 500")).
		Component("emotion").
		Category(errors.CategoryModelFetch).
		Context("url", "https://models.example.com/cat.tflite").
		Build()

	events := transport.Events()
	require.Len(t, events, 1)
	event := events[0]

	assert.NotContains(t, event.Message, "models.example.com")
	assert.Contains(t, event.Message, "[model-fetch]")
	assert.Equal(t, "emotion", event.Tags["component"])
	assert.Equal(t, sentry.LevelWarning, event.Level)
	require.Len(t, event.Exception, 1)
	assert.NotContains(t, event.Exception[0].Value, "models.example.com")
	assert.Empty(t, event.ServerName)
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.User = sentry.User{ID: "42", Email: "owner@example.com"}
	event.ServerName = "kitchen-pi"
	event.Message = "connect tcp://admin:pw@192.168.1.2:1883 failed"
	event.Contexts["device"] = sentry.Context{"arch": "arm64"}
	event.Contexts["trace"] = sentry.Context{"trace_id": "abc"}
	event.Extra["component"] = "mqtt"
	event.Extra["path"] = "/home/owner/models"
	event.Tags["hostname"] = "kitchen-pi"
	event.Request = &sentry.Request{
		URL:         "http://192.168.1.2:8080/api/cat/detect",
		QueryString: "token=abc",
		Cookies:     "session=1",
		Headers:     map[string]string{"Authorization": "Bearer x"},
	}

	filtered := applyPrivacyFilters(event)

	assert.True(t, filtered.User.IsEmpty())
	assert.Empty(t, filtered.ServerName)
	assert.NotContains(t, filtered.Message, "admin")
	assert.NotContains(t, filtered.Contexts, "device")
	assert.Contains(t, filtered.Contexts, "trace")
	assert.Equal(t, map[string]any{"component": "mqtt"}, filtered.Extra)
	assert.NotContains(t, filtered.Tags, "hostname")
	assert.Empty(t, filtered.Request.QueryString)
	assert.Empty(t, filtered.Request.Cookies)
	assert.Nil(t, filtered.Request.Headers)
	assert.NotContains(t, filtered.Request.URL, "192.168.1.2")
}
