package errors

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported atomic.Int32
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported.Add(1)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderCarriesContext(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := Newf("load failed for %s", "cat").
		Component("emotion").
		Category(CategoryModelLoad).
		Priority(PriorityHigh).
		ModelContext("/models/cat.onnx", "cat").
		FileContext("/models/cat.onnx", 2048).
		Timing("model-load", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "emotion", ee.GetComponent())
	assert.Equal(t, CategoryModelLoad, ee.Category)
	assert.Equal(t, PriorityHigh, ee.GetPriority())

	ctx := ee.GetContext()
	assert.Equal(t, "onnx", ctx["model_format"])
	assert.Equal(t, "cat", ctx["species"])
	assert.Equal(t, "absolute-path", ctx["file_type"])
	assert.Equal(t, "small", ctx["file_size_category"])
	assert.Equal(t, "model-load", ctx["operation"])
	assert.EqualValues(t, 1500, ctx["duration_ms"])

	// Returned context is a copy
	ctx["species"] = "dog"
	assert.Equal(t, "cat", ee.GetContext()["species"])
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestEnhancedErrorUnwrapAndIs(t *testing.T) {
	sentinel := NewStd("pet not found")
	wrapped := fmt.Errorf("save: %w", sentinel)
	ee := New(wrapped).Category(CategoryNotFound).Build()

	require.ErrorIs(t, ee, sentinel)
	assert.True(t, IsNotFound(ee))
	assert.True(t, IsCategory(fmt.Errorf("outer: %w", ee), CategoryNotFound))
	assert.False(t, IsCategory(ee, CategoryDatabase))
	assert.ErrorIs(t, ee, &EnhancedError{Category: CategoryNotFound})
}

func TestHooksAndReporterReceiveErrors(t *testing.T) {
	reporter := &recordingReporter{}
	var hookCalls atomic.Int32

	SetTelemetryReporter(reporter)
	AddErrorHook(func(ee *EnhancedError) { hookCalls.Add(1) })
	t.Cleanup(func() {
		SetTelemetryReporter(nil)
		ClearErrorHooks()
	})

	ee := New(NewStd("inference backend failed")).Component("emotion").Build()

	assert.Equal(t, int32(1), reporter.reported.Load())
	assert.Equal(t, int32(1), hookCalls.Load())
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryInference, ee.Category)
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"model load", NewStd("failed to load model file"), "", CategoryModelLoad},
		{"model init", NewStd("model interpreter missing"), "", CategoryModelInit},
		{"decode", NewStd("image: unknown format"), "", CategoryImageDecode},
		{"timeout", NewStd("context deadline exceeded"), "", CategoryTimeout},
		{"database component", NewStd("constraint failed"), "datastore", CategoryDatabase},
		{"mqtt component", NewStd("not connected"), "mqtt", CategoryMQTTPublish},
		{"generic", NewStd("boom"), "", CategoryGeneric},
		{"nested enhanced", fmt.Errorf("wrap: %w", &EnhancedError{Err: NewStd("x"), Category: CategoryLimit}), "", CategoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestBasicURLScrub(t *testing.T) {
	scrubbed := basicURLScrub("Error at https://models.example.com/cat.onnx?token=abc123&sig=zzz")
	assert.Equal(t, "Error at https://models.example.com/cat.onnx?[REDACTED]", scrubbed)

	scrubbed = basicURLScrub("Config error: api_key=secret123 is invalid")
	assert.Contains(t, scrubbed, "[API_KEY_REDACTED]")
	assert.NotContains(t, scrubbed, "secret123")

	scrubbed = basicURLScrub("dial failed for root:hunter2@tcp(db:3306)/petmood")
	assert.NotContains(t, scrubbed, "hunter2")
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "save_history").
		Build()

	assert.Equal(t, "Datastore Database Error Save History", generateErrorTitle(ee))
}
