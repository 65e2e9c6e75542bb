// Package metrics provides custom Prometheus metrics for the PetMood service.
package metrics

// Recorder defines a minimal interface for recording metrics, so components
// can depend on an abstraction rather than on a concrete collector.
type Recorder interface {
	// RecordOperation records an operation with its status ("success" or "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// NopRecorder discards everything. Components use it when no metrics are configured.
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string)  {}
func (NopRecorder) RecordDuration(string, float64) {}
func (NopRecorder) RecordError(string, string)     {}

var _ Recorder = NopRecorder{}
