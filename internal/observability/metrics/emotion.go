package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EmotionMetrics contains all Prometheus metrics related to emotion detection.
// All methods are safe to call on a nil receiver.
type EmotionMetrics struct {
	PredictionsTotal   *prometheus.CounterVec
	PredictionErrors   *prometheus.CounterVec
	InferenceDuration  *prometheus.HistogramVec
	ModelLoadTotal     *prometheus.CounterVec
	DetectorReadyGauge *prometheus.GaugeVec
	InflightGauge      *prometheus.GaugeVec
}

// NewEmotionMetrics creates and registers emotion metrics on registry.
func NewEmotionMetrics(registry *prometheus.Registry) (*EmotionMetrics, error) {
	m := &EmotionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register emotion metrics: %w", err)
	}
	return m, nil
}

func (m *EmotionMetrics) initMetrics() {
	m.PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_predictions_total",
			Help: "Total number of successful predictions partitioned by species and emotion.",
		},
		[]string{"species", "emotion"},
	)

	m.PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_prediction_errors_total",
			Help: "Total number of failed predictions partitioned by species and error kind.",
		},
		[]string{"species", "kind"},
	)

	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petmood_inference_duration_seconds",
			Help:    "Time taken by Predict, from decode to argmax.",
			Buckets: defaultLatencyBuckets,
		},
		[]string{"species"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_model_load_total",
			Help: "Total number of model load attempts.",
		},
		[]string{"species", "status"},
	)

	m.DetectorReadyGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "petmood_detector_ready",
			Help: "Whether the detector for a species has a loaded model (1) or not (0).",
		},
		[]string{"species"},
	)

	m.InflightGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "petmood_inference_inflight",
			Help: "Number of predictions currently holding an inference slot.",
		},
		[]string{"species"},
	)
}

// RecordPrediction records a successful prediction and its duration.
func (m *EmotionMetrics) RecordPrediction(species, emotion string, seconds float64) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(species, emotion).Inc()
	m.InferenceDuration.WithLabelValues(species).Observe(seconds)
}

// RecordPredictionError records a failed prediction. kind is one of
// "decode", "unavailable", "inference" or "canceled".
func (m *EmotionMetrics) RecordPredictionError(species, kind string) {
	if m == nil {
		return
	}
	m.PredictionErrors.WithLabelValues(species, kind).Inc()
}

// RecordModelLoad records a model load attempt and updates the ready gauge.
func (m *EmotionMetrics) RecordModelLoad(species string, ready bool) {
	if m == nil {
		return
	}
	status := StatusSuccess
	value := 1.0
	if !ready {
		status = StatusError
		value = 0
	}
	m.ModelLoadTotal.WithLabelValues(species, status).Inc()
	m.DetectorReadyGauge.WithLabelValues(species).Set(value)
}

// AddInflight adjusts the in-flight gauge by delta.
func (m *EmotionMetrics) AddInflight(species string, delta float64) {
	if m == nil {
		return
	}
	m.InflightGauge.WithLabelValues(species).Add(delta)
}

// Describe implements the prometheus.Collector interface.
func (m *EmotionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PredictionsTotal.Describe(ch)
	m.PredictionErrors.Describe(ch)
	m.InferenceDuration.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	m.DetectorReadyGauge.Describe(ch)
	m.InflightGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EmotionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PredictionsTotal.Collect(ch)
	m.PredictionErrors.Collect(ch)
	m.InferenceDuration.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	m.DetectorReadyGauge.Collect(ch)
	m.InflightGauge.Collect(ch)
}
