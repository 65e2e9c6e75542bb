package emotion

import (
	"maps"
	"math"
)

// Prediction is the result of classifying one image. It is immutable; use
// Probabilities to obtain the distribution.
type Prediction struct {
	Label      string
	Confidence float64
	dist       map[string]float64
}

// Probabilities returns a copy of the label to probability map. It contains
// every label of the species, values are non-negative and sum to 1.
func (p *Prediction) Probabilities() map[string]float64 {
	return maps.Clone(p.dist)
}

// newPrediction pairs labels with probs and picks the argmax. Ties go to the
// lowest index, i.e. the first label in species order.
func newPrediction(labels []string, probs []float64) *Prediction {
	dist := make(map[string]float64, len(labels))
	best := 0
	for i, label := range labels {
		dist[label] = probs[i]
		if probs[i] > probs[best] {
			best = i
		}
	}
	return &Prediction{
		Label:      labels[best],
		Confidence: probs[best],
		dist:       dist,
	}
}

// softmax converts logits to probabilities. The maximum is subtracted before
// exponentiation so large logits cannot overflow.
func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, float64(v))
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// renormalize rescales an output that is already a probability vector so it
// sums to exactly 1. Negative values are clamped to 0. ok is false when the
// vector has no positive mass.
func renormalize(outputs []float32) (probs []float64, ok bool) {
	probs = make([]float64, len(outputs))
	var sum float64
	for i, v := range outputs {
		probs[i] = math.Max(0, float64(v))
		sum += probs[i]
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		return nil, false
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, true
}

// finite reports whether every value is a real number.
func finite(values []float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
