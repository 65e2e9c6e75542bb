package mqtt

import "time"

// DetectionEventDTO is the payload published after a detection is stored.
// Field names are part of the topic contract consumed by subscribers.
type DetectionEventDTO struct {
	Species       string             `json:"species"`
	PetID         uint               `json:"pet_id"`
	RecordID      uint               `json:"record_id"`
	Emotion       string             `json:"emotion"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	CreatedAt     time.Time          `json:"created_at"`
}
