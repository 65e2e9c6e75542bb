package repository

import (
	"context"
	"time"
)

// Species names with a history table.
const (
	SpeciesCat = "cat"
	SpeciesDog = "dog"
)

const (
	tableCatHistory = "cat_emotion_history"
	tableDogHistory = "dog_emotion_history"
)

// HistoryRecord is one detection to persist. Save fills ID and CreatedAt.
type HistoryRecord struct {
	ID            uint
	PetID         uint
	Emotion       string
	Confidence    float64
	Probabilities map[string]float64
	ImageURL      *string
	CreatedAt     time.Time
}

// HistoryEntry is a stored detection joined with its pet's name. PetName is
// nil when the pet row is gone.
type HistoryEntry struct {
	ID            uint               `json:"id"`
	PetID         uint               `json:"pet_id"`
	PetName       *string            `json:"pet_name"`
	Emotion       string             `json:"emotion"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities" gorm:"serializer:json"`
	ImageURL      *string            `json:"image_url"`
	CreatedAt     time.Time          `json:"created_at"`
}

// HistoryRepository stores and queries per-species emotion history.
type HistoryRepository interface {
	// Save inserts rec into the species table. The pet must exist.
	Save(ctx context.Context, species string, rec *HistoryRecord) error
	// List returns up to limit rows for petID, newest first.
	List(ctx context.Context, species string, petID uint, limit int) ([]HistoryEntry, error)
	// Count returns the number of rows stored for petID.
	Count(ctx context.Context, species string, petID uint) (int64, error)
}

func historyTable(species string) (string, error) {
	switch species {
	case SpeciesCat:
		return tableCatHistory, nil
	case SpeciesDog:
		return tableDogHistory, nil
	default:
		return "", ErrUnknownSpecies
	}
}
