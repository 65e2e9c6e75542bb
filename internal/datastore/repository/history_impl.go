package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/petmood/internal/datastore/entities"
	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/observability/metrics"
)

// historyRepository implements HistoryRepository.
type historyRepository struct {
	db      *gorm.DB
	metrics metrics.Recorder
}

// NewHistoryRepository creates a HistoryRepository. A nil recorder disables
// metrics.
func NewHistoryRepository(db *gorm.DB, recorder metrics.Recorder) HistoryRepository {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &historyRepository{db: db, metrics: recorder}
}

// Save checks the pet and inserts the row in one transaction, so a missing
// pet is reported as ErrPetNotFound regardless of how the dialect reports
// foreign key violations.
func (r *historyRepository) Save(ctx context.Context, species string, rec *HistoryRecord) error {
	table, err := historyTable(species)
	if err != nil {
		return err
	}
	if rec == nil || rec.PetID == 0 || rec.Emotion == "" {
		return ErrInvalidInput
	}

	start := time.Now()
	row := entities.EmotionHistory{
		PetID:         rec.PetID,
		Emotion:       rec.Emotion,
		Confidence:    rec.Confidence,
		Probabilities: rec.Probabilities,
		ImageURL:      rec.ImageURL,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pets int64
		if err := tx.Model(&entities.Pet{}).Where("id = ?", rec.PetID).Count(&pets).Error; err != nil {
			return err
		}
		if pets == 0 {
			return ErrPetNotFound
		}
		return tx.Table(table).Create(&row).Error
	})
	r.record(metrics.OpHistorySave, start, err)

	switch {
	case err == nil:
	case errors.Is(err, ErrPetNotFound):
		return err
	default:
		return &PersistenceError{Op: "save " + species + " history", Err: err}
	}

	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

// List returns the newest rows for petID. The id breaks created_at ties so
// the order is deterministic.
func (r *historyRepository) List(ctx context.Context, species string, petID uint, limit int) ([]HistoryEntry, error) {
	table, err := historyTable(species)
	if err != nil {
		return nil, err
	}
	if petID == 0 || limit < 1 {
		return nil, ErrInvalidInput
	}

	start := time.Now()
	entries := make([]HistoryEntry, 0, limit)
	err = r.db.WithContext(ctx).
		Table(table+" AS h").
		Select("h.id, h.pet_id, p.pet_name, h.emotion, h.confidence, h.probabilities, h.image_url, h.created_at").
		Joins("LEFT JOIN pets p ON p.id = h.pet_id").
		Where("h.pet_id = ?", petID).
		Order("h.created_at DESC").
		Order("h.id DESC").
		Limit(limit).
		Find(&entries).Error
	r.record(metrics.OpHistoryList, start, err)
	if err != nil {
		return nil, &PersistenceError{Op: "list " + species + " history", Err: err}
	}
	return entries, nil
}

// Count returns the number of rows stored for petID.
func (r *historyRepository) Count(ctx context.Context, species string, petID uint) (int64, error) {
	table, err := historyTable(species)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var n int64
	err = r.db.WithContext(ctx).Table(table).Where("pet_id = ?", petID).Count(&n).Error
	r.record(metrics.OpHistoryCount, start, err)
	if err != nil {
		return 0, &PersistenceError{Op: "count " + species + " history", Err: err}
	}
	return n, nil
}

func (r *historyRepository) record(op string, start time.Time, err error) {
	r.metrics.RecordDuration(op, time.Since(start).Seconds())
	switch {
	case err == nil:
		r.metrics.RecordOperation(op, metrics.StatusSuccess)
	case errors.Is(err, ErrPetNotFound):
		r.metrics.RecordOperation(op, metrics.StatusError)
		r.metrics.RecordError(op, "pet_not_found")
	default:
		r.metrics.RecordOperation(op, metrics.StatusError)
		r.metrics.RecordError(op, "database")
	}
}
