package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/petmood/internal/datastore/entities"
	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/observability/metrics"
)

// PetRepository handles pet rows.
type PetRepository interface {
	Create(ctx context.Context, pet *entities.Pet) error
	Get(ctx context.Context, id uint) (*entities.Pet, error)
}

// petRepository implements PetRepository.
type petRepository struct {
	db      *gorm.DB
	metrics metrics.Recorder
}

// NewPetRepository creates a PetRepository. A nil recorder disables metrics.
func NewPetRepository(db *gorm.DB, recorder metrics.Recorder) PetRepository {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &petRepository{db: db, metrics: recorder}
}

func (r *petRepository) Create(ctx context.Context, pet *entities.Pet) error {
	if pet == nil || pet.PetName == "" {
		return ErrInvalidInput
	}

	start := time.Now()
	err := r.db.WithContext(ctx).Create(pet).Error
	r.metrics.RecordDuration(metrics.OpPetCreate, time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordOperation(metrics.OpPetCreate, metrics.StatusError)
		return &PersistenceError{Op: "create pet", Err: err}
	}
	r.metrics.RecordOperation(metrics.OpPetCreate, metrics.StatusSuccess)
	return nil
}

func (r *petRepository) Get(ctx context.Context, id uint) (*entities.Pet, error) {
	start := time.Now()
	var pet entities.Pet
	err := r.db.WithContext(ctx).First(&pet, id).Error
	r.metrics.RecordDuration(metrics.OpPetGet, time.Since(start).Seconds())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.metrics.RecordOperation(metrics.OpPetGet, metrics.StatusSuccess)
		return nil, ErrPetNotFound
	}
	if err != nil {
		r.metrics.RecordOperation(metrics.OpPetGet, metrics.StatusError)
		return nil, &PersistenceError{Op: "get pet", Err: err}
	}
	r.metrics.RecordOperation(metrics.OpPetGet, metrics.StatusSuccess)
	return &pet, nil
}
