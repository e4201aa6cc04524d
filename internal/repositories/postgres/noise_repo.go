package postgres

import (
	"context"
	"errors"

	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/utils"
	"gorm.io/gorm"
)

type NoisePresetRepository interface {
	Insert(ctx context.Context, p *models.NoisePreset) error
	GetByID(ctx context.Context, id string) (*models.NoisePreset, error)
	ListByUser(ctx context.Context, userID string) ([]models.NoisePreset, error)
	Update(ctx context.Context, p *models.NoisePreset) error
	Delete(ctx context.Context, id string) error
}

type noiseRepo struct {
	db *gorm.DB
}

func NewNoisePresetRepo(db *gorm.DB) NoisePresetRepository {
	return &noiseRepo{db: db}
}

func (r *noiseRepo) Insert(ctx context.Context, p *models.NoisePreset) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *noiseRepo) GetByID(ctx context.Context, id string) (*models.NoisePreset, error) {
	var p models.NoisePreset
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

func (r *noiseRepo) ListByUser(ctx context.Context, userID string) ([]models.NoisePreset, error) {
	var out []models.NoisePreset
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *noiseRepo) Update(ctx context.Context, p *models.NoisePreset) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *noiseRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.NoisePreset{}).Error
}
