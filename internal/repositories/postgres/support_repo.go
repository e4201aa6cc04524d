package postgres

import (
	"context"
	"errors"

	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/utils"
	"gorm.io/gorm"
)

type SupportTicketRepository interface {
	Insert(ctx context.Context, t *models.SupportTicket) error
	GetByID(ctx context.Context, id string) (*models.SupportTicket, error)
	ListByUser(ctx context.Context, userID string) ([]models.SupportTicket, error)
	ListAll(ctx context.Context) ([]models.SupportTicket, error)
	Update(ctx context.Context, t *models.SupportTicket) error
	Delete(ctx context.Context, id string) error
}

type supportRepo struct {
	db *gorm.DB
}

func NewSupportTicketRepo(db *gorm.DB) SupportTicketRepository {
	return &supportRepo{db: db}
}

func (r *supportRepo) Insert(ctx context.Context, t *models.SupportTicket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *supportRepo) GetByID(ctx context.Context, id string) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &t, err
}

func (r *supportRepo) ListByUser(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *supportRepo) ListAll(ctx context.Context) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *supportRepo) Update(ctx context.Context, t *models.SupportTicket) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *supportRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SupportTicket{}).Error
}
