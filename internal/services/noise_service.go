package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/repositories/postgres"
	"github.com/calmwave/calmwave/internal/utils"
)

type NoisePresetService interface {
	Create(ctx context.Context, userID, name string, params map[string]any) (*models.NoisePreset, error)
	Get(ctx context.Context, id, userID string) (*models.NoisePreset, error)
	ListByUser(ctx context.Context, userID string) ([]models.NoisePreset, error)
	Update(ctx context.Context, id, userID, name string, params map[string]any) (*models.NoisePreset, error)
	Delete(ctx context.Context, id, userID string) error
}

type noiseService struct {
	presets postgres.NoisePresetRepository
}

func NewNoisePresetService(presets postgres.NoisePresetRepository) NoisePresetService {
	return &noiseService{presets: presets}
}

func (s *noiseService) Create(ctx context.Context, userID, name string, params map[string]any) (*models.NoisePreset, error) {
	const op = "NoisePresetService.Create"

	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "name is required", nil)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid parameters", err)
	}

	p := &models.NoisePreset{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		Parameters: datatypes.JSON(raw),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.presets.Insert(ctx, p); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create preset", err)
	}
	return p, nil
}

func (s *noiseService) Get(ctx context.Context, id, userID string) (*models.NoisePreset, error) {
	const op = "NoisePresetService.Get"

	p, err := s.presets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "preset not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load preset", err)
	}
	if p.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return p, nil
}

func (s *noiseService) ListByUser(ctx context.Context, userID string) ([]models.NoisePreset, error) {
	const op = "NoisePresetService.ListByUser"

	out, err := s.presets.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list presets", err)
	}
	return out, nil
}

func (s *noiseService) Update(ctx context.Context, id, userID, name string, params map[string]any) (*models.NoisePreset, error) {
	const op = "NoisePresetService.Update"

	p, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		p.Name = name
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid parameters", err)
		}
		p.Parameters = datatypes.JSON(raw)
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.presets.Update(ctx, p); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update preset", err)
	}
	return p, nil
}

func (s *noiseService) Delete(ctx context.Context, id, userID string) error {
	const op = "NoisePresetService.Delete"

	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.presets.Delete(ctx, id); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete preset", err)
	}
	return nil
}
