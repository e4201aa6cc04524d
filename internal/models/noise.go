package models

import (
	"time"

	"gorm.io/datatypes"
)

// NoisePreset is a saved denoise configuration. Presets are plain records;
// they never feed back into the session pipeline.
type NoisePreset struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Name   string `gorm:"column:name;type:text" json:"name"`

	// JSONB (free-form filter parameters: intensity, band limits, ...)
	Parameters datatypes.JSON `gorm:"column:parameters;type:jsonb" json:"parameters"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (NoisePreset) TableName() string { return "noise_presets" }
