package models

import (
	"time"

	"github.com/lib/pq"
)

type SupportTicket struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	Subject string `gorm:"column:subject;type:text" json:"subject"`
	Body    string `gorm:"column:body;type:text" json:"body"`
	Status  string `gorm:"column:status;type:text" json:"status"` // open|closed

	Tags pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (SupportTicket) TableName() string { return "support_tickets" }
