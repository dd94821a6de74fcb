package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is an audit row for every inbound verification confirmation,
// accepted or not. Duplicate deliveries show up here even though they are
// no-ops against user state.
type WebhookEvent struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Source     string         `gorm:"type:varchar(32);not null;index" json:"source"`
	ExternalID string         `gorm:"type:varchar(64);not null;index" json:"external_id"`
	Accepted   bool           `gorm:"not null;default:false" json:"accepted"`
	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	ReceivedAt time.Time      `gorm:"type:timestamptz;autoCreateTime" json:"received_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
