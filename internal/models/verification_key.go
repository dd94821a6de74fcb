package models

import "time"

// VerificationKey is a one-time key the bridge hands out per external
// identity. Keys start unassigned in a pre-generated pool; IssueKey binds a
// free key to an identity, the verify webhook consumes it exactly once.
type VerificationKey struct {
	Key        string     `gorm:"primaryKey;type:varchar(32)" json:"key"`
	ExternalID *string    `gorm:"type:varchar(64);uniqueIndex" json:"external_id,omitempty"`
	Used       bool       `gorm:"not null;default:false" json:"used"`
	UsedAt     *time.Time `gorm:"type:timestamptz" json:"used_at,omitempty"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (VerificationKey) TableName() string {
	return "verification_keys"
}

// VerificationLog records each successful key verification on the bridge.
type VerificationLog struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ExternalID string    `gorm:"type:varchar(64);not null;index" json:"external_id"`
	Key        string    `gorm:"type:varchar(32);not null" json:"key"`
	RoleType   string    `gorm:"type:varchar(32);not null" json:"role_type"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (VerificationLog) TableName() string {
	return "verification_logs"
}
