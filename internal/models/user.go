package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Handle       string  `gorm:"type:varchar(64);not null;uniqueIndex" json:"handle"`
	Contact      string  `gorm:"type:varchar(255);not null;uniqueIndex" json:"contact"`
	PasswordHash string  `gorm:"type:varchar(100);not null" json:"-"`
	ExternalID   *string `gorm:"type:varchar(64);uniqueIndex" json:"external_id,omitempty"`

	Balance  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"balance"`
	Verified bool            `gorm:"not null;default:false" json:"verified"`
	Active   bool            `gorm:"not null;default:true" json:"active"`

	// BonusGrantedAt is the at-most-once marker for the verification bonus:
	// the credit only happens while this is NULL.
	BonusGrantedAt *time.Time `gorm:"type:timestamptz" json:"-"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"-"`
}

func (User) TableName() string {
	return "users"
}
