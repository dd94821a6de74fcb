package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WagerPending = "pending"
	WagerWon     = "won"
	WagerLost    = "lost"
)

type Wager struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64 `gorm:"not null;index" json:"user_id"`
	PropositionID uint64 `gorm:"not null;index" json:"proposition_id"`

	Option string          `gorm:"type:varchar(128);not null" json:"option"`
	Amount decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"amount"`

	// PotentialWin is frozen at placement (amount x coefficient) and never
	// recomputed, even if the proposition is edited afterwards.
	PotentialWin decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"potential_win"`

	Outcome   string     `gorm:"type:varchar(10);not null;default:'pending';index" json:"outcome"`
	SettledAt *time.Time `gorm:"type:timestamptz" json:"settled_at,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (Wager) TableName() string {
	return "wagers"
}
