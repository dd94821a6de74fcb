package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Proposition struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string  `gorm:"type:text;not null" json:"title"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	Active   bool       `gorm:"not null;default:true;index" json:"active"`
	ClosesAt *time.Time `gorm:"type:timestamptz" json:"closes_at,omitempty"`

	// WinningOption is assigned exactly once, at settlement. The settlement
	// transition is a compare-and-set on this column being NULL.
	WinningOption *string `gorm:"type:varchar(128)" json:"winning_option,omitempty"`

	Options []PropositionOption `gorm:"foreignKey:PropositionID;constraint:OnDelete:CASCADE" json:"options"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"-"`
}

func (Proposition) TableName() string {
	return "propositions"
}

// PropositionOption is one named outcome with its fixed payout coefficient.
// Options are a structured sub-table: names unique per proposition,
// coefficients strictly positive, ordered by Position.
type PropositionOption struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	PropositionID uint64          `gorm:"not null;uniqueIndex:idx_prop_option_name,priority:1" json:"-"`
	Name          string          `gorm:"type:varchar(128);not null;uniqueIndex:idx_prop_option_name,priority:2" json:"name"`
	Coefficient   decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"coefficient"`
	Position      int             `gorm:"not null;default:0" json:"-"`
}

func (PropositionOption) TableName() string {
	return "proposition_options"
}

// Option returns the option with the given name, or nil.
func (p *Proposition) Option(name string) *PropositionOption {
	for i := range p.Options {
		if p.Options[i].Name == name {
			return &p.Options[i]
		}
	}
	return nil
}

// Expired reports whether the proposition's close time has passed.
func (p *Proposition) Expired(now time.Time) bool {
	return p.ClosesAt != nil && now.After(*p.ClosesAt)
}
