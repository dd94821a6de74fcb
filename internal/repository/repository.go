package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"betledger/internal/models"
)

// PlaceWagerParams carries a validated placement request into the store.
// The store re-checks every transactional precondition under row locks, in
// the documented order, so a stale read outside the transaction can never
// debit a balance or record a wager against a settled proposition.
type PlaceWagerParams struct {
	UserID        uint64
	PropositionID uint64
	Option        string
	Amount        decimal.Decimal
	Now           time.Time
}

// UpdatePropositionParams is a partial update; nil fields are left alone.
// Replacing Options is refused once any wager references the proposition.
type UpdatePropositionParams struct {
	Title       *string
	Description *string
	Active      *bool
	ClosesAt    *time.Time
	Options     []models.PropositionOption
}

type SettlementResult struct {
	WinnersCount int             `json:"winners_count"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
}

type KeyStats struct {
	Total    int64 `json:"total"`
	Assigned int64 `json:"assigned"`
	Used     int64 `json:"used"`
	Free     int64 `json:"free"`
}

// Repository is the persistence boundary of the ledger. The gorm
// implementation backs it with Postgres row locks; the memory implementation
// mirrors the same atomicity guarantees behind a mutex and is what the
// service tests run against.
type Repository interface {
	// Users.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByHandle(ctx context.Context, handle string) (*models.User, error)
	GetUserByContact(ctx context.Context, contact string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListTopUsers(ctx context.Context, limit int) ([]models.User, error)
	SetUserBalance(ctx context.Context, id uint64, balance decimal.Decimal) error

	// Proposition catalog.
	CreateProposition(ctx context.Context, prop *models.Proposition) error
	GetProposition(ctx context.Context, id uint64) (*models.Proposition, error)
	ListActivePropositions(ctx context.Context, now time.Time) ([]models.Proposition, error)
	ListPropositions(ctx context.Context) ([]models.Proposition, error)
	UpdateProposition(ctx context.Context, id uint64, params UpdatePropositionParams) (*models.Proposition, error)
	CountWagersByProposition(ctx context.Context, propositionID uint64) (int64, error)

	// Wager ledger.
	PlaceWager(ctx context.Context, params PlaceWagerParams) (*models.Wager, error)
	ListWagersByUser(ctx context.Context, userID uint64) ([]models.Wager, error)
	ListWagersByProposition(ctx context.Context, propositionID uint64) ([]models.Wager, error)

	// Settlement. Atomic: the winning option is recorded via compare-and-set
	// on winning_option IS NULL, wager outcomes and winner balances move in
	// the same transaction.
	SettleProposition(ctx context.Context, propositionID uint64, winningOption string, now time.Time) (SettlementResult, error)

	// Verification. LinkVerifiedIdentity reports whether the bonus was
	// credited this call; the grant is guarded by bonus_granted_at IS NULL.
	LinkVerifiedIdentity(ctx context.Context, userID uint64, externalID string, bonus decimal.Decimal) (*models.User, bool, error)
	MarkVerifiedByExternalID(ctx context.Context, externalID string) (*models.User, error)
	InsertWebhookEvent(ctx context.Context, event *models.WebhookEvent) error

	// Key bridge pool.
	EnsureKeyPool(ctx context.Context, keys []models.VerificationKey) (int64, error)
	CountFreeKeys(ctx context.Context) (int64, error)
	KeyStats(ctx context.Context) (KeyStats, error)
	GetKeyByExternalID(ctx context.Context, externalID string) (*models.VerificationKey, error)
	AssignFreeKey(ctx context.Context, externalID string) (*models.VerificationKey, error)
	ConsumeKey(ctx context.Context, externalID, key, roleType string) error
}
