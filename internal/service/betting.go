package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/ledger"
	"betledger/internal/models"
	"betledger/internal/repository"
)

// BettingService accepts wagers. The verification gate is checked here;
// every precondition that depends on mutable state is re-checked by the
// store under row locks.
type BettingService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (s *BettingService) Place(ctx context.Context, userID, propositionID uint64, option string, amount decimal.Decimal) (*models.Wager, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledger.ErrUserNotFound
	}
	if !user.Verified {
		return nil, ledger.ErrNotVerified
	}

	wager, err := s.Repo.PlaceWager(ctx, repository.PlaceWagerParams{
		UserID:        userID,
		PropositionID: propositionID,
		Option:        option,
		Amount:        amount,
		Now:           time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("wager placed",
			zap.Uint64("wager_id", wager.ID),
			zap.Uint64("user_id", userID),
			zap.Uint64("proposition_id", propositionID),
			zap.String("option", option),
			zap.String("amount", amount.String()),
			zap.String("potential_win", wager.PotentialWin.String()),
		)
	}
	return wager, nil
}

type WagerView struct {
	ID           uint64          `json:"id"`
	Proposition  string          `json:"proposition"`
	Option       string          `json:"option"`
	Amount       decimal.Decimal `json:"amount"`
	PotentialWin decimal.Decimal `json:"potential_win"`
	Outcome      string          `json:"outcome"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MyWagers returns the caller's wagers with proposition titles resolved.
func (s *BettingService) MyWagers(ctx context.Context, userID uint64) ([]WagerView, error) {
	wagers, err := s.Repo.ListWagersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	titles := map[uint64]string{}
	views := make([]WagerView, 0, len(wagers))
	for _, w := range wagers {
		title, ok := titles[w.PropositionID]
		if !ok {
			prop, err := s.Repo.GetProposition(ctx, w.PropositionID)
			if err != nil {
				return nil, err
			}
			title = "unknown"
			if prop != nil {
				title = prop.Title
			}
			titles[w.PropositionID] = title
		}
		views = append(views, WagerView{
			ID:           w.ID,
			Proposition:  title,
			Option:       w.Option,
			Amount:       w.Amount,
			PotentialWin: w.PotentialWin,
			Outcome:      w.Outcome,
			CreatedAt:    w.CreatedAt,
		})
	}
	return views, nil
}
