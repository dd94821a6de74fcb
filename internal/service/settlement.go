package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"betledger/internal/ledger"
	"betledger/internal/repository"
)

// SettlementService runs the one-way settlement transition. All the
// correctness weight sits in the store: recording the winning option,
// resolving wagers and crediting winners commit or roll back together.
type SettlementService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (s *SettlementService) Settle(ctx context.Context, propositionID uint64, winningOption string) (repository.SettlementResult, error) {
	winningOption = strings.TrimSpace(winningOption)
	if winningOption == "" {
		return repository.SettlementResult{}, ledger.ErrInvalidOption
	}

	result, err := s.Repo.SettleProposition(ctx, propositionID, winningOption, time.Now().UTC())
	if err != nil {
		return repository.SettlementResult{}, err
	}
	if s.Logger != nil {
		s.Logger.Info("proposition settled",
			zap.Uint64("proposition_id", propositionID),
			zap.String("winning_option", winningOption),
			zap.Int("winners", result.WinnersCount),
			zap.String("total_paid", result.TotalPaid.String()),
		)
	}
	return result, nil
}
