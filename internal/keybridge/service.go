// Package keybridge implements the identity-verification collaborator: it
// hands out one-time keys bound to an external identity and, when a key is
// presented back through the verify webhook, consumes it and confirms the
// linkage to the ledger.
package keybridge

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"betledger/internal/ledger"
	"betledger/internal/models"
	"betledger/internal/repository"
)

// LedgerNotifier forwards a verification confirmation to the ledger.
type LedgerNotifier interface {
	NotifyVerified(ctx context.Context, externalID string) error
}

type Service struct {
	Repo     repository.Repository
	Notifier LedgerNotifier
	Secret   string
	PoolSize int
	Logger   *zap.Logger
}

// IssueKey returns the key bound to the identity, assigning a fresh one from
// the pool on first request. Re-requests always return the same key.
func (s *Service) IssueKey(ctx context.Context, externalID string) (*models.VerificationKey, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, false, ledger.ErrKeyNotFound
	}
	existing, err := s.Repo.GetKeyByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}
	key, err := s.Repo.AssignFreeKey(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	if s.Logger != nil {
		s.Logger.Info("key issued", zap.String("external_id", externalID))
	}
	return key, false, nil
}

// Verify consumes a one-time key and confirms the linkage to the ledger.
// The ledger confirmation is idempotent, so a replay of an already-used key
// by its own identity re-sends the confirmation instead of failing; that
// makes the whole leg safe to retry after a crash between consume and
// notify.
func (s *Service) Verify(ctx context.Context, externalID, key, roleType, presentedSecret string) error {
	if subtle.ConstantTimeCompare([]byte(presentedSecret), []byte(s.Secret)) != 1 {
		return ledger.ErrBadSecret
	}
	externalID = strings.TrimSpace(externalID)
	key = strings.TrimSpace(key)
	if externalID == "" || key == "" {
		return ledger.ErrKeyNotFound
	}
	if roleType == "" {
		roleType = "member"
	}

	err := s.Repo.ConsumeKey(ctx, externalID, key, roleType)
	if errors.Is(err, ledger.ErrKeyUsed) {
		// Replay by the rightful owner: fall through to re-notify.
		if s.Logger != nil {
			s.Logger.Info("used key replayed, re-sending confirmation", zap.String("external_id", externalID))
		}
	} else if err != nil {
		return err
	}

	// Role assignment on the external platform happens here in the full
	// deployment; this service stops at the webhook contract.
	if s.Logger != nil {
		s.Logger.Info("verification accepted",
			zap.String("external_id", externalID),
			zap.String("role_type", roleType),
		)
	}

	if s.Notifier != nil {
		if err := s.Notifier.NotifyVerified(ctx, externalID); err != nil {
			return err
		}
	}
	return nil
}

// TopUpPool generates fresh unassigned keys until the free pool reaches the
// configured size. Runs at startup and on a cron tick.
func (s *Service) TopUpPool(ctx context.Context) (int64, error) {
	if s.PoolSize <= 0 {
		return 0, nil
	}
	free, err := s.Repo.CountFreeKeys(ctx)
	if err != nil {
		return 0, err
	}
	missing := int64(s.PoolSize) - free
	if missing <= 0 {
		return 0, nil
	}
	keys := make([]models.VerificationKey, 0, missing)
	for i := int64(0); i < missing; i++ {
		keys = append(keys, models.VerificationKey{Key: newKey()})
	}
	inserted, err := s.Repo.EnsureKeyPool(ctx, keys)
	if err != nil {
		return 0, err
	}
	if s.Logger != nil && inserted > 0 {
		s.Logger.Info("key pool topped up", zap.Int64("inserted", inserted))
	}
	return inserted, nil
}

func (s *Service) Stats(ctx context.Context) (repository.KeyStats, error) {
	return s.Repo.KeyStats(ctx)
}

func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
