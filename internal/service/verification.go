package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"betledger/internal/ledger"
	"betledger/internal/models"
	"betledger/internal/repository"
)

// Verifier is the outbound leg to the key bridge.
type Verifier interface {
	Verify(ctx context.Context, externalID, key string) (bool, error)
}

// VerificationService glues both legs of the identity-verification flow:
// the user-initiated link (outbound call, then flag + bonus) and the
// bridge's inbound confirmation webhook.
type VerificationService struct {
	Repo   repository.Repository
	Bridge Verifier
	Secret string
	Bonus  decimal.Decimal
	Logger *zap.Logger
}

type LinkResult struct {
	User         *models.User
	BonusGranted bool
}

// Link binds an external identity to the user. The bridge call is awaited;
// a timeout or rejection leaves the user untouched. The bonus is credited at
// most once per user no matter how often the flow is retried.
func (s *VerificationService) Link(ctx context.Context, userID uint64, externalID, key string) (*LinkResult, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: external id and key are required", ledger.ErrBridgeRejected)
	}

	existing, err := s.Repo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != userID {
		return nil, ledger.ErrExternalIDTaken
	}

	ok, err := s.Bridge.Verify(ctx, externalID, key)
	if err != nil {
		return nil, fmt.Errorf("verification bridge unreachable: %w", err)
	}
	if !ok {
		return nil, ledger.ErrBridgeRejected
	}

	user, granted, err := s.Repo.LinkVerifiedIdentity(ctx, userID, externalID, s.Bonus)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("external identity linked",
			zap.Uint64("user_id", userID),
			zap.String("external_id", externalID),
			zap.Bool("bonus_granted", granted),
		)
	}
	return &LinkResult{User: user, BonusGranted: granted}, nil
}

type ConfirmResult struct {
	Found  bool
	UserID uint64
}

// Confirm handles the bridge's inbound webhook. Secret comparison is
// constant time. Setting the flag is idempotent and never re-grants the
// bonus; duplicate deliveries only add audit rows.
func (s *VerificationService) Confirm(ctx context.Context, externalID, presentedSecret string) (*ConfirmResult, error) {
	if subtle.ConstantTimeCompare([]byte(presentedSecret), []byte(s.Secret)) != 1 {
		return nil, ledger.ErrBadSecret
	}

	externalID = strings.TrimSpace(externalID)
	user, err := s.Repo.MarkVerifiedByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{"external_id": externalID})
	event := &models.WebhookEvent{
		Source:     "key_bridge",
		ExternalID: externalID,
		Accepted:   user != nil,
		Payload:    datatypes.JSON(payload),
	}
	if err := s.Repo.InsertWebhookEvent(ctx, event); err != nil && s.Logger != nil {
		s.Logger.Warn("webhook audit insert failed", zap.Error(err))
	}

	if user == nil {
		return &ConfirmResult{Found: false}, nil
	}
	return &ConfirmResult{Found: true, UserID: user.ID}, nil
}
