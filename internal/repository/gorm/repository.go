package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"betledger/internal/ledger"
	"betledger/internal/models"
	"betledger/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Users -------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if s == nil || s.db == nil || user == nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	return s.findUser(ctx, "handle = ?", strings.TrimSpace(handle))
}

func (s *Store) GetUserByContact(ctx context.Context, contact string) (*models.User, error) {
	return s.findUser(ctx, "contact = ?", strings.TrimSpace(contact))
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.findUser(ctx, "external_id = ?", strings.TrimSpace(externalID))
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) ListTopUsers(ctx context.Context, limit int) ([]models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 10)
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("balance desc, id asc").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SetUserBalance(ctx context.Context, id uint64, balance decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrUserNotFound
	}
	return nil
}

// --- Proposition catalog -----------------------------------------------------

func (s *Store) CreateProposition(ctx context.Context, prop *models.Proposition) error {
	if s == nil || s.db == nil || prop == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(prop).Error
}

func (s *Store) GetProposition(ctx context.Context, id uint64) (*models.Proposition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var prop models.Proposition
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&prop, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prop, nil
}

func (s *Store) ListActivePropositions(ctx context.Context, now time.Time) ([]models.Proposition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var props []models.Proposition
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("active = ?", true).
		Where("closes_at IS NULL OR closes_at > ?", now).
		Order("created_at desc").
		Find(&props).Error
	if err != nil {
		return nil, err
	}
	return props, nil
}

func (s *Store) ListPropositions(ctx context.Context) ([]models.Proposition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var props []models.Proposition
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order("created_at desc").
		Find(&props).Error
	if err != nil {
		return nil, err
	}
	return props, nil
}

func (s *Store) UpdateProposition(ctx context.Context, id uint64, params repository.UpdatePropositionParams) (*models.Proposition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop models.Proposition
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&prop, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrPropositionNotFound
		}
		if err != nil {
			return err
		}
		if prop.WinningOption != nil {
			return ledger.ErrAlreadySettled
		}

		if params.Options != nil {
			n, err := countWagers(tx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return ledger.ErrPropositionHasWagers
			}
			if err := tx.Where("proposition_id = ?", id).Delete(&models.PropositionOption{}).Error; err != nil {
				return err
			}
			for i := range params.Options {
				params.Options[i].ID = 0
				params.Options[i].PropositionID = id
				params.Options[i].Position = i
			}
			if err := tx.Create(&params.Options).Error; err != nil {
				return err
			}
		}

		updates := map[string]any{}
		if params.Title != nil {
			updates["title"] = *params.Title
		}
		if params.Description != nil {
			updates["description"] = *params.Description
		}
		if params.Active != nil {
			updates["active"] = *params.Active
		}
		if params.ClosesAt != nil {
			updates["closes_at"] = *params.ClosesAt
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Proposition{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetProposition(ctx, id)
}

func (s *Store) CountWagersByProposition(ctx context.Context, propositionID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	return countWagers(s.db.WithContext(ctx), propositionID)
}

func countWagers(db *gorm.DB, propositionID uint64) (int64, error) {
	var n int64
	err := db.Model(&models.Wager{}).Where("proposition_id = ?", propositionID).Count(&n).Error
	return n, err
}

// --- Wager ledger ------------------------------------------------------------

// PlaceWager debits the stake and records the wager in one transaction.
// Lock order is proposition first, then user, matching SettleProposition so
// a placement racing a settlement serializes behind it and sees the
// proposition inactive.
func (s *Store) PlaceWager(ctx context.Context, params repository.PlaceWagerParams) (*models.Wager, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var wager models.Wager
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop models.Proposition
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", params.PropositionID).
			First(&prop).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrPropositionNotFound
		}
		if err != nil {
			return err
		}
		if !prop.Active {
			return ledger.ErrPropositionNotFound
		}
		if prop.Expired(params.Now) {
			return ledger.ErrBettingClosed
		}

		var user models.User
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", params.UserID).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if user.Balance.LessThan(params.Amount) {
			return ledger.ErrInsufficientBalance
		}

		var option models.PropositionOption
		err = tx.Where("proposition_id = ? AND name = ?", params.PropositionID, params.Option).
			First(&option).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrInvalidOption
		}
		if err != nil {
			return err
		}

		newBalance := user.Balance.Sub(params.Amount)
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("balance", newBalance).Error; err != nil {
			return err
		}

		wager = models.Wager{
			UserID:        params.UserID,
			PropositionID: params.PropositionID,
			Option:        params.Option,
			Amount:        params.Amount,
			PotentialWin:  params.Amount.Mul(option.Coefficient),
			Outcome:       models.WagerPending,
		}
		return tx.Create(&wager).Error
	})
	if err != nil {
		return nil, err
	}
	return &wager, nil
}

func (s *Store) ListWagersByUser(ctx context.Context, userID uint64) ([]models.Wager, error) {
	return s.listWagers(ctx, "user_id = ?", userID)
}

func (s *Store) ListWagersByProposition(ctx context.Context, propositionID uint64) ([]models.Wager, error) {
	return s.listWagers(ctx, "proposition_id = ?", propositionID)
}

func (s *Store) listWagers(ctx context.Context, query string, arg any) ([]models.Wager, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var wagers []models.Wager
	err := s.db.WithContext(ctx).Where(query, arg).Order("created_at desc").Find(&wagers).Error
	if err != nil {
		return nil, err
	}
	return wagers, nil
}

// --- Settlement --------------------------------------------------------------

// SettleProposition is the one-way settlement transition. The winning option
// is recorded with an UPDATE guarded by winning_option IS NULL, so even if
// two settlements get past the row lock only one can flip the proposition;
// the other observes zero affected rows and fails with ErrAlreadySettled.
func (s *Store) SettleProposition(ctx context.Context, propositionID uint64, winningOption string, now time.Time) (repository.SettlementResult, error) {
	result := repository.SettlementResult{TotalPaid: decimal.Zero}
	if s == nil || s.db == nil {
		return result, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop models.Proposition
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", propositionID).
			First(&prop).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrPropositionNotFound
		}
		if err != nil {
			return err
		}
		if prop.WinningOption != nil {
			return ledger.ErrAlreadySettled
		}

		var option models.PropositionOption
		err = tx.Where("proposition_id = ? AND name = ?", propositionID, winningOption).
			First(&option).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrInvalidOption
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Proposition{}).
			Where("id = ? AND winning_option IS NULL", propositionID).
			Updates(map[string]any{
				"winning_option": winningOption,
				"active":         false,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrAlreadySettled
		}

		var wagers []models.Wager
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("proposition_id = ? AND outcome = ?", propositionID, models.WagerPending).
			Find(&wagers).Error
		if err != nil {
			return err
		}

		for i := range wagers {
			w := &wagers[i]
			outcome := models.WagerLost
			if w.Option == winningOption {
				outcome = models.WagerWon
				// Credit the frozen potential win; never recompute it.
				err := tx.Model(&models.User{}).
					Where("id = ?", w.UserID).
					Update("balance", gorm.Expr("balance + ?", w.PotentialWin)).Error
				if err != nil {
					return err
				}
				result.WinnersCount++
				result.TotalPaid = result.TotalPaid.Add(w.PotentialWin)
			}
			err := tx.Model(&models.Wager{}).
				Where("id = ?", w.ID).
				Updates(map[string]any{"outcome": outcome, "settled_at": now}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return repository.SettlementResult{TotalPaid: decimal.Zero}, err
	}
	return result, nil
}

// --- Verification ------------------------------------------------------------

func (s *Store) LinkVerifiedIdentity(ctx context.Context, userID uint64, externalID string, bonus decimal.Decimal) (*models.User, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	granted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var other models.User
		err := tx.Where("external_id = ? AND id <> ?", externalID, userID).First(&other).Error
		if err == nil {
			return ledger.ErrExternalIDTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var user models.User
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"external_id": externalID,
			"verified":    true,
		}
		if user.BonusGrantedAt == nil && bonus.IsPositive() {
			updates["balance"] = user.Balance.Add(bonus)
			updates["bonus_granted_at"] = time.Now().UTC()
			granted = true
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return ledger.ErrExternalIDTaken
			}
			return res.Error
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	user, err := s.GetUserByID(ctx, userID)
	return user, granted, err
}

func (s *Store) MarkVerifiedByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	user, err := s.GetUserByExternalID(ctx, externalID)
	if err != nil || user == nil {
		return nil, err
	}
	if !user.Verified {
		err := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("verified", true).Error
		if err != nil {
			return nil, err
		}
		user.Verified = true
	}
	return user, nil
}

func (s *Store) InsertWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	if s == nil || s.db == nil || event == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(event).Error
}

// --- Key bridge pool ---------------------------------------------------------

func (s *Store) EnsureKeyPool(ctx context.Context, keys []models.VerificationKey) (int64, error) {
	if s == nil || s.db == nil || len(keys) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(keys, 500)
	return res.RowsAffected, res.Error
}

func (s *Store) CountFreeKeys(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.VerificationKey{}).
		Where("external_id IS NULL").
		Count(&n).Error
	return n, err
}

func (s *Store) KeyStats(ctx context.Context) (repository.KeyStats, error) {
	var stats repository.KeyStats
	if s == nil || s.db == nil {
		return stats, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.VerificationKey{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&models.VerificationKey{}).Where("external_id IS NOT NULL").Count(&stats.Assigned).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&models.VerificationKey{}).Where("used = ?", true).Count(&stats.Used).Error; err != nil {
		return stats, err
	}
	stats.Free = stats.Total - stats.Assigned
	return stats, nil
}

func (s *Store) GetKeyByExternalID(ctx context.Context, externalID string) (*models.VerificationKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var key models.VerificationKey
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) AssignFreeKey(ctx context.Context, externalID string) (*models.VerificationKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var key models.VerificationKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("external_id IS NULL").
			Limit(1).
			Find(&key).Error
		if err != nil {
			return err
		}
		if key.Key == "" {
			return ledger.ErrKeyPoolEmpty
		}
		res := tx.Model(&models.VerificationKey{}).
			Where("key = ? AND external_id IS NULL", key.Key).
			Update("external_id", externalID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrKeyPoolEmpty
		}
		key.ExternalID = &externalID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// ConsumeKey marks a one-time key used. Single use is a compare-and-set on
// used = false under the row lock.
func (s *Store) ConsumeKey(ctx context.Context, externalID, key, roleType string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.VerificationKey
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", key).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		if rec.ExternalID == nil || *rec.ExternalID != externalID {
			return ledger.ErrKeyMismatch
		}
		if rec.Used {
			return ledger.ErrKeyUsed
		}
		now := time.Now().UTC()
		res := tx.Model(&models.VerificationKey{}).
			Where("key = ? AND used = ?", key, false).
			Updates(map[string]any{"used": true, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrKeyUsed
		}
		return tx.Create(&models.VerificationLog{
			ExternalID: externalID,
			Key:        key,
			RoleType:   roleType,
		}).Error
	})
}

// --- helpers -----------------------------------------------------------------

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "SQLSTATE 23505")
}
