// Package memoryrepository is an in-process implementation of the repository
// contract. A single mutex stands in for the database transaction, so the
// compare-and-set guarantees (settlement single-assignment, bonus grant,
// key single-use) hold under concurrent callers the same way the Postgres
// store's row locks make them hold. The service tests run against it.
package memoryrepository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"betledger/internal/ledger"
	"betledger/internal/models"
	"betledger/internal/repository"
)

type Store struct {
	mu sync.Mutex

	users         map[uint64]*models.User
	props         map[uint64]*models.Proposition
	wagers        map[uint64]*models.Wager
	keys          map[string]*models.VerificationKey
	webhookEvents []models.WebhookEvent
	keyLogs       []models.VerificationLog

	nextUserID  uint64
	nextPropID  uint64
	nextWagerID uint64
}

func New() *Store {
	return &Store{
		users:  map[uint64]*models.User{},
		props:  map[uint64]*models.Proposition{},
		wagers: map[uint64]*models.Wager{},
		keys:   map[string]*models.VerificationKey{},
	}
}

// --- Users -------------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Handle == user.Handle || u.Contact == user.Contact {
			return ledger.ErrDuplicateUser
		}
		if user.ExternalID != nil && u.ExternalID != nil && *u.ExternalID == *user.ExternalID {
			return ledger.ErrDuplicateUser
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id uint64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.users[id]), nil
}

func (s *Store) GetUserByHandle(_ context.Context, handle string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Handle == strings.TrimSpace(handle) })
}

func (s *Store) GetUserByContact(_ context.Context, contact string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Contact == strings.TrimSpace(contact) })
}

func (s *Store) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool {
		return u.ExternalID != nil && *u.ExternalID == strings.TrimSpace(externalID)
	})
}

func (s *Store) findUser(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListTopUsers(_ context.Context, limit int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Active {
			out = append(out, *copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Balance.Equal(out[j].Balance) {
			return out[i].Balance.GreaterThan(out[j].Balance)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetUserBalance(_ context.Context, id uint64, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ledger.ErrUserNotFound
	}
	u.Balance = balance
	return nil
}

// --- Proposition catalog -----------------------------------------------------

func (s *Store) CreateProposition(_ context.Context, prop *models.Proposition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPropID++
	prop.ID = s.nextPropID
	if prop.CreatedAt.IsZero() {
		prop.CreatedAt = time.Now().UTC()
	}
	for i := range prop.Options {
		prop.Options[i].PropositionID = prop.ID
		prop.Options[i].Position = i
	}
	cp := copyProp(prop)
	s.props[prop.ID] = cp
	return nil
}

func (s *Store) GetProposition(_ context.Context, id uint64) (*models.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.props[id]
	if !ok {
		return nil, nil
	}
	return copyProp(p), nil
}

func (s *Store) ListActivePropositions(_ context.Context, now time.Time) ([]models.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Proposition
	for _, p := range s.props {
		if p.Active && !p.Expired(now) {
			out = append(out, *copyProp(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListPropositions(_ context.Context) ([]models.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Proposition, 0, len(s.props))
	for _, p := range s.props {
		out = append(out, *copyProp(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UpdateProposition(_ context.Context, id uint64, params repository.UpdatePropositionParams) (*models.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.props[id]
	if !ok {
		return nil, ledger.ErrPropositionNotFound
	}
	if p.WinningOption != nil {
		return nil, ledger.ErrAlreadySettled
	}
	if params.Options != nil {
		if s.countWagersLocked(id) > 0 {
			return nil, ledger.ErrPropositionHasWagers
		}
		opts := make([]models.PropositionOption, len(params.Options))
		copy(opts, params.Options)
		for i := range opts {
			opts[i].PropositionID = id
			opts[i].Position = i
		}
		p.Options = opts
	}
	if params.Title != nil {
		p.Title = *params.Title
	}
	if params.Description != nil {
		p.Description = params.Description
	}
	if params.Active != nil {
		p.Active = *params.Active
	}
	if params.ClosesAt != nil {
		t := *params.ClosesAt
		p.ClosesAt = &t
	}
	return copyProp(p), nil
}

func (s *Store) CountWagersByProposition(_ context.Context, propositionID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countWagersLocked(propositionID), nil
}

func (s *Store) countWagersLocked(propositionID uint64) int64 {
	var n int64
	for _, w := range s.wagers {
		if w.PropositionID == propositionID {
			n++
		}
	}
	return n
}

// --- Wager ledger ------------------------------------------------------------

func (s *Store) PlaceWager(_ context.Context, params repository.PlaceWagerParams) (*models.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.props[params.PropositionID]
	if !ok || !prop.Active {
		return nil, ledger.ErrPropositionNotFound
	}
	if prop.Expired(params.Now) {
		return nil, ledger.ErrBettingClosed
	}
	user, ok := s.users[params.UserID]
	if !ok {
		return nil, ledger.ErrUserNotFound
	}
	if user.Balance.LessThan(params.Amount) {
		return nil, ledger.ErrInsufficientBalance
	}
	option := prop.Option(params.Option)
	if option == nil {
		return nil, ledger.ErrInvalidOption
	}

	user.Balance = user.Balance.Sub(params.Amount)
	s.nextWagerID++
	wager := &models.Wager{
		ID:            s.nextWagerID,
		UserID:        params.UserID,
		PropositionID: params.PropositionID,
		Option:        params.Option,
		Amount:        params.Amount,
		PotentialWin:  params.Amount.Mul(option.Coefficient),
		Outcome:       models.WagerPending,
		CreatedAt:     time.Now().UTC(),
	}
	s.wagers[wager.ID] = wager
	cp := *wager
	return &cp, nil
}

func (s *Store) ListWagersByUser(_ context.Context, userID uint64) ([]models.Wager, error) {
	return s.listWagers(func(w *models.Wager) bool { return w.UserID == userID })
}

func (s *Store) ListWagersByProposition(_ context.Context, propositionID uint64) ([]models.Wager, error) {
	return s.listWagers(func(w *models.Wager) bool { return w.PropositionID == propositionID })
}

func (s *Store) listWagers(match func(*models.Wager) bool) ([]models.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Wager
	for _, w := range s.wagers {
		if match(w) {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- Settlement --------------------------------------------------------------

func (s *Store) SettleProposition(_ context.Context, propositionID uint64, winningOption string, now time.Time) (repository.SettlementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := repository.SettlementResult{TotalPaid: decimal.Zero}
	prop, ok := s.props[propositionID]
	if !ok {
		return result, ledger.ErrPropositionNotFound
	}
	if prop.WinningOption != nil {
		return result, ledger.ErrAlreadySettled
	}
	if prop.Option(winningOption) == nil {
		return result, ledger.ErrInvalidOption
	}

	prop.WinningOption = &winningOption
	prop.Active = false

	for _, w := range s.wagers {
		if w.PropositionID != propositionID || w.Outcome != models.WagerPending {
			continue
		}
		settled := now
		w.SettledAt = &settled
		if w.Option == winningOption {
			w.Outcome = models.WagerWon
			if u, ok := s.users[w.UserID]; ok {
				u.Balance = u.Balance.Add(w.PotentialWin)
			}
			result.WinnersCount++
			result.TotalPaid = result.TotalPaid.Add(w.PotentialWin)
		} else {
			w.Outcome = models.WagerLost
		}
	}
	return result, nil
}

// --- Verification ------------------------------------------------------------

func (s *Store) LinkVerifiedIdentity(_ context.Context, userID uint64, externalID string, bonus decimal.Decimal) (*models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID != userID && u.ExternalID != nil && *u.ExternalID == externalID {
			return nil, false, ledger.ErrExternalIDTaken
		}
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, false, ledger.ErrUserNotFound
	}
	user.ExternalID = &externalID
	user.Verified = true
	granted := false
	if user.BonusGrantedAt == nil && bonus.IsPositive() {
		user.Balance = user.Balance.Add(bonus)
		now := time.Now().UTC()
		user.BonusGrantedAt = &now
		granted = true
	}
	return copyUser(user), granted, nil
}

func (s *Store) MarkVerifiedByExternalID(_ context.Context, externalID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			u.Verified = true
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) InsertWebhookEvent(_ context.Context, event *models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = uint64(len(s.webhookEvents) + 1)
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	s.webhookEvents = append(s.webhookEvents, *event)
	return nil
}

// WebhookEvents exposes the audit trail for assertions in tests.
func (s *Store) WebhookEvents() []models.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WebhookEvent, len(s.webhookEvents))
	copy(out, s.webhookEvents)
	return out
}

// --- Key bridge pool ---------------------------------------------------------

func (s *Store) EnsureKeyPool(_ context.Context, keys []models.VerificationKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted int64
	for _, k := range keys {
		if _, ok := s.keys[k.Key]; ok {
			continue
		}
		cp := k
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		s.keys[k.Key] = &cp
		inserted++
	}
	return inserted, nil
}

func (s *Store) CountFreeKeys(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range s.keys {
		if k.ExternalID == nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) KeyStats(_ context.Context) (repository.KeyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats repository.KeyStats
	for _, k := range s.keys {
		stats.Total++
		if k.ExternalID != nil {
			stats.Assigned++
		} else {
			stats.Free++
		}
		if k.Used {
			stats.Used++
		}
	}
	return stats, nil
}

func (s *Store) GetKeyByExternalID(_ context.Context, externalID string) (*models.VerificationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ExternalID != nil && *k.ExternalID == externalID {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) AssignFreeKey(_ context.Context, externalID string) (*models.VerificationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.keys))
	for key, k := range s.keys {
		if k.ExternalID == nil {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, ledger.ErrKeyPoolEmpty
	}
	sort.Strings(keys)
	k := s.keys[keys[0]]
	k.ExternalID = &externalID
	cp := *k
	return &cp, nil
}

func (s *Store) ConsumeKey(_ context.Context, externalID, key, roleType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[key]
	if !ok {
		return ledger.ErrKeyNotFound
	}
	if k.ExternalID == nil || *k.ExternalID != externalID {
		return ledger.ErrKeyMismatch
	}
	if k.Used {
		return ledger.ErrKeyUsed
	}
	now := time.Now().UTC()
	k.Used = true
	k.UsedAt = &now
	s.keyLogs = append(s.keyLogs, models.VerificationLog{
		ID:         uint64(len(s.keyLogs) + 1),
		ExternalID: externalID,
		Key:        key,
		RoleType:   roleType,
		CreatedAt:  now,
	})
	return nil
}

// --- copies ------------------------------------------------------------------

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.ExternalID != nil {
		v := *u.ExternalID
		cp.ExternalID = &v
	}
	if u.BonusGrantedAt != nil {
		t := *u.BonusGrantedAt
		cp.BonusGrantedAt = &t
	}
	return &cp
}

func copyProp(p *models.Proposition) *models.Proposition {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Description != nil {
		v := *p.Description
		cp.Description = &v
	}
	if p.ClosesAt != nil {
		t := *p.ClosesAt
		cp.ClosesAt = &t
	}
	if p.WinningOption != nil {
		v := *p.WinningOption
		cp.WinningOption = &v
	}
	cp.Options = make([]models.PropositionOption, len(p.Options))
	copy(cp.Options, p.Options)
	return &cp
}
