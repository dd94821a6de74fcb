package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/auth"
	"betledger/internal/ledger"
	"betledger/internal/models"
	"betledger/internal/ratelimit"
	"betledger/internal/repository"
)

// AccountService owns registration, login and the user-facing read surface.
type AccountService struct {
	Repo           repository.Repository
	Tokens         *auth.TokenService
	Limiter        ratelimit.Limiter
	Logger         *zap.Logger
	InitialBalance decimal.Decimal
}

type RegisterInput struct {
	Handle     string
	Contact    string
	Password   string
	ExternalID *string
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	in.Contact = strings.TrimSpace(in.Contact)
	if in.Handle == "" || in.Contact == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: handle, contact and password are required", ledger.ErrInvalidInput)
	}

	if existing, err := s.Repo.GetUserByHandle(ctx, in.Handle); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ledger.ErrDuplicateUser
	}
	if existing, err := s.Repo.GetUserByContact(ctx, in.Contact); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ledger.ErrDuplicateUser
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Handle:       in.Handle,
		Contact:      in.Contact,
		PasswordHash: hash,
		ExternalID:   in.ExternalID,
		Balance:      s.InitialBalance,
		Active:       true,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user registered", zap.Uint64("user_id", user.ID), zap.String("handle", user.Handle))
	}
	return user, nil
}

type LoginResult struct {
	Token string
	User  *models.User
}

// Login authenticates a user. Attempts are counted per client address; the
// counter resets on success so a legitimate user is not locked out by their
// own typos.
func (s *AccountService) Login(ctx context.Context, handle, password, clientIP string) (*LoginResult, error) {
	if s.Limiter != nil && clientIP != "" {
		ok, err := s.Limiter.Allow(ctx, clientIP)
		if err != nil {
			// A broken limiter backend must not lock everyone out.
			if s.Logger != nil {
				s.Logger.Warn("rate limiter unavailable", zap.Error(err))
			}
		} else if !ok {
			return nil, ledger.ErrRateLimited
		}
	}

	user, err := s.Repo.GetUserByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ledger.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ledger.ErrUserInactive
	}

	if s.Limiter != nil && clientIP != "" {
		_ = s.Limiter.Reset(ctx, clientIP)
	}

	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AccountService) Profile(ctx context.Context, userID uint64) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledger.ErrUserNotFound
	}
	return user, nil
}

type LeaderboardEntry struct {
	Rank    int             `json:"rank"`
	Handle  string          `json:"handle"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	users, err := s.Repo.ListTopUsers(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:    i + 1,
			Handle:  u.Handle,
			Balance: u.Balance,
		})
	}
	return entries, nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.Repo.ListUsers(ctx)
}

func (s *AccountService) SetBalance(ctx context.Context, userID uint64, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ledger.ErrInvalidAmount
	}
	if err := s.Repo.SetUserBalance(ctx, userID, balance); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("balance force-set", zap.Uint64("user_id", userID), zap.String("balance", balance.String()))
	}
	return nil
}
