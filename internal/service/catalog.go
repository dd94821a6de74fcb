package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/ledger"
	"betledger/internal/models"
	"betledger/internal/repository"
)

// CatalogService manages propositions and their option sets.
type CatalogService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type OptionInput struct {
	Name        string          `json:"name"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

type CreatePropositionInput struct {
	Title       string
	Description *string
	Options     []OptionInput
	ClosesAt    *time.Time
}

func (s *CatalogService) Create(ctx context.Context, in CreatePropositionInput) (*models.Proposition, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ledger.ErrInvalidOption)
	}
	options, err := buildOptions(in.Options)
	if err != nil {
		return nil, err
	}

	prop := &models.Proposition{
		Title:       in.Title,
		Description: in.Description,
		Active:      true,
		ClosesAt:    in.ClosesAt,
		Options:     options,
	}
	if err := s.Repo.CreateProposition(ctx, prop); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("proposition created",
			zap.Uint64("proposition_id", prop.ID),
			zap.String("title", prop.Title),
			zap.Int("options", len(prop.Options)),
		)
	}
	return prop, nil
}

type UpdatePropositionInput struct {
	Title       *string
	Description *string
	Options     []OptionInput
	Active      *bool
	ClosesAt    *time.Time
}

// Update applies a partial edit. Settled propositions are immutable, and the
// option set is frozen once any wager references the proposition, so frozen
// payouts can never point at an option that no longer exists.
func (s *CatalogService) Update(ctx context.Context, id uint64, in UpdatePropositionInput) (*models.Proposition, error) {
	params := repository.UpdatePropositionParams{
		Title:       in.Title,
		Description: in.Description,
		Active:      in.Active,
		ClosesAt:    in.ClosesAt,
	}
	if in.Options != nil {
		options, err := buildOptions(in.Options)
		if err != nil {
			return nil, err
		}
		params.Options = options
	}
	return s.Repo.UpdateProposition(ctx, id, params)
}

func (s *CatalogService) ListActive(ctx context.Context) ([]models.Proposition, error) {
	return s.Repo.ListActivePropositions(ctx, time.Now().UTC())
}

func (s *CatalogService) ListAll(ctx context.Context) ([]models.Proposition, error) {
	return s.Repo.ListPropositions(ctx)
}

func (s *CatalogService) Get(ctx context.Context, id uint64) (*models.Proposition, error) {
	prop, err := s.Repo.GetProposition(ctx, id)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, ledger.ErrPropositionNotFound
	}
	return prop, nil
}

func buildOptions(inputs []OptionInput) ([]models.PropositionOption, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one option is required", ledger.ErrInvalidOption)
	}
	seen := make(map[string]struct{}, len(inputs))
	options := make([]models.PropositionOption, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: option name is required", ledger.ErrInvalidOption)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate option %q", ledger.ErrInvalidOption, name)
		}
		seen[name] = struct{}{}
		if !in.Coefficient.IsPositive() {
			return nil, fmt.Errorf("%w: coefficient for %q must be positive", ledger.ErrInvalidOption, name)
		}
		options = append(options, models.PropositionOption{
			Name:        name,
			Coefficient: in.Coefficient,
			Position:    i,
		})
	}
	return options, nil
}
