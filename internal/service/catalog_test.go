package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"betledger/internal/ledger"
	memoryrepository "betledger/internal/repository/memory"
)

func TestCreateProposition_Validation(t *testing.T) {
	store := memoryrepository.New()
	catalog := &CatalogService{Repo: store}
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreatePropositionInput
	}{
		{"empty title", CreatePropositionInput{
			Options: []OptionInput{{Name: "yes", Coefficient: decimal.NewFromInt(2)}},
		}},
		{"no options", CreatePropositionInput{Title: "x"}},
		{"blank option name", CreatePropositionInput{
			Title:   "x",
			Options: []OptionInput{{Name: "  ", Coefficient: decimal.NewFromInt(2)}},
		}},
		{"duplicate option names", CreatePropositionInput{
			Title: "x",
			Options: []OptionInput{
				{Name: "yes", Coefficient: decimal.NewFromInt(2)},
				{Name: "yes", Coefficient: decimal.NewFromInt(3)},
			},
		}},
		{"zero coefficient", CreatePropositionInput{
			Title:   "x",
			Options: []OptionInput{{Name: "yes", Coefficient: decimal.Zero}},
		}},
		{"negative coefficient", CreatePropositionInput{
			Title:   "x",
			Options: []OptionInput{{Name: "yes", Coefficient: decimal.NewFromInt(-1)}},
		}},
	}
	for _, tc := range cases {
		if _, err := catalog.Create(ctx, tc.input); !errors.Is(err, ledger.ErrInvalidOption) {
			t.Fatalf("%s: err=%v want ErrInvalidOption", tc.name, err)
		}
	}
}

func TestCreateProposition_PreservesOptionOrder(t *testing.T) {
	store := memoryrepository.New()
	catalog := &CatalogService{Repo: store}
	ctx := context.Background()

	prop, err := catalog.Create(ctx, CreatePropositionInput{
		Title: "three-way",
		Options: []OptionInput{
			{Name: "home", Coefficient: decimal.RequireFromString("1.8")},
			{Name: "draw", Coefficient: decimal.RequireFromString("3.2")},
			{Name: "away", Coefficient: decimal.RequireFromString("4.5")},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(prop.Options) != 3 {
		t.Fatalf("options=%d want=3", len(prop.Options))
	}
	for i, want := range []string{"home", "draw", "away"} {
		if prop.Options[i].Name != want {
			t.Fatalf("options[%d]=%s want=%s", i, prop.Options[i].Name, want)
		}
		if prop.Options[i].Position != i {
			t.Fatalf("options[%d].position=%d want=%d", i, prop.Options[i].Position, i)
		}
	}
}

func TestUpdateProposition_OptionsFrozenOnceWagered(t *testing.T) {
	store := memoryrepository.New()
	catalog := &CatalogService{Repo: store}
	betting := &BettingService{Repo: store}
	ctx := context.Background()

	user := seedVerifiedUser(t, store, "alice", 1000)
	prop := seedProposition(t, store, "rain tomorrow", map[string]string{"yes": "2.0", "no": "1.5"})

	if _, err := betting.Place(ctx, user.ID, prop.ID, "yes", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("place: %v", err)
	}

	_, err := catalog.Update(ctx, prop.ID, UpdatePropositionInput{
		Options: []OptionInput{{Name: "maybe", Coefficient: decimal.NewFromInt(9)}},
	})
	if !errors.Is(err, ledger.ErrPropositionHasWagers) {
		t.Fatalf("err=%v want ErrPropositionHasWagers", err)
	}

	// Metadata edits stay allowed.
	desc := "updated forecast"
	updated, err := catalog.Update(ctx, prop.ID, UpdatePropositionInput{Description: &desc})
	if err != nil {
		t.Fatalf("metadata update: %v", err)
	}
	if updated.Description == nil || *updated.Description != desc {
		t.Fatalf("description=%v want %q", updated.Description, desc)
	}
	if len(updated.Options) != 2 {
		t.Fatalf("options=%d want=2 (unchanged)", len(updated.Options))
	}
}

func TestUpdateProposition_SettledIsImmutable(t *testing.T) {
	store := memoryrepository.New()
	catalog := &CatalogService{Repo: store}
	settlement := &SettlementService{Repo: store}
	ctx := context.Background()

	prop := seedProposition(t, store, "coin flip", map[string]string{"yes": "2.0", "no": "2.0"})
	if _, err := settlement.Settle(ctx, prop.ID, "yes"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	title := "renamed"
	if _, err := catalog.Update(ctx, prop.ID, UpdatePropositionInput{Title: &title}); !errors.Is(err, ledger.ErrAlreadySettled) {
		t.Fatalf("err=%v want ErrAlreadySettled", err)
	}
}

func TestListActive_HidesClosedAndSettled(t *testing.T) {
	store := memoryrepository.New()
	catalog := &CatalogService{Repo: store}
	settlement := &SettlementService{Repo: store}
	ctx := context.Background()

	open := seedProposition(t, store, "still open", map[string]string{"yes": "2.0"})
	settled := seedProposition(t, store, "already settled", map[string]string{"yes": "2.0"})
	if _, err := settlement.Settle(ctx, settled.ID, "yes"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	props, err := catalog.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(props) != 1 || props[0].ID != open.ID {
		t.Fatalf("active=%v want only proposition %d", props, open.ID)
	}

	all, err := catalog.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all=%d want=2", len(all))
	}
}
