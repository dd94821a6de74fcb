package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"betledger/internal/auth"
	"betledger/internal/ledger"
	"betledger/internal/ratelimit"
	memoryrepository "betledger/internal/repository/memory"
)

func newAccountService(store *memoryrepository.Store, limiter ratelimit.Limiter) *AccountService {
	return &AccountService{
		Repo:           store,
		Tokens:         auth.NewTokenService("test-secret", time.Minute),
		Limiter:        limiter,
		InitialBalance: decimal.NewFromInt(1000),
	}
}

func TestRegister_AssignsStartingBalance(t *testing.T) {
	store := memoryrepository.New()
	accounts := newAccountService(store, nil)
	ctx := context.Background()

	user, err := accounts.Register(ctx, RegisterInput{
		Handle:   "alice",
		Contact:  "alice@example.com",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Balance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("balance=%s want=1000", user.Balance)
	}
	if user.Verified {
		t.Fatalf("fresh account must start unverified")
	}
	if !auth.CheckPassword(user.PasswordHash, "hunter22") {
		t.Fatalf("stored hash does not match password")
	}
}

func TestRegister_BlankFieldsRejected(t *testing.T) {
	store := memoryrepository.New()
	accounts := newAccountService(store, nil)
	ctx := context.Background()

	cases := []RegisterInput{
		{Handle: "   ", Contact: "alice@example.com", Password: "x"},
		{Handle: "alice", Contact: "  ", Password: "x"},
		{Handle: "alice", Contact: "alice@example.com", Password: ""},
	}
	for i, in := range cases {
		if _, err := accounts.Register(ctx, in); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Fatalf("case %d err=%v want ErrInvalidInput", i, err)
		}
	}
	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("users=%d want=0", len(users))
	}
}

func TestRegister_DuplicateHandleOrContact(t *testing.T) {
	store := memoryrepository.New()
	accounts := newAccountService(store, nil)
	ctx := context.Background()

	if _, err := accounts.Register(ctx, RegisterInput{Handle: "alice", Contact: "alice@example.com", Password: "x"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := accounts.Register(ctx, RegisterInput{Handle: "alice", Contact: "other@example.com", Password: "x"}); !errors.Is(err, ledger.ErrDuplicateUser) {
		t.Fatalf("duplicate handle err=%v want ErrDuplicateUser", err)
	}
	if _, err := accounts.Register(ctx, RegisterInput{Handle: "alice2", Contact: "alice@example.com", Password: "x"}); !errors.Is(err, ledger.ErrDuplicateUser) {
		t.Fatalf("duplicate contact err=%v want ErrDuplicateUser", err)
	}
}

func TestLogin_IssuesUsableToken(t *testing.T) {
	store := memoryrepository.New()
	accounts := newAccountService(store, nil)
	ctx := context.Background()

	if _, err := accounts.Register(ctx, RegisterInput{Handle: "alice", Contact: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := accounts.Login(ctx, "alice", "hunter22", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	userID, err := accounts.Tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if userID != result.User.ID {
		t.Fatalf("token subject=%d want=%d", userID, result.User.ID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := memoryrepository.New()
	accounts := newAccountService(store, nil)
	ctx := context.Background()

	if _, err := accounts.Register(ctx, RegisterInput{Handle: "alice", Contact: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := accounts.Login(ctx, "alice", "wrong", "10.0.0.1"); !errors.Is(err, ledger.ErrInvalidCredentials) {
		t.Fatalf("err=%v want ErrInvalidCredentials", err)
	}
	if _, err := accounts.Login(ctx, "nobody", "wrong", "10.0.0.1"); !errors.Is(err, ledger.ErrInvalidCredentials) {
		t.Fatalf("unknown handle err=%v want ErrInvalidCredentials", err)
	}
}

func TestLogin_RateLimitPerAddress(t *testing.T) {
	store := memoryrepository.New()
	limiter := ratelimit.NewMemoryLimiter(3, time.Minute)
	accounts := newAccountService(store, limiter)
	ctx := context.Background()

	if _, err := accounts.Register(ctx, RegisterInput{Handle: "alice", Contact: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := accounts.Login(ctx, "alice", "wrong", "10.0.0.1"); !errors.Is(err, ledger.ErrInvalidCredentials) {
			t.Fatalf("attempt %d err=%v want ErrInvalidCredentials", i, err)
		}
	}
	if _, err := accounts.Login(ctx, "alice", "hunter22", "10.0.0.1"); !errors.Is(err, ledger.ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
	// Other addresses stay unaffected.
	result, err := accounts.Login(ctx, "alice", "hunter22", "10.0.0.2")
	if err != nil {
		t.Fatalf("other address login: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("token empty")
	}
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	store := memoryrepository.New()
	limiter := ratelimit.NewMemoryLimiter(3, time.Minute)
	accounts := newAccountService(store, limiter)
	ctx := context.Background()

	if _, err := accounts.Register(ctx, RegisterInput{Handle: "alice", Contact: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := accounts.Login(ctx, "alice", "wrong", "10.0.0.1"); !errors.Is(err, ledger.ErrInvalidCredentials) {
			t.Fatalf("attempt %d err=%v", i, err)
		}
	}
	if _, err := accounts.Login(ctx, "alice", "hunter22", "10.0.0.1"); err != nil {
		t.Fatalf("login after failures: %v", err)
	}
	// Counter cleared: the full budget is available again.
	for i := 0; i < 2; i++ {
		if _, err := accounts.Login(ctx, "alice", "wrong", "10.0.0.1"); !errors.Is(err, ledger.ErrInvalidCredentials) {
			t.Fatalf("post-reset attempt %d err=%v", i, err)
		}
	}
}

func TestLeaderboard_OrderedByBalance(t *testing.T) {
	store := memoryrepository.New()
	accounts := newAccountService(store, nil)
	ctx := context.Background()

	seedVerifiedUser(t, store, "low", 100)
	seedVerifiedUser(t, store, "high", 5000)
	seedVerifiedUser(t, store, "mid", 900)

	entries, err := accounts.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d want=2", len(entries))
	}
	if entries[0].Handle != "high" || entries[0].Rank != 1 {
		t.Fatalf("entries[0]=%+v want high at rank 1", entries[0])
	}
	if entries[1].Handle != "mid" || entries[1].Rank != 2 {
		t.Fatalf("entries[1]=%+v want mid at rank 2", entries[1])
	}
}

func TestSetBalance_RejectsNegative(t *testing.T) {
	store := memoryrepository.New()
	accounts := newAccountService(store, nil)
	ctx := context.Background()

	user := seedVerifiedUser(t, store, "alice", 1000)
	if err := accounts.SetBalance(ctx, user.ID, decimal.NewFromInt(-1)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("err=%v want ErrInvalidAmount", err)
	}
	if err := accounts.SetBalance(ctx, user.ID, decimal.NewFromInt(250)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	got, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Balance.Cmp(decimal.NewFromInt(250)) != 0 {
		t.Fatalf("balance=%s want=250", got.Balance)
	}
}
