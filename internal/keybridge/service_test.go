package keybridge

import (
	"context"
	"errors"
	"testing"

	"betledger/internal/ledger"
	memoryrepository "betledger/internal/repository/memory"
)

type stubNotifier struct {
	notified []string
	err      error
}

func (n *stubNotifier) NotifyVerified(_ context.Context, externalID string) error {
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, externalID)
	return nil
}

func newBridge(poolSize int) (*Service, *memoryrepository.Store, *stubNotifier) {
	store := memoryrepository.New()
	notifier := &stubNotifier{}
	return &Service{
		Repo:     store,
		Notifier: notifier,
		Secret:   "shared-secret",
		PoolSize: poolSize,
	}, store, notifier
}

func TestTopUpPool_FillsToConfiguredSize(t *testing.T) {
	svc, store, _ := newBridge(10)
	ctx := context.Background()

	inserted, err := svc.TopUpPool(ctx)
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if inserted != 10 {
		t.Fatalf("inserted=%d want=10", inserted)
	}

	// Already full: nothing to add.
	inserted, err = svc.TopUpPool(ctx)
	if err != nil {
		t.Fatalf("second top up: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("inserted=%d want=0", inserted)
	}

	free, err := store.CountFreeKeys(ctx)
	if err != nil {
		t.Fatalf("count free: %v", err)
	}
	if free != 10 {
		t.Fatalf("free=%d want=10", free)
	}
}

func TestTopUpPool_RefillsAfterAssignment(t *testing.T) {
	svc, store, _ := newBridge(5)
	ctx := context.Background()

	if _, err := svc.TopUpPool(ctx); err != nil {
		t.Fatalf("top up: %v", err)
	}
	if _, _, err := svc.IssueKey(ctx, "discord-1"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	inserted, err := svc.TopUpPool(ctx)
	if err != nil {
		t.Fatalf("refill: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted=%d want=1", inserted)
	}

	stats, err := store.KeyStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Assigned != 1 || stats.Free != 5 || stats.Total != 6 {
		t.Fatalf("stats=%+v want assigned=1 free=5 total=6", stats)
	}
}

func TestIssueKey_SameKeyOnReRequest(t *testing.T) {
	svc, _, _ := newBridge(5)
	ctx := context.Background()

	if _, err := svc.TopUpPool(ctx); err != nil {
		t.Fatalf("top up: %v", err)
	}

	first, reissued, err := svc.IssueKey(ctx, "discord-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if reissued {
		t.Fatalf("first issue reported as reissue")
	}

	second, reissued, err := svc.IssueKey(ctx, "discord-1")
	if err != nil {
		t.Fatalf("re-issue: %v", err)
	}
	if !reissued {
		t.Fatalf("second issue not reported as reissue")
	}
	if first.Key != second.Key {
		t.Fatalf("key changed on re-request: %s vs %s", first.Key, second.Key)
	}
}

func TestIssueKey_EmptyPool(t *testing.T) {
	svc, _, _ := newBridge(0)

	if _, _, err := svc.IssueKey(context.Background(), "discord-1"); !errors.Is(err, ledger.ErrKeyPoolEmpty) {
		t.Fatalf("err=%v want ErrKeyPoolEmpty", err)
	}
}

func TestVerify_ConsumesKeyAndNotifiesLedger(t *testing.T) {
	svc, store, notifier := newBridge(5)
	ctx := context.Background()

	if _, err := svc.TopUpPool(ctx); err != nil {
		t.Fatalf("top up: %v", err)
	}
	key, _, err := svc.IssueKey(ctx, "discord-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.Verify(ctx, "discord-1", key.Key, "", "shared-secret"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != "discord-1" {
		t.Fatalf("notified=%v want [discord-1]", notifier.notified)
	}

	got, err := store.GetKeyByExternalID(ctx, "discord-1")
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if !got.Used || got.UsedAt == nil {
		t.Fatalf("key not marked used: %+v", got)
	}
}

func TestVerify_BadSecret(t *testing.T) {
	svc, _, notifier := newBridge(5)
	ctx := context.Background()

	if _, err := svc.TopUpPool(ctx); err != nil {
		t.Fatalf("top up: %v", err)
	}
	key, _, err := svc.IssueKey(ctx, "discord-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.Verify(ctx, "discord-1", key.Key, "", "wrong"); !errors.Is(err, ledger.ErrBadSecret) {
		t.Fatalf("err=%v want ErrBadSecret", err)
	}
	if len(notifier.notified) != 0 {
		t.Fatalf("rejected verify must not notify the ledger")
	}
}

func TestVerify_KeyOwnershipAndExistence(t *testing.T) {
	svc, _, _ := newBridge(5)
	ctx := context.Background()

	if _, err := svc.TopUpPool(ctx); err != nil {
		t.Fatalf("top up: %v", err)
	}
	key, _, err := svc.IssueKey(ctx, "discord-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.Verify(ctx, "discord-2", key.Key, "", "shared-secret"); !errors.Is(err, ledger.ErrKeyMismatch) {
		t.Fatalf("foreign key err=%v want ErrKeyMismatch", err)
	}
	if err := svc.Verify(ctx, "discord-1", "nosuchkey", "", "shared-secret"); !errors.Is(err, ledger.ErrKeyNotFound) {
		t.Fatalf("unknown key err=%v want ErrKeyNotFound", err)
	}
}

func TestVerify_ReplayResendsConfirmation(t *testing.T) {
	svc, _, notifier := newBridge(5)
	ctx := context.Background()

	if _, err := svc.TopUpPool(ctx); err != nil {
		t.Fatalf("top up: %v", err)
	}
	key, _, err := svc.IssueKey(ctx, "discord-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.Verify(ctx, "discord-1", key.Key, "", "shared-secret"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// The rightful owner replaying a used key gets the confirmation again
	// instead of an error; that covers a crash between consume and notify.
	if err := svc.Verify(ctx, "discord-1", key.Key, "", "shared-secret"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(notifier.notified) != 2 {
		t.Fatalf("notified=%d want=2", len(notifier.notified))
	}
}
