package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
	"homeledger/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type fixture struct {
	repo       *storage.SQLiteRepository
	records    *RecordService
	categories *CategoryService
	accounts   *AccountService
	members    *MemberService
	publisher  *recordingPublisher

	cash, bank          core.Account
	salary, food, lunch core.Category
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	f := &fixture{
		repo:       repo,
		publisher:  &recordingPublisher{},
		categories: NewCategoryService(repo),
		accounts:   NewAccountService(repo),
		members:    NewMemberService(repo),
	}
	f.records = NewRecordService(repo, policy, f.publisher)
	f.records.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	if f.cash, err = f.accounts.Create(ctx, "Cash"); err != nil {
		t.Fatal(err)
	}
	if f.bank, err = f.accounts.Create(ctx, "Bank"); err != nil {
		t.Fatal(err)
	}
	if f.salary, err = f.categories.CreateRoot(ctx, "Salary", core.Income); err != nil {
		t.Fatal(err)
	}
	if f.food, err = f.categories.CreateRoot(ctx, "Food", core.Expense); err != nil {
		t.Fatal(err)
	}
	if f.lunch, err = f.categories.CreateChild(ctx, "Lunch", f.food.ID); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) balance(t *testing.T, accountID int64) int64 {
	t.Helper()
	a, err := f.accounts.Get(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.Balance.Cents
}

func (f *fixture) add(t *testing.T, kind core.Kind, categoryID, accountID, cents int64) int64 {
	t.Helper()
	res, err := f.records.Add(context.Background(), RecordInput{
		Date:       core.NewDate(2025, 1, 10),
		Kind:       kind,
		CategoryID: categoryID,
		AccountID:  accountID,
		Amount:     core.Money{Cents: cents},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return res.ID
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	drifts, err := NewReconciler(f.repo).Check(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("balances drifted from records: %+v", drifts)
	}
}

// freezeBalance makes every balance update of accountID fail.
func (f *fixture) freezeBalance(t *testing.T, accountID int64) {
	t.Helper()
	stmt := fmt.Sprintf(`CREATE TRIGGER freeze_balance_%d BEFORE UPDATE OF balance_cents ON accounts
		WHEN NEW.id = %d BEGIN SELECT RAISE(ABORT, 'balance frozen'); END;`, accountID, accountID)
	if _, err := f.repo.DB().Exec(stmt); err != nil {
		t.Fatalf("install trigger: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

func storageFilterAll() storage.RecordFilter { return storage.RecordFilter{} }
