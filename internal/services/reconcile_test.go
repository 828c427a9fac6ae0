package services

import (
	"context"
	"errors"
	"testing"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

func TestReconcileRepair(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	ctx := context.Background()
	rec := NewReconciler(f.repo)

	f.add(t, core.Income, f.salary.ID, f.cash.ID, 2000)
	f.add(t, core.Expense, f.lunch.ID, f.bank.ID, 300)

	if _, err := f.repo.DB().Exec(`UPDATE accounts SET balance_cents = 1 WHERE id = ?`, f.cash.ID); err != nil {
		t.Fatal(err)
	}

	drifts, err := rec.CheckAccounts(ctx, f.cash.ID, f.bank.ID, 999)
	if err != nil {
		t.Fatal(err)
	}
	if len(drifts) != 1 || drifts[0].AccountID != f.cash.ID || drifts[0].Expected.Cents != 2000 {
		t.Fatalf("unexpected drifts: %+v", drifts)
	}

	d, err := rec.Repair(ctx, f.bank.ID)
	if err != nil || !d.Difference().IsZero() {
		t.Fatalf("consistent account repair = %+v (err=%v)", d, err)
	}

	fixed, err := rec.RepairAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(fixed) != 1 || fixed[0].Stored.Cents != 1 {
		t.Fatalf("unexpected repairs: %+v", fixed)
	}
	if got := f.balance(t, f.cash.ID); got != 2000 {
		t.Fatalf("cash balance = %d after repair", got)
	}
	f.assertConsistent(t)

	if _, err := rec.Repair(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReports(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	ctx := context.Background()
	reports := NewReportService(f.repo)

	f.add(t, core.Income, f.salary.ID, f.cash.ID, 5000)
	f.add(t, core.Expense, f.lunch.ID, f.bank.ID, 1200)

	net, err := reports.NetWorth(ctx)
	if err != nil || net.Cents != 3800 {
		t.Fatalf("net worth = %d (err=%v)", net.Cents, err)
	}

	months, err := reports.Periods(ctx, storage.ByMonth)
	if err != nil || len(months) != 1 || months[0].Period != "2025-01" {
		t.Fatalf("months = %+v (err=%v)", months, err)
	}

	cats, err := reports.Categories(ctx, core.Expense, core.Date{}, core.Date{})
	if err != nil || len(cats) != 1 || cats[0].Path != "Food > Lunch" {
		t.Fatalf("categories = %+v (err=%v)", cats, err)
	}

	if _, err := reports.Categories(ctx, core.Expense, core.NewDate(2025, 2, 1), core.NewDate(2025, 1, 1)); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}

func TestAccountAndMemberSettings(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	ctx := context.Background()

	if _, err := f.accounts.Create(ctx, "Cash"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected duplicate account, got %v", err)
	}
	if err := f.accounts.Rename(ctx, f.bank.ID, "Cash"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected duplicate on rename, got %v", err)
	}
	if err := f.accounts.Rename(ctx, f.bank.ID, "Savings"); err != nil {
		t.Fatal(err)
	}
	accounts, err := f.accounts.List(ctx)
	if err != nil || len(accounts) != 2 || accounts[1].Name != "Savings" {
		t.Fatalf("accounts = %+v (err=%v)", accounts, err)
	}

	if _, err := f.members.Create(ctx, "self"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected duplicate member, got %v", err)
	}
	if err := f.members.Rename(ctx, core.SelfMemberID, "Me"); err != nil {
		t.Fatalf("the default member can be renamed: %v", err)
	}
	if err := f.members.Rename(ctx, 999, "Ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	members, err := f.members.List(ctx)
	if err != nil || len(members) != 1 || members[0].Name != "Me" {
		t.Fatalf("members = %+v (err=%v)", members, err)
	}
}
