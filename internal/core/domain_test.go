package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01-01", true},
		{"2024-02-29", true}, // leap year
		{"2025-02-29", false},
		{"2025-04-31", false},
		{"2025-13-01", false},
		{"1899-12-31", false},
		{"2101-01-01", false},
		{"2025/01/01", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q expected ok, got %v", tc.in, err)
			}
			if d.String() != tc.in {
				t.Fatalf("%q round trip got %q", tc.in, d.String())
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) || !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected invalid date validation error, got %v", tc.in, err)
		}
	}
}

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 12, 31).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{Time: time.Time{}}).Validate(); err == nil {
		t.Fatalf("expected error for zero date")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Income "); err != nil || k != Income {
		t.Fatalf("expected income, got %q (err=%v)", k, err)
	}
	if k, err := ParseKind("expense"); err != nil || k != Expense {
		t.Fatalf("expected expense, got %q (err=%v)", k, err)
	}
	if _, err := ParseKind("transfer"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestSigned(t *testing.T) {
	amount := Money{Cents: 1000}
	if got := Signed(Income, amount); got.Cents != 1000 {
		t.Fatalf("income contribution = %d, want 1000", got.Cents)
	}
	if got := Signed(Expense, amount); got.Cents != -1000 {
		t.Fatalf("expense contribution = %d, want -1000", got.Cents)
	}
}

func TestRecordValidate(t *testing.T) {
	good := Record{
		Date:       NewDate(2025, 1, 1),
		Kind:       Income,
		CategoryID: 1,
		AccountID:  1,
		Amount:     Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Record{
		{Date: Date{}, Kind: Income, CategoryID: 1, AccountID: 1, Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Kind: "gift", CategoryID: 1, AccountID: 1, Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Kind: Income, CategoryID: 1, AccountID: 1, Amount: Money{Cents: 0}},
		{Date: NewDate(2025, 1, 1), Kind: Income, CategoryID: 0, AccountID: 1, Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Kind: Income, CategoryID: 1, AccountID: 0, Amount: Money{Cents: 1}},
	}
	for i, r := range bads {
		if err := r.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if n, err := NormalizeName("  Cash "); err != nil || n != "Cash" {
		t.Fatalf("expected Cash, got %q (err=%v)", n, err)
	}
	if _, err := NormalizeName("   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := NormalizeName("工资工资工资工资工资工资工资工资工资工资工资工资工资工资工资"); err != nil {
		t.Fatalf("30 runes should be accepted, got %v", err)
	}
	if _, err := NormalizeName("0123456789012345678901234567890"); !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
}

func TestPersistenceErrorStage(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := error(&PersistenceError{Stage: StageBalance, Err: cause})

	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrapped")
	}
	stage, ok := FailedStage(err)
	if !ok || stage != StageBalance {
		t.Fatalf("expected balance stage, got %q (ok=%v)", stage, ok)
	}
	if _, ok := FailedStage(ErrNotFound); ok {
		t.Fatalf("plain errors carry no stage")
	}
}
