package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// SelfMemberID identifies the seeded "self" member. Records created without
// an explicit member are attributed to it.
const SelfMemberID int64 = 1

// MaxNameLength bounds member, account and category names.
const MaxNameLength = 30

const dateLayout = "2006-01-02"

type (
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Member struct {
		ID   int64
		Name string
	}

	Account struct {
		ID      int64
		Name    string
		Balance Money // signed; maintained by the balance ledger
	}

	Category struct {
		ID       int64
		Name     string
		ParentID int64 // 0 for a root category
		Kind     Kind
	}

	Record struct {
		ID         int64
		Date       Date
		Kind       Kind
		CategoryID int64
		AccountID  int64
		MemberID   int64
		Amount     Money
		Remark     string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

// ParseKind accepts "income" or "expense" in any letter case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrInvalidKind, string(k))
	}
}

func (k Kind) String() string {
	return string(k)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD calendar date. Day-of-month is checked
// against the real month length, leap years included.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	d := Date{Time: t}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	if y := d.Year(); y < 1900 || y > 2100 {
		return fmt.Errorf("%w: year %d out of range 1900-2100", ErrInvalidDate, y)
	}
	return nil
}

// String formats the date as YYYY-MM-DD, the storage format.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Signed returns the contribution of a record of the given kind and amount to
// its account balance: +amount for income, -amount for expense.
func Signed(kind Kind, amount Money) Money {
	if kind == Income {
		return amount
	}
	return amount.Neg()
}

// IsRoot reports whether the category sits at the top of the hierarchy.
func (c Category) IsRoot() bool {
	return c.ParentID == 0
}

// Contribution is the signed delta this record applies to its account.
func (r Record) Contribution() Money {
	return Signed(r.Kind, r.Amount)
}

// Validate checks the record fields that can be verified without the store.
func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if r.CategoryID <= 0 {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if r.AccountID <= 0 {
		return fmt.Errorf("%w: account is required", ErrValidation)
	}
	if r.MemberID < 0 {
		return fmt.Errorf("%w: invalid member %d", ErrValidation, r.MemberID)
	}
	return nil
}

// NormalizeName trims a member, account or category name and enforces the
// length limits shared by all three.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if len([]rune(name)) > MaxNameLength {
		return "", fmt.Errorf("%w (max %d characters)", ErrNameTooLong, MaxNameLength)
	}
	return name, nil
}
