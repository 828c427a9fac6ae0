package core

// RecordView is a record joined with the display names the presentation layer needs.
type RecordView struct {
	Record
	CategoryPath string
	AccountName  string
	MemberName   string
}

// PeriodTotal aggregates income and expense for a month ("2025-01") or year ("2025").
type PeriodTotal struct {
	Period  string
	Income  Money
	Expense Money
}

// Net is income minus expense.
func (p PeriodTotal) Net() Money {
	return p.Income.Sub(p.Expense)
}

// CategoryTotal is an amount aggregated by category path.
type CategoryTotal struct {
	Path   string
	Amount Money
}

// CategoryNode is a root category with its children, used by category pickers.
type CategoryNode struct {
	Category
	Children []Category
}

// Drift describes an account whose stored balance disagrees with its records.
type Drift struct {
	AccountID   int64
	AccountName string
	Stored      Money
	Expected    Money
}

// Difference is how far the stored balance is off: stored minus expected.
func (d Drift) Difference() Money {
	return d.Stored.Sub(d.Expected)
}
