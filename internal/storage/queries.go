package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"homeledger/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds every parameterized statement of the ledger. A Queries built
// with WithTx runs all of them inside that transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const timestampLayout = time.RFC3339

// mapError translates driver errors into ledger error kinds. Unknown errors
// are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", core.ErrDuplicateName, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", core.ErrReferentialConflict, err)
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %v", core.ErrDuplicateName, err)
		}
	}
	return err
}

// Members

func (q *Queries) CreateMember(ctx context.Context, name string) (core.Member, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO members (name) VALUES (?)`, name)
	if err != nil {
		return core.Member{}, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Member{}, err
	}
	return core.Member{ID: id, Name: name}, nil
}

func (q *Queries) GetMember(ctx context.Context, id int64) (core.Member, error) {
	var m core.Member
	err := q.db.QueryRowContext(ctx, `SELECT id, name FROM members WHERE id = ?`, id).Scan(&m.ID, &m.Name)
	return m, mapError(err)
}

func (q *Queries) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name FROM members ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) RenameMember(ctx context.Context, id int64, name string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE members SET name = ? WHERE id = ?`, name, id)
	return affectedOne(res, err)
}

func (q *Queries) DeleteMember(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	return affectedOne(res, err)
}

func (q *Queries) CountRecordsByMember(ctx context.Context, memberID int64) (int64, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM records WHERE member_id = ?`, memberID)
}

// Accounts

func (q *Queries) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO accounts (name, balance_cents) VALUES (?, 0)`, name)
	if err != nil {
		return core.Account{}, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, err
	}
	return core.Account{ID: id, Name: name}, nil
}

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var a core.Account
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, balance_cents FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Balance.Cents)
	return a, mapError(err)
}

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, balance_cents FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance.Cents); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) RenameAccount(ctx context.Context, id int64, name string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE accounts SET name = ? WHERE id = ?`, name, id)
	return affectedOne(res, err)
}

func (q *Queries) DeleteAccount(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	return affectedOne(res, err)
}

// ApplyBalanceDelta adds delta cents to the stored balance in place. It is the
// only statement that moves a balance during normal operation.
func (q *Queries) ApplyBalanceDelta(ctx context.Context, accountID, delta int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`, delta, accountID)
	return affectedOne(res, err)
}

// SetAccountBalance overwrites a balance. Only the reconciler uses it.
func (q *Queries) SetAccountBalance(ctx context.Context, accountID, cents int64) error {
	res, err := q.db.ExecContext(ctx, `UPDATE accounts SET balance_cents = ? WHERE id = ?`, cents, accountID)
	return affectedOne(res, err)
}

func (q *Queries) CountRecordsByAccount(ctx context.Context, accountID int64) (int64, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM records WHERE account_id = ?`, accountID)
}

// Categories

const categoryColumns = `id, name, COALESCE(parent_id, 0), kind`

func scanCategory(s interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	var kind string
	if err := s.Scan(&c.ID, &c.Name, &c.ParentID, &kind); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, name string, parentID int64, kind core.Kind) (core.Category, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (name, parent_id, kind) VALUES (?, ?, ?)`,
		name, nullID(parentID), string(kind))
	if err != nil {
		return core.Category{}, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{ID: id, Name: name, ParentID: parentID, Kind: kind}, nil
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	return c, mapError(err)
}

// FindSibling looks up a category by name among the children of parentID
// (0 for roots).
func (q *Queries) FindSibling(ctx context.Context, parentID int64, name string) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE COALESCE(parent_id, 0) = ? AND name = ?`,
		parentID, name))
	return c, mapError(err)
}

// ListCategories returns all categories of a kind, or every category when kind
// is empty, roots first and then by id.
func (q *Queries) ListCategories(ctx context.Context, kind core.Kind) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories
		 WHERE ? = '' OR kind = ?
		 ORDER BY parent_id IS NOT NULL, id`, string(kind), string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) RenameCategory(ctx context.Context, id int64, name string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, id)
	return affectedOne(res, err)
}

func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return affectedOne(res, err)
}

func (q *Queries) CountChildren(ctx context.Context, parentID int64) (int64, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM categories WHERE parent_id = ?`, parentID)
}

func (q *Queries) CountRecordsByCategory(ctx context.Context, categoryID int64) (int64, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM records WHERE category_id = ?`, categoryID)
}

// Records

const recordColumns = `r.id, r.date, r.kind, r.category_id, r.account_id, r.member_id,
	r.amount_cents, r.remark, r.created_at, r.updated_at`

func scanRecord(s interface{ Scan(...any) error }, extra ...any) (core.Record, error) {
	var (
		r                    core.Record
		date, kind           string
		createdAt, updatedAt string
	)
	dest := append([]any{
		&r.ID, &date, &kind, &r.CategoryID, &r.AccountID, &r.MemberID,
		&r.Amount.Cents, &r.Remark, &createdAt, &updatedAt,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return core.Record{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Record{}, fmt.Errorf("record %d: %w", r.ID, err)
	}
	r.Date = d
	r.Kind = core.Kind(kind)
	r.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	r.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	return r, nil
}

func (q *Queries) CreateRecord(ctx context.Context, r core.Record) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO records (date, kind, category_id, account_id, member_id, amount_cents, remark, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Date.String(), string(r.Kind), r.CategoryID, r.AccountID, r.MemberID,
		r.Amount.Cents, r.Remark,
		r.CreatedAt.UTC().Format(timestampLayout), r.UpdatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetRecord(ctx context.Context, id int64) (core.Record, error) {
	r, err := scanRecord(q.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records r WHERE r.id = ?`, id))
	return r, mapError(err)
}

// UpdateRecord rewrites every mutable column of r and returns the number of
// rows changed. created_at is never touched.
func (q *Queries) UpdateRecord(ctx context.Context, r core.Record) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE records
		 SET date = ?, kind = ?, category_id = ?, account_id = ?, member_id = ?,
		     amount_cents = ?, remark = ?, updated_at = ?
		 WHERE id = ?`,
		r.Date.String(), string(r.Kind), r.CategoryID, r.AccountID, r.MemberID,
		r.Amount.Cents, r.Remark, r.UpdatedAt.UTC().Format(timestampLayout), r.ID)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteRecord(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return affectedOne(res, err)
}

// RecordFilter narrows ListRecords. Zero values mean "no constraint".
type RecordFilter struct {
	From, To  core.Date
	Kind      core.Kind
	AccountID int64
	MemberID  int64
	// CategoryKeyword matches the category name or its parent's name.
	CategoryKeyword string
	Limit           int
	Offset          int
}

func (f RecordFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "r.date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "r.date <= ?")
		args = append(args, f.To.String())
	}
	if f.Kind != "" {
		conds = append(conds, "r.kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.AccountID != 0 {
		conds = append(conds, "r.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.MemberID != 0 {
		conds = append(conds, "r.member_id = ?")
		args = append(args, f.MemberID)
	}
	if kw := strings.TrimSpace(f.CategoryKeyword); kw != "" {
		conds = append(conds, "(c.name LIKE ? OR p.name LIKE ?)")
		like := "%" + kw + "%"
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const recordJoins = `
	FROM records r
	JOIN categories c ON c.id = r.category_id
	LEFT JOIN categories p ON p.id = c.parent_id
	JOIN accounts a ON a.id = r.account_id
	JOIN members m ON m.id = r.member_id`

// ListRecords returns records newest first, joined with display names.
func (q *Queries) ListRecords(ctx context.Context, f RecordFilter) ([]core.RecordView, error) {
	where, args := f.where()
	query := `SELECT ` + recordColumns + `,
		CASE WHEN p.id IS NULL THEN c.name ELSE p.name || ' > ' || c.name END,
		a.name, m.name` + recordJoins + where + ` ORDER BY r.date DESC, r.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.RecordView
	for rows.Next() {
		var v core.RecordView
		r, err := scanRecord(rows, &v.CategoryPath, &v.AccountName, &v.MemberName)
		if err != nil {
			return nil, err
		}
		v.Record = r
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountRecords counts the records ListRecords would return without paging.
func (q *Queries) CountRecords(ctx context.Context, f RecordFilter) (int64, error) {
	where, args := f.where()
	return q.count(ctx, `SELECT COUNT(*)`+recordJoins+where, args...)
}

// Granularity selects the period PeriodTotals groups by.
type Granularity string

const (
	ByMonth Granularity = "month"
	ByYear  Granularity = "year"
)

func (g Granularity) format() (string, error) {
	switch g {
	case ByMonth:
		return "%Y-%m", nil
	case ByYear:
		return "%Y", nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", core.ErrValidation, string(g))
	}
}

// PeriodTotals sums income and expense per month or year, latest period first.
func (q *Queries) PeriodTotals(ctx context.Context, g Granularity) ([]core.PeriodTotal, error) {
	layout, err := g.format()
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT strftime(?, date) AS period,
		        COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0)
		 FROM records
		 GROUP BY period
		 ORDER BY period DESC`, layout)
	if err != nil {
		return nil, fmt.Errorf("period totals: %w", err)
	}
	defer rows.Close()

	var out []core.PeriodTotal
	for rows.Next() {
		var p core.PeriodTotal
		if err := rows.Scan(&p.Period, &p.Income.Cents, &p.Expense.Cents); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CategoryTotals sums records of one kind per category path, largest first.
// A zero from or to leaves that end of the date range open.
func (q *Queries) CategoryTotals(ctx context.Context, kind core.Kind, from, to core.Date) ([]core.CategoryTotal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT CASE WHEN p.id IS NULL THEN c.name ELSE p.name || ' > ' || c.name END AS path,
		        SUM(r.amount_cents) AS total
		 FROM records r
		 JOIN categories c ON c.id = r.category_id
		 LEFT JOIN categories p ON p.id = c.parent_id
		 WHERE r.kind = ?
		   AND (? = '' OR r.date >= ?)
		   AND (? = '' OR r.date <= ?)
		 GROUP BY path
		 ORDER BY total DESC, path`,
		string(kind), from.String(), from.String(), to.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var c core.CategoryTotal
		if err := rows.Scan(&c.Path, &c.Amount.Cents); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Reconciliation

const balanceCheckQuery = `
	SELECT a.id, a.name, a.balance_cents,
	       COALESCE(SUM(CASE WHEN r.kind = 'income' THEN r.amount_cents ELSE -r.amount_cents END), 0)
	FROM accounts a
	LEFT JOIN records r ON r.account_id = a.id`

// BalanceChecks returns, for every account, the stored balance next to the
// signed sum of its records.
func (q *Queries) BalanceChecks(ctx context.Context) ([]core.Drift, error) {
	rows, err := q.db.QueryContext(ctx, balanceCheckQuery+` GROUP BY a.id ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("balance checks: %w", err)
	}
	defer rows.Close()

	var out []core.Drift
	for rows.Next() {
		var d core.Drift
		if err := rows.Scan(&d.AccountID, &d.AccountName, &d.Stored.Cents, &d.Expected.Cents); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) BalanceCheck(ctx context.Context, accountID int64) (core.Drift, error) {
	var d core.Drift
	err := q.db.QueryRowContext(ctx, balanceCheckQuery+` WHERE a.id = ? GROUP BY a.id`, accountID).
		Scan(&d.AccountID, &d.AccountName, &d.Stored.Cents, &d.Expected.Cents)
	return d, mapError(err)
}

func (q *Queries) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// affectedOne maps a statement result that must touch a row: zero rows
// becomes ErrNotFound.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
