package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"homeledger/internal/core"
	"homeledger/internal/services"
	"homeledger/internal/storage"
)

type addCmd struct {
	app      *App
	kind     string
	category int64
	account  int64
	member   int64
	date     string
	remark   string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an income or an expense" }
func (*addCmd) Usage() string {
	return `add -category <id> -account <id> [-kind income|expense] [-member <id>] [-date YYYY-MM-DD] [-remark <text>] <amount>

  Stores a record and updates the balance of its account. The amount is
  positive with at most two decimals. The kind defaults to the category's
  kind, the date to today and the member to the default member.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "", "income or expense (defaults to the category's kind)")
	f.Int64Var(&c.category, "category", 0, "category id")
	f.Int64Var(&c.account, "account", 0, "account id")
	f.Int64Var(&c.member, "member", 0, "member id (defaults to the default member)")
	f.StringVar(&c.date, "date", "", "record date (YYYY-MM-DD, defaults to today)")
	f.StringVar(&c.remark, "remark", "", "optional note")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.usage("add takes exactly one amount")
	}
	if c.category == 0 || c.account == 0 {
		return c.app.usage("-category and -account are required")
	}
	amount, err := core.ParseAmount(f.Arg(0))
	if err != nil {
		return c.app.fail(err)
	}
	day, err := parseOptionalDate(c.date)
	if err != nil {
		return c.app.fail(err)
	}
	kind, err := parseOptionalKind(c.kind)
	if err != nil {
		return c.app.fail(err)
	}
	if kind == "" {
		cat, err := c.app.Categories.Get(ctx, c.category)
		if err != nil {
			return c.app.fail(err)
		}
		kind = cat.Kind
	}

	res, err := c.app.Records.Add(ctx, services.RecordInput{
		Date:       day,
		Kind:       kind,
		CategoryID: c.category,
		AccountID:  c.account,
		MemberID:   c.member,
		Amount:     amount,
		Remark:     c.remark,
	})
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Added record %d: %s %s\n", res.ID, kind, c.app.money(amount))
	c.app.warnBalance(res.BalanceWarning)
	return subcommands.ExitSuccess
}

type editCmd struct {
	app         *App
	kind        string
	category    int64
	account     int64
	member      int64
	date        string
	amount      string
	remark      string
	clearRemark bool
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change fields of a record" }
func (*editCmd) Usage() string {
	return `edit [flags] <id>

  Only the flags given are changed. A blank -remark keeps the current remark;
  use -clear-remark to remove it. The account balances are adjusted for the
  old and the new values.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "", "new kind")
	f.Int64Var(&c.category, "category", 0, "new category id")
	f.Int64Var(&c.account, "account", 0, "new account id")
	f.Int64Var(&c.member, "member", 0, "new member id (0 for the default member)")
	f.StringVar(&c.date, "date", "", "new date (YYYY-MM-DD)")
	f.StringVar(&c.amount, "amount", "", "new amount")
	f.StringVar(&c.remark, "remark", "", "new remark")
	f.BoolVar(&c.clearRemark, "clear-remark", false, "remove the remark")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, status, ok := singleID(c.app, f, "edit")
	if !ok {
		return status
	}
	patch, err := c.patch(f)
	if err != nil {
		return c.app.fail(err)
	}

	res, err := c.app.Records.Edit(ctx, id, patch)
	if err != nil {
		return c.app.fail(err)
	}
	if res.NoOp {
		fmt.Fprintf(c.app.Out, "Record %d unchanged\n", id)
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(c.app.Out, "Updated record %d\n", id)
	c.app.warnBalance(res.BalanceWarning)
	return subcommands.ExitSuccess
}

// patch builds a RecordPatch from the flags that were actually set.
func (c *editCmd) patch(f *flag.FlagSet) (services.RecordPatch, error) {
	var (
		p   services.RecordPatch
		err error
	)
	f.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "kind":
			var k core.Kind
			if k, err = core.ParseKind(c.kind); err == nil {
				p.Kind = &k
			}
		case "category":
			p.CategoryID = &c.category
		case "account":
			p.AccountID = &c.account
		case "member":
			p.MemberID = &c.member
		case "date":
			var d core.Date
			if d, err = core.ParseDate(c.date); err == nil {
				p.Date = &d
			}
		case "amount":
			var m core.Money
			if m, err = core.ParseAmount(c.amount); err == nil {
				p.Amount = &m
			}
		case "remark":
			p.Remark = &c.remark
		case "clear-remark":
			p.ClearRemark = c.clearRemark
		}
	})
	return p, err
}

type rmCmd struct{ app *App }

func (*rmCmd) Name() string           { return "rm" }
func (*rmCmd) Synopsis() string       { return "delete a record" }
func (*rmCmd) Usage() string          { return "rm <id>\n" }
func (*rmCmd) SetFlags(*flag.FlagSet) {}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, status, ok := singleID(c.app, f, "rm")
	if !ok {
		return status
	}
	res, err := c.app.Records.Delete(ctx, id)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Deleted record %d: %s %s on %s\n", id, res.Record.Kind, c.app.money(res.Record.Amount), res.Record.Date)
	c.app.warnBalance(res.BalanceWarning)
	return subcommands.ExitSuccess
}

type listCmd struct {
	app      *App
	from     string
	to       string
	kind     string
	account  int64
	member   int64
	category string
	page     int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list records, newest first" }
func (*listCmd) Usage() string {
	return `list [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-kind income|expense] [-account <id>] [-member <id>] [-category <keyword>] [-page <n>]

  The category keyword matches a category or its parent by name.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "first date to include")
	f.StringVar(&c.to, "to", "", "last date to include")
	f.StringVar(&c.kind, "kind", "", "only income or expense")
	f.Int64Var(&c.account, "account", 0, "only this account")
	f.Int64Var(&c.member, "member", 0, "only this member")
	f.StringVar(&c.category, "category", "", "category name keyword")
	f.IntVar(&c.page, "page", 1, "page number, starting at 1")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter, err := c.filter()
	if err != nil {
		return c.app.fail(err)
	}
	views, total, err := c.app.Records.List(ctx, filter)
	if err != nil {
		return c.app.fail(err)
	}
	if total == 0 {
		fmt.Fprintln(c.app.Out, "No records.")
		return subcommands.ExitSuccess
	}

	w := c.app.table()
	fmt.Fprintln(w, "ID\tDATE\tKIND\tCATEGORY\tACCOUNT\tMEMBER\tAMOUNT\tREMARK")
	for _, v := range views {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.Date, v.Kind, v.CategoryPath, v.AccountName, v.MemberName, c.app.money(v.Contribution()), v.Remark)
	}
	w.Flush()

	pages := (total + int64(c.app.PageSize) - 1) / int64(c.app.PageSize)
	fmt.Fprintf(c.app.Out, "Page %d of %d, %d records\n", c.page, pages, total)
	return subcommands.ExitSuccess
}

func (c *listCmd) filter() (storage.RecordFilter, error) {
	var f storage.RecordFilter
	var err error
	if c.page < 1 {
		return f, fmt.Errorf("%w: page must be at least 1", core.ErrValidation)
	}
	if f.From, err = parseOptionalDate(c.from); err != nil {
		return f, err
	}
	if f.To, err = parseOptionalDate(c.to); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return f, fmt.Errorf("%w: -to is before -from", core.ErrValidation)
	}
	if f.Kind, err = parseOptionalKind(c.kind); err != nil {
		return f, err
	}
	f.AccountID = c.account
	f.MemberID = c.member
	f.CategoryKeyword = strings.TrimSpace(c.category)
	f.Limit = c.app.PageSize
	f.Offset = (c.page - 1) * c.app.PageSize
	return f, nil
}

func (a *App) warnBalance(warning error) {
	if warning != nil {
		fmt.Fprintf(a.Err, "Warning: account balance was not updated (%v); run reconcile -repair\n", warning)
	}
}
