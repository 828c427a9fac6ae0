package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

type reportCmd struct {
	app        *App
	by         string
	categories bool
	kind       string
	from       string
	to         string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "summarize income and expense" }
func (*reportCmd) Usage() string {
	return `report [-by month|year]
report -categories [-kind income|expense] [-from YYYY-MM-DD] [-to YYYY-MM-DD]

  Without -categories, prints income, expense and net per month or year.
  With -categories, prints the totals of one kind per category.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.by, "by", string(storage.ByMonth), "period: month or year")
	f.BoolVar(&c.categories, "categories", false, "total by category instead of by period")
	f.StringVar(&c.kind, "kind", string(core.Expense), "kind for the category report")
	f.StringVar(&c.from, "from", "", "first date of the category report")
	f.StringVar(&c.to, "to", "", "last date of the category report")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.categories {
		return c.byCategory(ctx)
	}
	totals, err := c.app.Reports.Periods(ctx, storage.Granularity(c.by))
	if err != nil {
		return c.app.fail(err)
	}
	w := c.app.table()
	fmt.Fprintln(w, "PERIOD\tINCOME\tEXPENSE\tNET")
	for _, p := range totals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Period, c.app.money(p.Income), c.app.money(p.Expense), c.app.money(p.Net()))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

func (c *reportCmd) byCategory(ctx context.Context) subcommands.ExitStatus {
	kind, err := core.ParseKind(c.kind)
	if err != nil {
		return c.app.fail(err)
	}
	from, err := parseOptionalDate(c.from)
	if err != nil {
		return c.app.fail(err)
	}
	to, err := parseOptionalDate(c.to)
	if err != nil {
		return c.app.fail(err)
	}
	totals, err := c.app.Reports.Categories(ctx, kind, from, to)
	if err != nil {
		return c.app.fail(err)
	}

	var sum core.Money
	w := c.app.table()
	fmt.Fprintln(w, "CATEGORY\tAMOUNT")
	for _, t := range totals {
		sum = sum.Add(t.Amount)
		fmt.Fprintf(w, "%s\t%s\n", t.Path, c.app.money(t.Amount))
	}
	fmt.Fprintf(w, "Total\t%s\n", c.app.money(sum))
	w.Flush()
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	app    *App
	repair bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "compare account balances with their records" }
func (*reconcileCmd) Usage() string {
	return `reconcile [-repair]

  Recomputes every account balance from its records and lists the accounts
  whose stored balance differs. With -repair the stored balances are reset
  to the recomputed ones.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.repair, "repair", false, "overwrite drifted balances")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var (
		drifts []core.Drift
		err    error
	)
	if c.repair {
		drifts, err = c.app.Reconciler.RepairAll(ctx)
	} else {
		drifts, err = c.app.Reconciler.Check(ctx)
	}
	if err != nil {
		return c.app.fail(err)
	}
	if len(drifts) == 0 {
		fmt.Fprintln(c.app.Out, "All balances match their records.")
		return subcommands.ExitSuccess
	}

	w := c.app.table()
	fmt.Fprintln(w, "ID\tACCOUNT\tSTORED\tEXPECTED\tDIFFERENCE")
	for _, d := range drifts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.AccountID, d.AccountName,
			c.app.money(d.Stored), c.app.money(d.Expected), c.app.money(d.Difference()))
	}
	w.Flush()

	if c.repair {
		fmt.Fprintf(c.app.Out, "Repaired %d account(s).\n", len(drifts))
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(c.app.Out, "%d account(s) drifted; run reconcile -repair to fix.\n", len(drifts))
	return subcommands.ExitFailure
}
