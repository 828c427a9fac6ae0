package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"homeledger/internal/core"
)

// members

type memberAddCmd struct{ app *App }

func (*memberAddCmd) Name() string     { return "member-add" }
func (*memberAddCmd) Synopsis() string { return "add a household member" }
func (*memberAddCmd) Usage() string {
	return `member-add <name>

  Adds a member that records can be attributed to.
`
}
func (*memberAddCmd) SetFlags(*flag.FlagSet) {}

func (c *memberAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.usage("member-add takes exactly one name")
	}
	m, err := c.app.Members.Create(ctx, f.Arg(0))
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Added member %d %s\n", m.ID, m.Name)
	return subcommands.ExitSuccess
}

type memberRenameCmd struct{ app *App }

func (*memberRenameCmd) Name() string     { return "member-rename" }
func (*memberRenameCmd) Synopsis() string { return "rename a member" }
func (*memberRenameCmd) Usage() string {
	return "member-rename <id> <new-name>\n"
}
func (*memberRenameCmd) SetFlags(*flag.FlagSet) {}

func (c *memberRenameCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, name, status, ok := idAndName(c.app, f, "member-rename")
	if !ok {
		return status
	}
	if err := c.app.Members.Rename(ctx, id, name); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Renamed member %d\n", id)
	return subcommands.ExitSuccess
}

type memberRmCmd struct{ app *App }

func (*memberRmCmd) Name() string     { return "member-rm" }
func (*memberRmCmd) Synopsis() string { return "delete a member no record refers to" }
func (*memberRmCmd) Usage() string {
	return `member-rm <id>

  Refuses to delete the default member or a member that still has records.
`
}
func (*memberRmCmd) SetFlags(*flag.FlagSet) {}

func (c *memberRmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, status, ok := singleID(c.app, f, "member-rm")
	if !ok {
		return status
	}
	if err := c.app.Members.Delete(ctx, id); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Deleted member %d\n", id)
	return subcommands.ExitSuccess
}

type membersCmd struct{ app *App }

func (*membersCmd) Name() string           { return "members" }
func (*membersCmd) Synopsis() string       { return "list members" }
func (*membersCmd) Usage() string          { return "members\n" }
func (*membersCmd) SetFlags(*flag.FlagSet) {}

func (c *membersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	members, err := c.app.Members.List(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	w := c.app.table()
	fmt.Fprintln(w, "ID\tNAME")
	for _, m := range members {
		fmt.Fprintf(w, "%d\t%s\n", m.ID, m.Name)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

// accounts

type accountAddCmd struct{ app *App }

func (*accountAddCmd) Name() string     { return "account-add" }
func (*accountAddCmd) Synopsis() string { return "add an account with a zero balance" }
func (*accountAddCmd) Usage() string {
	return "account-add <name>\n"
}
func (*accountAddCmd) SetFlags(*flag.FlagSet) {}

func (c *accountAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.usage("account-add takes exactly one name")
	}
	a, err := c.app.Accounts.Create(ctx, f.Arg(0))
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Added account %d %s\n", a.ID, a.Name)
	return subcommands.ExitSuccess
}

type accountRenameCmd struct{ app *App }

func (*accountRenameCmd) Name() string           { return "account-rename" }
func (*accountRenameCmd) Synopsis() string       { return "rename an account" }
func (*accountRenameCmd) Usage() string          { return "account-rename <id> <new-name>\n" }
func (*accountRenameCmd) SetFlags(*flag.FlagSet) {}

func (c *accountRenameCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, name, status, ok := idAndName(c.app, f, "account-rename")
	if !ok {
		return status
	}
	if err := c.app.Accounts.Rename(ctx, id, name); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Renamed account %d\n", id)
	return subcommands.ExitSuccess
}

type accountRmCmd struct{ app *App }

func (*accountRmCmd) Name() string           { return "account-rm" }
func (*accountRmCmd) Synopsis() string       { return "delete an account no record refers to" }
func (*accountRmCmd) Usage() string          { return "account-rm <id>\n" }
func (*accountRmCmd) SetFlags(*flag.FlagSet) {}

func (c *accountRmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, status, ok := singleID(c.app, f, "account-rm")
	if !ok {
		return status
	}
	if err := c.app.Accounts.Delete(ctx, id); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Deleted account %d\n", id)
	return subcommands.ExitSuccess
}

type accountsCmd struct{ app *App }

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list accounts with their balances" }
func (*accountsCmd) Usage() string {
	return `accounts

  Lists every account with its stored balance, followed by the net worth.
`
}
func (*accountsCmd) SetFlags(*flag.FlagSet) {}

func (c *accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	accounts, err := c.app.Accounts.List(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	worth, err := c.app.Reports.NetWorth(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	w := c.app.table()
	fmt.Fprintln(w, "ID\tNAME\tBALANCE")
	for _, a := range accounts {
		fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.Name, c.app.money(a.Balance))
	}
	fmt.Fprintf(w, "\tNet worth\t%s\n", c.app.money(worth))
	w.Flush()
	return subcommands.ExitSuccess
}

// categories

type categoryAddCmd struct {
	app    *App
	kind   string
	parent int64
}

func (*categoryAddCmd) Name() string     { return "category-add" }
func (*categoryAddCmd) Synopsis() string { return "add a root or child category" }
func (*categoryAddCmd) Usage() string {
	return `category-add -kind income|expense <name>
category-add -parent <id> <name>

  A root category needs a kind. A child takes the kind of its parent, which
  must itself be a root.
`
}

func (c *categoryAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "", "kind of a root category (income or expense)")
	f.Int64Var(&c.parent, "parent", 0, "id of the parent category")
}

func (c *categoryAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.usage("category-add takes exactly one name")
	}
	var (
		cat core.Category
		err error
	)
	switch {
	case c.parent != 0 && c.kind != "":
		return c.app.usage("-kind and -parent are mutually exclusive")
	case c.parent != 0:
		cat, err = c.app.Categories.CreateChild(ctx, f.Arg(0), c.parent)
	default:
		kind, kerr := core.ParseKind(c.kind)
		if kerr != nil {
			return c.app.fail(kerr)
		}
		cat, err = c.app.Categories.CreateRoot(ctx, f.Arg(0), kind)
	}
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Added %s category %d %s\n", cat.Kind, cat.ID, cat.Name)
	return subcommands.ExitSuccess
}

type categoryRenameCmd struct{ app *App }

func (*categoryRenameCmd) Name() string           { return "category-rename" }
func (*categoryRenameCmd) Synopsis() string       { return "rename a category" }
func (*categoryRenameCmd) Usage() string          { return "category-rename <id> <new-name>\n" }
func (*categoryRenameCmd) SetFlags(*flag.FlagSet) {}

func (c *categoryRenameCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, name, status, ok := idAndName(c.app, f, "category-rename")
	if !ok {
		return status
	}
	if err := c.app.Categories.Rename(ctx, id, name); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Renamed category %d\n", id)
	return subcommands.ExitSuccess
}

type categoryRmCmd struct{ app *App }

func (*categoryRmCmd) Name() string     { return "category-rm" }
func (*categoryRmCmd) Synopsis() string { return "delete an unused category" }
func (*categoryRmCmd) Usage() string {
	return `category-rm <id>

  Refuses to delete a category that has children or records.
`
}
func (*categoryRmCmd) SetFlags(*flag.FlagSet) {}

func (c *categoryRmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, status, ok := singleID(c.app, f, "category-rm")
	if !ok {
		return status
	}
	if err := c.app.Categories.Delete(ctx, id); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Deleted category %d\n", id)
	return subcommands.ExitSuccess
}

type categoriesCmd struct {
	app  *App
	kind string
}

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "show the category tree" }
func (*categoriesCmd) Usage() string    { return "categories [-kind income|expense]\n" }

func (c *categoriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "", "only show categories of this kind")
}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kind, err := parseOptionalKind(c.kind)
	if err != nil {
		return c.app.fail(err)
	}
	tree, err := c.app.Categories.Tree(ctx, kind)
	if err != nil {
		return c.app.fail(err)
	}
	for _, root := range tree {
		fmt.Fprintf(c.app.Out, "%d %s (%s)\n", root.ID, root.Name, root.Kind)
		for _, child := range root.Children {
			fmt.Fprintf(c.app.Out, "  %d %s\n", child.ID, child.Name)
		}
	}
	return subcommands.ExitSuccess
}

func singleID(app *App, f *flag.FlagSet, cmd string) (int64, subcommands.ExitStatus, bool) {
	if f.NArg() != 1 {
		return 0, app.usage("%s takes exactly one id", cmd), false
	}
	id, err := parseID(f.Arg(0))
	if err != nil {
		return 0, app.fail(err), false
	}
	return id, subcommands.ExitSuccess, true
}

func idAndName(app *App, f *flag.FlagSet, cmd string) (int64, string, subcommands.ExitStatus, bool) {
	if f.NArg() < 2 {
		return 0, "", app.usage("%s takes an id and a name", cmd), false
	}
	id, err := parseID(f.Arg(0))
	if err != nil {
		return 0, "", app.fail(err), false
	}
	return id, strings.Join(f.Args()[1:], " "), subcommands.ExitSuccess, true
}
