package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"homeledger/internal/config"
	"homeledger/internal/core"
	"homeledger/internal/services"
)

const defaultPageSize = 8

// App bundles the services the subcommands work with.
type App struct {
	Out      io.Writer
	Err      io.Writer
	Currency string
	PageSize int

	Records    *services.RecordService
	Categories *services.CategoryService
	Accounts   *services.AccountService
	Members    *services.MemberService
	Reports    *services.ReportService
	Reconciler *services.Reconciler
}

// NewApp wires the services over store. publisher may be nil.
func NewApp(cfg *config.Config, store services.Store, publisher services.EventPublisher, out, errOut io.Writer) (*App, error) {
	policy, err := services.ParsePolicy(cfg.BalancePolicy)
	if err != nil {
		return nil, err
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &App{
		Out:        out,
		Err:        errOut,
		Currency:   cfg.Currency,
		PageSize:   pageSize,
		Records:    services.NewRecordService(store, policy, publisher),
		Categories: services.NewCategoryService(store),
		Accounts:   services.NewAccountService(store),
		Members:    services.NewMemberService(store),
		Reports:    services.NewReportService(store),
		Reconciler: services.NewReconciler(store),
	}, nil
}

// Register adds every ledger subcommand to c.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&memberAddCmd{app: app}, "members")
	c.Register(&memberRenameCmd{app: app}, "members")
	c.Register(&memberRmCmd{app: app}, "members")
	c.Register(&membersCmd{app: app}, "members")

	c.Register(&accountAddCmd{app: app}, "accounts")
	c.Register(&accountRenameCmd{app: app}, "accounts")
	c.Register(&accountRmCmd{app: app}, "accounts")
	c.Register(&accountsCmd{app: app}, "accounts")

	c.Register(&categoryAddCmd{app: app}, "categories")
	c.Register(&categoryRenameCmd{app: app}, "categories")
	c.Register(&categoryRmCmd{app: app}, "categories")
	c.Register(&categoriesCmd{app: app}, "categories")

	c.Register(&addCmd{app: app}, "records")
	c.Register(&editCmd{app: app}, "records")
	c.Register(&rmCmd{app: app}, "records")
	c.Register(&listCmd{app: app}, "records")

	c.Register(&reportCmd{app: app}, "reports")
	c.Register(&reconcileCmd{app: app}, "maintenance")
}

func (a *App) money(m core.Money) string {
	return m.Format(a.Currency)
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
}

// fail prints err for the user and picks the exit status.
func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, "Error: %s\n", describeError(err))
	if errors.Is(err, core.ErrValidation) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

func (a *App) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// describeError turns a ledger error into a one-line message.
func describeError(err error) string {
	var hint string
	switch {
	case errors.Is(err, core.ErrNotFound):
		hint = "not found"
	case errors.Is(err, core.ErrDuplicateName):
		hint = "name already in use"
	case errors.Is(err, core.ErrReferentialConflict):
		hint = "still in use"
	case errors.Is(err, core.ErrInvalidParent):
		hint = "invalid parent"
	case errors.Is(err, core.ErrValidation):
		hint = "invalid input"
	case errors.Is(err, core.ErrPersistence):
		stage, _ := core.FailedStage(err)
		hint = fmt.Sprintf("%s could not be saved, nothing was changed", stage)
	default:
		return err.Error()
	}
	return hint + ": " + err.Error()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", core.ErrValidation, s)
	}
	return id, nil
}

// parseOptionalDate parses a YYYY-MM-DD date, or returns the zero date for "".
func parseOptionalDate(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

// parseOptionalKind parses a kind, or returns "" for "".
func parseOptionalKind(s string) (core.Kind, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return core.ParseKind(s)
}
