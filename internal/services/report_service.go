package services

import (
	"context"
	"fmt"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

// ReportService serves the summaries the CLI prints. Balances come from the
// stored column, never recomputed here.
type ReportService struct {
	store Store
}

func NewReportService(store Store) *ReportService {
	return &ReportService{store: store}
}

func (s *ReportService) Periods(ctx context.Context, g storage.Granularity) ([]core.PeriodTotal, error) {
	totals, err := s.store.Queries().PeriodTotals(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("%s report: %w", g, err)
	}
	return totals, nil
}

// Categories sums one kind per category path between from and to (zero = open).
func (s *ReportService) Categories(ctx context.Context, kind core.Kind, from, to core.Date) ([]core.CategoryTotal, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from.Time) {
		return nil, fmt.Errorf("%w: range ends before it starts", core.ErrValidation)
	}
	totals, err := s.store.Queries().CategoryTotals(ctx, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("category report: %w", err)
	}
	return totals, nil
}

// NetWorth is the sum of all stored account balances.
func (s *ReportService) NetWorth(ctx context.Context) (core.Money, error) {
	accounts, err := s.store.Queries().ListAccounts(ctx)
	if err != nil {
		return core.Money{}, fmt.Errorf("list accounts: %w", err)
	}
	var total core.Money
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total, nil
}
