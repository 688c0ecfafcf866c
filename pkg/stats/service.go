package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/obrafin/obrafin/pkg/budget"
	"github.com/obrafin/obrafin/pkg/ledger"
	"github.com/obrafin/obrafin/pkg/snapshot"
	"github.com/obrafin/obrafin/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type BudgetReader interface {
	GetBudget(ctx context.Context, budgetId int) (budget.Budget, error)
	GetBudgetByProject(ctx context.Context, projectId int) (budget.Budget, error)
}

type VersionReader interface {
	LatestVersion(ctx context.Context, budgetId int) (budget.Version, error)
}

type LedgerReader interface {
	ConfirmedExpenseTotalsByCategory(ctx context.Context, projectId int) ([]ledger.CategoryTotal, error)
	ConfirmedIncomeTotal(ctx context.Context, projectId int) (decimal.Decimal, error)
}

type StatsService interface {
	GetBudgetVsActual(ctx context.Context, budgetId int) (Report, error)
	GetProjectVsActual(ctx context.Context, projectId int) (Report, error)
}

type StatsServiceImpl struct {
	budgets  BudgetReader
	versions VersionReader
	ledger   LedgerReader
	names    budget.CategoryNames
}

func NewStatsServiceImpl(budgets BudgetReader, versions VersionReader, ledger LedgerReader, names budget.CategoryNames) *StatsServiceImpl {
	return &StatsServiceImpl{
		budgets:  budgets,
		versions: versions,
		ledger:   ledger,
		names:    names,
	}
}

func (s *StatsServiceImpl) GetBudgetVsActual(ctx context.Context, budgetId int) (Report, error) {
	b, err := s.budgets.GetBudget(ctx, budgetId)
	if err != nil {
		return Report{}, err
	}
	return s.report(ctx, b)
}

func (s *StatsServiceImpl) GetProjectVsActual(ctx context.Context, projectId int) (Report, error) {
	b, err := s.budgets.GetBudgetByProject(ctx, projectId)
	if err != nil {
		return Report{}, err
	}
	return s.report(ctx, b)
}

func (s *StatsServiceImpl) report(ctx context.Context, b budget.Budget) (Report, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get current user: %w", err)
	}

	var (
		version  budget.Version
		expenses []ledger.CategoryTotal
		income   decimal.Decimal
		names    map[int]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.versions.LatestVersion(gctx, b.Id)
		version = v
		return err
	})
	g.Go(func() error {
		totals, err := s.ledger.ConfirmedExpenseTotalsByCategory(gctx, b.ProjectId)
		expenses = totals
		return err
	})
	g.Go(func() error {
		total, err := s.ledger.ConfirmedIncomeTotal(gctx, b.ProjectId)
		income = total
		return err
	})
	g.Go(func() error {
		n, err := s.names.NamesByBudget(gctx, tenantId, b.Id)
		names = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	log.Tracef("Budget %d version %d, expense totals: %v", b.Id, version.Number, expenses)

	report := Report{
		BudgetId:      b.Id,
		ProjectId:     b.ProjectId,
		VersionNumber: version.Number,
		Categories:    compare(version.Snapshot, expenses, names),
	}
	report.Totals = rollup(report.Categories, income)
	return report, nil
}

// compare lists the sections in budget order followed by the unbudgeted categories and the
// uncategorized bucket.
func compare(s snapshot.Snapshot, expenses []ledger.CategoryTotal, names map[int]string) []CategoryStats {
	actualByCategory := make(map[int]decimal.Decimal, len(expenses))
	uncategorized := decimal.Zero
	hasUncategorized := false
	for _, e := range expenses {
		if e.CategoryId == nil {
			uncategorized = uncategorized.Add(e.Total)
			hasUncategorized = true
			continue
		}
		actualByCategory[*e.CategoryId] = actualByCategory[*e.CategoryId].Add(e.Total)
	}

	categories := make([]CategoryStats, 0, len(s.Sections)+len(expenses))
	budgeted := make(map[int]bool, len(s.Sections))
	for _, section := range s.Sections {
		categoryId := section.CategoryId
		budgeted[categoryId] = true
		categories = append(categories, newCategoryStats(&categoryId, section.CategoryName, section.IsAdditional,
			section.EffectiveSubtotal(), actualByCategory[categoryId], false))
	}

	var unbudgetedIds []int
	for id := range actualByCategory {
		if !budgeted[id] {
			unbudgetedIds = append(unbudgetedIds, id)
		}
	}
	sort.Ints(unbudgetedIds)
	for _, id := range unbudgetedIds {
		categoryId := id
		name, ok := names[id]
		if !ok {
			name = fmt.Sprintf("Category %d", id)
		}
		categories = append(categories, newCategoryStats(&categoryId, name, false, decimal.Zero, actualByCategory[id], true))
	}

	if hasUncategorized {
		categories = append(categories, newCategoryStats(nil, uncategorizedName, false, decimal.Zero, uncategorized, true))
	}
	return categories
}

func newCategoryStats(categoryId *int, name string, isAdditional bool, budgeted, actual decimal.Decimal, unbudgeted bool) CategoryStats {
	return CategoryStats{
		CategoryId:   categoryId,
		Name:         name,
		IsAdditional: isAdditional,
		Budgeted:     budgeted,
		Actual:       actual,
		Difference:   budgeted.Sub(actual),
		Percentage:   percentage(actual, budgeted),
		Unbudgeted:   unbudgeted,
	}
}

func rollup(categories []CategoryStats, income decimal.Decimal) Totals {
	totals := Totals{
		Budgeted:           decimal.Zero,
		BaseBudgeted:       decimal.Zero,
		AdditionalBudgeted: decimal.Zero,
		Actual:             decimal.Zero,
		Income:             income,
	}
	for _, c := range categories {
		totals.Budgeted = totals.Budgeted.Add(c.Budgeted)
		if c.IsAdditional {
			totals.AdditionalBudgeted = totals.AdditionalBudgeted.Add(c.Budgeted)
		} else {
			totals.BaseBudgeted = totals.BaseBudgeted.Add(c.Budgeted)
		}
		totals.Actual = totals.Actual.Add(c.Actual)
	}
	totals.Difference = totals.Budgeted.Sub(totals.Actual)
	totals.Percentage = percentage(totals.Actual, totals.Budgeted)
	return totals
}
