package stats

import (
	"github.com/shopspring/decimal"
)

// CategoryStats compares the budgeted amount of a category against its confirmed spend.
type CategoryStats struct {
	// CategoryId is nil for the bucket of entries without category.
	CategoryId   *int
	Name         string
	IsAdditional bool
	Budgeted     decimal.Decimal
	Actual       decimal.Decimal
	Difference   decimal.Decimal
	Percentage   int64
	// Unbudgeted marks spend with no section in the published version.
	Unbudgeted bool
}

type Totals struct {
	Budgeted           decimal.Decimal
	BaseBudgeted       decimal.Decimal
	AdditionalBudgeted decimal.Decimal
	Actual             decimal.Decimal
	Difference         decimal.Decimal
	Percentage         int64
	Income             decimal.Decimal
}

type Report struct {
	BudgetId      int
	ProjectId     int
	VersionNumber int
	Categories    []CategoryStats
	Totals        Totals
}

const uncategorizedName = "Uncategorized"

var hundred = decimal.NewFromInt(100)

// percentage is round(100 × actual / budgeted), or 0 without budget.
func percentage(actual, budgeted decimal.Decimal) int64 {
	if !budgeted.IsPositive() {
		return 0
	}
	return actual.Mul(hundred).Div(budgeted).Round(0).IntPart()
}
