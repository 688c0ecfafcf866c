package stats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvStatsRendererImpl_RenderReport(t *testing.T) {
	masonry := 4
	tests := []struct {
		name   string
		report Report
		want   string
	}{
		{
			name: "RenderReport with categories and the uncategorized bucket",
			report: Report{
				BudgetId:      1,
				VersionNumber: 2,
				Categories: []CategoryStats{
					{
						CategoryId: &masonry,
						Name:       "Masonry, walls",
						Budgeted:   decimal.RequireFromString("2500"),
						Actual:     decimal.RequireFromString("1800.5"),
						Difference: decimal.RequireFromString("699.5"),
						Percentage: 72,
					},
					{
						Name:       uncategorizedName,
						Actual:     decimal.RequireFromString("100"),
						Difference: decimal.RequireFromString("-100"),
						Unbudgeted: true,
					},
				},
				Totals: Totals{
					Budgeted:     decimal.RequireFromString("2500"),
					BaseBudgeted: decimal.RequireFromString("2500"),
					Actual:       decimal.RequireFromString("1900.5"),
					Difference:   decimal.RequireFromString("599.5"),
					Percentage:   76,
					Income:       decimal.RequireFromString("300"),
				},
			},
			want: "Category,Additional,Budgeted,Actual,Difference,Percentage,Unbudgeted\n" +
				"\"Masonry, walls\",no,2500.00,1800.50,699.50,72%,no\n" +
				"Uncategorized,no,0.00,100.00,-100.00,0%,yes\n" +
				"SUM,,2500.00,1900.50,599.50,76%,\n" +
				"Base budgeted,,2500.00,,,,\n" +
				"Additional budgeted,,0.00,,,,\n" +
				"Income,,,300.00,,,\n",
		},
		{
			name:   "RenderReport without categories",
			report: Report{},
			want: "Category,Additional,Budgeted,Actual,Difference,Percentage,Unbudgeted\n" +
				"SUM,,0.00,0.00,0.00,0%,\n" +
				"Base budgeted,,0.00,,,,\n" +
				"Additional budgeted,,0.00,,,,\n" +
				"Income,,,0.00,,,\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := NewCsvStatsRenderer()

			got, err := renderer.RenderReport(tt.report)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
