package stats

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type StatsRenderer interface {
	RenderReport(report Report) (string, error)
}

type CsvStatsRendererImpl struct {
}

func NewCsvStatsRenderer() *CsvStatsRendererImpl {
	return &CsvStatsRendererImpl{}
}

var csvHeader = []string{"Category", "Additional", "Budgeted", "Actual", "Difference", "Percentage", "Unbudgeted"}

func (t *CsvStatsRendererImpl) RenderReport(report Report) (string, error) {
	data := make([][]string, 0, len(report.Categories)+5)
	data = append(data, csvHeader)
	for _, c := range report.Categories {
		data = append(data, []string{
			c.Name,
			yesNo(c.IsAdditional),
			amount(c.Budgeted),
			amount(c.Actual),
			amount(c.Difference),
			strconv.FormatInt(c.Percentage, 10) + "%",
			yesNo(c.Unbudgeted),
		})
	}
	totals := report.Totals
	data = append(data,
		[]string{"SUM", "", amount(totals.Budgeted), amount(totals.Actual), amount(totals.Difference),
			strconv.FormatInt(totals.Percentage, 10) + "%", ""},
		[]string{"Base budgeted", "", amount(totals.BaseBudgeted), "", "", "", ""},
		[]string{"Additional budgeted", "", amount(totals.AdditionalBudgeted), "", "", "", ""},
		[]string{"Income", "", "", amount(totals.Income), "", "", ""},
	)

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		err := writer.Write(row)
		if err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}

	return b.String(), nil
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
