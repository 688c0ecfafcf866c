package stats

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/shopspring/decimal"
)

type CategoryStatsDTO struct {
	CategoryId   *int            `json:"categoryId"`
	Name         string          `json:"name"`
	IsAdditional bool            `json:"isAdditional"`
	Budgeted     decimal.Decimal `json:"budgeted"`
	Actual       decimal.Decimal `json:"actual"`
	Difference   decimal.Decimal `json:"difference"`
	Percentage   int64           `json:"percentage"`
	Unbudgeted   bool            `json:"unbudgeted"`
}

type TotalsDTO struct {
	Budgeted           decimal.Decimal `json:"budgeted"`
	BaseBudgeted       decimal.Decimal `json:"baseBudgeted"`
	AdditionalBudgeted decimal.Decimal `json:"additionalBudgeted"`
	Actual             decimal.Decimal `json:"actual"`
	Difference         decimal.Decimal `json:"difference"`
	Percentage         int64           `json:"percentage"`
	Income             decimal.Decimal `json:"income"`
}

type ReportDTO struct {
	BudgetId      int                `json:"budgetId"`
	ProjectId     int                `json:"projectId"`
	VersionNumber int                `json:"versionNumber"`
	Categories    []CategoryStatsDTO `json:"categories"`
	Totals        TotalsDTO          `json:"totals"`
}

type StatsHandler struct {
	statsService     StatsService
	csvStatsRenderer StatsRenderer
}

func NewStatsHandler(statsService StatsService, csvStatsRenderer StatsRenderer) *StatsHandler {
	return &StatsHandler{statsService, csvStatsRenderer}
}

// GetBudgetVsActual godoc
// @Summary Compare the latest published version of a budget with confirmed spend
// @Tags Stats
// @Produce json
// @Produce text/csv
// @Param budgetId path int true "Budget ID"
// @Param format query string false "csv for a CSV export"
// @Success 200 {object} ReportDTO
// @Failure 404 {string} string "Budget not found or never published"
// @Router /api/budget/{budgetId}/vs-actual [get]
// @Security XUserId
func (handler *StatsHandler) GetBudgetVsActual(w http.ResponseWriter, r *http.Request) {
	budgetId, err := strconv.Atoi(mux.Vars(r)["budgetId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := handler.statsService.GetBudgetVsActual(r.Context(), budgetId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	handler.write(w, r, report)
}

func (handler *StatsHandler) GetProjectVsActual(w http.ResponseWriter, r *http.Request) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := handler.statsService.GetProjectVsActual(r.Context(), projectId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	handler.write(w, r, report)
}

func (handler *StatsHandler) write(w http.ResponseWriter, r *http.Request, report Report) {
	if r.URL.Query().Get("format") == "csv" || r.Header.Get("Accept") == "text/csv" {
		csv, err := handler.csvStatsRenderer.RenderReport(report)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(csv)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(convertToJsonResponse(report)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func convertToJsonResponse(report Report) ReportDTO {
	categories := make([]CategoryStatsDTO, 0, len(report.Categories))
	for _, c := range report.Categories {
		categories = append(categories, CategoryStatsDTO{
			CategoryId:   c.CategoryId,
			Name:         c.Name,
			IsAdditional: c.IsAdditional,
			Budgeted:     c.Budgeted,
			Actual:       c.Actual,
			Difference:   c.Difference,
			Percentage:   c.Percentage,
			Unbudgeted:   c.Unbudgeted,
		})
	}
	t := report.Totals
	return ReportDTO{
		BudgetId:      report.BudgetId,
		ProjectId:     report.ProjectId,
		VersionNumber: report.VersionNumber,
		Categories:    categories,
		Totals: TotalsDTO{
			Budgeted:           t.Budgeted,
			BaseBudgeted:       t.BaseBudgeted,
			AdditionalBudgeted: t.AdditionalBudgeted,
			Actual:             t.Actual,
			Difference:         t.Difference,
			Percentage:         t.Percentage,
			Income:             t.Income,
		},
	}
}
