package app

import (
	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/config"
	"github.com/obrafin/obrafin/internal/metrics"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Budget
	r.HandleFunc("/api/project/{projectId}/budget", deps.BudgetHandler.CreateBudget).Methods("POST")
	r.HandleFunc("/api/project/{projectId}/budget", deps.BudgetHandler.GetProjectBudget).Methods("GET")
	r.HandleFunc("/api/budget/{budgetId}", deps.BudgetHandler.GetBudget).Methods("GET")
	r.HandleFunc("/api/budget/{budgetId}/draft", deps.BudgetHandler.GetDraft).Methods("GET")
	r.HandleFunc("/api/budget/{budgetId}/draft", deps.BudgetHandler.SaveDraft).Methods("PUT")
	r.HandleFunc("/api/budget/{budgetId}/draft/resync-names", deps.BudgetHandler.ResyncNames).Methods("POST")
	r.HandleFunc("/api/budget/{budgetId}/publish", deps.BudgetHandler.Publish).Methods("POST")
	r.HandleFunc("/api/budget/{budgetId}/reopen", deps.BudgetHandler.Reopen).Methods("POST")
	r.HandleFunc("/api/budget/{budgetId}/version", deps.BudgetHandler.ListVersions).Methods("GET")
	r.HandleFunc("/api/budget/{budgetId}/version/{number}", deps.BudgetHandler.GetVersion).Methods("GET")

	// Categories
	r.HandleFunc("/api/budget/{budgetId}/category", deps.RubroHandler.List).Methods("GET")
	r.HandleFunc("/api/budget/{budgetId}/category", deps.RubroHandler.Create).Methods("POST")
	r.HandleFunc("/api/budget/{budgetId}/category/{categoryId}", deps.RubroHandler.Rename).Methods("PUT")
	r.HandleFunc("/api/budget/{budgetId}/category/{categoryId}/position", deps.RubroHandler.SetPosition).Methods("PUT")
	r.HandleFunc("/api/budget/{budgetId}/category/{categoryId}", deps.RubroHandler.Delete).Methods("DELETE")

	// Budget vs actual
	r.HandleFunc("/api/budget/{budgetId}/vs-actual", deps.StatsHandler.GetBudgetVsActual).Methods("GET")
	r.HandleFunc("/api/project/{projectId}/vs-actual", deps.StatsHandler.GetProjectVsActual).Methods("GET")

	// Receipts
	r.HandleFunc("/api/project/{projectId}/receipt", deps.ReceiptHandler.Submit).Methods("POST")
	r.HandleFunc("/api/project/{projectId}/receipt", deps.ReceiptHandler.ListByProject).Methods("GET")
	r.HandleFunc("/api/receipt/{receiptId}", deps.ReceiptHandler.Get).Methods("GET")

	// Ledger
	r.HandleFunc("/api/project/{projectId}/ledger", deps.LedgerHandler.ListByProject).Methods("GET")
	r.HandleFunc("/api/ledger/{entryId}/confirm", deps.LedgerHandler.Confirm).Methods("PUT")

	// User
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler()).Methods("GET")
	}
}
