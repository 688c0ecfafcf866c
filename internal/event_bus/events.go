package event_bus

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BudgetVersionPublished EventType = "budget.version.published"
	BudgetReopened         EventType = "budget.reopened"
	RubroRenamed           EventType = "rubro.renamed"
	ReceiptReconciled      EventType = "receipt.reconciled"
)

type BudgetVersionPublishedData struct {
	TenantId      int
	BudgetId      int
	ProjectId     int
	VersionNumber int
	Total         decimal.Decimal
	PublishedAt   time.Time
}

type BudgetReopenedData struct {
	TenantId       int
	BudgetId       int
	CurrentVersion int
}

// RubroRenamedData is sent after a category was renamed in the directory. Draft snapshots
// refresh their denormalized copy of the name; published versions never do.
type RubroRenamedData struct {
	TenantId   int
	BudgetId   int
	CategoryId int
	Name       string
}

type ReceiptReconciledData struct {
	TenantId      int
	ProjectId     int
	ReceiptId     int
	SupplierId    *int
	LedgerEntryId *int
	Total         decimal.Decimal
}
