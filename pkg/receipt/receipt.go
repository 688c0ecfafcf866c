package receipt

import (
	"time"

	"github.com/obrafin/obrafin/pkg/ledger"
	"github.com/obrafin/obrafin/pkg/supplier"
	"github.com/shopspring/decimal"
)

type Receipt struct {
	Id         int
	TenantId   int
	ProjectId  int
	CategoryId *int
	SupplierId *int
	Type       string
	Number     string
	IssuedOn   *time.Time
	Currency   string
	Total      decimal.Decimal
	Tax        decimal.Decimal
	// Confidence is the extraction score in [0, 1] reported by the upstream reader.
	Confidence decimal.Decimal
	FileRef    string
	Notes      string
	Created    time.Time
	Items      []Item
}

type Item struct {
	Id          int
	ReceiptId   int
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Classification tells whether a receipt is a financial fact. Unclassified receipts are
// archived without a ledger entry.
type Classification string

const (
	Unclassified Classification = ""
	Expense      Classification = "expense"
	Income       Classification = "income"
)

// ItemInput is a receipt line as submitted. A nil Subtotal is derived from quantity and price.
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    *decimal.Decimal
}

// Submission is a shaped receipt ready to be reconciled.
type Submission struct {
	ProjectId      int
	Classification Classification
	CategoryId     *int
	// LedgerStatus of the generated entry, confirmed when empty.
	LedgerStatus ledger.Status
	Supplier     *supplier.Input
	Type         string
	Number       string
	IssuedOn     *time.Time
	Currency     string
	Total        decimal.Decimal
	Tax          decimal.Decimal
	Confidence   decimal.Decimal
	FileRef      string
	Notes        string
	Items        []ItemInput
}

// Result lists the rows a reconciliation created.
type Result struct {
	Receipt       Receipt
	SupplierId    *int
	LedgerEntryId *int
}

const (
	RuleNonPositiveTotal       = "receipt.total.non_positive"
	RuleMissingCategory        = "receipt.category.missing"
	RuleNegativeItemQuantity   = "receipt.item.quantity.negative"
	RuleUnknownClassification  = "receipt.classification.unknown"
	RuleCategoryOutsideProject = "receipt.category.outside_project"
)

const defaultCurrency = "ARS"
