package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Entry is a financial movement of a project. Only confirmed expenses count as actual spend.
type Entry struct {
	Id          int
	TenantId    int
	ProjectId   int
	CategoryId  *int
	ReceiptId   *int
	SupplierId  *int
	Kind        Kind
	Status      Status
	Amount      decimal.Decimal
	OccurredOn  time.Time
	Description string
	Created     time.Time
}

// CategoryTotal is the confirmed expense of one category. A nil CategoryId groups the
// entries without category.
type CategoryTotal struct {
	CategoryId *int
	Total      decimal.Decimal
}

const (
	RuleNonPositiveAmount = "ledger.amount.non_positive"
	RuleUnknownKind       = "ledger.kind.unknown"
)
