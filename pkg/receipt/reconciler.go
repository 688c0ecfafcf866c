package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/internal/metrics"
	"github.com/obrafin/obrafin/internal/saga"
	"github.com/obrafin/obrafin/internal/utils"
	"github.com/obrafin/obrafin/pkg/ledger"
	"github.com/obrafin/obrafin/pkg/plan"
	"github.com/obrafin/obrafin/pkg/supplier"
	"github.com/obrafin/obrafin/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	stepSupplier = "supplier"
	stepReceipt  = "receipt"
	stepItems    = "items"
	stepLedger   = "ledger"
)

// LedgerWriter records the entry generated by a classified receipt.
type LedgerWriter interface {
	Record(ctx context.Context, entry ledger.Entry) (ledger.Entry, error)
}

type Authorizer interface {
	CanEdit(ctx context.Context) error
}

type Reconciler interface {
	// Submit turns a receipt submission into supplier, receipt, item and ledger rows. It is
	// not idempotent: submitting the same payload twice creates two receipts.
	Submit(ctx context.Context, sub Submission) (Result, error)
	Get(ctx context.Context, receiptId int) (Receipt, error)
	ListByProject(ctx context.Context, projectId int) ([]Receipt, error)
}

type ReconcilerImpl struct {
	repo       Repository
	suppliers  supplier.Resolver
	ledger     LedgerWriter
	gate       plan.Gate
	authorizer Authorizer
	eventBus   *event_bus.EventBus
	clock      utils.Clock
}

func NewReconciler(
	repo Repository,
	suppliers supplier.Resolver,
	ledgerWriter LedgerWriter,
	gate plan.Gate,
	authorizer Authorizer,
	eventBus *event_bus.EventBus,
	clock utils.Clock,
) *ReconcilerImpl {
	return &ReconcilerImpl{
		repo:       repo,
		suppliers:  suppliers,
		ledger:     ledgerWriter,
		gate:       gate,
		authorizer: authorizer,
		eventBus:   eventBus,
		clock:      clock,
	}
}

func (r *ReconcilerImpl) Get(ctx context.Context, receiptId int) (Receipt, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return r.repo.Get(ctx, tenantId, receiptId)
}

func (r *ReconcilerImpl) ListByProject(ctx context.Context, projectId int) ([]Receipt, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	exists, err := r.repo.ProjectExists(ctx, tenantId, projectId)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProjectNotFound
	}
	return r.repo.ListByProject(ctx, tenantId, projectId)
}

func checkShape(sub Submission) error {
	shapeErr := &apperr.ShapeError{}
	switch sub.Classification {
	case Unclassified, Expense, Income:
	default:
		shapeErr.Add(RuleUnknownClassification, "classification", fmt.Sprintf("unknown classification %q", sub.Classification))
	}
	if !sub.Total.IsPositive() {
		shapeErr.Add(RuleNonPositiveTotal, "total", "receipt total must be positive")
	}
	if sub.Classification == Expense && sub.CategoryId == nil {
		shapeErr.Add(RuleMissingCategory, "categoryId", "an expense receipt needs a category")
	}
	for i, item := range sub.Items {
		if item.Quantity.IsNegative() {
			shapeErr.Add(RuleNegativeItemQuantity, fmt.Sprintf("items[%d].quantity", i), "quantity must not be negative")
		}
	}
	return shapeErr.OrNil()
}

// precheck runs every read-only check so that a rejected submission writes nothing. It
// returns whether a ledger entry is due.
func (r *ReconcilerImpl) precheck(ctx context.Context, tenantId int, sub Submission) (bool, error) {
	if err := checkShape(sub); err != nil {
		return false, err
	}
	exists, err := r.repo.ProjectExists(ctx, tenantId, sub.ProjectId)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrProjectNotFound
	}
	if sub.CategoryId != nil {
		inProject, err := r.repo.CategoryInProject(ctx, tenantId, sub.ProjectId, *sub.CategoryId)
		if err != nil {
			return false, err
		}
		if !inProject {
			shapeErr := &apperr.ShapeError{}
			shapeErr.Add(RuleCategoryOutsideProject, "categoryId",
				fmt.Sprintf("category %d does not belong to project %d", *sub.CategoryId, sub.ProjectId))
			return false, shapeErr
		}
	}
	if err := r.gate.CheckReceiptQuota(ctx, tenantId); err != nil {
		return false, err
	}
	if sub.Classification == Unclassified {
		return false, nil
	}
	allowed, err := r.gate.LedgerAllowed(ctx, tenantId)
	if err != nil {
		return false, err
	}
	if !allowed {
		log.Infof("ledger features disabled for tenant %d, receipt is stored without ledger entry", tenantId)
	}
	return allowed, nil
}

func buildItems(inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		subtotal := in.Quantity.Mul(in.UnitPrice).Round(2)
		if in.Subtotal != nil {
			subtotal = *in.Subtotal
		}
		items = append(items, Item{
			Position:    i + 1,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Subtotal:    subtotal,
		})
	}
	return items
}

func (r *ReconcilerImpl) Submit(ctx context.Context, sub Submission) (Result, error) {
	if err := r.authorizer.CanEdit(ctx); err != nil {
		return Result{}, err
	}
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get current user: %w", err)
	}
	withLedger, err := r.precheck(ctx, tenantId, sub)
	if err != nil {
		metrics.ReceiptsReconciled.WithLabelValues("rejected").Inc()
		return Result{}, err
	}

	var (
		resolution supplier.Resolution
		result     Result
	)
	currency := sub.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	steps := []saga.Step{
		{
			Name: stepSupplier,
			Action: func(ctx context.Context) error {
				if sub.Supplier == nil {
					return nil
				}
				res, err := r.suppliers.Resolve(ctx, tenantId, *sub.Supplier)
				if err != nil {
					// enrichment is optional, the receipt is stored without supplier
					log.Warnf("supplier resolution failed for project %d, continuing without supplier: %v", sub.ProjectId, err)
					return nil
				}
				resolution = res
				result.SupplierId = &res.Id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return r.suppliers.DeleteOrphan(ctx, tenantId, resolution)
			},
			LeavesBehind: func() string { return fmt.Sprintf("supplier %d", resolution.Id) },
		},
		{
			Name: stepReceipt,
			Action: func(ctx context.Context) error {
				created, err := r.repo.Insert(ctx, Receipt{
					TenantId:   tenantId,
					ProjectId:  sub.ProjectId,
					CategoryId: sub.CategoryId,
					SupplierId: result.SupplierId,
					Type:       strings.TrimSpace(sub.Type),
					Number:     strings.TrimSpace(sub.Number),
					IssuedOn:   sub.IssuedOn,
					Currency:   currency,
					Total:      sub.Total,
					Tax:        sub.Tax,
					Confidence: sub.Confidence,
					FileRef:    sub.FileRef,
					Notes:      sub.Notes,
				})
				if err != nil {
					return err
				}
				result.Receipt = created
				return nil
			},
			Compensate: func(ctx context.Context) error {
				deleted, err := r.repo.Delete(ctx, tenantId, result.Receipt.Id)
				if err != nil {
					return err
				}
				if !deleted {
					log.Warnf("receipt %d was already gone during compensation", result.Receipt.Id)
				}
				return nil
			},
			LeavesBehind: func() string { return fmt.Sprintf("receipt %d with its items", result.Receipt.Id) },
		},
		{
			Name: stepItems,
			Action: func(ctx context.Context) error {
				items, err := r.repo.InsertItems(ctx, result.Receipt.Id, buildItems(sub.Items))
				if err != nil {
					return err
				}
				result.Receipt.Items = items
				if len(items) > 0 && !ItemsTotal(items).Equal(sub.Total) {
					log.Debugf("receipt %d items add up to %s, stated total is %s",
						result.Receipt.Id, ItemsTotal(items), sub.Total)
				}
				return nil
			},
		},
	}
	if withLedger {
		steps = append(steps, saga.Step{
			Name: stepLedger,
			Action: func(ctx context.Context) error {
				entry, err := r.ledger.Record(ctx, r.ledgerEntry(sub, result))
				if err != nil {
					return err
				}
				result.LedgerEntryId = &entry.Id
				return nil
			},
		})
	}

	if err := saga.New("receipt", steps...).Run(ctx); err != nil {
		r.recordFailure(err)
		return Result{}, err
	}
	metrics.ReceiptsReconciled.WithLabelValues("ok").Inc()
	log.Infof("Receipt %d reconciled for project %d", result.Receipt.Id, sub.ProjectId)

	err = r.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.ReceiptReconciled, event_bus.ReceiptReconciledData{
		TenantId:      tenantId,
		ProjectId:     sub.ProjectId,
		ReceiptId:     result.Receipt.Id,
		SupplierId:    result.SupplierId,
		LedgerEntryId: result.LedgerEntryId,
		Total:         sub.Total,
	}))
	if err != nil {
		log.Errorf("failed to publish receipt reconciled event: %v", err)
	}
	return result, nil
}

func (r *ReconcilerImpl) ledgerEntry(sub Submission, result Result) ledger.Entry {
	kind := ledger.KindExpense
	if sub.Classification == Income {
		kind = ledger.KindIncome
	}
	occurredOn := r.clock.Now()
	if sub.IssuedOn != nil {
		occurredOn = *sub.IssuedOn
	}
	description := fmt.Sprintf("%s %s", sub.Type, sub.Number)
	if sub.Supplier != nil {
		description = fmt.Sprintf("%s %s", description, sub.Supplier.Name)
	}
	return ledger.Entry{
		ProjectId:   sub.ProjectId,
		CategoryId:  sub.CategoryId,
		ReceiptId:   &result.Receipt.Id,
		SupplierId:  result.SupplierId,
		Kind:        kind,
		Status:      sub.LedgerStatus,
		Amount:      sub.Total,
		OccurredOn:  utils.DateOf(occurredOn),
		Description: strings.TrimSpace(description),
	}
}

func (r *ReconcilerImpl) recordFailure(err error) {
	var partialErr *apperr.PartialFailureError
	if !errors.As(err, &partialErr) {
		metrics.ReceiptsReconciled.WithLabelValues("failed").Inc()
		return
	}
	for _, c := range partialErr.Compensations {
		outcome := "ok"
		if c.Err != nil {
			outcome = "failed"
		}
		metrics.Compensations.WithLabelValues(c.Step, outcome).Inc()
	}
	if partialErr.RolledBack() {
		metrics.ReceiptsReconciled.WithLabelValues("rolled_back").Inc()
	} else {
		metrics.ReceiptsReconciled.WithLabelValues("partial").Inc()
	}
}

// ItemsTotal sums the item subtotals.
func ItemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return total
}
