package receipt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/internal/test_utils"
	"github.com/obrafin/obrafin/internal/utils"
	"github.com/obrafin/obrafin/pkg/ledger"
	"github.com/obrafin/obrafin/pkg/plan"
	"github.com/obrafin/obrafin/pkg/supplier"
	"github.com/obrafin/obrafin/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	projectId  = 10
	categoryId = 5
)

var now = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ctx        context.Context
	repo       *RepositoryStub
	suppliers  *supplier.RepositoryStub
	ledgerRepo *ledger.RepositoryStub
	ledger     *ledger.ServiceImpl
	plans      *plan.RepositoryStub
	eventBus   *event_bus.EventBus
	reconciler *ReconcilerImpl
}

func setup(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		ctx:        test_utils.ContextWithUser(),
		repo:       NewRepositoryStub(),
		suppliers:  supplier.NewRepositoryStub(),
		ledgerRepo: ledger.NewRepositoryStub(),
		plans:      plan.NewRepositoryStub(),
		eventBus:   event_bus.NewEventBus(),
	}
	tenantId := test_utils.TestUser.TenantId
	f.repo.AddProject(tenantId, projectId, categoryId)
	f.plans.SetPlan(tenantId, plan.Plan{Tier: "pro", LedgerEnabled: true})
	f.ledger = ledger.NewService(f.ledgerRepo, user.RoleAuthorizer{})
	f.reconciler = NewReconciler(
		f.repo,
		supplier.NewResolver(f.suppliers),
		f.ledger,
		plan.NewGate(f.plans, &utils.MockClock{FixedNow: now}),
		user.RoleAuthorizer{},
		f.eventBus,
		&utils.MockClock{FixedNow: now},
	)
	return f
}

func ptr[T any](v T) *T {
	return &v
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expenseSubmission(taxId string) Submission {
	return Submission{
		ProjectId:      projectId,
		Classification: Expense,
		CategoryId:     ptr(categoryId),
		Supplier:       &supplier.Input{Name: "Corralón Norte", TaxId: taxId},
		Type:           "A",
		Number:         "0001-00004567",
		IssuedOn:       ptr(time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)),
		Total:          d("1500"),
		Items: []ItemInput{
			{Description: "Ladrillo hueco 12x18x33", Quantity: d("10"), UnitPrice: d("150")},
		},
	}
}

func TestReconciler_Submit_MalformedTaxIdExpense(t *testing.T) {
	// given
	f := setup(t)

	// when
	result, err := f.reconciler.Submit(f.ctx, expenseSubmission("123"))

	// then
	require.NoError(t, err)
	require.NotNil(t, result.SupplierId)
	s, err := f.suppliers.Get(f.ctx, test_utils.TestUser.TenantId, *result.SupplierId)
	require.NoError(t, err)
	assert.Nil(t, s.TaxId)

	stored, err := f.reconciler.Get(f.ctx, result.Receipt.Id)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, d("1500").Equal(stored.Items[0].Subtotal))
	assert.Equal(t, result.SupplierId, stored.SupplierId)
	assert.Equal(t, "ARS", stored.Currency)

	entries, err := f.ledger.ListByProject(f.ctx, projectId)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, ledger.KindExpense, entry.Kind)
	assert.Equal(t, ledger.StatusConfirmed, entry.Status)
	assert.Equal(t, result.Receipt.Id, *entry.ReceiptId)
	assert.Equal(t, categoryId, *entry.CategoryId)
	assert.True(t, d("1500").Equal(entry.Amount))
	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), entry.OccurredOn)
	assert.Equal(t, &entry.Id, result.LedgerEntryId)
}

func TestReconciler_Submit_Compensation(t *testing.T) {
	t.Run("should remove receipt and orphan supplier when items fail", func(t *testing.T) {
		// given
		f := setup(t)
		f.repo.FailInsertItems = errors.New("connection reset")

		// when
		_, err := f.reconciler.Submit(f.ctx, expenseSubmission(""))

		// then
		var partialErr *apperr.PartialFailureError
		require.ErrorAs(t, err, &partialErr)
		assert.Equal(t, stepItems, partialErr.Step)
		assert.True(t, partialErr.RolledBack())
		assert.Equal(t, 0, f.repo.Count())
		assert.Equal(t, 0, f.suppliers.Count())
		entries, _ := f.ledger.ListByProject(f.ctx, projectId)
		assert.Empty(t, entries)
	})

	t.Run("should keep a deduplicated supplier when items fail", func(t *testing.T) {
		f := setup(t)
		f.repo.FailInsertItems = errors.New("connection reset")

		_, err := f.reconciler.Submit(f.ctx, expenseSubmission("30-71234567-1"))

		var partialErr *apperr.PartialFailureError
		require.ErrorAs(t, err, &partialErr)
		assert.Equal(t, 0, f.repo.Count())
		assert.Equal(t, 1, f.suppliers.Count())
	})

	t.Run("should remove the receipt when the ledger entry fails", func(t *testing.T) {
		f := setup(t)
		f.ledgerRepo.FailInsert = errors.New("check constraint")

		_, err := f.reconciler.Submit(f.ctx, expenseSubmission("123"))

		var partialErr *apperr.PartialFailureError
		require.ErrorAs(t, err, &partialErr)
		assert.Equal(t, stepLedger, partialErr.Step)
		assert.True(t, partialErr.RolledBack())
		assert.Equal(t, 0, f.repo.Count())
		assert.Equal(t, 0, f.suppliers.Count())
	})

	t.Run("should report rows left behind when compensation fails", func(t *testing.T) {
		f := setup(t)
		f.repo.FailInsertItems = errors.New("connection reset")
		f.repo.FailDelete = errors.New("connection reset")

		_, err := f.reconciler.Submit(f.ctx, expenseSubmission(""))

		var partialErr *apperr.PartialFailureError
		require.ErrorAs(t, err, &partialErr)
		assert.False(t, partialErr.RolledBack())
		assert.Equal(t, []string{stepReceipt}, partialErr.LeftBehind())
		assert.Equal(t, 1, f.repo.Count())
		assert.Equal(t, 0, f.suppliers.Count())
		assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
	})
}

func TestReconciler_Submit_SupplierFailureIsNotFatal(t *testing.T) {
	// given
	f := setup(t)
	f.suppliers.FailWrites = errors.New("unique violation")

	// when
	result, err := f.reconciler.Submit(f.ctx, expenseSubmission("30-71234567-1"))

	// then
	require.NoError(t, err)
	assert.Nil(t, result.SupplierId)
	assert.Nil(t, result.Receipt.SupplierId)
	assert.Equal(t, 1, f.repo.Count())
	assert.NotNil(t, result.LedgerEntryId)
}

func TestReconciler_Submit_PlanGate(t *testing.T) {
	t.Run("should store the receipt without ledger entry when the plan has no ledger", func(t *testing.T) {
		// given
		f := setup(t)
		f.plans.SetPlan(test_utils.TestUser.TenantId, plan.Plan{Tier: "free"})

		// when
		result, err := f.reconciler.Submit(f.ctx, expenseSubmission("123"))

		// then
		require.NoError(t, err)
		assert.Nil(t, result.LedgerEntryId)
		assert.Equal(t, 1, f.repo.Count())
		entries, _ := f.ledger.ListByProject(f.ctx, projectId)
		assert.Empty(t, entries)
	})

	t.Run("should reject over quota without writing", func(t *testing.T) {
		f := setup(t)
		f.plans.SetPlan(test_utils.TestUser.TenantId, plan.Plan{Tier: "free", MonthlyReceiptLimit: 1})
		f.plans.AddReceipt(test_utils.TestUser.TenantId, now.Add(-time.Hour))

		_, err := f.reconciler.Submit(f.ctx, expenseSubmission("123"))

		assert.ErrorIs(t, err, apperr.ErrPlanLimit)
		assert.Equal(t, 0, f.repo.Count())
		assert.Equal(t, 0, f.suppliers.Count())
	})
}

func TestReconciler_Submit_Prechecks(t *testing.T) {
	t.Run("should require a category for expenses", func(t *testing.T) {
		f := setup(t)
		sub := expenseSubmission("")
		sub.CategoryId = nil

		_, err := f.reconciler.Submit(f.ctx, sub)

		var shapeErr *apperr.ShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, RuleMissingCategory, shapeErr.Violations[0].Rule)
		assert.Equal(t, 0, f.suppliers.Count())
	})

	t.Run("should reject a category of another project", func(t *testing.T) {
		f := setup(t)
		sub := expenseSubmission("")
		sub.CategoryId = ptr(99)

		_, err := f.reconciler.Submit(f.ctx, sub)

		var shapeErr *apperr.ShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, RuleCategoryOutsideProject, shapeErr.Violations[0].Rule)
	})

	t.Run("should not find the project of another tenant", func(t *testing.T) {
		f := setup(t)

		_, err := f.reconciler.Submit(test_utils.ContextForTenant(context.Background(), 7, 2), expenseSubmission(""))

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("should not let a viewer submit", func(t *testing.T) {
		f := setup(t)

		_, err := f.reconciler.Submit(test_utils.ContextWithUser(user.RoleViewer), expenseSubmission(""))

		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})
}

func TestReconciler_Submit_IncomeAndPending(t *testing.T) {
	// given
	f := setup(t)
	sub := Submission{
		ProjectId:      projectId,
		Classification: Income,
		LedgerStatus:   ledger.StatusPending,
		Total:          d("20000"),
	}

	// when
	result, err := f.reconciler.Submit(f.ctx, sub)

	// then
	require.NoError(t, err)
	entries, err := f.ledger.ListByProject(f.ctx, projectId)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.KindIncome, entries[0].Kind)
	assert.Equal(t, ledger.StatusPending, entries[0].Status)
	assert.Nil(t, entries[0].CategoryId)
	assert.Equal(t, now.Truncate(24*time.Hour), entries[0].OccurredOn)
	assert.Empty(t, result.Receipt.Items)
}

func TestReconciler_Submit_IsNotIdempotent(t *testing.T) {
	f := setup(t)

	first, err := f.reconciler.Submit(f.ctx, expenseSubmission("123"))
	require.NoError(t, err)
	second, err := f.reconciler.Submit(f.ctx, expenseSubmission("123"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Receipt.Id, second.Receipt.Id)
	assert.Equal(t, 2, f.repo.Count())
	assert.Equal(t, 2, f.suppliers.Count())
}

func TestReconciler_Submit_PublishesEvent(t *testing.T) {
	// given
	f := setup(t)
	var received []event_bus.ReceiptReconciledData
	event_bus.SubscribeTyped(f.eventBus, event_bus.ReceiptReconciled, func(e event_bus.EventT[event_bus.ReceiptReconciledData]) error {
		received = append(received, e.Data)
		return nil
	})

	// when
	result, err := f.reconciler.Submit(f.ctx, expenseSubmission("123"))

	// then
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, result.Receipt.Id, received[0].ReceiptId)
	assert.Equal(t, result.LedgerEntryId, received[0].LedgerEntryId)
	assert.True(t, d("1500").Equal(received[0].Total))
}

func TestHandler_Submit(t *testing.T) {
	f := setup(t)
	router := mux.NewRouter()
	handler := NewHandler(f.reconciler)
	router.HandleFunc("/api/project/{projectId}/receipt", handler.Submit).Methods("POST")
	router.HandleFunc("/api/receipt/{receiptId}", handler.Get).Methods("GET")

	t.Run("should reject an expense without category at the boundary", func(t *testing.T) {
		// given
		body := `{"classification":"expense","total":"100","items":[]}`

		// when
		req := httptest.NewRequest(http.MethodPost, "/api/project/10/receipt", strings.NewReader(body)).WithContext(f.ctx)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		// then
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), `"rule":"request.required_if"`)
		assert.Contains(t, rec.Body.String(), `"path":"categoryId"`)
		assert.Equal(t, 0, f.repo.Count())
	})

	t.Run("should create the receipt", func(t *testing.T) {
		// given
		body := `{
			"classification": "expense",
			"categoryId": 5,
			"supplier": {"name": "Corralón Norte", "taxId": "123"},
			"issuedOn": "2026-06-10",
			"total": "1500",
			"items": [{"description": "Ladrillo", "quantity": "10", "unitPrice": "150"}]
		}`

		// when
		req := httptest.NewRequest(http.MethodPost, "/api/project/10/receipt", strings.NewReader(body)).WithContext(f.ctx)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		// then
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"ledgerEntryId":1`)
		assert.Contains(t, rec.Body.String(), `"issuedOn":"2026-06-10"`)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/receipt/1", nil).WithContext(f.ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"description":"Ladrillo"`)
	})
}
