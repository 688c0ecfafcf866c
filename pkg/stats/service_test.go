package stats

import (
	"context"
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
	"github.com/obrafin/obrafin/pkg/budget"
	"github.com/obrafin/obrafin/pkg/ledger"
	"github.com/obrafin/obrafin/pkg/snapshot"
	"github.com/obrafin/obrafin/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectId = 7

type stubNames map[int]string

func (n stubNames) NamesByBudget(ctx context.Context, tenantId int, budgetId int) (map[int]string, error) {
	return n, nil
}

type fixture struct {
	ctx       context.Context
	drafts    *budget.DraftStoreImpl
	publisher *budget.PublisherImpl
	ledger    *ledger.ServiceImpl
	service   *StatsServiceImpl
	budgetId  int
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := test_utils.ContextWithUser()
	names := stubNames{1: "Masonry", 2: "Electrical", 3: "Painting"}
	bus := event_bus.NewEventBus()
	budgetRepo := budget.NewStubRepository()
	budgetRepo.AddProject(test_utils.TestUser.TenantId, projectId)
	drafts := budget.NewDraftStore(budgetRepo, user.RoleAuthorizer{}, names, bus)
	publisher := budget.NewPublisher(budgetRepo, user.RoleAuthorizer{}, bus, utils.SystemClock{})
	ledgerService := ledger.NewService(ledger.NewRepositoryStub(), user.RoleAuthorizer{})

	b, err := drafts.CreateBudget(ctx, projectId)
	require.NoError(t, err)
	return fixture{
		ctx:       ctx,
		drafts:    drafts,
		publisher: publisher,
		ledger:    ledgerService,
		service:   NewStatsServiceImpl(drafts, publisher, ledgerService, names),
		budgetId:  b.Id,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func (f fixture) publish(t *testing.T) {
	t.Helper()
	masonry := snapshot.Section{CategoryId: 1, CategoryName: "Masonry"}
	masonry.AddItem(snapshot.Item{Description: "Bricks", Unit: "u", Quantity: d("10"), UnitCost: d("100")})
	masonry.AddItem(snapshot.Item{Description: "Labour", Unit: "gl", Quantity: d("1"), UnitCost: d("500")})
	electrical := snapshot.Section{CategoryId: 2, CategoryName: "Electrical", IsAdditional: true, Subtotal: ptr(d("1000"))}

	_, err := f.drafts.SaveDraft(f.ctx, f.budgetId, snapshot.Snapshot{Sections: []snapshot.Section{masonry, electrical}}, nil)
	require.NoError(t, err)
	_, err = f.publisher.Publish(f.ctx, f.budgetId, nil)
	require.NoError(t, err)
}

func (f fixture) record(t *testing.T, kind ledger.Kind, categoryId *int, amount string, status ledger.Status) {
	t.Helper()
	_, err := f.ledger.Record(f.ctx, ledger.Entry{
		ProjectId:  projectId,
		CategoryId: categoryId,
		Kind:       kind,
		Status:     status,
		Amount:     d(amount),
		OccurredOn: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func (f fixture) recordSpend(t *testing.T) {
	f.record(t, ledger.KindExpense, ptr(1), "600", ledger.StatusConfirmed)
	f.record(t, ledger.KindExpense, ptr(1), "100", ledger.StatusPending)
	f.record(t, ledger.KindExpense, ptr(2), "1200", ledger.StatusConfirmed)
	f.record(t, ledger.KindExpense, ptr(3), "300", ledger.StatusConfirmed)
	f.record(t, ledger.KindExpense, nil, "50", ledger.StatusConfirmed)
	f.record(t, ledger.KindIncome, nil, "5000", ledger.StatusConfirmed)
}

func TestStatsService_GetBudgetVsActual(t *testing.T) {
	// given
	f := setup(t)
	f.publish(t)
	f.recordSpend(t)

	// when
	report, err := f.service.GetBudgetVsActual(f.ctx, f.budgetId)

	// then
	require.NoError(t, err)
	assert.Equal(t, 1, report.VersionNumber)
	assert.Equal(t, projectId, report.ProjectId)
	require.Len(t, report.Categories, 4)

	masonry := report.Categories[0]
	assert.Equal(t, 1, *masonry.CategoryId)
	assert.True(t, d("1500").Equal(masonry.Budgeted))
	assert.True(t, d("600").Equal(masonry.Actual))
	assert.True(t, d("900").Equal(masonry.Difference))
	assert.Equal(t, int64(40), masonry.Percentage)
	assert.False(t, masonry.Unbudgeted)

	electrical := report.Categories[1]
	assert.True(t, electrical.IsAdditional)
	assert.True(t, d("-200").Equal(electrical.Difference))
	assert.Equal(t, int64(120), electrical.Percentage)

	painting := report.Categories[2]
	assert.Equal(t, "Painting", painting.Name)
	assert.True(t, painting.Unbudgeted)
	assert.True(t, painting.Budgeted.IsZero())
	assert.Equal(t, int64(0), painting.Percentage)

	uncategorized := report.Categories[3]
	assert.Nil(t, uncategorized.CategoryId)
	assert.True(t, uncategorized.Unbudgeted)
	assert.True(t, d("50").Equal(uncategorized.Actual))

	totals := report.Totals
	assert.True(t, d("2500").Equal(totals.Budgeted))
	assert.True(t, d("1500").Equal(totals.BaseBudgeted))
	assert.True(t, d("1000").Equal(totals.AdditionalBudgeted))
	assert.True(t, d("2150").Equal(totals.Actual))
	assert.True(t, d("350").Equal(totals.Difference))
	assert.Equal(t, int64(86), totals.Percentage)
	assert.True(t, d("5000").Equal(totals.Income))

	sumOfDifferences := decimal.Zero
	for _, c := range report.Categories {
		sumOfDifferences = sumOfDifferences.Add(c.Difference)
	}
	assert.True(t, totals.Difference.Equal(sumOfDifferences))
}

func TestStatsService_ReadsLatestPublishedVersion(t *testing.T) {
	// given
	f := setup(t)
	f.publish(t)
	_, err := f.publisher.Reopen(f.ctx, f.budgetId)
	require.NoError(t, err)
	draft, revision, err := f.drafts.GetDraft(f.ctx, f.budgetId)
	require.NoError(t, err)
	require.NoError(t, draft.Sections[0].SetItemQuantity(0, d("20")))
	_, err = f.drafts.SaveDraft(f.ctx, f.budgetId, *draft, &revision)
	require.NoError(t, err)

	// when
	report, err := f.service.GetProjectVsActual(f.ctx, projectId)

	// then
	require.NoError(t, err)
	assert.Equal(t, 1, report.VersionNumber)
	assert.True(t, d("1500").Equal(report.Categories[0].Budgeted))
}

func TestStatsService_NotFound(t *testing.T) {
	t.Run("should fail for a budget never published", func(t *testing.T) {
		f := setup(t)

		_, err := f.service.GetBudgetVsActual(f.ctx, f.budgetId)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("should fail for a budget of another tenant", func(t *testing.T) {
		f := setup(t)
		f.publish(t)

		_, err := f.service.GetBudgetVsActual(test_utils.ContextForTenant(context.Background(), 5, 2), f.budgetId)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, int64(0), percentage(d("10"), decimal.Zero))
	assert.Equal(t, int64(33), percentage(d("1"), d("3")))
	assert.Equal(t, int64(67), percentage(d("2"), d("3")))
	assert.Equal(t, int64(1), percentage(d("5"), d("1000")))
	assert.Equal(t, int64(150), percentage(d("150"), d("100")))
}

func TestStatsHandler_Csv(t *testing.T) {
	// given
	f := setup(t)
	f.publish(t)
	f.recordSpend(t)
	router := mux.NewRouter()
	handler := NewStatsHandler(f.service, NewCsvStatsRenderer())
	router.HandleFunc("/api/budget/{budgetId}/vs-actual", handler.GetBudgetVsActual).Methods("GET")

	// when
	req := httptest.NewRequest(http.MethodGet, "/api/budget/1/vs-actual?format=csv", nil).WithContext(f.ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// then
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "Category,Additional,Budgeted,Actual,Difference,Percentage,Unbudgeted", lines[0])
	assert.Equal(t, "Masonry,no,1500.00,600.00,900.00,40%,no", lines[1])
	assert.Equal(t, "Electrical,yes,1000.00,1200.00,-200.00,120%,no", lines[2])
	assert.Equal(t, "Painting,no,0.00,300.00,-300.00,0%,yes", lines[3])
	assert.Equal(t, "Uncategorized,no,0.00,50.00,-50.00,0%,yes", lines[4])
	assert.Equal(t, "SUM,,2500.00,2150.00,350.00,86%,", lines[5])
	assert.Equal(t, "Income,,,5000.00,,,", lines[8])
}

func TestStatsHandler_Json(t *testing.T) {
	f := setup(t)
	router := mux.NewRouter()
	handler := NewStatsHandler(f.service, NewCsvStatsRenderer())
	router.HandleFunc("/api/project/{projectId}/vs-actual", handler.GetProjectVsActual).Methods("GET")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/project/7/vs-actual", nil).WithContext(f.ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.publish(t)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/project/7/vs-actual", nil).WithContext(f.ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"versionNumber":1`)
	assert.Contains(t, rec.Body.String(), `"budgeted":"2500"`)
}
