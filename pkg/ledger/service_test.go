package ledger

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/test_utils"
	"github.com/obrafin/obrafin/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func intPtr(v int) *int {
	return &v
}

func expense(projectId int, categoryId *int, amount string, status Status) Entry {
	return Entry{
		ProjectId:  projectId,
		CategoryId: categoryId,
		Kind:       KindExpense,
		Status:     status,
		Amount:     decimal.RequireFromString(amount),
		OccurredOn: day,
	}
}

func TestService_Record(t *testing.T) {
	ctx := test_utils.ContextWithUser()

	t.Run("should default to confirmed and stamp the tenant", func(t *testing.T) {
		// given
		service := NewService(NewRepositoryStub(), user.RoleAuthorizer{})

		// when
		e, err := service.Record(ctx, expense(7, intPtr(3), "120.50", ""))

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, e.Status)
		assert.Equal(t, test_utils.TestUser.TenantId, e.TenantId)
		assert.NotZero(t, e.Id)
	})

	t.Run("should reject non positive amounts", func(t *testing.T) {
		service := NewService(NewRepositoryStub(), user.RoleAuthorizer{})

		_, err := service.Record(ctx, expense(7, nil, "0", StatusConfirmed))

		var shapeErr *apperr.ShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, RuleNonPositiveAmount, shapeErr.Violations[0].Rule)
	})
}

func TestService_Confirm(t *testing.T) {
	ctx := test_utils.ContextWithUser()

	t.Run("should confirm a pending entry once", func(t *testing.T) {
		// given
		service := NewService(NewRepositoryStub(), user.RoleAuthorizer{})
		e, err := service.Record(ctx, expense(7, intPtr(3), "10", StatusPending))
		require.NoError(t, err)

		// when
		confirmed, err := service.Confirm(ctx, e.Id)

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, confirmed.Status)
		_, err = service.Confirm(ctx, e.Id)
		assert.ErrorIs(t, err, apperr.ErrState)
	})

	t.Run("should not let a viewer confirm", func(t *testing.T) {
		service := NewService(NewRepositoryStub(), user.RoleAuthorizer{})
		e, err := service.Record(ctx, expense(7, nil, "10", StatusPending))
		require.NoError(t, err)

		_, err = service.Confirm(test_utils.ContextWithUser(user.RoleViewer), e.Id)

		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("should not see entries of another tenant", func(t *testing.T) {
		service := NewService(NewRepositoryStub(), user.RoleAuthorizer{})
		e, err := service.Record(ctx, expense(7, nil, "10", StatusPending))
		require.NoError(t, err)

		_, err = service.Confirm(test_utils.ContextForTenant(ctx, 999, 2), e.Id)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestService_Totals(t *testing.T) {
	// given
	ctx := test_utils.ContextWithUser()
	service := NewService(NewRepositoryStub(), user.RoleAuthorizer{})
	for _, e := range []Entry{
		expense(7, intPtr(3), "100", StatusConfirmed),
		expense(7, intPtr(3), "50.25", StatusConfirmed),
		expense(7, intPtr(3), "999", StatusPending),
		expense(7, intPtr(4), "10", StatusConfirmed),
		expense(7, nil, "5", StatusConfirmed),
		expense(8, intPtr(3), "1000", StatusConfirmed),
		{ProjectId: 7, Kind: KindIncome, Status: StatusConfirmed, Amount: decimal.NewFromInt(300), OccurredOn: day},
	} {
		_, err := service.Record(ctx, e)
		require.NoError(t, err)
	}

	// when
	totals, err := service.ConfirmedExpenseTotalsByCategory(ctx, 7)
	require.NoError(t, err)
	income, err := service.ConfirmedIncomeTotal(ctx, 7)
	require.NoError(t, err)

	// then
	require.Len(t, totals, 3)
	assert.Equal(t, 3, *totals[0].CategoryId)
	assert.True(t, decimal.RequireFromString("150.25").Equal(totals[0].Total))
	assert.Equal(t, 4, *totals[1].CategoryId)
	assert.True(t, decimal.NewFromInt(10).Equal(totals[1].Total))
	assert.Nil(t, totals[2].CategoryId)
	assert.True(t, decimal.NewFromInt(5).Equal(totals[2].Total))
	assert.True(t, decimal.NewFromInt(300).Equal(income))
}

func TestHandler_Confirm(t *testing.T) {
	// given
	ctx := test_utils.ContextWithUser()
	service := NewService(NewRepositoryStub(), user.RoleAuthorizer{})
	e, err := service.Record(ctx, expense(7, nil, "10", StatusPending))
	require.NoError(t, err)

	router := mux.NewRouter()
	router.HandleFunc("/api/ledger/{entryId}/confirm", NewHandler(service).Confirm).Methods("PUT")

	// when
	req := httptest.NewRequest(http.MethodPut, "/api/ledger/1/confirm", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// then
	assert.Equal(t, 1, e.Id)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/ledger/1/confirm", nil).WithContext(ctx))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
