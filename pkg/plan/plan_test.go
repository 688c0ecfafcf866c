package plan

import (
	"context"
	"testing"
	"time"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_CheckReceiptQuota(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	clock := &utils.MockClock{FixedNow: now}

	t.Run("should allow unlimited plans", func(t *testing.T) {
		repo := NewRepositoryStub()
		repo.SetPlan(1, Plan{Tier: "pro", MonthlyReceiptLimit: 0})
		for i := 0; i < 50; i++ {
			repo.AddReceipt(1, now)
		}

		assert.NoError(t, NewGate(repo, clock).CheckReceiptQuota(ctx, 1))
	})

	t.Run("should count only receipts of the current month", func(t *testing.T) {
		// given
		repo := NewRepositoryStub()
		repo.SetPlan(1, Plan{Tier: "free", MonthlyReceiptLimit: 2})
		repo.AddReceipt(1, time.Date(2026, 4, 30, 23, 59, 0, 0, time.UTC))
		repo.AddReceipt(1, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
		gate := NewGate(repo, clock)

		// when / then
		require.NoError(t, gate.CheckReceiptQuota(ctx, 1))
		repo.AddReceipt(1, now)
		assert.ErrorIs(t, gate.CheckReceiptQuota(ctx, 1), apperr.ErrPlanLimit)
	})

	t.Run("should reset the quota when the month turns", func(t *testing.T) {
		// given
		repo := NewRepositoryStub()
		repo.SetPlan(1, Plan{Tier: "free", MonthlyReceiptLimit: 1})
		repo.AddReceipt(1, now)
		monthClock := &utils.MockClock{FixedNow: now}
		gate := NewGate(repo, monthClock)
		require.ErrorIs(t, gate.CheckReceiptQuota(ctx, 1), apperr.ErrPlanLimit)

		// when
		monthClock.Advance(12 * 24 * time.Hour)

		// then
		assert.NoError(t, gate.CheckReceiptQuota(ctx, 1))
	})

	t.Run("should fail for an unknown tenant", func(t *testing.T) {
		assert.ErrorIs(t, NewGate(NewRepositoryStub(), clock).CheckReceiptQuota(ctx, 9), apperr.ErrNotFound)
	})
}

func TestGate_LedgerAllowed(t *testing.T) {
	repo := NewRepositoryStub()
	repo.SetPlan(1, Plan{Tier: "free"})
	repo.SetPlan(2, Plan{Tier: "pro", LedgerEnabled: true})
	gate := NewGate(repo, utils.SystemClock{})

	allowed, err := gate.LedgerAllowed(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = gate.LedgerAllowed(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, allowed)
}
