package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	mu      sync.RWMutex
	entries map[int]Entry
	nextId  int

	// FailInsert, when set, is returned by Insert.
	FailInsert error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{entries: make(map[int]Entry), nextId: 1}
}

func (r *RepositoryStub) Insert(ctx context.Context, entry Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsert != nil {
		return Entry{}, r.FailInsert
	}
	entry.Id = r.nextId
	entry.Created = time.Now()
	r.nextId++
	r.entries[entry.Id] = entry
	return entry, nil
}

func (r *RepositoryStub) Get(ctx context.Context, tenantId int, id int) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.TenantId != tenantId {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *RepositoryStub) ListByProject(ctx context.Context, tenantId int, projectId int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Entry
	for _, e := range r.entries {
		if e.TenantId == tenantId && e.ProjectId == projectId {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OccurredOn.Equal(result[j].OccurredOn) {
			return result[i].Id < result[j].Id
		}
		return result[i].OccurredOn.Before(result[j].OccurredOn)
	})
	return result, nil
}

func (r *RepositoryStub) SetStatus(ctx context.Context, tenantId int, id int, status Status) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.TenantId != tenantId {
		return Entry{}, ErrEntryNotFound
	}
	e.Status = status
	r.entries[id] = e
	return e, nil
}

func (r *RepositoryStub) ConfirmedExpenseTotals(ctx context.Context, tenantId int, projectId int) ([]CategoryTotal, error) {
	entries, _ := r.ListByProject(ctx, tenantId, projectId)
	byCategory := make(map[int]decimal.Decimal)
	uncategorized := decimal.Zero
	hasUncategorized := false
	for _, e := range entries {
		if e.Kind != KindExpense || e.Status != StatusConfirmed {
			continue
		}
		if e.CategoryId == nil {
			uncategorized = uncategorized.Add(e.Amount)
			hasUncategorized = true
			continue
		}
		byCategory[*e.CategoryId] = byCategory[*e.CategoryId].Add(e.Amount)
	}

	ids := make([]int, 0, len(byCategory))
	for id := range byCategory {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var totals []CategoryTotal
	for _, id := range ids {
		categoryId := id
		totals = append(totals, CategoryTotal{CategoryId: &categoryId, Total: byCategory[id]})
	}
	if hasUncategorized {
		totals = append(totals, CategoryTotal{Total: uncategorized})
	}
	return totals, nil
}

func (r *RepositoryStub) ConfirmedIncomeTotal(ctx context.Context, tenantId int, projectId int) (decimal.Decimal, error) {
	entries, _ := r.ListByProject(ctx, tenantId, projectId)
	total := decimal.Zero
	for _, e := range entries {
		if e.Kind == KindIncome && e.Status == StatusConfirmed {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}
