package rubro

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/obrafin/obrafin/internal/apperr"
)

type RepositoryStub struct {
	mu         sync.RWMutex
	categories map[int]Category
	budgets    map[int]int // budgetId -> tenantId
	nextId     int

	// FailDelete, when set, is returned by Delete.
	FailDelete error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		categories: make(map[int]Category),
		budgets:    make(map[int]int),
		nextId:     1,
	}
}

// AddBudget registers a budget of the tenant so categories can be created in it.
func (r *RepositoryStub) AddBudget(tenantId int, budgetId int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budgets[budgetId] = tenantId
}

func (r *RepositoryStub) List(ctx context.Context, tenantId int, budgetId int) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Category
	for _, c := range r.categories {
		if c.TenantId == tenantId && c.BudgetId == budgetId {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder == result[j].SortOrder {
			return result[i].Id < result[j].Id
		}
		return result[i].SortOrder < result[j].SortOrder
	})
	return result, nil
}

func (r *RepositoryStub) Get(ctx context.Context, tenantId int, id int) (Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok || c.TenantId != tenantId {
		return Category{}, ErrCategoryNotFound
	}
	return c, nil
}

func (r *RepositoryStub) Create(ctx context.Context, category Category) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.budgets[category.BudgetId]; !ok || owner != category.TenantId {
		return Category{}, fmt.Errorf("%w: budget %d", apperr.ErrNotFound, category.BudgetId)
	}
	maxOrder := 0
	for _, c := range r.categories {
		if c.BudgetId == category.BudgetId && c.SortOrder > maxOrder {
			maxOrder = c.SortOrder
		}
	}
	category.Id = r.nextId
	category.SortOrder = maxOrder + 100
	r.nextId++
	r.categories[category.Id] = category
	return category, nil
}

func (r *RepositoryStub) Rename(ctx context.Context, tenantId int, id int, name string) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok || c.TenantId != tenantId {
		return Category{}, ErrCategoryNotFound
	}
	c.Name = name
	r.categories[id] = c
	return c, nil
}

func (r *RepositoryStub) UpdateSortOrder(ctx context.Context, tenantId int, id int, sortOrder int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok || c.TenantId != tenantId {
		return ErrCategoryNotFound
	}
	c.SortOrder = sortOrder
	r.categories[id] = c
	return nil
}

func (r *RepositoryStub) Delete(ctx context.Context, tenantId int, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete != nil {
		return r.FailDelete
	}
	c, ok := r.categories[id]
	if !ok || c.TenantId != tenantId {
		return ErrCategoryNotFound
	}
	delete(r.categories, id)
	return nil
}

func (r *RepositoryStub) NamesByBudget(ctx context.Context, tenantId int, budgetId int) (map[int]string, error) {
	categories, _ := r.List(ctx, tenantId, budgetId)
	names := make(map[int]string, len(categories))
	for _, c := range categories {
		names[c.Id] = c.Name
	}
	return names, nil
}
