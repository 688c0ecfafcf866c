package receipt

import (
	"context"
	"sort"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu         sync.RWMutex
	receipts   map[int]Receipt
	nextId     int
	nextItemId int
	projects   map[int]int          // project id -> tenant id
	categories map[int]map[int]bool // project id -> category ids

	// FailInsert, FailInsertItems and FailDelete are returned by the matching method when set.
	FailInsert      error
	FailInsertItems error
	FailDelete      error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		receipts:   make(map[int]Receipt),
		nextId:     1,
		nextItemId: 1,
		projects:   make(map[int]int),
		categories: make(map[int]map[int]bool),
	}
}

func (r *RepositoryStub) AddProject(tenantId int, projectId int, categoryIds ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[projectId] = tenantId
	if r.categories[projectId] == nil {
		r.categories[projectId] = make(map[int]bool)
	}
	for _, id := range categoryIds {
		r.categories[projectId][id] = true
	}
}

func (r *RepositoryStub) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.receipts)
}

func (r *RepositoryStub) ProjectExists(ctx context.Context, tenantId int, projectId int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.projects[projectId]
	return ok && owner == tenantId, nil
}

func (r *RepositoryStub) CategoryInProject(ctx context.Context, tenantId int, projectId int, categoryId int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.projects[projectId] != tenantId {
		return false, nil
	}
	return r.categories[projectId][categoryId], nil
}

func (r *RepositoryStub) Insert(ctx context.Context, rec Receipt) (Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsert != nil {
		return Receipt{}, r.FailInsert
	}
	rec.Id = r.nextId
	rec.Created = time.Now()
	rec.Items = nil
	r.nextId++
	r.receipts[rec.Id] = rec
	return rec, nil
}

func (r *RepositoryStub) InsertItems(ctx context.Context, receiptId int, items []Item) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsertItems != nil {
		return nil, r.FailInsertItems
	}
	rec, ok := r.receipts[receiptId]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	stored := make([]Item, len(items))
	for i, item := range items {
		item.Id = r.nextItemId
		item.ReceiptId = receiptId
		r.nextItemId++
		stored[i] = item
	}
	rec.Items = append(rec.Items, stored...)
	r.receipts[receiptId] = rec
	return stored, nil
}

func (r *RepositoryStub) Delete(ctx context.Context, tenantId int, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete != nil {
		return false, r.FailDelete
	}
	rec, ok := r.receipts[id]
	if !ok || rec.TenantId != tenantId {
		return false, nil
	}
	delete(r.receipts, id)
	return true, nil
}

func (r *RepositoryStub) Get(ctx context.Context, tenantId int, id int) (Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.receipts[id]
	if !ok || rec.TenantId != tenantId {
		return Receipt{}, ErrReceiptNotFound
	}
	rec.Items = append([]Item(nil), rec.Items...)
	return rec, nil
}

func (r *RepositoryStub) ListByProject(ctx context.Context, tenantId int, projectId int) ([]Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Receipt
	for _, rec := range r.receipts {
		if rec.TenantId == tenantId && rec.ProjectId == projectId {
			rec.Items = nil
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id > result[j].Id })
	return result, nil
}
