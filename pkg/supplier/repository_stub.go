package supplier

import (
	"context"
	"sync"
)

type RepositoryStub struct {
	mu        sync.RWMutex
	suppliers map[int]Supplier
	nextId    int

	// FailWrites, when set, is returned by Upsert and Insert.
	FailWrites error
	// FailDelete, when set, is returned by DeleteWithoutTaxId.
	FailDelete error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{suppliers: make(map[int]Supplier), nextId: 1}
}

func (r *RepositoryStub) Upsert(ctx context.Context, s Supplier) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return 0, false, r.FailWrites
	}
	for id, existing := range r.suppliers {
		if existing.TenantId == s.TenantId && existing.TaxId != nil && s.TaxId != nil && *existing.TaxId == *s.TaxId {
			existing.Name = s.Name
			existing.Address = keepIfEmpty(s.Address, existing.Address)
			existing.City = keepIfEmpty(s.City, existing.City)
			existing.Province = keepIfEmpty(s.Province, existing.Province)
			existing.FiscalCondition = keepIfEmpty(s.FiscalCondition, existing.FiscalCondition)
			r.suppliers[id] = existing
			return id, false, nil
		}
	}
	return r.insert(s), true, nil
}

func keepIfEmpty(value, current string) string {
	if value == "" {
		return current
	}
	return value
}

func (r *RepositoryStub) Insert(ctx context.Context, s Supplier) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return 0, r.FailWrites
	}
	return r.insert(s), nil
}

func (r *RepositoryStub) insert(s Supplier) int {
	s.Id = r.nextId
	r.nextId++
	r.suppliers[s.Id] = s
	return s.Id
}

func (r *RepositoryStub) Get(ctx context.Context, tenantId int, id int) (Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suppliers[id]
	if !ok || s.TenantId != tenantId {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, nil
}

func (r *RepositoryStub) DeleteWithoutTaxId(ctx context.Context, tenantId int, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete != nil {
		return false, r.FailDelete
	}
	s, ok := r.suppliers[id]
	if !ok || s.TenantId != tenantId || s.TaxId != nil {
		return false, nil
	}
	delete(r.suppliers, id)
	return true, nil
}

// Count returns the number of stored suppliers.
func (r *RepositoryStub) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.suppliers)
}
