package budget

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/obrafin/obrafin/pkg/snapshot"
)

// StubRepository is an in-memory Repository. Transactions are serialized, which gives the
// same guarantee as the row lock of the Postgres implementation, and roll back on error.
type StubRepository struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	budgets  map[int]Budget
	versions map[int][]Version // budgetId -> versions
	projects map[int]int       // projectId -> tenantId
	nextId   int

	// FailInsertVersion, when set, is returned by InsertVersion.
	FailInsertVersion error
}

func NewStubRepository() *StubRepository {
	return &StubRepository{
		budgets:  make(map[int]Budget),
		versions: make(map[int][]Version),
		projects: make(map[int]int),
		nextId:   1,
	}
}

// AddProject registers a project of the tenant.
func (r *StubRepository) AddProject(tenantId int, projectId int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[projectId] = tenantId
}

type stubState struct {
	budgets  map[int]Budget
	versions map[int][]Version
	nextId   int
}

func (r *StubRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	saved := stubState{
		budgets:  make(map[int]Budget, len(r.budgets)),
		versions: make(map[int][]Version, len(r.versions)),
		nextId:   r.nextId,
	}
	for k, v := range r.budgets {
		saved.budgets[k] = v
	}
	for k, v := range r.versions {
		saved.versions[k] = append([]Version(nil), v...)
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.budgets = saved.budgets
		r.versions = saved.versions
		r.nextId = saved.nextId
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *StubRepository) ProjectExists(ctx context.Context, tenantId int, projectId int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.projects[projectId]
	return ok && owner == tenantId, nil
}

func (r *StubRepository) Create(ctx context.Context, tenantId int, projectId int) (Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.budgets {
		if b.ProjectId == projectId {
			return Budget{}, ErrBudgetExists
		}
	}
	now := time.Now()
	b := Budget{
		Id:        r.nextId,
		TenantId:  tenantId,
		ProjectId: projectId,
		Status:    StatusDraft,
		Created:   now,
		Updated:   now,
	}
	r.nextId++
	r.budgets[b.Id] = b
	return cloneBudget(b), nil
}

func (r *StubRepository) Get(ctx context.Context, tenantId int, budgetId int) (Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.budgets[budgetId]
	if !ok || b.TenantId != tenantId {
		return Budget{}, ErrBudgetNotFound
	}
	return cloneBudget(b), nil
}

func (r *StubRepository) GetByProject(ctx context.Context, tenantId int, projectId int) (Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.budgets {
		if b.ProjectId == projectId && b.TenantId == tenantId {
			return cloneBudget(b), nil
		}
	}
	return Budget{}, ErrBudgetNotFound
}

func (r *StubRepository) GetForUpdate(ctx context.Context, tenantId int, budgetId int) (Budget, error) {
	return r.Get(ctx, tenantId, budgetId)
}

func (r *StubRepository) UpdateDraft(ctx context.Context, tenantId int, budgetId int, draft snapshot.Snapshot) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.budgets[budgetId]
	if !ok || b.TenantId != tenantId {
		return 0, ErrBudgetNotFound
	}
	stored := draft.Clone()
	b.Draft = &stored
	b.DraftRevision++
	b.Updated = time.Now()
	r.budgets[budgetId] = b
	return b.DraftRevision, nil
}

func (r *StubRepository) UpdateState(ctx context.Context, tenantId int, budgetId int, status Status, currentVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.budgets[budgetId]
	if !ok || b.TenantId != tenantId {
		return ErrBudgetNotFound
	}
	b.Status = status
	b.CurrentVersion = currentVersion
	b.Updated = time.Now()
	r.budgets[budgetId] = b
	return nil
}

func (r *StubRepository) InsertVersion(ctx context.Context, budgetId int, number int, s snapshot.Snapshot, created time.Time) (Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInsertVersion != nil {
		return Version{}, r.FailInsertVersion
	}
	for _, v := range r.versions[budgetId] {
		if v.Number == number {
			return Version{}, ErrVersionTaken
		}
	}
	v := Version{Id: r.nextId, BudgetId: budgetId, Number: number, Snapshot: s.Clone(), Created: created}
	r.nextId++
	r.versions[budgetId] = append(r.versions[budgetId], v)
	return cloneVersion(v), nil
}

func (r *StubRepository) GetVersion(ctx context.Context, tenantId int, budgetId int, number int) (Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.budgets[budgetId]; !ok || b.TenantId != tenantId {
		return Version{}, ErrVersionNotFound
	}
	for _, v := range r.versions[budgetId] {
		if v.Number == number {
			return cloneVersion(v), nil
		}
	}
	return Version{}, ErrVersionNotFound
}

func (r *StubRepository) ListVersions(ctx context.Context, tenantId int, budgetId int) ([]Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.budgets[budgetId]; !ok || b.TenantId != tenantId {
		return nil, nil
	}
	var result []Version
	for _, v := range r.versions[budgetId] {
		result = append(result, cloneVersion(v))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func cloneBudget(b Budget) Budget {
	if b.Draft != nil {
		draft := b.Draft.Clone()
		b.Draft = &draft
	}
	return b
}

func cloneVersion(v Version) Version {
	v.Snapshot = v.Snapshot.Clone()
	return v
}
