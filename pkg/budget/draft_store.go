package budget

import (
	"context"
	"fmt"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/pkg/snapshot"
	"github.com/obrafin/obrafin/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Authorizer decides whether the user in the context may change budgets.
type Authorizer interface {
	CanEdit(ctx context.Context) error
}

// CategoryNames reads the live names of a budget's categories from the directory.
type CategoryNames interface {
	NamesByBudget(ctx context.Context, tenantId int, budgetId int) (map[int]string, error)
}

// DraftStore holds the mutable draft of a budget. Saves are last-write-wins unless the
// caller passes the revision it last read.
type DraftStore interface {
	CreateBudget(ctx context.Context, projectId int) (Budget, error)
	GetBudget(ctx context.Context, budgetId int) (Budget, error)
	GetBudgetByProject(ctx context.Context, projectId int) (Budget, error)
	// GetDraft returns the draft snapshot, nil before the first save, and its revision.
	GetDraft(ctx context.Context, budgetId int) (*snapshot.Snapshot, int, error)
	SaveDraft(ctx context.Context, budgetId int, draft snapshot.Snapshot, expectedRevision *int) (int, error)
	// ResyncCategoryNames copies the live category names into the draft sections. It reports
	// whether anything changed.
	ResyncCategoryNames(ctx context.Context, budgetId int) (bool, error)
}

type DraftStoreImpl struct {
	repo       Repository
	authorizer Authorizer
	names      CategoryNames
}

func NewDraftStore(repo Repository, authorizer Authorizer, names CategoryNames, eventBus *event_bus.EventBus) *DraftStoreImpl {
	store := &DraftStoreImpl{repo: repo, authorizer: authorizer, names: names}
	event_bus.SubscribeTyped(
		eventBus,
		event_bus.RubroRenamed,
		func(e event_bus.EventT[event_bus.RubroRenamedData]) error {
			log.Debugf("received category renamed event: %+v", e.Data)
			if err := store.renameInDraft(e.Context(), e.Data); err != nil {
				log.Errorf("failed to resync renamed category %d into draft: %v", e.Data.CategoryId, err)
				return err
			}
			return nil
		},
	)
	return store
}

func (s *DraftStoreImpl) CreateBudget(ctx context.Context, projectId int) (Budget, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return Budget{}, err
	}
	exists, err := s.repo.ProjectExists(ctx, tenantId, projectId)
	if err != nil {
		return Budget{}, err
	}
	if !exists {
		return Budget{}, ErrProjectNotFound
	}
	return s.repo.Create(ctx, tenantId, projectId)
}

func (s *DraftStoreImpl) GetBudget(ctx context.Context, budgetId int) (Budget, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, tenantId, budgetId)
}

func (s *DraftStoreImpl) GetBudgetByProject(ctx context.Context, projectId int) (Budget, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetByProject(ctx, tenantId, projectId)
}

func (s *DraftStoreImpl) GetDraft(ctx context.Context, budgetId int) (*snapshot.Snapshot, int, error) {
	b, err := s.GetBudget(ctx, budgetId)
	if err != nil {
		return nil, 0, err
	}
	if b.Status != StatusDraft {
		return nil, 0, fmt.Errorf("%w: budget %d has no draft while published", apperr.ErrNotFound, budgetId)
	}
	return b.Draft, b.DraftRevision, nil
}

func (s *DraftStoreImpl) SaveDraft(ctx context.Context, budgetId int, draft snapshot.Snapshot, expectedRevision *int) (int, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return 0, err
	}

	revision, err := saveDraft(ctx, s.repo, tenantId, budgetId, draft, expectedRevision)
	if err != nil {
		return 0, err
	}
	log.Debugf("saved draft of budget %d at revision %d", budgetId, revision)
	return revision, nil
}

// saveDraft writes the draft under the budget row lock. Only a budget in draft state
// accepts it.
func saveDraft(ctx context.Context, r Repository, tenantId, budgetId int, draft snapshot.Snapshot, expectedRevision *int) (int, error) {
	var revision int
	err := r.WithTransaction(ctx, func(repo Repository) error {
		b, err := repo.GetForUpdate(ctx, tenantId, budgetId)
		if err != nil {
			return err
		}
		if b.Status != StatusDraft {
			return fmt.Errorf("%w: budget %d is published, reopen it to edit", apperr.ErrState, budgetId)
		}
		if expectedRevision != nil && *expectedRevision != b.DraftRevision {
			return fmt.Errorf("%w: draft is at revision %d, not %d", apperr.ErrConflict, b.DraftRevision, *expectedRevision)
		}
		revision, err = repo.UpdateDraft(ctx, tenantId, budgetId, draft)
		return err
	})
	return revision, err
}

func (s *DraftStoreImpl) ResyncCategoryNames(ctx context.Context, budgetId int) (bool, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return false, err
	}
	names, err := s.names.NamesByBudget(ctx, tenantId, budgetId)
	if err != nil {
		return false, err
	}

	changed := false
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		b, err := repo.GetForUpdate(ctx, tenantId, budgetId)
		if err != nil {
			return err
		}
		// published versions keep the names they were frozen with
		if b.Status != StatusDraft {
			return fmt.Errorf("%w: budget %d is published", apperr.ErrState, budgetId)
		}
		if b.Draft == nil {
			return nil
		}
		draft := b.Draft.Clone()
		for categoryId, name := range names {
			if draft.RenameCategory(categoryId, name) {
				changed = true
			}
		}
		if !changed {
			return nil
		}
		_, err = repo.UpdateDraft(ctx, tenantId, budgetId, draft)
		return err
	})
	return changed, err
}

func (s *DraftStoreImpl) renameInDraft(ctx context.Context, data event_bus.RubroRenamedData) error {
	return s.repo.WithTransaction(ctx, func(repo Repository) error {
		b, err := repo.GetForUpdate(ctx, data.TenantId, data.BudgetId)
		if err != nil {
			return err
		}
		if b.Status != StatusDraft || b.Draft == nil {
			return nil
		}
		draft := b.Draft.Clone()
		if !draft.RenameCategory(data.CategoryId, data.Name) {
			return nil
		}
		_, err = repo.UpdateDraft(ctx, data.TenantId, data.BudgetId, draft)
		return err
	})
}
