package rubro

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/pkg/snapshot"
	"github.com/obrafin/obrafin/pkg/user"
	log "github.com/sirupsen/logrus"
)

const RuleEmptyName = "category.name.empty"

const positionStep = 100

// DraftAccess reads and writes the draft snapshot of a budget.
type DraftAccess interface {
	GetDraft(ctx context.Context, budgetId int) (*snapshot.Snapshot, int, error)
	SaveDraft(ctx context.Context, budgetId int, draft snapshot.Snapshot, expectedRevision *int) (int, error)
}

type Authorizer interface {
	CanEdit(ctx context.Context) error
}

type Service interface {
	List(ctx context.Context, budgetId int) ([]Category, error)
	Get(ctx context.Context, id int) (Category, error)
	Create(ctx context.Context, budgetId int, name string) (Category, error)
	// Rename changes the directory name. Draft snapshots pick it up through the
	// rubro.renamed event, published versions keep the old one.
	Rename(ctx context.Context, id int, name string) (Category, error)
	// MoveAfter places the category right after precedingId, or first when precedingId is 0.
	MoveAfter(ctx context.Context, id int, precedingId int) error
	// Delete removes the category and the draft section referencing it.
	Delete(ctx context.Context, id int) error
}

type ServiceImpl struct {
	repo       Repository
	drafts     DraftAccess
	authorizer Authorizer
	eventBus   *event_bus.EventBus
}

func NewService(repo Repository, drafts DraftAccess, authorizer Authorizer, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, drafts: drafts, authorizer: authorizer, eventBus: eventBus}
}

func (s *ServiceImpl) List(ctx context.Context, budgetId int) ([]Category, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, tenantId, budgetId)
}

func (s *ServiceImpl) Get(ctx context.Context, id int) (Category, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Category{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, tenantId, id)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		shapeErr := &apperr.ShapeError{}
		shapeErr.Add(RuleEmptyName, "name", "category name is empty")
		return "", shapeErr
	}
	return name, nil
}

func (s *ServiceImpl) Create(ctx context.Context, budgetId int, name string) (Category, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Category{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return Category{}, err
	}
	name, err = validateName(name)
	if err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, Category{TenantId: tenantId, BudgetId: budgetId, Name: name})
}

func (s *ServiceImpl) Rename(ctx context.Context, id int, name string) (Category, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Category{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return Category{}, err
	}
	name, err = validateName(name)
	if err != nil {
		return Category{}, err
	}
	renamed, err := s.repo.Rename(ctx, tenantId, id, name)
	if err != nil {
		return Category{}, err
	}

	// The rename is committed; a stale draft name can be fixed with an explicit resync.
	err = s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.RubroRenamed, event_bus.RubroRenamedData{
		TenantId:   tenantId,
		BudgetId:   renamed.BudgetId,
		CategoryId: renamed.Id,
		Name:       renamed.Name,
	}))
	if err != nil {
		log.Errorf("failed to publish category renamed event: %v", err)
	}
	return renamed, nil
}

func (s *ServiceImpl) MoveAfter(ctx context.Context, id int, precedingId int) error {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return err
	}
	moved, err := s.repo.Get(ctx, tenantId, id)
	if err != nil {
		return err
	}
	categories, err := s.repo.List(ctx, tenantId, moved.BudgetId)
	if err != nil {
		return err
	}

	others := make([]Category, 0, len(categories))
	for _, c := range categories {
		if c.Id != id {
			others = append(others, c)
		}
	}
	insertAt := 0
	if precedingId > 0 {
		idx := findCategory(precedingId, others)
		if idx == -1 {
			return ErrCategoryNotFound
		}
		insertAt = idx + 1
	}

	prevPos := 0
	if insertAt > 0 {
		prevPos = others[insertAt-1].SortOrder
	}
	if insertAt == len(others) {
		return s.repo.UpdateSortOrder(ctx, tenantId, id, prevPos+positionStep)
	}
	nextPos := others[insertAt].SortOrder
	if nextPos-prevPos > 1 {
		return s.repo.UpdateSortOrder(ctx, tenantId, id, prevPos+(nextPos-prevPos)/2)
	}

	// no space between prev and next - reorder all categories
	ordered := make([]Category, 0, len(categories))
	ordered = append(ordered, others[:insertAt]...)
	ordered = append(ordered, moved)
	ordered = append(ordered, others[insertAt:]...)
	for i, c := range ordered {
		if err := s.repo.UpdateSortOrder(ctx, tenantId, c.Id, (i+1)*positionStep); err != nil {
			return err
		}
	}
	return nil
}

func findCategory(id int, categories []Category) int {
	for idx, c := range categories {
		if c.Id == id {
			return idx
		}
	}
	return -1
}

func (s *ServiceImpl) Delete(ctx context.Context, id int) error {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return err
	}
	category, err := s.repo.Get(ctx, tenantId, id)
	if err != nil {
		return err
	}

	draft, revision, err := s.drafts.GetDraft(ctx, category.BudgetId)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	// a published budget has no live draft; its versions keep the section
	var original *snapshot.Snapshot
	savedRevision := 0
	if draft != nil {
		updated := draft.Clone()
		if _, removed := updated.RemoveSection(id); removed {
			savedRevision, err = s.drafts.SaveDraft(ctx, category.BudgetId, updated, &revision)
			if err != nil {
				return fmt.Errorf("could not remove category %d from draft: %w", id, err)
			}
			original = draft
		}
	}

	if err := s.repo.Delete(ctx, tenantId, id); err != nil {
		if original != nil {
			if _, restoreErr := s.drafts.SaveDraft(ctx, category.BudgetId, *original, &savedRevision); restoreErr != nil {
				log.Errorf("category %d not deleted and draft of budget %d not restored: %v", id, category.BudgetId, restoreErr)
			}
		}
		return err
	}
	log.Debugf("deleted category %d of budget %d", id, category.BudgetId)
	return nil
}
