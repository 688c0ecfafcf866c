package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/event_bus"
	"github.com/obrafin/obrafin/internal/metrics"
	"github.com/obrafin/obrafin/internal/utils"
	"github.com/obrafin/obrafin/pkg/snapshot"
	"github.com/obrafin/obrafin/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Publisher moves a budget between draft and published and serves its version history.
type Publisher interface {
	// Publish saves flush as the draft when given, then freezes the draft into the next
	// version. A rejected publish leaves the saved flush in place.
	Publish(ctx context.Context, budgetId int, flush *snapshot.Snapshot) (Version, error)
	// Reopen turns a published budget back into a draft seeded with the last version.
	Reopen(ctx context.Context, budgetId int) (Budget, error)
	ListVersions(ctx context.Context, budgetId int) ([]Version, error)
	GetVersion(ctx context.Context, budgetId int, number int) (Version, error)
	// LatestVersion returns the version numbered current_version. ErrNotFound before the
	// first publish.
	LatestVersion(ctx context.Context, budgetId int) (Version, error)
}

type PublisherImpl struct {
	repo       Repository
	authorizer Authorizer
	eventBus   *event_bus.EventBus
	clock      utils.Clock
}

func NewPublisher(repo Repository, authorizer Authorizer, eventBus *event_bus.EventBus, clock utils.Clock) *PublisherImpl {
	return &PublisherImpl{repo: repo, authorizer: authorizer, eventBus: eventBus, clock: clock}
}

func (p *PublisherImpl) Publish(ctx context.Context, budgetId int, flush *snapshot.Snapshot) (Version, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Version{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := p.authorizer.CanEdit(ctx); err != nil {
		return Version{}, err
	}

	// The flush commits on its own so a rejected publish keeps the user's edits.
	if flush != nil {
		if _, err := saveDraft(ctx, p.repo, tenantId, budgetId, *flush, nil); err != nil {
			metrics.PublishRejected.WithLabelValues(rejectReason(err)).Inc()
			return Version{}, err
		}
	}

	var published Version
	var projectId int
	err = p.repo.WithTransaction(ctx, func(repo Repository) error {
		b, err := repo.GetForUpdate(ctx, tenantId, budgetId)
		if err != nil {
			return err
		}
		projectId = b.ProjectId
		if b.Status != StatusDraft {
			return fmt.Errorf("%w: budget %d is already published as version %d", apperr.ErrState, budgetId, b.CurrentVersion)
		}

		draft := snapshot.Snapshot{}
		if b.Draft != nil {
			draft = *b.Draft
		}

		if err := snapshot.Validate(draft); err != nil {
			return err
		}

		number := b.CurrentVersion + 1
		published, err = repo.InsertVersion(ctx, budgetId, number, draft.Clone(), p.clock.Now())
		if err != nil {
			return err
		}
		return repo.UpdateState(ctx, tenantId, budgetId, StatusPublished, number)
	})
	if err != nil {
		metrics.PublishRejected.WithLabelValues(rejectReason(err)).Inc()
		return Version{}, err
	}
	metrics.VersionsPublished.Inc()
	log.Infof("published budget %d as version %d", budgetId, published.Number)

	// The version is committed; a failing subscriber must not turn the publish into an error.
	err = p.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.BudgetVersionPublished, event_bus.BudgetVersionPublishedData{
		TenantId:      tenantId,
		BudgetId:      budgetId,
		ProjectId:     projectId,
		VersionNumber: published.Number,
		Total:         published.Snapshot.Total(),
		PublishedAt:   published.Created,
	}))
	if err != nil {
		log.Errorf("failed to publish version published event: %v", err)
	}
	return published, nil
}

func rejectReason(err error) string {
	var shapeErr *apperr.ShapeError
	switch {
	case errors.As(err, &shapeErr):
		return "shape"
	case errors.Is(err, apperr.ErrState):
		return "state"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (p *PublisherImpl) Reopen(ctx context.Context, budgetId int) (Budget, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := p.authorizer.CanEdit(ctx); err != nil {
		return Budget{}, err
	}

	var reopened Budget
	err = p.repo.WithTransaction(ctx, func(repo Repository) error {
		b, err := repo.GetForUpdate(ctx, tenantId, budgetId)
		if err != nil {
			return err
		}
		if b.Status != StatusPublished {
			return fmt.Errorf("%w: budget %d is not published", apperr.ErrState, budgetId)
		}
		last, err := repo.GetVersion(ctx, tenantId, budgetId, b.CurrentVersion)
		if err != nil {
			return fmt.Errorf("could not load version %d of budget %d: %w", b.CurrentVersion, budgetId, err)
		}
		draft := last.Snapshot.Clone()
		revision, err := repo.UpdateDraft(ctx, tenantId, budgetId, draft)
		if err != nil {
			return err
		}
		if err := repo.UpdateState(ctx, tenantId, budgetId, StatusDraft, b.CurrentVersion); err != nil {
			return err
		}
		b.Status = StatusDraft
		b.Draft = &draft
		b.DraftRevision = revision
		reopened = b
		return nil
	})
	if err != nil {
		return Budget{}, err
	}
	log.Infof("reopened budget %d from version %d", budgetId, reopened.CurrentVersion)

	err = p.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.BudgetReopened, event_bus.BudgetReopenedData{
		TenantId:       tenantId,
		BudgetId:       budgetId,
		CurrentVersion: reopened.CurrentVersion,
	}))
	if err != nil {
		log.Errorf("failed to publish budget reopened event: %v", err)
	}
	return reopened, nil
}

func (p *PublisherImpl) ListVersions(ctx context.Context, budgetId int) ([]Version, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if _, err := p.repo.Get(ctx, tenantId, budgetId); err != nil {
		return nil, err
	}
	return p.repo.ListVersions(ctx, tenantId, budgetId)
}

func (p *PublisherImpl) GetVersion(ctx context.Context, budgetId int, number int) (Version, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Version{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return p.repo.GetVersion(ctx, tenantId, budgetId, number)
}

func (p *PublisherImpl) LatestVersion(ctx context.Context, budgetId int) (Version, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Version{}, fmt.Errorf("failed to get current user: %w", err)
	}
	b, err := p.repo.Get(ctx, tenantId, budgetId)
	if err != nil {
		return Version{}, err
	}
	if b.CurrentVersion == 0 {
		return Version{}, fmt.Errorf("%w: budget %d was never published", ErrVersionNotFound, budgetId)
	}
	return p.repo.GetVersion(ctx, tenantId, budgetId, b.CurrentVersion)
}
