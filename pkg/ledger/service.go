package ledger

import (
	"context"
	"fmt"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Authorizer interface {
	CanEdit(ctx context.Context) error
}

type Service interface {
	ListByProject(ctx context.Context, projectId int) ([]Entry, error)
	Confirm(ctx context.Context, entryId int) (Entry, error)
	// Record stores an entry for the current tenant. The receipt reconciler is its only writer.
	Record(ctx context.Context, entry Entry) (Entry, error)
	ConfirmedExpenseTotalsByCategory(ctx context.Context, projectId int) ([]CategoryTotal, error)
	ConfirmedIncomeTotal(ctx context.Context, projectId int) (decimal.Decimal, error)
}

type ServiceImpl struct {
	repo       Repository
	authorizer Authorizer
}

func NewService(repo Repository, authorizer Authorizer) *ServiceImpl {
	return &ServiceImpl{repo: repo, authorizer: authorizer}
}

func (s *ServiceImpl) ListByProject(ctx context.Context, projectId int) ([]Entry, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListByProject(ctx, tenantId, projectId)
}

func (s *ServiceImpl) Confirm(ctx context.Context, entryId int) (Entry, error) {
	if err := s.authorizer.CanEdit(ctx); err != nil {
		return Entry{}, err
	}
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get current user: %w", err)
	}
	entry, err := s.repo.Get(ctx, tenantId, entryId)
	if err != nil {
		return Entry{}, err
	}
	if entry.Status == StatusConfirmed {
		return Entry{}, fmt.Errorf("%w: ledger entry %d is already confirmed", apperr.ErrState, entryId)
	}
	confirmed, err := s.repo.SetStatus(ctx, tenantId, entryId, StatusConfirmed)
	if err != nil {
		return Entry{}, err
	}
	log.Infof("Ledger entry %d of project %d confirmed", entryId, confirmed.ProjectId)
	return confirmed, nil
}

func (s *ServiceImpl) Record(ctx context.Context, entry Entry) (Entry, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if !entry.Amount.IsPositive() {
		shapeErr := &apperr.ShapeError{}
		shapeErr.Add(RuleNonPositiveAmount, "amount", "ledger amount must be positive")
		return Entry{}, shapeErr
	}
	if entry.Kind != KindExpense && entry.Kind != KindIncome {
		shapeErr := &apperr.ShapeError{}
		shapeErr.Add(RuleUnknownKind, "kind", fmt.Sprintf("unknown ledger kind %q", entry.Kind))
		return Entry{}, shapeErr
	}
	if entry.Status == "" {
		entry.Status = StatusConfirmed
	}
	entry.TenantId = tenantId
	return s.repo.Insert(ctx, entry)
}

func (s *ServiceImpl) ConfirmedExpenseTotalsByCategory(ctx context.Context, projectId int) ([]CategoryTotal, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ConfirmedExpenseTotals(ctx, tenantId, projectId)
}

func (s *ServiceImpl) ConfirmedIncomeTotal(ctx context.Context, projectId int) (decimal.Decimal, error) {
	tenantId, err := user.CurrentTenantId(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ConfirmedIncomeTotal(ctx, tenantId, projectId)
}
