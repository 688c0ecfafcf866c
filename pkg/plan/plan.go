package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/internal/utils"
	log "github.com/sirupsen/logrus"
)

// Plan is what the tenant's subscription allows. Billing itself lives elsewhere.
type Plan struct {
	Tier          string
	LedgerEnabled bool
	// MonthlyReceiptLimit caps receipts created per calendar month, 0 means unlimited.
	MonthlyReceiptLimit int
}

var ErrTenantNotFound = fmt.Errorf("%w: tenant", apperr.ErrNotFound)

type Repository interface {
	Get(ctx context.Context, tenantId int) (Plan, error)
	CountReceiptsSince(ctx context.Context, tenantId int, since time.Time) (int, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int) (Plan, error) {
	var p Plan
	err := r.db.QueryRow(ctx,
		`SELECT plan_tier, ledger_enabled, monthly_receipt_limit FROM tenant WHERE id = $1`, tenantId).
		Scan(&p.Tier, &p.LedgerEnabled, &p.MonthlyReceiptLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, ErrTenantNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query tenant plan: %w", err)
		log.Error(err)
		return Plan{}, err
	}
	return p, nil
}

func (r *RepositoryImpl) CountReceiptsSince(ctx context.Context, tenantId int, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM receipt WHERE tenant_id = $1 AND created >= $2`, tenantId, since).Scan(&count)
	if err != nil {
		err := fmt.Errorf("could not count receipts: %w", err)
		log.Error(err)
		return 0, err
	}
	return count, nil
}

// Gate answers plan questions for the other packages.
type Gate interface {
	LedgerAllowed(ctx context.Context, tenantId int) (bool, error)
	// CheckReceiptQuota returns apperr.ErrPlanLimit when the tenant used its monthly receipts.
	CheckReceiptQuota(ctx context.Context, tenantId int) error
}

type GateImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewGate(repo Repository, clock utils.Clock) *GateImpl {
	return &GateImpl{repo: repo, clock: clock}
}

func (g *GateImpl) LedgerAllowed(ctx context.Context, tenantId int) (bool, error) {
	p, err := g.repo.Get(ctx, tenantId)
	if err != nil {
		return false, err
	}
	return p.LedgerEnabled, nil
}

func (g *GateImpl) CheckReceiptQuota(ctx context.Context, tenantId int) error {
	p, err := g.repo.Get(ctx, tenantId)
	if err != nil {
		return err
	}
	if p.MonthlyReceiptLimit == 0 {
		return nil
	}
	used, err := g.repo.CountReceiptsSince(ctx, tenantId, utils.StartOfMonth(g.clock.Now()))
	if err != nil {
		return err
	}
	if used >= p.MonthlyReceiptLimit {
		return fmt.Errorf("%w: %d of %d receipts used this month on the %s plan",
			apperr.ErrPlanLimit, used, p.MonthlyReceiptLimit, p.Tier)
	}
	return nil
}

// RepositoryStub keeps plans and receipt creation times in memory.
type RepositoryStub struct {
	mu       sync.RWMutex
	plans    map[int]Plan
	receipts map[int][]time.Time
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{plans: make(map[int]Plan), receipts: make(map[int][]time.Time)}
}

func (r *RepositoryStub) SetPlan(tenantId int, p Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[tenantId] = p
}

func (r *RepositoryStub) AddReceipt(tenantId int, created time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[tenantId] = append(r.receipts[tenantId], created)
}

func (r *RepositoryStub) Get(ctx context.Context, tenantId int) (Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[tenantId]
	if !ok {
		return Plan{}, ErrTenantNotFound
	}
	return p, nil
}

func (r *RepositoryStub) CountReceiptsSince(ctx context.Context, tenantId int, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, created := range r.receipts[tenantId] {
		if !created.Before(since) {
			count++
		}
	}
	return count, nil
}
