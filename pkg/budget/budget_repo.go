package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/pkg/snapshot"
	log "github.com/sirupsen/logrus"
)

var ErrBudgetNotFound = fmt.Errorf("%w: budget", apperr.ErrNotFound)
var ErrVersionNotFound = fmt.Errorf("%w: budget version", apperr.ErrNotFound)
var ErrProjectNotFound = fmt.Errorf("%w: project", apperr.ErrNotFound)
var ErrBudgetExists = fmt.Errorf("%w: project already has a budget", apperr.ErrState)

// ErrVersionTaken is returned when a version number was already used for the budget. The
// row lock taken by GetForUpdate makes it unreachable; the unique constraint backs it.
var ErrVersionTaken = fmt.Errorf("%w: version number already taken", apperr.ErrState)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	ProjectExists(ctx context.Context, tenantId int, projectId int) (bool, error)
	Create(ctx context.Context, tenantId int, projectId int) (Budget, error)
	Get(ctx context.Context, tenantId int, budgetId int) (Budget, error)
	GetByProject(ctx context.Context, tenantId int, projectId int) (Budget, error)
	// GetForUpdate reads the budget and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, tenantId int, budgetId int) (Budget, error)
	// UpdateDraft stores the snapshot as-is and returns the new draft revision.
	UpdateDraft(ctx context.Context, tenantId int, budgetId int, draft snapshot.Snapshot) (int, error)
	UpdateState(ctx context.Context, tenantId int, budgetId int, status Status, currentVersion int) error
	InsertVersion(ctx context.Context, budgetId int, number int, s snapshot.Snapshot, created time.Time) (Version, error)
	GetVersion(ctx context.Context, tenantId int, budgetId int, number int) (Version, error)
	ListVersions(ctx context.Context, tenantId int, budgetId int) ([]Version, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepo(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.tx != nil {
		// already inside a transaction
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&RepositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) ProjectExists(ctx context.Context, tenantId int, projectId int) (bool, error) {
	var exists bool
	err := r.getQueryer().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM project WHERE id = $1 AND tenant_id = $2)`,
		projectId, tenantId).Scan(&exists)
	if err != nil {
		err := fmt.Errorf("could not check project: %w", err)
		log.Error(err)
		return false, err
	}
	return exists, nil
}

const budgetColumns = `id, tenant_id, project_id, status, current_version, snapshot, draft_revision, created, updated`

func (r *RepositoryImpl) Create(ctx context.Context, tenantId int, projectId int) (Budget, error) {
	query := `INSERT INTO budget (tenant_id, project_id) VALUES ($1, $2) RETURNING ` + budgetColumns
	b, err := scanBudget(r.getQueryer().QueryRow(ctx, query, tenantId, projectId))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Budget{}, ErrBudgetExists
		}
		err := fmt.Errorf("could not create budget: %w", err)
		log.Error(err)
		return Budget{}, err
	}
	return b, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int, budgetId int) (Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budget WHERE id = $1 AND tenant_id = $2`
	return r.getOne(ctx, query, budgetId, tenantId)
}

func (r *RepositoryImpl) GetByProject(ctx context.Context, tenantId int, projectId int) (Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budget WHERE project_id = $1 AND tenant_id = $2`
	return r.getOne(ctx, query, projectId, tenantId)
}

func (r *RepositoryImpl) GetForUpdate(ctx context.Context, tenantId int, budgetId int) (Budget, error) {
	if r.tx == nil {
		return Budget{}, errors.New("GetForUpdate requires a transaction")
	}
	query := `SELECT ` + budgetColumns + ` FROM budget WHERE id = $1 AND tenant_id = $2 FOR UPDATE`
	return r.getOne(ctx, query, budgetId, tenantId)
}

func (r *RepositoryImpl) getOne(ctx context.Context, query string, args ...any) (Budget, error) {
	b, err := scanBudget(r.getQueryer().QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, ErrBudgetNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query budget: %w", err)
		log.Error(err)
		return Budget{}, err
	}
	return b, nil
}

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	var status string
	var draft []byte
	err := row.Scan(
		&b.Id,
		&b.TenantId,
		&b.ProjectId,
		&status,
		&b.CurrentVersion,
		&draft,
		&b.DraftRevision,
		&b.Created,
		&b.Updated,
	)
	if err != nil {
		return Budget{}, err
	}
	b.Status = Status(status)
	b.Draft, err = snapshot.Parse(draft)
	if err != nil {
		return Budget{}, fmt.Errorf("could not parse draft of budget %d: %w", b.Id, err)
	}
	return b, nil
}

func (r *RepositoryImpl) UpdateDraft(ctx context.Context, tenantId int, budgetId int, draft snapshot.Snapshot) (int, error) {
	data, err := snapshot.Marshal(draft)
	if err != nil {
		return 0, fmt.Errorf("could not encode draft: %w", err)
	}
	query := `UPDATE budget SET snapshot = $1, draft_revision = draft_revision + 1, updated = now()
			  WHERE id = $2 AND tenant_id = $3
			  RETURNING draft_revision`
	var revision int
	err = r.getQueryer().QueryRow(ctx, query, data, budgetId, tenantId).Scan(&revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrBudgetNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not update draft: %w", err)
		log.Error(err)
		return 0, err
	}
	return revision, nil
}

func (r *RepositoryImpl) UpdateState(ctx context.Context, tenantId int, budgetId int, status Status, currentVersion int) error {
	query := `UPDATE budget SET status = $1, current_version = $2, updated = now() WHERE id = $3 AND tenant_id = $4`
	result, err := r.getQueryer().Exec(ctx, query, string(status), currentVersion, budgetId, tenantId)
	if err != nil {
		err := fmt.Errorf("could not update budget state: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBudgetNotFound
	}
	return nil
}

func (r *RepositoryImpl) InsertVersion(ctx context.Context, budgetId int, number int, s snapshot.Snapshot, created time.Time) (Version, error) {
	data, err := snapshot.Marshal(s)
	if err != nil {
		return Version{}, fmt.Errorf("could not encode version snapshot: %w", err)
	}
	query := `INSERT INTO budget_version (budget_id, version_number, snapshot, created) VALUES ($1, $2, $3, $4) RETURNING id`
	v := Version{BudgetId: budgetId, Number: number, Snapshot: s, Created: created}
	err = r.getQueryer().QueryRow(ctx, query, budgetId, number, data, created).Scan(&v.Id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Version{}, ErrVersionTaken
		}
		err := fmt.Errorf("could not insert budget version: %w", err)
		log.Error(err)
		return Version{}, err
	}
	return v, nil
}

func (r *RepositoryImpl) GetVersion(ctx context.Context, tenantId int, budgetId int, number int) (Version, error) {
	query := `SELECT v.id, v.budget_id, v.version_number, v.snapshot, v.created
			  FROM budget_version v JOIN budget b ON b.id = v.budget_id
			  WHERE v.budget_id = $1 AND b.tenant_id = $2 AND v.version_number = $3`
	v, err := scanVersion(r.getQueryer().QueryRow(ctx, query, budgetId, tenantId, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, ErrVersionNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query budget version: %w", err)
		log.Error(err)
		return Version{}, err
	}
	return v, nil
}

func (r *RepositoryImpl) ListVersions(ctx context.Context, tenantId int, budgetId int) ([]Version, error) {
	query := `SELECT v.id, v.budget_id, v.version_number, v.snapshot, v.created
			  FROM budget_version v JOIN budget b ON b.id = v.budget_id
			  WHERE v.budget_id = $1 AND b.tenant_id = $2
			  ORDER BY v.version_number`
	rows, err := r.getQueryer().Query(ctx, query, budgetId, tenantId)
	if err != nil {
		err := fmt.Errorf("could not query budget versions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return versions, nil
}

func scanVersion(row pgx.Row) (Version, error) {
	var v Version
	var data []byte
	if err := row.Scan(&v.Id, &v.BudgetId, &v.Number, &data, &v.Created); err != nil {
		return Version{}, err
	}
	s, err := snapshot.Parse(data)
	if err != nil {
		return Version{}, fmt.Errorf("could not parse version %d snapshot: %w", v.Number, err)
	}
	if s != nil {
		v.Snapshot = *s
	}
	return v, nil
}
