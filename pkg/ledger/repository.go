package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrEntryNotFound = fmt.Errorf("%w: ledger entry", apperr.ErrNotFound)

type Repository interface {
	Insert(ctx context.Context, entry Entry) (Entry, error)
	Get(ctx context.Context, tenantId int, id int) (Entry, error)
	ListByProject(ctx context.Context, tenantId int, projectId int) ([]Entry, error)
	SetStatus(ctx context.Context, tenantId int, id int, status Status) (Entry, error)
	ConfirmedExpenseTotals(ctx context.Context, tenantId int, projectId int) ([]CategoryTotal, error)
	ConfirmedIncomeTotal(ctx context.Context, tenantId int, projectId int) (decimal.Decimal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const entryColumns = `id, tenant_id, project_id, category_id, receipt_id, supplier_id, kind, status, amount, occurred_on, description, created`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var kind, status string
	err := row.Scan(
		&e.Id,
		&e.TenantId,
		&e.ProjectId,
		&e.CategoryId,
		&e.ReceiptId,
		&e.SupplierId,
		&kind,
		&status,
		&e.Amount,
		&e.OccurredOn,
		&e.Description,
		&e.Created,
	)
	e.Kind = Kind(kind)
	e.Status = Status(status)
	return e, err
}

func (r *RepositoryImpl) Insert(ctx context.Context, entry Entry) (Entry, error) {
	query := `INSERT INTO ledger_entry (tenant_id, project_id, category_id, receipt_id, supplier_id, kind, status, amount, occurred_on, description)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING ` + entryColumns
	created, err := scanEntry(r.db.QueryRow(ctx, query,
		entry.TenantId,
		entry.ProjectId,
		entry.CategoryId,
		entry.ReceiptId,
		entry.SupplierId,
		string(entry.Kind),
		string(entry.Status),
		entry.Amount,
		entry.OccurredOn,
		entry.Description,
	))
	if err != nil {
		err := fmt.Errorf("could not insert ledger entry: %w", err)
		log.Error(err)
		return Entry{}, err
	}
	return created, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int, id int) (Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entry WHERE tenant_id = $1 AND id = $2`
	e, err := scanEntry(r.db.QueryRow(ctx, query, tenantId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query ledger entry: %w", err)
		log.Error(err)
		return Entry{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) ListByProject(ctx context.Context, tenantId int, projectId int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entry WHERE tenant_id = $1 AND project_id = $2 ORDER BY occurred_on, id`
	rows, err := r.db.Query(ctx, query, tenantId, projectId)
	if err != nil {
		err := fmt.Errorf("could not query ledger entries: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return entries, nil
}

func (r *RepositoryImpl) SetStatus(ctx context.Context, tenantId int, id int, status Status) (Entry, error) {
	query := `UPDATE ledger_entry SET status = $1 WHERE tenant_id = $2 AND id = $3 RETURNING ` + entryColumns
	e, err := scanEntry(r.db.QueryRow(ctx, query, string(status), tenantId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not update ledger entry: %w", err)
		log.Error(err)
		return Entry{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) ConfirmedExpenseTotals(ctx context.Context, tenantId int, projectId int) ([]CategoryTotal, error) {
	query := `SELECT category_id, SUM(amount) FROM ledger_entry
			  WHERE tenant_id = $1 AND project_id = $2 AND kind = 'expense' AND status = 'confirmed'
			  GROUP BY category_id
			  ORDER BY category_id NULLS LAST`
	rows, err := r.db.Query(ctx, query, tenantId, projectId)
	if err != nil {
		err := fmt.Errorf("could not query expense totals: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.CategoryId, &t.Total); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return totals, nil
}

func (r *RepositoryImpl) ConfirmedIncomeTotal(ctx context.Context, tenantId int, projectId int) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entry
			  WHERE tenant_id = $1 AND project_id = $2 AND kind = 'income' AND status = 'confirmed'`
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, tenantId, projectId).Scan(&total); err != nil {
		err := fmt.Errorf("could not query income total: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return total, nil
}
