package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/apperr"
	log "github.com/sirupsen/logrus"
)

var (
	ErrReceiptNotFound = fmt.Errorf("%w: receipt", apperr.ErrNotFound)
	ErrProjectNotFound = fmt.Errorf("%w: project", apperr.ErrNotFound)
)

type Repository interface {
	ProjectExists(ctx context.Context, tenantId int, projectId int) (bool, error)
	// CategoryInProject reports whether the category belongs to the budget of the project.
	CategoryInProject(ctx context.Context, tenantId int, projectId int, categoryId int) (bool, error)
	Insert(ctx context.Context, r Receipt) (Receipt, error)
	// InsertItems stores all items or none.
	InsertItems(ctx context.Context, receiptId int, items []Item) ([]Item, error)
	// Delete removes the receipt and its items. It returns false when nothing was deleted.
	Delete(ctx context.Context, tenantId int, id int) (bool, error)
	Get(ctx context.Context, tenantId int, id int) (Receipt, error)
	ListByProject(ctx context.Context, tenantId int, projectId int) ([]Receipt, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const receiptColumns = `id, tenant_id, project_id, category_id, supplier_id, receipt_type, receipt_number, issued_on, currency, total_amount, tax_amount, confidence, file_ref, notes, created`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var r Receipt
	err := row.Scan(
		&r.Id,
		&r.TenantId,
		&r.ProjectId,
		&r.CategoryId,
		&r.SupplierId,
		&r.Type,
		&r.Number,
		&r.IssuedOn,
		&r.Currency,
		&r.Total,
		&r.Tax,
		&r.Confidence,
		&r.FileRef,
		&r.Notes,
		&r.Created,
	)
	return r, err
}

func (r *RepositoryImpl) ProjectExists(ctx context.Context, tenantId int, projectId int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM project WHERE id = $1 AND tenant_id = $2)`, projectId, tenantId).Scan(&exists)
	if err != nil {
		err := fmt.Errorf("could not check project: %w", err)
		log.Error(err)
		return false, err
	}
	return exists, nil
}

func (r *RepositoryImpl) CategoryInProject(ctx context.Context, tenantId int, projectId int, categoryId int) (bool, error) {
	query := `SELECT EXISTS(
				SELECT 1 FROM category c JOIN budget b ON b.id = c.budget_id
				WHERE c.id = $1 AND c.tenant_id = $2 AND b.project_id = $3)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, categoryId, tenantId, projectId).Scan(&exists); err != nil {
		err := fmt.Errorf("could not check category: %w", err)
		log.Error(err)
		return false, err
	}
	return exists, nil
}

func (r *RepositoryImpl) Insert(ctx context.Context, rec Receipt) (Receipt, error) {
	query := `INSERT INTO receipt (tenant_id, project_id, category_id, supplier_id, receipt_type, receipt_number, issued_on, currency, total_amount, tax_amount, confidence, file_ref, notes)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			  RETURNING ` + receiptColumns
	created, err := scanReceipt(r.db.QueryRow(ctx, query,
		rec.TenantId,
		rec.ProjectId,
		rec.CategoryId,
		rec.SupplierId,
		rec.Type,
		rec.Number,
		rec.IssuedOn,
		rec.Currency,
		rec.Total,
		rec.Tax,
		rec.Confidence,
		rec.FileRef,
		rec.Notes,
	))
	if err != nil {
		err := fmt.Errorf("could not insert receipt: %w", err)
		log.Error(err)
		return Receipt{}, err
	}
	return created, nil
}

func (r *RepositoryImpl) InsertItems(ctx context.Context, receiptId int, items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO receipt_item (receipt_id, position, description, quantity, unit_price, subtotal)
					 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			receiptId, item.Position, item.Description, item.Quantity, item.UnitPrice, item.Subtotal)
	}
	results := tx.SendBatch(ctx, batch)
	stored := make([]Item, len(items))
	for i, item := range items {
		item.ReceiptId = receiptId
		if err := results.QueryRow().Scan(&item.Id); err != nil {
			results.Close()
			err := fmt.Errorf("could not insert receipt item %d: %w", item.Position, err)
			log.Error(err)
			return nil, err
		}
		stored[i] = item
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("could not insert receipt items: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit receipt items: %w", err)
	}
	return stored, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, tenantId int, id int) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM receipt WHERE id = $1 AND tenant_id = $2`, id, tenantId)
	if err != nil {
		err := fmt.Errorf("could not delete receipt %d: %w", id, err)
		log.Error(err)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int, id int) (Receipt, error) {
	rec, err := scanReceipt(r.db.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipt WHERE id = $1 AND tenant_id = $2`, id, tenantId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, ErrReceiptNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query receipt: %w", err)
		log.Error(err)
		return Receipt{}, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, receipt_id, position, description, quantity, unit_price, subtotal
		 FROM receipt_item WHERE receipt_id = $1 ORDER BY position`, id)
	if err != nil {
		err := fmt.Errorf("could not query receipt items: %w", err)
		log.Error(err)
		return Receipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Id, &item.ReceiptId, &item.Position, &item.Description, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return Receipt{}, fmt.Errorf("error scanning row: %w", err)
		}
		rec.Items = append(rec.Items, item)
	}
	if err := rows.Err(); err != nil {
		return Receipt{}, fmt.Errorf("error iterating over rows: %w", err)
	}
	return rec, nil
}

func (r *RepositoryImpl) ListByProject(ctx context.Context, tenantId int, projectId int) ([]Receipt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+receiptColumns+` FROM receipt WHERE tenant_id = $1 AND project_id = $2 ORDER BY created DESC, id DESC`,
		tenantId, projectId)
	if err != nil {
		err := fmt.Errorf("could not query receipts: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return receipts, nil
}
