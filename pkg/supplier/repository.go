package supplier

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/apperr"
	log "github.com/sirupsen/logrus"
)

var ErrSupplierNotFound = fmt.Errorf("%w: supplier", apperr.ErrNotFound)

type Repository interface {
	// Upsert inserts the supplier or, when (tenant, tax id) exists, updates its name and
	// the fiscal fields that are not empty. It reports whether the row was inserted.
	Upsert(ctx context.Context, s Supplier) (id int, inserted bool, err error)
	Insert(ctx context.Context, s Supplier) (int, error)
	Get(ctx context.Context, tenantId int, id int) (Supplier, error)
	// DeleteWithoutTaxId deletes the supplier only if it has no tax id.
	DeleteWithoutTaxId(ctx context.Context, tenantId int, id int) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Upsert(ctx context.Context, s Supplier) (int, bool, error) {
	// xmax is 0 only for a freshly inserted row
	query := `INSERT INTO supplier (tenant_id, name, tax_id, address, city, province, fiscal_condition)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (tenant_id, tax_id) DO UPDATE SET
			      name = EXCLUDED.name,
			      address = COALESCE(NULLIF(EXCLUDED.address, ''), supplier.address),
			      city = COALESCE(NULLIF(EXCLUDED.city, ''), supplier.city),
			      province = COALESCE(NULLIF(EXCLUDED.province, ''), supplier.province),
			      fiscal_condition = COALESCE(NULLIF(EXCLUDED.fiscal_condition, ''), supplier.fiscal_condition)
			  RETURNING id, (xmax = 0)`
	var id int
	var inserted bool
	err := r.db.QueryRow(ctx, query, s.TenantId, s.Name, s.TaxId, s.Address, s.City, s.Province, s.FiscalCondition).
		Scan(&id, &inserted)
	if err != nil {
		err := fmt.Errorf("could not upsert supplier: %w", err)
		log.Error(err)
		return 0, false, err
	}
	return id, inserted, nil
}

func (r *RepositoryImpl) Insert(ctx context.Context, s Supplier) (int, error) {
	query := `INSERT INTO supplier (tenant_id, name, tax_id, address, city, province, fiscal_condition)
			  VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	var id int
	err := r.db.QueryRow(ctx, query, s.TenantId, s.Name, s.TaxId, s.Address, s.City, s.Province, s.FiscalCondition).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not insert supplier: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int, id int) (Supplier, error) {
	query := `SELECT id, tenant_id, name, tax_id, address, city, province, fiscal_condition
			  FROM supplier WHERE tenant_id = $1 AND id = $2`
	var s Supplier
	err := r.db.QueryRow(ctx, query, tenantId, id).Scan(
		&s.Id, &s.TenantId, &s.Name, &s.TaxId, &s.Address, &s.City, &s.Province, &s.FiscalCondition)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query supplier: %w", err)
		log.Error(err)
		return Supplier{}, err
	}
	return s, nil
}

func (r *RepositoryImpl) DeleteWithoutTaxId(ctx context.Context, tenantId int, id int) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM supplier WHERE tenant_id = $1 AND id = $2 AND tax_id IS NULL`, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not delete supplier: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
