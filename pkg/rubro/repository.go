package rubro

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/apperr"
	log "github.com/sirupsen/logrus"
)

var ErrCategoryNotFound = fmt.Errorf("%w: category", apperr.ErrNotFound)

type Repository interface {
	// List returns the categories of a budget ordered by sort order.
	List(ctx context.Context, tenantId int, budgetId int) ([]Category, error)
	Get(ctx context.Context, tenantId int, id int) (Category, error)
	// Create stores the category after the last one and returns it with id and sort order.
	Create(ctx context.Context, category Category) (Category, error)
	Rename(ctx context.Context, tenantId int, id int, name string) (Category, error)
	UpdateSortOrder(ctx context.Context, tenantId int, id int, sortOrder int) error
	Delete(ctx context.Context, tenantId int, id int) error
	NamesByBudget(ctx context.Context, tenantId int, budgetId int) (map[int]string, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const categoryColumns = `id, tenant_id, budget_id, name, sort_order`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.Id, &c.TenantId, &c.BudgetId, &c.Name, &c.SortOrder)
	return c, err
}

func (r *RepositoryImpl) List(ctx context.Context, tenantId int, budgetId int) ([]Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM category WHERE tenant_id = $1 AND budget_id = $2 ORDER BY sort_order, id`
	rows, err := r.db.Query(ctx, query, tenantId, budgetId)
	if err != nil {
		err := fmt.Errorf("could not query categories: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return categories, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int, id int) (Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM category WHERE tenant_id = $1 AND id = $2`
	c, err := scanCategory(r.db.QueryRow(ctx, query, tenantId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query category: %w", err)
		log.Error(err)
		return Category{}, err
	}
	return c, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, category Category) (Category, error) {
	// the budget must belong to the tenant; sort order is appended after the last category
	query := `INSERT INTO category (tenant_id, budget_id, name, sort_order)
			  SELECT b.tenant_id, b.id, $3,
			         COALESCE((SELECT MAX(sort_order) FROM category WHERE budget_id = b.id), 0) + 100
			  FROM budget b WHERE b.id = $2 AND b.tenant_id = $1
			  RETURNING ` + categoryColumns
	c, err := scanCategory(r.db.QueryRow(ctx, query, category.TenantId, category.BudgetId, category.Name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, fmt.Errorf("%w: budget %d", apperr.ErrNotFound, category.BudgetId)
	}
	if err != nil {
		err := fmt.Errorf("could not create category: %w", err)
		log.Error(err)
		return Category{}, err
	}
	return c, nil
}

func (r *RepositoryImpl) Rename(ctx context.Context, tenantId int, id int, name string) (Category, error) {
	query := `UPDATE category SET name = $1 WHERE tenant_id = $2 AND id = $3 RETURNING ` + categoryColumns
	c, err := scanCategory(r.db.QueryRow(ctx, query, name, tenantId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not rename category: %w", err)
		log.Error(err)
		return Category{}, err
	}
	return c, nil
}

func (r *RepositoryImpl) UpdateSortOrder(ctx context.Context, tenantId int, id int, sortOrder int) error {
	result, err := r.db.Exec(ctx, `UPDATE category SET sort_order = $1 WHERE tenant_id = $2 AND id = $3`, sortOrder, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not update category position: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, tenantId int, id int) error {
	result, err := r.db.Exec(ctx, `DELETE FROM category WHERE tenant_id = $1 AND id = $2`, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not delete category: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *RepositoryImpl) NamesByBudget(ctx context.Context, tenantId int, budgetId int) (map[int]string, error) {
	categories, err := r.List(ctx, tenantId, budgetId)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(categories))
	for _, c := range categories {
		names[c.Id] = c.Name
	}
	return names, nil
}
