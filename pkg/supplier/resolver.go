package supplier

import (
	"context"
	"fmt"
	"strings"

	"github.com/obrafin/obrafin/internal/apperr"
	log "github.com/sirupsen/logrus"
)

const RuleMissingName = "supplier.name.missing"

type Resolver interface {
	// Resolve finds or creates the supplier row a receipt should reference.
	Resolve(ctx context.Context, tenantId int, in Input) (Resolution, error)
	// DeleteOrphan undoes a Resolve that created a supplier without tax id. Other
	// resolutions are left alone since the row may be referenced elsewhere.
	DeleteOrphan(ctx context.Context, tenantId int, res Resolution) error
}

type ResolverImpl struct {
	repo Repository
}

func NewResolver(repo Repository) *ResolverImpl {
	return &ResolverImpl{repo: repo}
}

func (r *ResolverImpl) Resolve(ctx context.Context, tenantId int, in Input) (Resolution, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		shapeErr := &apperr.ShapeError{}
		shapeErr.Add(RuleMissingName, "supplier.name", "supplier name is required")
		return Resolution{}, shapeErr
	}
	s := Supplier{
		TenantId:        tenantId,
		Name:            name,
		Address:         strings.TrimSpace(in.Address),
		City:            strings.TrimSpace(in.City),
		Province:        strings.TrimSpace(in.Province),
		FiscalCondition: strings.TrimSpace(in.FiscalCondition),
	}

	taxId, ok := NormalizeTaxId(in.TaxId)
	if !ok {
		if in.TaxId != "" {
			log.Debugf("discarding malformed tax id %q of supplier %q", in.TaxId, name)
		}
		id, err := r.repo.Insert(ctx, s)
		if err != nil {
			return Resolution{}, fmt.Errorf("could not insert supplier %q: %w", name, err)
		}
		return Resolution{Id: id, Created: true, Deduped: false}, nil
	}

	s.TaxId = &taxId
	id, inserted, err := r.repo.Upsert(ctx, s)
	if err != nil {
		return Resolution{}, fmt.Errorf("could not upsert supplier %s: %w", taxId, err)
	}
	return Resolution{Id: id, Created: inserted, Deduped: true}, nil
}

func (r *ResolverImpl) DeleteOrphan(ctx context.Context, tenantId int, res Resolution) error {
	if !res.Created || res.Deduped || res.Id == 0 {
		return nil
	}
	deleted, err := r.repo.DeleteWithoutTaxId(ctx, tenantId, res.Id)
	if err != nil {
		return fmt.Errorf("could not delete supplier %d: %w", res.Id, err)
	}
	if !deleted {
		log.Warnf("supplier %d was not deleted, it no longer exists or got a tax id", res.Id)
	}
	return nil
}
