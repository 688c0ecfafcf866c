package user

import (
	"context"
	"fmt"

	"github.com/obrafin/obrafin/internal/apperr"
)

// RoleAuthorizer grants edit rights from the role of the user in the context.
type RoleAuthorizer struct{}

func (RoleAuthorizer) CanEdit(ctx context.Context) error {
	u, err := CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if !u.Role.CanEdit() {
		return fmt.Errorf("%w: role %s cannot edit", apperr.ErrForbidden, u.Role)
	}
	return nil
}
