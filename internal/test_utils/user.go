package test_utils

import (
	"context"

	"github.com/obrafin/obrafin/pkg/user"
)

// TestUser is the owner of tenant 1 used by service tests.
var TestUser = user.User{
	Id:          123,
	Uid:         "test-user-uid",
	TenantId:    1,
	Username:    "test_user",
	DisplayName: "Test User",
	Role:        user.RoleOwner,
}

// ContextWithUser returns a context carrying TestUser, optionally with another role.
func ContextWithUser(roles ...user.Role) context.Context {
	u := TestUser
	if len(roles) > 0 {
		u.Role = roles[0]
	}
	return user.WithUser(context.Background(), u)
}

// ContextForTenant returns a context carrying an owner of the given tenant.
func ContextForTenant(ctx context.Context, userId, tenantId int) context.Context {
	u := TestUser
	u.Id = userId
	u.TenantId = tenantId
	return user.WithUser(ctx, u)
}
