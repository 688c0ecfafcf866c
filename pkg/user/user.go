package user

type User struct {
	Id          int
	Uid         string
	TenantId    int
	Username    string
	DisplayName string
	Role        Role
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// CanEdit reports whether the role may change budgets, categories and ledger entries.
func (r Role) CanEdit() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor:
		return true
	default:
		return false
	}
}
