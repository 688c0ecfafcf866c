// Package rubro is the per-budget directory of categories. Sections of a budget snapshot
// reference categories by id and keep a copy of their name.
package rubro

// Category is a budget line category ("rubro").
type Category struct {
	Id        int
	TenantId  int
	BudgetId  int
	Name      string
	SortOrder int
}
