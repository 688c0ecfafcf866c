package snapshot

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrItemIndex = errors.New("item index out of range")

// Snapshot is the full sections+items content of a budget at a point in time.
type Snapshot struct {
	Sections []Section `json:"sections"`
}

type Section struct {
	CategoryId int `json:"category_id"`
	// CategoryName is a copy taken when the section was created or last resynced. It is not
	// updated when the category is renamed, except through an explicit draft resync.
	CategoryName string `json:"category_name"`
	// IsAdditional splits change-order scope from the base scope.
	IsAdditional bool `json:"is_additional"`
	// Subtotal and Cost are optional overrides. A nil value means "derive from items",
	// a zero value is a legal override.
	Subtotal *decimal.Decimal `json:"subtotal,omitempty"`
	Cost     *decimal.Decimal `json:"cost,omitempty"`
	Items    []Item           `json:"items"`
}

type Item struct {
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"cost"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// EffectiveSubtotal returns the override when set, otherwise the sum of the item subtotals.
func (s Section) EffectiveSubtotal() decimal.Decimal {
	if s.Subtotal != nil {
		return *s.Subtotal
	}
	sum := decimal.Zero
	for _, item := range s.Items {
		sum = sum.Add(item.Subtotal)
	}
	return sum
}

// EffectiveCost returns the override when set, otherwise the sum of the derived item
// amounts (quantity × unit cost). Unlike the subtotal it ignores imported item subtotals.
func (s Section) EffectiveCost() decimal.Decimal {
	if s.Cost != nil {
		return *s.Cost
	}
	sum := decimal.Zero
	for _, item := range s.Items {
		sum = sum.Add(derivedAmount(item))
	}
	return sum
}

// AddItem appends item after recomputing its subtotal.
func (s *Section) AddItem(item Item) {
	s.Items = append(s.Items, RecomputeItem(item))
}

func (s *Section) SetItemQuantity(idx int, quantity decimal.Decimal) error {
	if idx < 0 || idx >= len(s.Items) {
		return ErrItemIndex
	}
	s.Items[idx].Quantity = quantity
	s.Items[idx] = RecomputeItem(s.Items[idx])
	return nil
}

func (s *Section) SetItemUnitCost(idx int, unitCost decimal.Decimal) error {
	if idx < 0 || idx >= len(s.Items) {
		return ErrItemIndex
	}
	s.Items[idx].UnitCost = unitCost
	s.Items[idx] = RecomputeItem(s.Items[idx])
	return nil
}

func (s *Section) RemoveItem(idx int) error {
	if idx < 0 || idx >= len(s.Items) {
		return ErrItemIndex
	}
	s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
	return nil
}

// FindSection returns the index of the section referencing categoryId, or -1.
func (s *Snapshot) FindSection(categoryId int) int {
	for idx, section := range s.Sections {
		if section.CategoryId == categoryId {
			return idx
		}
	}
	return -1
}

// RemoveSection removes the section referencing categoryId and returns it.
func (s *Snapshot) RemoveSection(categoryId int) (Section, bool) {
	idx := s.FindSection(categoryId)
	if idx == -1 {
		return Section{}, false
	}
	removed := s.Sections[idx]
	s.Sections = append(s.Sections[:idx:idx], s.Sections[idx+1:]...)
	return removed, true
}

// RenameCategory rewrites the denormalized name of the section referencing categoryId.
// It must only be applied to drafts.
func (s *Snapshot) RenameCategory(categoryId int, name string) bool {
	idx := s.FindSection(categoryId)
	if idx == -1 || s.Sections[idx].CategoryName == name {
		return false
	}
	s.Sections[idx].CategoryName = name
	return true
}

// Total is the sum of the effective section subtotals.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, section := range s.Sections {
		total = total.Add(section.EffectiveSubtotal())
	}
	return total
}

// TotalCost is the sum of the effective section costs.
func (s Snapshot) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, section := range s.Sections {
		total = total.Add(section.EffectiveCost())
	}
	return total
}

// Clone returns a deep copy. Decimal values are immutable and are shared.
func (s Snapshot) Clone() Snapshot {
	if s.Sections == nil {
		return Snapshot{}
	}
	sections := make([]Section, 0, len(s.Sections))
	for _, section := range s.Sections {
		c := section
		if section.Subtotal != nil {
			v := *section.Subtotal
			c.Subtotal = &v
		}
		if section.Cost != nil {
			v := *section.Cost
			c.Cost = &v
		}
		if section.Items != nil {
			c.Items = make([]Item, len(section.Items))
			copy(c.Items, section.Items)
		}
		sections = append(sections, c)
	}
	return Snapshot{Sections: sections}
}

// Equal compares two snapshots by value, treating decimals numerically.
func Equal(a, b Snapshot) bool {
	if len(a.Sections) != len(b.Sections) {
		return false
	}
	for i := range a.Sections {
		if !sectionEqual(a.Sections[i], b.Sections[i]) {
			return false
		}
	}
	return true
}

func sectionEqual(a, b Section) bool {
	if a.CategoryId != b.CategoryId ||
		a.CategoryName != b.CategoryName ||
		a.IsAdditional != b.IsAdditional ||
		!optionalEqual(a.Subtotal, b.Subtotal) ||
		!optionalEqual(a.Cost, b.Cost) ||
		len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if x.Description != y.Description ||
			x.Unit != y.Unit ||
			!x.Quantity.Equal(y.Quantity) ||
			!x.UnitCost.Equal(y.UnitCost) ||
			!x.Subtotal.Equal(y.Subtotal) {
			return false
		}
	}
	return true
}

func optionalEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
