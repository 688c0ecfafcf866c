package snapshot

import "github.com/shopspring/decimal"

// amountPlaces is the precision of every computed amount.
const amountPlaces = 2

// RecomputeItem sets the subtotal to quantity × unit cost, rounded to cents.
// A negative quantity or unit cost counts as zero. Input is expected to be rejected upstream; this
// function never fails.
func RecomputeItem(item Item) Item {
	item.Subtotal = derivedAmount(item)
	return item
}

// RecomputeSection recomputes every item. Overrides are kept as they are.
func RecomputeSection(section Section) Section {
	if section.Items == nil {
		section.Items = []Item{}
		return section
	}
	items := make([]Item, len(section.Items))
	for i, item := range section.Items {
		items[i] = RecomputeItem(item)
	}
	section.Items = items
	return section
}

// Recompute applies RecomputeSection to every section and returns the new snapshot.
// Use it on user-entered content only: imported item subtotals are authoritative and
// would be overwritten.
func Recompute(s Snapshot) Snapshot {
	sections := make([]Section, len(s.Sections))
	for i, section := range s.Sections {
		sections[i] = RecomputeSection(section)
	}
	return Snapshot{Sections: sections}
}

func derivedAmount(item Item) decimal.Decimal {
	quantity, unitCost := item.Quantity, item.UnitCost
	if quantity.IsNegative() {
		quantity = decimal.Zero
	}
	if unitCost.IsNegative() {
		unitCost = decimal.Zero
	}
	return quantity.Mul(unitCost).Round(amountPlaces)
}
