package snapshot

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

func init() {
	// Snapshots are exchanged and stored with plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// UnmarshalJSON accepts the unit cost either as "cost" or, for imported documents,
// as "unit_price".
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string           `json:"description"`
		Unit        string           `json:"unit"`
		Quantity    decimal.Decimal  `json:"quantity"`
		Cost        *decimal.Decimal `json:"cost"`
		UnitPrice   *decimal.Decimal `json:"unit_price"`
		Subtotal    decimal.Decimal  `json:"subtotal"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Item{
		Description: raw.Description,
		Unit:        raw.Unit,
		Quantity:    raw.Quantity,
		Subtotal:    raw.Subtotal,
	}
	switch {
	case raw.Cost != nil:
		i.UnitCost = *raw.Cost
	case raw.UnitPrice != nil:
		i.UnitCost = *raw.UnitPrice
	}
	return nil
}

// Parse decodes a persisted snapshot. An empty or null document yields nil.
func Parse(data []byte) (*Snapshot, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes a snapshot in its persisted shape.
func Marshal(s Snapshot) ([]byte, error) {
	sections := make([]Section, len(s.Sections))
	copy(sections, s.Sections)
	for i := range sections {
		if sections[i].Items == nil {
			sections[i].Items = []Item{}
		}
	}
	return json.Marshal(Snapshot{Sections: sections})
}
