package snapshot

import (
	"fmt"

	"github.com/obrafin/obrafin/internal/apperr"
)

const (
	RuleEmptySections     = "sections.empty"
	RuleMissingCategory   = "section.category.missing"
	RuleDuplicateCategory = "section.category.duplicate"
	RuleNegativeQuantity  = "item.quantity.negative"
)

// Validate checks the rules a snapshot must satisfy to be published. It reports every
// violation at once and never repairs the snapshot.
func Validate(s Snapshot) error {
	shapeErr := &apperr.ShapeError{}
	if len(s.Sections) == 0 {
		shapeErr.Add(RuleEmptySections, "sections", "budget has no sections")
	}

	seen := make(map[int]int, len(s.Sections))
	for i, section := range s.Sections {
		path := fmt.Sprintf("sections[%d]", i)
		if section.CategoryId <= 0 {
			shapeErr.Add(RuleMissingCategory, path, "section has no category")
		} else if first, ok := seen[section.CategoryId]; ok {
			shapeErr.Add(RuleDuplicateCategory, path,
				fmt.Sprintf("category %d already used by sections[%d]", section.CategoryId, first))
		} else {
			seen[section.CategoryId] = i
		}

		for j, item := range section.Items {
			if item.Quantity.IsNegative() {
				shapeErr.Add(RuleNegativeQuantity, fmt.Sprintf("%s.items[%d]", path, j),
					fmt.Sprintf("quantity %s is negative", item.Quantity))
			}
		}
	}
	return shapeErr.OrNil()
}
