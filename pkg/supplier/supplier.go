package supplier

import "strings"

type Supplier struct {
	Id       int
	TenantId int
	Name     string
	// TaxId is the normalized tax id, nil when the input had none or it was malformed.
	TaxId           *string
	Address         string
	City            string
	Province        string
	FiscalCondition string
}

// Input is the supplier as extracted from a receipt. TaxId is raw.
type Input struct {
	Name            string
	TaxId           string
	Address         string
	City            string
	Province        string
	FiscalCondition string
}

// Resolution tells the caller which row the receipt should reference and whether this call
// created it. Deduped is false when the row has no tax id and can never be matched again.
type Resolution struct {
	Id      int
	Created bool
	Deduped bool
}

const taxIdDigits = 11

// NormalizeTaxId strips everything but digits and formats an 11 digit result as
// NN-NNNNNNNN-N. Any other digit count is not a tax id and is discarded.
func NormalizeTaxId(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != taxIdDigits {
		return "", false
	}
	return d[:2] + "-" + d[2:10] + "-" + d[10:], true
}
