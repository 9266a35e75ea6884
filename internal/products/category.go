package products

import (
	"regexp"
	"strings"
)

// Category classifies a product. The set is open: the constants below are the
// values the catalog ships with, any other well-formed tag is accepted too.
type Category string

const (
	CategoryUnknown    Category = "UNKNOWN"
	CategoryCloths     Category = "CLOTHS"
	CategoryFood       Category = "FOOD"
	CategoryHousewares Category = "HOUSEWARES"
	CategoryAutomotive Category = "AUTOMOTIVE"
	CategoryTools      Category = "TOOLS"
)

var categoryPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,62}$`)

// ParseCategory accepts upper-case tags such as "FOOD" or "GARDEN_TOOLS".
// Case is significant; "food" is rejected rather than normalized.
func ParseCategory(raw string) (Category, error) {
	raw = strings.TrimSpace(raw)
	if !categoryPattern.MatchString(raw) {
		return "", invalid("category", "must be an upper-case tag like FOOD")
	}
	return Category(raw), nil
}

func (c Category) valid() bool {
	return categoryPattern.MatchString(string(c))
}
