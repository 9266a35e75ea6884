package products

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	keyID          = "id"
	keyName        = "name"
	keyDescription = "description"
	keyPrice       = "price"
	keyAvailable   = "available"
	keyCategory    = "category"
)

var payloadKeys = map[string]bool{
	keyID:          true,
	keyName:        true,
	keyDescription: true,
	keyPrice:       true,
	keyAvailable:   true,
	keyCategory:    true,
}

// Serialize returns the flat key-value form of p. Price is rendered as a
// decimal string so no precision is lost on the wire.
func (p Product) Serialize() map[string]any {
	return map[string]any{
		keyID:          p.ID,
		keyName:        p.Name,
		keyDescription: p.Description,
		keyPrice:       p.Price.String(),
		keyAvailable:   p.Available,
		keyCategory:    string(p.Category),
	}
}

// Deserialize builds a validated Product from a decoded JSON object. Numbers
// may arrive as json.Number (decoder.UseNumber) or float64. Any unknown key,
// missing name or price, or mistyped value rejects the whole payload.
func Deserialize(payload any) (Product, error) {
	data, ok := payload.(map[string]any)
	if !ok {
		return Product{}, invalid("", "payload must be a JSON object")
	}

	var unknown []string
	for key := range data {
		if !payloadKeys[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Product{}, invalid(unknown[0], "is not a product field")
	}

	var p Product

	if raw, ok := data[keyID]; ok && raw != nil {
		id, err := parseID(raw)
		if err != nil {
			return Product{}, err
		}
		p.ID = id
	}

	raw, ok := data[keyName]
	if !ok {
		return Product{}, invalid(keyName, "is required")
	}
	name, ok := raw.(string)
	if !ok {
		return Product{}, invalid(keyName, "must be a string")
	}
	p.Name = name

	if raw, ok := data[keyDescription]; ok && raw != nil {
		description, ok := raw.(string)
		if !ok {
			return Product{}, invalid(keyDescription, "must be a string")
		}
		p.Description = description
	}

	raw, ok = data[keyPrice]
	if !ok || raw == nil {
		return Product{}, invalid(keyPrice, "is required")
	}
	price, err := ParsePrice(raw)
	if err != nil {
		return Product{}, err
	}
	p.Price = price

	if raw, ok := data[keyAvailable]; ok && raw != nil {
		available, ok := raw.(bool)
		if !ok {
			return Product{}, invalid(keyAvailable, "must be a boolean")
		}
		p.Available = available
	}

	if raw, ok := data[keyCategory]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return Product{}, invalid(keyCategory, "must be a string")
		}
		category, err := ParseCategory(s)
		if err != nil {
			return Product{}, err
		}
		p.Category = category
	}

	p = p.Normalized()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Normalized trims the name and fills in the UNKNOWN category.
func (p Product) Normalized() Product {
	p.Name = strings.TrimSpace(p.Name)
	if p.Category == "" {
		p.Category = CategoryUnknown
	}
	return p
}

const (
	// Prices fit NUMERIC(18,4): at most 14 integer and 4 fractional digits.
	maxPriceScale     = 4
	maxPriceDigits    = 18
	maxPriceTextBytes = 40
)

var maxPrice = decimal.New(1, maxPriceDigits-maxPriceScale)

// ParsePrice coerces a JSON number or a numeric string into a non-negative
// decimal. Surrounding blanks and double quotes are stripped from strings, so
// `  12.50 ` and `"12.50"` both parse.
func ParsePrice(raw any) (decimal.Decimal, error) {
	var (
		price decimal.Decimal
		err   error
	)
	switch v := raw.(type) {
	case decimal.Decimal:
		price = v
	case json.Number:
		price, err = parsePriceText(v.String())
	case string:
		price, err = parsePriceText(trimPrice(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, invalid(keyPrice, "must be a number")
		}
		price = decimal.NewFromFloat(v)
	case int:
		price = decimal.NewFromInt(int64(v))
	case int64:
		price = decimal.NewFromInt(v)
	default:
		return decimal.Decimal{}, invalid(keyPrice, "must be a number")
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := checkPrice(price); err != nil {
		return decimal.Decimal{}, err
	}
	return price, nil
}

// parsePriceText refuses long inputs before parsing; exponent notation such
// as "1e50000000" would otherwise expand to millions of digits later on.
func parsePriceText(s string) (decimal.Decimal, error) {
	if len(s) > maxPriceTextBytes {
		return decimal.Decimal{}, invalid(keyPrice, "is too long")
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, invalid(keyPrice, "must be a number")
	}
	return price, nil
}

// checkPrice bounds sign, magnitude and scale. The exponent is checked first
// so the comparisons below never expand a huge coefficient.
func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return invalid(keyPrice, "must not be negative")
	}
	if exp := price.Exponent(); exp < -maxPriceDigits || exp > maxPriceDigits || price.NumDigits() > 2*maxPriceDigits {
		return invalid(keyPrice, "is out of range")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return invalid(keyPrice, "must be less than "+maxPrice.String())
	}
	if !price.Equal(price.Truncate(maxPriceScale)) {
		return invalid(keyPrice, "must have at most 4 decimal places")
	}
	return nil
}

func trimPrice(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

func parseID(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return 0, invalid(keyID, "must be an integer")
		}
		return id, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= 1<<63 {
			return 0, invalid(keyID, "must be an integer")
		}
		return int64(v), nil
	default:
		return 0, invalid(keyID, "must be an integer")
	}
}
