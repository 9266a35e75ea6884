// Package search selects products by attribute equality. Filters combine with
// AND and never reorder results: matches come back in creation order.
package search

import (
	"fmt"
	"strings"

	"product-catalog/internal/products"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	columnName      = "name"
	columnCategory  = "category"
	columnAvailable = "available"
	columnPrice     = "price"
)

// Filter holds the attribute predicates of a search. A nil field is not
// constrained, so the zero Filter matches every product.
type Filter struct {
	Name      *string
	Category  *products.Category
	Available *bool
	Price     *decimal.Decimal
}

func (f Filter) Empty() bool {
	return f.Name == nil && f.Category == nil && f.Available == nil && f.Price == nil
}

func (f Filter) Matches(p products.Product) bool {
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	if f.Category != nil && p.Category != *f.Category {
		return false
	}
	if f.Available != nil && p.Available != *f.Available {
		return false
	}
	if f.Price != nil && !p.Price.Equal(*f.Price) {
		return false
	}
	return true
}

// Select returns the products matching f, preserving their order. The input
// slice is left untouched.
func Select(items []products.Product, f Filter) []products.Product {
	out := make([]products.Product, 0, len(items))
	for _, p := range items {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// Where renders f as a SQL boolean expression with positional placeholders
// numbered from firstArg ($1 style). An empty filter renders as "TRUE".
func (f Filter) Where(firstArg int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, firstArg+len(args)-1))
	}

	if f.Name != nil {
		add(columnName, *f.Name)
	}
	if f.Category != nil {
		add(columnCategory, string(*f.Category))
	}
	if f.Available != nil {
		add(columnAvailable, *f.Available)
	}
	if f.Price != nil {
		add(columnPrice, f.Price.String())
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

// Scope applies f to a GORM query. Price is compared against the canonical
// decimal string the GORM store persists.
func (f Filter) Scope(db *gorm.DB) *gorm.DB {
	if f.Name != nil {
		db = db.Where(columnName+" = ?", *f.Name)
	}
	if f.Category != nil {
		db = db.Where(columnCategory+" = ?", string(*f.Category))
	}
	if f.Available != nil {
		db = db.Where(columnAvailable+" = ?", *f.Available)
	}
	if f.Price != nil {
		db = db.Where(columnPrice+" = ?", f.Price.String())
	}
	return db
}
