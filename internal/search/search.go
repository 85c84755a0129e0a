// Package search filters in-memory product and shop collections by free text.
//
// Matching is a case-folded substring test over a fixed list of fields per
// record type. Any field matching qualifies the record; there is no scoring,
// and results keep the order of the input collection.
package search

import (
	"strings"

	"buskalo-bff/internal/models"

	"golang.org/x/text/cases"
)

type Mode string

const (
	ModeProducts Mode = "products"
	ModeShops    Mode = "shops"
)

// ParseMode defaults to products for anything it does not recognise.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeShops {
		return ModeShops
	}
	return ModeProducts
}

type Options struct {
	// EmptyMatchesAll returns the whole collection for a blank query instead of nothing.
	EmptyMatchesAll bool
	// Limit caps the result count. Zero means no cap.
	Limit int
}

var (
	// Grid filters a visible catalog grid.
	Grid = Options{EmptyMatchesAll: true}
	// Dropdown populates the instant-search suggestions.
	Dropdown = Options{Limit: 5}
)

// Filter returns the items with at least one field containing query.
// fields may return nil entries for absent values; those never match.
func Filter[T any](items []T, query string, fields func(T) []*string, opts Options) []T {
	if strings.TrimSpace(query) == "" {
		if !opts.EmptyMatchesAll {
			return []T{}
		}
		return capped(items, opts.Limit)
	}

	folder := cases.Fold()
	needle := folder.String(query)

	out := []T{}
	for _, item := range items {
		if matches(folder, needle, fields(item)) {
			out = append(out, item)
			if opts.Limit > 0 && len(out) == opts.Limit {
				break
			}
		}
	}
	return out
}

func matches(folder cases.Caser, needle string, fields []*string) bool {
	for _, f := range fields {
		if f == nil || *f == "" {
			continue
		}
		if strings.Contains(folder.String(*f), needle) {
			return true
		}
	}
	return false
}

func capped[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// ProductFields lists name, description, category name and shop name.
func ProductFields(p models.Product) []*string {
	return []*string{&p.Name, &p.Description, p.CategoryName, p.ShopName}
}

// ShopFields lists name, description and location.
func ShopFields(s models.Shop) []*string {
	return []*string{&s.Name, &s.Description, &s.Location}
}

func Products(items []models.Product, query string, opts Options) []models.Product {
	return Filter(items, query, ProductFields, opts)
}

func Shops(items []models.Shop, query string, opts Options) []models.Shop {
	return Filter(items, query, ShopFields, opts)
}

// Instant backs the unified search widget: only the collection selected by
// mode is filtered.
func Instant(products []models.Product, shops []models.Shop, query string, mode Mode, opts Options) models.SearchResponse {
	resp := models.SearchResponse{Mode: string(mode), Query: query}
	switch mode {
	case ModeShops:
		resp.Shops = Shops(shops, query, opts)
	default:
		resp.Mode = string(ModeProducts)
		resp.Products = Products(products, query, opts)
	}
	return resp
}

// ShopsByStatus backs the status tabs on the owner's shop list. An empty
// status keeps every shop.
func ShopsByStatus(shops []models.Shop, status models.ShopStatus) []models.Shop {
	out := []models.Shop{}
	for _, s := range shops {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out
}
