package search

import (
	"testing"

	"buskalo-bff/internal/models"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func names[T any](items []T, name func(T) string) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, name(it))
	}
	return out
}

func productNames(ps []models.Product) []string {
	return names(ps, func(p models.Product) string { return p.Name })
}

func TestProducts_Scenario(t *testing.T) {
	products := []models.Product{
		{ID: 1, Name: "Red Mug", ShopName: strPtr("Cafe Co")},
		{ID: 2, Name: "Blue Plate", ShopName: strPtr("Home Depot")},
	}

	assert.Equal(t, []string{"Red Mug"}, productNames(Products(products, "red", Grid)))
	assert.Equal(t, []string{"Blue Plate"}, productNames(Products(products, "depot", Grid)))
	assert.Equal(t, []string{}, productNames(Products(products, "xyz", Grid)))
}

func TestProducts_MatchesAnyFieldAndKeepsOrder(t *testing.T) {
	products := []models.Product{
		{ID: 1, Name: "Lamp", CategoryName: strPtr("Hogar")},
		{ID: 2, Name: "Chair", Description: "solid oak, great for the hogar"},
		{ID: 3, Name: "Hogar kit"},
		{ID: 4, Name: "Spoon", ShopName: strPtr("HOGAR Store")},
		{ID: 5, Name: "Unrelated", Description: "nothing here"},
	}

	got := Products(products, "hogar", Grid)

	assert.Equal(t, []string{"Lamp", "Chair", "Hogar kit", "Spoon"}, productNames(got))
}

func TestProducts_MissingFieldsNeverMatch(t *testing.T) {
	products := []models.Product{
		{ID: 1, Name: "Mug", CategoryName: nil, ShopName: nil},
	}

	assert.Empty(t, Products(products, "general", Grid))
	assert.Len(t, Products(products, "MUG", Grid), 1)
}

func TestFilter_BlankQuery(t *testing.T) {
	products := []models.Product{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	for _, q := range []string{"", "   ", "\t\n"} {
		assert.Len(t, Products(products, q, Grid), 3, "grid shows everything for %q", q)
		assert.Empty(t, Products(products, q, Dropdown), "dropdown shows nothing for %q", q)
	}
}

func TestFilter_DropdownCapsResults(t *testing.T) {
	var products []models.Product
	for i := 0; i < 8; i++ {
		products = append(products, models.Product{ID: int64(i), Name: "mug"})
	}

	got := Products(products, "mug", Dropdown)

	assert.Len(t, got, 5)
	assert.Equal(t, int64(0), got[0].ID)
	assert.Equal(t, int64(4), got[4].ID)
	assert.Len(t, Products(products, "mug", Grid), 8)
}

func TestFilter_CaseFoldsUnicode(t *testing.T) {
	shops := []models.Shop{
		{Name: "Panadería Ñandú", Location: "Córdoba"},
	}

	assert.Len(t, Shops(shops, "ñandú", Grid), 1)
	assert.Len(t, Shops(shops, "CÓRDOBA", Grid), 1)
}

func TestShops_Fields(t *testing.T) {
	shops := []models.Shop{
		{ID: 1, Name: "Tech Store", Location: "Lima"},
		{ID: 2, Name: "Fashion", Description: "ropa y tech"},
		{ID: 3, Name: "Bakery", OwnerUsername: "tech"},
	}

	got := Shops(shops, "tech", Grid)

	assert.Equal(t, []string{"Tech Store", "Fashion"}, names(got, func(s models.Shop) string { return s.Name }))
}

func TestFilter_DoesNotAliasInput(t *testing.T) {
	products := []models.Product{{Name: "a"}, {Name: "b"}}
	got := Products(products, "", Grid)
	got[0].Name = "changed"
	assert.Equal(t, "a", products[0].Name)
}

func TestInstant_SelectsCollectionByMode(t *testing.T) {
	products := []models.Product{{Name: "Tech mug"}}
	shops := []models.Shop{{Name: "Tech Store"}}

	resp := Instant(products, shops, "tech", ParseMode("shops"), Dropdown)
	assert.Equal(t, "shops", resp.Mode)
	assert.Len(t, resp.Shops, 1)
	assert.Nil(t, resp.Products)

	resp = Instant(products, shops, "tech", ParseMode("bogus"), Dropdown)
	assert.Equal(t, "products", resp.Mode)
	assert.Len(t, resp.Products, 1)
}

func TestShopsByStatus(t *testing.T) {
	shops := []models.Shop{
		{ID: 1, Status: models.ShopActive},
		{ID: 2, Status: models.ShopDraft},
		{ID: 3, Status: models.ShopActive},
	}

	assert.Len(t, ShopsByStatus(shops, ""), 3)
	assert.Len(t, ShopsByStatus(shops, models.ShopActive), 2)
	assert.Equal(t, int64(2), ShopsByStatus(shops, models.ShopDraft)[0].ID)
}
