package api

import (
	"net/http"

	"buskalo-bff/internal/models"
	"buskalo-bff/internal/search"
	"buskalo-bff/internal/services"
)

// Search backs the instant-search dropdown. Only the collection picked by
// mode is fetched.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	mode := search.ParseMode(q.Get("mode"))

	opts := search.Dropdown
	if h.dropdown > 0 {
		opts.Limit = h.dropdown
	}

	var (
		products []models.Product
		shops    []models.Shop
		err      error
	)
	switch mode {
	case search.ModeShops:
		shops, err = h.catalog.Shops(r.Context(), services.ShopQuery{})
	default:
		products, err = h.catalog.Products(r.Context(), services.ProductQuery{})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, search.Instant(products, shops, query, mode, opts))
}
