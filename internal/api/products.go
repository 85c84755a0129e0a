package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/forms"
	"buskalo-bff/internal/search"
	"buskalo-bff/internal/services"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.catalog.Products(r.Context(), services.ProductQuery{ShopID: q.Get("shop_id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, search.Products(products, q.Get("q"), search.Grid))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	product, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

type productRequest struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Price           inputString `json:"price"`
	Stock           inputString `json:"stock"`
	Shop            int64       `json:"shop"`
	Category        *int64      `json:"category"`
	IsInfiniteStock bool        `json:"is_infinite_stock"`
	ImageUpload     string      `json:"image_upload"`
}

// productDraft replays the product modal: the keystroke rules for price and stock,
// then the picked image compressed into an attachment.
func (h *Handler) productDraft(ctx context.Context, req productRequest) (*forms.ProductDraft, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, badRequest("Name: This field is required.")
	}
	d := &forms.ProductDraft{
		Name:        req.Name,
		Description: req.Description,
		ShopID:      req.Shop,
		CategoryID:  req.Category,
		Infinite:    req.IsInfiniteStock,
	}
	if !d.SetPrice(string(req.Price)) {
		return nil, badRequest("Price: negative values are not allowed.")
	}
	if !d.SetStock(string(req.Stock)) {
		return nil, badRequest("Stock: must be a whole number, zero or more.")
	}
	if req.ImageUpload != "" {
		img, err := h.media.Attachment(ctx, auth.SessionID(ctx), req.ImageUpload, "product_image")
		if err != nil {
			return nil, err
		}
		d.Image = img
	}
	return d, nil
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	_, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	product, err := h.track(r, "product.create", func(ctx context.Context) (any, error) {
		d, err := h.productDraft(ctx, req)
		if err != nil {
			return nil, err
		}
		p, err := h.catalog.CreateProduct(ctx, token, d.Form())
		if err != nil {
			return nil, err
		}
		h.dropUpload(ctx, req.ImageUpload)
		return p, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	_, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	product, err := h.track(r, fmt.Sprintf("product.update:%d", id), func(ctx context.Context) (any, error) {
		d, err := h.productDraft(ctx, req)
		if err != nil {
			return nil, err
		}
		p, err := h.catalog.UpdateProduct(ctx, token, id, d.Form())
		if err != nil {
			return nil, err
		}
		h.dropUpload(ctx, req.ImageUpload)
		return p, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, err = h.track(r, fmt.Sprintf("product.delete:%d", id), func(ctx context.Context) (any, error) {
		return nil, h.catalog.DeleteProduct(ctx, token, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dropUpload(ctx context.Context, id string) {
	if id != "" {
		h.media.Discard(ctx, auth.SessionID(ctx), id)
	}
}
