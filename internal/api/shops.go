package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/forms"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/models"
	"buskalo-bff/internal/search"
	"buskalo-bff/internal/services"

	"go.uber.org/zap"
)

func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shops, err := h.catalog.Shops(r.Context(), services.ShopQuery{Owner: q.Get("owner"), Status: q.Get("status")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, search.Shops(shops, q.Get("q"), search.Grid))
}

// MyShops lists the caller's shops, filtered by the status tab.
func (h *Handler) MyShops(w http.ResponseWriter, r *http.Request) {
	_, _, user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := models.ShopStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, badRequest("unknown status %q", status))
		return
	}

	shops, err := h.catalog.Shops(r.Context(), services.ShopQuery{Owner: strconv.FormatInt(user.ID, 10)})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, search.ShopsByStatus(shops, status))
}

// GetShop fetches the shop and its products concurrently. A failed
// product listing degrades to an empty one.
func (h *Handler) GetShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var (
		wg       sync.WaitGroup
		shop     *models.Shop
		shopErr  error
		products []models.Product
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		shop, shopErr = h.catalog.Shop(ctx, id)
	}()

	go func() {
		defer wg.Done()
		res, err := h.catalog.Products(ctx, services.ProductQuery{ShopID: strconv.FormatInt(id, 10)})
		if err != nil {
			log.Warn("Shop products fallback", zap.Int64("shop_id", id), zap.Error(err))
			products = []models.Product{}
		} else {
			products = res
		}
	}()

	wg.Wait()

	if shopErr != nil {
		writeError(w, r, shopErr)
		return
	}
	writeJSON(w, http.StatusOK, models.ShopPage{Shop: shop, Products: products})
}

// shopRequest mirrors the new-shop page and the edit-shop modal. Fields
// left out of an edit stay as they are upstream.
type shopRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Location    *string  `json:"location"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	IsPhysical  *bool    `json:"is_physical"`
	Status      *string  `json:"status"`
	ImageUpload string   `json:"image_upload"`
}

func (h *Handler) shopDraft(ctx context.Context, sid string, req shopRequest) (*forms.ShopDraft, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, badRequest("Name: This field is required.")
	}
	d := &forms.ShopDraft{
		Name:        *req.Name,
		Description: deref(req.Description),
		Location:    deref(req.Location),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		IsPhysical:  true,
		Status:      models.ShopActive,
	}
	if req.IsPhysical != nil {
		d.IsPhysical = *req.IsPhysical
	}
	if req.Status != nil {
		d.Status = models.ShopStatus(*req.Status)
		if !d.Status.Valid() {
			return nil, badRequest("Status: %q is not a valid choice.", *req.Status)
		}
	}
	img, err := h.shopImage(ctx, sid, req.ImageUpload)
	if err != nil {
		return nil, err
	}
	d.Image = img
	return d, nil
}

func (h *Handler) shopPatch(ctx context.Context, sid string, req shopRequest) (*forms.ShopPatch, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, badRequest("Name: This field may not be blank.")
	}
	p := &forms.ShopPatch{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		IsPhysical:  req.IsPhysical,
	}
	if req.Status != nil {
		status := models.ShopStatus(*req.Status)
		if !status.Valid() {
			return nil, badRequest("Status: %q is not a valid choice.", *req.Status)
		}
		p.Status = &status
	}
	img, err := h.shopImage(ctx, sid, req.ImageUpload)
	if err != nil {
		return nil, err
	}
	p.Image = img
	return p, nil
}

func (h *Handler) shopImage(ctx context.Context, sid, upload string) (*services.File, error) {
	if upload == "" {
		return nil, nil
	}
	return h.media.Attachment(ctx, sid, upload, "shop_image")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateShop launches (status active) or saves a draft.
func (h *Handler) CreateShop(w http.ResponseWriter, r *http.Request) {
	var req shopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	_, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	shop, err := h.track(r, "shop.create", func(ctx context.Context) (any, error) {
		d, err := h.shopDraft(ctx, auth.SessionID(ctx), req)
		if err != nil {
			return nil, err
		}
		s, err := h.catalog.CreateShop(ctx, token, d.Form())
		if err != nil {
			return nil, err
		}
		h.dropUpload(ctx, req.ImageUpload)
		return s, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shop)
}

func (h *Handler) UpdateShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req shopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	_, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	shop, err := h.track(r, fmt.Sprintf("shop.update:%d", id), func(ctx context.Context) (any, error) {
		p, err := h.shopPatch(ctx, auth.SessionID(ctx), req)
		if err != nil {
			return nil, err
		}
		s, err := h.catalog.UpdateShop(ctx, token, id, p.Form())
		if err != nil {
			return nil, err
		}
		h.dropUpload(ctx, req.ImageUpload)
		return s, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (h *Handler) DeleteShop(w http.ResponseWriter, r *http.Request) {
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

	_, err = h.track(r, fmt.Sprintf("shop.delete:%d", id), func(ctx context.Context) (any, error) {
		return nil, h.catalog.DeleteShop(ctx, token, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status models.ShopStatus `json:"status"`
}

// SetShopStatus publishes, deactivates or reactivates a shop. Only the
// status field is sent upstream. An empty body toggles the current status.
func (h *Handler) SetShopStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		writeError(w, r, badRequest("Status: %q is not a valid choice.", req.Status))
		return
	}
	_, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	shop, err := h.track(r, fmt.Sprintf("shop.status:%d", id), func(ctx context.Context) (any, error) {
		status := req.Status
		if status == "" {
			current, err := h.catalog.Shop(ctx, id)
			if err != nil {
				return nil, err
			}
			status = current.Status.Toggle()
		}
		return h.catalog.UpdateShop(ctx, token, id, forms.StatusForm(status))
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// ResetShop deletes every product of the shop. The body must carry
// {"confirm": true}.
func (h *Handler) ResetShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req resetRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Confirm {
		writeError(w, r, badRequest("Reset must be confirmed."))
		return
	}
	_, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, err = h.track(r, fmt.Sprintf("shop.reset:%d", id), func(ctx context.Context) (any, error) {
		return nil, h.catalog.ResetShop(ctx, token, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Shop reset."})
}
