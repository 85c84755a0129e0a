package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"buskalo-bff/internal/models"
)

type ShopQuery struct {
	Owner  string
	Status string
}

func (q ShopQuery) encode() string {
	v := url.Values{}
	if q.Owner != "" {
		v.Set("owner", q.Owner)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (s *ServiceClient) ListShops(ctx context.Context, q ShopQuery) ([]models.Shop, error) {
	return fetchList[models.Shop](ctx, s, "/market/shops/"+q.encode(), "shops.list")
}

func (s *ServiceClient) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	if err := s.fetchJSON(ctx, fmt.Sprintf("/market/shops/%d/", id), "shops.get", "", &shop); err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *ServiceClient) CreateShop(ctx context.Context, token string, form *Form) (*models.Shop, error) {
	var shop models.Shop
	if err := s.sendForm(ctx, http.MethodPost, "/market/shops/", "shops.create", token, form, &shop); err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *ServiceClient) UpdateShop(ctx context.Context, token string, id int64, form *Form) (*models.Shop, error) {
	var shop models.Shop
	path := fmt.Sprintf("/market/shops/%d/", id)
	if err := s.sendForm(ctx, http.MethodPatch, path, "shops.update", token, form, &shop); err != nil {
		return nil, err
	}
	return &shop, nil
}

func (s *ServiceClient) DeleteShop(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/market/shops/%d/", id)
	return s.sendJSON(ctx, http.MethodDelete, path, "shops.delete", token, nil, nil)
}

// ResetShop asks the API to wipe the shop's products. The body must confirm.
func (s *ServiceClient) ResetShop(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/market/shops/%d/reset/", id)
	payload := map[string]bool{"confirm": true}
	return s.sendJSON(ctx, http.MethodPost, path, "shops.reset", token, payload, nil)
}
