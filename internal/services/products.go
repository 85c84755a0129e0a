package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"buskalo-bff/internal/models"
)

type ProductQuery struct {
	ShopID string
}

func (q ProductQuery) encode() string {
	v := url.Values{}
	if q.ShopID != "" {
		v.Set("shop_id", q.ShopID)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (s *ServiceClient) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	return fetchList[models.Product](ctx, s, "/market/products/"+q.encode(), "products.list")
}

func (s *ServiceClient) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := s.fetchJSON(ctx, fmt.Sprintf("/market/products/%d/", id), "products.get", "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ServiceClient) CreateProduct(ctx context.Context, token string, form *Form) (*models.Product, error) {
	var p models.Product
	if err := s.sendForm(ctx, http.MethodPost, "/market/products/", "products.create", token, form, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ServiceClient) UpdateProduct(ctx context.Context, token string, id int64, form *Form) (*models.Product, error) {
	var p models.Product
	path := fmt.Sprintf("/market/products/%d/", id)
	if err := s.sendForm(ctx, http.MethodPatch, path, "products.update", token, form, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ServiceClient) DeleteProduct(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/market/products/%d/", id)
	return s.sendJSON(ctx, http.MethodDelete, path, "products.delete", token, nil, nil)
}

func (s *ServiceClient) ListCategories(ctx context.Context) ([]models.Category, error) {
	return fetchList[models.Category](ctx, s, "/market/categories/", "categories.list")
}
