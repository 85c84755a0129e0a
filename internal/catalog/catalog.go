// Package catalog is the one fetching layer every view reads the market
// through. Reads are cached under catalog:* keys and concurrent identical
// reads share one upstream call; mutations drop the keys they affect.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/models"
	"buskalo-bff/internal/services"
	"buskalo-bff/internal/telemetry"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	productPrefix = "catalog:product"
	shopPrefix    = "catalog:shop"
	categoriesKey = "catalog:categories"
)

// Market is the part of the marketplace API the catalog wraps.
type Market interface {
	ListProducts(ctx context.Context, q services.ProductQuery) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, token string, form *services.Form) (*models.Product, error)
	UpdateProduct(ctx context.Context, token string, id int64, form *services.Form) (*models.Product, error)
	DeleteProduct(ctx context.Context, token string, id int64) error
	ListCategories(ctx context.Context) ([]models.Category, error)

	ListShops(ctx context.Context, q services.ShopQuery) ([]models.Shop, error)
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	CreateShop(ctx context.Context, token string, form *services.Form) (*models.Shop, error)
	UpdateShop(ctx context.Context, token string, id int64, form *services.Form) (*models.Shop, error)
	DeleteShop(ctx context.Context, token string, id int64) error
	ResetShop(ctx context.Context, token string, id int64) error
}

type Catalog struct {
	market      Market
	store       cache.Store
	ttl         time.Duration
	categoryTTL time.Duration
	group       singleflight.Group
}

func New(market Market, store cache.Store, ttl, categoryTTL time.Duration) *Catalog {
	return &Catalog{
		market:      market,
		store:       store,
		ttl:         ttl,
		categoryTTL: categoryTTL,
	}
}

func (c *Catalog) Products(ctx context.Context, q services.ProductQuery) ([]models.Product, error) {
	key := fmt.Sprintf("%ss:shop=%s", productPrefix, q.ShopID)
	return cached(ctx, c, key, c.ttl, func(ctx context.Context) ([]models.Product, error) {
		return c.market.ListProducts(ctx, q)
	})
}

func (c *Catalog) Product(ctx context.Context, id int64) (*models.Product, error) {
	key := fmt.Sprintf("%s:%d", productPrefix, id)
	return cached(ctx, c, key, c.ttl, func(ctx context.Context) (*models.Product, error) {
		return c.market.GetProduct(ctx, id)
	})
}

func (c *Catalog) Categories(ctx context.Context) ([]models.Category, error) {
	return cached(ctx, c, categoriesKey, c.categoryTTL, c.market.ListCategories)
}

func (c *Catalog) Shops(ctx context.Context, q services.ShopQuery) ([]models.Shop, error) {
	key := fmt.Sprintf("%ss:owner=%s&status=%s", shopPrefix, q.Owner, q.Status)
	return cached(ctx, c, key, c.ttl, func(ctx context.Context) ([]models.Shop, error) {
		return c.market.ListShops(ctx, q)
	})
}

func (c *Catalog) Shop(ctx context.Context, id int64) (*models.Shop, error) {
	key := fmt.Sprintf("%s:%d", shopPrefix, id)
	return cached(ctx, c, key, c.ttl, func(ctx context.Context) (*models.Shop, error) {
		return c.market.GetShop(ctx, id)
	})
}

func (c *Catalog) CreateProduct(ctx context.Context, token string, form *services.Form) (*models.Product, error) {
	p, err := c.market.CreateProduct(ctx, token, form)
	if err == nil {
		c.invalidate(ctx, productPrefix, shopPrefix)
	}
	return p, err
}

func (c *Catalog) UpdateProduct(ctx context.Context, token string, id int64, form *services.Form) (*models.Product, error) {
	p, err := c.market.UpdateProduct(ctx, token, id, form)
	if err == nil {
		c.invalidate(ctx, productPrefix, shopPrefix)
	}
	return p, err
}

func (c *Catalog) DeleteProduct(ctx context.Context, token string, id int64) error {
	err := c.market.DeleteProduct(ctx, token, id)
	if err == nil {
		c.invalidate(ctx, productPrefix, shopPrefix)
	}
	return err
}

func (c *Catalog) CreateShop(ctx context.Context, token string, form *services.Form) (*models.Shop, error) {
	s, err := c.market.CreateShop(ctx, token, form)
	if err == nil {
		c.invalidate(ctx, shopPrefix)
	}
	return s, err
}

// UpdateShop also carries status changes.
func (c *Catalog) UpdateShop(ctx context.Context, token string, id int64, form *services.Form) (*models.Shop, error) {
	s, err := c.market.UpdateShop(ctx, token, id, form)
	if err == nil {
		c.invalidate(ctx, shopPrefix)
	}
	return s, err
}

func (c *Catalog) DeleteShop(ctx context.Context, token string, id int64) error {
	err := c.market.DeleteShop(ctx, token, id)
	if err == nil {
		c.invalidate(ctx, shopPrefix)
	}
	return err
}

// ResetShop wipes the shop's products, so both families go.
func (c *Catalog) ResetShop(ctx context.Context, token string, id int64) error {
	err := c.market.ResetShop(ctx, token, id)
	if err == nil {
		c.invalidate(ctx, productPrefix, shopPrefix)
	}
	return err
}

func (c *Catalog) invalidate(ctx context.Context, prefixes ...string) {
	for _, prefix := range prefixes {
		if err := c.store.DeletePrefix(ctx, prefix); err != nil {
			logger.FromContext(ctx).Warn("Catalog invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

func cached[T any](ctx context.Context, c *Catalog, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	log := logger.FromContext(ctx)

	data, err := c.store.Get(ctx, key)
	if err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			telemetry.CacheHit()
			return v, nil
		}
		log.Warn("Dropping undecodable cache entry", zap.String("key", key))
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	telemetry.CacheMiss()

	// Shared by every caller waiting on key, so it must outlive any one of them.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		v, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(v); err == nil {
			if err := c.store.Set(shared, key, data, ttl); err != nil {
				log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
