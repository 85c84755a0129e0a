// Package geo resolves shop locations through a Nominatim geocoder.
//
// Every way of choosing a location (typing an address, using the device
// position, clicking the map) ends in Pick, which returns one Location.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/config"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/models"
	"buskalo-bff/internal/resilience"
	"buskalo-bff/internal/telemetry"

	"go.uber.org/zap"
)

var ErrNoResults = errors.New("no location found")

const (
	reverseTTL       = 24 * time.Hour
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
)

type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	breaker   *resilience.CircuitBreaker
	cache     cache.Store
}

func NewClient(cfg *config.Config, store cache.Store) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.NominatimURL, "/"),
		userAgent: cfg.GeocoderUserAgent,
		client:    &http.Client{Timeout: cfg.UpstreamTimeout},
		breaker:   resilience.NewCircuitBreaker("nominatim", breakerThreshold, breakerTimeout),
		cache:     store,
	}
}

type searchHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type reverseHit struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Search geocodes free text and returns the first hit.
func (c *Client) Search(ctx context.Context, query string) (*models.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResults
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)

	var hits []searchHit
	if err := c.get(ctx, "/search", "nominatim.search", params, &hits); err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, ErrNoResults
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", hits[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", hits[0].Lon, err)
	}
	return &models.Location{Latitude: lat, Longitude: lng, Address: hits[0].DisplayName}, nil
}

// Reverse returns the address at lat/lng. It never fails: without an answer
// the address is the coordinates themselves.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) string {
	key := fmt.Sprintf("geo:rev:%.5f,%.5f", lat, lng)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		return string(cached)
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))

	var hit reverseHit
	err := c.get(ctx, "/reverse", "nominatim.reverse", params, &hit)
	if err != nil || hit.DisplayName == "" {
		logger.FromContext(ctx).Debug("Reverse geocoding failed, using coordinates",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.String("nominatim_error", hit.Error),
			zap.Error(err))
		return Coordinates(lat, lng)
	}

	if err := c.cache.Set(ctx, key, []byte(hit.DisplayName), reverseTTL); err != nil {
		logger.FromContext(ctx).Warn("Failed to cache reverse lookup", zap.Error(err))
	}
	return hit.DisplayName
}

// Coordinates is the address used when nothing better is known.
func Coordinates(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

// PickRequest carries either coordinates (device position or map click)
// or an address to search. Coordinates win when both are set.
type PickRequest struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (c *Client) Pick(ctx context.Context, req PickRequest) (*models.Location, error) {
	if req.Latitude != nil && req.Longitude != nil {
		lat, lng := *req.Latitude, *req.Longitude
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return nil, fmt.Errorf("%w: coordinates out of range", ErrNoResults)
		}
		return &models.Location{Latitude: lat, Longitude: lng, Address: c.Reverse(ctx, lat, lng)}, nil
	}
	return c.Search(ctx, req.Address)
}

func (c *Client) get(ctx context.Context, path, endpoint string, params url.Values, target any) error {
	return c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			telemetry.ObserveUpstream(http.MethodGet, endpoint, 0, time.Since(start))
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		defer resp.Body.Close()
		telemetry.ObserveUpstream(http.MethodGet, endpoint, resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return nil
	})
}
