package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"buskalo-bff/internal/config"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/resilience"
	"buskalo-bff/internal/telemetry"

	"go.uber.org/zap"
)

const (
	readAttempts = 3
	readDelay    = 300 * time.Millisecond
)

// ServiceClient talks to the market API (auth, shops, products, categories).
type ServiceClient struct {
	baseURL string
	client  *http.Client
}

func NewServiceClient(cfg *config.Config) *ServiceClient {
	return &ServiceClient{
		baseURL: strings.TrimRight(cfg.MarketAPIURL, "/"),
		client: &http.Client{
			Timeout: cfg.UpstreamTimeout,
		},
	}
}

type request struct {
	method      string
	path        string
	endpoint    string
	token       string
	body        []byte
	contentType string
}

func (s *ServiceClient) do(ctx context.Context, r request, target any) error {
	log := logger.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, r.method, s.baseURL+r.path, bytes.NewReader(r.body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		telemetry.ObserveUpstream(r.method, r.endpoint, 0, time.Since(start))
		log.Warn("Market API unreachable", zap.String("endpoint", r.endpoint), zap.Error(err))
		return fmt.Errorf("%s %s: %w", r.method, r.endpoint, err)
	}
	defer resp.Body.Close()
	telemetry.ObserveUpstream(r.method, r.endpoint, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, body)
		log.Info("Market API rejected request",
			zap.String("endpoint", r.endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if target == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s response: %w", r.endpoint, err)
	}
	return nil
}

// fetchJSON is an idempotent GET. Transport errors and 5xx answers are
// retried; anything else is returned on the first attempt.
func (s *ServiceClient) fetchJSON(ctx context.Context, path, endpoint, token string, target any) error {
	return resilience.Retry(ctx, readAttempts, readDelay, func() error {
		err := s.do(ctx, request{method: http.MethodGet, path: path, endpoint: endpoint, token: token}, target)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return resilience.Permanent(err)
		}
		return err
	})
}

func (s *ServiceClient) sendJSON(ctx context.Context, method, path, endpoint, token string, payload, target any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode %s payload: %w", endpoint, err)
		}
	}
	return s.do(ctx, request{
		method:      method,
		path:        path,
		endpoint:    endpoint,
		token:       token,
		body:        body,
		contentType: "application/json",
	}, target)
}

func (s *ServiceClient) sendForm(ctx context.Context, method, path, endpoint, token string, form *Form, target any) error {
	reader, contentType, err := form.encode()
	if err != nil {
		return fmt.Errorf("encode %s form: %w", endpoint, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	return s.do(ctx, request{
		method:      method,
		path:        path,
		endpoint:    endpoint,
		token:       token,
		body:        body,
		contentType: contentType,
	}, target)
}

// decodeList accepts a bare array or a {"results": [...]} pagination envelope.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		trimmed = envelope.Results
	}

	items := []T{}
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return items, nil
	}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func fetchList[T any](ctx context.Context, s *ServiceClient, path, endpoint string) ([]T, error) {
	var raw json.RawMessage
	if err := s.fetchJSON(ctx, path, endpoint, "", &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[T](raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s list: %w", endpoint, err)
	}
	return items, nil
}
