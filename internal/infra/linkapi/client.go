package linkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/model"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 5 * time.Second
	maxErrorBody   = 512
)

// Client talks to the remote link service. Every call is a single attempt:
// no retries, no backoff, no caching.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for failed calls.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("linkapi")
		}
	}
}

// New builds a client for the service rooted at cfg.BaseURL.
func New(cfg config.ServiceConfig, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("linkapi: invalid base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createRequest struct {
	Origin string `json:"origin"`
}

type createResponse struct {
	ID string `json:"id"`
}

type resolveResponse struct {
	Origin string `json:"origin"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// Create asks the service to mint a short id for originalURL. Not idempotent.
func (c *Client) Create(ctx context.Context, originalURL string) (string, error) {
	body, err := json.Marshal(createRequest{Origin: originalURL})
	if err != nil {
		return "", fmt.Errorf("linkapi: encode create request: %w", err)
	}

	var out createResponse
	status, err := c.do(ctx, http.MethodPost, "/short", body, &out)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			return "", fmt.Errorf("%w: %w", model.ErrValidation, err)
		}
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: create: response has no id", model.ErrNetwork)
	}
	return out.ID, nil
}

// Resolve returns the destination behind shortID.
func (c *Client) Resolve(ctx context.Context, shortID string) (string, error) {
	var out resolveResponse
	status, err := c.do(ctx, http.MethodGet, "/short/"+url.PathEscape(shortID), nil, &out)
	if err != nil {
		if status == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", model.ErrNotFound, shortID)
		}
		return "", err
	}
	if out.Origin == "" {
		return "", fmt.Errorf("%w: %s resolved to an empty destination", model.ErrNotFound, shortID)
	}
	return out.Origin, nil
}

// ClickCount returns the current click counter of shortID.
func (c *Client) ClickCount(ctx context.Context, shortID string) (int64, error) {
	var out countResponse
	if _, err := c.do(ctx, http.MethodGet, "/view/"+url.PathEscape(shortID), nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// do performs one request. Any failure is wrapped in model.ErrNetwork; the
// returned status lets callers refine the kind.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%w: build %s %s: %w", model.ErrNetwork, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		c.logger.Debug("link service unreachable",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, fmt.Errorf("%w: %s %s: %w", model.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("link service rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", bytes.TrimSpace(snippet)))
		return resp.StatusCode, fmt.Errorf("%w: %s %s: status %d: %s",
			model.ErrNetwork, method, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode %s %s: %w", model.ErrNetwork, method, path, err)
	}
	return resp.StatusCode, nil
}
