// Package oracleclient reaches a remote inventory oracle over HTTP. It is the
// store.InventoryOracle a cart grid terminal uses when stock lives on a
// back-office server.
package oracleclient

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
	"sync"
	"time"

	"go.uber.org/zap"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/httpapi"
	"centropos/backend/internal/store"
)

var ErrUnauthorized = errors.New("oracle rejected credentials")

type Options struct {
	Username   string
	Password   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client logs in lazily and keeps the bearer token until the server answers
// 401, at which point it logs in again once and retries.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *zap.Logger

	mu    sync.Mutex
	token string
}

func New(baseURL string, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		http:     opts.HTTPClient,
		logger:   opts.Logger.Named("oracle-client"),
	}
}

func (c *Client) LookupUomDetails(ctx context.Context, itemCode string) ([]domain.UomDetail, error) {
	var body domain.UomListResponse
	err := c.get(ctx, "/api/v1/items/"+url.PathEscape(itemCode)+"/uoms", store.ErrUnknownItem, &body)
	if err != nil && !errors.Is(err, store.ErrStale) {
		return nil, err
	}
	return body.Uoms, err
}

func (c *Client) LookupStockByLocation(ctx context.Context, itemCode string) ([]domain.LocationStock, error) {
	var body domain.StockResponse
	err := c.get(ctx, "/api/v1/items/"+url.PathEscape(itemCode)+"/stock", store.ErrUnknownItem, &body)
	if err != nil && !errors.Is(err, store.ErrStale) {
		return nil, err
	}
	return body.Locations, err
}

func (c *Client) DefaultLocation(ctx context.Context) (string, error) {
	var body domain.DefaultLocationResponse
	err := c.get(ctx, "/api/v1/locations/default", store.ErrNoDefaultStore, &body)
	if err != nil && !errors.Is(err, store.ErrStale) {
		return "", err
	}
	return body.Location, err
}

// get fetches path into dest. notFound is the error a 404 maps to. A response
// marked stale is decoded and reported with store.ErrStale.
func (c *Client) get(ctx context.Context, path string, notFound error, dest any) error {
	resp, err := c.authorized(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return notFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", store.ErrOracleUnavailable, readError(resp.Body))
	default:
		return fmt.Errorf("oracle answered %d: %s", resp.StatusCode, readError(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", store.ErrOracleUnavailable, path, err)
	}
	if resp.Header.Get(httpapi.StaleHeader) == "true" {
		return store.ErrStale
	}
	return nil
}

func (c *Client) authorized(ctx context.Context, path string) (*http.Response, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, path, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	c.logger.Info("token rejected, logging in again")
	c.mu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
	if token, err = c.currentToken(ctx); err != nil {
		return nil, err
	}
	return c.send(ctx, path, token)
}

func (c *Client) send(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unreachable(ctx, err)
	}
	return resp, nil
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	payload, err := json.Marshal(domain.LoginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", unreachable(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: login: %s", store.ErrOracleUnavailable, readError(resp.Body))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, readError(resp.Body))
	}

	var login domain.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	c.token = login.AccessToken
	return c.token, nil
}

func unreachable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", store.ErrOracleUnavailable, ctxErr)
	}
	return fmt.Errorf("%w: %v", store.ErrOracleUnavailable, err)
}

func readError(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(body, 4<<10))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
