// Package crm is the HTTP client of the external CRM the sync workers replicate into.
package crm

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

	"github.com/patrickmn/go-cache"

	"wash-sync-backend/config"
	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/model"
)

// CRM object paths.
const (
	PathUser        = "/v1/d/appAccount"
	PathOrder       = "/v1/d/orders"
	PathOrderItem   = "/v1/d/orderItems"
	PathTransaction = "/v1/d/transaction"
	PathRefund      = "/v1/d/refund"
	PathCampaign    = "/v1/d/campaigns"
)

const tokenKey = "access_token"

// PathFor returns the CRM object path of a sync type.
func PathFor(t model.SyncType) (string, error) {
	switch t {
	case model.SyncTypeUser:
		return PathUser, nil
	case model.SyncTypeOrder:
		return PathOrder, nil
	case model.SyncTypeOrderItem:
		return PathOrderItem, nil
	case model.SyncTypeOrderTransaction:
		return PathTransaction, nil
	case model.SyncTypeRefund:
		return PathRefund, nil
	case model.SyncTypeCampaign:
		return PathCampaign, nil
	default:
		return "", fmt.Errorf("unsupported sync type: %s", t)
	}
}

// APIError is a non-2xx reply from the CRM.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the CRM with a cached password-grant token.
type Client struct {
	cfg    config.CRMConfig
	client *http.Client
	tokens *cache.Cache
	mu     sync.Mutex
	log    logger.Logger
}

// NewClient creates a CRM client. Every call is bounded by cfg.Timeout.
func NewClient(cfg config.CRMConfig, log logger.Logger) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warnf(context.Background(), "invalid crm proxy URL %q: %v; calling the crm directly", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		tokens: cache.New(cache.NoExpiration, time.Minute),
		log:    log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns the cached token, fetching a new one when absent.
// Concurrent callers share a single renewal.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(tokenKey); ok {
		return tok.(string), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok, ok := c.tokens.Get(tokenKey); ok {
		return tok.(string), nil
	}
	return c.renewToken(ctx)
}

// renewToken must be called with c.mu held.
func (c *Client) renewToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.cfg.ClientID)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response carries no access_token")
	}

	ttl := cache.NoExpiration
	if tok.ExpiresIn > 0 {
		ttl = time.Duration(tok.ExpiresIn) * time.Second
	}
	c.tokens.Set(tokenKey, tok.AccessToken, ttl)
	return tok.AccessToken, nil
}

// forceRenew drops a token the CRM rejected and fetches a new one, unless
// another caller already replaced it.
func (c *Client) forceRenew(ctx context.Context, rejected string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok, ok := c.tokens.Get(tokenKey); ok && tok.(string) != rejected {
		return tok.(string), nil
	}
	c.tokens.Delete(tokenKey)
	return c.renewToken(ctx)
}

// do sends one JSON request. A 401 renews the token and retries once.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
	}

	tok, err := c.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get crm token: %w", err)
	}

	body, status, err := c.send(ctx, method, path, payload, tok)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.log.Warnf(ctx, "crm rejected the access token on %s %s; renewing", method, path)
		if tok, err = c.forceRenew(ctx, tok); err != nil {
			return fmt.Errorf("failed to renew crm token: %w", err)
		}
		if body, status, err = c.send(ctx, method, path, payload, tok); err != nil {
			return err
		}
	}
	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, Body: string(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal crm response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, tok string) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("x-nc-tenant", c.cfg.Tenant)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
