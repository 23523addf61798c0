package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/otterable/minifitna/internal/models"
)

// Timeout bounds every call to the backend. A timed-out call fails like any
// other network error and is not retried.
const Timeout = 15 * time.Second

const maxErrorBody = 4 << 10

// Client talks to the minifitna backend over JSON/HTTP. A bearer token is
// attached to every request once a session exists. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the given base URL (no trailing slash
// required).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: Timeout},
	}
}

// SetToken installs the session token attached to subsequent requests.
// An empty token clears the session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Ping performs one liveness call. Any error, including a non-2xx status,
// means the backend is down.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/ping", nil, nil, nil)
}

// Register creates an account and returns the session token.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	return c.authCall(ctx, "/api/register", username, password)
}

// Login authenticates and returns the session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	return c.authCall(ctx, "/api/login", username, password)
}

func (c *Client) authCall(ctx context.Context, path, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &ParseError{Op: path, Err: fmt.Errorf("response carried no token")}
	}
	return out.Token, nil
}

// ListWeights fetches weight entries, optionally bounded by ISO dates.
func (c *Client) ListWeights(ctx context.Context, start, end string) ([]models.WeightEntry, error) {
	var out []models.WeightEntry
	if err := c.do(ctx, http.MethodGet, "/api/weights", rangeQuery(start, end), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertWeight records or replaces the weight for a day.
func (c *Client) UpsertWeight(ctx context.Context, entry models.WeightEntry) error {
	return c.do(ctx, http.MethodPost, "/api/weights", nil, entry, nil)
}

// ListRuns fetches run entries, optionally bounded by ISO dates.
func (c *Client) ListRuns(ctx context.Context, start, end string) ([]models.RunEntry, error) {
	var out []models.RunEntry
	if err := c.do(ctx, http.MethodGet, "/api/runs", rangeQuery(start, end), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertRun records or replaces the run for a day.
func (c *Client) UpsertRun(ctx context.Context, entry models.RunEntry) error {
	return c.do(ctx, http.MethodPost, "/api/runs", nil, entry, nil)
}

// Me fetches the profile record.
func (c *Client) Me(ctx context.Context) (models.Profile, error) {
	var out models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, nil, &out); err != nil {
		return models.Profile{}, err
	}
	return out, nil
}

// UpdateMe replaces the profile record and returns the stored result.
func (c *Client) UpdateMe(ctx context.Context, p models.Profile) (models.Profile, error) {
	var out models.Profile
	if err := c.do(ctx, http.MethodPut, "/api/me", nil, p, &out); err != nil {
		return models.Profile{}, err
	}
	return out, nil
}

// Summary fetches the aggregated dashboard payload.
func (c *Client) Summary(ctx context.Context) (models.Summary, error) {
	var out models.Summary
	if err := c.do(ctx, http.MethodGet, "/api/summary", nil, nil, &out); err != nil {
		return models.Summary{}, err
	}
	return out, nil
}

func rangeQuery(start, end string) url.Values {
	q := url.Values{}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	return q
}

// do performs one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(diag))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ParseError{Op: path, Err: err}
		}
	}
	return nil
}
