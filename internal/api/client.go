package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "STATSVAULT_HTTP_TIMEOUT"
	adminTokenEnvKey   = "STATSVAULT_ADMIN_TOKEN"
)

// Client is a simple HTTP client for the statsvault API.
type Client struct {
	baseURL    string
	http       *http.Client
	adminToken string
}

// NewClient creates a new API client. The admin token is read from
// STATSVAULT_ADMIN_TOKEN.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// SetAdminToken overrides the admin bearer token.
func (c *Client) SetAdminToken(token string) {
	c.adminToken = strings.TrimSpace(token)
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, false)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, &resp, false)
	return resp, err
}

// Push uploads payload for id.
func (c *Client) Push(ctx context.Context, id string, payload []byte) error {
	return c.do(ctx, http.MethodPost, "/api/post/"+url.PathEscape(id), PushRequest{Payload: payload}, nil, false)
}

// Fetch downloads the payload for id, consuming one unit of its budget.
func (c *Client) Fetch(ctx context.Context, id, token string) (FetchResponse, error) {
	var resp FetchResponse
	path := "/api/get/" + url.PathEscape(id) + "/" + url.PathEscape(token)
	err := c.do(ctx, http.MethodGet, path, nil, &resp, false)
	return resp, err
}

// Admin runs an admin command. An empty arg targets all entries where the
// command allows it.
func (c *Client) Admin(ctx context.Context, command, arg string) (AdminResponse, error) {
	var resp AdminResponse
	path := "/api/adm/" + url.PathEscape(command)
	if arg != "" {
		path += "/" + url.PathEscape(arg)
	}
	err := c.do(ctx, http.MethodPost, path, nil, &resp, true)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, admin bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		c.setAdminHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = "api error: " + resp.Status
	return apiErr
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.adminToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
