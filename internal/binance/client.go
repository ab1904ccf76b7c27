// Package binance provides the REST client for the Binance account-history
// endpoints used by the exporter.
//
// The client signs SAPI requests with the account's HMAC key pair, paces every
// call through a shared rate limiter, and surfaces provider failures as typed
// APIErrors carrying the server clock read from the response Date header.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	// Binance API base URL
	defaultBaseURL = "https://api.binance.com"

	// API endpoints
	fiatOrdersEndpoint     = "/sapi/v1/fiat/orders"
	convertTradesEndpoint  = "/sapi/v1/convert/tradeFlow"
	depositHistoryEndpoint = "/sapi/v1/capital/deposit/hisrec"
	pingEndpoint           = "/api/v3/ping"

	// Rate limiting configuration
	maxRequestsPerSecond = 10
	rateLimitBurst       = 1

	// Request configuration
	requestTimeout    = 30 * time.Second
	defaultRecvWindow = 5 * time.Second
	userAgent         = "binance-export/1.0"

	// Provider error code for request-rate violations
	codeTooManyRequests = -1003

	// Health check configuration
	healthCheckTimeout = 5 * time.Second
)

// APIError represents an error response from the provider. It carries the
// HTTP status, the provider's numeric error code and message, and the server
// clock parsed from the response Date header, so callers never need to reach
// back into the transport for header state.
type APIError struct {
	StatusCode int
	Code       int64
	Message    string
	ServerTime time.Time
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("binance: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("binance: status %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the error is a request-rate violation, either
// by HTTP status or by the provider's dedicated error code.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == codeTooManyRequests
}

// Client is a Binance REST client scoped to the account-history surface.
// A single Client (one HTTP connection pool, one limiter) is meant to be
// shared across all calls of an export run.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	apiSecret   string
	recvWindow  time.Duration
	logger      *slog.Logger

	// now is the clock used for request signing, replaceable in tests.
	now func() time.Time
}

// ClientOption customizes a Client during construction.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, primarily for tests and mirrors.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit reconfigures the client-side pacing limiter.
func WithRateLimit(requestsPerSecond float64, burst int) ClientOption {
	return func(c *Client) {
		c.rateLimiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithRecvWindow sets the signed-request receive window.
func WithRecvWindow(window time.Duration) ClientOption {
	return func(c *Client) {
		c.recvWindow = window
	}
}

// NewClient creates a Binance client for the given API key pair.
func NewClient(apiKey, apiSecret string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(maxRequestsPerSecond), rateLimitBurst),
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		recvWindow:  defaultRecvWindow,
		logger:      slog.Default(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WaitForLimit blocks until the pacing limiter permits the next request.
func (c *Client) WaitForLimit(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// Ping performs the cheapest always-available call and returns the provider's
// clock as reported by the response Date header. It is the status operation
// the fetcher polls during a clock-resync wait.
func (c *Client) Ping(ctx context.Context) (time.Time, error) {
	_, serverTime, err := c.do(ctx, pingEndpoint, nil, false)
	if err != nil {
		return serverTime, fmt.Errorf("ping failed: %w", err)
	}
	if serverTime.IsZero() {
		return serverTime, fmt.Errorf("ping response carried no Date header")
	}
	return serverTime, nil
}

// HealthCheck verifies the API is reachable within a short timeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if _, err := c.Ping(healthCtx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	c.logger.Debug("health check passed")
	return nil
}

// do performs one GET request against the API. It returns the response body
// together with the server clock parsed from the Date header; error responses
// come back as *APIError so callers can classify them without inspecting the
// transport.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values, signed bool) ([]byte, time.Time, error) {
	if err := c.WaitForLimit(ctx); err != nil {
		return nil, time.Time{}, fmt.Errorf("rate limit wait failed: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}

	query := params.Encode()
	if signed {
		query = c.signedQuery(params)
	}

	requestURL := c.baseURL + endpoint
	if query != "" {
		requestURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	serverTime := parseServerDate(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serverTime, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := newAPIError(resp.StatusCode, serverTime, body)
		c.logger.Debug("request failed",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"code", apiErr.Code)
		return nil, serverTime, apiErr
	}

	c.logger.Debug("request completed",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(body))

	return body, serverTime, nil
}

// signedQuery adds the timestamp and receive window, encodes the parameters,
// and appends the HMAC-SHA256 signature the SAPI endpoints require. The
// signature is computed over the exact encoded query that is sent.
func (c *Client) signedQuery(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}

	query := params.Encode()
	return query + "&signature=" + c.sign(query)
}

func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func newAPIError(statusCode int, serverTime time.Time, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		ServerTime: serverTime,
	}

	var payload struct {
		Code int64  `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Msg != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Msg
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}

// parseServerDate extracts the server clock from a response Date header.
// A missing or unparseable header yields the zero time.
func parseServerDate(header http.Header) time.Time {
	date := header.Get("Date")
	if date == "" {
		return time.Time{}
	}

	t, err := http.ParseTime(date)
	if err != nil {
		return time.Time{}
	}

	return t
}
