package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test fixtures and mock data
const (
	testAPIKey    = "vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A"
	testAPISecret = "NhqPtmdSJYdKjVHjA3PG944xQGzGpFydS0VuTc1iYiwC0ik9muMGm49ntzK1tdCK"

	testServerDate = "Tue, 02 Jan 2024 15:04:05 GMT"
)

var (
	rateLimitResponse = `{"code":-1003,"msg":"Too many requests; current limit is 12000 request weight per minute."}`

	serverErrorResponse = `{"code":-1000,"msg":"An unknown error occurred while processing the request."}`
)

// Test utilities
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createMockServer(responses map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if handler, exists := responses[path]; exists {
			handler(w, r)
		} else {
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(serverURL string, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithBaseURL(serverURL),
		WithLogger(createTestLogger()),
		WithRateLimit(1000, 1000),
	}
	return NewClient(testAPIKey, testAPISecret, append(base, opts...)...)
}

func TestNewClient(t *testing.T) {
	t.Run("creates client with default configuration", func(t *testing.T) {
		client := NewClient(testAPIKey, testAPISecret)

		assert.NotNil(t, client)
		assert.NotNil(t, client.httpClient)
		assert.NotNil(t, client.rateLimiter)
		assert.Equal(t, defaultBaseURL, client.baseURL)
		assert.Equal(t, defaultRecvWindow, client.recvWindow)
		assert.Equal(t, requestTimeout, client.httpClient.Timeout)
		assert.NotNil(t, client.logger)
	})

	t.Run("applies options", func(t *testing.T) {
		logger := createTestLogger()
		client := NewClient(testAPIKey, testAPISecret,
			WithBaseURL("https://api.binance.us/"),
			WithLogger(logger),
			WithTimeout(10*time.Second),
			WithRecvWindow(20*time.Second),
		)

		assert.Equal(t, "https://api.binance.us", client.baseURL)
		assert.Equal(t, logger, client.logger)
		assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
		assert.Equal(t, 20*time.Second, client.recvWindow)
	})
}

func TestClient_SignedRequest(t *testing.T) {
	ctx := context.Background()

	var capturedQuery string
	var capturedAPIKey string

	server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
		depositHistoryEndpoint: func(w http.ResponseWriter, r *http.Request) {
			capturedQuery = r.URL.RawQuery
			capturedAPIKey = r.Header.Get("X-MBX-APIKEY")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[]`))
		},
	})
	defer server.Close()

	client := newTestClient(server.URL)
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }

	_, err := client.Deposits(ctx, 1704067200000, 1706745600000)
	require.NoError(t, err)

	assert.Equal(t, testAPIKey, capturedAPIKey)

	// The signature must cover the exact encoded query that was sent.
	idx := strings.Index(capturedQuery, "&signature=")
	require.Greater(t, idx, 0, "query %q carries no signature", capturedQuery)
	payload := capturedQuery[:idx]
	signature := capturedQuery[idx+len("&signature="):]

	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write([]byte(payload))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), signature)

	assert.Contains(t, payload, "timestamp=1700000000000")
	assert.Contains(t, payload, "recvWindow=5000")
	assert.Contains(t, payload, "startTime=1704067200000")
	assert.Contains(t, payload, "endTime=1706745600000")
}

func TestClient_APIError(t *testing.T) {
	ctx := context.Background()

	t.Run("rate limit error carries code and server time", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			convertTradesEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Date", testServerDate)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(rateLimitResponse))
			},
		})
		defer server.Close()

		client := newTestClient(server.URL)

		_, err := client.ConvertTrades(ctx, 0, 1)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		assert.Equal(t, int64(codeTooManyRequests), apiErr.Code)
		assert.Contains(t, apiErr.Message, "Too many requests")
		assert.True(t, apiErr.RateLimited())

		expected, parseErr := http.ParseTime(testServerDate)
		require.NoError(t, parseErr)
		assert.True(t, apiErr.ServerTime.Equal(expected))
	})

	t.Run("server error is not classified as rate limiting", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			fiatOrdersEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(serverErrorResponse))
			},
		})
		defer server.Close()

		client := newTestClient(server.URL)

		_, err := client.FiatWithdrawals(ctx, 0, 1)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, int64(-1000), apiErr.Code)
		assert.False(t, apiErr.RateLimited())
	})

	t.Run("non-JSON error body becomes the message", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			depositHistoryEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("upstream unavailable\n"))
			},
		})
		defer server.Close()

		client := newTestClient(server.URL)

		_, err := client.Deposits(ctx, 0, 1)
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, int64(0), apiErr.Code)
		assert.Equal(t, "upstream unavailable", apiErr.Message)
	})
}

func TestClient_Ping(t *testing.T) {
	ctx := context.Background()

	t.Run("returns server clock from Date header", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			pingEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Date", testServerDate)
				w.Write([]byte(`{}`))
			},
		})
		defer server.Close()

		client := newTestClient(server.URL)

		serverTime, err := client.Ping(ctx)
		require.NoError(t, err)

		expected, parseErr := http.ParseTime(testServerDate)
		require.NoError(t, parseErr)
		assert.True(t, serverTime.Equal(expected))
		assert.Equal(t, 4, serverTime.Minute())
	})

	t.Run("ping is unsigned", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			pingEndpoint: func(w http.ResponseWriter, r *http.Request) {
				assert.Empty(t, r.URL.RawQuery)
				w.Write([]byte(`{}`))
			},
		})
		defer server.Close()

		client := newTestClient(server.URL)

		_, err := client.Ping(ctx)
		require.NoError(t, err)
	})

	t.Run("propagates provider errors", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			pingEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(serverErrorResponse))
			},
		})
		defer server.Close()

		client := newTestClient(server.URL)

		_, err := client.Ping(ctx)
		require.Error(t, err)

		var apiErr *APIError
		assert.ErrorAs(t, err, &apiErr)
	})
}

func TestClient_HealthCheck(t *testing.T) {
	t.Run("passes when ping succeeds", func(t *testing.T) {
		server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
			pingEndpoint: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			},
		})
		defer server.Close()

		client := newTestClient(server.URL)
		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("fails when the API is unreachable", func(t *testing.T) {
		server := createMockServer(nil)
		server.Close()

		client := newTestClient(server.URL)
		assert.Error(t, client.HealthCheck(context.Background()))
	})
}

func TestClient_ContextCancellation(t *testing.T) {
	server := createMockServer(map[string]func(w http.ResponseWriter, r *http.Request){
		pingEndpoint: func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{}`))
		},
	})
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Ping(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline"))
}

func TestParseServerDate(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		expected time.Time
	}{
		{
			name:     "valid_rfc1123_date",
			date:     "Tue, 02 Jan 2024 15:04:05 GMT",
			expected: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			name:     "missing_header",
			date:     "",
			expected: time.Time{},
		},
		{
			name:     "unparseable_header",
			date:     "not a date",
			expected: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.date != "" {
				header.Set("Date", tt.date)
			}

			got := parseServerDate(header)
			assert.True(t, got.Equal(tt.expected), "got %v, want %v", got, tt.expected)
		})
	}
}
