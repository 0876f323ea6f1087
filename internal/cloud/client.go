// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// Configuration constants shared by all hosted adapters.
const (
	// DefaultTimeout matches the slowest hosted model observed in practice.
	DefaultTimeout = 120 * time.Second

	// DefaultRequestsPerMinute paces requests on the client side.
	DefaultRequestsPerMinute = 60

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "storyrun/0.1.0"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config configures a hosted adapter. Zero values take defaults.
type Config struct {
	// BaseURL overrides the provider's API root (tests point it at httptest)
	BaseURL string

	// APIKey is the provider secret; empty makes every call fail with ErrAuth
	APIKey string

	// Timeout bounds one HTTP round trip
	Timeout time.Duration

	// RequestsPerMinute paces calls; negative disables pacing
	RequestsPerMinute int

	// HTTPClient replaces the default pooled client
	HTTPClient *http.Client

	// Logger receives request/response lines; defaults to slog.Default()
	Logger *slog.Logger
}

// =============================================================================
// SHARED CLIENT
// =============================================================================

// client holds the HTTP plumbing every hosted adapter shares.
type client struct {
	id         string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func newClient(id, defaultBaseURL string, cfg Config) *client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rpm := cfg.RequestsPerMinute
	if rpm == 0 {
		rpm = DefaultRequestsPerMinute
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}

	return &client{
		id:         id,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger.With("component", "cloud", "provider", id),
	}
}

// newHTTPClient builds a pooled client that refuses TLS below 1.2.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// keyFingerprint returns a short SHA-256 fingerprint of the API key.
// SECURITY: Never log key fragments; the fingerprint identifies without exposing.
func (c *client) keyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// requireKey fails fast when no key is configured.
func (c *client) requireKey() error {
	if c.apiKey == "" {
		return provider.NewError(provider.KindAuth, c.id, "API key not configured")
	}
	return nil
}

// postJSON sends one JSON POST and returns the body of a 200 response.
// Every failure is returned as a *provider.Error, except context
// cancellation which is returned as ctx.Err().
func (c *client) postJSON(ctx context.Context, path string, payload any, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, provider.Wrap(provider.KindUnavailable, c.id, err, "rate limiter")
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, provider.Wrap(provider.KindModel, c.id, err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, provider.Wrap(provider.KindModel, c.id, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("api request", "method", req.Method, "path", req.URL.Path, "key_fp", c.keyFingerprint())
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("api request failed", "path", req.URL.Path, "duration", time.Since(start), "error", err)
		return nil, provider.Wrap(provider.KindUnavailable, c.id, err, "request failed")
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, provider.Wrap(provider.KindUnavailable, c.id, err, "failed to read response")
	}
	c.logger.Debug("api response", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(c.id, resp, body, time.Now())
	}
	return body, nil
}

// readResponse reads the response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// apiErrorBody covers the error envelopes of all three providers:
// OpenAI and Gemini nest under "error", Mistral puts "message" at the top.
type apiErrorBody struct {
	Error *struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
		Status  string          `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			Reason     string `json:"reason"`
			RetryDelay string `json:"retryDelay"`
		} `json:"details"`
	} `json:"error"`
	Message string `json:"message"`
}

// classifyStatus maps a non-200 response onto the error taxonomy.
func classifyStatus(id string, resp *http.Response, body []byte, now time.Time) error {
	msg, bodyDelay, authReason := parseErrorBody(body)
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || authReason:
		return provider.NewError(provider.KindAuth, id, "%s", msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), now)
		if wait == 0 {
			wait = bodyDelay
		}
		return provider.RateLimited(id, wait, msg)
	case resp.StatusCode >= 500:
		return &provider.Error{
			Kind:       provider.KindUnavailable,
			Provider:   id,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), now),
		}
	default:
		return provider.NewError(provider.KindModel, id, "HTTP %d: %s", resp.StatusCode, msg)
	}
}

// parseErrorBody extracts a message, a body-level retry delay, and whether the
// provider flagged the key itself as invalid.
func parseErrorBody(body []byte) (msg string, retryDelay time.Duration, authReason bool) {
	var env apiErrorBody
	if err := json.Unmarshal(body, &env); err != nil {
		return strings.TrimSpace(truncate(string(body), 200)), 0, false
	}
	if env.Error == nil {
		return env.Message, 0, false
	}
	for _, d := range env.Error.Details {
		if d.Reason == "API_KEY_INVALID" {
			authReason = true
		}
		if d.RetryDelay != "" {
			if dur, err := time.ParseDuration(d.RetryDelay); err == nil {
				retryDelay = dur
			}
		}
	}
	return env.Error.Message, retryDelay, authReason
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
// It returns zero when the header is absent or unusable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// emptyResult reports a filtered response that carried no text.
func emptyResult(id, reason string) error {
	if reason == "" {
		reason = "empty response"
	}
	return provider.NewError(provider.KindContentFiltered, id, "no text returned (%s)", reason)
}
