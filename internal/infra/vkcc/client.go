package vkcc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sifan077/linkbot/config"
	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/sifan077/linkbot/internal/infra/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultBaseURL    = "https://api.vk.com/method"
	defaultAPIVersion = "5.199"
	defaultTimeout    = 10 * time.Second

	methodShorten = "utils.getShortLink"
	methodStats   = "utils.getLinkStats"

	// maxBodyBytes caps how much of a provider response is read.
	maxBodyBytes = 1 << 20
)

// Client talks to the vk.cc link shortener through the VK API.
// It keeps no state between calls and never retries.
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client from provider settings. Every request is bounded by
// cfg.Timeout and traced through otelhttp.
func New(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		apiVersion: version,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *apiError       `json:"error"`
}

type shortLinkResponse struct {
	ShortURL string `json:"short_url"`
	Key      string `json:"key"`
}

// Shorten returns the short URL for an absolute URL. The input is sent as is.
func (c *Client) Shorten(ctx context.Context, originalURL string) (string, error) {
	params := url.Values{}
	params.Set("url", originalURL)

	raw, err := c.call(ctx, "shorten", methodShorten, params)
	if err != nil {
		return "", err
	}

	var resp shortLinkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &ProviderError{Op: "shorten", Message: "malformed response", Err: err}
	}
	if resp.ShortURL == "" {
		return "", &ProviderError{Op: "shorten", Message: "response has no short_url"}
	}

	c.logger.Debug("link shortened",
		zap.String("url", originalURL),
		zap.String("short_url", resp.ShortURL),
	)
	return resp.ShortURL, nil
}

// GetStats returns all-time statistics for a provider key. A link without
// traffic yields a zero snapshot, not an error.
func (c *Client) GetStats(ctx context.Context, key string) (*model.StatsSnapshot, error) {
	params := url.Values{}
	params.Set("key", key)
	params.Set("extended", "1")
	params.Set("interval", "forever")

	raw, err := c.call(ctx, "stats", methodStats, params)
	if err != nil {
		return nil, err
	}

	var resp statsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProviderError{Op: "stats", Message: "malformed response", Err: err}
	}
	return resp.snapshot(), nil
}

func (c *Client) call(ctx context.Context, op, method string, params url.Values) (json.RawMessage, error) {
	start := time.Now()
	raw, err := c.do(ctx, op, method, params)
	prometheus.ProviderRequestDurationSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		prometheus.ProviderErrorsTotal.WithLabelValues(method).Inc()
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, op, method string, params url.Values) (json.RawMessage, error) {
	params.Set("access_token", c.token)
	params.Set("v", c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Op: op, Message: "build request", Err: withoutURL(err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: op, Message: transportMessage(err), Err: withoutURL(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if env.Error != nil {
		return nil, &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Code:       env.Error.Code,
			Message:    env.Error.Message,
		}
	}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: "empty response"}
	}
	return env.Response, nil
}

func transportMessage(err error) string {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return "request failed"
}
