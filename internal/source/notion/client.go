// Package notion implements source.Provider over the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
)

const (
	DefaultBaseURL  = "https://api.notion.com"
	DefaultVersion  = "2022-06-28"
	DefaultPageSize = 100

	defaultMaxRetries = 3
	defaultRetryAfter = time.Second
	maxRetryAfter     = 30 * time.Second
)

// Properties names the database columns the entry fields are read from.
type Properties struct {
	Title       string
	URL         string
	Status      string
	PublishDate string
	Type        string
}

// DefaultProperties match the column names of the reading-list template.
func DefaultProperties() Properties {
	return Properties{
		Title:       "Title",
		URL:         "URL",
		Status:      "Status",
		PublishDate: "Publish Date",
		Type:        "Type",
	}
}

// Config holds Notion connection settings.
type Config struct {
	Token      string
	DatabaseID string
	BaseURL    string
	Version    string
	PageSize   int
	Properties Properties
	// StatusType is the Notion property type of the status column:
	// "select" (default) or "status".
	StatusType string
	// PublishedValue is the option name that means published.
	PublishedValue string
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: http %d", e.Status)
	}
	return fmt.Sprintf("notion: http %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == apperr.ErrNotFound && e.Status == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMaxRetries sets how often a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// Client talks to one Notion database.
type Client struct {
	cfg        Config
	http       *http.Client
	logger     *slog.Logger
	maxRetries int
}

// New creates a Client, filling unset config fields with defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("notion: token is required")
	}
	if strings.TrimSpace(cfg.DatabaseID) == "" {
		return nil, errors.New("notion: database id is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.PageSize <= 0 || cfg.PageSize > DefaultPageSize {
		cfg.PageSize = DefaultPageSize
	}
	def := DefaultProperties()
	if cfg.Properties.Title == "" {
		cfg.Properties.Title = def.Title
	}
	if cfg.Properties.URL == "" {
		cfg.Properties.URL = def.URL
	}
	if cfg.Properties.Status == "" {
		cfg.Properties.Status = def.Status
	}
	if cfg.Properties.PublishDate == "" {
		cfg.Properties.PublishDate = def.PublishDate
	}
	if cfg.Properties.Type == "" {
		cfg.Properties.Type = def.Type
	}
	if cfg.StatusType == "" {
		cfg.StatusType = "select"
	}
	if cfg.PublishedValue == "" {
		cfg.PublishedValue = "Published"
	}

	c := &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		maxRetries: defaultMaxRetries,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// do sends a JSON request and decodes the response into out. Rate-limited
// requests are retried after the server's Retry-After delay.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notion: marshal request: %w", err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, reader)
		if err != nil {
			return fmt.Errorf("notion: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Notion-Version", c.cfg.Version)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("notion: %s %s: %w", method, endpoint, err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("notion: read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn("notion: rate limited",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt+1),
				slog.Duration("wait", wait),
			)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode}
			_ = json.Unmarshal(data, apiErr)
			apiErr.Status = resp.StatusCode
			return apiErr
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("notion: decode response: %w", err)
		}
		return nil
	}
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
