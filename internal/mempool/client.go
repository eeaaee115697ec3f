package mempool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

const (
	// DefaultBaseURL is the public mempool.space instance.
	DefaultBaseURL = "https://mempool.space"
	// RankingsPath is the versioned connectivity ranking endpoint.
	RankingsPath = "/api/v1/lightning/nodes/rankings/connectivity"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "lnsync"
	maxErrorBody     = 512
)

// Config holds client configuration.
type Config struct {
	// BaseURL replaces DefaultBaseURL, e.g. for a self-hosted mempool instance.
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches node rankings from mempool.space.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewClient creates a new ranking client. A nil cfg uses the defaults.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		endpoint:  baseURL + RankingsPath,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		validate: validator.New(),
		logger:   logger,
	}
}

// Endpoint returns the URL the client fetches from.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Fetch retrieves the full connectivity ranking. It performs exactly one
// request and never retries.
func (c *Client) Fetch(ctx context.Context) ([]Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			URL:        c.endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	nodes, err := c.decode(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched node rankings", "count", len(nodes), "endpoint", c.endpoint)
	return nodes, nil
}

func (c *Client) decode(r io.Reader) ([]Node, error) {
	var wire []wireNode
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, &DecodeError{Index: -1, Err: err}
	}
	if wire == nil {
		return nil, &DecodeError{Index: -1, Err: errors.New("expected a JSON array, got null")}
	}

	nodes := make([]Node, 0, len(wire))
	for i := range wire {
		if err := c.validate.Struct(&wire[i]); err != nil {
			return nil, &DecodeError{Index: i, Err: err}
		}
		nodes = append(nodes, wire[i].toNode())
	}
	return nodes, nil
}
