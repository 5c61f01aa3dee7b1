// Package client provides the Mailchimp HTTP gateway used by the janitor:
// the paginated members read and the single-member archive write, with
// typed error handling.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for gateway operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailchimp_requests_total",
		Help: "Total Mailchimp requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailchimp_request_duration_seconds",
		Help:    "Mailchimp request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailchimp_errors_total",
		Help: "Total Mailchimp errors by class",
	}, []string{"class"})
)

const (
	// basicAuthUser is the username sent with every request. Mailchimp
	// ignores it; the API key in the password slot authenticates.
	basicAuthUser = "anystring"

	// statusFilter selects the members the janitor operates on.
	statusFilter = "unsubscribed"

	// statusArchived is the member status that moves a member into the
	// archive.
	statusArchived = "cleaned"

	endpointListMembers   = "list_members"
	endpointArchiveMember = "archive_member"
)

// Client is the Mailchimp gateway. It is safe for concurrent use: the
// underlying http.Client and its connection pool are shared read-only
// across archive workers.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the gateway configuration. Immutable after New.
type Config struct {
	// BaseURL is the datacenter-specific API root,
	// e.g. "https://us2.api.mailchimp.com".
	BaseURL string

	// ListID is the audience whose members are read and archived.
	ListID string

	// APIKey authenticates every request (Basic auth password).
	APIKey string

	// PageSize is the number of members requested per page.
	PageSize int

	// MaxConcurrency caps the number of archive requests in flight.
	MaxConcurrency int

	// Timeout applies to each individual request.
	Timeout time.Duration
}

// DefaultConfig returns a configuration with the standard page size,
// concurrency limit, and per-request timeout.
func DefaultConfig(baseURL, listID, apiKey string) Config {
	return Config{
		BaseURL:        baseURL,
		ListID:         listID,
		APIKey:         apiKey,
		PageSize:       100,
		MaxConcurrency: 8,
		Timeout:        10 * time.Second,
	}
}

// New creates a new Mailchimp gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	if cfg.ListID == "" {
		return nil, fmt.Errorf("list ID is required")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1 (got %d)", cfg.PageSize)
	}

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := log.With().
		Str("component", "mailchimp-client").
		Str("list_id", cfg.ListID).
		Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}, nil
}

// PageSize returns the configured members-per-page count.
func (c *Client) PageSize() int {
	return c.config.PageSize
}

// MaxConcurrency returns the configured archive concurrency limit.
func (c *Client) MaxConcurrency() int {
	return c.config.MaxConcurrency
}

// ListPage fetches one page of unsubscribed members at the given offset,
// ordered by signup timestamp ascending. A 4xx response is returned as a
// *FetchError wrapping the parsed *APIError; transport problems come back
// as a *FetchError wrapping the underlying error. Each call is a single
// attempt, no retries.
//
// A 200 body that fails to decode panics: the members payload shape is part
// of the remote contract, so a malformed success response is a bug, not an
// operational failure.
func (c *Client) ListPage(ctx context.Context, offset, limit int) ([]Member, error) {
	u := *c.baseURL
	u.Path = fmt.Sprintf("/3.0/lists/%s/members", c.config.ListID)

	q := url.Values{}
	q.Set("status", statusFilter)
	q.Set("count", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort_field", "timestamp_signup")
	q.Set("sort_dir", "ASC")
	u.RawQuery = q.Encode()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpointListMembers).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Offset: offset, Err: err}
	}
	req.SetBasicAuth(basicAuthUser, c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		requestsTotal.WithLabelValues(endpointListMembers, "network_error").Inc()
		c.logger.Error().Err(err).Int("offset", offset).Msg("List page request failed")
		return nil, &FetchError{Offset: offset, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpointListMembers, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		apiErr := decodeAPIError(resp.Body, resp.StatusCode)
		errorsTotal.WithLabelValues(string(ErrorClassRemote)).Inc()
		c.logger.Warn().
			Int("offset", offset).
			Int("status", resp.StatusCode).
			Str("title", apiErr.Title).
			Msg("List page rejected")
		return nil, &FetchError{Offset: offset, Err: apiErr}
	}

	if resp.StatusCode != http.StatusOK {
		errorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		return nil, &FetchError{Offset: offset, Err: fmt.Errorf("unexpected response status %d", resp.StatusCode)}
	}

	var body ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		panic(fmt.Sprintf("mailchimp: malformed members page at offset %d: %v", offset, err))
	}

	c.logger.Debug().
		Int("offset", offset).
		Int("count", len(body.Members)).
		Msg("Fetched members page")

	return body.Members, nil
}

// SetArchived archives a single member, addressed by ID. The returned string
// echoes the ID so concurrent callers can attribute the result. Failures are
// returned as an *ArchiveError carrying the member ID; a 4xx body is parsed
// into the wrapped *APIError. Single attempt, no retries: failure isolation
// belongs to the archiver.
func (c *Client) SetArchived(ctx context.Context, id string) (string, error) {
	u := *c.baseURL
	u.Path = fmt.Sprintf("/3.0/lists/%s/members/%s", c.config.ListID, id)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpointArchiveMember).Observe(time.Since(start).Seconds())
	}()

	payload := fmt.Sprintf(`{"status":%q}`, statusArchived)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u.String(), strings.NewReader(payload))
	if err != nil {
		return "", &ArchiveError{MemberID: id, Err: err}
	}
	req.SetBasicAuth(basicAuthUser, c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		requestsTotal.WithLabelValues(endpointArchiveMember, "network_error").Inc()
		c.logger.Error().Err(err).Str("member_id", id).Msg("Archive request failed")
		return "", &ArchiveError{MemberID: id, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpointArchiveMember, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		apiErr := decodeAPIError(resp.Body, resp.StatusCode)
		errorsTotal.WithLabelValues(string(ErrorClassRemote)).Inc()
		c.logger.Warn().
			Str("member_id", id).
			Int("status", resp.StatusCode).
			Str("title", apiErr.Title).
			Msg("Archive rejected")
		return "", &ArchiveError{MemberID: id, Err: apiErr}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		return "", &ArchiveError{MemberID: id, Err: fmt.Errorf("unexpected response status %d", resp.StatusCode)}
	}

	c.logger.Debug().Str("member_id", id).Msg("Member archived")
	return id, nil
}

// decodeAPIError parses the structured error body Mailchimp sends with 4xx
// responses. A body that does not parse still yields a usable error carrying
// the status code.
func decodeAPIError(r io.Reader, status int) *APIError {
	apiErr := &APIError{}
	if err := json.NewDecoder(r).Decode(apiErr); err != nil {
		return &APIError{Title: http.StatusText(status), Status: status}
	}
	return apiErr
}
