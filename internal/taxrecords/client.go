package taxrecords

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
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/config"
	"github.com/bevanyudira/IPBB-sub000/internal/logger"
	"github.com/bevanyudira/IPBB-sub000/internal/metrics"
	"github.com/bevanyudira/IPBB-sub000/internal/models"
)

const (
	maxBodySize    = 4 << 20
	defaultBackoff = 200 * time.Millisecond
)

// Client talks to the tax-records service over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
	retries int
	backoff time.Duration
	metrics *metrics.Metrics
	log     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetries sets how many times a failed GET is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the delay before the first retry. It doubles on each
// further attempt.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithMetrics records call latency on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid tax records base URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		retries: 2,
		backoff: defaultBackoff,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig creates a Client from the TAX_RECORDS_* settings.
func NewClientFromConfig(cfg config.TaxRecordsConfig, opts ...Option) (*Client, error) {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithRetries(cfg.Retries),
	}
	return NewClient(cfg.BaseURL, append(base, opts...)...)
}

// ListTaxYears returns the tax years on record for nop.
func (c *Client) ListTaxYears(ctx context.Context, nop string) ([]models.YearListing, error) {
	var out models.YearList
	path := "/api/sppt/" + url.PathEscape(nop) + "/years"
	found, err := c.getJSON(ctx, request{op: "list", nop: nop, path: path}, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &FetchError{Op: "list", NOP: nop, StatusCode: http.StatusNotFound, Kind: ErrNotFound}
	}
	return out.AvailableYears, nil
}

// GetTaxYearDetail returns the SPPT of one year. A JSON null body yields a
// nil detail; a 404 is an ErrNotFound FetchError.
func (c *Client) GetTaxYearDetail(ctx context.Context, year, nop string) (*models.TaxYearDetail, error) {
	var out *models.TaxYearDetail
	path := "/api/sppt/" + url.PathEscape(nop) + "/years/" + url.PathEscape(year)
	found, err := c.getJSON(ctx, request{op: "detail", nop: nop, year: year, path: path}, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &FetchError{Op: "detail", NOP: nop, Year: year, StatusCode: http.StatusNotFound, Kind: ErrNotFound}
	}
	return out, nil
}

// GetPaymentDetail returns the payment history of one year. Both 404 and a
// JSON null body mean nothing has been paid and yield nil.
func (c *Client) GetPaymentDetail(ctx context.Context, year, nop string) (*models.PaymentDetail, error) {
	var out *models.PaymentDetail
	path := "/api/payments/" + url.PathEscape(nop) + "/years/" + url.PathEscape(year)
	found, err := c.getJSON(ctx, request{op: "payment", nop: nop, year: year, path: path}, &out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

type request struct {
	op   string
	nop  string
	year string
	path string
}

func (r request) fail(kind error, status int, err error) *FetchError {
	return &FetchError{Op: r.op, NOP: r.nop, Year: r.year, StatusCode: status, Kind: kind, Err: err}
}

// getJSON performs a GET with retries and decodes a 2xx body into out.
// found is false for a 404.
func (c *Client) getJSON(ctx context.Context, r request, out any) (found bool, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveFetch(r.op, time.Since(start), err) }()

	var lastErr *FetchError
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			c.log.Debug("Retrying tax records request", map[string]interface{}{
				"operation": r.op,
				"nop":       r.nop,
				"year":      r.year,
				"attempt":   attempt,
				"error":     lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return false, r.fail(ErrTransport, 0, ctx.Err())
			case <-time.After(delay):
			}
		}

		status, body, ferr := c.do(ctx, r)
		if ferr != nil {
			lastErr = ferr
			if ctx.Err() != nil || !ferr.retryable() {
				return false, ferr
			}
			continue
		}

		if status == http.StatusNotFound {
			return false, nil
		}

		if err := json.Unmarshal(body, out); err != nil {
			return false, r.fail(ErrDecode, status, err)
		}
		return true, nil
	}

	c.log.Warn("Tax records request failed", map[string]interface{}{
		"operation": r.op,
		"nop":       r.nop,
		"year":      r.year,
		"attempts":  c.retries + 1,
		"error":     lastErr.Error(),
	})
	return false, lastErr
}

// do performs one attempt. A nil error means a 2xx or 404 status.
func (c *Client) do(ctx context.Context, r request) (int, []byte, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+r.path, nil)
	if err != nil {
		return 0, nil, r.fail(ErrRequest, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, r.fail(ErrTransport, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, r.fail(ErrTransport, resp.StatusCode, fmt.Errorf("failed to read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil, nil
	case resp.StatusCode >= 500:
		return resp.StatusCode, nil, r.fail(ErrServer, resp.StatusCode, bodyError(body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.StatusCode, nil, r.fail(ErrRequest, resp.StatusCode, bodyError(body))
	}
	return resp.StatusCode, bytes.TrimSpace(body), nil
}

func bodyError(body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return nil
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return errors.New(msg)
}
