// Package gateway is the HTTP client for the catalog REST backend.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/product-catalog-store/internal/config"
	"github.com/fairyhunter13/product-catalog-store/internal/model"
	"github.com/fairyhunter13/product-catalog-store/internal/obs"
)

const maxErrorBody = 64 << 10

// Client fetches products from the catalog backend.
type Client struct {
	base    *url.URL
	hc      *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithRateLimit caps outbound requests. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a Client rooted at baseURL, e.g. "http://localhost:8081/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse catalog base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("catalog base url %q: unsupported scheme", baseURL)
	}
	c := &Client{
		base:    u,
		hc:      &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NewFromConfig builds a Client from the gateway settings in cfg.
func NewFromConfig(cfg config.Config) (*Client, error) {
	return New(cfg.CatalogBaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.GatewayTimeout}),
		WithRateLimit(cfg.GatewayRateLimit, cfg.GatewayBurst),
	)
}

// Products fetches GET {base}/products.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	var ps []model.Product
	if err := c.GetJSON(ctx, "products", nil, &ps, "products"); err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []model.Product{}
	}
	return ps, nil
}

// Product fetches GET {base}/products/{id}.
func (c *Client) Product(ctx context.Context, id int) (model.Product, error) {
	var p model.Product
	if err := c.GetJSON(ctx, "product", nil, &p, "products", strconv.Itoa(id)); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// GetJSON issues a GET against the path elements below the base URL and
// decodes the JSON answer into out. endpoint labels logs and metrics.
// Every failure is a *TransportError.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any, elem ...string) error {
	u := c.base.JoinPath(elem...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	target := u.String()
	terr := &TransportError{Method: http.MethodGet, URL: target}

	if err := c.limiter.Wait(ctx); err != nil {
		terr.Err = errors.Wrap(err, "rate limit wait")
		c.observe(endpoint, "limited", 0)
		return terr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		terr.Err = errors.Wrap(err, "build request")
		return terr
	}
	reqID := obs.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(obs.RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		terr.Err = errors.Wrap(err, "do request")
		c.observe(endpoint, "transport_error", time.Since(start))
		obs.Logger.Warn("gateway_request_failed", "endpoint", endpoint, "url", target, "request_id", reqID, "error", err)
		return terr
	}
	defer resp.Body.Close()

	terr.StatusCode = resp.StatusCode
	terr.Status = resp.Status
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr.Body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		terr.Err = errors.Errorf("unexpected status %d", resp.StatusCode)
		c.observe(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
		obs.Logger.Warn("gateway_request_failed", "endpoint", endpoint, "url", target, "request_id", reqID, "status", resp.StatusCode)
		return terr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		terr.Err = errors.Wrap(err, "decode response")
		c.observe(endpoint, "decode_error", time.Since(start))
		return terr
	}
	c.observe(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	obs.Logger.Debug("gateway_request", "endpoint", endpoint, "url", target, "request_id", reqID,
		"status", resp.StatusCode, "latency_ms", float64(time.Since(start).Microseconds())/1000.0)
	return nil
}

func (c *Client) observe(endpoint, status string, d time.Duration) {
	obs.GatewayRequests.WithLabelValues(endpoint, status).Inc()
	if d > 0 {
		obs.GatewayDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}
