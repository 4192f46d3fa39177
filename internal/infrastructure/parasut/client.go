package parasut

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/cache"
	"github.com/erp/ledgersync/internal/infrastructure/telemetry"
)

// Client reads collections and single resources from the Parasut v4 API
type Client struct {
	cfg        Config
	auth       *Authenticator
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for API and token calls
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client. Tokens are shared through the given cache.
func NewClient(cfg Config, tokens cache.TokenCache, opts ...ClientOption) *Client {
	c := &Client{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("parasut")
	c.auth = NewAuthenticator(c.cfg, tokens, c.httpClient, c.logger)
	return c
}

// FetchAll walks the pages of a collection. Pages are requested in order
// until one comes back empty, the reported page count is reached, or
// MaxPages pages were read. A failing page ends the walk with the pages
// read so far and Truncated set; only configuration and authentication
// failures are returned as errors.
func (c *Client) FetchAll(ctx context.Context, resourceType string, query reconcile.Query) (*reconcile.FetchResult, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.auth.Token(ctx); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartClientSpan(ctx, "parasut.fetch_all",
		telemetry.SpanAttrEndpoint, resourceType,
	)
	defer span.End()

	result := &reconcile.FetchResult{}
	for page := 1; ; page++ {
		batch, meta, err := c.fetchPage(ctx, resourceType, query, page)
		if err != nil {
			if reconcile.IsFatal(err) {
				telemetry.RecordError(span, err)
				return nil, err
			}
			c.logger.Error("error fetching page, returning partial result",
				zap.String("endpoint", resourceType),
				zap.Int("page", page),
				zap.Error(err),
			)
			telemetry.RecordError(span, err)
			result.Truncated = true
			result.Err = err
			break
		}
		if len(batch.Primary) == 0 {
			break
		}

		result.Batches = append(result.Batches, batch)
		result.Pages = page

		if page >= meta.PageCount {
			break
		}
		if page >= c.cfg.MaxPages {
			c.logger.Warn("page cap reached before the last page",
				zap.String("endpoint", resourceType),
				zap.Int("max_pages", c.cfg.MaxPages),
				zap.Int("page_count", meta.PageCount),
			)
			result.Truncated = true
			break
		}
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPage, result.Pages,
		telemetry.SpanAttrTruncated, result.Truncated,
	)
	return result, nil
}

func (c *Client) fetchPage(ctx context.Context, resourceType string, query reconcile.Query, page int) (reconcile.Batch, pageMeta, error) {
	params := url.Values{}
	if len(query.Include) > 0 {
		params.Set("include", strings.Join(query.Include, ","))
	}
	if query.Sort != "" {
		params.Set("sort", query.Sort)
	}
	for k, v := range query.Filters {
		params.Set("filter["+k+"]", v)
	}
	params.Set(pageParam("size", c.cfg.PageSize))
	params.Set(pageParam("number", page))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ListTimeout)
	defer cancel()

	body, err := c.get(ctx, c.cfg.endpoint(resourceType), params)
	if err != nil {
		return reconcile.Batch{}, pageMeta{}, err
	}
	return decodeCollection(body)
}

// FetchOne retrieves a single resource with the requested relationships
// included. Non-2xx responses are returned as *HTTPError.
func (c *Client) FetchOne(ctx context.Context, resourceType, id string, include ...string) (*reconcile.Document, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartClientSpan(ctx, "parasut.fetch_one",
		telemetry.SpanAttrEndpoint, resourceType,
		telemetry.SpanAttrExternalID, id,
	)
	defer span.End()

	params := url.Values{}
	if len(include) > 0 {
		params.Set("include", strings.Join(include, ","))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SingleTimeout)
	defer cancel()

	body, err := c.get(ctx, c.cfg.endpoint(resourceType)+"/"+url.PathEscape(id), params)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return decodeSingle(body)
}

// TestConnection performs only the token exchange
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	_, err := c.auth.Exchange(ctx)
	return err
}

// get performs an authorized GET. A 401 drops the cached token and retries
// once with a fresh one.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	body, err := c.doRequest(ctx, endpoint, params)
	if err == nil || !isUnauthorized(err) {
		return body, err
	}
	c.logger.Info("token rejected, re-authenticating", zap.String("endpoint", endpoint))
	c.auth.Invalidate(ctx)
	return c.doRequest(ctx, endpoint, params)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("parasut: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reconcile.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", reconcile.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Endpoint: strings.TrimPrefix(endpoint, c.cfg.BaseURL)}
	}
	return body, nil
}

// IsRateLimited reports whether err came from a 429 response
func IsRateLimited(err error) bool {
	return errors.Is(err, reconcile.ErrRateLimited)
}

var _ reconcile.Source = (*Client)(nil)
