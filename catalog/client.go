// Package catalog implements the REST client for one catalog system. The
// same client shape serves both the source and the target; they differ
// only in base URL and API key.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-catalog-sync/core"
	"github.com/goliatone/go-catalog-sync/ratelimit"
	goerrors "github.com/goliatone/go-errors"
)

const (
	itemsEndpoint = "/item/"
	sizesEndpoint = "/size/"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL              string
	apiKey               string
	client               HTTPDoer
	pageLimit            int
	requestTimeout       time.Duration
	maxResponseBodyBytes int64
	limiter              *ratelimit.AdaptivePolicy
}

type Option func(*Client)

func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

func WithPageLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.pageLimit = limit
		}
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

func WithResponseBodyLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxResponseBodyBytes = limit
		}
	}
}

// WithRateLimitPolicy honors upstream throttle signals: calls fail fast with
// a rate limit error while the endpoint bucket cools down.
func WithRateLimitPolicy(policy *ratelimit.AdaptivePolicy) Option {
	return func(c *Client) {
		c.limiter = policy
	}
}

func New(endpoint core.CatalogEndpointConfig, opts ...Option) *Client {
	client := &Client{
		baseURL:              strings.TrimRight(strings.TrimSpace(endpoint.BaseURL), "/"),
		apiKey:               strings.TrimSpace(endpoint.APIKey),
		client:               &http.Client{Timeout: defaultClientTimeout},
		pageLimit:            core.DefaultPageLimit,
		requestTimeout:       core.DefaultRequestTimeout,
		maxResponseBodyBytes: defaultResponseBodyLimit,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(client)
	}
	return client
}

func (c *Client) FetchAllItems(ctx context.Context) ([]map[string]any, error) {
	return c.fetchAll(ctx, itemsEndpoint)
}

func (c *Client) FetchAllSizes(ctx context.Context) ([]map[string]any, error) {
	return c.fetchAll(ctx, sizesEndpoint)
}

// fetchAll follows the catalog listing contract: a bare JSON array is the
// complete result; a {results, next} envelope is walked until next is
// null. The first request carries a large limit hint so unpaginated
// deployments answer in one page.
func (c *Client) fetchAll(ctx context.Context, endpoint string) ([]map[string]any, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	all := []map[string]any{}
	nextURL := c.baseURL + endpoint
	params := url.Values{"limit": []string{strconv.Itoa(c.pageLimit)}}

	for nextURL != "" {
		body, status, err := c.do(ctx, http.MethodGet, nextURL, params, nil)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusBadRequest {
			return nil, catalogError(
				fmt.Sprintf("catalog: fetch %s returned status %d", endpoint, status),
				goerrors.CategoryExternal,
				http.StatusBadGateway,
				map[string]any{"endpoint": endpoint, "status_code": status, "body": string(body)},
			)
		}

		var decoded any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, catalogWrapError(
				err,
				goerrors.CategoryExternal,
				"catalog: decode listing response",
				http.StatusBadGateway,
				map[string]any{"endpoint": endpoint},
			)
		}

		switch payload := decoded.(type) {
		case []any:
			all = append(all, toRecords(payload)...)
			nextURL = ""
		case map[string]any:
			results, ok := payload["results"].([]any)
			if !ok {
				// Single object without an envelope; treat as the
				// complete result.
				all = append(all, payload)
				nextURL = ""
				break
			}
			all = append(all, toRecords(results)...)
			nextURL = nextPageURL(payload["next"])
			// next URLs carry their own encoded parameters.
			params = nil
		default:
			return nil, catalogError(
				"catalog: unexpected listing response shape",
				goerrors.CategoryExternal,
				http.StatusBadGateway,
				map[string]any{"endpoint": endpoint},
			)
		}
	}
	return all, nil
}

// UpdateItem replaces the target item's price and availability in one
// call. The endpoint identifies the item by the id carried in the body.
func (c *Client) UpdateItem(ctx context.Context, itemID int64, price int64, nal int64) error {
	payload := map[string]any{
		"id":         itemID,
		"drop_price": price,
		"nal":        nal,
	}
	return c.update(ctx, itemsEndpoint, itemID, payload)
}

func (c *Client) UpdateSize(ctx context.Context, sizeID int64, val string, qty int64) error {
	payload := map[string]any{
		"id":  sizeID,
		"val": val,
		"qty": qty,
	}
	return c.update(ctx, sizesEndpoint, sizeID, payload)
}

func (c *Client) update(ctx context.Context, endpoint string, id int64, payload map[string]any) error {
	if err := c.validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return catalogWrapError(
			err,
			goerrors.CategoryInternal,
			"catalog: encode update payload",
			http.StatusInternalServerError,
			map[string]any{"endpoint": endpoint, "id": id},
		)
	}
	body, status, err := c.do(ctx, http.MethodPut, c.baseURL+endpoint, nil, encoded)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return catalogError(
			fmt.Sprintf("catalog: update %s %d returned status %d", endpoint, id, status),
			goerrors.CategoryOperation,
			http.StatusBadGateway,
			map[string]any{
				"endpoint":    endpoint,
				"id":          id,
				"status_code": status,
				"body":        string(body),
			},
		)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, rawURL string, params url.Values, body []byte) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx := ctx
	cancel := func() {}
	if c.requestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
	}
	defer cancel()

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, catalogWrapError(
			err,
			goerrors.CategoryBadInput,
			"catalog: invalid request url",
			http.StatusBadRequest,
			map[string]any{"url": rawURL},
		)
	}
	if len(params) > 0 {
		query := parsedURL.Query()
		for key, values := range params {
			for _, value := range values {
				query.Set(key, value)
			}
		}
		parsedURL.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(requestCtx, method, parsedURL.String(), reader)
	if err != nil {
		return nil, 0, catalogWrapError(
			err,
			goerrors.CategoryBadInput,
			"catalog: create http request",
			http.StatusBadRequest,
			map[string]any{"method": method, "url": parsedURL.String()},
		)
	}
	req.Header.Set("Authorization", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	bucket := ratelimit.Key{Endpoint: parsedURL.Host, Bucket: parsedURL.Path}
	if c.limiter != nil {
		if err := c.limiter.BeforeCall(requestCtx, bucket); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return nil, 0, throttled.ToSyncError()
			}
			return nil, 0, err
		}
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, 0, catalogWrapError(
			err,
			goerrors.CategoryExternal,
			"catalog: execute http request",
			http.StatusBadGateway,
			map[string]any{"method": method, "url": parsedURL.String()},
		)
	}
	defer res.Body.Close()

	if c.limiter != nil {
		meta := ratelimit.ResponseMeta{
			StatusCode: res.StatusCode,
			Headers:    flattenHeaders(res.Header),
		}
		if err := c.limiter.AfterCall(requestCtx, bucket, meta); err != nil {
			return nil, 0, catalogWrapError(
				err,
				goerrors.CategoryInternal,
				"catalog: record rate limit state",
				http.StatusInternalServerError,
				map[string]any{"endpoint": bucket.Bucket},
			)
		}
	}

	limit := c.maxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	payload, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, 0, catalogWrapError(
			err,
			goerrors.CategoryExternal,
			"catalog: read response body",
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode},
		)
	}
	if int64(len(payload)) > limit {
		return nil, 0, catalogError(
			fmt.Sprintf("catalog: response body exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode, "response_limit_b": limit},
		)
	}
	return payload, res.StatusCode, nil
}

func (c *Client) validate() error {
	if c == nil || c.client == nil {
		return catalogError(
			"catalog: client requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if c.baseURL == "" {
		return catalogError(
			"catalog: base url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if c.apiKey == "" {
		return catalogError(
			"catalog: api key is required",
			goerrors.CategoryAuth,
			http.StatusUnauthorized,
			nil,
		)
	}
	return nil
}

func flattenHeaders(header http.Header) map[string]string {
	if len(header) == 0 {
		return nil
	}
	out := make(map[string]string, len(header))
	for key := range header {
		out[key] = header.Get(key)
	}
	return out
}

func toRecords(values []any) []map[string]any {
	records := make([]map[string]any, 0, len(values))
	for _, value := range values {
		record, ok := value.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}

func nextPageURL(value any) string {
	next, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(next)
}

var _ core.CatalogClient = (*Client)(nil)
