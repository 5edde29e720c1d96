// Package commerce is the gateway to the external commerce platform. It
// exposes the three surfaces the storefront uses: the storefront GraphQL
// API, the customer account GraphQL API and the admin REST API.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/observability"
)

const (
	DefaultAPIVersion = "2024-01"

	SurfaceStorefront = "storefront"
	SurfaceCustomer   = "customer_account"
	SurfaceAdmin      = "admin"

	headerStorefrontToken = "Shopify-Storefront-Private-Token"
	headerCustomerToken   = "X-Shopify-Customer-Account-Api-Token"
	headerAdminToken      = "X-Shopify-Access-Token"

	maxBodyBytes = 4 << 20
)

type Config struct {
	StoreDomain          string
	APIVersion           string
	StorefrontToken      string
	CustomerAccountToken string
	AdminToken           string

	// BaseURL replaces https://{StoreDomain} when set.
	BaseURL string

	HTTPClient    *http.Client
	Logger        *slog.Logger
	Observability *observability.Config
}

type Client struct {
	cfg     Config
	base    string
	http    *http.Client
	logger  *slog.Logger
	tracer  *observability.Tracer
	metrics *observability.Metrics
}

func New(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" && cfg.StoreDomain != "" {
		base = "https://" + cfg.StoreDomain
	}

	return &Client{
		cfg:     cfg,
		base:    base,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
		tracer:  cfg.Observability.Tracer(),
		metrics: cfg.Observability.Metrics(),
	}
}

// Storefront runs a query or mutation against the storefront API and
// decodes the data envelope into out.
func (c *Client) Storefront(ctx context.Context, query string, vars map[string]any, out any) error {
	return c.graphql(ctx, SurfaceStorefront, headerStorefrontToken, c.cfg.StorefrontToken, query, vars, out)
}

// CustomerAccount runs a query against the customer account API.
func (c *Client) CustomerAccount(ctx context.Context, query string, vars map[string]any, out any) error {
	return c.graphql(ctx, SurfaceCustomer, headerCustomerToken, c.cfg.CustomerAccountToken, query, vars, out)
}

// Admin performs a REST call against the admin API. endpoint is relative
// to /admin/api/{version}/, e.g. "orders.json?limit=50". body, when not
// nil, is sent as JSON; out, when not nil, receives the decoded response.
// The response headers are returned so callers can follow pagination.
func (c *Client) Admin(ctx context.Context, method, endpoint string, body, out any) (http.Header, error) {
	if c.base == "" || c.cfg.AdminToken == "" {
		return nil, fmt.Errorf("%s: %w", SurfaceAdmin, ErrNotConfigured)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("commerce admin: encode body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/admin/api/%s/%s", c.base, c.cfg.APIVersion, strings.TrimLeft(endpoint, "/"))
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &UpstreamError{Surface: SurfaceAdmin, Err: err}
	}
	req.Header.Set(headerAdminToken, c.cfg.AdminToken)

	opName, _, _ := strings.Cut(endpoint, "?")
	raw, header, err := c.do(ctx, SurfaceAdmin, method+" "+opName, req)
	if err != nil {
		return header, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return header, &UpstreamError{Surface: SurfaceAdmin, Status: http.StatusOK, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return header, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors"`
}

func (c *Client) graphql(ctx context.Context, surface, header, token, query string, vars map[string]any, out any) error {
	if c.base == "" || token == "" {
		return fmt.Errorf("%s: %w", surface, ErrNotConfigured)
	}

	b, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("commerce %s: encode request: %w", surface, err)
	}

	url := fmt.Sprintf("%s/api/%s/graphql.json", c.base, c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return &UpstreamError{Surface: surface, Err: err}
	}
	req.Header.Set(header, token)

	raw, _, err := c.do(ctx, surface, operationName(query), req)
	if err != nil {
		return err
	}

	var env graphqlResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return &UpstreamError{Surface: surface, Status: http.StatusOK, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(env.Errors) > 0 {
		return &UpstreamError{Surface: surface, Status: http.StatusOK, Err: env.Errors}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &UpstreamError{Surface: surface, Status: http.StatusOK, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, surface, operation string, req *http.Request) ([]byte, http.Header, error) {
	ctx, span := c.tracer.StartUpstream(ctx, surface, operation)
	defer span.End()
	timing := observability.StartServerTiming(ctx, "commerce-"+surface)
	defer timing.Stop()

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(ctx, surface, 0, time.Since(start))
		c.tracer.RecordError(span, err)
		c.logger.Error("commerce request failed", "surface", surface, "operation", operation, "error", err)
		return nil, nil, &UpstreamError{Surface: surface, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.RecordUpstream(ctx, surface, resp.StatusCode, time.Since(start))
	if err != nil {
		c.tracer.RecordError(span, err)
		return nil, resp.Header, &UpstreamError{Surface: surface, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := &UpstreamError{Surface: surface, Status: resp.StatusCode, Body: string(raw)}
		c.tracer.RecordError(span, uerr)
		c.logger.Warn("commerce request rejected", "surface", surface, "operation", operation, "status", resp.StatusCode)
		return nil, resp.Header, uerr
	}

	c.logger.Debug("commerce request", "surface", surface, "operation", operation,
		"status", resp.StatusCode, "duration", time.Since(start))
	return raw, resp.Header, nil
}

// operationName extracts "cartCreate" from "mutation cartCreate(...) {".
// Anonymous documents are reported as "anonymous".
func operationName(query string) string {
	q := strings.TrimSpace(query)
	for _, kw := range []string{"query", "mutation"} {
		if rest, ok := strings.CutPrefix(q, kw); ok {
			rest = strings.TrimSpace(rest)
			end := strings.IndexAny(rest, "({ \n\t")
			if end > 0 {
				return rest[:end]
			}
		}
	}
	return "anonymous"
}
