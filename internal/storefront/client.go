// Package storefront is the REST client for the storefront backend. Every call
// either returns the decoded payload or a *Error carrying a display message.
package storefront

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/domain"
)

const (
	// InitDataHeader carries the host platform token on order creation only.
	InitDataHeader = "X-Telegram-Init-Data"

	idempotencyHeader = "Idempotency-Key"
	defaultTimeout    = 15 * time.Second
	instrumentation   = "github.com/hanko-field/miniapp/internal/storefront"
)

// HTTPClient is the subset of *http.Client the storefront client needs.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the storefront backend.
type Client struct {
	baseURL  string
	http     HTTPClient
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
	requests metric.Int64Counter
	newKey   func() string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIdempotencyKeys overrides the generator for order idempotency keys.
func WithIdempotencyKeys(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// New constructs a client for baseURL. An empty base URL is accepted; calls
// then fail with a KindRequest error.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(instrumentation),
		newKey:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(c)
	}

	counter, err := otel.Meter(instrumentation).Int64Counter("miniapp.storefront.requests",
		metric.WithDescription("Storefront API calls by operation and outcome."))
	if err != nil {
		c.logger.Warn("storefront request counter unavailable", zap.Error(err))
		counter, _ = noop.NewMeterProvider().Meter(instrumentation).Int64Counter("miniapp.storefront.requests")
	}
	c.requests = counter
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchProducts lists products. params are passed through verbatim.
func (c *Client) FetchProducts(ctx context.Context, params url.Values) ([]domain.Product, error) {
	var products []domain.Product
	err := c.do(ctx, request{
		op:     "fetch_products",
		method: http.MethodGet,
		path:   []string{"products"},
		query:  params,
	}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FetchProductByID fetches one product. A falsy id fails without a request.
func (c *Client) FetchProductByID(ctx context.Context, id domain.Scalar) (domain.Product, error) {
	const op = "fetch_product"
	if id.IsZero() {
		return domain.Product{}, validationError(op, "Product ID is required.")
	}
	// The id is a single path segment; dot segments would be resolved away.
	if text := id.String(); text == "." || text == ".." {
		return domain.Product{}, validationError(op, "Product ID is invalid.")
	}
	var product domain.Product
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   []string{"products", url.PathEscape(id.String())},
	}, &product)
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// FetchCategories lists categories. params are passed through verbatim.
func (c *Client) FetchCategories(ctx context.Context, params url.Values) ([]domain.Category, error) {
	var categories []domain.Category
	err := c.do(ctx, request{
		op:     "fetch_categories",
		method: http.MethodGet,
		path:   []string{"categories"},
		query:  params,
	}, &categories)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateOrder submits an order. The payload must carry at least one line item
// and initData must be present; otherwise it fails without a request.
func (c *Client) CreateOrder(ctx context.Context, payload *domain.OrderRequest, initData string) (domain.Order, error) {
	const op = "create_order"
	if payload == nil || len(payload.LineItems) == 0 {
		return domain.Order{}, validationError(op, "Order payload with line_items is required.")
	}
	initData = strings.TrimSpace(initData)
	if initData == "" {
		return domain.Order{}, validationError(op, "Telegram initData is required to create an order.")
	}

	header := http.Header{}
	header.Set(InitDataHeader, initData)
	header.Set(idempotencyHeader, c.newKey())

	var order domain.Order
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   []string{"orders"},
		body:   payload,
		header: header,
	}, &order)
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}
