// Package purchase decides whether a customer has bought a product, by
// scanning their order history on the commerce platform.
package purchase

import (
	"context"
	"log/slog"

	"storefront/internal/commerce"
	"storefront/internal/observability"
)

// PageSize is the number of orders requested per admin call.
const PageSize = 50

// OrderSource is the slice of the commerce gateway the verifier reads.
type OrderSource interface {
	CustomerOrders(ctx context.Context, customerID string, limit int, pageInfo string) (*commerce.OrderPage, error)
}

type Verifier struct {
	orders   OrderSource
	ids      commerce.IDScheme
	maxPages int
	logger   *slog.Logger
	obs      *observability.Config
}

type Option func(*Verifier)

// WithMaxPages sets how many order pages are scanned. Values below 1 are
// treated as 1.
func WithMaxPages(n int) Option {
	return func(v *Verifier) {
		if n < 1 {
			n = 1
		}
		v.maxPages = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = l
	}
}

func WithObservability(cfg *observability.Config) Option {
	return func(v *Verifier) {
		v.obs = cfg
	}
}

func NewVerifier(orders OrderSource, ids commerce.IDScheme, opts ...Option) *Verifier {
	v := &Verifier{
		orders:   orders,
		ids:      ids,
		maxPages: 1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HasPurchased reports whether any line item in the customer's recent
// orders references productRef. Gateway failures are logged and reported
// as false.
func (v *Verifier) HasPurchased(ctx context.Context, customerRef, productRef string) bool {
	if customerRef == "" || productRef == "" {
		return false
	}

	ctx, span := v.obs.Tracer().StartPurchaseCheck(ctx, productRef)
	defer span.End()

	found, err := v.scan(ctx, v.ids.CustomerNumericID(customerRef), productRef)
	switch {
	case err != nil:
		v.obs.Tracer().RecordError(span, err)
		v.obs.Metrics().RecordPurchaseCheck(ctx, "error")
		observability.LoggerWithTrace(ctx, v.logger).Error("purchase verification failed",
			"customer", customerRef, "product", productRef, "error", err)
		return false
	case found:
		v.obs.Metrics().RecordPurchaseCheck(ctx, "verified")
	default:
		v.obs.Metrics().RecordPurchaseCheck(ctx, "not_found")
	}
	return found
}

func (v *Verifier) scan(ctx context.Context, customerID, productRef string) (bool, error) {
	cursor := ""
	for page := 0; page < v.maxPages; page++ {
		res, err := v.orders.CustomerOrders(ctx, customerID, PageSize, cursor)
		if err != nil {
			return false, err
		}
		if containsProduct(res.Orders, v.ids, productRef) {
			return true, nil
		}
		if res.Next == "" {
			break
		}
		cursor = res.Next
	}
	return false, nil
}

func containsProduct(orders []commerce.Order, ids commerce.IDScheme, productRef string) bool {
	for _, order := range orders {
		for _, line := range order.LineItems {
			if line.ProductID == nil {
				continue
			}
			if ids.ProductRef(*line.ProductID) == productRef {
				return true
			}
		}
	}
	return false
}
