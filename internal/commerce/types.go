package commerce

import (
	"time"

	"github.com/shopspring/decimal"
)

// Edges is a GraphQL connection.
type Edges[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func (e Edges[T]) Nodes() []T {
	nodes := make([]T, 0, len(e.Edges))
	for _, edge := range e.Edges {
		nodes = append(nodes, edge.Node)
	}
	return nodes
}

// First returns the first node, if any.
func (e Edges[T]) First() (T, bool) {
	var zero T
	if len(e.Edges) == 0 {
		return zero, false
	}
	return e.Edges[0].Node, true
}

// Money is a storefront MoneyV2. Amounts arrive as decimal strings.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

func (m Money) String() string {
	if m.CurrencyCode == "" {
		return m.Amount.StringFixed(2)
	}
	return m.Amount.StringFixed(2) + " " + m.CurrencyCode
}

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

// Order is the admin REST view of an order, reduced to what the storefront
// reads.
type Order struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	CreatedAt  time.Time       `json:"created_at"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"`
	Customer   *OrderCustomer  `json:"customer"`
	LineItems  []LineItem      `json:"line_items"`
}

// OrderCustomer is the owner reference embedded in an admin order.
type OrderCustomer struct {
	ID int64 `json:"id"`
}

type LineItem struct {
	ID        int64  `json:"id"`
	ProductID *int64 `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
}

// OrderPage is one page of a customer's orders. Next is the cursor for the
// following page, empty on the last page.
type OrderPage struct {
	Orders []Order
	Next   string
}

type Shop struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Domain   string `json:"domain"`
	Currency string `json:"currency"`
}
