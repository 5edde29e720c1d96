package cart

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/commerce"
	"storefront/internal/models"
)

const cartJSON = `{
  "id": "gid://shopify/Cart/c1",
  "checkoutUrl": "https://shop.example.com/checkouts/c1",
  "lines": {"edges": [
    {"node": {"id": "line-1", "quantity": 2, "merchandise": {
      "id": "gid://shopify/ProductVariant/11", "title": "Large",
      "product": {"title": "Shirt", "handle": "shirt",
        "images": {"edges": [{"node": {"url": "https://cdn.example.com/shirt.png"}}]}},
      "price": {"amount": "19.99", "currencyCode": "USD"}}}},
    {"node": {"id": "line-2", "quantity": 1, "merchandise": {
      "id": "gid://shopify/ProductVariant/12", "title": "Default Title",
      "product": {"title": "Mug", "handle": "mug", "images": {"edges": []}},
      "price": {"amount": "5.00", "currencyCode": "USD"}}}}
  ]}
}`

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newBridge(t *testing.T, respond func(t *testing.T, req request) string) (*Bridge, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		io.WriteString(w, respond(t, req))
	}))
	t.Cleanup(srv.Close)

	client := commerce.New(commerce.Config{BaseURL: srv.URL, StorefrontToken: "sf-token"})
	return NewBridge(client, nil), &calls
}

func TestFetchReshapesCart(t *testing.T) {
	b, _ := newBridge(t, func(t *testing.T, req request) string {
		assert.Contains(t, req.Query, "query GetCart")
		assert.Equal(t, "gid://shopify/Cart/c1", req.Variables["cartId"])
		return `{"data":{"cart":` + cartJSON + `}}`
	})

	c, err := b.Fetch(context.Background(), "gid://shopify/Cart/c1")
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/checkouts/c1", c.CheckoutURL)
	require.Len(t, c.Lines, 2)
	first := c.Lines[0]
	assert.Equal(t, "line-1", first.ID)
	assert.Equal(t, "gid://shopify/ProductVariant/11", first.MerchandiseID)
	assert.Equal(t, "Large", first.MerchandiseTitle)
	assert.Equal(t, "Shirt", first.ProductTitle)
	assert.Equal(t, "shirt", first.ProductHandle)
	assert.Equal(t, "https://cdn.example.com/shirt.png", first.ImageURL)
	assert.True(t, decimal.RequireFromString("39.98").Equal(first.Total()))
	assert.Empty(t, c.Lines[1].ImageURL)

	sub := c.Subtotal()
	assert.Equal(t, "44.98 USD", sub.String())
	assert.Equal(t, 3, c.Quantity())
}

func TestFetchMissingCart(t *testing.T) {
	b, _ := newBridge(t, func(t *testing.T, req request) string {
		return `{"data":{"cart":null}}`
	})

	_, err := b.Fetch(context.Background(), "gid://shopify/Cart/gone")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestCreateSendsLines(t *testing.T) {
	b, _ := newBridge(t, func(t *testing.T, req request) string {
		assert.Contains(t, req.Query, "mutation cartCreate")
		input := req.Variables["input"].(map[string]any)
		lines := input["lines"].([]any)
		require.Len(t, lines, 1)
		line := lines[0].(map[string]any)
		assert.Equal(t, "gid://shopify/ProductVariant/11", line["merchandiseId"])
		assert.EqualValues(t, 2, line["quantity"])
		return `{"data":{"cartCreate":{"cart":` + cartJSON + `,"userErrors":[]}}}`
	})

	c, err := b.Create(context.Background(), []LineInput{{MerchandiseID: "gid://shopify/ProductVariant/11", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Cart/c1", c.ID)
}

func TestCreateWithoutLines(t *testing.T) {
	b, _ := newBridge(t, func(t *testing.T, req request) string {
		input := req.Variables["input"].(map[string]any)
		assert.NotContains(t, input, "lines")
		return `{"data":{"cartCreate":{"cart":{"id":"c2","checkoutUrl":"u","lines":{"edges":[]}},"userErrors":[]}}}`
	})

	c, err := b.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
	assert.NotNil(t, c.Lines)
}

func TestUserErrorsAreReturned(t *testing.T) {
	b, _ := newBridge(t, func(t *testing.T, req request) string {
		return `{"data":{"cartLinesAdd":{"cart":null,"userErrors":[{"field":["lines","0","merchandiseId"],"message":"The merchandise does not exist."}]}}}`
	})

	_, err := b.Add(context.Background(), "c1", []LineInput{{MerchandiseID: "bogus", Quantity: 1}})
	var uerrs commerce.UserErrors
	require.ErrorAs(t, err, &uerrs)
	assert.Equal(t, "The merchandise does not exist.", uerrs[0].Message)
}

func TestRemoveAndUpdate(t *testing.T) {
	b, _ := newBridge(t, func(t *testing.T, req request) string {
		switch {
		case strings.Contains(req.Query, "cartLinesRemove("):
			assert.Equal(t, []any{"line-2"}, req.Variables["lineIds"])
			return `{"data":{"cartLinesRemove":{"cart":` + cartJSON + `,"userErrors":[]}}}`
		case strings.Contains(req.Query, "cartLinesUpdate("):
			lines := req.Variables["lines"].([]any)
			assert.Equal(t, "line-1", lines[0].(map[string]any)["id"])
			assert.EqualValues(t, 0, lines[0].(map[string]any)["quantity"])
			return `{"data":{"cartLinesUpdate":{"cart":` + cartJSON + `,"userErrors":[]}}}`
		}
		t.Errorf("unexpected document %q", req.Query)
		return ""
	})

	_, err := b.Remove(context.Background(), "c1", []string{"line-2"})
	require.NoError(t, err)
	_, err = b.Update(context.Background(), "c1", []LineUpdate{{ID: "line-1", Quantity: 0}})
	require.NoError(t, err)
}

func TestLocalValidation(t *testing.T) {
	b, calls := newBridge(t, func(t *testing.T, req request) string {
		return `{"data":{}}`
	})
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"fetch without id", func() error { _, err := b.Fetch(ctx, " "); return err }},
		{"create zero quantity", func() error {
			_, err := b.Create(ctx, []LineInput{{MerchandiseID: "v", Quantity: 0}})
			return err
		}},
		{"add without lines", func() error { _, err := b.Add(ctx, "c1", nil); return err }},
		{"add without merchandise", func() error {
			_, err := b.Add(ctx, "c1", []LineInput{{Quantity: 1}})
			return err
		}},
		{"remove without ids", func() error { _, err := b.Remove(ctx, "c1", nil); return err }},
		{"update negative", func() error {
			_, err := b.Update(ctx, "c1", []LineUpdate{{ID: "line-1", Quantity: -1}})
			return err
		}},
		{"update without cart", func() error {
			_, err := b.Update(ctx, "", []LineUpdate{{ID: "line-1", Quantity: 1}})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *models.ValidationError
			assert.ErrorAs(t, tt.run(), &verr)
		})
	}
	assert.Zero(t, *calls)
}
