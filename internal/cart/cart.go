// Package cart bridges a client-held cart id to the commerce platform's
// cart mutations. No cart state is kept locally.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/commerce"
	"storefront/internal/models"
)

var ErrCartNotFound = errors.New("cart: not found")

// Storefront runs storefront GraphQL documents.
type Storefront interface {
	Storefront(ctx context.Context, query string, vars map[string]any, out any) error
}

// LineInput adds a quantity of a variant.
type LineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// LineUpdate sets the quantity of an existing line. Zero removes it.
type LineUpdate struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type Line struct {
	ID               string         `json:"id"`
	Quantity         int            `json:"quantity"`
	MerchandiseID    string         `json:"merchandiseId"`
	MerchandiseTitle string         `json:"merchandiseTitle"`
	ProductTitle     string         `json:"productTitle"`
	ProductHandle    string         `json:"productHandle"`
	ImageURL         string         `json:"imageUrl,omitempty"`
	Price            commerce.Money `json:"price"`
}

// Total is the line price times the quantity.
func (l Line) Total() decimal.Decimal {
	return l.Price.Amount.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Lines       []Line `json:"lines"`
}

// Subtotal sums the line totals. Carts hold a single currency.
func (c *Cart) Subtotal() commerce.Money {
	var m commerce.Money
	for _, l := range c.Lines {
		m.Amount = m.Amount.Add(l.Total())
		if m.CurrencyCode == "" {
			m.CurrencyCode = l.Price.CurrencyCode
		}
	}
	return m
}

func (c *Cart) Quantity() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

type Bridge struct {
	api    Storefront
	logger *slog.Logger
}

func NewBridge(api Storefront, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{api: api, logger: logger}
}

// Fetch loads a cart. A cart the platform no longer knows yields
// ErrCartNotFound.
func (b *Bridge) Fetch(ctx context.Context, cartID string) (*Cart, error) {
	if err := requireCartID(cartID); err != nil {
		return nil, err
	}

	var data struct {
		Cart *remoteCart `json:"cart"`
	}
	if err := b.api.Storefront(ctx, getCartQuery, map[string]any{"cartId": cartID}, &data); err != nil {
		return nil, err
	}
	if data.Cart == nil {
		return nil, ErrCartNotFound
	}
	return data.Cart.reshape(), nil
}

// Create starts a new cart, optionally with lines.
func (b *Bridge) Create(ctx context.Context, lines []LineInput) (*Cart, error) {
	if err := validateLines(lines, false); err != nil {
		return nil, err
	}

	input := map[string]any{}
	if len(lines) > 0 {
		input["lines"] = lines
	}

	var data struct {
		Payload payload `json:"cartCreate"`
	}
	if err := b.api.Storefront(ctx, cartCreateMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	c, err := data.Payload.result()
	if err != nil {
		return nil, err
	}
	b.logger.Debug("cart created", "cart", c.ID, "lines", len(c.Lines))
	return c, nil
}

func (b *Bridge) Add(ctx context.Context, cartID string, lines []LineInput) (*Cart, error) {
	if err := requireCartID(cartID); err != nil {
		return nil, err
	}
	if err := validateLines(lines, true); err != nil {
		return nil, err
	}

	var data struct {
		Payload payload `json:"cartLinesAdd"`
	}
	vars := map[string]any{"cartId": cartID, "lines": lines}
	if err := b.api.Storefront(ctx, cartLinesAddMutation, vars, &data); err != nil {
		return nil, err
	}
	return data.Payload.result()
}

// Remove drops lines by line id (not merchandise id).
func (b *Bridge) Remove(ctx context.Context, cartID string, lineIDs []string) (*Cart, error) {
	if err := requireCartID(cartID); err != nil {
		return nil, err
	}
	if len(lineIDs) == 0 {
		return nil, models.Invalid("lineIds", "missing lineIds array")
	}
	for _, id := range lineIDs {
		if strings.TrimSpace(id) == "" {
			return nil, models.Invalid("lineIds", "line id must not be empty")
		}
	}

	var data struct {
		Payload payload `json:"cartLinesRemove"`
	}
	vars := map[string]any{"cartId": cartID, "lineIds": lineIDs}
	if err := b.api.Storefront(ctx, cartLinesRemoveMutation, vars, &data); err != nil {
		return nil, err
	}
	return data.Payload.result()
}

func (b *Bridge) Update(ctx context.Context, cartID string, lines []LineUpdate) (*Cart, error) {
	if err := requireCartID(cartID); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, models.Invalid("lines", "missing lines array")
	}
	for _, l := range lines {
		if strings.TrimSpace(l.ID) == "" {
			return nil, models.Invalid("lines", "line id is required")
		}
		if l.Quantity < 0 {
			return nil, models.Invalid("lines", "quantity must not be negative")
		}
	}

	var data struct {
		Payload payload `json:"cartLinesUpdate"`
	}
	vars := map[string]any{"cartId": cartID, "lines": lines}
	if err := b.api.Storefront(ctx, cartLinesUpdateMutation, vars, &data); err != nil {
		return nil, err
	}
	return data.Payload.result()
}

func requireCartID(id string) error {
	if strings.TrimSpace(id) == "" {
		return models.Invalid("cartId", "missing cartId")
	}
	return nil
}

func validateLines(lines []LineInput, required bool) error {
	if required && len(lines) == 0 {
		return models.Invalid("lines", "missing lines")
	}
	for _, l := range lines {
		if strings.TrimSpace(l.MerchandiseID) == "" {
			return models.Invalid("lines", "merchandiseId is required")
		}
		if l.Quantity <= 0 {
			return models.Invalid("lines", "quantity must be a positive integer")
		}
	}
	return nil
}

type payload struct {
	Cart       *remoteCart         `json:"cart"`
	UserErrors commerce.UserErrors `json:"userErrors"`
}

func (p payload) result() (*Cart, error) {
	if err := p.UserErrors.Err(); err != nil {
		return nil, err
	}
	if p.Cart == nil {
		return nil, ErrCartNotFound
	}
	return p.Cart.reshape(), nil
}

type remoteCart struct {
	ID          string                        `json:"id"`
	CheckoutURL string                        `json:"checkoutUrl"`
	Lines       commerce.Edges[remoteCartLine] `json:"lines"`
}

type remoteCartLine struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	Merchandise struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Product struct {
			Title  string                        `json:"title"`
			Handle string                        `json:"handle"`
			Images commerce.Edges[commerce.Image] `json:"images"`
		} `json:"product"`
		Price commerce.Money `json:"price"`
	} `json:"merchandise"`
}

func (rc *remoteCart) reshape() *Cart {
	c := &Cart{ID: rc.ID, CheckoutURL: rc.CheckoutURL, Lines: []Line{}}
	for _, n := range rc.Lines.Nodes() {
		m := n.Merchandise
		line := Line{
			ID:               n.ID,
			Quantity:         n.Quantity,
			MerchandiseID:    m.ID,
			MerchandiseTitle: m.Title,
			ProductTitle:     m.Product.Title,
			ProductHandle:    m.Product.Handle,
			Price:            m.Price,
		}
		if img, ok := m.Product.Images.First(); ok {
			line.ImageURL = img.URL
		}
		c.Lines = append(c.Lines, line)
	}
	return c
}
