// Package catalog reads products and collections from the storefront API.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"storefront/internal/commerce"
)

var ErrNotFound = errors.New("catalog: not found")

const productByHandleQuery = `
query productByHandle($handle: String!) {
  product(handle: $handle) {
    id
    title
    handle
    descriptionHtml
    images(first: 5) {
      edges {
        node {
          url
          altText
        }
      }
    }
    variants(first: 10) {
      edges {
        node {
          id
          title
          availableForSale
          price {
            amount
            currencyCode
          }
          selectedOptions {
            name
            value
          }
        }
      }
    }
  }
}`

const collectionByHandleQuery = `
query collectionByHandle($handle: String!) {
  collection(handle: $handle) {
    id
    title
    handle
    products(first: 12) {
      edges {
        node {
          id
          title
          handle
          images(first: 1) {
            edges {
              node {
                url
                altText
              }
            }
          }
          variants(first: 5) {
            edges {
              node {
                id
                title
                price {
                  amount
                  currencyCode
                }
              }
            }
          }
        }
      }
    }
  }
}`

const allCollectionsQuery = `
query allCollections {
  collections(first: 20) {
    edges {
      node {
        id
        title
        handle
      }
    }
  }
}`

// Storefront runs storefront GraphQL documents.
type Storefront interface {
	Storefront(ctx context.Context, query string, vars map[string]any, out any) error
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Variant struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	AvailableForSale bool             `json:"availableForSale"`
	Price            commerce.Money   `json:"price"`
	SelectedOptions  []SelectedOption `json:"selectedOptions,omitempty"`
}

type Product struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Handle          string           `json:"handle"`
	DescriptionHTML string           `json:"descriptionHtml"`
	Images          []commerce.Image `json:"images"`
	Variants        []Variant        `json:"variants"`
}

// FeaturedImage is the first image, if any.
func (p *Product) FeaturedImage() (commerce.Image, bool) {
	if len(p.Images) == 0 {
		return commerce.Image{}, false
	}
	return p.Images[0], true
}

// PriceFrom is the lowest variant price.
func (p *Product) PriceFrom() (commerce.Money, bool) {
	if len(p.Variants) == 0 {
		return commerce.Money{}, false
	}
	low := p.Variants[0].Price
	for _, v := range p.Variants[1:] {
		if v.Price.Amount.LessThan(low.Amount) {
			low = v.Price
		}
	}
	return low, true
}

// OptionNames lists option names in first-seen order.
func (p *Product) OptionNames() []string {
	var names []string
	seen := map[string]bool{}
	for _, v := range p.Variants {
		for _, o := range v.SelectedOptions {
			if !seen[o.Name] {
				seen[o.Name] = true
				names = append(names, o.Name)
			}
		}
	}
	return names
}

// CollectionRef is a collection without its products.
type CollectionRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

type Collection struct {
	CollectionRef
	Products []Product `json:"products"`
}

// Landing is the home page content. Either part may be empty when its
// fetch failed.
type Landing struct {
	Featured    *Collection
	Collections []CollectionRef
}

type Catalog struct {
	api    Storefront
	logger *slog.Logger
}

func New(api Storefront, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{api: api, logger: logger}
}

type remoteProduct struct {
	ID              string                        `json:"id"`
	Title           string                        `json:"title"`
	Handle          string                        `json:"handle"`
	DescriptionHTML string                        `json:"descriptionHtml"`
	Images          commerce.Edges[commerce.Image] `json:"images"`
	Variants        commerce.Edges[Variant]        `json:"variants"`
}

func (rp *remoteProduct) reshape() Product {
	return Product{
		ID:              rp.ID,
		Title:           rp.Title,
		Handle:          rp.Handle,
		DescriptionHTML: rp.DescriptionHTML,
		Images:          rp.Images.Nodes(),
		Variants:        rp.Variants.Nodes(),
	}
}

func (c *Catalog) Product(ctx context.Context, handle string) (*Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrNotFound
	}

	var data struct {
		Product *remoteProduct `json:"product"`
	}
	if err := c.api.Storefront(ctx, productByHandleQuery, map[string]any{"handle": handle}, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, ErrNotFound
	}
	p := data.Product.reshape()
	if p.Handle == "" {
		p.Handle = handle
	}
	return &p, nil
}

func (c *Catalog) Collection(ctx context.Context, handle string) (*Collection, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrNotFound
	}

	var data struct {
		Collection *struct {
			CollectionRef
			Products commerce.Edges[remoteProduct] `json:"products"`
		} `json:"collection"`
	}
	if err := c.api.Storefront(ctx, collectionByHandleQuery, map[string]any{"handle": handle}, &data); err != nil {
		return nil, err
	}
	if data.Collection == nil {
		return nil, ErrNotFound
	}

	col := &Collection{CollectionRef: data.Collection.CollectionRef, Products: []Product{}}
	if col.Handle == "" {
		col.Handle = handle
	}
	for _, rp := range data.Collection.Products.Nodes() {
		col.Products = append(col.Products, rp.reshape())
	}
	return col, nil
}

func (c *Catalog) Collections(ctx context.Context) ([]CollectionRef, error) {
	var data struct {
		Collections commerce.Edges[CollectionRef] `json:"collections"`
	}
	if err := c.api.Storefront(ctx, allCollectionsQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Collections.Nodes(), nil
}

// Landing fetches the featured collection and the collection list
// concurrently. Failures are logged and leave that part empty.
func (c *Catalog) Landing(ctx context.Context, featured string) *Landing {
	var l Landing
	g, gctx := errgroup.WithContext(ctx)

	if featured != "" {
		g.Go(func() error {
			col, err := c.Collection(gctx, featured)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					c.logger.Warn("featured collection unavailable", "handle", featured, "error", err)
				}
				return nil
			}
			l.Featured = col
			return nil
		})
	}
	g.Go(func() error {
		cols, err := c.Collections(gctx)
		if err != nil {
			c.logger.Warn("collection list unavailable", "error", err)
			return nil
		}
		l.Collections = cols
		return nil
	})

	g.Wait()
	return &l
}
