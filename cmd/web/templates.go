package main

import (
	"html/template"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/reviews"
	"storefront/ui"
)

type TemplateData struct {
	CurrentYear     int
	IsAuthenticated bool
	IsAdmin         bool
	UserEmail       string
	Flash           string

	Form        map[string]string
	FormError   string
	CallbackURL string
	Token       string

	Landing    *catalog.Landing
	Collection *catalog.Collection
	Product    *catalog.Product

	Reviews     []*models.ReviewWithAuthor
	Summary     reviews.Summary
	Eligibility reviews.Eligibility

	Orders            []commerce.Order
	OrdersUnavailable bool

	User         *models.User
	Users        []*models.User
	PendingCount int
}

func humanDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02 Jan 2006 at 15:04")
}

func stars(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

// trustedHTML marks product descriptions from the commerce platform as
// safe to embed.
func trustedHTML(s string) template.HTML {
	return template.HTML(s)
}

// priceFrom renders the lowest variant price, or nothing for a product
// without variants.
func priceFrom(p catalog.Product) string {
	if low, ok := p.PriceFrom(); ok {
		return "From " + low.String()
	}
	return ""
}

func featuredImage(p catalog.Product) *commerce.Image {
	if img, ok := p.FeaturedImage(); ok {
		return &img
	}
	return nil
}

var functions = template.FuncMap{
	"humanDate":     humanDate,
	"stars":         stars,
	"trustedHTML":   trustedHTML,
	"priceFrom":     priceFrom,
	"featuredImage": featuredImage,
}

func newTemplateCache() (map[string]*template.Template, error) {
	cache := make(map[string]*template.Template)

	pages, err := fs.Glob(ui.Files, "html/pages/*.page.tmpl")
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		name := filepath.Base(page)

		patterns := []string{
			"html/base.layout.tmpl",
			"html/partials/*.partial.tmpl",
			page,
		}

		ts, err := template.New(name).Funcs(functions).ParseFS(ui.Files, patterns...)
		if err != nil {
			return nil, err
		}

		cache[name] = ts
	}

	return cache, nil
}
