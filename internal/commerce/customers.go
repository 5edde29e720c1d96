package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrMissingCustomerID is returned when customerCreate succeeds without
// errors but also without a customer id.
var ErrMissingCustomerID = errors.New("commerce: customer created without id")

const customerCreateMutation = `
mutation customerCreate($input: CustomerCreateInput!) {
  customerCreate(input: $input) {
    customer {
      id
    }
    customerUserErrors {
      field
      message
      code
    }
  }
}`

type CustomerInput struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	AcceptsMarketing bool   `json:"acceptsMarketing"`
}

// SplitName splits a display name into first and last names on the first
// space.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// CustomerCreate creates a customer and returns its reference.
func (c *Client) CustomerCreate(ctx context.Context, in CustomerInput) (string, error) {
	var data struct {
		CustomerCreate struct {
			Customer *struct {
				ID string `json:"id"`
			} `json:"customer"`
			CustomerUserErrors UserErrors `json:"customerUserErrors"`
		} `json:"customerCreate"`
	}

	vars := map[string]any{"input": in}
	if err := c.Storefront(ctx, customerCreateMutation, vars, &data); err != nil {
		return "", err
	}

	payload := data.CustomerCreate
	if err := payload.CustomerUserErrors.Err(); err != nil {
		return "", err
	}
	if payload.Customer == nil || payload.Customer.ID == "" {
		return "", ErrMissingCustomerID
	}
	return payload.Customer.ID, nil
}

// SetCustomerPassword replaces a customer's password through the admin API.
func (c *Client) SetCustomerPassword(ctx context.Context, customerID, password string) error {
	id, err := strconv.ParseInt(customerID, 10, 64)
	if err != nil {
		return fmt.Errorf("commerce: invalid customer id %q", customerID)
	}

	body := map[string]any{
		"customer": map[string]any{
			"id":                    id,
			"password":              password,
			"password_confirmation": password,
		},
	}
	_, err = c.Admin(ctx, http.MethodPut, fmt.Sprintf("customers/%d.json", id), body, nil)
	return err
}

// CustomerOrders fetches one page of a customer's orders, newest first.
// pageInfo is the cursor returned as OrderPage.Next; empty for the first
// page.
func (c *Client) CustomerOrders(ctx context.Context, customerID string, limit int, pageInfo string) (*OrderPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if pageInfo != "" {
		// Cursor pages reject every filter except limit.
		q.Set("page_info", pageInfo)
	} else {
		q.Set("customer_id", customerID)
		q.Set("status", "any")
	}

	var resp struct {
		Orders *[]Order `json:"orders"`
	}
	header, err := c.Admin(ctx, http.MethodGet, "orders.json?"+q.Encode(), nil, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Orders == nil {
		return nil, &UpstreamError{Surface: SurfaceAdmin, Status: http.StatusOK, Err: errors.New("response has no orders field")}
	}

	return &OrderPage{
		Orders: ownedBy(*resp.Orders, customerID),
		Next:   nextPageInfo(header.Get("Link")),
	}, nil
}

// ownedBy keeps the orders whose customer is customerID. Cursor pages carry
// no customer filter upstream, so a cursor minted for another query must
// not surface foreign orders.
func ownedBy(orders []Order, customerID string) []Order {
	id, err := strconv.ParseInt(customerID, 10, 64)
	if err != nil {
		return []Order{}
	}
	kept := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Customer != nil && o.Customer.ID == id {
			kept = append(kept, o)
		}
	}
	return kept
}

var linkNextRE = regexp.MustCompile(`<([^>]+)>;\s*rel="?next"?`)

// nextPageInfo extracts the page_info cursor of the rel="next" link.
func nextPageInfo(link string) string {
	m := linkNextRE.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	u, err := url.Parse(m[1])
	if err != nil {
		return ""
	}
	return u.Query().Get("page_info")
}

func (c *Client) Shop(ctx context.Context) (*Shop, error) {
	var resp struct {
		Shop *Shop `json:"shop"`
	}
	if _, err := c.Admin(ctx, http.MethodGet, "shop.json", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Shop == nil {
		return nil, &UpstreamError{Surface: SurfaceAdmin, Status: http.StatusOK, Err: errors.New("response has no shop field")}
	}
	return resp.Shop, nil
}

const (
	storefrontProbeQuery = `{ shop { name primaryDomain { url host } } }`
	customerProbeQuery   = `{ shop { name } }`
)

// SurfaceStatus is the outcome of probing one surface.
type SurfaceStatus struct {
	OK       bool   `json:"success"`
	ShopName string `json:"shopName,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ProbeResult struct {
	Storefront SurfaceStatus `json:"storefront"`
	Customer   SurfaceStatus `json:"customer"`
	Admin      SurfaceStatus `json:"admin"`
}

// Healthy reports whether at least one surface answered.
func (r ProbeResult) Healthy() bool {
	return r.Storefront.OK || r.Customer.OK || r.Admin.OK
}

// Probe checks connectivity to all three surfaces concurrently. Failures
// are reported per surface, never returned.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	var res ProbeResult
	g, gctx := errgroup.WithContext(ctx)

	type shopData struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}

	g.Go(func() error {
		var data shopData
		res.Storefront = status(c.Storefront(gctx, storefrontProbeQuery, nil, &data), data.Shop.Name)
		return nil
	})
	g.Go(func() error {
		var data shopData
		res.Customer = status(c.CustomerAccount(gctx, customerProbeQuery, nil, &data), data.Shop.Name)
		return nil
	})
	g.Go(func() error {
		shop, err := c.Shop(gctx)
		name := ""
		if shop != nil {
			name = shop.Name
		}
		res.Admin = status(err, name)
		return nil
	})
	g.Wait()
	return res
}

func status(err error, shopName string) SurfaceStatus {
	if err != nil {
		return SurfaceStatus{Error: err.Error()}
	}
	return SurfaceStatus{OK: true, ShopName: shopName}
}
