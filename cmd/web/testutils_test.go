package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/commerce"
	"storefront/internal/config"
	"storefront/internal/mailer"
	"storefront/internal/models"
	"storefront/internal/observability"
	"storefront/internal/repository"
)

const testPassword = "pa55word!"

// captureMailer records every message instead of sending it. With fail set
// it refuses every message.
type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) count(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.sent {
		if msg.To == to {
			n++
		}
	}
	return n
}

// fakeShop plays the commerce platform. orders maps a numeric customer id
// to the product ids on its orders.
type fakeShop struct {
	mu     sync.Mutex
	orders map[string][]int64
	calls  int
}

func (f *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/orders.json"):
		// A cursor request carries no customer filter, so it answers with
		// every customer's orders like the real admin API would.
		scope := r.URL.Query().Get("customer_id")
		f.mu.Lock()
		orders := make([]map[string]any, 0, len(f.orders))
		for customer, ids := range f.orders {
			if r.URL.Query().Get("page_info") == "" && customer != scope {
				continue
			}
			items := make([]map[string]any, 0, len(ids))
			for i, id := range ids {
				items = append(items, map[string]any{"id": i + 1, "product_id": id, "title": "Item", "quantity": 1})
			}
			cid, _ := strconv.ParseInt(customer, 10, 64)
			orders = append(orders, map[string]any{
				"id": 1000 + cid, "name": "#" + customer, "customer": map[string]any{"id": cid}, "line_items": items,
			})
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"orders": orders})
	case strings.HasSuffix(r.URL.Path, "/graphql.json"):
		body, _ := io.ReadAll(r.Body)
		if bytes.Contains(body, []byte("customerCreate")) {
			io.WriteString(w, `{"data":{"customerCreate":{"customer":{"id":"cust_42"},"customerUserErrors":[]}}}`)
			return
		}
		io.WriteString(w, `{"data":{"cart":null,"product":null,"collection":null,"collections":{"edges":[]}}}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeShop) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testServer struct {
	*httptest.Server
	app   *application
	store *repository.Store
	shop  *fakeShop
	mail  *captureMailer
}

func newTestApplication(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := repository.Open(context.Background(), "sqlite::memory:", repository.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })

	shop := &fakeShop{orders: map[string][]int64{}}
	upstream := httptest.NewServer(shop)
	t.Cleanup(upstream.Close)

	obs := observability.New()
	cfg := &config.Config{
		BaseURL:            "http://storefront.test",
		SessionSecret:      "test-secret",
		SessionLifetime:    time.Hour,
		RoleTTL:            time.Minute,
		PurchaseMaxPages:   1,
		FeaturedCollection: "men",
		CustomerIDPrefix:   "cust_",
		ProductIDPrefix:    "prod_",
	}
	mail := &captureMailer{}

	app, err := newApplication(dependencies{
		cfg:    cfg,
		logger: logger,
		obs:    obs,
		store:  store,
		shop: commerce.New(commerce.Config{
			BaseURL:         upstream.URL,
			StorefrontToken: "sf",
			AdminToken:      "admin",
			Logger:          logger,
		}),
		mail: mail,
	})
	require.NoError(t, err)
	t.Cleanup(func() { app.notifier.Close(context.Background()) })

	ts := httptest.NewServer(app.routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	ts.Client().Jar = jar
	ts.Client().CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &testServer{Server: ts, app: app, store: store, shop: shop, mail: mail}
}

func (ts *testServer) seedUser(t *testing.T, email string, role models.Role, customerRef string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CustomerRef:  customerRef,
	}
	require.NoError(t, ts.store.Users.Insert(context.Background(), u))
	return u
}

func (ts *testServer) seedReview(t *testing.T, userID, productID string, status models.ReviewStatus, response *string) *models.Review {
	t.Helper()

	r := &models.Review{
		UserID:        userID,
		ProductID:     productID,
		Rating:        4,
		Comment:       "Nice",
		Status:        status,
		AdminResponse: response,
	}
	require.NoError(t, ts.store.Reviews.Insert(context.Background(), r))
	return r
}

// login signs in through the JSON API, leaving the session cookie in the
// client's jar.
func (ts *testServer) login(t *testing.T, email string) {
	t.Helper()
	status, _, _ := ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, status)
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (int, http.Header, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rs, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer rs.Body.Close()

	raw, err := io.ReadAll(rs.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(rs.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return rs.StatusCode, rs.Header, out
}

func (ts *testServer) get(t *testing.T, path string) (int, string) {
	t.Helper()

	rs, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer rs.Body.Close()

	raw, err := io.ReadAll(rs.Body)
	require.NoError(t, err)
	return rs.StatusCode, string(raw)
}
