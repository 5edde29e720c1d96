// Package config reads process configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr    string
	BaseURL string

	DatabaseURL   string
	MongoDatabase string

	Shopify Shopify
	SMTP    SMTP

	AdminNotifyEmail string

	SessionSecret   string
	SessionLifetime time.Duration
	CookieSecure    bool
	RoleTTL         time.Duration

	PurchaseMaxPages   int
	FeaturedCollection string
	CustomerIDPrefix   string
	ProductIDPrefix    string

	PruneInterval time.Duration

	LogLevel  string
	LogFormat string
}

type Shopify struct {
	StoreDomain          string
	APIVersion           string
	StorefrontToken      string
	CustomerAccountToken string
	AdminToken           string
}

// Configured reports whether any surface can be reached at all.
func (s Shopify) Configured() bool {
	return s.StoreDomain != ""
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads files (".env" when none are given) into the environment and
// then parses it. Missing files are skipped; variables already set win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv parses configuration from lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}

	cfg := &Config{
		Addr:          e.str("ADDR", ":4000"),
		BaseURL:       strings.TrimRight(e.str("BASE_URL", "http://localhost:4000"), "/"),
		DatabaseURL:   e.str("DATABASE_URL", "sqlite:storefront.db"),
		MongoDatabase: e.str("MONGO_DATABASE", "storefront"),
		Shopify: Shopify{
			StoreDomain:          e.str("SHOPIFY_STORE_DOMAIN", ""),
			APIVersion:           e.str("SHOPIFY_API_VERSION", "2024-01"),
			StorefrontToken:      e.str("SHOPIFY_STOREFRONT_API_TOKEN", ""),
			CustomerAccountToken: e.str("SHOPIFY_CUSTOMER_ACCOUNT_API_TOKEN", ""),
			AdminToken:           e.str("SHOPIFY_ADMIN_API_TOKEN", ""),
		},
		SMTP: SMTP{
			Host:     e.str("EMAIL_SERVER_HOST", ""),
			Port:     e.int("EMAIL_SERVER_PORT", 587),
			Username: e.str("EMAIL_SERVER_USER", ""),
			Password: e.str("EMAIL_SERVER_PASSWORD", ""),
			From:     e.str("EMAIL_FROM", ""),
		},
		AdminNotifyEmail:   e.str("ADMIN_NOTIFY_EMAIL", ""),
		SessionSecret:      e.str("SESSION_SECRET", ""),
		SessionLifetime:    e.duration("SESSION_LIFETIME", 30*24*time.Hour),
		CookieSecure:       e.bool("COOKIE_SECURE", false),
		RoleTTL:            e.duration("ROLE_TTL", 5*time.Minute),
		PurchaseMaxPages:   e.int("PURCHASE_MAX_ORDER_PAGES", 1),
		FeaturedCollection: e.str("FEATURED_COLLECTION", "men"),
		CustomerIDPrefix:   e.str("CUSTOMER_ID_PREFIX", "gid://shopify/Customer/"),
		ProductIDPrefix:    e.str("PRODUCT_ID_PREFIX", "gid://shopify/Product/"),
		PruneInterval:      e.duration("PRUNE_INTERVAL", time.Hour),
		LogLevel:           e.str("LOG_LEVEL", "info"),
		LogFormat:          e.str("LOG_FORMAT", "text"),
	}
	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}

	if cfg.PurchaseMaxPages < 1 {
		return nil, fmt.Errorf("config: PURCHASE_MAX_ORDER_PAGES must be at least 1")
	}
	if cfg.SessionLifetime <= 0 {
		return nil, fmt.Errorf("config: SESSION_LIFETIME must be positive")
	}
	return cfg, nil
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return d
}

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("config: LOG_FORMAT: unknown format %q", format)
}
