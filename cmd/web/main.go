package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/sync/errgroup"

	"storefront/internal/accounts"
	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/commerce"
	"storefront/internal/config"
	"storefront/internal/mailer"
	"storefront/internal/observability"
	"storefront/internal/purchase"
	"storefront/internal/repository"
	"storefront/internal/reviews"
)

type application struct {
	cfg     *config.Config
	logger  *slog.Logger
	obs     *observability.Config
	metrics *observability.Metrics

	store    *repository.Store
	session  *scs.SessionManager
	gate     *auth.Gate
	shop     *commerce.Client
	ids      commerce.IDScheme
	catalog  *catalog.Catalog
	carts    *cart.Bridge
	accounts *accounts.Service
	reviews  *reviews.Service
	notifier *mailer.Notifier

	templateCache map[string]*template.Template
}

// dependencies are the process-wide resources opened in main and handed to
// the application.
type dependencies struct {
	cfg    *config.Config
	logger *slog.Logger
	obs    *observability.Config
	store  *repository.Store
	shop   *commerce.Client
	mail   mailer.Mailer
}

func newApplication(d dependencies) (*application, error) {
	templateCache, err := newTemplateCache()
	if err != nil {
		return nil, err
	}

	cfg := d.cfg
	ids := commerce.IDScheme{CustomerPrefix: cfg.CustomerIDPrefix, ProductPrefix: cfg.ProductIDPrefix}

	session := auth.NewSessionManager(d.store.Sessions, auth.SessionConfig{
		Lifetime: cfg.SessionLifetime,
		Secure:   cfg.CookieSecure,
	})
	gate := auth.NewGate(session, d.store.Users, auth.WithRoleTTL(cfg.RoleTTL), auth.WithLogger(d.logger))

	notifier := mailer.NewNotifier(d.mail, mailer.NotifierConfig{
		AdminEmail: cfg.AdminNotifyEmail,
		BaseURL:    cfg.BaseURL,
		Logger:     d.logger,
		Obs:        d.obs,
	})

	verifier := purchase.NewVerifier(d.shop, ids,
		purchase.WithMaxPages(cfg.PurchaseMaxPages),
		purchase.WithLogger(d.logger),
		purchase.WithObservability(d.obs),
	)

	app := &application{
		cfg:      cfg,
		logger:   d.logger,
		obs:      d.obs,
		metrics:  d.obs.Metrics(),
		store:    d.store,
		session:  session,
		gate:     gate,
		shop:     d.shop,
		ids:      ids,
		catalog:  catalog.New(d.shop, d.logger),
		carts:    cart.NewBridge(d.shop, d.logger),
		notifier: notifier,
		accounts: accounts.NewService(d.store.Users, d.store.Tokens, d.shop, d.mail, accounts.Config{
			BaseURL:     cfg.BaseURL,
			ResetSecret: []byte(cfg.SessionSecret),
			IDs:         ids,
		}, accounts.WithLogger(d.logger)),
		reviews: reviews.NewService(d.store.Users, d.store.Reviews, verifier,
			reviews.WithNotifier(notifier),
			reviews.WithLogger(d.logger),
			reviews.WithObservability(d.obs),
		),
		templateCache: templateCache,
	}
	return app, nil
}

func main() {
	addr := flag.String("addr", "", "HTTP network address (overrides ADDR)")
	envFile := flag.String("env", ".env", "dotenv file loaded when present")
	createAdmin := flag.String("create-admin", "", "grant ADMIN to the account with this email and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger, err := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger, *createAdmin); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, createAdmin string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.DatabaseURL, repository.Options{
		MongoDatabase: cfg.MongoDatabase,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer store.Close(context.Background())
	logger.Info("connected to database", "backend", store.Backend)

	obs := observability.New(
		observability.WithGlobalProviders(),
		observability.WithServiceName("storefront"),
		observability.WithServerTiming(),
	)

	if !cfg.Shopify.Configured() {
		logger.Warn("SHOPIFY_STORE_DOMAIN is not set; catalog, cart and purchase checks will fail")
	}
	shop := commerce.New(commerce.Config{
		StoreDomain:          cfg.Shopify.StoreDomain,
		APIVersion:           cfg.Shopify.APIVersion,
		StorefrontToken:      cfg.Shopify.StorefrontToken,
		CustomerAccountToken: cfg.Shopify.CustomerAccountToken,
		AdminToken:           cfg.Shopify.AdminToken,
		Logger:               logger,
		Observability:        obs,
	})

	if cfg.SMTP.Host == "" {
		logger.Warn("EMAIL_SERVER_HOST is not set; password reset and admin notifications will fail")
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET is not set; password reset is disabled")
	}
	m := mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	app, err := newApplication(dependencies{
		cfg:    cfg,
		logger: logger,
		obs:    obs,
		store:  store,
		shop:   shop,
		mail:   m,
	})
	if err != nil {
		return err
	}

	if createAdmin != "" {
		user, err := app.accounts.PromoteAdmin(ctx, createAdmin)
		if err != nil {
			return fmt.Errorf("create admin %s: %w", createAdmin, err)
		}
		logger.Info("admin granted", "user", user.ID, "email", user.Email)
		return app.notifier.Close(ctx)
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      app.routes(),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		app.janitor(gctx, cfg.PruneInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cerr := app.notifier.Close(shutdownCtx); cerr != nil {
			logger.Warn("notification queue not drained", "error", cerr)
		}
		return err
	})
	return g.Wait()
}
