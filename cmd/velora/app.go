package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/address"
	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/cart"
	"github.com/Hemanshudhaduk/Velora/internal/catalog"
	"github.com/Hemanshudhaduk/Velora/internal/checkout"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/orders"
	"github.com/Hemanshudhaduk/Velora/internal/paywidget"
	"github.com/Hemanshudhaduk/Velora/internal/platform/config"
	"github.com/Hemanshudhaduk/Velora/internal/platform/observability"
	"github.com/Hemanshudhaduk/Velora/internal/platform/secrets"
	"github.com/Hemanshudhaduk/Velora/internal/profile"
	"github.com/Hemanshudhaduk/Velora/internal/session"
	"github.com/Hemanshudhaduk/Velora/internal/storage"
)

const meterName = "github.com/Hemanshudhaduk/Velora"

type globalOptions struct {
	envFile    string
	apiBaseURL string
	logLevel   string
	logFormat  string
	stateDir   string
}

// app holds the wired components for one CLI invocation.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher *secrets.Fetcher
	out     io.Writer
	money   domain.MoneyFormatter

	client    *apiclient.Client
	session   *session.Holder
	cart      *cart.Store
	catalog   *catalog.Service
	addresses *address.Book
	orders    *orders.Service
	profile   *profile.Service
	widget    *paywidget.Server
}

func newApp(ctx context.Context, opts globalOptions, out io.Writer) (*app, error) {
	fetcher, err := newSecretFetcher(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise secret fetcher: %w", err)
	}

	overrides := map[string]string{}
	if opts.apiBaseURL != "" {
		overrides["VELORA_API_BASE_URL"] = opts.apiBaseURL
	}
	if opts.logLevel != "" {
		overrides["LOG_LEVEL"] = opts.logLevel
	}
	if opts.logFormat != "" {
		overrides["VELORA_LOG_FORMAT"] = opts.logFormat
	}
	if opts.stateDir != "" {
		overrides["VELORA_STATE_DIR"] = opts.stateDir
	}
	cfg, err := config.Load(ctx,
		config.WithEnvFile(opts.envFile),
		config.WithEnvMap(overrides),
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		_ = fetcher.Close()
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("invalid configuration: %s", strings.Join(invalid.Fields(), ", "))
		}
		return nil, err
	}

	baseLogger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		_ = fetcher.Close()
		return nil, fmt.Errorf("initialise logger: %w", err)
	}
	logger := baseLogger.Named("velora")

	a := &app{
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		out:     out,
		money:   domain.NewMoneyFormatter(cfg.Pricing.Currency, cfg.Pricing.Locale),
	}
	if err := a.wire(); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	logger := a.logger

	kv, err := storage.OpenFileStore(storage.FileConfig{
		Dir:      a.cfg.State.Dir,
		HashKey:  []byte(a.cfg.State.HashKey),
		BlockKey: []byte(a.cfg.State.BlockKey),
		Logger:   logger.Named("storage"),
	})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	persisted := storage.NewAdapter(kv)

	// Cookie-session backends set their session cookie on sign-in; the jar carries it.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	metrics := observability.NewClientMetrics(otel.GetMeterProvider().Meter(meterName), logger)
	client, err := apiclient.New(a.cfg.API.BaseURL,
		apiclient.WithHTTPClient(&http.Client{Jar: jar, Timeout: a.cfg.API.Timeout}),
		apiclient.WithLogger(logger.Named("api")),
		apiclient.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	a.client = client

	holder, err := session.New(session.Deps{Transport: client, Store: persisted, Logger: logger.Named("session")})
	if err != nil {
		return err
	}
	a.session = holder

	cartStore, err := cart.New(cart.Deps{Session: holder, Snapshots: persisted, Logger: logger.Named("cart")})
	if err != nil {
		return err
	}
	holder.OnSignOut(cartStore.Clear)
	a.cart = cartStore

	if a.catalog, err = catalog.New(client, catalog.Config{
		PageSize:      a.cfg.Listing.ProductPageSize,
		FeaturedLimit: a.cfg.Listing.FeaturedLimit,
	}, logger.Named("catalog")); err != nil {
		return err
	}
	if a.addresses, err = address.New(holder, logger.Named("address")); err != nil {
		return err
	}
	if a.orders, err = orders.New(orders.Deps{
		Session:  holder,
		PageSize: a.cfg.Listing.OrderPageSize,
		Logger:   logger.Named("orders"),
	}); err != nil {
		return err
	}
	if a.profile, err = profile.New(holder, logger.Named("profile")); err != nil {
		return err
	}
	return nil
}

// bootstrap restores the persisted session and cart before a command runs.
func (a *app) bootstrap(ctx context.Context) {
	a.session.Bootstrap(ctx)
	a.cart.Hydrate()
}

func (a *app) newCheckout() (*checkout.Orchestrator, error) {
	a.widget = paywidget.New(paywidget.Config{
		Addr:    a.cfg.Payment.CallbackAddr,
		Timeout: a.cfg.Payment.WidgetTimeout,
		Logger:  a.logger.Named("paywidget"),
		Announce: func(order checkout.GatewayOrder, pageURL string) {
			fmt.Fprintf(a.out, "Complete payment of %s for %s in your browser:\n  %s\n",
				a.money.Format(minorToMajor(order.Amount)), order.Description, pageURL)
		},
	})
	rules := checkout.PricingRules{
		FreeShippingThreshold: a.cfg.Pricing.FreeShippingThreshold,
		ShippingFee:           a.cfg.Pricing.ShippingFee,
		CODFee:                a.cfg.Pricing.CODFee,
		TaxRate:               a.cfg.Pricing.TaxRate,
	}
	return checkout.New(checkout.Deps{
		Session: a.session,
		Cart:    a.cart,
		Widget:  a.widget,
		Pricing: &rules,
		KeyID:   a.cfg.Payment.KeyID,
		Logger:  a.logger.Named("checkout"),
	})
}

func (a *app) close(ctx context.Context) {
	if a.widget != nil {
		if err := a.widget.Close(ctx); err != nil {
			a.logger.Warn("payment callback listener close", zap.Error(err))
		}
	}
	if a.fetcher != nil {
		if err := a.fetcher.Close(); err != nil {
			a.logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// newSecretFetcher reads its settings straight from the environment since config
// loading itself depends on the fetcher.
func newSecretFetcher(ctx context.Context) (*secrets.Fetcher, error) {
	return secrets.New(ctx, secrets.Config{
		Project:      strings.TrimSpace(os.Getenv("VELORA_SECRETS_PROJECT")),
		FallbackFile: strings.TrimSpace(os.Getenv("VELORA_SECRETS_FALLBACK_FILE")),
	})
}
