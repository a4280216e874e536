package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	secretScheme                 = "secret://"
	defaultEnvFile               = ".env"
	defaultAPIBaseURL            = "https://clothing-store-server.vercel.app"
	defaultStateDirName          = ".velora"
	defaultCurrency              = "INR"
	defaultLocale                = "en-IN"
	defaultCallbackAddr          = "127.0.0.1:8787"
	defaultWidgetTimeout         = 15 * time.Minute
	defaultLogFormat             = "json"
	defaultFreeShippingThreshold = "1000"
	defaultShippingFee           = "50"
	defaultCODFee                = "69"
	defaultTaxRate               = "0.05"
	defaultProductPageSize       = 20
	defaultOrderPageSize         = 10
	defaultFeaturedLimit         = 8
)

// Config is the resolved configuration for one CLI invocation.
type Config struct {
	API     APIConfig
	State   StateConfig
	Pricing PricingConfig
	Payment PaymentConfig
	Listing ListingConfig
	Logging LoggingConfig
}

// APIConfig points the client at the storefront backend.
type APIConfig struct {
	BaseURL string
	// Timeout of zero leaves requests unbounded; callers apply their own deadlines.
	Timeout time.Duration
}

// StateConfig controls where and how the local session snapshot is persisted.
type StateConfig struct {
	Dir      string
	HashKey  string
	BlockKey string
}

// PricingConfig holds the advisory checkout charges shown before order creation.
type PricingConfig struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	CODFee                decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              string
	Locale                string
}

// PaymentConfig configures the local payment widget callback listener.
type PaymentConfig struct {
	CallbackAddr  string
	KeyID         string
	WidgetTimeout time.Duration
}

// ListingConfig sets page sizes for paginated catalog and order listings.
type ListingConfig struct {
	ProductPageSize int
	OrderPageSize   int
	FeaturedLimit   int
}

// LoggingConfig selects logger output.
type LoggingConfig struct {
	Level  string
	Format string
}

// SecretResolver turns a secret:// reference into its plaintext.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists every field that was unparsable or out of range.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: invalid " + strings.Join(e.fields, ", ")
}

func (e *ValidationError) Fields() []string {
	return slices.Clone(e.fields)
}

// SecretError wraps a failed secret:// lookup.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve %s: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("no secret resolver")

type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
	homeDir      func() (string, error)
}

// WithEnvFile reads a dotenv file at path; "" skips it. A missing file is not an error.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that win over both the process environment and the dotenv file.
// The CLI passes its flag overrides this way.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithHomeDir replaces os.UserHomeDir when deriving the default state directory.
func WithHomeDir(fn func() (string, error)) Option {
	return func(o *loaderOptions) {
		if fn != nil {
			o.homeDir = fn
		}
	}
}

// Load builds the client configuration. Each key is taken from the first of: the
// WithEnvMap values, the process environment, the dotenv file, the built-in default.
// secret:// values are then resolved and the result validated as a whole.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		homeDir:      os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	src := &source{lookup: func(key string) (string, bool) {
		if v, ok := options.envMap[key]; ok {
			return v, true
		}
		if options.useSystemEnv {
			if v, ok := os.LookupEnv(key); ok {
				return v, true
			}
		}
		v, ok := dotEnv[key]
		return v, ok
	}}

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(src.str("VELORA_API_BASE_URL", defaultAPIBaseURL), "/"),
			Timeout: src.duration("API.Timeout", "VELORA_API_TIMEOUT", 0),
		},
		State: StateConfig{
			Dir:      src.str("VELORA_STATE_DIR", ""),
			HashKey:  src.str("VELORA_SESSION_HASH_KEY", ""),
			BlockKey: src.str("VELORA_SESSION_BLOCK_KEY", ""),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: src.decimal("Pricing.FreeShippingThreshold", "VELORA_PRICING_FREE_SHIPPING_THRESHOLD", defaultFreeShippingThreshold),
			ShippingFee:           src.decimal("Pricing.ShippingFee", "VELORA_PRICING_SHIPPING_FEE", defaultShippingFee),
			CODFee:                src.decimal("Pricing.CODFee", "VELORA_PRICING_COD_FEE", defaultCODFee),
			TaxRate:               src.decimal("Pricing.TaxRate", "VELORA_PRICING_TAX_RATE", defaultTaxRate),
			Currency:              strings.ToUpper(src.str("VELORA_CURRENCY", defaultCurrency)),
			Locale:                src.str("VELORA_LOCALE", defaultLocale),
		},
		Payment: PaymentConfig{
			CallbackAddr:  src.str("VELORA_PAYMENT_CALLBACK_ADDR", defaultCallbackAddr),
			KeyID:         src.str("VELORA_PAYMENT_KEY_ID", ""),
			WidgetTimeout: src.duration("Payment.WidgetTimeout", "VELORA_PAYMENT_WIDGET_TIMEOUT", defaultWidgetTimeout),
		},
		Listing: ListingConfig{
			ProductPageSize: src.integer("Listing.ProductPageSize", "VELORA_PRODUCT_PAGE_SIZE", defaultProductPageSize),
			OrderPageSize:   src.integer("Listing.OrderPageSize", "VELORA_ORDER_PAGE_SIZE", defaultOrderPageSize),
			FeaturedLimit:   src.integer("Listing.FeaturedLimit", "VELORA_FEATURED_LIMIT", defaultFeaturedLimit),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(src.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(src.str("VELORA_LOG_FORMAT", defaultLogFormat)),
		},
	}

	if cfg.State.Dir == "" {
		cfg.State.Dir = defaultStateDirName
		if home, err := options.homeDir(); err == nil && strings.TrimSpace(home) != "" {
			cfg.State.Dir = filepath.Join(home, defaultStateDirName)
		}
	}

	for _, field := range []*string{&cfg.State.HashKey, &cfg.State.BlockKey, &cfg.Payment.KeyID} {
		if *field, err = resolveSecret(ctx, *field, options.secret); err != nil {
			return Config{}, err
		}
	}

	if bad := validate(cfg, src.invalid); len(bad) > 0 {
		return Config{}, &ValidationError{fields: bad}
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	ref := strings.TrimSpace(value)
	if !strings.HasPrefix(ref, secretScheme) {
		return value, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

// validate returns the names of fields that failed to parse or hold unusable values.
func validate(cfg Config, unparsed []string) []string {
	bad := append([]string(nil), unparsed...)
	check := func(ok bool, field string) {
		if !ok && !slices.Contains(bad, field) {
			bad = append(bad, field)
		}
	}

	u, err := url.Parse(cfg.API.BaseURL)
	check(err == nil && u.Scheme != "" && u.Host != "", "API.BaseURL")
	check(cfg.API.Timeout >= 0, "API.Timeout")
	check(!cfg.Pricing.TaxRate.IsNegative() && cfg.Pricing.TaxRate.LessThanOrEqual(decimal.NewFromInt(1)), "Pricing.TaxRate")
	check(!cfg.Pricing.ShippingFee.IsNegative(), "Pricing.ShippingFee")
	check(!cfg.Pricing.CODFee.IsNegative(), "Pricing.CODFee")
	check(len(cfg.Pricing.Currency) == 3, "Pricing.Currency")
	check(cfg.Payment.CallbackAddr != "", "Payment.CallbackAddr")
	check(cfg.Payment.WidgetTimeout > 0, "Payment.WidgetTimeout")
	// securecookie accepts AES-128/192/256 block keys; encryption requires a hash key too.
	switch len(cfg.State.BlockKey) {
	case 0, 16, 24, 32:
	default:
		check(false, "State.BlockKey")
	}
	check(cfg.State.BlockKey == "" || cfg.State.HashKey != "", "State.HashKey")
	check(cfg.Listing.ProductPageSize > 0, "Listing.ProductPageSize")
	check(cfg.Listing.OrderPageSize > 0, "Listing.OrderPageSize")
	check(cfg.Listing.FeaturedLimit > 0, "Listing.FeaturedLimit")
	check(cfg.Logging.Format == "json" || cfg.Logging.Format == "console", "Logging.Format")
	return bad
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return values, nil
}

// source reads keys in precedence order and remembers the fields whose values did not parse.
type source struct {
	lookup  func(string) (string, bool)
	invalid []string
}

func (s *source) raw(key string) (string, bool) {
	v, ok := s.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (s *source) str(key, fallback string) string {
	if v, ok := s.raw(key); ok {
		return v
	}
	return fallback
}

func (s *source) duration(field, key string, fallback time.Duration) time.Duration {
	v, ok := s.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		s.invalid = append(s.invalid, field)
		return fallback
	}
	return d
}

func (s *source) integer(field, key string, fallback int) int {
	v, ok := s.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.invalid = append(s.invalid, field)
		return fallback
	}
	return n
}

func (s *source) decimal(field, key, fallback string) decimal.Decimal {
	v, ok := s.raw(key)
	if !ok {
		return decimal.RequireFromString(fallback)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		s.invalid = append(s.invalid, field)
		return decimal.RequireFromString(fallback)
	}
	return d
}
