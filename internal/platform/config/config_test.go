package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func noHome() (string, error) { return "", errors.New("no home") }

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""), WithHomeDir(noHome))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.API.BaseURL != defaultAPIBaseURL {
		t.Errorf("expected default base url, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 0 {
		t.Errorf("expected no default timeout, got %s", cfg.API.Timeout)
	}
	if cfg.State.Dir != defaultStateDirName {
		t.Errorf("expected state dir fallback %s, got %s", defaultStateDirName, cfg.State.Dir)
	}
	if !cfg.Pricing.FreeShippingThreshold.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("unexpected free shipping threshold: %s", cfg.Pricing.FreeShippingThreshold)
	}
	if !cfg.Pricing.ShippingFee.Equal(decimal.NewFromInt(50)) {
		t.Errorf("unexpected shipping fee: %s", cfg.Pricing.ShippingFee)
	}
	if !cfg.Pricing.CODFee.Equal(decimal.NewFromInt(69)) {
		t.Errorf("unexpected cod fee: %s", cfg.Pricing.CODFee)
	}
	if !cfg.Pricing.TaxRate.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("unexpected tax rate: %s", cfg.Pricing.TaxRate)
	}
	if cfg.Pricing.Currency != "INR" {
		t.Errorf("expected INR, got %s", cfg.Pricing.Currency)
	}
	if cfg.Listing.OrderPageSize != 10 || cfg.Listing.ProductPageSize != 20 || cfg.Listing.FeaturedLimit != 8 {
		t.Errorf("unexpected listing defaults: %+v", cfg.Listing)
	}
	if cfg.Payment.CallbackAddr != defaultCallbackAddr {
		t.Errorf("unexpected callback addr: %s", cfg.Payment.CallbackAddr)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json log format, got %s", cfg.Logging.Format)
	}
}

func TestLoadStateDirFromHome(t *testing.T) {
	home := func() (string, error) { return "/home/shopper", nil }
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithHomeDir(home))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.State.Dir != filepath.Join("/home/shopper", ".velora") {
		t.Errorf("unexpected state dir: %s", cfg.State.Dir)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"VELORA_API_BASE_URL":                    "https://api.example.com/",
		"VELORA_API_TIMEOUT":                     "20s",
		"VELORA_STATE_DIR":                       "/tmp/velora",
		"VELORA_SESSION_HASH_KEY":                "secret://session/hash",
		"VELORA_SESSION_BLOCK_KEY":               "secret://session/block",
		"VELORA_PRICING_FREE_SHIPPING_THRESHOLD": "1500",
		"VELORA_PRICING_TAX_RATE":                "0.18",
		"VELORA_CURRENCY":                        "usd",
		"VELORA_PAYMENT_WIDGET_TIMEOUT":          "2m",
		"VELORA_LOG_FORMAT":                      "console",
	}
	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		switch ref {
		case "secret://session/hash":
			return "hash-key-value", nil
		case "secret://session/block":
			return "0123456789abcdef", nil
		}
		return "", errors.New("unexpected ref " + ref)
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 20*time.Second {
		t.Errorf("unexpected timeout: %s", cfg.API.Timeout)
	}
	if cfg.State.HashKey != "hash-key-value" {
		t.Errorf("hash key not resolved: %s", cfg.State.HashKey)
	}
	if cfg.State.BlockKey != "0123456789abcdef" {
		t.Errorf("block key not resolved: %s", cfg.State.BlockKey)
	}
	if !cfg.Pricing.FreeShippingThreshold.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("unexpected threshold: %s", cfg.Pricing.FreeShippingThreshold)
	}
	if cfg.Pricing.Currency != "USD" {
		t.Errorf("expected currency upper-cased, got %s", cfg.Pricing.Currency)
	}
	if cfg.Payment.WidgetTimeout != 2*time.Minute {
		t.Errorf("unexpected widget timeout: %s", cfg.Payment.WidgetTimeout)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("unexpected log format: %s", cfg.Logging.Format)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nVELORA_API_BASE_URL=\"http://localhost:5000\"\nexport VELORA_PRICING_COD_FEE=75\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(), WithHomeDir(noHome))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:5000" {
		t.Errorf("expected base url from dotenv, got %s", cfg.API.BaseURL)
	}
	if !cfg.Pricing.CODFee.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected cod fee from dotenv, got %s", cfg.Pricing.CODFee)
	}
}

func TestLoadEnvMapOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VELORA_CURRENCY=EUR\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithEnvMap(map[string]string{"VELORA_CURRENCY": "GBP"}), WithoutSystemEnv(), WithHomeDir(noHome))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pricing.Currency != "GBP" {
		t.Errorf("expected env map to win, got %s", cfg.Pricing.Currency)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	env := map[string]string{
		"VELORA_API_BASE_URL":      "not a url",
		"VELORA_PRICING_TAX_RATE":  "five percent",
		"VELORA_SESSION_BLOCK_KEY": "short",
		"VELORA_LOG_FORMAT":        "xml",
		"VELORA_API_TIMEOUT":       "soon",
		"VELORA_ORDER_PAGE_SIZE":   "ten",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithHomeDir(noHome))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := map[string]bool{}
	for _, f := range vErr.Fields() {
		fields[f] = true
	}
	for _, want := range []string{"API.BaseURL", "API.Timeout", "Pricing.TaxRate", "State.BlockKey", "State.HashKey", "Logging.Format", "Listing.OrderPageSize"} {
		if !fields[want] {
			t.Errorf("expected %s in invalid fields, got %v", want, vErr.Fields())
		}
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"VELORA_SESSION_HASH_KEY": "secret://session/hash",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithHomeDir(noHome))
	if err == nil {
		t.Fatal("expected error when no resolver configured")
	}
	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if sErr.Ref != "secret://session/hash" {
		t.Errorf("unexpected ref: %s", sErr.Ref)
	}
}
