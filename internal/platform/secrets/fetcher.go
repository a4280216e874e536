// Package secrets resolves secret:// references found in configuration values.
//
// A reference has the form secret://<name>[#<version>]. With a Google Cloud project
// configured the value comes from Secret Manager; otherwise, or when Secret Manager
// is unreachable or denies access, it is read from a dotenv-style fallback file
// keyed by FallbackKey(name).
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	scheme              = "secret://"
	DefaultFallbackFile = ".secrets.local"
)

var (
	ErrBadReference = errors.New("secrets: malformed reference")
	ErrNotFound     = errors.New("secrets: no value for reference")
)

// Client is the slice of the Secret Manager API the fetcher calls.
type Client interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

type Config struct {
	// Project enables Secret Manager lookups. Empty means fallback file only.
	Project string
	// FallbackFile defaults to DefaultFallbackFile; "-" disables it.
	FallbackFile  string
	Client        Client
	ClientOptions []option.ClientOption
	Meter         metric.Meter
	Logger        *zap.Logger
}

// Fetcher resolves and caches secret references. Safe for concurrent use.
type Fetcher struct {
	project  string
	client   Client
	owned    bool
	fallback string
	logger   *zap.Logger
	resolved metric.Int64Counter

	mu    sync.Mutex
	cache map[string]string

	loadOnce sync.Once
	local    map[string]string
}

func New(ctx context.Context, cfg Config) (*Fetcher, error) {
	f := &Fetcher{
		project:  strings.TrimSpace(cfg.Project),
		client:   cfg.Client,
		fallback: strings.TrimSpace(cfg.FallbackFile),
		logger:   cfg.Logger,
		cache:    map[string]string{},
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if f.fallback == "" {
		f.fallback = DefaultFallbackFile
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("github.com/Hemanshudhaduk/Velora/internal/platform/secrets")
	}
	counter, err := meter.Int64Counter("velora.secrets.resolved",
		metric.WithDescription("Secret references resolved, by source"))
	if err != nil {
		return nil, fmt.Errorf("secrets: register counter: %w", err)
	}
	f.resolved = counter

	if f.client == nil && f.project != "" {
		client, err := secretmanager.NewClient(ctx, cfg.ClientOptions...)
		if err != nil {
			f.logger.Warn("secret manager unavailable, using fallback file only", zap.Error(err))
		} else {
			f.client, f.owned = client, true
		}
	}
	return f, nil
}

func (f *Fetcher) Close() error {
	if f.owned {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the plaintext for ref. Values are cached for the fetcher's lifetime.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	name, version, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	key := name + "#" + version

	f.mu.Lock()
	v, ok := f.cache[key]
	f.mu.Unlock()
	if ok {
		f.count(ctx, "cache")
		return v, nil
	}

	source := "fallback"
	v, err = f.remote(ctx, name, version)
	switch {
	case err == nil:
		source = "secret_manager"
	case canFallBack(err):
		if v, ok = f.localValue(name); !ok {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
	default:
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}

	f.mu.Lock()
	f.cache[key] = v
	f.mu.Unlock()
	f.count(ctx, source)
	return v, nil
}

var errNoRemote = errors.New("secrets: secret manager not configured")

func (f *Fetcher) remote(ctx context.Context, name, version string) (string, error) {
	if f.client == nil || f.project == "" {
		return "", errNoRemote
	}
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.project, name, version),
	})
	if err != nil {
		return "", err
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) localValue(name string) (string, bool) {
	f.loadOnce.Do(func() {
		if f.fallback == "-" {
			return
		}
		values, err := godotenv.Read(f.fallback)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.logger.Warn("read secrets fallback file", zap.String("path", f.fallback), zap.Error(err))
			}
			return
		}
		f.local = values
	})
	v, ok := f.local[FallbackKey(name)]
	return v, ok
}

func (f *Fetcher) count(ctx context.Context, source string) {
	f.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// canFallBack reports whether a remote failure should be served from the fallback file.
func canFallBack(err error) bool {
	if errors.Is(err, errNoRemote) {
		return true
	}
	switch status.Code(err) {
	case codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

func parseReference(ref string) (name, version string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q lacks %s prefix", ErrBadReference, ref, scheme)
	}
	name, version, _ = strings.Cut(rest, "#")
	name = strings.Trim(name, "/")
	if name == "" {
		return "", "", fmt.Errorf("%w: %q has no secret name", ErrBadReference, ref)
	}
	if version == "" {
		version = "latest"
	}
	return strings.ReplaceAll(name, "/", "_"), version, nil
}

// FallbackKey maps a secret name to its fallback file key: "session/hash-key" is SESSION_HASH_KEY.
func FallbackKey(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, strings.TrimSpace(name))
}
