package address

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

const (
	pathList = "/api/address/list"
	pathAdd  = "/api/address/add"
	pathItem = "/api/address"
)

var (
	errSessionRequired = errors.New("address book: session is required")

	// ErrAddressIDRequired is returned when an update or delete names no address.
	ErrAddressIDRequired = errors.New("address book: address id is required")
)

// Session is the subset of the session holder the book needs.
type Session interface {
	IsAuthenticated() bool
	AuthenticatedRequest(ctx context.Context, method, path string, call session.Call) (*apiclient.Envelope, error)
}

// Book manages the shopper's saved addresses. It never edits a cached list: every
// mutation is followed by the caller re-listing.
type Book struct {
	session Session
	logger  *zap.Logger
}

// New constructs a Book.
func New(sess Session, logger *zap.Logger) (*Book, error) {
	if sess == nil {
		return nil, errSessionRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{session: sess, logger: logger}, nil
}

// List returns the saved addresses.
func (b *Book) List(ctx context.Context) ([]domain.Address, error) {
	if !b.session.IsAuthenticated() {
		return nil, domain.ErrUnauthenticated
	}
	env, err := b.session.AuthenticatedRequest(ctx, http.MethodGet, pathList, session.Call{})
	if err != nil {
		return nil, fmt.Errorf("address book: list: %w", err)
	}
	return domain.NormalizeList(env.Data.List("addresses", "items"), domain.NormalizeAddress), nil
}

// DefaultSelection picks the default address, else the first one.
func DefaultSelection(addresses []domain.Address) (domain.Address, bool) {
	for _, a := range addresses {
		if a.IsDefault {
			return a, true
		}
	}
	if len(addresses) > 0 {
		return addresses[0], true
	}
	return domain.Address{}, false
}

// Create validates and saves a new address.
func (b *Book) Create(ctx context.Context, addr domain.Address) (domain.Address, error) {
	addr, err := Validate(addr)
	if err != nil {
		return domain.Address{}, err
	}
	addr.ID = ""
	env, err := b.session.AuthenticatedRequest(ctx, http.MethodPost, pathAdd, session.Call{Body: addr})
	if err != nil {
		return domain.Address{}, fmt.Errorf("address book: create: %w", err)
	}
	return saved(env, addr), nil
}

// Update validates and replaces an existing address.
func (b *Book) Update(ctx context.Context, addr domain.Address) (domain.Address, error) {
	id := strings.TrimSpace(addr.ID)
	if id == "" {
		return domain.Address{}, ErrAddressIDRequired
	}
	addr, err := Validate(addr)
	if err != nil {
		return domain.Address{}, err
	}
	env, err := b.session.AuthenticatedRequest(ctx, http.MethodPut, path.Join(pathItem, id), session.Call{Body: addr})
	if err != nil {
		return domain.Address{}, fmt.Errorf("address book: update: %w", err)
	}
	return saved(env, addr), nil
}

// Delete removes an address.
func (b *Book) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrAddressIDRequired
	}
	if _, err := b.session.AuthenticatedRequest(ctx, http.MethodDelete, path.Join(pathItem, id), session.Call{}); err != nil {
		return fmt.Errorf("address book: delete: %w", err)
	}
	return nil
}

// SetDefault asks the backend to make id the default. The backend clears the previous
// default.
func (b *Book) SetDefault(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrAddressIDRequired
	}
	if _, err := b.session.AuthenticatedRequest(ctx, http.MethodPatch, path.Join(pathItem, id, "set-default"), session.Call{}); err != nil {
		return fmt.Errorf("address book: set default: %w", err)
	}
	return nil
}

func saved(env *apiclient.Envelope, fallback domain.Address) domain.Address {
	if raw := env.Data.Object("address"); raw != nil {
		return domain.NormalizeAddress(raw)
	}
	return fallback
}
