package catalog

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

const (
	pathCategories      = "/api/category/list"
	pathCategory        = "/api/category"
	pathProduct         = "/api/product"
	pathFeatured        = "/api/product/featured"
	pathProductCategory = "/api/product/category"

	defaultPageSize      = 20
	defaultFeaturedLimit = 8
)

// Sort orders accepted by the category listing.
const (
	SortNewest    = "newest"
	SortPopular   = "popular"
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
)

var (
	errTransportRequired = errors.New("catalog: transport is required")

	// ErrInvalidSort is returned for a sort order the backend does not understand.
	ErrInvalidSort = errors.New("catalog: invalid sort order")

	descriptionPolicy = bluemonday.StrictPolicy()
	whitespace        = regexp.MustCompile(`\s+`)
)

// Transport performs one backend call. Catalog endpoints are public.
type Transport interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Envelope, error)
}

// Config sets listing sizes.
type Config struct {
	PageSize      int
	FeaturedLimit int
}

// Service reads categories and products.
type Service struct {
	transport Transport
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Service.
func New(transport Transport, cfg Config, logger *zap.Logger) (*Service, error) {
	if transport == nil {
		return nil, errTransportRequired
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.FeaturedLimit <= 0 {
		cfg.FeaturedLimit = defaultFeaturedLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{transport: transport, cfg: cfg, logger: logger}, nil
}

// Categories lists categories, optionally only active ones.
func (s *Service) Categories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("active", "true")
	}
	env, err := s.transport.Do(ctx, apiclient.Request{Path: pathCategories, Query: q})
	if err != nil {
		return nil, fmt.Errorf("catalog: categories: %w", err)
	}
	cats := domain.NormalizeList(env.Data.List("categories"), normalizeCategory)
	if activeOnly {
		cats = slices.DeleteFunc(cats, func(c domain.Category) bool { return !c.Active })
	}
	return cats, nil
}

// Category fetches one category.
func (s *Service) Category(ctx context.Context, id string) (domain.Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Category{}, domain.ErrNotFound
	}
	env, err := s.transport.Do(ctx, apiclient.Request{Path: path.Join(pathCategory, id)})
	if err != nil {
		return domain.Category{}, fmt.Errorf("catalog: category %s: %w", id, err)
	}
	raw := env.Data.Object("category")
	if raw == nil {
		return domain.Category{}, fmt.Errorf("catalog: category %s: %w", id, domain.ErrNotFound)
	}
	return normalizeCategory(raw), nil
}

// Product fetches one product.
func (s *Service) Product(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, domain.ErrNotFound
	}
	env, err := s.transport.Do(ctx, apiclient.Request{Path: path.Join(pathProduct, id)})
	if err != nil {
		return domain.Product{}, fmt.Errorf("catalog: product %s: %w", id, err)
	}
	raw := env.Data.Object("product")
	if raw == nil {
		return domain.Product{}, fmt.Errorf("catalog: product %s: %w", id, domain.ErrNotFound)
	}
	return normalizeProduct(raw), nil
}

// FirstAvailableSize is the size preselected on the product page.
func FirstAvailableSize(p domain.Product) (string, bool) {
	sizes := domain.AvailableSizes(p.Sizes)
	if len(sizes) == 0 {
		return "", false
	}
	return sizes[0].Size, true
}

// Featured lists featured products; limit <= 0 uses the configured default.
func (s *Service) Featured(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = s.cfg.FeaturedLimit
	}
	env, err := s.transport.Do(ctx, apiclient.Request{
		Path:  pathFeatured,
		Query: url.Values{"limit": {strconv.Itoa(limit)}},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: featured: %w", err)
	}
	return domain.NormalizeList(env.Data.List("products"), normalizeProduct), nil
}

// ProductQuery filters a category listing. Sizes are matched locally against in-stock
// sizes; the other fields are sent to the backend.
type ProductQuery struct {
	Page     int
	Limit    int
	SortBy   string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	Sizes    []string
}

// ProductPage is one page of a category listing.
type ProductPage struct {
	Products   []domain.Product
	Pagination domain.Pagination
}

// ProductsByCategory lists a category's products.
func (s *Service) ProductsByCategory(ctx context.Context, categoryID string, q ProductQuery) (ProductPage, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return ProductPage{}, domain.ErrNotFound
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = s.cfg.PageSize
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortNewest
	case SortNewest, SortPopular, SortPriceLow, SortPriceHigh:
	default:
		return ProductPage{}, fmt.Errorf("%w: %q", ErrInvalidSort, q.SortBy)
	}

	params := url.Values{
		"page":   {strconv.Itoa(q.Page)},
		"limit":  {strconv.Itoa(q.Limit)},
		"sortBy": {q.SortBy},
	}
	if q.MinPrice.Valid {
		params.Set("minPrice", q.MinPrice.Decimal.String())
	}
	if q.MaxPrice.Valid {
		params.Set("maxPrice", q.MaxPrice.Decimal.String())
	}

	env, err := s.transport.Do(ctx, apiclient.Request{
		Path:  path.Join(pathProductCategory, categoryID),
		Query: params,
	})
	if err != nil {
		return ProductPage{}, fmt.Errorf("catalog: products of %s: %w", categoryID, err)
	}
	raw := env.Data.List("products")
	products := domain.NormalizeList(raw, normalizeProduct)
	if len(q.Sizes) > 0 {
		products = slices.DeleteFunc(products, func(p domain.Product) bool { return !hasSize(p, q.Sizes) })
	}
	page := domain.NormalizePagination(env.Data.Object("pagination"), q.Page, q.Limit)
	if page.TotalPages == 0 {
		page.TotalPages = 1
	}
	if page.TotalItems == 0 {
		page.TotalItems = len(raw)
	}
	return ProductPage{Products: products, Pagination: page}, nil
}

func hasSize(p domain.Product, wanted []string) bool {
	for _, s := range domain.AvailableSizes(p.Sizes) {
		for _, w := range wanted {
			if strings.EqualFold(s.Size, strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}

func normalizeProduct(r domain.Raw) domain.Product {
	p := domain.NormalizeProduct(r)
	p.Description = PlainText(p.Description)
	return p
}

func normalizeCategory(r domain.Raw) domain.Category {
	c := domain.NormalizeCategory(r)
	if c.Name == "" {
		c.Name = "Category"
	}
	if c.Slug == "" {
		c.Slug = strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(c.Name), "-"))
	}
	c.Description = PlainText(c.Description)
	return c
}

// PlainText strips markup from catalog copy for terminal display.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	stripped := html.UnescapeString(descriptionPolicy.Sanitize(s))
	return strings.TrimSpace(whitespace.ReplaceAllString(stripped, " "))
}
