package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Raw is an untyped JSON object as returned by the backend. Its accessors take several
// candidate keys and return the first usable value, which absorbs the mix of camelCase,
// snake_case and legacy field names seen across endpoints.
type Raw map[string]any

// AsRaw converts a decoded JSON value into a Raw object, or nil.
func AsRaw(v any) Raw {
	switch t := v.(type) {
	case Raw:
		return t
	case map[string]any:
		return Raw(t)
	}
	return nil
}

func (r Raw) first(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

// String returns the first non-empty value rendered as a string.
func (r Raw) String(keys ...string) string {
	v, ok := r.first(keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Decimal returns the first numeric value, accepting numbers and numeric strings.
func (r Raw) Decimal(keys ...string) decimal.Decimal {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return d
		}
	}
	return decimal.Zero
}

// Int returns the first integral value.
func (r Raw) Int(keys ...string) int {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return int(d.IntPart())
		}
	}
	return 0
}

// Bool returns the first boolean-like value and whether one was present.
func (r Raw) Bool(keys ...string) (bool, bool) {
	for _, k := range keys {
		switch t := r[k].(type) {
		case bool:
			return t, true
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b, true
			}
		case json.Number:
			return t.String() != "0", true
		case float64:
			return t != 0, true
		}
	}
	return false, false
}

// Time parses the first RFC 3339 timestamp.
func (r Raw) Time(keys ...string) time.Time {
	for _, k := range keys {
		s, ok := r[k].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}

// Object returns the first nested object.
func (r Raw) Object(keys ...string) Raw {
	for _, k := range keys {
		if obj := AsRaw(r[k]); obj != nil {
			return obj
		}
	}
	return nil
}

// List returns the first array value.
func (r Raw) List(keys ...string) []any {
	for _, k := range keys {
		if list, ok := r[k].([]any); ok {
			return list
		}
	}
	return nil
}

// Strings returns the first array of strings, skipping non-string entries.
func (r Raw) Strings(keys ...string) []string {
	list := r.List(keys...)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}

func idOf(r Raw, extra ...string) string {
	return r.String(append([]string{"id", "_id"}, extra...)...)
}

// NormalizeUser maps a backend user record.
func NormalizeUser(r Raw) User {
	verified, _ := r.Bool("isVerified", "is_verified", "emailVerified", "email_verified")
	return User{
		ID:           idOf(r, "userId", "user_id"),
		Username:     r.String("username", "userName", "user_name"),
		Email:        r.String("email"),
		FirstName:    r.String("firstName", "first_name"),
		LastName:     r.String("lastName", "last_name"),
		Phone:        r.String("phone", "phoneNumber", "phone_number"),
		ProfileImage: r.String("profileImage", "profile_image", "avatar", "avatarUrl"),
		Role:         r.String("role"),
		Verified:     verified,
		CreatedAt:    r.Time("createdAt", "created_at"),
	}
}

// NormalizeSizes accepts [{size, stock}] objects or bare size strings (stock unknown, treated as 1).
func NormalizeSizes(list []any) []SizeStock {
	out := make([]SizeStock, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, SizeStock{Size: s, Stock: 1})
			}
		default:
			obj := AsRaw(t)
			if obj == nil {
				continue
			}
			size := obj.String("size", "name", "label")
			if size == "" {
				continue
			}
			out = append(out, SizeStock{Size: size, Stock: obj.Int("stock", "quantity", "available", "availableStock")})
		}
	}
	return out
}

// NormalizeCategory maps a backend category record.
func NormalizeCategory(r Raw) Category {
	active, ok := r.Bool("isActive", "is_active", "active")
	if !ok {
		active = true
	}
	return Category{
		ID:          idOf(r, "categoryId", "category_id"),
		Name:        r.String("name", "categoryName", "category_name"),
		Slug:        r.String("slug"),
		Description: r.String("description"),
		Image:       r.String("mainImage", "main_image", "image", "imageUrl"),
		Active:      active,
	}
}

// NormalizeProduct maps a backend product record.
func NormalizeProduct(r Raw) Product {
	images := r.Strings("images", "mainImages", "main_images")
	main := r.String("mainImage", "main_image", "mainImageUrl")
	if main == "" && len(images) > 0 {
		main = images[0]
	}
	active, ok := r.Bool("isActive", "is_active")
	if !ok {
		active = true
	}
	featured, _ := r.Bool("isFeatured", "is_featured", "featured")
	category := r.Object("category")
	categoryID := r.String("categoryId", "category_id")
	categoryName := r.String("categoryName", "category_name")
	if category != nil {
		if categoryID == "" {
			categoryID = idOf(category)
		}
		if categoryName == "" {
			categoryName = category.String("name")
		}
	}
	return Product{
		ID:            idOf(r, "productId", "product_id"),
		Name:          firstNonEmpty(r.String("productName", "product_name", "name"), "Product"),
		Description:   r.String("description", "shortDescription", "short_description"),
		SKU:           r.String("sku"),
		CategoryID:    categoryID,
		CategoryName:  categoryName,
		MainImage:     main,
		Images:        images,
		OriginalPrice: r.Decimal("originalPrice", "original_price", "mrp"),
		FinalPrice:    r.Decimal("finalPrice", "final_price", "price"),
		Sizes:         NormalizeSizes(r.List("sizes", "availableSizes", "available_sizes")),
		Active:        active,
		Featured:      featured,
	}
}

// NormalizePagination maps a pagination block, filling the requested page and limit when absent.
func NormalizePagination(r Raw, page, limit int) Pagination {
	p := Pagination{Page: page, Limit: limit}
	if r == nil {
		return p
	}
	if v := r.Int("page", "currentPage", "current_page"); v > 0 {
		p.Page = v
	}
	if v := r.Int("limit", "pageSize", "page_size"); v > 0 {
		p.Limit = v
	}
	p.TotalPages = r.Int("totalPages", "total_pages", "pages")
	p.TotalItems = r.Int("totalProducts", "totalOrders", "total", "totalItems", "total_items")
	if p.TotalPages == 0 && p.TotalItems > 0 && p.Limit > 0 {
		p.TotalPages = (p.TotalItems + p.Limit - 1) / p.Limit
	}
	return p
}

// NormalizeCartItem maps a backend cart line.
func NormalizeCartItem(r Raw) CartItem {
	product := r.Object("product")
	if product == nil {
		product = Raw{}
	}
	stock := r.Int("availableStock", "available_stock", "stock")
	inStock, ok := r.Bool("inStock", "in_stock")
	if !ok {
		inStock = stock > 0
	}
	return CartItem{
		ID:             idOf(r, "cartItemId", "cart_item_id"),
		ProductID:      firstNonEmpty(r.String("productId", "product_id"), idOf(product)),
		ProductName:    firstNonEmpty(r.String("productName", "product_name", "name"), product.String("productName", "product_name", "name")),
		Size:           r.String("selectedSize", "selected_size", "size"),
		Quantity:       r.Int("quantity", "qty"),
		UnitPrice:      firstPositive(r.Decimal("currentPrice", "current_price", "finalPrice", "final_price", "unitPrice", "unit_price", "price"), product.Decimal("finalPrice", "final_price", "price")),
		Image:          firstNonEmpty(r.String("mainImage", "main_image", "image"), product.String("mainImage", "main_image")),
		AvailableStock: stock,
		InStock:        inStock,
	}
}

// NormalizeWishlistItem maps a backend wishlist entry.
func NormalizeWishlistItem(r Raw) WishlistItem {
	product := r.Object("product")
	if product == nil {
		product = Raw{}
	}
	sizes := NormalizeSizes(r.List("availableSizes", "available_sizes", "sizes"))
	if len(sizes) == 0 {
		sizes = NormalizeSizes(product.List("sizes", "availableSizes"))
	}
	active, ok := r.Bool("isActive", "is_active")
	if !ok {
		active = true
	}
	inStock, ok := r.Bool("inStock", "in_stock")
	if !ok {
		inStock = len(AvailableSizes(sizes)) > 0
	}
	return WishlistItem{
		ID:             idOf(r, "wishlistItemId", "wishlist_item_id"),
		ProductID:      firstNonEmpty(r.String("productId", "product_id"), idOf(product)),
		ProductName:    firstNonEmpty(r.String("productName", "product_name", "name"), product.String("productName", "product_name", "name")),
		Image:          firstNonEmpty(r.String("mainImage", "main_image", "image"), product.String("mainImage", "main_image")),
		Price:          firstPositive(r.Decimal("finalPrice", "final_price", "price"), product.Decimal("finalPrice", "final_price", "price")),
		Active:         active,
		InStock:        inStock,
		AvailableSizes: sizes,
	}
}

// NormalizeAddress maps a backend address record.
func NormalizeAddress(r Raw) Address {
	def, _ := r.Bool("isDefault", "is_default")
	return Address{
		ID:        idOf(r, "addressId", "address_id"),
		FullName:  r.String("fullName", "full_name", "name"),
		Phone:     r.String("phone", "phoneNumber", "phone_number"),
		Line1:     r.String("addressLine1", "address_line1", "line1"),
		Line2:     r.String("addressLine2", "address_line2", "line2"),
		City:      r.String("city"),
		State:     r.String("state"),
		Pincode:   r.String("pincode", "postalCode", "postal_code", "zip"),
		Landmark:  r.String("landmark"),
		Country:   r.String("country"),
		Type:      NormalizeAddressType(r.String("addressType", "address_type", "type")),
		IsDefault: def,
	}
}

// NormalizeAddressType upper-cases known tags and maps anything else to OTHER.
func NormalizeAddressType(raw string) AddressType {
	switch AddressType(strings.ToUpper(strings.TrimSpace(raw))) {
	case AddressHome, "":
		return AddressHome
	case AddressWork:
		return AddressWork
	default:
		return AddressOther
	}
}

// NormalizeOrderItem maps a purchased line, reading the product snapshot when present.
func NormalizeOrderItem(r Raw) OrderItem {
	snap := r.Object("productSnapshot", "product_snapshot")
	if snap == nil {
		snap = Raw{}
	}
	qty := r.Int("quantity", "qty")
	unit := r.Decimal("unitPrice", "unit_price", "price")
	total := r.Decimal("totalPrice", "total_price")
	if total.IsZero() {
		total = unit.Mul(decimal.NewFromInt(int64(qty)))
	}
	return OrderItem{
		ID:          idOf(r),
		ProductID:   r.String("productId", "product_id"),
		ProductName: firstNonEmpty(snap.String("product_name", "productName", "name"), r.String("productName", "product_name")),
		SKU:         firstNonEmpty(snap.String("sku"), r.String("sku")),
		Image:       firstNonEmpty(snap.String("main_image", "mainImage"), r.String("mainImage", "main_image")),
		Size:        firstNonEmpty(snap.String("size", "selectedSize"), r.String("selectedSize", "selected_size", "size")),
		Quantity:    qty,
		UnitPrice:   unit,
		TotalPrice:  total,
	}
}

// NormalizeOrder maps an order record. Items are read from the record itself or from items
// passed separately (the detail endpoint returns them beside the order).
func NormalizeOrder(r Raw, items []any) Order {
	method, ok := ParsePaymentMethod(r.String("paymentMethod", "payment_method"))
	if !ok {
		method = PaymentMethod(strings.ToLower(r.String("paymentMethod", "payment_method")))
	}
	o := Order{
		ID:                 idOf(r, "orderId", "order_id"),
		OrderNumber:        r.String("orderNumber", "order_number"),
		Status:             OrderStatus(strings.ToLower(r.String("orderStatus", "order_status", "status"))),
		PaymentStatus:      PaymentStatus(strings.ToLower(r.String("paymentStatus", "payment_status"))),
		PaymentMethod:      method,
		Subtotal:           r.Decimal("subtotal", "subTotal", "sub_total"),
		ShippingCharges:    r.Decimal("shippingCharges", "shipping_charges", "shipping"),
		CODCharges:         r.Decimal("codCharges", "cod_charges"),
		TaxAmount:          r.Decimal("taxAmount", "tax_amount", "tax"),
		TotalAmount:        r.Decimal("totalAmount", "total_amount", "total"),
		TrackingNumber:     r.String("trackingNumber", "tracking_number"),
		Courier:            r.String("courier", "courierName", "courier_name"),
		CustomerNotes:      r.String("customerNotes", "customer_notes"),
		CancellationReason: r.String("cancellationReason", "cancellation_reason", "cancelReason"),
		CreatedAt:          r.Time("createdAt", "created_at"),
		ConfirmedAt:        r.Time("confirmedAt", "confirmed_at"),
		ShippedAt:          r.Time("shippedAt", "shipped_at"),
		DeliveredAt:        r.Time("deliveredAt", "delivered_at"),
		CancelledAt:        r.Time("cancelledAt", "cancelled_at"),
	}
	if o.Status == "" {
		o.Status = OrderPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentPending
	}
	if addr := r.Object("shippingAddress", "shipping_address"); addr != nil {
		a := NormalizeAddress(addr)
		o.ShippingAddress = &a
	}
	if len(items) == 0 {
		items = r.List("items", "orderItems", "order_items")
	}
	for _, item := range items {
		if obj := AsRaw(item); obj != nil {
			o.Items = append(o.Items, NormalizeOrderItem(obj))
		}
	}
	return o
}

// NormalizeList applies fn to every object in list, skipping non-objects.
func NormalizeList[T any](list []any, fn func(Raw) T) []T {
	out := make([]T, 0, len(list))
	for _, item := range list {
		if obj := AsRaw(item); obj != nil {
			out = append(out, fn(obj))
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v.IsPositive() {
			return v
		}
	}
	return decimal.Zero
}

// String implements fmt.Stringer for log fields.
func (o Order) String() string {
	return fmt.Sprintf("order %s (%s/%s)", firstNonEmpty(o.OrderNumber, o.ID), o.Status, o.PaymentStatus)
}
