package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mitienda/mitienda/internal/shared"
)

// Category groups products for storefront navigation.
type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description string
}

// Brand identifies a product manufacturer.
type Brand struct {
	ID          int64
	Name        string
	Slug        string
	Description string
}

// Product is a sellable item. Stock lives on its variations; a product
// with no active variations has a total stock of zero.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  *int64
	BrandID     *int64
	Available   bool
	Featured    bool
	Slug        string
	TotalStock  int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Denormalised for display, populated by joined queries.
	ImageURL     string
	CategoryName string
	BrandName    string
}

// VariationType is an attribute axis such as "Color" or "Size".
type VariationType struct {
	ID   int64
	Name string
}

// VariationValue is one value on an axis, e.g. "Red" for "Color".
// The (type, value) pair is unique.
type VariationValue struct {
	ID       int64
	TypeID   int64
	TypeName string
	Value    string
}

// Variation is a purchasable configuration of a product with its own
// SKU and stock. SKU is assigned after first persistence when blank.
type Variation struct {
	ID         int64
	ProductID  int64
	SKU        string
	Stock      int
	ExtraPrice decimal.Decimal
	Active     bool
	Values     []VariationValue

	// Denormalised for display, populated by joined queries.
	ProductName  string
	ProductSlug  string
	ProductPrice decimal.Decimal
	ImageURL     string
}

// UnitPrice is the price a single unit sells for right now.
func (v Variation) UnitPrice() decimal.Decimal {
	return v.ProductPrice.Add(v.ExtraPrice)
}

// Label renders the variation values for display, e.g. "Color: Red, Size: M".
func (v Variation) Label() string {
	if len(v.Values) == 0 {
		if v.SKU != "" {
			return "SKU " + v.SKU
		}
		return "Default"
	}
	parts := make([]string, 0, len(v.Values))
	for _, val := range v.Values {
		parts = append(parts, val.TypeName+": "+val.Value)
	}
	return strings.Join(parts, ", ")
}

// Image is a product photo with a display order and a principal flag.
type Image struct {
	ID        int64
	ProductID int64
	URL       string
	Principal bool
	Order     int
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID *int64
	BrandID    *int64
	Search     string
	Available  *bool
	Featured   *bool
	Page       int
	PerPage    int
}

// VariationFilter narrows variation listings.
type VariationFilter struct {
	ProductID *int64
	SKU       string
	Active    *bool
	Page      int
	PerPage   int
}

// ErrNotFound and ErrDuplicate wrap the shared sentinels so
// shared.UserSafeMessage resolves them to their specific text.
var (
	// ErrNotFound indicates a missing catalog entity.
	ErrNotFound = fmt.Errorf("catalog: %w", shared.ErrNotFound)
	// ErrDuplicate indicates a slug, SKU or name collision.
	ErrDuplicate = fmt.Errorf("catalog: %w", shared.ErrDuplicate)
	// ErrInsufficientStock is returned when a decrement would drive
	// stock negative.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("catalog: quantity must be at least 1")
)
