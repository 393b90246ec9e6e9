package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mitienda/mitienda/internal/catalog"
)

// Line is one (variation, quantity) entry. UnitPrice is captured at the
// moment the line was added and is not refreshed afterwards.
type Line struct {
	Qty       int
	UnitPrice decimal.Decimal
}

// Subtotal is quantity times the captured unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Cart maps variation IDs to lines. One cart exists per storage key:
// either per authenticated user or per anonymous session.
type Cart struct {
	Lines     map[int64]Line
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCart returns an empty cart stamped with now.
func NewCart(now time.Time) *Cart {
	return &Cart{Lines: make(map[int64]Line), CreatedAt: now, UpdatedAt: now}
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Total recomputes the cart total from its lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// DisplayRow is a cart line joined against the live catalog for
// rendering.
type DisplayRow struct {
	VariationID    int64
	ProductName    string
	VariationLabel string
	ImageURL       string
	Qty            int
	UnitPrice      decimal.Decimal
	Subtotal       decimal.Decimal
	LiveStock      int
}

// PlaceholderImageURL is shown for products without photos.
const PlaceholderImageURL = "/static/img/placeholder.png"

// Stock and lookup failures surface with the catalog sentinels so one
// taxonomy covers the whole add-to-cart path.
var (
	ErrNotFound          = catalog.ErrNotFound
	ErrInvalidQuantity   = catalog.ErrInvalidQuantity
	ErrInsufficientStock = catalog.ErrInsufficientStock
)

// ErrLineMissing reports an update against a variation not in the cart.
var ErrLineMissing = errors.New("cart: line not found")
