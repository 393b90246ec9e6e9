package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mitienda/mitienda/internal/shared"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCanceled   OrderStatus = "CANCELED"
	StatusRefunded   OrderStatus = "REFUNDED"
)

// Statuses lists every status in display order.
var Statuses = []OrderStatus{
	StatusPending, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCanceled, StatusRefunded,
}

// transitions maps each status to the states staff may move it into.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCanceled},
	StatusProcessing: {StatusShipped, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
}

// TransitionsFrom returns the statuses reachable from s.
func TransitionsFrom(s OrderStatus) []OrderStatus {
	return transitions[s]
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ShippingInfo is the delivery contact captured at checkout.
type ShippingInfo struct {
	FullName   string `validate:"required,max=120"`
	Email      string `validate:"required,email,max=254"`
	Phone      string `validate:"max=30"`
	Address1   string `validate:"required,max=250"`
	Address2   string `validate:"max=250"`
	City       string `validate:"required,max=120"`
	Province   string `validate:"max=120"`
	PostalCode string `validate:"required,max=20"`
	Country    string `validate:"required,max=80"`
	Notes      string `validate:"max=500"`
}

// OrderLine is one purchased variation snapshot. VariationID is nil
// when the variation was later deleted; the denormalised name, label
// and price keep the line renderable forever.
type OrderLine struct {
	ID             int64
	OrderID        int64
	VariationID    *int64
	ProductName    string
	VariationLabel string
	Qty            int
	UnitPrice      decimal.Decimal
}

// Subtotal is quantity times the price paid per unit.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Order is a placed order with its lines. Paid starts false and is
// cleared again on cancel or refund.
type Order struct {
	ID            int64
	UserID        *int64
	Status        OrderStatus
	Paid          bool
	PaymentMethod string
	Total         decimal.Decimal
	Shipping      ShippingInfo
	Lines         []OrderLine
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID *int64
	Status *OrderStatus
	Limit  int
	Offset int
}

// The sentinels wrap the shared ones so handlers flashing
// shared.UserSafeMessage get the specific text, not the generic one.
var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = fmt.Errorf("checkout: order %w", shared.ErrNotFound)
	// ErrEmptyCart rejects a checkout with no valid lines.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrForbidden rejects access to another customer's order.
	ErrForbidden = fmt.Errorf("checkout: order belongs to another customer: %w", shared.ErrForbidden)
	// ErrInvalidState rejects a transition the lifecycle does not allow.
	ErrInvalidState = fmt.Errorf("checkout: order state does not allow this operation: %w", shared.ErrInvalidState)
)
