package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mitienda/mitienda/internal/cart"
	"github.com/mitienda/mitienda/internal/catalog"
)

// RepositoryPort abstracts order persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error)
}

// CartPort reconciles, reads and clears the customer's cart.
type CartPort interface {
	Reconcile(ctx context.Context, key string) ([]int64, error)
	Snapshot(ctx context.Context, key string) (*cart.Cart, error)
	Clear(ctx context.Context, key string) error
}

// CatalogPort resolves live variations for denormalised order lines.
type CatalogPort interface {
	GetActiveVariation(ctx context.Context, id int64) (catalog.Variation, error)
}

// Notifier delivers order notifications. Failures must not fail the
// order itself.
type Notifier interface {
	OrderPlaced(ctx context.Context, order Order) error
	OrderCancelled(ctx context.Context, order Order) error
}

// Service implements the order pipeline.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	carts    CartPort
	catalog  CatalogPort
	notifier Notifier
	validate *validator.Validate
}

// NewService builds a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, carts CartPort, cat CatalogPort, notifier Notifier) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		carts:    carts,
		catalog:  cat,
		notifier: notifier,
		validate: validator.New(),
	}
}

// Checkout turns the cart at cartKey into a PENDING order. Every stock
// decrement happens inside one transaction with a conditional guard, so
// the whole order succeeds or nothing is written. The cart is cleared
// only after the transaction commits; the confirmation email is
// enqueued afterwards and is never allowed to fail the order.
func (s *Service) Checkout(ctx context.Context, cartKey string, userID *int64, shipping ShippingInfo) (Order, []string, error) {
	if err := s.validate.Struct(shipping); err != nil {
		return Order{}, nil, err
	}

	// Drop stale lines from the stored cart before reading it, so a
	// failed checkout leaves the cart already pruned.
	if _, err := s.carts.Reconcile(ctx, cartKey); err != nil {
		return Order{}, nil, err
	}

	snapshot, err := s.carts.Snapshot(ctx, cartKey)
	if err != nil {
		return Order{}, nil, err
	}

	lines, total, err := s.buildLines(ctx, snapshot)
	if err != nil {
		return Order{}, nil, err
	}
	if len(lines) == 0 {
		return Order{}, nil, ErrEmptyCart
	}

	order := Order{
		UserID:   userID,
		Status:   StatusPending,
		Total:    total,
		Shipping: shipping,
		Lines:    lines,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, line := range lines {
			if err := tx.DecrementStock(ctx, *line.VariationID, line.Qty); err != nil {
				return err
			}
		}
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return tx.InsertOrderLines(ctx, id, lines)
	})
	if err != nil {
		return Order{}, nil, err
	}

	var warnings []string
	if err := s.carts.Clear(ctx, cartKey); err != nil {
		s.logger.Error("clear cart after checkout failed", "error", err, "order_id", order.ID)
	}
	if err := s.notifier.OrderPlaced(ctx, order); err != nil {
		s.logger.Error("order notification failed", "error", err, "order_id", order.ID)
		warnings = append(warnings, "Your order is confirmed, but the confirmation email could not be sent.")
	}

	if reloaded, err := s.repo.GetOrder(ctx, order.ID); err == nil {
		order = reloaded
	} else {
		s.logger.Error("reload order after checkout failed", "error", err, "order_id", order.ID)
	}
	return order, warnings, nil
}

// buildLines resolves cart lines against the live catalog. Lines whose
// variation disappeared are dropped, mirroring the cart reconcile.
// Lines are ordered by variation ID so concurrent checkouts decrement
// in the same order.
func (s *Service) buildLines(ctx context.Context, snapshot *cart.Cart) ([]OrderLine, decimal.Decimal, error) {
	if snapshot.IsEmpty() {
		return nil, decimal.Zero, nil
	}

	ids := make([]int64, 0, len(snapshot.Lines))
	for id := range snapshot.Lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lines := make([]OrderLine, 0, len(ids))
	total := decimal.Zero
	for _, id := range ids {
		entry := snapshot.Lines[id]
		variation, err := s.catalog.GetActiveVariation(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, decimal.Zero, err
		}
		variationID := id
		line := OrderLine{
			VariationID:    &variationID,
			ProductName:    variation.ProductName,
			VariationLabel: variation.Label(),
			Qty:            entry.Qty,
			UnitPrice:      entry.UnitPrice,
		}
		total = total.Add(line.Subtotal())
		lines = append(lines, line)
	}
	return lines, total, nil
}

// GetOrder loads an order, enforcing ownership for customers. Staff
// callers pass staff=true and see every order.
func (s *Service) GetOrder(ctx context.Context, id int64, userID *int64, staff bool) (Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !staff && !owns(order, userID) {
		return Order{}, ErrForbidden
	}
	return order, nil
}

// ListOrders returns orders matching filter with the unpaged total.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	return s.repo.ListOrders(ctx, filter)
}

// CancelOrder cancels a PENDING order and restores its stock. Customers
// can only cancel their own orders; any other status is rejected, which
// also makes a repeated cancel a no-op error instead of a double
// restore.
func (s *Service) CancelOrder(ctx context.Context, id int64, userID *int64, staff bool) (Order, error) {
	var cancelled Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !staff && !owns(order, userID) {
			return ErrForbidden
		}
		if order.Status != StatusPending {
			return ErrInvalidState
		}
		for _, line := range order.Lines {
			if line.VariationID == nil {
				continue
			}
			if err := tx.RestoreStock(ctx, *line.VariationID, line.Qty); err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					continue
				}
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, id, StatusCanceled); err != nil {
			return err
		}
		if err := tx.SetPaid(ctx, id, false, ""); err != nil {
			return err
		}
		order.Status = StatusCanceled
		order.Paid = false
		order.PaymentMethod = ""
		cancelled = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if err := s.notifier.OrderCancelled(ctx, cancelled); err != nil {
		s.logger.Error("cancel notification failed", "error", err, "order_id", id)
	}
	return cancelled, nil
}

// UpdateStatus moves an order along the lifecycle. Only transitions the
// state machine allows are accepted; moving PENDING to CANCELED goes
// through CancelOrder so stock is restored.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next OrderStatus) (Order, error) {
	if next == StatusCanceled {
		return s.CancelOrder(ctx, id, nil, true)
	}

	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, next) {
			return ErrInvalidState
		}
		if err := tx.UpdateStatus(ctx, id, next); err != nil {
			return err
		}
		if next == StatusRefunded {
			if err := tx.SetPaid(ctx, id, false, order.PaymentMethod); err != nil {
				return err
			}
			order.Paid = false
		}
		order.Status = next
		updated = order
		return nil
	})
	return updated, err
}

// MarkPaid records payment against an order. Canceled and refunded
// orders cannot be marked paid.
func (s *Service) MarkPaid(ctx context.Context, id int64, method string) (Order, error) {
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == StatusCanceled || order.Status == StatusRefunded {
			return ErrInvalidState
		}
		if err := tx.SetPaid(ctx, id, true, method); err != nil {
			return err
		}
		order.Paid = true
		order.PaymentMethod = method
		updated = order
		return nil
	})
	return updated, err
}

func owns(order Order, userID *int64) bool {
	return userID != nil && order.UserID != nil && *order.UserID == *userID
}
