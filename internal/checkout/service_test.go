package checkout

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mitienda/mitienda/internal/cart"
	"github.com/mitienda/mitienda/internal/catalog"
)

type memoryRepo struct {
	stock  map[int64]int
	orders map[int64]*Order
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo

	// staged changes, applied on commit
	stock  map[int64]int
	orders map[int64]*Order
	nextID int64
}

func newMemoryRepo(stock map[int64]int) *memoryRepo {
	return &memoryRepo{stock: stock, orders: make(map[int64]*Order)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{
		repo:   r,
		stock:  make(map[int64]int, len(r.stock)),
		orders: make(map[int64]*Order, len(r.orders)),
		nextID: r.nextID,
	}
	for k, v := range r.stock {
		tx.stock[k] = v
	}
	for k, v := range r.orders {
		copied := *v
		tx.orders[k] = &copied
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.stock = tx.stock
	r.orders = tx.orders
	r.nextID = tx.nextID
	return nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	if o, ok := r.orders[id]; ok {
		return *o, nil
	}
	return Order{}, ErrNotFound
}

func (r *memoryRepo) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	var out []Order
	for _, o := range r.orders {
		if filter.UserID != nil && (o.UserID == nil || *o.UserID != *filter.UserID) {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, o Order) (int64, error) {
	tx.nextID++
	o.ID = tx.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	tx.orders[o.ID] = &o
	return o.ID, nil
}

func (tx *memoryTx) InsertOrderLines(ctx context.Context, orderID int64, lines []OrderLine) error {
	tx.orders[orderID].Lines = lines
	return nil
}

func (tx *memoryTx) DecrementStock(ctx context.Context, variationID int64, qty int) error {
	if tx.stock[variationID] < qty {
		return catalog.ErrInsufficientStock
	}
	tx.stock[variationID] -= qty
	return nil
}

func (tx *memoryTx) RestoreStock(ctx context.Context, variationID int64, qty int) error {
	if _, ok := tx.stock[variationID]; !ok {
		return catalog.ErrNotFound
	}
	tx.stock[variationID] += qty
	return nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	if o, ok := tx.orders[id]; ok {
		return *o, nil
	}
	return Order{}, ErrNotFound
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	o, ok := tx.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (tx *memoryTx) SetPaid(ctx context.Context, id int64, paid bool, method string) error {
	o, ok := tx.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Paid = paid
	o.PaymentMethod = method
	return nil
}

type fakeCarts struct {
	carts      map[string]*cart.Cart
	catalog    *fakeCatalog
	cleared    []string
	reconciled []string
}

func (f *fakeCarts) Reconcile(ctx context.Context, key string) ([]int64, error) {
	f.reconciled = append(f.reconciled, key)
	c, ok := f.carts[key]
	if !ok || f.catalog == nil {
		return nil, nil
	}
	var pruned []int64
	for id := range c.Lines {
		if _, ok := f.catalog.variations[id]; !ok {
			delete(c.Lines, id)
			pruned = append(pruned, id)
		}
	}
	return pruned, nil
}

func (f *fakeCarts) Snapshot(ctx context.Context, key string) (*cart.Cart, error) {
	if c, ok := f.carts[key]; ok {
		return c, nil
	}
	return cart.NewCart(time.Now()), nil
}

func (f *fakeCarts) Clear(ctx context.Context, key string) error {
	delete(f.carts, key)
	f.cleared = append(f.cleared, key)
	return nil
}

type fakeCatalog struct {
	variations map[int64]catalog.Variation
}

func (f *fakeCatalog) GetActiveVariation(ctx context.Context, id int64) (catalog.Variation, error) {
	if v, ok := f.variations[id]; ok {
		return v, nil
	}
	return catalog.Variation{}, catalog.ErrNotFound
}

type fakeNotifier struct {
	placed    []Order
	cancelled []Order
}

func (f *fakeNotifier) OrderPlaced(ctx context.Context, o Order) error {
	f.placed = append(f.placed, o)
	return nil
}

func (f *fakeNotifier) OrderCancelled(ctx context.Context, o Order) error {
	f.cancelled = append(f.cancelled, o)
	return nil
}

func cartWith(lines map[int64]cart.Line) *cart.Cart {
	c := cart.NewCart(time.Now())
	for id, line := range lines {
		c.Lines[id] = line
	}
	return c
}

func shipping() ShippingInfo {
	return ShippingInfo{
		FullName:   "Ana Torres",
		Email:      "ana@example.com",
		Phone:      "555-0101",
		Address1:   "Av. Siempre Viva 742",
		City:       "Springfield",
		PostalCode: "62704",
		Country:    "US",
	}
}

func newTestService(repo *memoryRepo, carts *fakeCarts, cat *fakeCatalog, notifier *fakeNotifier) *Service {
	return NewService(slog.New(slog.DiscardHandler), repo, carts, cat, notifier)
}

func TestCheckoutCreatesPendingOrderAndDecrementsStock(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5, 2: 10})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:u:7": cartWith(map[int64]cart.Line{
			1: {Qty: 2, UnitPrice: decimal.RequireFromString("21.99")},
			2: {Qty: 1, UnitPrice: decimal.NewFromInt(8)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "Camisa", ProductPrice: decimal.RequireFromString("25.00")},
		2: {ID: 2, Stock: 10, ProductName: "Taza", ProductPrice: decimal.NewFromInt(8)},
	}}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, carts, cat, notifier)

	userID := int64(7)
	order, warnings, err := svc.Checkout(context.Background(), "cart:u:7", &userID, shipping())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, StatusPending, order.Status)
	require.False(t, order.Paid)
	require.Len(t, order.Lines, 2)
	// Prices are the ones captured in the cart, not the live catalog price.
	require.True(t, order.Lines[0].UnitPrice.Equal(decimal.RequireFromString("21.99")))
	require.True(t, order.Total.Equal(decimal.RequireFromString("51.98")))

	require.Equal(t, 3, repo.stock[1])
	require.Equal(t, 9, repo.stock[2])
	require.Equal(t, []string{"cart:u:7"}, carts.cleared)
	require.Len(t, notifier.placed, 1)
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5, 2: 0})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:s:x": cartWith(map[int64]cart.Line{
			1: {Qty: 2, UnitPrice: decimal.NewFromInt(10)},
			2: {Qty: 1, UnitPrice: decimal.NewFromInt(5)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
		2: {ID: 2, Stock: 0, ProductName: "B"},
	}}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, carts, cat, notifier)

	_, _, err := svc.Checkout(context.Background(), "cart:s:x", nil, shipping())
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	// The earlier decrement of variation 1 must have rolled back.
	require.Equal(t, 5, repo.stock[1])
	require.Empty(t, repo.orders)
	require.Empty(t, carts.cleared)
	require.Empty(t, notifier.placed)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{})
	carts := &fakeCarts{carts: map[string]*cart.Cart{}}
	svc := newTestService(repo, carts, &fakeCatalog{}, &fakeNotifier{})

	_, _, err := svc.Checkout(context.Background(), "cart:s:x", nil, shipping())
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutDropsDeadLines(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:s:x": cartWith(map[int64]cart.Line{
			1:   {Qty: 1, UnitPrice: decimal.NewFromInt(10)},
			999: {Qty: 3, UnitPrice: decimal.NewFromInt(4)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
	}}
	carts.catalog = cat
	svc := newTestService(repo, carts, cat, &fakeNotifier{})

	order, _, err := svc.Checkout(context.Background(), "cart:s:x", nil, shipping())
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	require.True(t, order.Total.Equal(decimal.NewFromInt(10)))
	require.Equal(t, []string{"cart:s:x"}, carts.reconciled)
}

func TestCheckoutPrunesStoredCartEvenOnFailure(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 1})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:s:x": cartWith(map[int64]cart.Line{
			1:   {Qty: 2, UnitPrice: decimal.NewFromInt(10)},
			999: {Qty: 3, UnitPrice: decimal.NewFromInt(4)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 1, ProductName: "A"},
	}}
	carts.catalog = cat
	svc := newTestService(repo, carts, cat, &fakeNotifier{})

	_, _, err := svc.Checkout(context.Background(), "cart:s:x", nil, shipping())
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	// The dead line is gone from the stored cart while the valid one
	// survives the aborted checkout.
	require.Equal(t, []string{"cart:s:x"}, carts.reconciled)
	require.NotContains(t, carts.carts["cart:s:x"].Lines, int64(999))
	require.Contains(t, carts.carts["cart:s:x"].Lines, int64(1))
}

func TestCheckoutValidatesShipping(t *testing.T) {
	svc := newTestService(newMemoryRepo(nil), &fakeCarts{}, &fakeCatalog{}, &fakeNotifier{})

	bad := shipping()
	bad.Email = "not-an-email"
	_, _, err := svc.Checkout(context.Background(), "cart:s:x", nil, bad)
	require.Error(t, err)
}

type failingNotifier struct{}

func (failingNotifier) OrderPlaced(ctx context.Context, o Order) error {
	return errors.New("enqueue: redis down")
}

func (failingNotifier) OrderCancelled(ctx context.Context, o Order) error {
	return errors.New("enqueue: redis down")
}

func TestCheckoutWarnsWhenNotificationFails(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:s:x": cartWith(map[int64]cart.Line{
			1: {Qty: 1, UnitPrice: decimal.NewFromInt(10)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
	}}
	svc := NewService(slog.New(slog.DiscardHandler), repo, carts, cat, failingNotifier{})

	// The order still goes through, but the caller gets a warning to
	// show the customer instead of an unqualified success.
	order, warnings, err := svc.Checkout(context.Background(), "cart:s:x", nil, shipping())
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "confirmation email")
	require.Equal(t, 4, repo.stock[1])
}

func TestCancelRestoresStockOnce(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:u:7": cartWith(map[int64]cart.Line{
			1: {Qty: 2, UnitPrice: decimal.NewFromInt(10)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
	}}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, carts, cat, notifier)

	userID := int64(7)
	order, _, err := svc.Checkout(context.Background(), "cart:u:7", &userID, shipping())
	require.NoError(t, err)
	require.Equal(t, 3, repo.stock[1])

	cancelled, err := svc.CancelOrder(context.Background(), order.ID, &userID, false)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, cancelled.Status)
	require.Equal(t, 5, repo.stock[1])
	require.Len(t, notifier.cancelled, 1)

	// Second cancel must not restore stock again.
	_, err = svc.CancelOrder(context.Background(), order.ID, &userID, false)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, 5, repo.stock[1])
}

func TestCancelEnforcesOwnership(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:u:7": cartWith(map[int64]cart.Line{
			1: {Qty: 1, UnitPrice: decimal.NewFromInt(10)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
	}}
	svc := newTestService(repo, carts, cat, &fakeNotifier{})

	owner := int64(7)
	order, _, err := svc.Checkout(context.Background(), "cart:u:7", &owner, shipping())
	require.NoError(t, err)

	intruder := int64(8)
	_, err = svc.CancelOrder(context.Background(), order.ID, &intruder, false)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetOrder(context.Background(), order.ID, &intruder, false)
	require.ErrorIs(t, err, ErrForbidden)

	// Staff bypasses ownership.
	got, err := svc.GetOrder(context.Background(), order.ID, nil, true)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:u:7": cartWith(map[int64]cart.Line{
			1: {Qty: 1, UnitPrice: decimal.NewFromInt(10)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
	}}
	svc := newTestService(repo, carts, cat, &fakeNotifier{})

	owner := int64(7)
	order, _, err := svc.Checkout(context.Background(), "cart:u:7", &owner, shipping())
	require.NoError(t, err)

	// PENDING cannot ship directly.
	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusShipped)
	require.ErrorIs(t, err, ErrInvalidState)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, StatusProcessing)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, updated.Status)

	updated, err = svc.UpdateStatus(context.Background(), order.ID, StatusShipped)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, updated.Status)

	// A shipped order cannot be cancelled, only refunded.
	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusCanceled)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestMarkPaidAndRefundClearsIt(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:u:7": cartWith(map[int64]cart.Line{
			1: {Qty: 1, UnitPrice: decimal.NewFromInt(10)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
	}}
	svc := newTestService(repo, carts, cat, &fakeNotifier{})

	owner := int64(7)
	order, _, err := svc.Checkout(context.Background(), "cart:u:7", &owner, shipping())
	require.NoError(t, err)

	paid, err := svc.MarkPaid(context.Background(), order.ID, "transfer")
	require.NoError(t, err)
	require.True(t, paid.Paid)
	require.Equal(t, "transfer", paid.PaymentMethod)

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusProcessing)
	require.NoError(t, err)
	refunded, err := svc.UpdateStatus(context.Background(), order.ID, StatusRefunded)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, refunded.Status)
	require.False(t, refunded.Paid)
	// The method stays on record for refunded orders.
	require.Equal(t, "transfer", refunded.PaymentMethod)

	_, err = svc.MarkPaid(context.Background(), order.ID, "transfer")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelClearsPayment(t *testing.T) {
	repo := newMemoryRepo(map[int64]int{1: 5})
	carts := &fakeCarts{carts: map[string]*cart.Cart{
		"cart:u:7": cartWith(map[int64]cart.Line{
			1: {Qty: 1, UnitPrice: decimal.NewFromInt(10)},
		}),
	}}
	cat := &fakeCatalog{variations: map[int64]catalog.Variation{
		1: {ID: 1, Stock: 5, ProductName: "A"},
	}}
	svc := newTestService(repo, carts, cat, &fakeNotifier{})

	owner := int64(7)
	order, _, err := svc.Checkout(context.Background(), "cart:u:7", &owner, shipping())
	require.NoError(t, err)
	_, err = svc.MarkPaid(context.Background(), order.ID, "cash")
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(context.Background(), order.ID, &owner, false)
	require.NoError(t, err)
	require.False(t, cancelled.Paid)
	require.Empty(t, cancelled.PaymentMethod)
}
