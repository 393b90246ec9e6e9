package jobs

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mitienda/mitienda/internal/checkout"
	"github.com/mitienda/mitienda/internal/pages"
)

type fakeEnqueuer struct {
	sent []SendEmailPayload
}

func (f *fakeEnqueuer) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error {
	f.sent = append(f.sent, payload)
	return nil
}

func sampleOrder() checkout.Order {
	return checkout.Order{
		ID:     42,
		Status: checkout.StatusPending,
		Total:  decimal.RequireFromString("51.98"),
		Shipping: checkout.ShippingInfo{
			FullName:   "Ana García",
			Email:      "ana@example.com",
			Address1:   "Calle Mayor 1",
			City:       "Madrid",
			PostalCode: "28001",
			Country:    "ES",
			Notes:      "Ring twice",
		},
		Lines: []checkout.OrderLine{
			{ProductName: "Camisa Azul", VariationLabel: "Talla: M", Qty: 2, UnitPrice: decimal.RequireFromString("21.99")},
			{ProductName: "Calcetines", Qty: 1, UnitPrice: decimal.RequireFromString("8.00")},
		},
	}
}

func TestOrderPlacedEmailsCustomerAndOwner(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewNotifier(enq, "Mi Tienda", []string{"owner@mitienda.local", "books@mitienda.local"})

	err := notifier.OrderPlaced(context.Background(), sampleOrder())
	require.NoError(t, err)
	require.Len(t, enq.sent, 2)

	msg := enq.sent[0]
	require.Equal(t, "ana@example.com", msg.To)
	require.Empty(t, msg.BCC)
	require.Equal(t, "Mi Tienda - Order #42 confirmed", msg.Subject)
	require.Contains(t, msg.Body, "Hi Ana García")
	require.Contains(t, msg.Body, "2 x Camisa Azul (Talla: M) @ 21.99 = 43.98")
	require.Contains(t, msg.Body, "1 x Calcetines @ 8.00 = 8.00")
	require.Contains(t, msg.Body, "Total: 51.98")
	require.Contains(t, msg.Body, "Calle Mayor 1, 28001 Madrid, ES")
	require.Contains(t, msg.Body, "Notes: Ring twice")

	owner := enq.sent[1]
	require.Equal(t, "owner@mitienda.local", owner.To)
	require.Equal(t, []string{"books@mitienda.local"}, owner.BCC)
	require.Equal(t, "Mi Tienda - New order #42", owner.Subject)
	require.Contains(t, owner.Body, "Ana García <ana@example.com>")
	require.Contains(t, owner.Body, "Total: 51.98")
}

func TestOrderPlacedSkipsOwnerWithoutList(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewNotifier(enq, "Mi Tienda", nil)

	err := notifier.OrderPlaced(context.Background(), sampleOrder())
	require.NoError(t, err)
	require.Len(t, enq.sent, 1)
	require.Equal(t, "ana@example.com", enq.sent[0].To)
}

func TestContactReceivedEmailsOwnerList(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewNotifier(enq, "Mi Tienda", []string{"owner@mitienda.local", "books@mitienda.local"})

	err := notifier.ContactReceived(context.Background(), pages.Message{
		Name:    "Luis Pérez",
		Email:   "luis@example.com",
		Phone:   "555-0101",
		Subject: "Stock question",
		Body:    "Do you have the blue shirt in size M?",
	})
	require.NoError(t, err)
	require.Len(t, enq.sent, 1)

	msg := enq.sent[0]
	require.Equal(t, "owner@mitienda.local", msg.To)
	require.Equal(t, []string{"books@mitienda.local"}, msg.BCC)
	require.Equal(t, "Mi Tienda - New contact message: Stock question", msg.Subject)
	require.Contains(t, msg.Body, "Luis Pérez <luis@example.com>")
	require.Contains(t, msg.Body, "Phone: 555-0101")
	require.Contains(t, msg.Body, "blue shirt")
}

func TestContactReceivedSkipsWithoutList(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewNotifier(enq, "Mi Tienda", nil)

	err := notifier.ContactReceived(context.Background(), pages.Message{Subject: "Hello"})
	require.NoError(t, err)
	require.Empty(t, enq.sent)
}

func TestOrderCancelledEmail(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewNotifier(enq, "Mi Tienda", nil)

	err := notifier.OrderCancelled(context.Background(), sampleOrder())
	require.NoError(t, err)
	require.Len(t, enq.sent, 1)

	msg := enq.sent[0]
	require.Equal(t, "Mi Tienda - Order #42 cancelled", msg.Subject)
	require.Empty(t, msg.BCC)
	require.Contains(t, msg.Body, "returned to stock")
	require.Contains(t, msg.Body, "Total: 51.98")
}
