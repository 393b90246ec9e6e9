package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitienda/mitienda/internal/checkout"
	"github.com/mitienda/mitienda/internal/pages"
)

// Enqueuer submits email jobs without blocking the request path.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error
}

// Notifier turns order lifecycle events into queued emails. New orders
// produce two messages, a customer confirmation and a separate heads-up
// to the store's distribution list.
type Notifier struct {
	enqueuer  Enqueuer
	storeName string
	ownerList []string
}

// NewNotifier builds a Notifier.
func NewNotifier(enqueuer Enqueuer, storeName string, ownerList []string) *Notifier {
	return &Notifier{
		enqueuer:  enqueuer,
		storeName: storeName,
		ownerList: ownerList,
	}
}

// OrderPlaced queues the customer confirmation and, when a distribution
// list is configured, the owner notification.
func (n *Notifier) OrderPlaced(ctx context.Context, order checkout.Order) error {
	subject := fmt.Sprintf("%s - Order #%d confirmed", n.storeName, order.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", order.Shipping.FullName)
	fmt.Fprintf(&b, "Thanks for shopping at %s. Your order #%d has been received.\n\n", n.storeName, order.ID)
	writeOrderLines(&b, order)
	fmt.Fprintf(&b, "\nShipping to: %s, %s %s, %s\n", order.Shipping.Address1, order.Shipping.PostalCode, order.Shipping.City, order.Shipping.Country)
	if order.Shipping.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", order.Shipping.Notes)
	}
	b.WriteString("\nWe will let you know when it ships.\n")

	if err := n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      order.Shipping.Email,
		Subject: subject,
		Body:    b.String(),
	}); err != nil {
		return err
	}
	return n.notifyOwner(ctx, order)
}

func (n *Notifier) notifyOwner(ctx context.Context, order checkout.Order) error {
	if len(n.ownerList) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New order #%d from %s <%s>.\n\n", order.ID, order.Shipping.FullName, order.Shipping.Email)
	writeOrderLines(&b, order)
	fmt.Fprintf(&b, "\nShipping to: %s, %s %s, %s\n", order.Shipping.Address1, order.Shipping.PostalCode, order.Shipping.City, order.Shipping.Country)

	return n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      n.ownerList[0],
		BCC:     n.ownerList[1:],
		Subject: fmt.Sprintf("%s - New order #%d", n.storeName, order.ID),
		Body:    b.String(),
	})
}

// OrderCancelled queues the cancellation email.
func (n *Notifier) OrderCancelled(ctx context.Context, order checkout.Order) error {
	subject := fmt.Sprintf("%s - Order #%d cancelled", n.storeName, order.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", order.Shipping.FullName)
	fmt.Fprintf(&b, "Your order #%d at %s has been cancelled and the items returned to stock.\n\n", order.ID, n.storeName)
	writeOrderLines(&b, order)
	b.WriteString("\nIf you did not request this, please reply to this email.\n")

	return n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      order.Shipping.Email,
		Subject: subject,
		Body:    b.String(),
	})
}

// ContactReceived forwards a contact form message to the store's
// distribution list. With no list configured the message stays in the
// database only.
func (n *Notifier) ContactReceived(ctx context.Context, m pages.Message) error {
	if len(n.ownerList) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\n", m.Name, m.Email)
	if m.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", m.Phone)
	}
	fmt.Fprintf(&b, "\n%s\n", m.Body)

	return n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      n.ownerList[0],
		BCC:     n.ownerList[1:],
		Subject: fmt.Sprintf("%s - New contact message: %s", n.storeName, m.Subject),
		Body:    b.String(),
	})
}

func writeOrderLines(b *strings.Builder, order checkout.Order) {
	for _, line := range order.Lines {
		name := line.ProductName
		if line.VariationLabel != "" {
			name += " (" + line.VariationLabel + ")"
		}
		fmt.Fprintf(b, "  %d x %s @ %s = %s\n", line.Qty, name, line.UnitPrice.StringFixed(2), line.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(b, "Total: %s\n", order.Total.StringFixed(2))
}

var (
	_ checkout.Notifier = (*Notifier)(nil)
	_ pages.Notifier    = (*Notifier)(nil)
)
