package pages

import (
	"fmt"
	"time"

	"github.com/mitienda/mitienda/internal/shared"
)

// ErrNotFound wraps the shared sentinel so handlers flashing
// shared.UserSafeMessage get the specific text.
var ErrNotFound = fmt.Errorf("pages: contact message %w", shared.ErrNotFound)

// Message is a contact form submission. SentAt is assigned by the
// database on insert.
type Message struct {
	ID      int64
	Name    string `validate:"required,max=100"`
	Email   string `validate:"required,email,max=254"`
	Phone   string `validate:"max=20"`
	Subject string `validate:"required,max=200"`
	Body    string `validate:"required"`
	SentAt  time.Time
}
