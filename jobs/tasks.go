package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeCartSweep is the task type for pruning stale carts.
	TaskTypeCartSweep = "cart:sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string   `json:"to"`
	BCC     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// CartSweepPayload carries the idle cutoff for a sweep run.
type CartSweepPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewCartSweepTask constructs an Asynq task that removes carts idle
// longer than maxAge.
func NewCartSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(CartSweepPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCartSweep, data, asynq.Queue(QueueDefault)), nil
}
