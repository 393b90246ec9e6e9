package pages

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// RepositoryPort is the storage surface the service needs.
type RepositoryPort interface {
	Insert(ctx context.Context, m Message) (Message, error)
	List(ctx context.Context, limit, offset int) ([]Message, int, error)
}

// Notifier forwards a stored message to the store's distribution list.
type Notifier interface {
	ContactReceived(ctx context.Context, m Message) error
}

// Service handles contact form submissions.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	notifier Notifier
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, notifier Notifier) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		notifier: notifier,
		validate: validator.New(),
	}
}

// Submit validates and stores the message, then notifies the store
// owners. The message is kept even when the notification fails; the
// failure comes back as a warning for the caller to surface.
func (s *Service) Submit(ctx context.Context, m Message) (Message, []string, error) {
	if err := s.validate.Struct(m); err != nil {
		return Message{}, nil, err
	}

	saved, err := s.repo.Insert(ctx, m)
	if err != nil {
		return Message{}, nil, err
	}

	var warnings []string
	if err := s.notifier.ContactReceived(ctx, saved); err != nil {
		s.logger.Error("contact notification failed", "error", err, "message_id", saved.ID)
		warnings = append(warnings, "Your message was received, but there was a problem delivering it. We will follow up as soon as possible.")
	}
	return saved, warnings, nil
}

// ListMessages returns stored messages newest first.
func (s *Service) ListMessages(ctx context.Context, limit, offset int) ([]Message, int, error) {
	return s.repo.List(ctx, limit, offset)
}
