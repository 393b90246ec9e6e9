package pages

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	nextID   int64
	messages []Message
}

func (m *memoryRepo) Insert(ctx context.Context, msg Message) (Message, error) {
	m.nextID++
	msg.ID = m.nextID
	msg.SentAt = time.Now()
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memoryRepo) List(ctx context.Context, limit, offset int) ([]Message, int, error) {
	out := make([]Message, 0, len(m.messages))
	for i := len(m.messages) - 1; i >= 0; i-- {
		out = append(out, m.messages[i])
	}
	return out, len(m.messages), nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

type fakeNotifier struct {
	received []Message
	err      error
}

func (f *fakeNotifier) ContactReceived(ctx context.Context, m Message) error {
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, m)
	return nil
}

func validMessage() Message {
	return Message{
		Name:    "Ana Torres",
		Email:   "ana@example.com",
		Phone:   "555-0101",
		Subject: "Stock question",
		Body:    "Do you have the blue shirt in size M?",
	}
}

func TestSubmitStoresAndNotifies(t *testing.T) {
	repo := &memoryRepo{}
	notifier := &fakeNotifier{}
	svc := NewService(slog.Default(), repo, notifier)

	saved, warnings, err := svc.Submit(context.Background(), validMessage())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.NotZero(t, saved.ID)
	require.False(t, saved.SentAt.IsZero())
	require.Len(t, notifier.received, 1)
	require.Equal(t, "Stock question", notifier.received[0].Subject)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(slog.Default(), repo, &fakeNotifier{})
	ctx := context.Background()

	missing := validMessage()
	missing.Name = ""
	_, _, err := svc.Submit(ctx, missing)
	require.Error(t, err)

	badEmail := validMessage()
	badEmail.Email = "not-an-email"
	_, _, err = svc.Submit(ctx, badEmail)
	require.Error(t, err)

	longPhone := validMessage()
	longPhone.Phone = "012345678901234567890"
	_, _, err = svc.Submit(ctx, longPhone)
	require.Error(t, err)

	require.Empty(t, repo.messages)
}

func TestSubmitKeepsMessageWhenNotificationFails(t *testing.T) {
	repo := &memoryRepo{}
	notifier := &fakeNotifier{err: errors.New("enqueue: redis down")}
	svc := NewService(slog.Default(), repo, notifier)

	saved, warnings, err := svc.Submit(context.Background(), validMessage())
	require.NoError(t, err)
	require.NotZero(t, saved.ID)
	require.Len(t, repo.messages, 1)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "received")
}

func TestListMessagesNewestFirst(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(slog.Default(), repo, &fakeNotifier{})
	ctx := context.Background()

	first := validMessage()
	first.Subject = "First"
	_, _, err := svc.Submit(ctx, first)
	require.NoError(t, err)

	second := validMessage()
	second.Subject = "Second"
	_, _, err = svc.Submit(ctx, second)
	require.NoError(t, err)

	messages, total, err := svc.ListMessages(ctx, 20, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "Second", messages[0].Subject)
}
