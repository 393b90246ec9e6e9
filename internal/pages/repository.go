package pages

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists contact messages in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, m Message) (Message, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO contact_messages (name, email, phone, subject, body)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, sent_at`,
		m.Name, m.Email, m.Phone, m.Subject, m.Body).Scan(&m.ID, &m.SentAt)
	return m, err
}

// List returns messages newest first, with the unpaged total.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Message, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM contact_messages`).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, name, email, phone, subject, body, sent_at
		 FROM contact_messages ORDER BY sent_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Body, &m.SentAt); err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}
