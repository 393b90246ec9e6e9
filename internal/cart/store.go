package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Store persists carts as one JSON document per key in Redis. Keys are
// "cart:u:<userID>" for authenticated visitors and "cart:s:<sessionID>"
// for anonymous ones.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store. ttl bounds how long an untouched cart
// survives; the sweep job removes stale carts earlier.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

type linePayload struct {
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type cartPayload struct {
	Lines     map[string]linePayload `json:"lines"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Load fetches the cart for key, returning a fresh empty cart when none
// is stored yet.
func (s *Store) Load(ctx context.Context, key string) (*Cart, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewCart(time.Now()), nil
		}
		return nil, err
	}

	var payload cartPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	c := &Cart{
		Lines:     make(map[int64]Line, len(payload.Lines)),
		CreatedAt: payload.CreatedAt,
		UpdatedAt: payload.UpdatedAt,
	}
	for rawID, line := range payload.Lines {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			continue
		}
		c.Lines[id] = Line{Qty: line.Qty, UnitPrice: price}
	}
	return c, nil
}

// Save writes the cart back, refreshing UpdatedAt and the TTL.
func (s *Store) Save(ctx context.Context, key string, c *Cart) error {
	if c == nil {
		return errors.New("cart: nil cart")
	}
	c.UpdatedAt = time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}

	payload := cartPayload{
		Lines:     make(map[string]linePayload, len(c.Lines)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for id, line := range c.Lines {
		payload.Lines[strconv.FormatInt(id, 10)] = linePayload{
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice.StringFixed(2),
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// Delete removes the cart for key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// SweepStale deletes carts whose last update is older than age and
// returns how many were removed. It scans both anonymous and user cart
// keys; a cart checked out concurrently simply disappears before the
// sweep reaches it.
func (s *Store) SweepStale(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	removed := 0

	iter := s.client.Scan(ctx, 0, "cart:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		c, err := s.Load(ctx, key)
		if err != nil {
			continue
		}
		if c.UpdatedAt.Before(cutoff) {
			if err := s.Delete(ctx, key); err == nil {
				removed++
			}
		}
	}
	return removed, iter.Err()
}
