package cart

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mitienda/mitienda/internal/catalog"
)

// StorePort abstracts cart persistence.
type StorePort interface {
	Load(ctx context.Context, key string) (*Cart, error)
	Save(ctx context.Context, key string, c *Cart) error
	Delete(ctx context.Context, key string) error
}

// CatalogPort supplies live variation data for stock and price checks.
type CatalogPort interface {
	GetActiveVariation(ctx context.Context, id int64) (catalog.Variation, error)
}

// Service implements the cart contract against a store and the live
// catalog.
type Service struct {
	store   StorePort
	catalog CatalogPort
}

// NewService builds a Service.
func NewService(store StorePort, cat CatalogPort) *Service {
	return &Service{store: store, catalog: cat}
}

// Add puts qty units of a variation into the cart. The requested
// quantity is validated against live stock; a line that already exists
// is incremented without re-checking the accumulated total — repeated
// adds can exceed stock until checkout validates the whole cart again.
// The unit price is captured at this instant: base price plus extra.
func (s *Service) Add(ctx context.Context, key string, variationID int64, qty int) (catalog.Variation, error) {
	if qty <= 0 {
		return catalog.Variation{}, ErrInvalidQuantity
	}
	variation, err := s.catalog.GetActiveVariation(ctx, variationID)
	if err != nil {
		return catalog.Variation{}, err
	}
	if variation.Stock < qty {
		return variation, ErrInsufficientStock
	}

	c, err := s.store.Load(ctx, key)
	if err != nil {
		return variation, err
	}
	if line, ok := c.Lines[variationID]; ok {
		line.Qty += qty
		c.Lines[variationID] = line
	} else {
		c.Lines[variationID] = Line{Qty: qty, UnitPrice: variation.UnitPrice()}
	}
	return variation, s.store.Save(ctx, key, c)
}

// Update overwrites a line's quantity. A non-positive quantity removes
// the line; otherwise the new absolute quantity is validated against
// live stock. Returns true when the line was removed.
func (s *Service) Update(ctx context.Context, key string, variationID int64, qty int) (bool, error) {
	variation, err := s.catalog.GetActiveVariation(ctx, variationID)
	if err != nil {
		return false, err
	}

	c, err := s.store.Load(ctx, key)
	if err != nil {
		return false, err
	}
	if _, ok := c.Lines[variationID]; !ok {
		return false, ErrLineMissing
	}

	if qty <= 0 {
		delete(c.Lines, variationID)
		return true, s.store.Save(ctx, key, c)
	}
	if variation.Stock < qty {
		return false, ErrInsufficientStock
	}
	line := c.Lines[variationID]
	line.Qty = qty
	c.Lines[variationID] = line
	return false, s.store.Save(ctx, key, c)
}

// Remove drops a line. It is idempotent; the returned flag tells the
// caller whether anything was actually removed so a warning can be
// shown for absent lines.
func (s *Service) Remove(ctx context.Context, key string, variationID int64) (bool, error) {
	c, err := s.store.Load(ctx, key)
	if err != nil {
		return false, err
	}
	if _, ok := c.Lines[variationID]; !ok {
		return false, nil
	}
	delete(c.Lines, variationID)
	return true, s.store.Save(ctx, key, c)
}

// Reconcile prunes lines whose variation no longer resolves to an
// active catalog entry and persists the result. The pruned variation
// IDs are returned for messaging. Unlike the historical behavior this
// is the only operation that mutates the cart while reading it; View
// stays pure.
func (s *Service) Reconcile(ctx context.Context, key string) ([]int64, error) {
	c, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	var pruned []int64
	for id := range c.Lines {
		if _, err := s.catalog.GetActiveVariation(ctx, id); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				delete(c.Lines, id)
				pruned = append(pruned, id)
				continue
			}
			return nil, err
		}
	}
	if len(pruned) == 0 {
		return nil, nil
	}
	return pruned, s.store.Save(ctx, key, c)
}

// View joins the stored lines against the live catalog and returns
// display rows plus the cart total. Lines that fail to resolve are
// skipped, not removed; callers wanting the prune must Reconcile first.
func (s *Service) View(ctx context.Context, key string) ([]DisplayRow, decimal.Decimal, error) {
	c, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, decimal.Zero, err
	}

	rows := make([]DisplayRow, 0, len(c.Lines))
	total := decimal.Zero
	for id, line := range c.Lines {
		variation, err := s.catalog.GetActiveVariation(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, decimal.Zero, err
		}
		imageURL := variation.ImageURL
		if imageURL == "" {
			imageURL = PlaceholderImageURL
		}
		subtotal := line.Subtotal()
		total = total.Add(subtotal)
		rows = append(rows, DisplayRow{
			VariationID:    id,
			ProductName:    variation.ProductName,
			VariationLabel: variation.Label(),
			ImageURL:       imageURL,
			Qty:            line.Qty,
			UnitPrice:      line.UnitPrice,
			Subtotal:       subtotal,
			LiveStock:      variation.Stock,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].VariationID < rows[j].VariationID })
	return rows, total, nil
}

// Total re-derives the cart total by iterating valid lines.
func (s *Service) Total(ctx context.Context, key string) (decimal.Decimal, error) {
	_, total, err := s.View(ctx, key)
	return total, err
}

// Snapshot returns the raw cart for checkout.
func (s *Service) Snapshot(ctx context.Context, key string) (*Cart, error) {
	return s.store.Load(ctx, key)
}

// Clear deletes every line for key.
func (s *Service) Clear(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// Merge folds the cart at fromKey into the cart at toKey, summing
// quantities for shared variations; the destination's captured price
// wins. Used when an anonymous session logs in, keeping at most one
// active cart per user.
func (s *Service) Merge(ctx context.Context, fromKey, toKey string) error {
	if fromKey == toKey {
		return nil
	}
	from, err := s.store.Load(ctx, fromKey)
	if err != nil {
		return err
	}
	if from.IsEmpty() {
		return nil
	}
	to, err := s.store.Load(ctx, toKey)
	if err != nil {
		return err
	}
	for id, line := range from.Lines {
		if existing, ok := to.Lines[id]; ok {
			existing.Qty += line.Qty
			to.Lines[id] = existing
		} else {
			to.Lines[id] = line
		}
	}
	if err := s.store.Save(ctx, toKey, to); err != nil {
		return err
	}
	return s.store.Delete(ctx, fromKey)
}
