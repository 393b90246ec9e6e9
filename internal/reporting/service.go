package reporting

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/mitienda/mitienda/internal/catalog"
	"github.com/mitienda/mitienda/internal/checkout"
)

// CatalogPort reads catalog data for reports.
type CatalogPort interface {
	ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int, error)
	ListVariations(ctx context.Context, filter catalog.VariationFilter) ([]catalog.Variation, int, error)
}

// OrdersPort reads orders for reports.
type OrdersPort interface {
	ListOrders(ctx context.Context, filter checkout.OrderFilter) ([]checkout.Order, int, error)
}

// Service builds report rows from the catalog and order stores.
// Concurrent export requests for the same dataset collapse into one
// database pass.
type Service struct {
	catalog CatalogPort
	orders  OrdersPort
	group   singleflight.Group
}

// NewService builds a Service.
func NewService(cat CatalogPort, orders OrdersPort) *Service {
	return &Service{catalog: cat, orders: orders}
}

// ProductRows returns product projections plus the unpaged total.
func (s *Service) ProductRows(ctx context.Context, filter catalog.ProductFilter) ([]ProductRow, int, error) {
	products, total, err := s.catalog.ListProducts(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, ProductRow{
			ID:         p.ID,
			Name:       p.Name,
			Category:   p.CategoryName,
			Brand:      p.BrandName,
			Price:      p.Price,
			TotalStock: p.TotalStock,
			Available:  p.Available,
			Featured:   p.Featured,
		})
	}
	return rows, total, nil
}

// VariationRows returns variation projections plus the unpaged total.
func (s *Service) VariationRows(ctx context.Context, filter catalog.VariationFilter) ([]VariationRow, int, error) {
	variations, total, err := s.catalog.ListVariations(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]VariationRow, 0, len(variations))
	for _, v := range variations {
		rows = append(rows, VariationRow{
			ID:        v.ID,
			Product:   v.ProductName,
			SKU:       v.SKU,
			Label:     v.Label(),
			Stock:     v.Stock,
			UnitPrice: v.UnitPrice(),
			Active:    v.Active,
		})
	}
	return rows, total, nil
}

// OrderRows returns order projections plus the unpaged total.
func (s *Service) OrderRows(ctx context.Context, filter checkout.OrderFilter) ([]OrderRow, int, error) {
	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]OrderRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, OrderRow{
			ID:        o.ID,
			Customer:  o.Shipping.FullName,
			Email:     o.Shipping.Email,
			Status:    string(o.Status),
			Paid:      o.Paid,
			Total:     o.Total,
			CreatedAt: o.CreatedAt,
		})
	}
	return rows, total, nil
}

// exportLimit bounds export size. Exports are unpaginated by design;
// the cap keeps a runaway dataset from exhausting memory.
const exportLimit = 10000

// ProductDataset builds the full export dataset.
func (s *Service) ProductDataset(ctx context.Context) (Dataset, error) {
	v, err, _ := s.group.Do("products", func() (any, error) {
		rows, _, err := s.ProductRows(ctx, catalog.ProductFilter{Page: 1, PerPage: exportLimit})
		if err != nil {
			return Dataset{}, err
		}
		return productDataset(rows), nil
	})
	if err != nil {
		return Dataset{}, err
	}
	return v.(Dataset), nil
}

// VariationDataset builds the full export dataset.
func (s *Service) VariationDataset(ctx context.Context) (Dataset, error) {
	v, err, _ := s.group.Do("variations", func() (any, error) {
		rows, _, err := s.VariationRows(ctx, catalog.VariationFilter{Page: 1, PerPage: exportLimit})
		if err != nil {
			return Dataset{}, err
		}
		return variationDataset(rows), nil
	})
	if err != nil {
		return Dataset{}, err
	}
	return v.(Dataset), nil
}

// OrderDataset builds the full export dataset, optionally filtered by
// status.
func (s *Service) OrderDataset(ctx context.Context, status *checkout.OrderStatus) (Dataset, error) {
	key := "orders"
	if status != nil {
		key += ":" + string(*status)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		rows, _, err := s.OrderRows(ctx, checkout.OrderFilter{Status: status, Limit: exportLimit})
		if err != nil {
			return Dataset{}, err
		}
		return orderDataset(rows), nil
	})
	if err != nil {
		return Dataset{}, err
	}
	return v.(Dataset), nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
func formatInt(n int) string   { return strconv.Itoa(n) }
