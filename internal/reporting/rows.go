package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRow is the staff listing and export projection of a product.
type ProductRow struct {
	ID         int64
	Name       string
	Category   string
	Brand      string
	Price      decimal.Decimal
	TotalStock int
	Available  bool
	Featured   bool
}

// Stock thresholds below which the staff listings flag a product or a
// variation as running low.
const (
	lowStockProducts   = 10
	lowStockVariations = 5
)

// StockLevel classifies the aggregate stock for the listing badge:
// "out" at zero, "low" under ten units, "ok" otherwise.
func (r ProductRow) StockLevel() string {
	return stockLevel(r.TotalStock, lowStockProducts)
}

// VariationRow is the staff listing and export projection of a
// variation.
type VariationRow struct {
	ID        int64
	Product   string
	SKU       string
	Label     string
	Stock     int
	UnitPrice decimal.Decimal
	Active    bool
}

// StockLevel classifies a single variation's stock, with a tighter
// low-water mark of five units.
func (r VariationRow) StockLevel() string {
	return stockLevel(r.Stock, lowStockVariations)
}

func stockLevel(stock, low int) string {
	switch {
	case stock <= 0:
		return "out"
	case stock < low:
		return "low"
	default:
		return "ok"
	}
}

// OrderRow is the staff listing and export projection of an order.
type OrderRow struct {
	ID        int64
	Customer  string
	Email     string
	Status    string
	Paid      bool
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Dataset is a report flattened to strings, ready for any encoder.
// Booleans arrive here already rendered as Yes/No; the HTML listings
// never use this projection, they render badges from the typed rows.
type Dataset struct {
	Name    string
	Headers []string
	Rows    [][]string
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func productDataset(rows []ProductRow) Dataset {
	ds := Dataset{
		Name:    "products",
		Headers: []string{"ID", "Name", "Category", "Brand", "Price", "Stock", "Available", "Featured"},
	}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			formatID(r.ID), r.Name, r.Category, r.Brand,
			r.Price.StringFixed(2), formatInt(r.TotalStock),
			yesNo(r.Available), yesNo(r.Featured),
		})
	}
	return ds
}

func variationDataset(rows []VariationRow) Dataset {
	ds := Dataset{
		Name:    "variations",
		Headers: []string{"ID", "Product", "SKU", "Values", "Stock", "Unit price", "Active"},
	}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			formatID(r.ID), r.Product, r.SKU, r.Label,
			formatInt(r.Stock), r.UnitPrice.StringFixed(2), yesNo(r.Active),
		})
	}
	return ds
}

func orderDataset(rows []OrderRow) Dataset {
	ds := Dataset{
		Name:    "orders",
		Headers: []string{"ID", "Customer", "Email", "Status", "Paid", "Total", "Created"},
	}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			formatID(r.ID), r.Customer, r.Email, r.Status, yesNo(r.Paid),
			r.Total.StringFixed(2), r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return ds
}
