package catalog

import (
	"context"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memoryRepo is an in-memory RepositoryPort good enough to exercise the
// service logic: it enforces slug and SKU uniqueness like the database
// constraints do.
type memoryRepo struct {
	nextID     int64
	categories map[int64]Category
	brands     map[int64]Brand
	products   map[int64]Product
	variations map[int64]Variation
	values     map[int64][]int64
	images     map[int64]Image
	types      map[int64]VariationType
	typeValues map[int64][]VariationValue
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		categories: map[int64]Category{},
		brands:     map[int64]Brand{},
		products:   map[int64]Product{},
		variations: map[int64]Variation{},
		values:     map[int64][]int64{},
		images:     map[int64]Image{},
		types:      map[int64]VariationType{},
		typeValues: map[int64][]VariationValue{},
	}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) ListCategories(ctx context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) GetCategory(ctx context.Context, id int64) (Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) CreateCategory(ctx context.Context, c Category) (Category, error) {
	for _, existing := range m.categories {
		if existing.Slug == c.Slug {
			return Category{}, ErrDuplicate
		}
	}
	c.ID = m.id()
	m.categories[c.ID] = c
	return c, nil
}

func (m *memoryRepo) UpdateCategory(ctx context.Context, c Category) error {
	if _, ok := m.categories[c.ID]; !ok {
		return ErrNotFound
	}
	m.categories[c.ID] = c
	return nil
}

func (m *memoryRepo) DeleteCategory(ctx context.Context, id int64) error {
	delete(m.categories, id)
	return nil
}

func (m *memoryRepo) ListBrands(ctx context.Context) ([]Brand, error) {
	out := make([]Brand, 0, len(m.brands))
	for _, b := range m.brands {
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryRepo) GetBrand(ctx context.Context, id int64) (Brand, error) {
	b, ok := m.brands[id]
	if !ok {
		return Brand{}, ErrNotFound
	}
	return b, nil
}

func (m *memoryRepo) CreateBrand(ctx context.Context, b Brand) (Brand, error) {
	for _, existing := range m.brands {
		if existing.Slug == b.Slug {
			return Brand{}, ErrDuplicate
		}
	}
	b.ID = m.id()
	m.brands[b.ID] = b
	return b, nil
}

func (m *memoryRepo) UpdateBrand(ctx context.Context, b Brand) error {
	if _, ok := m.brands[b.ID]; !ok {
		return ErrNotFound
	}
	m.brands[b.ID] = b
	return nil
}

func (m *memoryRepo) DeleteBrand(ctx context.Context, id int64) error {
	delete(m.brands, id)
	return nil
}

func (m *memoryRepo) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		if filter.Available != nil && p.Available != *filter.Available {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (m *memoryRepo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	for _, existing := range m.products {
		if existing.Slug == p.Slug {
			return Product{}, ErrDuplicate
		}
	}
	p.ID = m.id()
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) UpdateProduct(ctx context.Context, p Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return ErrNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *memoryRepo) DeleteProduct(ctx context.Context, id int64) error {
	delete(m.products, id)
	return nil
}

func (m *memoryRepo) ProductTotalStock(ctx context.Context, productID int64) (int, error) {
	total := 0
	for _, v := range m.variations {
		if v.ProductID == productID && v.Active {
			total += v.Stock
		}
	}
	return total, nil
}

func (m *memoryRepo) ListVariationTypes(ctx context.Context) ([]VariationType, error) {
	out := make([]VariationType, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) CreateVariationType(ctx context.Context, t VariationType) (VariationType, error) {
	for _, existing := range m.types {
		if existing.Name == t.Name {
			return VariationType{}, ErrDuplicate
		}
	}
	t.ID = m.id()
	m.types[t.ID] = t
	return t, nil
}

func (m *memoryRepo) ListVariationValues(ctx context.Context, typeID int64) ([]VariationValue, error) {
	return m.typeValues[typeID], nil
}

func (m *memoryRepo) CreateVariationValue(ctx context.Context, v VariationValue) (VariationValue, error) {
	for _, existing := range m.typeValues[v.TypeID] {
		if existing.Value == v.Value {
			return VariationValue{}, ErrDuplicate
		}
	}
	v.ID = m.id()
	if t, ok := m.types[v.TypeID]; ok {
		v.TypeName = t.Name
	}
	m.typeValues[v.TypeID] = append(m.typeValues[v.TypeID], v)
	return v, nil
}

func (m *memoryRepo) GetVariation(ctx context.Context, id int64) (Variation, error) {
	v, ok := m.variations[id]
	if !ok {
		return Variation{}, ErrNotFound
	}
	return v, nil
}

func (m *memoryRepo) GetActiveVariation(ctx context.Context, id int64) (Variation, error) {
	v, err := m.GetVariation(ctx, id)
	if err != nil {
		return Variation{}, err
	}
	if !v.Active {
		return Variation{}, ErrNotFound
	}
	return v, nil
}

func (m *memoryRepo) ListVariations(ctx context.Context, filter VariationFilter) ([]Variation, int, error) {
	out := make([]Variation, 0, len(m.variations))
	for _, v := range m.variations {
		if filter.ProductID != nil && v.ProductID != *filter.ProductID {
			continue
		}
		if filter.Active != nil && v.Active != *filter.Active {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (m *memoryRepo) InsertVariation(ctx context.Context, v Variation) (int64, error) {
	if v.SKU != "" {
		for _, existing := range m.variations {
			if existing.SKU == v.SKU {
				return 0, ErrDuplicate
			}
		}
	}
	v.ID = m.id()
	m.variations[v.ID] = v
	return v.ID, nil
}

func (m *memoryRepo) AssignSKU(ctx context.Context, id int64, sku string) error {
	v, ok := m.variations[id]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range m.variations {
		if existing.ID != id && existing.SKU == sku {
			return ErrDuplicate
		}
	}
	v.SKU = sku
	m.variations[id] = v
	return nil
}

func (m *memoryRepo) UpdateVariation(ctx context.Context, v Variation) error {
	if _, ok := m.variations[v.ID]; !ok {
		return ErrNotFound
	}
	m.variations[v.ID] = v
	return nil
}

func (m *memoryRepo) DeleteVariation(ctx context.Context, id int64) error {
	delete(m.variations, id)
	return nil
}

func (m *memoryRepo) SetVariationValues(ctx context.Context, variationID int64, valueIDs []int64) error {
	m.values[variationID] = append([]int64(nil), valueIDs...)
	return nil
}

func (m *memoryRepo) DecrementStock(ctx context.Context, variationID int64, qty int) error {
	v, ok := m.variations[variationID]
	if !ok {
		return ErrNotFound
	}
	if v.Stock < qty {
		return ErrInsufficientStock
	}
	v.Stock -= qty
	m.variations[variationID] = v
	return nil
}

func (m *memoryRepo) RestoreStock(ctx context.Context, variationID int64, qty int) error {
	v, ok := m.variations[variationID]
	if !ok {
		return ErrNotFound
	}
	v.Stock += qty
	m.variations[variationID] = v
	return nil
}

func (m *memoryRepo) ListImages(ctx context.Context, productID int64) ([]Image, error) {
	out := []Image{}
	for _, img := range m.images {
		if img.ProductID == productID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (m *memoryRepo) AddImage(ctx context.Context, img Image) (Image, error) {
	img.ID = m.id()
	m.images[img.ID] = img
	return img, nil
}

func (m *memoryRepo) DeleteImage(ctx context.Context, id int64) error {
	delete(m.images, id)
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

func TestCreateProductDerivesSlug(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, Product{
		Name:  "Café Latte 2.0",
		Price: decimal.NewFromFloat(9.50),
	})
	require.NoError(t, err)
	require.Equal(t, "cafe-latte-2-0", created.Slug)
}

func TestCreateProductDisambiguatesSlugCollision(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.CreateProduct(ctx, Product{Name: "Camisa Azul", Price: decimal.NewFromInt(20)})
	require.NoError(t, err)
	require.Equal(t, "camisa-azul", first.Slug)

	second, err := svc.CreateProduct(ctx, Product{Name: "Camisa Azul", Price: decimal.NewFromInt(25)})
	require.NoError(t, err)
	require.Equal(t, "camisa-azul-2", second.Slug)

	third, err := svc.CreateProduct(ctx, Product{Name: "Camisa Azul", Price: decimal.NewFromInt(30)})
	require.NoError(t, err)
	require.Equal(t, "camisa-azul-3", third.Slug)
}

func TestCreateProductRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, Product{Name: "   ", Price: decimal.NewFromInt(1)})
	require.Error(t, err)

	_, err = svc.CreateProduct(ctx, Product{Name: "Ok", Price: decimal.NewFromInt(-1)})
	require.Error(t, err)
}

func TestCreateVariationAssignsSKUAfterInsert(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, Product{Name: "Camisa Azul", Price: decimal.NewFromInt(20)})
	require.NoError(t, err)

	created, err := svc.CreateVariation(ctx, Variation{
		ProductID:  product.ID,
		Stock:      10,
		ExtraPrice: decimal.NewFromInt(2),
		Active:     true,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "camisa-azul-2", created.SKU)
	require.Equal(t, int64(2), created.ID)
}

func TestCreateVariationKeepsExplicitSKU(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, Product{Name: "Camisa Azul", Price: decimal.NewFromInt(20)})
	require.NoError(t, err)

	created, err := svc.CreateVariation(ctx, Variation{
		ProductID: product.ID,
		SKU:       "CUSTOM-001",
		Stock:     3,
		Active:    true,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "CUSTOM-001", created.SKU)
}

func TestCreateVariationLinksValues(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, Product{Name: "Camisa", Price: decimal.NewFromInt(20)})
	require.NoError(t, err)

	created, err := svc.CreateVariation(ctx, Variation{
		ProductID: product.ID,
		Stock:     1,
		Active:    true,
	}, []int64{7, 9})
	require.NoError(t, err)
	require.Equal(t, []int64{7, 9}, repo.values[created.ID])
}

func TestCreateVariationRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CreateVariation(ctx, Variation{Stock: 1}, nil)
	require.Error(t, err)

	product, err := svc.CreateProduct(ctx, Product{Name: "Camisa", Price: decimal.NewFromInt(20)})
	require.NoError(t, err)

	_, err = svc.CreateVariation(ctx, Variation{ProductID: product.ID, Stock: -1}, nil)
	require.Error(t, err)

	_, err = svc.CreateVariation(ctx, Variation{ProductID: 99, Stock: 1}, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCategoryAndBrandDeriveSlugs(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, Category{Name: "Ropa de Niños"})
	require.NoError(t, err)
	require.Equal(t, "ropa-de-ninos", cat.Slug)

	dup, err := svc.CreateCategory(ctx, Category{Name: "Ropa de Niños"})
	require.NoError(t, err)
	require.Equal(t, "ropa-de-ninos-2", dup.Slug)

	brand, err := svc.CreateBrand(ctx, Brand{Name: "Açaí & Co."})
	require.NoError(t, err)
	require.Equal(t, "acai-co", brand.Slug)
}

func TestVariationLabelAndUnitPrice(t *testing.T) {
	v := Variation{
		ProductPrice: decimal.RequireFromString("19.99"),
		ExtraPrice:   decimal.RequireFromString("2.00"),
		Values: []VariationValue{
			{TypeName: "Color", Value: "Azul"},
			{TypeName: "Talla", Value: "M"},
		},
	}
	require.Equal(t, "Color: Azul, Talla: M", v.Label())
	require.True(t, v.UnitPrice().Equal(decimal.RequireFromString("21.99")))

	bare := Variation{SKU: "X-1"}
	require.Equal(t, "SKU X-1", bare.Label())
	require.Equal(t, "Default", Variation{}.Label())
}

func TestCreateVariationTypeAndValues(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	vt, err := svc.CreateVariationType(ctx, VariationType{Name: "Color"})
	require.NoError(t, err)
	require.NotZero(t, vt.ID)

	_, err = svc.CreateVariationType(ctx, VariationType{Name: "   "})
	require.Error(t, err)

	val, err := svc.CreateVariationValue(ctx, VariationValue{TypeID: vt.ID, Value: "Azul"})
	require.NoError(t, err)
	require.Equal(t, "Color", val.TypeName)

	_, err = svc.CreateVariationValue(ctx, VariationValue{Value: "Rojo"})
	require.Error(t, err)

	_, err = svc.CreateVariationValue(ctx, VariationValue{TypeID: vt.ID, Value: ""})
	require.Error(t, err)

	types, err := svc.ListVariationTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)

	values, err := svc.ListVariationValues(ctx, vt.ID)
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, "Azul", values[0].Value)
}

func TestDeleteOperationsRemoveEntries(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, Category{Name: "Ropa"})
	require.NoError(t, err)
	brand, err := svc.CreateBrand(ctx, Brand{Name: "Acme"})
	require.NoError(t, err)
	product, err := svc.CreateProduct(ctx, Product{Name: "Camisa", Price: decimal.NewFromInt(20)})
	require.NoError(t, err)
	variation, err := svc.CreateVariation(ctx, Variation{ProductID: product.ID, Stock: 3, Active: true}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVariation(ctx, variation.ID))
	_, err = svc.GetVariation(ctx, variation.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteProduct(ctx, product.ID))
	_, err = svc.GetProduct(ctx, product.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))
	require.NoError(t, svc.DeleteBrand(ctx, brand.ID))
	cats, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Empty(t, cats)
	brands, err := svc.ListBrands(ctx)
	require.NoError(t, err)
	require.Empty(t, brands)
}

func TestAddImageValidatesInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, Product{Name: "Camisa", Price: decimal.NewFromInt(20)})
	require.NoError(t, err)

	_, err = svc.AddImage(ctx, Image{ProductID: product.ID})
	require.Error(t, err)

	_, err = svc.AddImage(ctx, Image{URL: "/media/camisa.jpg"})
	require.Error(t, err)

	img, err := svc.AddImage(ctx, Image{ProductID: product.ID, URL: "/media/camisa.jpg", Principal: true})
	require.NoError(t, err)
	require.NotZero(t, img.ID)

	require.NoError(t, svc.DeleteImage(ctx, img.ID))
	images, err := svc.ListImages(ctx, product.ID)
	require.NoError(t, err)
	require.Empty(t, images)
}
