package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RepositoryPort abstracts the repository surface used by the service.
type RepositoryPort interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListBrands(ctx context.Context) ([]Brand, error)
	GetBrand(ctx context.Context, id int64) (Brand, error)
	CreateBrand(ctx context.Context, b Brand) (Brand, error)
	UpdateBrand(ctx context.Context, b Brand) error
	DeleteBrand(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ProductTotalStock(ctx context.Context, productID int64) (int, error)

	ListVariationTypes(ctx context.Context) ([]VariationType, error)
	CreateVariationType(ctx context.Context, t VariationType) (VariationType, error)
	ListVariationValues(ctx context.Context, typeID int64) ([]VariationValue, error)
	CreateVariationValue(ctx context.Context, v VariationValue) (VariationValue, error)

	GetVariation(ctx context.Context, id int64) (Variation, error)
	GetActiveVariation(ctx context.Context, id int64) (Variation, error)
	ListVariations(ctx context.Context, filter VariationFilter) ([]Variation, int, error)
	InsertVariation(ctx context.Context, v Variation) (int64, error)
	AssignSKU(ctx context.Context, id int64, sku string) error
	UpdateVariation(ctx context.Context, v Variation) error
	DeleteVariation(ctx context.Context, id int64) error
	SetVariationValues(ctx context.Context, variationID int64, valueIDs []int64) error

	DecrementStock(ctx context.Context, variationID int64, qty int) error
	RestoreStock(ctx context.Context, variationID int64, qty int) error

	ListImages(ctx context.Context, productID int64) ([]Image, error)
	AddImage(ctx context.Context, img Image) (Image, error)
	DeleteImage(ctx context.Context, id int64) error
}

// Service coordinates catalog operations: slug derivation, the
// two-phase SKU write and plain CRUD guards.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// maxSlugAttempts bounds the collision disambiguation loop.
const maxSlugAttempts = 50

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// CreateCategory derives the slug from the name when absent and retries
// with a numeric disambiguator on collision.
func (s *Service) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Category{}, errors.New("catalog: category name is required")
	}
	base := c.Slug
	if base == "" {
		base = Slugify(c.Name)
	}
	var created Category
	err := withSlugRetry(base, func(slug string) error {
		c.Slug = slug
		var err error
		created, err = s.repo.CreateCategory(ctx, c)
		return err
	})
	return created, err
}

func (s *Service) UpdateCategory(ctx context.Context, c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("catalog: category name is required")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return s.repo.UpdateCategory(ctx, c)
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

func (s *Service) ListBrands(ctx context.Context) ([]Brand, error) {
	return s.repo.ListBrands(ctx)
}

func (s *Service) GetBrand(ctx context.Context, id int64) (Brand, error) {
	return s.repo.GetBrand(ctx, id)
}

func (s *Service) CreateBrand(ctx context.Context, b Brand) (Brand, error) {
	if strings.TrimSpace(b.Name) == "" {
		return Brand{}, errors.New("catalog: brand name is required")
	}
	base := b.Slug
	if base == "" {
		base = Slugify(b.Name)
	}
	var created Brand
	err := withSlugRetry(base, func(slug string) error {
		b.Slug = slug
		var err error
		created, err = s.repo.CreateBrand(ctx, b)
		return err
	})
	return created, err
}

func (s *Service) UpdateBrand(ctx context.Context, b Brand) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("catalog: brand name is required")
	}
	if b.Slug == "" {
		b.Slug = Slugify(b.Name)
	}
	return s.repo.UpdateBrand(ctx, b)
}

func (s *Service) DeleteBrand(ctx context.Context, id int64) error {
	return s.repo.DeleteBrand(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return s.repo.GetProductBySlug(ctx, slug)
}

// CreateProduct persists a product, deriving a unique slug from the
// name when none was supplied.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	base := p.Slug
	if base == "" {
		base = Slugify(p.Name)
	}
	var created Product
	err := withSlugRetry(base, func(slug string) error {
		p.Slug = slug
		var err error
		created, err = s.repo.CreateProduct(ctx, p)
		return err
	})
	return created, err
}

func (s *Service) UpdateProduct(ctx context.Context, p Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	return s.repo.UpdateProduct(ctx, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ProductTotalStock(ctx context.Context, productID int64) (int, error) {
	return s.repo.ProductTotalStock(ctx, productID)
}

func (s *Service) ListVariationTypes(ctx context.Context) ([]VariationType, error) {
	return s.repo.ListVariationTypes(ctx)
}

func (s *Service) CreateVariationType(ctx context.Context, t VariationType) (VariationType, error) {
	if strings.TrimSpace(t.Name) == "" {
		return VariationType{}, errors.New("catalog: variation type name is required")
	}
	return s.repo.CreateVariationType(ctx, t)
}

func (s *Service) ListVariationValues(ctx context.Context, typeID int64) ([]VariationValue, error) {
	return s.repo.ListVariationValues(ctx, typeID)
}

func (s *Service) CreateVariationValue(ctx context.Context, v VariationValue) (VariationValue, error) {
	if v.TypeID == 0 || strings.TrimSpace(v.Value) == "" {
		return VariationValue{}, errors.New("catalog: variation value and type are required")
	}
	return s.repo.CreateVariationValue(ctx, v)
}

func (s *Service) GetVariation(ctx context.Context, id int64) (Variation, error) {
	return s.repo.GetVariation(ctx, id)
}

func (s *Service) GetActiveVariation(ctx context.Context, id int64) (Variation, error) {
	return s.repo.GetActiveVariation(ctx, id)
}

func (s *Service) ListVariations(ctx context.Context, filter VariationFilter) ([]Variation, int, error) {
	return s.repo.ListVariations(ctx, filter)
}

// CreateVariation persists a variation. A blank SKU is assigned after
// the insert, once the identity exists, as "<product-slug>-<id>": the
// two-phase write is an explicit lifecycle step here, not a side effect.
func (s *Service) CreateVariation(ctx context.Context, v Variation, valueIDs []int64) (Variation, error) {
	if v.ProductID == 0 {
		return Variation{}, errors.New("catalog: variation requires a product")
	}
	if v.Stock < 0 {
		return Variation{}, errors.New("catalog: stock must not be negative")
	}
	if v.ExtraPrice.IsNegative() {
		return Variation{}, errors.New("catalog: extra price must not be negative")
	}

	product, err := s.repo.GetProduct(ctx, v.ProductID)
	if err != nil {
		return Variation{}, err
	}

	id, err := s.repo.InsertVariation(ctx, v)
	if err != nil {
		return Variation{}, err
	}
	if v.SKU == "" {
		sku := fmt.Sprintf("%s-%d", product.Slug, id)
		if len(sku) > 100 {
			sku = sku[:100]
		}
		if err := s.repo.AssignSKU(ctx, id, sku); err != nil {
			return Variation{}, err
		}
	}
	if len(valueIDs) > 0 {
		if err := s.repo.SetVariationValues(ctx, id, valueIDs); err != nil {
			return Variation{}, err
		}
	}
	return s.repo.GetVariation(ctx, id)
}

func (s *Service) UpdateVariation(ctx context.Context, v Variation, valueIDs []int64) error {
	if v.Stock < 0 {
		return errors.New("catalog: stock must not be negative")
	}
	if err := s.repo.UpdateVariation(ctx, v); err != nil {
		return err
	}
	if valueIDs != nil {
		return s.repo.SetVariationValues(ctx, v.ID, valueIDs)
	}
	return nil
}

func (s *Service) DeleteVariation(ctx context.Context, id int64) error {
	return s.repo.DeleteVariation(ctx, id)
}

func (s *Service) ListImages(ctx context.Context, productID int64) ([]Image, error) {
	return s.repo.ListImages(ctx, productID)
}

func (s *Service) AddImage(ctx context.Context, img Image) (Image, error) {
	if img.ProductID == 0 || strings.TrimSpace(img.URL) == "" {
		return Image{}, errors.New("catalog: image requires a product and a URL")
	}
	return s.repo.AddImage(ctx, img)
}

func (s *Service) DeleteImage(ctx context.Context, id int64) error {
	return s.repo.DeleteImage(ctx, id)
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("catalog: product name is required")
	}
	if p.Price.IsNegative() {
		return errors.New("catalog: price must not be negative")
	}
	return nil
}

// withSlugRetry runs fn with the base slug, then with "-2", "-3", ...
// suffixes until the unique constraint stops objecting.
func withSlugRetry(base string, fn func(slug string) error) error {
	slug := base
	for attempt := 2; ; attempt++ {
		err := fn(slug)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicate) || attempt > maxSlugAttempts {
			return err
		}
		slug = fmt.Sprintf("%s-%d", base, attempt)
	}
}
