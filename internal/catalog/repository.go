package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ----------------------------------------------------------------------------
// Categories and brands
// ----------------------------------------------------------------------------

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.db.QueryRow(ctx, `SELECT id, name, slug, description FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name, slug, description) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Slug, c.Description).Scan(&c.ID)
	return c, mapWriteErr(err)
}

func (r *Repository) UpdateCategory(ctx context.Context, c Category) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE categories SET name = $1, slug = $2, description = $3 WHERE id = $4`,
		c.Name, c.Slug, c.Description, c.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return err
}

func (r *Repository) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, description FROM brands ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []Brand
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Slug, &b.Description); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (r *Repository) GetBrand(ctx context.Context, id int64) (Brand, error) {
	var b Brand
	err := r.db.QueryRow(ctx, `SELECT id, name, slug, description FROM brands WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Slug, &b.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Brand{}, ErrNotFound
	}
	return b, err
}

func (r *Repository) CreateBrand(ctx context.Context, b Brand) (Brand, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO brands (name, slug, description) VALUES ($1, $2, $3) RETURNING id`,
		b.Name, b.Slug, b.Description).Scan(&b.ID)
	return b, mapWriteErr(err)
}

func (r *Repository) UpdateBrand(ctx context.Context, b Brand) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE brands SET name = $1, slug = $2, description = $3 WHERE id = $4`,
		b.Name, b.Slug, b.Description, b.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteBrand(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	return err
}

// ----------------------------------------------------------------------------
// Products
// ----------------------------------------------------------------------------

const productColumns = `p.id, p.name, p.description, p.price, p.category_id, p.brand_id,
	p.available, p.featured, p.slug, p.created_at, p.updated_at,
	COALESCE((SELECT SUM(v.stock) FROM product_variations v WHERE v.product_id = p.id AND v.active), 0),
	COALESCE((SELECT i.url FROM product_images i WHERE i.product_id = p.id ORDER BY i.principal DESC, i.ord LIMIT 1), ''),
	COALESCE((SELECT c.name FROM categories c WHERE c.id = p.category_id), ''),
	COALESCE((SELECT b.name FROM brands b WHERE b.id = p.brand_id), '')`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.BrandID,
		&p.Available, &p.Featured, &p.Slug, &p.CreatedAt, &p.UpdatedAt, &p.TotalStock,
		&p.ImageURL, &p.CategoryName, &p.BrandName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.CategoryID != nil {
		argCount++
		where += ` AND p.category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filter.CategoryID)
	}
	if filter.BrandID != nil {
		argCount++
		where += ` AND p.brand_id = $` + strconv.Itoa(argCount)
		args = append(args, *filter.BrandID)
	}
	if filter.Search != "" {
		argCount++
		where += ` AND p.name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Available != nil {
		argCount++
		where += ` AND p.available = $` + strconv.Itoa(argCount)
		args = append(args, *filter.Available)
	}
	if filter.Featured != nil {
		argCount++
		where += ` AND p.featured = $` + strconv.Itoa(argCount)
		args = append(args, *filter.Featured)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products p` + where + ` ORDER BY p.name`
	if filter.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.PerPage)

		offset := (filter.Page - 1) * filter.PerPage
		if offset < 0 {
			offset = 0
		}
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
}

func (r *Repository) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.slug = $1`, slug))
}

func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO products (name, description, price, category_id, brand_id, available, featured, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) RETURNING id`,
		p.Name, p.Description, p.Price, p.CategoryID, p.BrandID, p.Available, p.Featured, p.Slug, now).Scan(&p.ID)
	if err != nil {
		return Product{}, mapWriteErr(err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products SET name = $1, description = $2, price = $3, category_id = $4, brand_id = $5,
		 available = $6, featured = $7, slug = $8, updated_at = $9 WHERE id = $10`,
		p.Name, p.Description, p.Price, p.CategoryID, p.BrandID, p.Available, p.Featured, p.Slug, time.Now(), p.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

// ProductTotalStock sums stock across a product's active variations.
func (r *Repository) ProductTotalStock(ctx context.Context, productID int64) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(stock), 0) FROM product_variations WHERE product_id = $1 AND active`,
		productID).Scan(&total)
	return total, err
}

// ----------------------------------------------------------------------------
// Variation types and values
// ----------------------------------------------------------------------------

func (r *Repository) ListVariationTypes(ctx context.Context) ([]VariationType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM variation_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []VariationType
	for rows.Next() {
		var t VariationType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *Repository) CreateVariationType(ctx context.Context, t VariationType) (VariationType, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO variation_types (name) VALUES ($1) RETURNING id`, t.Name).Scan(&t.ID)
	return t, mapWriteErr(err)
}

func (r *Repository) ListVariationValues(ctx context.Context, typeID int64) ([]VariationValue, error) {
	rows, err := r.db.Query(ctx,
		`SELECT vv.id, vv.type_id, vt.name, vv.value
		 FROM variation_values vv JOIN variation_types vt ON vt.id = vv.type_id
		 WHERE vv.type_id = $1 ORDER BY vv.value`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []VariationValue
	for rows.Next() {
		var v VariationValue
		if err := rows.Scan(&v.ID, &v.TypeID, &v.TypeName, &v.Value); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (r *Repository) CreateVariationValue(ctx context.Context, v VariationValue) (VariationValue, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO variation_values (type_id, value) VALUES ($1, $2) RETURNING id`,
		v.TypeID, v.Value).Scan(&v.ID)
	return v, mapWriteErr(err)
}

// ----------------------------------------------------------------------------
// Product variations
// ----------------------------------------------------------------------------

const variationColumns = `v.id, v.product_id, COALESCE(v.sku, ''), v.stock, v.extra_price, v.active,
	p.name, p.slug, p.price,
	COALESCE((SELECT i.url FROM product_images i WHERE i.product_id = p.id ORDER BY i.principal DESC, i.ord LIMIT 1), '')`

const variationJoin = ` FROM product_variations v JOIN products p ON p.id = v.product_id`

func scanVariation(row pgx.Row) (Variation, error) {
	var v Variation
	err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Stock, &v.ExtraPrice, &v.Active,
		&v.ProductName, &v.ProductSlug, &v.ProductPrice, &v.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variation{}, ErrNotFound
	}
	return v, err
}

func (r *Repository) GetVariation(ctx context.Context, id int64) (Variation, error) {
	v, err := scanVariation(r.db.QueryRow(ctx,
		`SELECT `+variationColumns+variationJoin+` WHERE v.id = $1`, id))
	if err != nil {
		return Variation{}, err
	}
	if err := r.attachValues(ctx, []*Variation{&v}); err != nil {
		return Variation{}, err
	}
	return v, nil
}

// GetActiveVariation resolves a variation only when both the variation
// and its product are live on the storefront.
func (r *Repository) GetActiveVariation(ctx context.Context, id int64) (Variation, error) {
	v, err := scanVariation(r.db.QueryRow(ctx,
		`SELECT `+variationColumns+variationJoin+` WHERE v.id = $1 AND v.active AND p.available`, id))
	if err != nil {
		return Variation{}, err
	}
	if err := r.attachValues(ctx, []*Variation{&v}); err != nil {
		return Variation{}, err
	}
	return v, nil
}

func (r *Repository) ListVariations(ctx context.Context, filter VariationFilter) ([]Variation, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.ProductID != nil {
		argCount++
		where += ` AND v.product_id = $` + strconv.Itoa(argCount)
		args = append(args, *filter.ProductID)
	}
	if filter.SKU != "" {
		argCount++
		where += ` AND v.sku ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filter.SKU+"%")
	}
	if filter.Active != nil {
		argCount++
		where += ` AND v.active = $` + strconv.Itoa(argCount)
		args = append(args, *filter.Active)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+variationJoin+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + variationColumns + variationJoin + where + ` ORDER BY p.name, v.id`
	if filter.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.PerPage)

		offset := (filter.Page - 1) * filter.PerPage
		if offset < 0 {
			offset = 0
		}
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var variations []Variation
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return nil, 0, err
		}
		variations = append(variations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	refs := make([]*Variation, len(variations))
	for i := range variations {
		refs[i] = &variations[i]
	}
	if err := r.attachValues(ctx, refs); err != nil {
		return nil, 0, err
	}
	return variations, total, nil
}

func (r *Repository) attachValues(ctx context.Context, variations []*Variation) error {
	if len(variations) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(variations))
	byID := make(map[int64]*Variation, len(variations))
	for _, v := range variations {
		ids = append(ids, v.ID)
		byID[v.ID] = v
	}

	rows, err := r.db.Query(ctx,
		`SELECT l.variation_id, vv.id, vv.type_id, vt.name, vv.value
		 FROM variation_value_links l
		 JOIN variation_values vv ON vv.id = l.value_id
		 JOIN variation_types vt ON vt.id = vv.type_id
		 WHERE l.variation_id = ANY($1)
		 ORDER BY vt.name, vv.value`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var variationID int64
		var val VariationValue
		if err := rows.Scan(&variationID, &val.ID, &val.TypeID, &val.TypeName, &val.Value); err != nil {
			return err
		}
		if v, ok := byID[variationID]; ok {
			v.Values = append(v.Values, val)
		}
	}
	return rows.Err()
}

// InsertVariation writes the variation row. The SKU may be blank here;
// AssignSKU completes the two-phase write once the identity is known.
func (r *Repository) InsertVariation(ctx context.Context, v Variation) (int64, error) {
	var sku *string
	if v.SKU != "" {
		sku = &v.SKU
	}
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO product_variations (product_id, sku, stock, extra_price, active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		v.ProductID, sku, v.Stock, v.ExtraPrice, v.Active).Scan(&id)
	return id, mapWriteErr(err)
}

// AssignSKU patches the SKU of an already persisted variation.
func (r *Repository) AssignSKU(ctx context.Context, id int64, sku string) error {
	tag, err := r.db.Exec(ctx, `UPDATE product_variations SET sku = $1 WHERE id = $2`, sku, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateVariation(ctx context.Context, v Variation) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE product_variations SET sku = $1, stock = $2, extra_price = $3, active = $4 WHERE id = $5`,
		v.SKU, v.Stock, v.ExtraPrice, v.Active, v.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteVariation(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM product_variations WHERE id = $1`, id)
	return err
}

// SetVariationValues replaces the value set linked to a variation.
func (r *Repository) SetVariationValues(ctx context.Context, variationID int64, valueIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM variation_value_links WHERE variation_id = $1`, variationID); err != nil {
		return err
	}
	for _, valueID := range valueIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO variation_value_links (variation_id, value_id) VALUES ($1, $2)`,
			variationID, valueID); err != nil {
			return mapWriteErr(err)
		}
	}
	return tx.Commit(ctx)
}

// DecrementStock atomically removes qty units, failing when fewer are
// available. The guard lives in the UPDATE itself so concurrent
// checkouts against the same variation serialize at the row.
func (r *Repository) DecrementStock(ctx context.Context, variationID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE product_variations SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		variationID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock returns qty units to a variation. Missing rows are
// reported as ErrNotFound so callers can skip deleted variations.
func (r *Repository) RestoreStock(ctx context.Context, variationID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE product_variations SET stock = stock + $2 WHERE id = $1`,
		variationID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ----------------------------------------------------------------------------
// Product images
// ----------------------------------------------------------------------------

func (r *Repository) ListImages(ctx context.Context, productID int64) ([]Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, product_id, url, principal, ord FROM product_images WHERE product_id = $1 ORDER BY ord`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.Principal, &img.Order); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *Repository) AddImage(ctx context.Context, img Image) (Image, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO product_images (product_id, url, principal, ord) VALUES ($1, $2, $3, $4) RETURNING id`,
		img.ProductID, img.URL, img.Principal, img.Order).Scan(&img.ID)
	return img, err
}

func (r *Repository) DeleteImage(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	return err
}
