package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/internal/view"
)

// Handler manages storefront and staff catalog endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	storeName string
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, storeName string) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		storeName: storeName,
	}
}

// MountRoutes registers the public storefront routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/products", h.listProducts)
	r.Get("/products/{slug}", h.showProduct)
}

// MountAdminRoutes registers the staff catalog CRUD routes. The caller
// wraps them in the staff-only middleware.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/products/new", h.showProductForm)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}/edit", h.showEditProductForm)
	r.Post("/products/{id}/edit", h.updateProduct)
	r.Post("/products/{id}/delete", h.deleteProduct)
	r.Post("/products/{id}/images", h.addImage)
	r.Post("/images/{id}/delete", h.deleteImage)

	r.Get("/variations/new", h.showVariationForm)
	r.Post("/variations", h.createVariation)
	r.Get("/variations/{id}/edit", h.showEditVariationForm)
	r.Post("/variations/{id}/edit", h.updateVariation)
	r.Post("/variations/{id}/delete", h.deleteVariation)

	r.Get("/taxonomy", h.showTaxonomy)
	r.Post("/categories", h.createCategory)
	r.Post("/categories/{id}/delete", h.deleteCategory)
	r.Post("/brands", h.createBrand)
	r.Post("/brands/{id}/delete", h.deleteBrand)
	r.Post("/variation-types", h.createVariationType)
	r.Post("/variation-values", h.createVariationValue)
}

const storefrontPerPage = 24

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	featured := true
	available := true
	products, _, err := h.service.ListProducts(r.Context(), ProductFilter{
		Featured:  &featured,
		Available: &available,
		Page:      1,
		PerPage:   12,
	})
	if err != nil {
		h.logger.Error("load featured products failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "home.html", h.storeName, map[string]any{
		"Featured": products,
	}, http.StatusOK)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	available := true
	filter := ProductFilter{
		Search:    q.Get("q"),
		Available: &available,
		Page:      page,
		PerPage:   storefrontPerPage,
	}

	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	brands, err := h.service.ListBrands(r.Context())
	if err != nil {
		h.logger.Error("list brands failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	categorySlug := q.Get("category")
	for _, c := range categories {
		if c.Slug == categorySlug {
			id := c.ID
			filter.CategoryID = &id
			break
		}
	}
	brandSlug := q.Get("brand")
	for _, b := range brands {
		if b.Slug == brandSlug {
			id := b.ID
			filter.BrandID = &id
			break
		}
	}

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("list products failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "products_list.html", "Products", map[string]any{
		"Products":     products,
		"Categories":   categories,
		"Brands":       brands,
		"Query":        filter.Search,
		"CategorySlug": categorySlug,
		"BrandSlug":    brandSlug,
		"Pagination":   shared.NewPagination(page, storefrontPerPage, total),
	}, http.StatusOK)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	product, err := h.service.GetProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("load product failed", "error", err, "slug", slug)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !product.Available {
		http.NotFound(w, r)
		return
	}

	active := true
	variations, _, err := h.service.ListVariations(r.Context(), VariationFilter{
		ProductID: &product.ID,
		Active:    &active,
	})
	if err != nil {
		h.logger.Error("load variations failed", "error", err, "product_id", product.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	images, err := h.service.ListImages(r.Context(), product.ID)
	if err != nil {
		h.logger.Error("load images failed", "error", err, "product_id", product.ID)
	}

	h.render(w, r, "product_detail.html", product.Name, map[string]any{
		"Product":    product,
		"Variations": variations,
		"Images":     images,
	}, http.StatusOK)
}

// ----------------------------------------------------------------------------
// Staff CRUD
// ----------------------------------------------------------------------------

func (h *Handler) showProductForm(w http.ResponseWriter, r *http.Request) {
	h.renderProductForm(w, r, nil, map[string]string{}, "/admin/products", http.StatusOK)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	product, formErrs := h.parseProductForm(r)
	if len(formErrs) > 0 {
		h.renderProductForm(w, r, nil, formErrs, "/admin/products", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		h.logger.Error("create product failed", "error", err)
		h.renderProductForm(w, r, &product, map[string]string{"general": shared.UserSafeMessage(err)}, "/admin/products", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	sess.AddFlash("success", "Product created.")
	http.Redirect(w, r, "/admin/products/"+strconv.FormatInt(created.ID, 10)+"/edit", http.StatusSeeOther)
}

func (h *Handler) showEditProductForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}
	action := "/admin/products/" + strconv.FormatInt(id, 10) + "/edit"
	h.renderProductForm(w, r, &product, map[string]string{}, action, http.StatusOK)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	action := "/admin/products/" + strconv.FormatInt(id, 10) + "/edit"

	product, formErrs := h.parseProductForm(r)
	product.ID = id
	if len(formErrs) > 0 {
		h.renderProductForm(w, r, &product, formErrs, action, http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateProduct(r.Context(), product); err != nil {
		h.logger.Error("update product failed", "error", err, "id", id)
		h.renderProductForm(w, r, &product, map[string]string{"general": shared.UserSafeMessage(err)}, action, http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	sess.AddFlash("success", "Product updated.")
	http.Redirect(w, r, action, http.StatusSeeOther)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.logger.Error("delete product failed", "error", err, "id", id)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Product deleted.")
	}
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (h *Handler) addImage(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	back := "/admin/products/" + strconv.FormatInt(productID, 10) + "/edit"

	order, _ := strconv.Atoi(r.PostFormValue("order"))
	_, err = h.service.AddImage(r.Context(), Image{
		ProductID: productID,
		URL:       r.PostFormValue("url"),
		Principal: r.PostFormValue("principal") == "true",
		Order:     order,
	})
	if err != nil {
		h.logger.Error("add image failed", "error", err, "product_id", productID)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Image added.")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// deleteImage reads the owning product from a hidden form field so it
// can land back on that product's edit page.
func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid image ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	back := "/admin/products"
	if productID, err := strconv.ParseInt(r.PostFormValue("product_id"), 10, 64); err == nil {
		back = "/admin/products/" + strconv.FormatInt(productID, 10) + "/edit"
	}

	if err := h.service.DeleteImage(r.Context(), id); err != nil {
		h.logger.Error("delete image failed", "error", err, "id", id)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Image deleted.")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) parseProductForm(r *http.Request) (Product, map[string]string) {
	formErrs := map[string]string{}
	if err := r.ParseForm(); err != nil {
		formErrs["general"] = "Invalid form submission."
		return Product{}, formErrs
	}

	product := Product{
		Name:        r.PostFormValue("name"),
		Slug:        r.PostFormValue("slug"),
		Description: r.PostFormValue("description"),
		Available:   r.PostFormValue("available") == "true",
		Featured:    r.PostFormValue("featured") == "true",
	}
	if product.Name == "" {
		formErrs["Name"] = "Name is required."
	}

	price, err := decimal.NewFromString(r.PostFormValue("price"))
	if err != nil || price.IsNegative() {
		formErrs["Price"] = "Price must be a non-negative number."
	}
	product.Price = price

	if v := r.PostFormValue("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			product.CategoryID = &id
		}
	}
	if v := r.PostFormValue("brand_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			product.BrandID = &id
		}
	}
	return product, formErrs
}

func (h *Handler) renderProductForm(w http.ResponseWriter, r *http.Request, product *Product, formErrs map[string]string, action string, status int) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", "error", err)
	}
	brands, err := h.service.ListBrands(r.Context())
	if err != nil {
		h.logger.Error("list brands failed", "error", err)
	}

	var images []Image
	if product != nil && product.ID != 0 {
		images, err = h.service.ListImages(r.Context(), product.ID)
		if err != nil {
			h.logger.Error("list images failed", "error", err, "product_id", product.ID)
		}
	}

	h.render(w, r, "admin_product_form.html", "Product", map[string]any{
		"Product":    product,
		"Categories": categories,
		"Brands":     brands,
		"Images":     images,
		"Errors":     formErrs,
		"Action":     action,
	}, status)
}

func (h *Handler) showVariationForm(w http.ResponseWriter, r *http.Request) {
	h.renderVariationForm(w, r, nil, map[string]string{}, "/admin/variations", http.StatusOK)
}

func (h *Handler) createVariation(w http.ResponseWriter, r *http.Request) {
	variation, valueIDs, formErrs := h.parseVariationForm(r)
	if len(formErrs) > 0 {
		h.renderVariationForm(w, r, nil, formErrs, "/admin/variations", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateVariation(r.Context(), variation, valueIDs)
	if err != nil {
		h.logger.Error("create variation failed", "error", err)
		h.renderVariationForm(w, r, &variation, map[string]string{"general": shared.UserSafeMessage(err)}, "/admin/variations", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	sess.AddFlash("success", "Variation created with SKU "+created.SKU+".")
	http.Redirect(w, r, "/admin/variations", http.StatusSeeOther)
}

func (h *Handler) showEditVariationForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid variation ID", http.StatusBadRequest)
		return
	}
	variation, err := h.service.GetVariation(r.Context(), id)
	if err != nil {
		http.Error(w, "Variation not found", http.StatusNotFound)
		return
	}
	action := "/admin/variations/" + strconv.FormatInt(id, 10) + "/edit"
	h.renderVariationForm(w, r, &variation, map[string]string{}, action, http.StatusOK)
}

func (h *Handler) updateVariation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid variation ID", http.StatusBadRequest)
		return
	}
	action := "/admin/variations/" + strconv.FormatInt(id, 10) + "/edit"

	variation, valueIDs, formErrs := h.parseVariationForm(r)
	variation.ID = id
	if len(formErrs) > 0 {
		h.renderVariationForm(w, r, &variation, formErrs, action, http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateVariation(r.Context(), variation, valueIDs); err != nil {
		h.logger.Error("update variation failed", "error", err, "id", id)
		h.renderVariationForm(w, r, &variation, map[string]string{"general": shared.UserSafeMessage(err)}, action, http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	sess.AddFlash("success", "Variation updated.")
	http.Redirect(w, r, action, http.StatusSeeOther)
}

func (h *Handler) deleteVariation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid variation ID", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	if err := h.service.DeleteVariation(r.Context(), id); err != nil {
		h.logger.Error("delete variation failed", "error", err, "id", id)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Variation deleted.")
	}
	http.Redirect(w, r, "/admin/variations", http.StatusSeeOther)
}

func (h *Handler) parseVariationForm(r *http.Request) (Variation, []int64, map[string]string) {
	formErrs := map[string]string{}
	if err := r.ParseForm(); err != nil {
		formErrs["general"] = "Invalid form submission."
		return Variation{}, nil, formErrs
	}

	variation := Variation{
		SKU:    r.PostFormValue("sku"),
		Active: r.PostFormValue("active") == "true",
	}

	productID, err := strconv.ParseInt(r.PostFormValue("product_id"), 10, 64)
	if err != nil {
		formErrs["Product"] = "Choose a product."
	}
	variation.ProductID = productID

	stock, err := strconv.Atoi(r.PostFormValue("stock"))
	if err != nil || stock < 0 {
		formErrs["Stock"] = "Stock must be zero or more."
	}
	variation.Stock = stock

	extra := r.PostFormValue("extra_price")
	if extra == "" {
		extra = "0"
	}
	extraPrice, err := decimal.NewFromString(extra)
	if err != nil {
		formErrs["ExtraPrice"] = "Extra price must be a number."
	}
	variation.ExtraPrice = extraPrice

	var valueIDs []int64
	for _, raw := range r.PostForm["value_ids"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			valueIDs = append(valueIDs, id)
		}
	}
	return variation, valueIDs, formErrs
}

func (h *Handler) renderVariationForm(w http.ResponseWriter, r *http.Request, variation *Variation, formErrs map[string]string, action string, status int) {
	products, _, err := h.service.ListProducts(r.Context(), ProductFilter{Page: 1, PerPage: 1000})
	if err != nil {
		h.logger.Error("list products failed", "error", err)
	}

	var values []VariationValue
	types, err := h.service.ListVariationTypes(r.Context())
	if err != nil {
		h.logger.Error("list variation types failed", "error", err)
	}
	for _, t := range types {
		typeValues, err := h.service.ListVariationValues(r.Context(), t.ID)
		if err != nil {
			h.logger.Error("list variation values failed", "error", err, "type_id", t.ID)
			continue
		}
		values = append(values, typeValues...)
	}

	h.render(w, r, "admin_variation_form.html", "Variation", map[string]any{
		"Variation": variation,
		"Products":  products,
		"Values":    values,
		"Errors":    formErrs,
		"Action":    action,
	}, status)
}

func (h *Handler) showTaxonomy(w http.ResponseWriter, r *http.Request) {
	h.renderTaxonomy(w, r, map[string]string{}, http.StatusOK)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	_, err := h.service.CreateCategory(r.Context(), Category{Name: r.PostFormValue("name")})
	if err != nil {
		h.logger.Error("create category failed", "error", err)
		h.renderTaxonomy(w, r, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	sess.AddFlash("success", "Category created.")
	http.Redirect(w, r, "/admin/taxonomy", http.StatusSeeOther)
}

func (h *Handler) createBrand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	_, err := h.service.CreateBrand(r.Context(), Brand{Name: r.PostFormValue("name")})
	if err != nil {
		h.logger.Error("create brand failed", "error", err)
		h.renderTaxonomy(w, r, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	sess.AddFlash("success", "Brand created.")
	http.Redirect(w, r, "/admin/taxonomy", http.StatusSeeOther)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid category ID", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.logger.Error("delete category failed", "error", err, "id", id)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Category deleted.")
	}
	http.Redirect(w, r, "/admin/taxonomy", http.StatusSeeOther)
}

func (h *Handler) deleteBrand(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid brand ID", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	if err := h.service.DeleteBrand(r.Context(), id); err != nil {
		h.logger.Error("delete brand failed", "error", err, "id", id)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Brand deleted.")
	}
	http.Redirect(w, r, "/admin/taxonomy", http.StatusSeeOther)
}

func (h *Handler) createVariationType(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	_, err := h.service.CreateVariationType(r.Context(), VariationType{Name: r.PostFormValue("name")})
	if err != nil {
		h.logger.Error("create variation type failed", "error", err)
		h.renderTaxonomy(w, r, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	sess.AddFlash("success", "Variation type created.")
	http.Redirect(w, r, "/admin/taxonomy", http.StatusSeeOther)
}

func (h *Handler) createVariationValue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	typeID, _ := strconv.ParseInt(r.PostFormValue("type_id"), 10, 64)
	_, err := h.service.CreateVariationValue(r.Context(), VariationValue{
		TypeID: typeID,
		Value:  r.PostFormValue("value"),
	})
	if err != nil {
		h.logger.Error("create variation value failed", "error", err)
		h.renderTaxonomy(w, r, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	sess.AddFlash("success", "Variation value created.")
	http.Redirect(w, r, "/admin/taxonomy", http.StatusSeeOther)
}

// taxonomyType pairs a variation type with its values for the admin page.
type taxonomyType struct {
	Type   VariationType
	Values []VariationValue
}

func (h *Handler) renderTaxonomy(w http.ResponseWriter, r *http.Request, formErrs map[string]string, status int) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", "error", err)
	}
	brands, err := h.service.ListBrands(r.Context())
	if err != nil {
		h.logger.Error("list brands failed", "error", err)
	}

	var types []taxonomyType
	variationTypes, err := h.service.ListVariationTypes(r.Context())
	if err != nil {
		h.logger.Error("list variation types failed", "error", err)
	}
	for _, t := range variationTypes {
		values, err := h.service.ListVariationValues(r.Context(), t.ID)
		if err != nil {
			h.logger.Error("list variation values failed", "error", err, "type_id", t.ID)
			continue
		}
		types = append(types, taxonomyType{Type: t, Values: values})
	}

	h.render(w, r, "admin_taxonomy.html", "Taxonomy", map[string]any{
		"Categories": categories,
		"Brands":     brands,
		"Types":      types,
		"Errors":     formErrs,
	}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)

	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}

	viewData := view.TemplateData{
		Title:       title,
		StoreName:   h.storeName,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		UserID:      sess.User(),
		Data:        data,
	}

	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, tmpl, viewData); err != nil {
		h.logger.Error("template render failed", "error", err, "template", tmpl)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
