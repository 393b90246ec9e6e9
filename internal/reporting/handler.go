package reporting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mitienda/mitienda/internal/catalog"
	"github.com/mitienda/mitienda/internal/checkout"
	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/internal/view"
)

// Handler serves the staff listing screens and their exports.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pdf       PDFRenderer
	templates *view.Engine
	csrf      *shared.CSRFManager
	storeName string
}

// NewHandler builds Handler instance.
func NewHandler(
	logger *slog.Logger,
	service *Service,
	pdf PDFRenderer,
	templates *view.Engine,
	csrf *shared.CSRFManager,
	storeName string,
) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		pdf:       pdf,
		templates: templates,
		csrf:      csrf,
		storeName: storeName,
	}
}

// MountRoutes registers staff reporting routes. The caller wraps them
// in the staff-only middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/export", h.exportProducts)
	r.Get("/variations", h.listVariations)
	r.Get("/variations/export", h.exportVariations)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/export", h.exportOrders)
}

const perPage = 25

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	rows, total, err := h.service.ProductRows(r.Context(), catalog.ProductFilter{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("product report failed", "error", err)
		http.Error(w, "Failed to load products", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "admin_products.html", "Products", map[string]any{
		"Rows":       rows,
		"Pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) listVariations(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	rows, total, err := h.service.VariationRows(r.Context(), catalog.VariationFilter{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("variation report failed", "error", err)
		http.Error(w, "Failed to load variations", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "admin_variations.html", "Variations", map[string]any{
		"Rows":       rows,
		"Pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	filter := checkout.OrderFilter{Limit: perPage, Offset: (page - 1) * perPage}
	statusParam := r.URL.Query().Get("status")
	if statusParam != "" {
		status := checkout.OrderStatus(statusParam)
		filter.Status = &status
	}

	rows, total, err := h.service.OrderRows(r.Context(), filter)
	if err != nil {
		h.logger.Error("order report failed", "error", err)
		http.Error(w, "Failed to load orders", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "admin_orders.html", "Orders", map[string]any{
		"Rows":         rows,
		"Pagination":   shared.NewPagination(page, perPage, total),
		"Statuses":     checkout.Statuses,
		"StatusFilter": checkout.OrderStatus(statusParam),
	})
}

func (h *Handler) exportProducts(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, func() (Dataset, error) {
		return h.service.ProductDataset(r.Context())
	})
}

func (h *Handler) exportVariations(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, func() (Dataset, error) {
		return h.service.VariationDataset(r.Context())
	})
}

func (h *Handler) exportOrders(w http.ResponseWriter, r *http.Request) {
	var status *checkout.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := checkout.OrderStatus(s)
		status = &st
	}
	h.export(w, r, func() (Dataset, error) {
		return h.service.OrderDataset(r.Context(), status)
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, build func() (Dataset, error)) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, "Unsupported export format", http.StatusBadRequest)
		return
	}

	ds, err := build()
	if err != nil {
		h.logger.Error("export dataset failed", "error", err)
		http.Error(w, "Failed to build export", http.StatusInternalServerError)
		return
	}

	data, err := Encode(r.Context(), format, h.pdf, ds)
	if err != nil {
		h.logger.Error("export encode failed", "error", err, "format", format)
		http.Error(w, "Failed to encode export", http.StatusInternalServerError)
		return
	}

	filename := Filename(ds, format, time.Now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.Error("export write failed", "error", err)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl, title string, data map[string]any) {
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

	if err := h.templates.Render(w, tmpl, viewData); err != nil {
		h.logger.Error("template render failed", "error", err, "template", tmpl)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
