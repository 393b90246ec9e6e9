package cart

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/internal/view"
)

// Handler manages cart endpoints.
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

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cart", h.showCart)
	r.Post("/cart/add", h.addToCart)
	r.Post("/cart/update", h.updateLine)
	r.Post("/cart/remove", h.removeLine)
}

func (h *Handler) showCart(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	key := sess.CartKey()

	if pruned, err := h.service.Reconcile(r.Context(), key); err != nil {
		h.logger.Error("cart reconcile failed", "error", err)
	} else if len(pruned) > 0 {
		sess.AddFlash("warning", "Some items are no longer available and were removed from your cart.")
	}

	rows, total, err := h.service.View(r.Context(), key)
	if err != nil {
		h.logger.Error("cart view failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	flash := sess.PopFlash()

	count := 0
	for _, row := range rows {
		count += row.Qty
	}

	viewData := view.TemplateData{
		Title:       "Cart",
		StoreName:   h.storeName,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		UserID:      sess.User(),
		CartCount:   count,
		Data: map[string]any{
			"Rows":  rows,
			"Total": total,
		},
	}

	if err := h.templates.Render(w, "cart.html", viewData); err != nil {
		h.logger.Error("template render failed", "error", err, "template", "cart.html")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	variationID, qty, ok := h.parseLineForm(w, r)
	if !ok {
		return
	}

	sess := shared.SessionFromContext(r.Context())
	variation, err := h.service.Add(r.Context(), sess.CartKey(), variationID, qty)
	if err != nil {
		h.flashLineError(sess, err)
		http.Redirect(w, r, h.backTo(r), http.StatusSeeOther)
		return
	}

	sess.AddFlash("success", variation.ProductName+" added to your cart.")
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	variationID, qty, ok := h.parseLineForm(w, r)
	if !ok {
		return
	}

	sess := shared.SessionFromContext(r.Context())
	removed, err := h.service.Update(r.Context(), sess.CartKey(), variationID, qty)
	if err != nil {
		h.flashLineError(sess, err)
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	if removed {
		sess.AddFlash("success", "Item removed from your cart.")
	} else {
		sess.AddFlash("success", "Quantity updated.")
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	variationID, err := strconv.ParseInt(r.PostFormValue("variation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid item", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	found, err := h.service.Remove(r.Context(), sess.CartKey(), variationID)
	if err != nil {
		h.logger.Error("remove cart line failed", "error", err)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else if found {
		sess.AddFlash("success", "Item removed from your cart.")
	} else {
		sess.AddFlash("warning", "That item was not in your cart.")
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (h *Handler) parseLineForm(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return 0, 0, false
	}
	variationID, err := strconv.ParseInt(r.PostFormValue("variation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid item", http.StatusBadRequest)
		return 0, 0, false
	}
	qty, err := strconv.Atoi(r.PostFormValue("qty"))
	if err != nil {
		http.Error(w, "Invalid quantity", http.StatusBadRequest)
		return 0, 0, false
	}
	return variationID, qty, true
}

func (h *Handler) flashLineError(sess *shared.Session, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		sess.AddFlash("error", "Not enough stock for the requested quantity.")
	case errors.Is(err, ErrInvalidQuantity):
		sess.AddFlash("error", "Quantity must be at least 1.")
	case errors.Is(err, ErrNotFound):
		sess.AddFlash("error", "That product is no longer available.")
	case errors.Is(err, ErrLineMissing):
		sess.AddFlash("warning", "That item was not in your cart.")
	default:
		h.logger.Error("cart operation failed", "error", err)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	}
}

func (h *Handler) backTo(r *http.Request) string {
	if ref := r.Referer(); ref != "" {
		return ref
	}
	return "/products"
}
