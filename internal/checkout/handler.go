package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mitienda/mitienda/internal/cart"
	"github.com/mitienda/mitienda/internal/catalog"
	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/internal/view"
)

// ProfilePort supplies shipping defaults for logged-in customers.
type ProfilePort interface {
	ShippingDefaults(ctx context.Context, userID int64) (ShippingInfo, error)
}

// Handler manages checkout and order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	carts     *cart.Service
	profiles  ProfilePort
	templates *view.Engine
	csrf      *shared.CSRFManager
	storeName string
}

// NewHandler builds Handler instance.
func NewHandler(
	logger *slog.Logger,
	service *Service,
	carts *cart.Service,
	profiles ProfilePort,
	templates *view.Engine,
	csrf *shared.CSRFManager,
	storeName string,
) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		carts:     carts,
		profiles:  profiles,
		templates: templates,
		csrf:      csrf,
		storeName: storeName,
	}
}

// MountRoutes registers customer-facing checkout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/checkout", h.showCheckout)
	r.Post("/checkout", h.placeOrder)
	r.Get("/checkout/done", h.showOrderPlaced)
	r.Get("/orders", h.listMyOrders)
	r.Get("/orders/{id}", h.showMyOrder)
	r.Post("/orders/{id}/cancel", h.cancelMyOrder)
}

// MountAdminRoutes registers staff order management routes. The caller
// wraps them in the staff-only middleware.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.showAdminOrder)
	r.Post("/orders/{id}/status", h.updateOrderStatus)
	r.Post("/orders/{id}/paid", h.markOrderPaid)
}

func (h *Handler) showCheckout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	cartKey := sess.CartKey()

	if pruned, err := h.carts.Reconcile(r.Context(), cartKey); err != nil {
		h.logger.Error("cart reconcile failed", "error", err)
	} else if len(pruned) > 0 {
		sess.AddFlash("warning", "Some items are no longer available and were removed from your cart.")
	}

	rows, total, err := h.carts.View(r.Context(), cartKey)
	if err != nil {
		h.logger.Error("cart view failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		sess.AddFlash("warning", "Your cart is empty.")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	form := ShippingInfo{}
	if userID := sess.User(); userID != 0 {
		if defaults, err := h.profiles.ShippingDefaults(r.Context(), userID); err == nil {
			form = defaults
		}
	}

	h.render(w, r, "checkout.html", "Checkout", map[string]any{
		"Rows":   rows,
		"Total":  total,
		"Form":   form,
		"Errors": map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	cartKey := sess.CartKey()

	shipping := ShippingInfo{
		FullName:   r.PostFormValue("full_name"),
		Email:      r.PostFormValue("email"),
		Phone:      r.PostFormValue("phone"),
		Address1:   r.PostFormValue("address1"),
		Address2:   r.PostFormValue("address2"),
		City:       r.PostFormValue("city"),
		Province:   r.PostFormValue("province"),
		PostalCode: r.PostFormValue("postal_code"),
		Country:    r.PostFormValue("country"),
		Notes:      r.PostFormValue("notes"),
	}

	var userID *int64
	if id := sess.User(); id != 0 {
		userID = &id
		// Blank fields fall back to the account's stored defaults.
		if defaults, err := h.profiles.ShippingDefaults(r.Context(), id); err == nil {
			shipping = mergeShipping(shipping, defaults)
		}
	}

	order, warnings, err := h.service.Checkout(r.Context(), cartKey, userID, shipping)
	if err != nil {
		h.handleCheckoutError(w, r, cartKey, shipping, err)
		return
	}
	for _, warning := range warnings {
		sess.AddFlash("warning", warning)
	}

	// The confirmation page works for anonymous customers too, so the
	// order reference travels in the session rather than the URL.
	sess.Set(lastOrderKey, strconv.FormatInt(order.ID, 10))
	http.Redirect(w, r, "/checkout/done", http.StatusSeeOther)
}

const lastOrderKey = "last_order_id"

func mergeShipping(submitted, defaults ShippingInfo) ShippingInfo {
	fill := func(field *string, fallback string) {
		if *field == "" {
			*field = fallback
		}
	}
	fill(&submitted.FullName, defaults.FullName)
	fill(&submitted.Email, defaults.Email)
	fill(&submitted.Phone, defaults.Phone)
	fill(&submitted.Address1, defaults.Address1)
	fill(&submitted.City, defaults.City)
	fill(&submitted.Province, defaults.Province)
	fill(&submitted.PostalCode, defaults.PostalCode)
	fill(&submitted.Country, defaults.Country)
	return submitted
}

func (h *Handler) showOrderPlaced(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	id, err := strconv.ParseInt(sess.Get(lastOrderKey), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id, nil, true)
	if err != nil {
		h.renderOrderError(w, err)
		return
	}

	h.render(w, r, "order_success.html", "Order placed", map[string]any{
		"Order": order,
	}, http.StatusOK)
}

func (h *Handler) handleCheckoutError(w http.ResponseWriter, r *http.Request, cartKey string, shipping ShippingInfo, err error) {
	sess := shared.SessionFromContext(r.Context())

	switch {
	case errors.Is(err, ErrEmptyCart):
		sess.AddFlash("warning", "Your cart is empty.")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	case errors.Is(err, catalog.ErrInsufficientStock):
		sess.AddFlash("error", "Not enough stock for one of your items. Please adjust your cart.")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	formErrs := map[string]string{}
	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		for _, fe := range valErrs {
			formErrs[fe.Field()] = "Please provide a valid " + fe.Field() + "."
		}
	} else {
		h.logger.Error("checkout failed", "error", err)
		formErrs["general"] = shared.UserSafeMessage(err)
	}

	rows, total, viewErr := h.carts.View(r.Context(), cartKey)
	if viewErr != nil {
		h.logger.Error("cart view failed", "error", viewErr)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "checkout.html", "Checkout", map[string]any{
		"Rows":   rows,
		"Total":  total,
		"Form":   shipping,
		"Errors": formErrs,
	}, http.StatusBadRequest)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	userID := sess.User()
	if userID == 0 {
		http.Redirect(w, r, "/login?next=/orders", http.StatusSeeOther)
		return
	}

	orders, _, err := h.service.ListOrders(r.Context(), OrderFilter{UserID: &userID, Limit: 100})
	if err != nil {
		h.logger.Error("list orders failed", "error", err, "user_id", userID)
		http.Error(w, "Failed to load orders", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "orders_list.html", "My orders", map[string]any{
		"Orders": orders,
	}, http.StatusOK)
}

func (h *Handler) showMyOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	userID := sess.User()
	if userID == 0 {
		http.Redirect(w, r, "/login?next="+r.URL.Path, http.StatusSeeOther)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id, &userID, false)
	if err != nil {
		h.renderOrderError(w, err)
		return
	}

	h.render(w, r, "order_detail.html", "Order", map[string]any{
		"Order":     order,
		"CanCancel": order.Status == StatusPending,
	}, http.StatusOK)
}

func (h *Handler) cancelMyOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	userID := sess.User()
	if userID == 0 {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if _, err := h.service.CancelOrder(r.Context(), id, &userID, false); err != nil {
		h.logger.Error("cancel order failed", "error", err, "order_id", id)
		sess.AddFlash("error", shared.UserSafeMessage(err))
		http.Redirect(w, r, "/orders/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
		return
	}

	sess.AddFlash("success", "Your order was cancelled and stock was released.")
	http.Redirect(w, r, "/orders/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (h *Handler) showAdminOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id, nil, true)
	if err != nil {
		h.renderOrderError(w, err)
		return
	}

	h.render(w, r, "admin_order_detail.html", "Order", map[string]any{
		"Order":       order,
		"Transitions": TransitionsFrom(order.Status),
	}, http.StatusOK)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	next := OrderStatus(r.PostFormValue("status"))

	if _, err := h.service.UpdateStatus(r.Context(), id, next); err != nil {
		h.logger.Error("update order status failed", "error", err, "order_id", id, "status", next)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Order status updated.")
	}
	http.Redirect(w, r, "/admin/orders/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (h *Handler) markOrderPaid(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	method := r.PostFormValue("payment_method")

	if _, err := h.service.MarkPaid(r.Context(), id, method); err != nil {
		h.logger.Error("mark order paid failed", "error", err, "order_id", id)
		sess.AddFlash("error", shared.UserSafeMessage(err))
	} else {
		sess.AddFlash("success", "Payment recorded.")
	}
	http.Redirect(w, r, "/admin/orders/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (h *Handler) renderOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Order not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		h.logger.Error("load order failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
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

	w.WriteHeader(status)
	if err := h.templates.Render(w, tmpl, viewData); err != nil {
		h.logger.Error("template render failed", "error", err, "template", tmpl)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
