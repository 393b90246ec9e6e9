package pages

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/internal/view"
)

// Handler serves the contact page and the staff message inbox.
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

// MountRoutes registers the public contact routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/contact", h.showForm)
	r.Post("/contact", h.submit)
}

// MountAdminRoutes registers the staff inbox. The caller wraps it in
// the staff-only middleware.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/messages", h.listMessages)
}

const messagesPerPage = 20

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, Message{}, map[string]string{}, http.StatusOK)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	message := Message{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Phone:   r.PostFormValue("phone"),
		Subject: r.PostFormValue("subject"),
		Body:    r.PostFormValue("body"),
	}

	saved, warnings, err := h.service.Submit(r.Context(), message)
	if err != nil {
		formErrs := map[string]string{}
		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) {
			for _, fe := range valErrs {
				formErrs[fe.Field()] = "Please provide a valid " + fe.Field() + "."
			}
		} else {
			h.logger.Error("contact submit failed", "error", err)
			formErrs["general"] = shared.UserSafeMessage(err)
		}
		h.renderForm(w, r, message, formErrs, http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if len(warnings) > 0 {
		for _, warning := range warnings {
			sess.AddFlash("error", warning)
		}
	} else {
		sess.AddFlash("success", "Thanks for reaching out. We will get back to you soon.")
	}
	h.logger.Info("contact message received", "message_id", saved.ID)
	http.Redirect(w, r, "/contact", http.StatusSeeOther)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	messages, total, err := h.service.ListMessages(r.Context(), messagesPerPage, (page-1)*messagesPerPage)
	if err != nil {
		h.logger.Error("list contact messages failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "admin_messages.html", "Messages", map[string]any{
		"Messages":   messages,
		"Pagination": shared.NewPagination(page, messagesPerPage, total),
	}, http.StatusOK)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, message Message, formErrs map[string]string, status int) {
	h.render(w, r, "contact.html", "Contact", map[string]any{
		"Message": message,
		"Errors":  formErrs,
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
