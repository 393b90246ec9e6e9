package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/internal/view"
)

// CartMerger folds an anonymous cart into the user's cart at login.
type CartMerger interface {
	Merge(ctx context.Context, fromKey, toKey string) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	carts          CartMerger
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	storeName      string
}

// NewHandler constructs a Handler instance.
func NewHandler(
	logger *slog.Logger,
	service *Service,
	carts CartMerger,
	templates *view.Engine,
	sessions *shared.SessionManager,
	csrf *shared.CSRFManager,
	storeName string,
) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		carts:          carts,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		storeName:      storeName,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
	r.Get("/profile", h.showProfile)
	r.Post("/profile", h.handleProfile)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type registerForm struct {
	FullName string `validate:"required,max=120"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", "Log in", map[string]any{
		"Errors": map[string]string{},
		"Next":   sanitizeNext(r.URL.Query().Get("next")),
	}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	next := sanitizeNext(r.PostFormValue("next"))

	formErrs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		formErrs["general"] = "Please enter a valid email and password."
	}

	if len(formErrs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		if err != nil {
			formErrs["general"] = "Invalid email or password."
		} else {
			// The anonymous cart follows the customer into the account.
			anonKey := sess.CartKey()
			sess.SetUser(user.ID)
			if err := h.carts.Merge(r.Context(), anonKey, sess.CartKey()); err != nil {
				h.logger.Warn("cart merge on login failed", "error", err, "user_id", user.ID)
			}
			sess.AddFlash("success", "Welcome back, "+user.FullName+".")
			if next == "" {
				next = "/"
			}
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
	}

	h.render(w, r, "login.html", "Log in", map[string]any{
		"Errors": formErrs,
		"Email":  form.Email,
		"Next":   next,
	}, http.StatusBadRequest)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", "Create account", map[string]any{
		"Errors": map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := registerForm{
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	formErrs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			switch fieldErr.Field() {
			case "Password":
				formErrs["Password"] = "Password must be at least 8 characters."
			case "Email":
				formErrs["Email"] = "Please enter a valid email address."
			default:
				formErrs[fieldErr.Field()] = "This field is required."
			}
		}
	}

	if len(formErrs) == 0 {
		user, err := h.service.Register(r.Context(), form.Email, form.Password, form.FullName)
		switch {
		case errors.Is(err, shared.ErrDuplicate):
			formErrs["Email"] = "An account with this email already exists."
		case err != nil:
			h.logger.Error("register failed", "error", err)
			formErrs["general"] = "Could not create your account. Please try again."
		default:
			anonKey := sess.CartKey()
			sess.SetUser(user.ID)
			if err := h.carts.Merge(r.Context(), anonKey, sess.CartKey()); err != nil {
				h.logger.Warn("cart merge on register failed", "error", err, "user_id", user.ID)
			}
			sess.AddFlash("success", "Your account is ready.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	h.render(w, r, "register.html", "Create account", map[string]any{
		"Errors":   formErrs,
		"FullName": form.FullName,
		"Email":    form.Email,
	}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	userID := sess.User()
	if userID == 0 {
		http.Redirect(w, r, "/login?next=/profile", http.StatusSeeOther)
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("load profile failed", "error", err, "user_id", userID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "profile.html", "Profile", map[string]any{
		"User":   user,
		"Errors": map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	userID := sess.User()
	if userID == 0 {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID,
		strings.TrimSpace(r.PostFormValue("full_name")),
		strings.TrimSpace(r.PostFormValue("phone")),
		strings.TrimSpace(r.PostFormValue("address")),
		strings.TrimSpace(r.PostFormValue("city")))
	if err != nil {
		h.logger.Error("update profile failed", "error", err, "user_id", userID)
		h.render(w, r, "profile.html", "Profile", map[string]any{
			"User":   &User{FullName: r.PostFormValue("full_name"), Phone: r.PostFormValue("phone"), Address: r.PostFormValue("address"), City: r.PostFormValue("city")},
			"Errors": map[string]string{"general": shared.UserSafeMessage(err)},
		}, http.StatusBadRequest)
		return
	}

	sess.AddFlash("success", "Profile saved.")
	h.render(w, r, "profile.html", "Profile", map[string]any{
		"User":   user,
		"Errors": map[string]string{},
	}, http.StatusOK)
}

// sanitizeNext keeps redirects on-site.
func sanitizeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)

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
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
