package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shelfmark/shelfmark/internal/observability"
	"github.com/shelfmark/shelfmark/internal/shared"
	"github.com/shelfmark/shelfmark/internal/view"
)

// Generic sign-in failure message. Unknown email and wrong password must be
// byte-identical so the form cannot be used to enumerate accounts.
const msgInvalidCredentials = "Invalid email or password"

// Handler wires HTTP endpoints for sign-up, sign-in and logout.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	metrics     *observability.Metrics
	secure      bool
}

// NewHandler constructs a Handler instance. secure toggles the Secure cookie
// attribute for TLS deployments.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, metrics *observability.Metrics, secure bool) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		metrics:     metrics,
		secure:      secure,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type signupForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Confirm  string `validate:"required,eqfield=Password"`
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type formPageData struct {
	Form   any
	Errors map[string]string
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "pages/signup.html", "Sign up", signupForm{}, nil)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := signupForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm"),
	}
	formErrors := h.validateForm(form)

	if len(formErrors) == 0 {
		_, token, err := h.service.SignUp(r.Context(), form.Email, form.Password)
		switch {
		case err == nil:
			http.SetCookie(w, shared.SessionCookie(token, h.service.SessionTTL(), h.secure))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrEmailTaken):
			formErrors["Email"] = "account already exists"
		default:
			h.logger.Error("sign up", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	form.Password = ""
	form.Confirm = ""
	h.renderForm(w, r, http.StatusBadRequest, "pages/signup.html", "Sign up", form, formErrors)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "pages/login.html", "Sign in", loginForm{}, nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	formErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		// Field-level detail would leak which part of the credential pair was
		// malformed, so collapse everything into the generic message.
		formErrors["general"] = msgInvalidCredentials
	}

	if len(formErrors) == 0 {
		_, token, err := h.service.SignIn(r.Context(), form.Email, form.Password)
		switch {
		case err == nil:
			h.metrics.RecordSignIn("ok")
			http.SetCookie(w, shared.SessionCookie(token, h.service.SessionTTL(), h.secure))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrInvalidCredentials):
			h.metrics.RecordSignIn("rejected")
			formErrors["general"] = msgInvalidCredentials
		default:
			h.logger.Error("sign in", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	form.Password = ""
	h.renderForm(w, r, http.StatusBadRequest, "pages/login.html", "Sign in", form, formErrors)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := shared.SessionTokenFromRequest(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Warn("revoke session", slog.Any("error", err))
		}
	}
	http.SetCookie(w, shared.ClearSessionCookie(h.secure))
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) validateForm(form signupForm) map[string]string {
	formErrors := make(map[string]string)
	err := h.validator.Struct(form)
	if err == nil {
		return formErrors
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		formErrors["general"] = "invalid input"
		return formErrors
	}
	for _, fieldErr := range fieldErrors {
		switch {
		case fieldErr.Field() == "Email":
			formErrors["Email"] = "a valid email address is required"
		case fieldErr.Field() == "Password" && fieldErr.Tag() == "min":
			formErrors["Password"] = "password must be at least 8 characters"
		case fieldErr.Field() == "Password":
			formErrors["Password"] = "password is required"
		case fieldErr.Field() == "Confirm":
			formErrors["Confirm"] = "passwords do not match"
		}
	}
	return formErrors
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, page, title string, form any, formErrors map[string]string) {
	csrfToken := h.csrfManager.EnsureToken(w, r)
	data := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Identity:    shared.IdentityFromContext(r.Context()),
		CurrentPath: r.URL.Path,
		Data:        formPageData{Form: form, Errors: formErrors},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, data); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
	}
}
