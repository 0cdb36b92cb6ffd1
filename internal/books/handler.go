package books

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shelfmark/shelfmark/internal/isbn"
	"github.com/shelfmark/shelfmark/internal/platform/httpx"
	"github.com/shelfmark/shelfmark/internal/shared"
	"github.com/shelfmark/shelfmark/internal/view"
)

const listPerPage = 20

// Handler wires HTTP endpoints for the book shelf. Every route assumes the
// auth middleware already attached an identity; ownership scoping happens in
// the repository queries.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	lookup      *isbn.Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, lookup *isbn.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		lookup:      lookup,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers book routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showList)
	r.Post("/", h.handleCreate)
	r.Get("/new", h.showNew)
	r.Get("/lookup", h.handleLookup)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}", h.handleUpdate)
	r.Post("/{id}/delete", h.handleDelete)
}

type bookForm struct {
	Title  string `validate:"required,max=300"`
	Author string `validate:"max=200"`
	ISBN   string `validate:"omitempty,min=10,max=17"`
	Notes  string
	Rating int `validate:"gte=0,lte=5"`
}

type listPageData struct {
	Books      []Book
	Query      string
	Sort       string
	Pagination shared.Pagination
}

type formPageData struct {
	Book    Book
	Errors  map[string]string
	Action  string
	Ratings []int
}

func (h *Handler) showList(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	sort := r.URL.Query().Get("sort")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	pagination := shared.NewPagination(page, listPerPage, 0)
	list, total, err := h.service.List(r.Context(), ListQuery{
		AccountID: identity.AccountID,
		Search:    search,
		Sort:      sort,
		Limit:     pagination.PerPage,
		Offset:    pagination.Offset(),
	})
	if err != nil {
		h.logger.Error("list books", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pagination = shared.NewPagination(page, listPerPage, total)

	h.render(w, r, http.StatusOK, "pages/books.html", "My books", listPageData{
		Books:      list,
		Query:      search,
		Sort:       sort,
		Pagination: pagination,
	})
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/book_form.html", "Add a book", formPageData{
		Action:  "/books",
		Ratings: ratingScale(),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	form, formErrors := h.parseForm(r)
	if len(formErrors) > 0 {
		h.render(w, r, http.StatusBadRequest, "pages/book_form.html", "Add a book", formPageData{
			Book:    bookFromForm(form, identity.AccountID),
			Errors:  formErrors,
			Action:  "/books",
			Ratings: ratingScale(),
		})
		return
	}

	book := bookFromForm(form, identity.AccountID)
	if err := h.service.Create(r.Context(), &book); err != nil {
		h.logger.Error("create book", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/books", http.StatusSeeOther)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	book, err := h.service.Get(r.Context(), identity.AccountID, id)
	if err != nil {
		h.respondLookupFailure(w, r, err, "get book")
		return
	}
	h.render(w, r, http.StatusOK, "pages/book_form.html", "Edit book", formPageData{
		Book:    *book,
		Action:  "/books/" + book.ID.String(),
		Ratings: ratingScale(),
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	form, formErrors := h.parseForm(r)
	if len(formErrors) > 0 {
		book := bookFromForm(form, identity.AccountID)
		book.ID = id
		h.render(w, r, http.StatusBadRequest, "pages/book_form.html", "Edit book", formPageData{
			Book:    book,
			Errors:  formErrors,
			Action:  "/books/" + id.String(),
			Ratings: ratingScale(),
		})
		return
	}

	book := bookFromForm(form, identity.AccountID)
	book.ID = id
	if err := h.service.Update(r.Context(), &book); err != nil {
		h.respondLookupFailure(w, r, err, "update book")
		return
	}
	http.Redirect(w, r, "/books", http.StatusSeeOther)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.service.Delete(r.Context(), identity.AccountID, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("delete book", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/books", http.StatusSeeOther)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("isbn"))
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "isbn query parameter is required")
		return
	}
	meta, err := h.lookup.Lookup(r.Context(), code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no metadata for this isbn")
			return
		}
		h.logger.Warn("isbn lookup", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Lookup Failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, meta)
}

func (h *Handler) parseForm(r *http.Request) (bookForm, map[string]string) {
	formErrors := make(map[string]string)
	if err := r.ParseForm(); err != nil {
		formErrors["general"] = "invalid form submission"
		return bookForm{}, formErrors
	}
	rating, err := strconv.Atoi(r.PostFormValue("rating"))
	if err != nil {
		rating = 0
	}
	form := bookForm{
		Title:  strings.TrimSpace(r.PostFormValue("title")),
		Author: strings.TrimSpace(r.PostFormValue("author")),
		ISBN:   strings.TrimSpace(r.PostFormValue("isbn")),
		Notes:  r.PostFormValue("notes"),
		Rating: rating,
	}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			for _, fieldErr := range fieldErrors {
				switch fieldErr.Field() {
				case "Title":
					formErrors["Title"] = "title is required"
				case "ISBN":
					formErrors["ISBN"] = "isbn looks malformed"
				case "Rating":
					formErrors["general"] = "rating must be between 0 and 5"
				default:
					formErrors["general"] = "invalid input"
				}
			}
		} else {
			formErrors["general"] = "invalid input"
		}
	}
	return form, formErrors
}

func (h *Handler) respondLookupFailure(w http.ResponseWriter, r *http.Request, err error, op string) {
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	csrfToken := h.csrfManager.EnsureToken(w, r)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Identity:    shared.IdentityFromContext(r.Context()),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
	}
}

func bookFromForm(form bookForm, accountID int64) Book {
	return Book{
		AccountID: accountID,
		Title:     form.Title,
		Author:    form.Author,
		ISBN:      form.ISBN,
		Notes:     form.Notes,
		Rating:    form.Rating,
	}
}

func ratingScale() []int {
	return []int{0, 1, 2, 3, 4, 5}
}
