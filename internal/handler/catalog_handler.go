package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/libman/internal/model"
)

// CatalogServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	CreateAuthor(ctx context.Context, name string) (*model.Author, error)
	GetAuthor(ctx context.Context, id int64) (*model.Author, error)
	ListAuthors(ctx context.Context) ([]*model.Author, error)

	CreateCategory(ctx context.Context, name string) (*model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]*model.Category, error)

	CreateBook(ctx context.Context, in model.BookInput) (*model.Book, error)
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	GetBookByTitle(ctx context.Context, title string) (*model.Book, error)
	ListBooks(ctx context.Context) ([]*model.Book, error)
	ListBooksByAuthor(ctx context.Context, authorID int64) ([]*model.Book, error)
	ListBooksByCategory(ctx context.Context, categoryID int64) ([]*model.Book, error)
	ListBooksByReleaseYear(ctx context.Context, year int) ([]*model.Book, error)
	SearchBooks(ctx context.Context, criteria model.BookSearchCriteria) ([]*model.Book, error)
	ListBorrowedBooks(ctx context.Context) ([]*model.Book, error)
	ListAvailableBooks(ctx context.Context) ([]*model.Book, error)
	UpdateBook(ctx context.Context, id int64, in model.BookInput) (*model.Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// CatalogHandler は著者・カテゴリ・蔵書のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

type nameRequest struct {
	Name string `json:"name"`
}

type bookRequest struct {
	Title       string `json:"title"`
	AuthorID    int64  `json:"author_id"`
	CategoryID  int64  `json:"category_id"`
	ReleaseYear *int   `json:"release_year"`
}

type authorResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type bookResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	AuthorID     int64     `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name"`
	ReleaseYear  int       `json:"release_year"`
	Borrowed     bool      `json:"borrowed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// --- 著者 ---

// CreateAuthor は著者を作成する。
// POST /api/authors
func (h *CatalogHandler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	author, err := h.service.CreateAuthor(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authorResponse{ID: author.ID, Name: author.Name})
}

// GetAuthor は著者を取得する。
// GET /api/authors/{id}
func (h *CatalogHandler) GetAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	author, err := h.service.GetAuthor(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authorResponse{ID: author.ID, Name: author.Name})
}

// ListAuthors は著者一覧を返す。
// GET /api/authors
func (h *CatalogHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.service.ListAuthors(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]authorResponse, 0, len(authors))
	for _, a := range authors {
		resp = append(resp, authorResponse{ID: a.ID, Name: a.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- カテゴリ ---

// CreateCategory はカテゴリを作成する。
// POST /api/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	category, err := h.service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{ID: category.ID, Name: category.Name})
}

// GetCategory はカテゴリを取得する。
// GET /api/categories/{id}
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse{ID: category.ID, Name: category.Name})
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- 蔵書 ---

// CreateBook は蔵書を登録する。
// POST /api/books
func (h *CatalogHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBookRequest(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	book, err := h.service.CreateBook(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookResponse(book))
}

// GetBook は蔵書を取得する。
// GET /api/books/{id}
func (h *CatalogHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(book))
}

// GetBookByTitle はタイトル完全一致で蔵書を取得する。
// GET /api/books/title/{title}
func (h *CatalogHandler) GetBookByTitle(w http.ResponseWriter, r *http.Request) {
	title, err := url.PathUnescape(chi.URLParam(r, "title"))
	if err != nil {
		handleServiceError(w, model.NewValidationError("タイトルの形式が不正です"))
		return
	}
	book, err := h.service.GetBookByTitle(r.Context(), title)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(book))
}

// ListBooks は全蔵書を返す。
// GET /api/books
func (h *CatalogHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	h.writeBooks(w, r, h.service.ListBooks)
}

// ListBooksByAuthor は著者の蔵書を返す。
// GET /api/books/author/{authorId}
func (h *CatalogHandler) ListBooksByAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "authorId")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeBooks(w, r, func(ctx context.Context) ([]*model.Book, error) {
		return h.service.ListBooksByAuthor(ctx, id)
	})
}

// ListBooksByCategory はカテゴリの蔵書を返す。
// GET /api/books/category/{categoryId}
func (h *CatalogHandler) ListBooksByCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryId")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeBooks(w, r, func(ctx context.Context) ([]*model.Book, error) {
		return h.service.ListBooksByCategory(ctx, id)
	})
}

// ListBooksByReleaseYear は発行年の蔵書を返す。
// GET /api/books/release-year/{year}
func (h *CatalogHandler) ListBooksByReleaseYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		handleServiceError(w, model.NewValidationError("発行年は整数で指定してください"))
		return
	}
	h.writeBooks(w, r, func(ctx context.Context) ([]*model.Book, error) {
		return h.service.ListBooksByReleaseYear(ctx, year)
	})
}

// SearchBooks はタイトル・著者名・カテゴリ名の部分一致と発行年で蔵書を検索する。
// GET /api/books/search?title=&author=&category=&year=
func (h *CatalogHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := model.BookSearchCriteria{
		Title:        strings.TrimSpace(q.Get("title")),
		AuthorName:   strings.TrimSpace(q.Get("author")),
		CategoryName: strings.TrimSpace(q.Get("category")),
	}
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			handleServiceError(w, model.NewValidationError("yearは整数で指定してください"))
			return
		}
		criteria.ReleaseYear = &year
	}

	h.writeBooks(w, r, func(ctx context.Context) ([]*model.Book, error) {
		return h.service.SearchBooks(ctx, criteria)
	})
}

// ListBorrowedBooks は貸出中の蔵書を返す。
// GET /api/books/borrowed
func (h *CatalogHandler) ListBorrowedBooks(w http.ResponseWriter, r *http.Request) {
	h.writeBooks(w, r, h.service.ListBorrowedBooks)
}

// ListAvailableBooks は貸出可能な蔵書を返す。
// GET /api/books/available
func (h *CatalogHandler) ListAvailableBooks(w http.ResponseWriter, r *http.Request) {
	h.writeBooks(w, r, h.service.ListAvailableBooks)
}

// UpdateBook は蔵書情報を更新する。貸出状態は変更できない。
// PUT /api/books/{id}
func (h *CatalogHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	in, err := decodeBookRequest(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	book, err := h.service.UpdateBook(r.Context(), id, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(book))
}

// DeleteBook は蔵書を削除する。
// DELETE /api/books/{id}
func (h *CatalogHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) writeBooks(w http.ResponseWriter, r *http.Request, list func(ctx context.Context) ([]*model.Book, error)) {
	books, err := list(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]bookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, toBookResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeBookRequest は蔵書リクエストを読み取り、必須項目の有無を検証する。
func decodeBookRequest(w http.ResponseWriter, r *http.Request) (model.BookInput, error) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return model.BookInput{}, err
	}
	if req.AuthorID <= 0 {
		return model.BookInput{}, model.NewValidationError("author_idは必須です")
	}
	if req.CategoryID <= 0 {
		return model.BookInput{}, model.NewValidationError("category_idは必須です")
	}
	if req.ReleaseYear == nil {
		return model.BookInput{}, model.NewValidationError("release_yearは必須です")
	}
	return model.BookInput{
		Title:       req.Title,
		AuthorID:    req.AuthorID,
		CategoryID:  req.CategoryID,
		ReleaseYear: *req.ReleaseYear,
	}, nil
}

func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:           b.ID,
		Title:        b.Title,
		AuthorID:     b.AuthorID,
		AuthorName:   b.AuthorName,
		CategoryID:   b.CategoryID,
		CategoryName: b.CategoryName,
		ReleaseYear:  b.ReleaseYear,
		Borrowed:     b.Borrowed,
		CreatedAt:    b.CreatedAt.UTC(),
		UpdatedAt:    b.UpdatedAt.UTC(),
	}
}
