package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/libman/internal/model"
)

// StatisticsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type StatisticsServiceInterface interface {
	Snapshot(ctx context.Context) (*model.Statistics, error)
}

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Deactivate(ctx context.Context, actor model.Principal, id int64) (*model.User, error)
	Activate(ctx context.Context, actor model.Principal, id int64) (*model.User, error)
}

// AdminHandler は管理者向けの集計・ユーザー管理のHTTPハンドラー。
type AdminHandler struct {
	statistics StatisticsServiceInterface
	users      UserServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(statistics StatisticsServiceInterface, users UserServiceInterface) *AdminHandler {
	return &AdminHandler{statistics: statistics, users: users}
}

type categoryStatisticsResponse struct {
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	BookCount    int64  `json:"book_count"`
	BorrowCount  int64  `json:"borrow_count"`
}

type authorStatisticsResponse struct {
	AuthorID    int64  `json:"author_id"`
	AuthorName  string `json:"author_name"`
	BookCount   int64  `json:"book_count"`
	BorrowCount int64  `json:"borrow_count"`
}

type bookStatisticsResponse struct {
	BookID      int64  `json:"book_id"`
	BookTitle   string `json:"book_title"`
	AuthorName  string `json:"author_name"`
	BorrowCount int64  `json:"borrow_count"`
}

type statisticsResponse struct {
	TotalBooks          int64                        `json:"total_books"`
	TotalUsers          int64                        `json:"total_users"`
	TotalBorrowedBooks  int64                        `json:"total_borrowed_books"`
	TotalAvailableBooks int64                        `json:"total_available_books"`
	TotalBorrowRecords  int64                        `json:"total_borrow_records"`
	TotalActiveBorrows  int64                        `json:"total_active_borrows"`
	PopularCategories   []categoryStatisticsResponse `json:"popular_categories"`
	PopularAuthors      []authorStatisticsResponse   `json:"popular_authors"`
	MostBorrowedBooks   []bookStatisticsResponse     `json:"most_borrowed_books"`
}

// Statistics は集計スナップショットを返す。
// GET /api/admin/statistics
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.statistics.Snapshot(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatisticsResponse(st))
}

// ListUsers は全ユーザーを返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser はユーザーを取得する。
// GET /api/admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeactivateUser はユーザーを無効化する。
// PUT /api/admin/users/{id}/deactivate
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.changeUserState(w, r, h.users.Deactivate)
}

// ActivateUser はユーザーを有効化する。
// PUT /api/admin/users/{id}/activate
func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.changeUserState(w, r, h.users.Activate)
}

func (h *AdminHandler) changeUserState(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, actor model.Principal, id int64) (*model.User, error),
) {
	actor, err := principal(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	user, err := change(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func toStatisticsResponse(st *model.Statistics) statisticsResponse {
	resp := statisticsResponse{
		TotalBooks:          st.TotalBooks,
		TotalUsers:          st.TotalUsers,
		TotalBorrowedBooks:  st.TotalBorrowedBooks,
		TotalAvailableBooks: st.TotalAvailableBooks,
		TotalBorrowRecords:  st.TotalBorrowRecords,
		TotalActiveBorrows:  st.TotalActiveBorrows,
		PopularCategories:   make([]categoryStatisticsResponse, 0, len(st.PopularCategories)),
		PopularAuthors:      make([]authorStatisticsResponse, 0, len(st.PopularAuthors)),
		MostBorrowedBooks:   make([]bookStatisticsResponse, 0, len(st.MostBorrowedBooks)),
	}
	for _, c := range st.PopularCategories {
		resp.PopularCategories = append(resp.PopularCategories, categoryStatisticsResponse(c))
	}
	for _, a := range st.PopularAuthors {
		resp.PopularAuthors = append(resp.PopularAuthors, authorStatisticsResponse(a))
	}
	for _, b := range st.MostBorrowedBooks {
		resp.MostBorrowedBooks = append(resp.MostBorrowedBooks, bookStatisticsResponse(b))
	}
	return resp
}
