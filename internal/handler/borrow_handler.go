package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/libman/internal/model"
)

// BorrowServiceInterface は貸出ハンドラーが必要とするサービスインターフェース。
type BorrowServiceInterface interface {
	Borrow(ctx context.Context, userID, bookID int64) (*model.BorrowView, error)
	Return(ctx context.Context, recordID, requesterID int64) (*model.BorrowView, error)
	Get(ctx context.Context, recordID int64) (*model.BorrowView, error)
	ListActiveForUser(ctx context.Context, userID int64) ([]*model.BorrowView, error)
	ListHistoryForUser(ctx context.Context, userID int64) ([]*model.BorrowView, error)
	ListAllActive(ctx context.Context) ([]*model.BorrowView, error)
	ListAllReturned(ctx context.Context) ([]*model.BorrowView, error)
	ListByBook(ctx context.Context, bookID int64) ([]*model.BorrowView, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.BorrowView, error)
}

// BorrowHandler は貸出・返却のHTTPハンドラー。
// 呼び出し元はコンテキストから取り出し、サービスへ明示的に渡す。
type BorrowHandler struct {
	service BorrowServiceInterface
}

// NewBorrowHandler はBorrowHandlerを生成する。
func NewBorrowHandler(service BorrowServiceInterface) *BorrowHandler {
	return &BorrowHandler{service: service}
}

type borrowRequest struct {
	BookID int64 `json:"book_id"`
}

// borrowResponse は貸出記録のAPIレスポンス。日付はYYYY-MM-DD形式。
type borrowResponse struct {
	ID         int64   `json:"id"`
	BookID     int64   `json:"book_id"`
	BookTitle  string  `json:"book_title"`
	UserID     int64   `json:"user_id"`
	UserName   string  `json:"user_name"`
	BorrowDate string  `json:"borrow_date"`
	ReturnDate *string `json:"return_date"`
	Returned   bool    `json:"returned"`
}

// Borrow は呼び出し元に蔵書を貸し出す。
// POST /api/borrows
func (h *BorrowHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req borrowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.BookID <= 0 {
		handleServiceError(w, model.NewValidationError("book_idは必須です"))
		return
	}

	view, err := h.service.Borrow(r.Context(), caller.UserID, req.BookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBorrowResponse(view))
}

// Return は呼び出し元が借りている本を返却する。
// PUT /api/borrows/{id}/return
func (h *BorrowHandler) Return(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	view, err := h.service.Return(r.Context(), id, caller.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowResponse(view))
}

// ListMyActive は呼び出し元の貸出中の記録を返す。
// GET /api/borrows/active
func (h *BorrowHandler) ListMyActive(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeViews(w, r, func(ctx context.Context) ([]*model.BorrowView, error) {
		return h.service.ListActiveForUser(ctx, caller.UserID)
	})
}

// ListMyHistory は呼び出し元の全貸出記録を返す。
// GET /api/borrows/history
func (h *BorrowHandler) ListMyHistory(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeViews(w, r, func(ctx context.Context) ([]*model.BorrowView, error) {
		return h.service.ListHistoryForUser(ctx, caller.UserID)
	})
}

// Get は貸出記録を取得する。
// GET /api/borrows/{id}
func (h *BorrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowResponse(view))
}

// ListAllActive は全利用者の貸出中の記録を返す。
// GET /api/borrows/all/active
func (h *BorrowHandler) ListAllActive(w http.ResponseWriter, r *http.Request) {
	h.writeViews(w, r, h.service.ListAllActive)
}

// ListAllReturned は全利用者の返却済みの記録を返す。
// GET /api/borrows/all/returned
func (h *BorrowHandler) ListAllReturned(w http.ResponseWriter, r *http.Request) {
	h.writeViews(w, r, h.service.ListAllReturned)
}

// ListByBook は蔵書の貸出履歴を返す。
// GET /api/borrows/book/{bookId}
func (h *BorrowHandler) ListByBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookId")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeViews(w, r, func(ctx context.Context) ([]*model.BorrowView, error) {
		return h.service.ListByBook(ctx, id)
	})
}

// ListByUser は利用者の貸出履歴を返す。
// GET /api/borrows/user/{userId}
func (h *BorrowHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeViews(w, r, func(ctx context.Context) ([]*model.BorrowView, error) {
		return h.service.ListByUser(ctx, id)
	})
}

func (h *BorrowHandler) writeViews(w http.ResponseWriter, r *http.Request, list func(ctx context.Context) ([]*model.BorrowView, error)) {
	views, err := list(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]borrowResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toBorrowResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toBorrowResponse(v *model.BorrowView) borrowResponse {
	resp := borrowResponse{
		ID:         v.ID,
		BookID:     v.BookID,
		BookTitle:  v.BookTitle,
		UserID:     v.UserID,
		UserName:   v.UserName,
		BorrowDate: formatDate(v.BorrowDate),
		Returned:   v.Returned,
	}
	if v.ReturnDate != nil {
		d := formatDate(*v.ReturnDate)
		resp.ReturnDate = &d
	}
	return resp
}
