package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/libman/internal/model"
)

func TestAdminHandler_Statistics_Success(t *testing.T) {
	stats := &mockStatisticsService{
		snapshotFn: func(ctx context.Context) (*model.Statistics, error) {
			return &model.Statistics{
				TotalBooks:          2,
				TotalUsers:          3,
				TotalBorrowedBooks:  1,
				TotalAvailableBooks: 1,
				TotalBorrowRecords:  4,
				TotalActiveBorrows:  1,
				PopularCategories: []model.CategoryStatistics{
					{CategoryID: 1, CategoryName: "SF", BookCount: 2, BorrowCount: 4},
				},
				PopularAuthors: []model.AuthorStatistics{
					{AuthorID: 1, AuthorName: "Frank Herbert", BookCount: 1, BorrowCount: 3},
				},
				MostBorrowedBooks: []model.BookStatistics{
					{BookID: 10, BookTitle: "Dune", AuthorName: "Frank Herbert", BorrowCount: 3},
				},
			}, nil
		},
	}
	h := NewAdminHandler(stats, &mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/statistics", nil)
	w := httptest.NewRecorder()

	h.Statistics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp statisticsResponse
	decodeBody(t, w, &resp)
	if resp.TotalBooks != 2 || resp.TotalBorrowRecords != 4 || resp.TotalActiveBorrows != 1 {
		t.Errorf("totals = %+v", resp)
	}
	if len(resp.MostBorrowedBooks) != 1 || resp.MostBorrowedBooks[0].BookTitle != "Dune" {
		t.Errorf("most_borrowed_books = %+v", resp.MostBorrowedBooks)
	}
	if len(resp.PopularCategories) != 1 || resp.PopularCategories[0].BorrowCount != 4 {
		t.Errorf("popular_categories = %+v", resp.PopularCategories)
	}
}

func TestAdminHandler_Statistics_EmptyRankingsAreArrays(t *testing.T) {
	h := NewAdminHandler(&mockStatisticsService{}, &mockUserService{})

	w := httptest.NewRecorder()
	h.Statistics(w, httptest.NewRequest(http.MethodGet, "/api/admin/statistics", nil))

	body := w.Body.String()
	for _, field := range []string{`"popular_categories":[]`, `"popular_authors":[]`, `"most_borrowed_books":[]`} {
		if !strings.Contains(body, field) {
			t.Errorf("body should contain %s: %s", field, body)
		}
	}
}

func TestAdminHandler_Statistics_Error(t *testing.T) {
	stats := &mockStatisticsService{
		snapshotFn: func(ctx context.Context) (*model.Statistics, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewAdminHandler(stats, &mockUserService{})

	w := httptest.NewRecorder()
	h.Statistics(w, httptest.NewRequest(http.MethodGet, "/api/admin/statistics", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestAdminHandler_ListUsers_OmitsPasswordHash(t *testing.T) {
	users := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{
				{ID: 1, Name: "Admin", Email: "admin@example.com", PasswordHash: "$2a$10$hash", Role: model.RoleAdmin, Active: true},
				{ID: 2, Name: "Alice", Email: "alice@example.com", PasswordHash: "$2a$10$hash", Role: model.RoleUser, Active: false},
			}, nil
		},
	}
	h := NewAdminHandler(&mockStatisticsService{}, users)

	w := httptest.NewRecorder()
	h.ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.Contains(w.Body.String(), "$2a$") {
		t.Errorf("password hash leaked: %s", w.Body.String())
	}
	var resp []userResponse
	decodeBody(t, w, &resp)
	if len(resp) != 2 || resp[1].Active {
		t.Errorf("response = %+v", resp)
	}
}

func TestAdminHandler_GetUser_NotFound(t *testing.T) {
	users := &mockUserService{
		getFn: func(ctx context.Context, id int64) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewAdminHandler(&mockStatisticsService{}, users)

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/admin/users/9", nil), "id", "9")
	w := httptest.NewRecorder()

	h.GetUser(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAdminHandler_DeactivateUser_PassesActor(t *testing.T) {
	users := &mockUserService{
		deactivateFn: func(ctx context.Context, actor model.Principal, id int64) (*model.User, error) {
			if actor.UserID != 1 || actor.Role != model.RoleAdmin {
				t.Errorf("actor = %+v", actor)
			}
			if id != 2 {
				t.Errorf("id = %d, want 2", id)
			}
			return &model.User{ID: id, Role: model.RoleUser, Active: false}, nil
		},
	}
	h := NewAdminHandler(&mockStatisticsService{}, users)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/2/deactivate", nil)
	req = withPrincipal(withChiURLParam(req, "id", "2"), 1, model.RoleAdmin)
	w := httptest.NewRecorder()

	h.DeactivateUser(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp userResponse
	decodeBody(t, w, &resp)
	if resp.Active {
		t.Error("user should be inactive")
	}
}

func TestAdminHandler_DeactivateUser_Self(t *testing.T) {
	users := &mockUserService{
		deactivateFn: func(ctx context.Context, actor model.Principal, id int64) (*model.User, error) {
			return nil, model.NewValidationError("自分自身は無効化できません")
		},
	}
	h := NewAdminHandler(&mockStatisticsService{}, users)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/1/deactivate", nil)
	req = withPrincipal(withChiURLParam(req, "id", "1"), 1, model.RoleAdmin)
	w := httptest.NewRecorder()

	h.DeactivateUser(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAdminHandler_ActivateUser(t *testing.T) {
	h := NewAdminHandler(&mockStatisticsService{}, &mockUserService{})

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/2/activate", nil)
	req = withPrincipal(withChiURLParam(req, "id", "2"), 1, model.RoleAdmin)
	w := httptest.NewRecorder()

	h.ActivateUser(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp userResponse
	decodeBody(t, w, &resp)
	if !resp.Active {
		t.Error("user should be active")
	}
}
