package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/libman/internal/auth"
	"github.com/hitoshi/libman/internal/middleware"
	"github.com/hitoshi/libman/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.Result, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

// mockCatalogService はCatalogServiceInterfaceのモック実装。
type mockCatalogService struct {
	createAuthorFn           func(ctx context.Context, name string) (*model.Author, error)
	getAuthorFn              func(ctx context.Context, id int64) (*model.Author, error)
	listAuthorsFn            func(ctx context.Context) ([]*model.Author, error)
	createCategoryFn         func(ctx context.Context, name string) (*model.Category, error)
	getCategoryFn            func(ctx context.Context, id int64) (*model.Category, error)
	listCategoriesFn         func(ctx context.Context) ([]*model.Category, error)
	createBookFn             func(ctx context.Context, in model.BookInput) (*model.Book, error)
	getBookFn                func(ctx context.Context, id int64) (*model.Book, error)
	getBookByTitleFn         func(ctx context.Context, title string) (*model.Book, error)
	listBooksFn              func(ctx context.Context) ([]*model.Book, error)
	listBooksByAuthorFn      func(ctx context.Context, authorID int64) ([]*model.Book, error)
	listBooksByCategoryFn    func(ctx context.Context, categoryID int64) ([]*model.Book, error)
	listBooksByReleaseYearFn func(ctx context.Context, year int) ([]*model.Book, error)
	searchBooksFn            func(ctx context.Context, criteria model.BookSearchCriteria) ([]*model.Book, error)
	listBorrowedBooksFn      func(ctx context.Context) ([]*model.Book, error)
	listAvailableBooksFn     func(ctx context.Context) ([]*model.Book, error)
	updateBookFn             func(ctx context.Context, id int64, in model.BookInput) (*model.Book, error)
	deleteBookFn             func(ctx context.Context, id int64) error
}

func (m *mockCatalogService) CreateAuthor(ctx context.Context, name string) (*model.Author, error) {
	if m.createAuthorFn != nil {
		return m.createAuthorFn(ctx, name)
	}
	return &model.Author{ID: 1, Name: name}, nil
}

func (m *mockCatalogService) GetAuthor(ctx context.Context, id int64) (*model.Author, error) {
	if m.getAuthorFn != nil {
		return m.getAuthorFn(ctx, id)
	}
	return &model.Author{ID: id}, nil
}

func (m *mockCatalogService) ListAuthors(ctx context.Context) ([]*model.Author, error) {
	if m.listAuthorsFn != nil {
		return m.listAuthorsFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ctx, name)
	}
	return &model.Category{ID: 1, Name: name}, nil
}

func (m *mockCatalogService) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	if m.getCategoryFn != nil {
		return m.getCategoryFn(ctx, id)
	}
	return &model.Category{ID: id}, nil
}

func (m *mockCatalogService) ListCategories(ctx context.Context) ([]*model.Category, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) CreateBook(ctx context.Context, in model.BookInput) (*model.Book, error) {
	if m.createBookFn != nil {
		return m.createBookFn(ctx, in)
	}
	return &model.Book{ID: 1, Title: in.Title}, nil
}

func (m *mockCatalogService) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	if m.getBookFn != nil {
		return m.getBookFn(ctx, id)
	}
	return &model.Book{ID: id}, nil
}

func (m *mockCatalogService) GetBookByTitle(ctx context.Context, title string) (*model.Book, error) {
	if m.getBookByTitleFn != nil {
		return m.getBookByTitleFn(ctx, title)
	}
	return &model.Book{ID: 1, Title: title}, nil
}

func (m *mockCatalogService) ListBooks(ctx context.Context) ([]*model.Book, error) {
	if m.listBooksFn != nil {
		return m.listBooksFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) ListBooksByAuthor(ctx context.Context, authorID int64) ([]*model.Book, error) {
	if m.listBooksByAuthorFn != nil {
		return m.listBooksByAuthorFn(ctx, authorID)
	}
	return nil, nil
}

func (m *mockCatalogService) ListBooksByCategory(ctx context.Context, categoryID int64) ([]*model.Book, error) {
	if m.listBooksByCategoryFn != nil {
		return m.listBooksByCategoryFn(ctx, categoryID)
	}
	return nil, nil
}

func (m *mockCatalogService) ListBooksByReleaseYear(ctx context.Context, year int) ([]*model.Book, error) {
	if m.listBooksByReleaseYearFn != nil {
		return m.listBooksByReleaseYearFn(ctx, year)
	}
	return nil, nil
}

func (m *mockCatalogService) SearchBooks(ctx context.Context, criteria model.BookSearchCriteria) ([]*model.Book, error) {
	if m.searchBooksFn != nil {
		return m.searchBooksFn(ctx, criteria)
	}
	return nil, nil
}

func (m *mockCatalogService) ListBorrowedBooks(ctx context.Context) ([]*model.Book, error) {
	if m.listBorrowedBooksFn != nil {
		return m.listBorrowedBooksFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) ListAvailableBooks(ctx context.Context) ([]*model.Book, error) {
	if m.listAvailableBooksFn != nil {
		return m.listAvailableBooksFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) UpdateBook(ctx context.Context, id int64, in model.BookInput) (*model.Book, error) {
	if m.updateBookFn != nil {
		return m.updateBookFn(ctx, id, in)
	}
	return &model.Book{ID: id, Title: in.Title}, nil
}

func (m *mockCatalogService) DeleteBook(ctx context.Context, id int64) error {
	if m.deleteBookFn != nil {
		return m.deleteBookFn(ctx, id)
	}
	return nil
}

// mockBorrowService はBorrowServiceInterfaceのモック実装。
type mockBorrowService struct {
	borrowFn             func(ctx context.Context, userID, bookID int64) (*model.BorrowView, error)
	returnFn             func(ctx context.Context, recordID, requesterID int64) (*model.BorrowView, error)
	getFn                func(ctx context.Context, recordID int64) (*model.BorrowView, error)
	listActiveForUserFn  func(ctx context.Context, userID int64) ([]*model.BorrowView, error)
	listHistoryForUserFn func(ctx context.Context, userID int64) ([]*model.BorrowView, error)
	listAllActiveFn      func(ctx context.Context) ([]*model.BorrowView, error)
	listAllReturnedFn    func(ctx context.Context) ([]*model.BorrowView, error)
	listByBookFn         func(ctx context.Context, bookID int64) ([]*model.BorrowView, error)
	listByUserFn         func(ctx context.Context, userID int64) ([]*model.BorrowView, error)
}

func (m *mockBorrowService) Borrow(ctx context.Context, userID, bookID int64) (*model.BorrowView, error) {
	if m.borrowFn != nil {
		return m.borrowFn(ctx, userID, bookID)
	}
	return nil, nil
}

func (m *mockBorrowService) Return(ctx context.Context, recordID, requesterID int64) (*model.BorrowView, error) {
	if m.returnFn != nil {
		return m.returnFn(ctx, recordID, requesterID)
	}
	return nil, nil
}

func (m *mockBorrowService) Get(ctx context.Context, recordID int64) (*model.BorrowView, error) {
	if m.getFn != nil {
		return m.getFn(ctx, recordID)
	}
	return nil, nil
}

func (m *mockBorrowService) ListActiveForUser(ctx context.Context, userID int64) ([]*model.BorrowView, error) {
	if m.listActiveForUserFn != nil {
		return m.listActiveForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockBorrowService) ListHistoryForUser(ctx context.Context, userID int64) ([]*model.BorrowView, error) {
	if m.listHistoryForUserFn != nil {
		return m.listHistoryForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockBorrowService) ListAllActive(ctx context.Context) ([]*model.BorrowView, error) {
	if m.listAllActiveFn != nil {
		return m.listAllActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockBorrowService) ListAllReturned(ctx context.Context) ([]*model.BorrowView, error) {
	if m.listAllReturnedFn != nil {
		return m.listAllReturnedFn(ctx)
	}
	return nil, nil
}

func (m *mockBorrowService) ListByBook(ctx context.Context, bookID int64) ([]*model.BorrowView, error) {
	if m.listByBookFn != nil {
		return m.listByBookFn(ctx, bookID)
	}
	return nil, nil
}

func (m *mockBorrowService) ListByUser(ctx context.Context, userID int64) ([]*model.BorrowView, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

// mockStatisticsService はStatisticsServiceInterfaceのモック実装。
type mockStatisticsService struct {
	snapshotFn func(ctx context.Context) (*model.Statistics, error)
}

func (m *mockStatisticsService) Snapshot(ctx context.Context) (*model.Statistics, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx)
	}
	return &model.Statistics{}, nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	listFn       func(ctx context.Context) ([]*model.User, error)
	getFn        func(ctx context.Context, id int64) (*model.User, error)
	deactivateFn func(ctx context.Context, actor model.Principal, id int64) (*model.User, error)
	activateFn   func(ctx context.Context, actor model.Principal, id int64) (*model.User, error)
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.User{ID: id, Role: model.RoleUser, Active: true}, nil
}

func (m *mockUserService) Deactivate(ctx context.Context, actor model.Principal, id int64) (*model.User, error) {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, actor, id)
	}
	return &model.User{ID: id, Role: model.RoleUser}, nil
}

func (m *mockUserService) Activate(ctx context.Context, actor model.Principal, id int64) (*model.User, error) {
	if m.activateFn != nil {
		return m.activateFn(ctx, actor, id)
	}
	return &model.User{ID: id, Role: model.RoleUser, Active: true}, nil
}

// --- テストヘルパー ---

// withPrincipal はテスト用にリクエストコンテキストに呼び出し元を注入するヘルパー。
func withPrincipal(r *http.Request, userID int64, role model.Role) *http.Request {
	ctx := middleware.ContextWithPrincipal(r.Context(), model.Principal{UserID: userID, Role: role})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}
