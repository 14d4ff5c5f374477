package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/libman/internal/metrics"
	"github.com/hitoshi/libman/internal/middleware"
	"github.com/hitoshi/libman/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker  Pinger
	HTTPRecorder   metrics.HTTPRecorder
	MetricsHandler http.Handler

	// サービス
	AuthService       AuthServiceInterface
	CatalogService    CatalogServiceInterface
	BorrowService     BorrowServiceInterface
	StatisticsService StatisticsServiceInterface
	UserService       UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// 認証が必要なルートではさらに Auth → RequireRole を適用する。
// 登録・ログインにはIP単位のAuthレート制限を追加する。
// 認証済みのルートは利用者単位、それ以外はIP単位で制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.HTTPRecorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "ROUTE_NOT_FOUND",
			Message:  "指定されたエンドポイントは存在しません。",
			Category: "system",
			Action:   "URLを確認してください。",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, &model.APIError{
			Code:     "METHOD_NOT_ALLOWED",
			Message:  "このメソッドは許可されていません。",
			Category: "system",
			Action:   "HTTPメソッドを確認してください。",
		})
	})

	// --- 運用エンドポイント ---
	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService)
	catalogHandler := NewCatalogHandler(deps.CatalogService)
	borrowHandler := NewBorrowHandler(deps.BorrowService)
	adminHandler := NewAdminHandler(deps.StatisticsService, deps.UserService)

	authenticate := middleware.NewAuthMiddleware(deps.TokenVerifier)
	general := deps.RateLimiter.GeneralMiddleware()

	// 登録・ログイン（IP単位のレート制限）
	credentials := r.With(deps.RateLimiter.AuthMiddleware())
	credentials.Post("/api/auth/register", authHandler.Register)
	credentials.Post("/api/auth/login", authHandler.Login)

	// --- 認証不要の参照系 ---
	public := r.With(general)
	public.Get("/api/authors", catalogHandler.ListAuthors)
	public.Get("/api/authors/{id}", catalogHandler.GetAuthor)
	public.Get("/api/categories", catalogHandler.ListCategories)
	public.Get("/api/categories/{id}", catalogHandler.GetCategory)
	public.Get("/api/books", catalogHandler.ListBooks)
	public.Get("/api/books/search", catalogHandler.SearchBooks)
	public.Get("/api/books/borrowed", catalogHandler.ListBorrowedBooks)
	public.Get("/api/books/available", catalogHandler.ListAvailableBooks)
	public.Get("/api/books/title/{title}", catalogHandler.GetBookByTitle)
	public.Get("/api/books/author/{authorId}", catalogHandler.ListBooksByAuthor)
	public.Get("/api/books/category/{categoryId}", catalogHandler.ListBooksByCategory)
	public.Get("/api/books/release-year/{year}", catalogHandler.ListBooksByReleaseYear)
	public.Get("/api/books/{id}", catalogHandler.GetBook)

	// --- 利用者向け ---
	// ミドルウェアスタック: Auth → RateLimit(General) → RequireRole
	member := r.With(authenticate, general, middleware.RequireRole(model.RoleUser))
	member.Post("/api/borrows", borrowHandler.Borrow)
	member.Put("/api/borrows/{id}/return", borrowHandler.Return)
	member.Get("/api/borrows/active", borrowHandler.ListMyActive)
	member.Get("/api/borrows/history", borrowHandler.ListMyHistory)

	// --- 管理者向け ---
	admin := r.With(authenticate, general, middleware.RequireRole(model.RoleAdmin))
	admin.Post("/api/authors", catalogHandler.CreateAuthor)
	admin.Post("/api/categories", catalogHandler.CreateCategory)
	admin.Post("/api/books", catalogHandler.CreateBook)
	admin.Put("/api/books/{id}", catalogHandler.UpdateBook)
	admin.Delete("/api/books/{id}", catalogHandler.DeleteBook)

	admin.Get("/api/borrows/{id}", borrowHandler.Get)
	admin.Get("/api/borrows/all/active", borrowHandler.ListAllActive)
	admin.Get("/api/borrows/all/returned", borrowHandler.ListAllReturned)
	admin.Get("/api/borrows/book/{bookId}", borrowHandler.ListByBook)
	admin.Get("/api/borrows/user/{userId}", borrowHandler.ListByUser)

	admin.Get("/api/admin/statistics", adminHandler.Statistics)
	admin.Get("/api/admin/users", adminHandler.ListUsers)
	admin.Get("/api/admin/users/{id}", adminHandler.GetUser)
	admin.Put("/api/admin/users/{id}/deactivate", adminHandler.DeactivateUser)
	admin.Put("/api/admin/users/{id}/activate", adminHandler.ActivateUser)

	return r
}
