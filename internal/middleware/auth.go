// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/libman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// principalContextKey はリクエストコンテキストに認証済みの呼び出し元を格納するためのキー。
	principalContextKey = contextKey("principal")
	// principalSlotContextKey はアクセスログが認証結果を参照するためのスロットのキー。
	principalSlotContextKey = contextKey("principal_slot")
)

// principalSlot は外側のミドルウェアが内側で解決された呼び出し元を参照するための入れ物。
type principalSlot struct {
	principal *model.Principal
}

// TokenVerifier はBearerトークンの検証に必要なインターフェース。
// auth.Serviceが満たす。
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (model.Principal, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 認証済みの呼び出し元をリクエストコンテキストに注入する。
// トークンがない、または無効な場合は401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorizationヘッダーからトークンを取得
			token, ok := bearerToken(r)
			if !ok {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			// 2. トークンと利用者の有効性を検証
			principal, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				if model.KindOf(err) == model.KindUnauthorized {
					WriteAPIError(w, model.NewUnauthorizedError())
					return
				}
				slog.Error("failed to verify token",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			// 3. 呼び出し元をコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole は呼び出し元のロールがrolesのいずれかであることを要求するミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Warn("role check failed",
				slog.Int64("user_id", principal.UserID),
				slog.String("role", string(principal.Role)),
				slog.String("path", r.URL.Path),
			)
			WriteAPIError(w, model.NewForbiddenError())
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから呼び出し元を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok || p.UserID == 0 {
		return model.Principal{}, false
	}
	return p, true
}

// ContextWithPrincipal はコンテキストに呼び出し元を注入する。
// 外側のミドルウェアがスロットを用意している場合はそこにも記録する。
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	if slot, ok := ctx.Value(principalSlotContextKey).(*principalSlot); ok {
		slot.principal = &p
	}
	return context.WithValue(ctx, principalContextKey, p)
}

func withPrincipalSlot(ctx context.Context) (context.Context, *principalSlot) {
	slot := &principalSlot{}
	return context.WithValue(ctx, principalSlotContextKey, slot), slot
}

// bearerToken は"Authorization: Bearer <token>"からトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
