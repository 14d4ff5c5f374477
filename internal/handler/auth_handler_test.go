package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/libman/internal/auth"
	"github.com/hitoshi/libman/internal/model"
)

func testAuthResult() *auth.Result {
	return &auth.Result{
		Token:     "signed.jwt.token",
		ExpiresAt: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		User: &model.User{
			ID:           7,
			Name:         "Alice",
			Email:        "alice@example.com",
			PasswordHash: "$2a$10$secret",
			Role:         model.RoleUser,
			Active:       true,
		},
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
			if in.Name != "Alice" || in.Email != "alice@example.com" || in.Password != "secret1" {
				t.Errorf("RegisterInput = %+v", in)
			}
			return testAuthResult(), nil
		},
	}
	h := NewAuthHandler(svc)

	body := `{"name":"Alice","email":"alice@example.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if strings.Contains(w.Body.String(), "secret") {
		t.Errorf("response must not contain password material: %s", w.Body.String())
	}

	var resp authResponse
	decodeBody(t, w, &resp)
	if resp.Token != "signed.jwt.token" {
		t.Errorf("token = %q", resp.Token)
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.TokenType)
	}
	if resp.User.ID != 7 || resp.User.Role != "USER" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
			return nil, model.NewEmailInUseError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"name":"A","email":"a@example.com","password":"secret1"}`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeEmailInUse {
		t.Errorf("code = %q, want %q", got, model.ErrCodeEmailInUse)
	}
}

func TestAuthHandler_Register_InvalidJSON(t *testing.T) {
	called := false
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
			called = true
			return nil, nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"name":`))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("service should not be called for malformed body")
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.Result, error) {
			if email != "alice@example.com" || password != "secret1" {
				t.Errorf("Login(%q, %q)", email, password)
			}
			return testAuthResult(), nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"secret1"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp authResponse
	decodeBody(t, w, &resp)
	if resp.User.Email != "alice@example.com" {
		t.Errorf("user.email = %q", resp.User.Email)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.Result, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q", got)
	}
}

func TestAuthHandler_Login_DeactivatedAccount(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.Result, error) {
			return nil, model.NewAccountDeactivatedError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"bob@example.com","password":"secret1"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeAccountDeactivated {
		t.Errorf("code = %q, want %q", got, model.ErrCodeAccountDeactivated)
	}
}
