// Package auth は利用者登録、ログイン、アクセストークンの発行と検証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/libman/internal/metrics"
	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
	"github.com/hitoshi/libman/internal/security"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 6
	// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
	MaxPasswordBytes = 72
)

// RegisterInput は利用者登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Result は登録・ログイン成功時に返すトークンと利用者情報。
type Result struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	hasher    *PasswordHasher
	tokens    *TokenIssuer
	sanitizer security.NameSanitizer
	recorder  metrics.AuthRecorder
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenIssuer,
	sanitizer security.NameSanitizer,
	recorder metrics.AuthRecorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		sanitizer: sanitizer,
		recorder:  recorder,
	}
}

// Register は一般利用者を登録し、アクセストークンを発行する。
// メールアドレスが登録済みの場合はConflictを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	name, email, err := s.validateRegistration(in)
	if err != nil {
		s.recorder.RecordAuthAttempt("register", false)
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		s.recorder.RecordAuthAttempt("register", false)
		return nil, model.NewEmailInUseError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			s.recorder.RecordAuthAttempt("register", false)
			return nil, model.NewEmailInUseError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	s.recorder.RecordAuthAttempt("register", true)

	return s.issue(user)
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを発行する。
// 未登録のメールアドレスと誤ったパスワードは区別せず同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Matches(user.PasswordHash, password) {
		s.recorder.RecordAuthAttempt("login", false)
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.Active {
		s.recorder.RecordAuthAttempt("login", false)
		return nil, model.NewAccountDeactivatedError()
	}

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	s.recorder.RecordAuthAttempt("login", true)

	return s.issue(user)
}

// VerifyToken はアクセストークンを検証し、呼び出し元のPrincipalを返す。
// 利用者が削除・無効化されている場合はUnauthorizedを返す。
// ロールはトークンではなく現在の利用者情報から決定する。
func (s *Service) VerifyToken(ctx context.Context, token string) (model.Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		slog.Debug("token rejected", slog.String("reason", err.Error()))
		return model.Principal{}, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return model.Principal{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.Active {
		return model.Principal{}, model.NewUnauthorizedError()
	}

	return model.Principal{UserID: user.ID, Role: user.Role}, nil
}

// EnsureAdmin は管理者アカウントを用意する。
// メールアドレスが未登録なら作成し、登録済みなら管理者へ昇格してパスワードを置き換える。
// 作成した場合はcreatedにtrueを返す。
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (user *model.User, created bool, err error) {
	name, email, err := s.validateRegistration(in)
	if err != nil {
		return nil, false, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		if err := s.userRepo.PromoteToAdmin(ctx, existing.ID, hash); err != nil {
			return nil, false, err
		}
		existing.Role = model.RoleAdmin
		existing.Active = true
		existing.PasswordHash = hash
		slog.Info("user promoted to admin", slog.Int64("user_id", existing.ID))
		return existing, false, nil
	}

	user = &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to create admin: %w", err)
	}
	slog.Info("admin created", slog.Int64("user_id", user.ID))
	return user, true, nil
}

func (s *Service) issue(user *model.User) (*Result, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// validateRegistration は登録入力を検証し、正規化した名前とメールアドレスを返す。
func (s *Service) validateRegistration(in RegisterInput) (string, string, error) {
	name := s.sanitizer.Sanitize(in.Name)
	if name == "" {
		return "", "", model.NewValidationError("名前は必須です")
	}
	if utf8.RuneCountInString(name) > 255 {
		return "", "", model.NewValidationError("名前は255文字以内で入力してください")
	}

	email := normalizeEmail(in.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return "", "", model.NewValidationError(
			fmt.Sprintf("パスワードは%d文字以上で入力してください", MinPasswordLength))
	}
	if len(in.Password) > MaxPasswordBytes {
		return "", "", model.NewValidationError("パスワードが長すぎます")
	}
	return name, email, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
