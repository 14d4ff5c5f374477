// Package user は管理者向けのユーザー管理を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// Service はユーザー管理のサービス層。
// ユーザーは削除せず、有効フラグの切り替えでログイン可否を制御する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// List は全ユーザーをID昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Get は指定IDのユーザーを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Deactivate はユーザーを無効化する。無効化されたユーザーはログインできない。
// 管理者自身のアカウントは無効化できない。
func (s *Service) Deactivate(ctx context.Context, actor model.Principal, id int64) (*model.User, error) {
	if actor.UserID == id {
		return nil, model.NewValidationError("自分自身のアカウントは無効化できません")
	}
	return s.setActive(ctx, actor, id, false)
}

// Activate は無効化されたユーザーを再び有効化する。
func (s *Service) Activate(ctx context.Context, actor model.Principal, id int64) (*model.User, error) {
	return s.setActive(ctx, actor, id, true)
}

func (s *Service) setActive(ctx context.Context, actor model.Principal, id int64, active bool) (*model.User, error) {
	found, err := s.userRepo.SetActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("ユーザー状態の更新に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("user active state changed",
		slog.Int64("user_id", id),
		slog.Bool("active", active),
		slog.Int64("admin_id", actor.UserID),
	)

	return s.Get(ctx, id)
}
