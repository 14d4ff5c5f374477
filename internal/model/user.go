package model

import "time"

// Role はユーザーの権限を表す。
type Role string

const (
	// RoleUser は一般利用者。貸出・返却を行う。
	RoleUser Role = "USER"
	// RoleAdmin は管理者。カタログ管理と全貸出記録の参照を行う。
	RoleAdmin Role = "ADMIN"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User は図書館の利用者を表す。
// PasswordHashはbcryptハッシュで、ドメインロジックからは不透明な値として扱う。
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal は認証済みリクエストの呼び出し元を表す。
// トークンから解決され、サービス層へは明示的な引数として渡される。
type Principal struct {
	UserID int64
	Role   Role
}

// IsAdmin は呼び出し元が管理者かどうかを返す。
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
