// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/libman/internal/model"
)

// UserRepository は利用者データの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// メールアドレスが重複する場合はIsUniqueViolationで判定できるエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// List は全ユーザーをID昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// SetActive はユーザーの有効フラグを更新する。該当ユーザーがいない場合はfalseを返す。
	SetActive(ctx context.Context, id int64, active bool) (bool, error)

	// PromoteToAdmin はユーザーを管理者に昇格し、パスワードハッシュを置き換えて有効化する。
	PromoteToAdmin(ctx context.Context, id int64, passwordHash string) error
}

// AuthorRepository は著者データの永続化インターフェース。
type AuthorRepository interface {
	// FindByID は指定IDの著者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Author, error)

	// ExistsByName は同名の著者が存在するかを返す。
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Create は著者を作成し、採番されたIDをauthorに設定する。
	Create(ctx context.Context, author *model.Author) error

	// List は全著者をID昇順で返す。
	List(ctx context.Context) ([]*model.Author, error)
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Category, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, category *model.Category) error
	List(ctx context.Context) ([]*model.Category, error)
}

// BookRepository は蔵書データの永続化インターフェース。
// 取得系はすべて著者名・カテゴリ名を結合した状態で返す。
type BookRepository interface {
	// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Book, error)

	// FindByTitle はタイトル完全一致で蔵書を取得する。見つからない場合はnilを返す。
	FindByTitle(ctx context.Context, title string) (*model.Book, error)

	// Search は条件に一致する蔵書をID昇順で返す。条件が空の場合は全件を返す。
	Search(ctx context.Context, filter BookFilter) ([]*model.Book, error)

	// Create は蔵書を作成し、採番されたIDと作成日時をbookに設定する。
	Create(ctx context.Context, book *model.Book) error

	// Update はタイトル・著者・カテゴリ・発行年を更新する。貸出状態は変更しない。
	Update(ctx context.Context, book *model.Book) error

	// Delete は指定IDの蔵書を削除する。該当がない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// HasBorrowHistory は蔵書に貸出記録が1件でも存在するかを返す。
	HasBorrowHistory(ctx context.Context, id int64) (bool, error)
}

// BookFilter は蔵書一覧の絞り込み条件。ゼロ値の項目は条件に含めない。
type BookFilter struct {
	AuthorID    int64
	CategoryID  int64
	ReleaseYear *int
	Borrowed    *bool

	// 部分一致（大文字小文字を区別しない）
	TitleContains        string
	AuthorNameContains   string
	CategoryNameContains string
}

// BorrowRepository は貸出台帳の参照用インターフェース。
// 更新はLedgerStoreのトランザクション経由でのみ行う。
type BorrowRepository interface {
	// FindViewByID は指定IDの貸出記録を蔵書タイトル・利用者名付きで取得する。
	// 見つからない場合はnilを返す。
	FindViewByID(ctx context.Context, id int64) (*model.BorrowView, error)

	// ListViews は条件に一致する貸出記録をID昇順で返す。
	ListViews(ctx context.Context, filter BorrowFilter) ([]*model.BorrowView, error)
}

// BorrowFilter は貸出記録一覧の絞り込み条件。ゼロ値・nilの項目は条件に含めない。
type BorrowFilter struct {
	UserID   int64
	BookID   int64
	Returned *bool
}

// LedgerStore は貸出・返却を単一トランザクションで実行するためのインターフェース。
type LedgerStore interface {
	// WithinLedgerTx はトランザクションを開始してfnを実行する。
	// fnがnilを返した場合のみコミットし、それ以外はロールバックする。
	WithinLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx はトランザクション内で利用できる台帳操作。
// Lock系のメソッドは対象行を排他ロックし、見つからない場合はnilを返す。
type LedgerTx interface {
	LockUser(ctx context.Context, id int64) (*model.User, error)
	LockBook(ctx context.Context, id int64) (*model.Book, error)
	LockBorrow(ctx context.Context, id int64) (*model.BorrowRecord, error)

	// CountOpenByUser はユーザーの未返却の貸出記録数を返す。
	CountOpenByUser(ctx context.Context, userID int64) (int, error)

	// InsertBorrow は貸出記録を作成し、採番されたIDをrecordに設定する。
	InsertBorrow(ctx context.Context, record *model.BorrowRecord) error

	// MarkReturned は貸出記録を返却済みにする。
	MarkReturned(ctx context.Context, id int64, returnDate time.Time) error

	// SetBookBorrowed は蔵書の貸出中フラグを更新する。
	SetBookBorrowed(ctx context.Context, bookID int64, borrowed bool) error

	// View はトランザクション内の状態で貸出記録の読み取りモデルを返す。
	View(ctx context.Context, id int64) (*model.BorrowView, error)
}

// StatisticsRepository は集計用の全件スキャンを提供する。
type StatisticsRepository interface {
	// ListLedgerEntries は全貸出記録を蔵書・著者・カテゴリと外部結合して返す。
	ListLedgerEntries(ctx context.Context) ([]model.LedgerEntry, error)

	// CountUsers は登録ユーザー数を返す。
	CountUsers(ctx context.Context) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
