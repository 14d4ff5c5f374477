// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。
// 境界層（HTTPハンドラー）はKindに応じてレスポンスを決定する。
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindBadRequest    ErrorKind = "bad_request"
	KindLimitExceeded ErrorKind = "limit_exceeded"
	KindForbidden     ErrorKind = "forbidden"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindValidation    ErrorKind = "validation"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー分類
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, catalog, borrow, system
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// KindOf はエラーチェーン中のAPIErrorの分類を返す。
// APIErrorを含まない場合は空文字列を返す。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// 定義済みエラーコード
const (
	ErrCodeAuthorNotFound       = "AUTHOR_NOT_FOUND"
	ErrCodeCategoryNotFound     = "CATEGORY_NOT_FOUND"
	ErrCodeBookNotFound         = "BOOK_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeBorrowRecordNotFound = "BORROW_RECORD_NOT_FOUND"
	ErrCodeDuplicateAuthor      = "DUPLICATE_AUTHOR"
	ErrCodeDuplicateCategory    = "DUPLICATE_CATEGORY"
	ErrCodeDuplicateBook        = "DUPLICATE_BOOK"
	ErrCodeEmailInUse           = "EMAIL_IN_USE"
	ErrCodeBookAlreadyBorrowed  = "BOOK_ALREADY_BORROWED"
	ErrCodeAlreadyReturned      = "ALREADY_RETURNED"
	ErrCodeBookHasHistory       = "BOOK_HAS_BORROW_HISTORY"
	ErrCodeBorrowLimit          = "BORROW_LIMIT_REACHED"
	ErrCodeNotRecordOwner       = "NOT_RECORD_OWNER"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeAccountDeactivated   = "ACCOUNT_DEACTIVATED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
)

// NewAuthorNotFoundError は著者未検出エラーを生成する。
func NewAuthorNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeAuthorNotFound,
		Message:  fmt.Sprintf("指定された著者が見つかりません: %d", id),
		Category: "catalog",
		Action:   "著者IDを確認してください。",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %d", id),
		Category: "catalog",
		Action:   "カテゴリIDを確認してください。",
	}
}

// NewBookNotFoundError は蔵書未検出エラーを生成する。
func NewBookNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("指定された蔵書が見つかりません: %d", id),
		Category: "catalog",
		Action:   "蔵書IDを確認してください。",
	}
}

// NewBookTitleNotFoundError はタイトル指定で蔵書が見つからない場合のエラーを生成する。
func NewBookTitleNotFoundError(title string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("指定されたタイトルの蔵書が見つかりません: %s", title),
		Category: "catalog",
		Action:   "タイトルを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認するか、ログインし直してください。",
	}
}

// NewBorrowRecordNotFoundError は貸出記録未検出エラーを生成する。
func NewBorrowRecordNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeBorrowRecordNotFound,
		Message:  fmt.Sprintf("指定された貸出記録が見つかりません: %d", id),
		Category: "borrow",
		Action:   "貸出記録IDを確認してください。",
	}
}

// NewDuplicateAuthorError は同名の著者が既に存在する場合のエラーを生成する。
func NewDuplicateAuthorError(name string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeDuplicateAuthor,
		Message:  fmt.Sprintf("同じ名前の著者が既に存在します: %s", name),
		Category: "catalog",
		Action:   "既存の著者を使用するか、別の名前を指定してください。",
	}
}

// NewDuplicateCategoryError は同名のカテゴリが既に存在する場合のエラーを生成する。
func NewDuplicateCategoryError(name string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeDuplicateCategory,
		Message:  fmt.Sprintf("同じ名前のカテゴリが既に存在します: %s", name),
		Category: "catalog",
		Action:   "既存のカテゴリを使用するか、別の名前を指定してください。",
	}
}

// NewDuplicateBookError は同じタイトルの蔵書が既に存在する場合のエラーを生成する。
func NewDuplicateBookError(title string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeDuplicateBook,
		Message:  fmt.Sprintf("同じタイトルの蔵書が既に存在します: %s", title),
		Category: "catalog",
		Action:   "別のタイトルを指定してください。",
	}
}

// NewEmailInUseError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeEmailInUse,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "auth",
		Action:   "別のメールアドレスで登録するか、ログインしてください。",
	}
}

// NewBookAlreadyBorrowedError は蔵書が貸出中の場合のエラーを生成する。
func NewBookAlreadyBorrowedError(bookID int64) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeBookAlreadyBorrowed,
		Message:  fmt.Sprintf("この蔵書は既に貸出中です: %d", bookID),
		Category: "borrow",
		Action:   "返却されるまでお待ちください。",
	}
}

// NewAlreadyReturnedError は貸出記録が返却済みの場合のエラーを生成する。
func NewAlreadyReturnedError(recordID int64) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeAlreadyReturned,
		Message:  fmt.Sprintf("この貸出は既に返却済みです: %d", recordID),
		Category: "borrow",
		Action:   "貸出中の一覧を確認してください。",
	}
}

// NewBookHasHistoryError は貸出履歴のある蔵書を削除しようとした場合のエラーを生成する。
func NewBookHasHistoryError(bookID int64) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeBookHasHistory,
		Message:  fmt.Sprintf("貸出履歴のある蔵書は削除できません: %d", bookID),
		Category: "catalog",
		Action:   "貸出台帳は削除されないため、蔵書情報の更新で対応してください。",
	}
}

// NewBorrowLimitError は同時貸出数の上限に達した場合のエラーを生成する。
func NewBorrowLimitError(limit int) *APIError {
	return &APIError{
		Kind:     KindLimitExceeded,
		Code:     ErrCodeBorrowLimit,
		Message:  fmt.Sprintf("同時に借りられる上限（%d冊）に達しています。", limit),
		Category: "borrow",
		Action:   "借りている本を返却してから、再度お試しください。",
	}
}

// NewNotRecordOwnerError は他人の貸出記録を返却しようとした場合のエラーを生成する。
func NewNotRecordOwnerError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeNotRecordOwner,
		Message:  "自分が借りた本のみ返却できます。",
		Category: "borrow",
		Action:   "貸出中の一覧から返却する記録を選択してください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードが誤っている場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewAccountDeactivatedError は無効化されたアカウントでログインしようとした場合のエラーを生成する。
func NewAccountDeactivatedError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeAccountDeactivated,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewValidationError は入力値が不正な場合のエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Kind:     KindValidation,
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は認証が必要な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限が不足している場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "権限のあるアカウントでログインしてください。",
	}
}
