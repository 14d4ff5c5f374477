package model

import "time"

// Author は著者を表す。名前は一意。
type Author struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Category はカテゴリを表す。名前は一意。
type Category struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Book は蔵書を表す。タイトルは一意。
// Borrowedは貸出台帳から導出される非正規化状態で、
// 未返却のBorrowRecordが存在する場合に限りtrueとなる。
type Book struct {
	ID           int64
	Title        string
	AuthorID     int64
	AuthorName   string
	CategoryID   int64
	CategoryName string
	ReleaseYear  int
	Borrowed     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BookInput は蔵書の作成・更新リクエストの内容。
type BookInput struct {
	Title       string
	AuthorID    int64
	CategoryID  int64
	ReleaseYear int
}

// BookSearchCriteria は蔵書検索の条件。
// 空文字列・nilの項目は条件に含めない。
type BookSearchCriteria struct {
	Title        string
	AuthorName   string
	CategoryName string
	ReleaseYear  *int
}
