package model

// Statistics は管理者向けの集計スナップショット。
type Statistics struct {
	TotalBooks          int64
	TotalUsers          int64
	TotalBorrowedBooks  int64
	TotalAvailableBooks int64
	TotalBorrowRecords  int64
	TotalActiveBorrows  int64
	PopularCategories   []CategoryStatistics
	PopularAuthors      []AuthorStatistics
	MostBorrowedBooks   []BookStatistics
}

// CategoryStatistics はカテゴリ別の貸出集計。
type CategoryStatistics struct {
	CategoryID   int64
	CategoryName string
	BookCount    int64
	BorrowCount  int64
}

// AuthorStatistics は著者別の貸出集計。
type AuthorStatistics struct {
	AuthorID    int64
	AuthorName  string
	BookCount   int64
	BorrowCount int64
}

// BookStatistics は蔵書別の貸出集計。
type BookStatistics struct {
	BookID      int64
	BookTitle   string
	AuthorName  string
	BorrowCount int64
}
