package model

import "time"

// BorrowRecord は貸出台帳の1エントリを表す。
// 作成後に変更されるのは返却時の1回のみで、削除・再オープンはされない。
// ReturnDateがnilであることとReturnedがfalseであることは常に一致する。
type BorrowRecord struct {
	ID         int64
	BookID     int64
	UserID     int64
	BorrowDate time.Time
	ReturnDate *time.Time
	Returned   bool
}

// IsOpen は貸出中（未返却）かどうかを返す。
func (r *BorrowRecord) IsOpen() bool {
	return !r.Returned
}

// BorrowView は貸出記録に蔵書タイトルと利用者名を結合した読み取りモデル。
type BorrowView struct {
	BorrowRecord
	BookTitle string
	UserName  string
}

// LedgerEntry は統計集計用に貸出記録と蔵書のカタログ情報を結合した行。
// 蔵書・著者・カテゴリが参照できない場合、対応する名前は空文字列となる。
type LedgerEntry struct {
	RecordID     int64
	BookID       int64
	BookTitle    string
	AuthorID     int64
	AuthorName   string
	CategoryID   int64
	CategoryName string
	Returned     bool
}
