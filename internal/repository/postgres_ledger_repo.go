package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/libman/internal/model"
)

// PostgresLedgerStore は貸出・返却のトランザクションを提供する。
// 対象行はSELECT ... FOR UPDATEで排他ロックし、同一蔵書・同一利用者への操作を直列化する。
type PostgresLedgerStore struct {
	db TxBeginner
}

// NewPostgresLedgerStore はPostgresLedgerStoreを生成する。
func NewPostgresLedgerStore(db TxBeginner) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db}
}

// WithinLedgerTx はトランザクション内でfnを実行する。
func (s *PostgresLedgerStore) WithinLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresLedgerTx struct {
	tx *sql.Tx
}

func (t *postgresLedgerTx) LockUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(t.tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

func (t *postgresLedgerTx) LockBook(ctx context.Context, id int64) (*model.Book, error) {
	b := &model.Book{}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, title, author_id, category_id, release_year, is_borrowed, created_at, updated_at
		 FROM books WHERE id = $1 FOR UPDATE`, id,
	).Scan(&b.ID, &b.Title, &b.AuthorID, &b.CategoryID, &b.ReleaseYear, &b.Borrowed, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock book: %w", err)
	}
	return b, nil
}

func (t *postgresLedgerTx) LockBorrow(ctx context.Context, id int64) (*model.BorrowRecord, error) {
	rec := &model.BorrowRecord{}
	var returnDate sql.NullTime
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, book_id, user_id, borrow_date, return_date, is_returned
		 FROM borrow_records WHERE id = $1 FOR UPDATE`, id,
	).Scan(&rec.ID, &rec.BookID, &rec.UserID, &rec.BorrowDate, &returnDate, &rec.Returned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock borrow record: %w", err)
	}
	if returnDate.Valid {
		d := returnDate.Time
		rec.ReturnDate = &d
	}
	return rec, nil
}

func (t *postgresLedgerTx) CountOpenByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		`SELECT count(*) FROM borrow_records WHERE user_id = $1 AND NOT is_returned`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open borrows: %w", err)
	}
	return count, nil
}

func (t *postgresLedgerTx) InsertBorrow(ctx context.Context, record *model.BorrowRecord) error {
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO borrow_records (book_id, user_id, borrow_date, return_date, is_returned)
		 VALUES ($1, $2, $3, NULL, FALSE)
		 RETURNING id`,
		record.BookID, record.UserID, record.BorrowDate,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to insert borrow record: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) MarkReturned(ctx context.Context, id int64, returnDate time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE borrow_records SET is_returned = TRUE, return_date = $2 WHERE id = $1`,
		id, returnDate,
	)
	if err != nil {
		return fmt.Errorf("failed to mark borrow record returned: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) SetBookBorrowed(ctx context.Context, bookID int64, borrowed bool) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE books SET is_borrowed = $2, updated_at = now() WHERE id = $1`,
		bookID, borrowed,
	)
	if err != nil {
		return fmt.Errorf("failed to update book borrowed flag: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) View(ctx context.Context, id int64) (*model.BorrowView, error) {
	return findBorrowView(ctx, t.tx, id)
}

// compile-time interface check
var (
	_ LedgerStore = (*PostgresLedgerStore)(nil)
	_ LedgerTx    = (*postgresLedgerTx)(nil)
)
