package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/hitoshi/libman/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用した蔵書リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

func scanBook(row rowScanner) (*model.Book, error) {
	b := &model.Book{}
	err := row.Scan(
		&b.ID, &b.Title,
		&b.AuthorID, &b.AuthorName,
		&b.CategoryID, &b.CategoryName,
		&b.ReleaseYear, &b.Borrowed,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PostgresBookRepo) findOne(ctx context.Context, where goqu.Ex) (*model.Book, error) {
	query, args, err := bookSelect().Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build book query: %w", err)
	}

	book, err := scanBook(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return book, nil
}

// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id int64) (*model.Book, error) {
	return r.findOne(ctx, goqu.Ex{"b.id": id})
}

// FindByTitle はタイトル完全一致で蔵書を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByTitle(ctx context.Context, title string) (*model.Book, error) {
	return r.findOne(ctx, goqu.Ex{"b.title": title})
}

// Search は条件に一致する蔵書をID昇順で返す。
func (r *PostgresBookRepo) Search(ctx context.Context, filter BookFilter) ([]*model.Book, error) {
	query, args, err := buildBookQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build book search query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}
	defer rows.Close()

	books := make([]*model.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// Create は蔵書を作成する。貸出状態は常にfalseで作成する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO books (title, author_id, category_id, release_year, is_borrowed)
		 VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING id, is_borrowed, created_at, updated_at`,
		book.Title, book.AuthorID, book.CategoryID, book.ReleaseYear,
	).Scan(&book.ID, &book.Borrowed, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// Update はタイトル・著者・カテゴリ・発行年を更新する。
func (r *PostgresBookRepo) Update(ctx context.Context, book *model.Book) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE books
		 SET title = $2, author_id = $3, category_id = $4, release_year = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING is_borrowed, updated_at`,
		book.ID, book.Title, book.AuthorID, book.CategoryID, book.ReleaseYear,
	).Scan(&book.Borrowed, &book.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// Delete は指定IDの蔵書を削除する。
func (r *PostgresBookRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete book: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// HasBorrowHistory は蔵書に貸出記録が存在するかを返す。
func (r *PostgresBookRepo) HasBorrowHistory(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM borrow_records WHERE book_id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check borrow history: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
