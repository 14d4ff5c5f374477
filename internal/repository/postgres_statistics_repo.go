package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/libman/internal/model"
)

// PostgresStatisticsRepo は集計用の全件スキャンを提供する。
type PostgresStatisticsRepo struct {
	db *sql.DB
}

// NewPostgresStatisticsRepo はPostgresStatisticsRepoを生成する。
func NewPostgresStatisticsRepo(db *sql.DB) *PostgresStatisticsRepo {
	return &PostgresStatisticsRepo{db: db}
}

// ListLedgerEntries は全貸出記録をID昇順で返す。
// 蔵書・著者・カテゴリは外部結合し、参照できない名前は空文字列、IDは0となる。
func (r *PostgresStatisticsRepo) ListLedgerEntries(ctx context.Context) ([]model.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.book_id, r.is_returned,
		       COALESCE(b.title, ''),
		       COALESCE(a.id, 0), COALESCE(a.name, ''),
		       COALESCE(c.id, 0), COALESCE(c.name, '')
		FROM borrow_records r
		LEFT JOIN books b ON b.id = r.book_id
		LEFT JOIN authors a ON a.id = b.author_id
		LEFT JOIN categories c ON c.id = b.category_id
		ORDER BY r.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(
			&e.RecordID, &e.BookID, &e.Returned,
			&e.BookTitle,
			&e.AuthorID, &e.AuthorName,
			&e.CategoryID, &e.CategoryName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// CountUsers は登録ユーザー数を返す。
func (r *PostgresStatisticsRepo) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ StatisticsRepository = (*PostgresStatisticsRepo)(nil)
