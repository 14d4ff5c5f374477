package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/hitoshi/libman/internal/model"
)

// PostgresBorrowRepo はPostgreSQLを使用した貸出台帳の参照リポジトリ。
type PostgresBorrowRepo struct {
	db *sql.DB
}

// NewPostgresBorrowRepo はPostgresBorrowRepoを生成する。
func NewPostgresBorrowRepo(db *sql.DB) *PostgresBorrowRepo {
	return &PostgresBorrowRepo{db: db}
}

func scanBorrowView(row rowScanner) (*model.BorrowView, error) {
	v := &model.BorrowView{}
	var returnDate sql.NullTime
	err := row.Scan(
		&v.ID, &v.BookID, &v.UserID,
		&v.BorrowDate, &returnDate, &v.Returned,
		&v.BookTitle, &v.UserName,
	)
	if err != nil {
		return nil, err
	}
	if returnDate.Valid {
		d := returnDate.Time
		v.ReturnDate = &d
	}
	return v, nil
}

// queryRower はQueryRowContextを持つ*sql.DBと*sql.Txの共通インターフェース。
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func findBorrowView(ctx context.Context, q queryRower, id int64) (*model.BorrowView, error) {
	query, args, err := borrowViewSelect().Where(goqu.Ex{"r.id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build borrow view query: %w", err)
	}

	view, err := scanBorrowView(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find borrow record: %w", err)
	}
	return view, nil
}

// FindViewByID は指定IDの貸出記録を取得する。見つからない場合はnilを返す。
func (r *PostgresBorrowRepo) FindViewByID(ctx context.Context, id int64) (*model.BorrowView, error) {
	return findBorrowView(ctx, r.db, id)
}

// ListViews は条件に一致する貸出記録をID昇順で返す。
func (r *PostgresBorrowRepo) ListViews(ctx context.Context, filter BorrowFilter) ([]*model.BorrowView, error) {
	query, args, err := buildBorrowQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build borrow list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list borrow records: %w", err)
	}
	defer rows.Close()

	views := make([]*model.BorrowView, 0)
	for rows.Next() {
		v, err := scanBorrowView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrow record: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate borrow records: %w", err)
	}
	return views, nil
}

// compile-time interface check
var _ BorrowRepository = (*PostgresBorrowRepo)(nil)
