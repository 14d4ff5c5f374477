package repository

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
)

const dialectPostgres = "postgres"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern は部分一致用のLIKEパターンを返す。入力中のワイルドカードはエスケープする。
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// bookSelect は蔵書に著者名・カテゴリ名を結合したSELECT文のベースを返す。
func bookSelect() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(goqu.T("books").As("b")).
		Join(goqu.T("authors").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("b.author_id")))).
		Join(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Select(
			goqu.I("b.id"), goqu.I("b.title"),
			goqu.I("b.author_id"), goqu.I("a.name"),
			goqu.I("b.category_id"), goqu.I("c.name"),
			goqu.I("b.release_year"), goqu.I("b.is_borrowed"),
			goqu.I("b.created_at"), goqu.I("b.updated_at"),
		)
}

// buildBookQuery はBookFilterからプレースホルダ付きのSQLと引数を生成する。
func buildBookQuery(filter BookFilter) (string, []interface{}, error) {
	conditions := make([]exp.Expression, 0)

	if filter.AuthorID != 0 {
		conditions = append(conditions, goqu.I("b.author_id").Eq(filter.AuthorID))
	}
	if filter.CategoryID != 0 {
		conditions = append(conditions, goqu.I("b.category_id").Eq(filter.CategoryID))
	}
	if filter.ReleaseYear != nil {
		conditions = append(conditions, goqu.I("b.release_year").Eq(*filter.ReleaseYear))
	}
	if filter.Borrowed != nil {
		conditions = append(conditions, goqu.I("b.is_borrowed").Eq(*filter.Borrowed))
	}
	if filter.TitleContains != "" {
		conditions = append(conditions, goqu.I("b.title").ILike(containsPattern(filter.TitleContains)))
	}
	if filter.AuthorNameContains != "" {
		conditions = append(conditions, goqu.I("a.name").ILike(containsPattern(filter.AuthorNameContains)))
	}
	if filter.CategoryNameContains != "" {
		conditions = append(conditions, goqu.I("c.name").ILike(containsPattern(filter.CategoryNameContains)))
	}

	ds := bookSelect()
	if len(conditions) > 0 {
		ds = ds.Where(goqu.And(conditions...))
	}

	return ds.Order(goqu.I("b.id").Asc()).Prepared(true).ToSQL()
}

// borrowViewSelect は貸出記録に蔵書タイトル・利用者名を結合したSELECT文のベースを返す。
func borrowViewSelect() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(goqu.T("borrow_records").As("r")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.user_id")))).
		Select(
			goqu.I("r.id"), goqu.I("r.book_id"), goqu.I("r.user_id"),
			goqu.I("r.borrow_date"), goqu.I("r.return_date"), goqu.I("r.is_returned"),
			goqu.I("b.title"), goqu.I("u.name"),
		)
}

// buildBorrowQuery はBorrowFilterからプレースホルダ付きのSQLと引数を生成する。
func buildBorrowQuery(filter BorrowFilter) (string, []interface{}, error) {
	conditions := make([]exp.Expression, 0)

	if filter.UserID != 0 {
		conditions = append(conditions, goqu.I("r.user_id").Eq(filter.UserID))
	}
	if filter.BookID != 0 {
		conditions = append(conditions, goqu.I("r.book_id").Eq(filter.BookID))
	}
	if filter.Returned != nil {
		conditions = append(conditions, goqu.I("r.is_returned").Eq(*filter.Returned))
	}

	ds := borrowViewSelect()
	if len(conditions) > 0 {
		ds = ds.Where(goqu.And(conditions...))
	}

	return ds.Order(goqu.I("r.id").Asc()).Prepared(true).ToSQL()
}
