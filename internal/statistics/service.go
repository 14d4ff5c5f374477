// Package statistics は貸出台帳とカタログから管理者向けの集計を算出する。
package statistics

import (
	"context"
	"fmt"
	"sort"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// TopN はランキングに含める最大件数。
const TopN = 10

// UnknownName は名前が解決できないカテゴリ・著者の表示名。
const UnknownName = "Unknown"

// BookLister はカタログ全体の蔵書取得に使うインターフェース。
type BookLister interface {
	Search(ctx context.Context, filter repository.BookFilter) ([]*model.Book, error)
}

// Service は集計を提供する。呼び出しごとに全件を走査して再計算し、キャッシュしない。
type Service struct {
	stats repository.StatisticsRepository
	books BookLister
}

// NewService はServiceを生成する。
func NewService(stats repository.StatisticsRepository, books BookLister) *Service {
	return &Service{stats: stats, books: books}
}

// Snapshot は現時点の集計を返す。
func (s *Service) Snapshot(ctx context.Context) (*model.Statistics, error) {
	books, err := s.books.Search(ctx, repository.BookFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	entries, err := s.stats.ListLedgerEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	users, err := s.stats.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	return aggregate(books, entries, users), nil
}

type counter struct {
	id     int64
	name   string
	books  int64
	borrow int64
}

// aggregate は蔵書一覧と台帳エントリから集計を組み立てる。
func aggregate(books []*model.Book, entries []model.LedgerEntry, users int64) *model.Statistics {
	st := &model.Statistics{
		TotalBooks:         int64(len(books)),
		TotalUsers:         users,
		TotalBorrowRecords: int64(len(entries)),
	}

	booksByCategory := make(map[int64]int64)
	booksByAuthor := make(map[int64]int64)
	catalog := make(map[int64]*model.Book, len(books))
	for _, b := range books {
		catalog[b.ID] = b
		booksByCategory[b.CategoryID]++
		booksByAuthor[b.AuthorID]++
		if b.Borrowed {
			st.TotalBorrowedBooks++
		}
	}
	st.TotalAvailableBooks = st.TotalBooks - st.TotalBorrowedBooks

	categories := make(map[int64]*counter)
	authors := make(map[int64]*counter)
	perBook := make(map[int64]*counter)

	for _, e := range entries {
		if !e.Returned {
			st.TotalActiveBorrows++
		}

		bump(categories, e.CategoryID, e.CategoryName, booksByCategory)
		bump(authors, e.AuthorID, e.AuthorName, booksByAuthor)

		// 台帳に残っていてもカタログにない蔵書はランキングから除く
		if _, ok := catalog[e.BookID]; !ok {
			continue
		}
		c, ok := perBook[e.BookID]
		if !ok {
			c = &counter{id: e.BookID}
			perBook[e.BookID] = c
		}
		c.borrow++
	}

	for _, c := range top(categories) {
		st.PopularCategories = append(st.PopularCategories, model.CategoryStatistics{
			CategoryID:   c.id,
			CategoryName: c.name,
			BookCount:    c.books,
			BorrowCount:  c.borrow,
		})
	}
	for _, c := range top(authors) {
		st.PopularAuthors = append(st.PopularAuthors, model.AuthorStatistics{
			AuthorID:    c.id,
			AuthorName:  c.name,
			BookCount:   c.books,
			BorrowCount: c.borrow,
		})
	}
	for _, c := range top(perBook) {
		b := catalog[c.id]
		st.MostBorrowedBooks = append(st.MostBorrowedBooks, model.BookStatistics{
			BookID:      b.ID,
			BookTitle:   b.Title,
			AuthorName:  b.AuthorName,
			BorrowCount: c.borrow,
		})
	}

	if st.PopularCategories == nil {
		st.PopularCategories = []model.CategoryStatistics{}
	}
	if st.PopularAuthors == nil {
		st.PopularAuthors = []model.AuthorStatistics{}
	}
	if st.MostBorrowedBooks == nil {
		st.MostBorrowedBooks = []model.BookStatistics{}
	}
	return st
}

// bump はグループの貸出数を加算する。名前は最初に見つかったエントリのものを使う。
func bump(groups map[int64]*counter, id int64, name string, bookCounts map[int64]int64) {
	c, ok := groups[id]
	if !ok {
		if name == "" {
			name = UnknownName
		}
		c = &counter{id: id, name: name, books: bookCounts[id]}
		groups[id] = c
	}
	c.borrow++
}

// top は貸出数の降順（同数はID昇順）で上位TopN件を返す。
func top(groups map[int64]*counter) []*counter {
	list := make([]*counter, 0, len(groups))
	for _, c := range groups {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].borrow != list[j].borrow {
			return list[i].borrow > list[j].borrow
		}
		return list[i].id < list[j].id
	})
	if len(list) > TopN {
		list = list[:TopN]
	}
	return list
}
