// Package catalog は著者・カテゴリ・蔵書の管理と検索を提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
	"github.com/hitoshi/libman/internal/security"
)

const (
	maxNameLength  = 255
	maxTitleLength = 500
)

// Service はカタログに関するビジネスロジックを提供する。
type Service struct {
	authors    repository.AuthorRepository
	categories repository.CategoryRepository
	books      repository.BookRepository
	sanitizer  security.NameSanitizer
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	authors repository.AuthorRepository,
	categories repository.CategoryRepository,
	books repository.BookRepository,
	sanitizer security.NameSanitizer,
) *Service {
	return &Service{
		authors:    authors,
		categories: categories,
		books:      books,
		sanitizer:  sanitizer,
		now:        time.Now,
	}
}

// --- 著者 ---

// CreateAuthor は著者を作成する。同名の著者が存在する場合はConflictを返す。
func (s *Service) CreateAuthor(ctx context.Context, name string) (*model.Author, error) {
	name, err := s.cleanName(name, "著者名", maxNameLength)
	if err != nil {
		return nil, err
	}

	exists, err := s.authors.ExistsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.NewDuplicateAuthorError(name)
	}

	author := &model.Author{Name: name}
	if err := s.authors.Create(ctx, author); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateAuthorError(name)
		}
		return nil, err
	}

	slog.Info("author created", slog.Int64("author_id", author.ID), slog.String("name", author.Name))
	return author, nil
}

// GetAuthor は指定IDの著者を返す。
func (s *Service) GetAuthor(ctx context.Context, id int64) (*model.Author, error) {
	author, err := s.authors.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, model.NewAuthorNotFoundError(id)
	}
	return author, nil
}

// ListAuthors は全著者を返す。
func (s *Service) ListAuthors(ctx context.Context) ([]*model.Author, error) {
	return s.authors.List(ctx)
}

// --- カテゴリ ---

// CreateCategory はカテゴリを作成する。同名のカテゴリが存在する場合はConflictを返す。
func (s *Service) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	name, err := s.cleanName(name, "カテゴリ名", maxNameLength)
	if err != nil {
		return nil, err
	}

	exists, err := s.categories.ExistsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.NewDuplicateCategoryError(name)
	}

	category := &model.Category{Name: name}
	if err := s.categories.Create(ctx, category); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateCategoryError(name)
		}
		return nil, err
	}

	slog.Info("category created", slog.Int64("category_id", category.ID), slog.String("name", category.Name))
	return category, nil
}

// GetCategory は指定IDのカテゴリを返す。
func (s *Service) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(id)
	}
	return category, nil
}

// ListCategories は全カテゴリを返す。
func (s *Service) ListCategories(ctx context.Context) ([]*model.Category, error) {
	return s.categories.List(ctx)
}

// --- 蔵書 ---

// CreateBook は蔵書を作成する。作成直後の蔵書は貸出可能な状態となる。
func (s *Service) CreateBook(ctx context.Context, in model.BookInput) (*model.Book, error) {
	book, err := s.prepareBook(ctx, in)
	if err != nil {
		return nil, err
	}

	existing, err := s.books.FindByTitle(ctx, book.Title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewDuplicateBookError(book.Title)
	}

	if err := s.books.Create(ctx, book); err != nil {
		return nil, mapBookWriteError(err, book.Title)
	}

	slog.Info("book created", slog.Int64("book_id", book.ID), slog.String("title", book.Title))
	return book, nil
}

// GetBook は指定IDの蔵書を返す。
func (s *Service) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, model.NewBookNotFoundError(id)
	}
	return book, nil
}

// GetBookByTitle はタイトル完全一致で蔵書を返す。
func (s *Service) GetBookByTitle(ctx context.Context, title string) (*model.Book, error) {
	// 保存時と同じ正規化をしてから照合する
	normalized := s.sanitizer.Sanitize(title)
	if normalized == "" {
		return nil, model.NewBookTitleNotFoundError(title)
	}
	book, err := s.books.FindByTitle(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, model.NewBookTitleNotFoundError(title)
	}
	return book, nil
}

// ListBooks は全蔵書を返す。
func (s *Service) ListBooks(ctx context.Context) ([]*model.Book, error) {
	return s.books.Search(ctx, repository.BookFilter{})
}

// ListBooksByAuthor は指定著者の蔵書を返す。著者が存在しない場合はNotFoundを返す。
func (s *Service) ListBooksByAuthor(ctx context.Context, authorID int64) ([]*model.Book, error) {
	if _, err := s.GetAuthor(ctx, authorID); err != nil {
		return nil, err
	}
	return s.books.Search(ctx, repository.BookFilter{AuthorID: authorID})
}

// ListBooksByCategory は指定カテゴリの蔵書を返す。カテゴリが存在しない場合はNotFoundを返す。
func (s *Service) ListBooksByCategory(ctx context.Context, categoryID int64) ([]*model.Book, error) {
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.books.Search(ctx, repository.BookFilter{CategoryID: categoryID})
}

// ListBooksByReleaseYear は指定した発行年の蔵書を返す。
func (s *Service) ListBooksByReleaseYear(ctx context.Context, year int) ([]*model.Book, error) {
	return s.books.Search(ctx, repository.BookFilter{ReleaseYear: &year})
}

// SearchBooks はタイトル・著者名・カテゴリ名の部分一致と発行年で蔵書を検索する。
func (s *Service) SearchBooks(ctx context.Context, criteria model.BookSearchCriteria) ([]*model.Book, error) {
	return s.books.Search(ctx, repository.BookFilter{
		TitleContains:        criteria.Title,
		AuthorNameContains:   criteria.AuthorName,
		CategoryNameContains: criteria.CategoryName,
		ReleaseYear:          criteria.ReleaseYear,
	})
}

// ListBorrowedBooks は貸出中の蔵書を返す。
func (s *Service) ListBorrowedBooks(ctx context.Context) ([]*model.Book, error) {
	borrowed := true
	return s.books.Search(ctx, repository.BookFilter{Borrowed: &borrowed})
}

// ListAvailableBooks は貸出可能な蔵書を返す。
func (s *Service) ListAvailableBooks(ctx context.Context) ([]*model.Book, error) {
	borrowed := false
	return s.books.Search(ctx, repository.BookFilter{Borrowed: &borrowed})
}

// UpdateBook は蔵書のタイトル・著者・カテゴリ・発行年を更新する。
// 貸出状態は貸出台帳が管理するため変更できない。
func (s *Service) UpdateBook(ctx context.Context, id int64, in model.BookInput) (*model.Book, error) {
	current, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	book, err := s.prepareBook(ctx, in)
	if err != nil {
		return nil, err
	}
	book.ID = current.ID
	book.CreatedAt = current.CreatedAt

	if book.Title != current.Title {
		other, err := s.books.FindByTitle(ctx, book.Title)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, model.NewDuplicateBookError(book.Title)
		}
	}

	if err := s.books.Update(ctx, book); err != nil {
		return nil, mapBookWriteError(err, book.Title)
	}

	slog.Info("book updated", slog.Int64("book_id", book.ID))
	return book, nil
}

// DeleteBook は蔵書を削除する。貸出履歴のある蔵書は削除できない。
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	if _, err := s.GetBook(ctx, id); err != nil {
		return err
	}

	hasHistory, err := s.books.HasBorrowHistory(ctx, id)
	if err != nil {
		return err
	}
	if hasHistory {
		return model.NewBookHasHistoryError(id)
	}

	deleted, err := s.books.Delete(ctx, id)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return model.NewBookHasHistoryError(id)
		}
		return err
	}
	if !deleted {
		return model.NewBookNotFoundError(id)
	}

	slog.Info("book deleted", slog.Int64("book_id", id))
	return nil
}

// prepareBook は入力を検証し、著者・カテゴリを解決した蔵書を返す。
func (s *Service) prepareBook(ctx context.Context, in model.BookInput) (*model.Book, error) {
	title, err := s.cleanName(in.Title, "タイトル", maxTitleLength)
	if err != nil {
		return nil, err
	}
	if in.ReleaseYear < 0 || in.ReleaseYear > s.now().Year() {
		return nil, model.NewValidationError(
			fmt.Sprintf("発行年は0から%dの範囲で指定してください", s.now().Year()))
	}

	author, err := s.GetAuthor(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}
	category, err := s.GetCategory(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}

	return &model.Book{
		Title:        title,
		AuthorID:     author.ID,
		AuthorName:   author.Name,
		CategoryID:   category.ID,
		CategoryName: category.Name,
		ReleaseYear:  in.ReleaseYear,
	}, nil
}

// cleanName はマークアップを除去した名前を返す。空または長すぎる場合はValidationを返す。
func (s *Service) cleanName(raw, field string, maxLen int) (string, error) {
	name := s.sanitizer.Sanitize(raw)
	if name == "" {
		return "", model.NewValidationError(field + "は必須です")
	}
	if utf8.RuneCountInString(name) > maxLen {
		return "", model.NewValidationError(fmt.Sprintf("%sは%d文字以内で入力してください", field, maxLen))
	}
	return name, nil
}

func mapBookWriteError(err error, title string) error {
	switch {
	case repository.IsUniqueViolation(err):
		return model.NewDuplicateBookError(title)
	case repository.IsForeignKeyViolation(err):
		return model.NewValidationError("著者またはカテゴリが存在しません")
	default:
		return err
	}
}
