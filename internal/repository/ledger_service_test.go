package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/hitoshi/libman/internal/borrow"
	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// borrow.Service をPostgreSQLの実装で組み立て、行ロックと部分ユニークインデックスの下での
// 貸出・返却の振る舞いを確認する。

func newLedgerService(db *sql.DB) *borrow.Service {
	return borrow.NewService(
		repository.NewPostgresLedgerStore(db),
		repository.NewPostgresBorrowRepo(db),
		repository.NewPostgresBookRepo(db),
		repository.NewPostgresUserRepo(db),
		nil,
	)
}

func seedReaders(t *testing.T, db *sql.DB, n int) []*model.User {
	t.Helper()
	repo := repository.NewPostgresUserRepo(db)
	users := make([]*model.User, n)
	for i := range users {
		u := &model.User{
			Name:         fmt.Sprintf("Reader %d", i),
			Email:        fmt.Sprintf("reader%d@example.com", i),
			PasswordHash: "hash",
			Role:         model.RoleUser,
			Active:       true,
		}
		if err := repo.Create(context.Background(), u); err != nil {
			t.Fatalf("ユーザー作成に失敗: %v", err)
		}
		users[i] = u
	}
	return users
}

func seedBooks(t *testing.T, db *sql.DB, n int) []*model.Book {
	t.Helper()
	ctx := context.Background()

	author := &model.Author{Name: "Frank Herbert"}
	if err := repository.NewPostgresAuthorRepo(db).Create(ctx, author); err != nil {
		t.Fatalf("著者作成に失敗: %v", err)
	}
	category := &model.Category{Name: "SF"}
	if err := repository.NewPostgresCategoryRepo(db).Create(ctx, category); err != nil {
		t.Fatalf("カテゴリ作成に失敗: %v", err)
	}

	repo := repository.NewPostgresBookRepo(db)
	books := make([]*model.Book, n)
	for i := range books {
		b := &model.Book{
			Title:       fmt.Sprintf("Dune vol.%d", i+1),
			AuthorID:    author.ID,
			CategoryID:  category.ID,
			ReleaseYear: 1965,
		}
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("蔵書作成に失敗: %v", err)
		}
		books[i] = b
	}
	return books
}

// assertBorrowedFlagMatchesLedger は貸出中フラグが未返却記録の有無と一致することを確認し、
// 未返却記録の件数を返す。
func assertBorrowedFlagMatchesLedger(t *testing.T, db *sql.DB, bookID int64) int {
	t.Helper()

	var borrowed bool
	if err := db.QueryRow(`SELECT is_borrowed FROM books WHERE id = $1`, bookID).Scan(&borrowed); err != nil {
		t.Fatalf("蔵書の取得に失敗: %v", err)
	}
	var open int
	if err := db.QueryRow(
		`SELECT count(*) FROM borrow_records WHERE book_id = $1 AND NOT is_returned`, bookID,
	).Scan(&open); err != nil {
		t.Fatalf("未返却記録の集計に失敗: %v", err)
	}

	if open > 1 {
		t.Errorf("book %d has %d open records, want at most 1", bookID, open)
	}
	if borrowed != (open == 1) {
		t.Errorf("book %d is_borrowed = %v but open records = %d", bookID, borrowed, open)
	}
	return open
}

// runConcurrently はfnをn個のgoroutineで同時に開始し、各結果のエラーを返す。
func runConcurrently(n int, fn func(i int) error) []error {
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func countOutcomes(t *testing.T, errs []error, wantKind model.ErrorKind) int {
	t.Helper()
	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case model.KindOf(err) != wantKind:
			t.Errorf("error kind = %q (err=%v), want %q", model.KindOf(err), err, wantKind)
		}
	}
	return succeeded
}

func TestBorrowService_Postgres_ConcurrentBorrowSameBook(t *testing.T) {
	db := repository.SetupIntegrationDB(t)
	const borrowers = 8
	users := seedReaders(t, db, borrowers)
	book := seedBooks(t, db, 1)[0]
	svc := newLedgerService(db)

	errs := runConcurrently(borrowers, func(i int) error {
		_, err := svc.Borrow(context.Background(), users[i].ID, book.ID)
		return err
	})

	if succeeded := countOutcomes(t, errs, model.KindConflict); succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
	if open := assertBorrowedFlagMatchesLedger(t, db, book.ID); open != 1 {
		t.Errorf("open records = %d, want 1", open)
	}
}

func TestBorrowService_Postgres_ConcurrentReturn(t *testing.T) {
	db := repository.SetupIntegrationDB(t)
	reader := seedReaders(t, db, 1)[0]
	book := seedBooks(t, db, 1)[0]
	svc := newLedgerService(db)
	ctx := context.Background()

	record, err := svc.Borrow(ctx, reader.ID, book.ID)
	if err != nil {
		t.Fatalf("Borrow() error = %v", err)
	}

	const attempts = 6
	errs := runConcurrently(attempts, func(int) error {
		_, err := svc.Return(ctx, record.ID, reader.ID)
		return err
	})

	if succeeded := countOutcomes(t, errs, model.KindConflict); succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
	if open := assertBorrowedFlagMatchesLedger(t, db, book.ID); open != 0 {
		t.Errorf("open records = %d, want 0", open)
	}

	view, err := repository.NewPostgresBorrowRepo(db).FindViewByID(ctx, record.ID)
	if err != nil || view == nil {
		t.Fatalf("FindViewByID = %+v, %v", view, err)
	}
	if !view.Returned || view.ReturnDate == nil {
		t.Errorf("view = %+v, want returned with return date", view)
	}
}

// 上限の1冊手前の利用者が2冊を同時に借りようとしても、利用者行のロックで直列化され1冊だけ成功する。
func TestBorrowService_Postgres_ConcurrentBorrowAtLimit(t *testing.T) {
	db := repository.SetupIntegrationDB(t)
	reader := seedReaders(t, db, 1)[0]
	books := seedBooks(t, db, borrow.MaxActiveBorrows+1)
	svc := newLedgerService(db)
	ctx := context.Background()

	for _, b := range books[:borrow.MaxActiveBorrows-1] {
		if _, err := svc.Borrow(ctx, reader.ID, b.ID); err != nil {
			t.Fatalf("Borrow(%d) error = %v", b.ID, err)
		}
	}

	contested := books[borrow.MaxActiveBorrows-1:]
	errs := runConcurrently(len(contested), func(i int) error {
		_, err := svc.Borrow(ctx, reader.ID, contested[i].ID)
		return err
	})

	if succeeded := countOutcomes(t, errs, model.KindLimitExceeded); succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}

	var open int
	if err := db.QueryRow(
		`SELECT count(*) FROM borrow_records WHERE user_id = $1 AND NOT is_returned`, reader.ID,
	).Scan(&open); err != nil {
		t.Fatalf("未返却記録の集計に失敗: %v", err)
	}
	if open != borrow.MaxActiveBorrows {
		t.Errorf("open records = %d, want %d", open, borrow.MaxActiveBorrows)
	}
	for _, b := range contested {
		assertBorrowedFlagMatchesLedger(t, db, b.ID)
	}
}

func TestBorrowService_Postgres_ReturnByOtherUserIsForbidden(t *testing.T) {
	db := repository.SetupIntegrationDB(t)
	readers := seedReaders(t, db, 2)
	book := seedBooks(t, db, 1)[0]
	svc := newLedgerService(db)
	ctx := context.Background()

	record, err := svc.Borrow(ctx, readers[0].ID, book.ID)
	if err != nil {
		t.Fatalf("Borrow() error = %v", err)
	}

	_, err = svc.Return(ctx, record.ID, readers[1].ID)
	if model.KindOf(err) != model.KindForbidden {
		t.Errorf("error kind = %q (err=%v), want %q", model.KindOf(err), err, model.KindForbidden)
	}
	if open := assertBorrowedFlagMatchesLedger(t, db, book.ID); open != 1 {
		t.Errorf("open records = %d, want 1", open)
	}
}
