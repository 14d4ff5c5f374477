// Package borrow は貸出台帳を管理し、貸出・返却の業務ルールを保証する。
//
// 不変条件:
//   - 1冊の蔵書に対する未返却の貸出記録は高々1件
//   - 蔵書の貸出中フラグは未返却の貸出記録が存在する場合に限りtrue
//   - 1人の利用者が同時に借りられるのはMaxActiveBorrows冊まで
//   - 貸出記録は返却時に1度だけ更新され、削除・再オープンされない
package borrow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/libman/internal/metrics"
	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// MaxActiveBorrows は1人の利用者が同時に借りられる冊数の上限。
const MaxActiveBorrows = 5

// BookFinder は蔵書の存在確認に使うインターフェース。
type BookFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Book, error)
}

// UserFinder は利用者の存在確認に使うインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Service は貸出台帳に関するビジネスロジックを提供する。
// 呼び出し元の利用者IDは常に引数で明示的に受け取る。
type Service struct {
	ledger   repository.LedgerStore
	borrows  repository.BorrowRepository
	books    BookFinder
	users    UserFinder
	recorder metrics.LedgerRecorder
	now      func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	ledger repository.LedgerStore,
	borrows repository.BorrowRepository,
	books BookFinder,
	users UserFinder,
	recorder metrics.LedgerRecorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		ledger:   ledger,
		borrows:  borrows,
		books:    books,
		users:    users,
		recorder: recorder,
		now:      time.Now,
	}
}

// Borrow は利用者に蔵書を貸し出す。
//
// 利用者行と蔵書行をロックしたうえで、蔵書・利用者の存在、貸出上限、貸出状態を順に確認し、
// 貸出記録の作成と貸出中フラグの更新を同一トランザクションで行う。
func (s *Service) Borrow(ctx context.Context, userID, bookID int64) (*model.BorrowView, error) {
	var view *model.BorrowView

	err := s.ledger.WithinLedgerTx(ctx, func(tx repository.LedgerTx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		book, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return model.NewBookNotFoundError(bookID)
		}
		if user == nil {
			return model.NewUserNotFoundError()
		}

		open, err := tx.CountOpenByUser(ctx, userID)
		if err != nil {
			return err
		}
		if open >= MaxActiveBorrows {
			return model.NewBorrowLimitError(MaxActiveBorrows)
		}
		if book.Borrowed {
			return model.NewBookAlreadyBorrowedError(bookID)
		}

		record := &model.BorrowRecord{
			BookID:     bookID,
			UserID:     userID,
			BorrowDate: s.today(),
			Returned:   false,
		}
		if err := tx.InsertBorrow(ctx, record); err != nil {
			if repository.IsUniqueViolation(err) {
				return model.NewBookAlreadyBorrowedError(bookID)
			}
			return err
		}
		if err := tx.SetBookBorrowed(ctx, bookID, true); err != nil {
			return err
		}

		view = &model.BorrowView{
			BorrowRecord: *record,
			BookTitle:    book.Title,
			UserName:     user.Name,
		}
		return nil
	})
	if err != nil {
		s.recordRejection("borrow", err)
		return nil, err
	}

	slog.Info("book borrowed",
		slog.Int64("borrow_record_id", view.ID),
		slog.Int64("user_id", userID),
		slog.Int64("book_id", bookID),
	)
	s.recorder.RecordBorrow()
	return view, nil
}

// Return は貸出記録を返却済みにする。
// 借りた本人以外はForbidden、返却済みの記録はConflictとなる。
func (s *Service) Return(ctx context.Context, recordID, requesterID int64) (*model.BorrowView, error) {
	var view *model.BorrowView

	err := s.ledger.WithinLedgerTx(ctx, func(tx repository.LedgerTx) error {
		record, err := tx.LockBorrow(ctx, recordID)
		if err != nil {
			return err
		}
		if record == nil {
			return model.NewBorrowRecordNotFoundError(recordID)
		}
		if record.UserID != requesterID {
			return model.NewNotRecordOwnerError()
		}
		if record.Returned {
			return model.NewAlreadyReturnedError(recordID)
		}

		if err := tx.MarkReturned(ctx, recordID, s.today()); err != nil {
			return err
		}
		if err := tx.SetBookBorrowed(ctx, record.BookID, false); err != nil {
			return err
		}

		view, err = tx.View(ctx, recordID)
		if err != nil {
			return err
		}
		if view == nil {
			return fmt.Errorf("borrow record %d vanished during return", recordID)
		}
		return nil
	})
	if err != nil {
		s.recordRejection("return", err)
		return nil, err
	}

	slog.Info("book returned",
		slog.Int64("borrow_record_id", recordID),
		slog.Int64("user_id", requesterID),
		slog.Int64("book_id", view.BookID),
	)
	s.recorder.RecordReturn()
	return view, nil
}

// Get は指定IDの貸出記録を返す。
func (s *Service) Get(ctx context.Context, recordID int64) (*model.BorrowView, error) {
	view, err := s.borrows.FindViewByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, model.NewBorrowRecordNotFoundError(recordID)
	}
	return view, nil
}

// ListActiveForUser は利用者の未返却の貸出記録を返す。
func (s *Service) ListActiveForUser(ctx context.Context, userID int64) ([]*model.BorrowView, error) {
	returned := false
	return s.borrows.ListViews(ctx, repository.BorrowFilter{UserID: userID, Returned: &returned})
}

// ListHistoryForUser は利用者の全ての貸出記録を返す。
func (s *Service) ListHistoryForUser(ctx context.Context, userID int64) ([]*model.BorrowView, error) {
	return s.borrows.ListViews(ctx, repository.BorrowFilter{UserID: userID})
}

// ListAllActive は全利用者の未返却の貸出記録を返す。
func (s *Service) ListAllActive(ctx context.Context) ([]*model.BorrowView, error) {
	returned := false
	return s.borrows.ListViews(ctx, repository.BorrowFilter{Returned: &returned})
}

// ListAllReturned は全利用者の返却済みの貸出記録を返す。
func (s *Service) ListAllReturned(ctx context.Context) ([]*model.BorrowView, error) {
	returned := true
	return s.borrows.ListViews(ctx, repository.BorrowFilter{Returned: &returned})
}

// ListByBook は蔵書の貸出履歴を返す。蔵書が存在しない場合はNotFoundを返す。
func (s *Service) ListByBook(ctx context.Context, bookID int64) ([]*model.BorrowView, error) {
	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, model.NewBookNotFoundError(bookID)
	}
	return s.borrows.ListViews(ctx, repository.BorrowFilter{BookID: bookID})
}

// ListByUser は利用者の貸出履歴を返す。利用者が存在しない場合はNotFoundを返す。
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*model.BorrowView, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return s.borrows.ListViews(ctx, repository.BorrowFilter{UserID: userID})
}

// today は貸出日・返却日に使うUTCの日付を返す。
func (s *Service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) recordRejection(operation string, err error) {
	if kind := model.KindOf(err); kind != "" {
		s.recorder.RecordLedgerRejection(operation, string(kind))
		return
	}
	slog.Error("ledger operation failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
