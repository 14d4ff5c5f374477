package borrow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// memLedger はメモリ上の貸出台帳。WithinLedgerTxは全体ロックで直列化し、
// fnがエラーを返した場合は開始時点の状態に戻す。
// 未返却記録の一意性は部分ユニークインデックスと同様にInsertBorrowで保証する。
type memLedger struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	books   map[int64]*model.Book
	records []*model.BorrowRecord // IDは添字+1
}

func newMemLedger() *memLedger {
	return &memLedger{
		users: make(map[int64]*model.User),
		books: make(map[int64]*model.Book),
	}
}

func (l *memLedger) addUser(id int64, name string) {
	l.users[id] = &model.User{ID: id, Name: name, Role: model.RoleUser, Active: true}
}

func (l *memLedger) addBook(id int64, title string) {
	l.books[id] = &model.Book{ID: id, Title: title}
}

type ledgerSnapshot struct {
	books   map[int64]model.Book
	records []model.BorrowRecord
}

func (l *memLedger) snapshot() ledgerSnapshot {
	s := ledgerSnapshot{books: make(map[int64]model.Book, len(l.books))}
	for id, b := range l.books {
		s.books[id] = *b
	}
	for _, r := range l.records {
		s.records = append(s.records, *r)
	}
	return s
}

func (l *memLedger) restore(s ledgerSnapshot) {
	for id, b := range s.books {
		copied := b
		l.books[id] = &copied
	}
	l.records = l.records[:0]
	for _, r := range s.records {
		copied := r
		l.records = append(l.records, &copied)
	}
}

func (l *memLedger) WithinLedgerTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.snapshot()
	if err := fn(&memLedgerTx{l: l}); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

func (l *memLedger) view(r *model.BorrowRecord) *model.BorrowView {
	v := &model.BorrowView{BorrowRecord: *r}
	if b, ok := l.books[r.BookID]; ok {
		v.BookTitle = b.Title
	}
	if u, ok := l.users[r.UserID]; ok {
		v.UserName = u.Name
	}
	return v
}

func (l *memLedger) FindViewByID(_ context.Context, id int64) (*model.BorrowView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 1 || int(id) > len(l.records) {
		return nil, nil
	}
	return l.view(l.records[id-1]), nil
}

func (l *memLedger) ListViews(_ context.Context, filter repository.BorrowFilter) ([]*model.BorrowView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	views := make([]*model.BorrowView, 0)
	for _, r := range l.records {
		if filter.UserID != 0 && r.UserID != filter.UserID {
			continue
		}
		if filter.BookID != 0 && r.BookID != filter.BookID {
			continue
		}
		if filter.Returned != nil && r.Returned != *filter.Returned {
			continue
		}
		views = append(views, l.view(r))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

// openRecordsByBook は蔵書ごとの未返却記録数を返す。
func (l *memLedger) openRecordsByBook() map[int64]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[int64]int)
	for _, r := range l.records {
		if !r.Returned {
			counts[r.BookID]++
		}
	}
	return counts
}

func (l *memLedger) bookBorrowed(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.books[id].Borrowed
}

type memLedgerTx struct {
	l *memLedger
}

func (t *memLedgerTx) LockUser(_ context.Context, id int64) (*model.User, error) {
	if u, ok := t.l.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (t *memLedgerTx) LockBook(_ context.Context, id int64) (*model.Book, error) {
	if b, ok := t.l.books[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

func (t *memLedgerTx) LockBorrow(_ context.Context, id int64) (*model.BorrowRecord, error) {
	if id < 1 || int(id) > len(t.l.records) {
		return nil, nil
	}
	copied := *t.l.records[id-1]
	return &copied, nil
}

func (t *memLedgerTx) CountOpenByUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, r := range t.l.records {
		if r.UserID == userID && !r.Returned {
			n++
		}
	}
	return n, nil
}

func (t *memLedgerTx) InsertBorrow(_ context.Context, record *model.BorrowRecord) error {
	for _, r := range t.l.records {
		if r.BookID == record.BookID && !r.Returned {
			return &pq.Error{Code: "23505"}
		}
	}
	record.ID = int64(len(t.l.records) + 1)
	copied := *record
	t.l.records = append(t.l.records, &copied)
	return nil
}

func (t *memLedgerTx) MarkReturned(_ context.Context, id int64, returnDate time.Time) error {
	r := t.l.records[id-1]
	r.Returned = true
	d := returnDate
	r.ReturnDate = &d
	return nil
}

func (t *memLedgerTx) SetBookBorrowed(_ context.Context, bookID int64, borrowed bool) error {
	t.l.books[bookID].Borrowed = borrowed
	return nil
}

func (t *memLedgerTx) View(_ context.Context, id int64) (*model.BorrowView, error) {
	if id < 1 || int(id) > len(t.l.records) {
		return nil, nil
	}
	return t.l.view(t.l.records[id-1]), nil
}

// memBooks / memUsers はmemLedgerの蔵書・利用者を参照するファインダー。
type memBooks struct{ l *memLedger }

func (f memBooks) FindByID(_ context.Context, id int64) (*model.Book, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if b, ok := f.l.books[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

type memUsers struct{ l *memLedger }

func (f memUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if u, ok := f.l.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

var (
	_ repository.LedgerStore      = (*memLedger)(nil)
	_ repository.BorrowRepository = (*memLedger)(nil)
	_ repository.LedgerTx         = (*memLedgerTx)(nil)
)
