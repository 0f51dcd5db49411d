package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"library-circulation/library"
)

const (
	booksFile = "books.txt"
	usersFile = "users.txt"
	loansFile = "fines.txt"

	noReservation = -1
	fineMarker    = "FINE"
)

// TextStore keeps the library in three comma-delimited files under dir:
//
//	books.txt  id,title,author,publisher,year,isbn,status,reservedBy
//	users.txt  id,username,password,role,name
//	fines.txt  userId,bookId,borrowEpochSeconds  and  userId,FINE,amount
//
// Lines that do not parse are skipped with a warning.
type TextStore struct {
	dir string
	log *zap.Logger
}

// NewTextStore returns a store rooted at dir. The directory is created on
// first save.
func NewTextStore(dir string, log *zap.Logger) *TextStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &TextStore{dir: dir, log: log}
}

// Close is a no-op.
func (s *TextStore) Close() error { return nil }

// Load reads books, then users, then loans and fines into lib. A missing
// file leaves that part empty. Loan lines for unknown users are dropped, and
// loans are reconciled with book status afterwards.
func (s *TextStore) Load(lib *library.Library) error {
	if err := s.readLines(booksFile, func(n int, fields []string) {
		b, err := parseBook(fields)
		if err == nil {
			err = lib.Catalog.Add(b)
		}
		if err != nil {
			s.skip(booksFile, n, err)
		}
	}); err != nil {
		return err
	}

	if err := s.readLines(usersFile, func(n int, fields []string) {
		u, err := parseUser(fields)
		if err == nil {
			err = lib.Directory.Add(u)
		}
		if err != nil {
			s.skip(usersFile, n, err)
		}
	}); err != nil {
		return err
	}

	if err := s.readLines(loansFile, func(n int, fields []string) {
		if err := applyLoanLine(lib, fields); err != nil {
			s.skip(loansFile, n, err)
		}
	}); err != nil {
		return err
	}
	reconcileLoans(lib, s.log)
	return nil
}

// Save rewrites all three files.
func (s *TextStore) Save(lib *library.Library) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var books strings.Builder
	for _, b := range lib.Catalog.All() {
		reserved := noReservation
		if b.ReservedBy.Valid {
			reserved = b.ReservedBy.ID
		}
		fmt.Fprintf(&books, "%d,%s,%s,%s,%d,%s,%s,%d\n",
			b.ID, b.Title, b.Author, b.Publisher, b.Year, b.ISBN, b.Status, reserved)
	}

	var users, loans strings.Builder
	for _, u := range lib.Directory.All() {
		fmt.Fprintf(&users, "%d,%s,%s,%s,%s\n", u.ID, u.Username, u.Password, u.Role, u.Name)
		for _, rec := range u.Account.Records {
			fmt.Fprintf(&loans, "%d,%d,%d\n", u.ID, rec.BookID, rec.BorrowedAt.Unix())
		}
		fmt.Fprintf(&loans, "%d,%s,%s\n", u.ID, fineMarker, strconv.FormatFloat(u.Account.Fine, 'f', -1, 64))
	}

	for name, body := range map[string]string{
		booksFile: books.String(),
		usersFile: users.String(),
		loansFile: loans.String(),
	} {
		if err := os.WriteFile(filepath.Join(s.dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func (s *TextStore) readLines(name string, fn func(lineNo int, fields []string)) error {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("store file not found, starting empty", zap.String("file", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(n, strings.Split(line, ","))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (s *TextStore) skip(file string, line int, err error) {
	s.log.Warn("skipping malformed line", zap.String("file", file), zap.Int("line", line), zap.Error(err))
}

// parseBook accepts the current 8-field layout and the older 7-field one
// that predates reservations.
func parseBook(f []string) (*library.Book, error) {
	if len(f) != 8 && len(f) != 7 {
		return nil, fmt.Errorf("want 7 or 8 fields, got %d", len(f))
	}
	id, err := atoi(f[0])
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	year, err := atoi(f[4])
	if err != nil {
		return nil, fmt.Errorf("year: %w", err)
	}
	status, err := library.ParseBookStatus(f[6])
	if err != nil {
		return nil, err
	}

	b := library.NewBook(id, f[1], f[2], f[3], year, f[5])
	b.Status = status
	if len(f) == 8 {
		reserved, err := atoi(f[7])
		if err != nil {
			return nil, fmt.Errorf("reservedBy: %w", err)
		}
		if reserved >= 0 && status != library.StatusAvailable {
			b.ReservedBy = library.SomeID(reserved)
		}
	}
	return b, nil
}

func parseUser(f []string) (*library.User, error) {
	if len(f) != 5 {
		return nil, fmt.Errorf("want 5 fields, got %d", len(f))
	}
	id, err := atoi(f[0])
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	role, err := library.ParseRole(f[3])
	if err != nil {
		return nil, err
	}
	return library.NewUser(id, f[1], f[2], f[4], role), nil
}

// applyLoanLine folds one fines.txt line into the owning account. A FINE
// line replaces whatever fine was seen before for that user.
func applyLoanLine(lib *library.Library, f []string) error {
	if len(f) < 3 {
		return fmt.Errorf("want 3 fields, got %d", len(f))
	}
	userID, err := atoi(f[0])
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	u := lib.Directory.FindByID(userID)
	if u == nil {
		return nil
	}

	if strings.TrimSpace(f[1]) == fineMarker {
		amount, err := strconv.ParseFloat(strings.TrimSpace(f[2]), 64)
		if err != nil {
			return fmt.Errorf("fine: %w", err)
		}
		u.Account.Fine = amount
		return nil
	}

	bookID, err := atoi(f[1])
	if err != nil {
		return fmt.Errorf("book id: %w", err)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(f[2]), 10, 64)
	if err != nil {
		return fmt.Errorf("borrow time: %w", err)
	}
	if _, dup := u.Account.Record(bookID); dup {
		return fmt.Errorf("user %d already holds book %d", userID, bookID)
	}
	u.Account.Records = append(u.Account.Records, library.BorrowRecord{
		BookID:     bookID,
		BorrowedAt: time.Unix(ts, 0),
	})
	return nil
}

func atoi(s string) (int, error) { return strconv.Atoi(strings.TrimSpace(s)) }
