package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"library-circulation/library"
)

// SQLiteStore keeps the same books/users/loans contract as TextStore in a
// single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// schema migrations.
func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// Close closes the DB.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY,
            seq INTEGER NOT NULL,
            username TEXT NOT NULL,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            name TEXT NOT NULL,
            fine REAL NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY,
            seq INTEGER NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            publisher TEXT NOT NULL,
            year INTEGER NOT NULL,
            isbn TEXT NOT NULL,
            status TEXT NOT NULL,
            reserved_by INTEGER
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            book_id INTEGER NOT NULL,
            seq INTEGER NOT NULL,
            borrowed_at INTEGER NOT NULL,
            PRIMARY KEY (user_id, book_id)
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads every table into lib, users before loans.
func (s *SQLiteStore) Load(lib *library.Library) error {
	if err := s.loadBooks(lib); err != nil {
		return fmt.Errorf("load books: %w", err)
	}
	if err := s.loadUsers(lib); err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	if err := s.loadLoans(lib); err != nil {
		return fmt.Errorf("load loans: %w", err)
	}
	reconcileLoans(lib, s.log)
	return nil
}

func (s *SQLiteStore) loadBooks(lib *library.Library) error {
	rows, err := s.db.Query(`SELECT id,title,author,publisher,year,isbn,status,reserved_by FROM books ORDER BY seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b        library.Book
			status   string
			reserved sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Publisher, &b.Year, &b.ISBN, &status, &reserved); err != nil {
			return err
		}
		st, err := library.ParseBookStatus(status)
		if err != nil {
			s.log.Warn("skipping book row", zap.Int("book_id", b.ID), zap.Error(err))
			continue
		}
		nb := library.NewBook(b.ID, b.Title, b.Author, b.Publisher, b.Year, b.ISBN)
		nb.Status = st
		if reserved.Valid && st != library.StatusAvailable {
			nb.ReservedBy = library.SomeID(int(reserved.Int64))
		}
		if err := lib.Catalog.Add(nb); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) loadUsers(lib *library.Library) error {
	rows, err := s.db.Query(`SELECT id,username,password,role,name,fine FROM users ORDER BY seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                       int
			username, password, name string
			role                     string
			fine                     float64
		)
		if err := rows.Scan(&id, &username, &password, &role, &name, &fine); err != nil {
			return err
		}
		r, err := library.ParseRole(role)
		if err != nil {
			s.log.Warn("skipping user row", zap.Int("user_id", id), zap.Error(err))
			continue
		}
		u := library.NewUser(id, username, password, name, r)
		u.Account.Fine = fine
		if err := lib.Directory.Add(u); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) loadLoans(lib *library.Library) error {
	rows, err := s.db.Query(`SELECT user_id,book_id,borrowed_at FROM loans ORDER BY user_id, seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var userID, bookID int
		var ts int64
		if err := rows.Scan(&userID, &bookID, &ts); err != nil {
			return err
		}
		u := lib.Directory.FindByID(userID)
		if u == nil {
			continue
		}
		u.Account.Records = append(u.Account.Records, library.BorrowRecord{
			BookID:     bookID,
			BorrowedAt: time.Unix(ts, 0),
		})
	}
	return rows.Err()
}

// Save replaces the stored snapshot with lib in one transaction.
func (s *SQLiteStore) Save(lib *library.Library) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM loans`, `DELETE FROM books`, `DELETE FROM users`} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	addBook, err := tx.Prepare(`INSERT INTO books(id,seq,title,author,publisher,year,isbn,status,reserved_by) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer addBook.Close()
	for i, b := range lib.Catalog.All() {
		var reserved sql.NullInt64
		if b.ReservedBy.Valid {
			reserved = sql.NullInt64{Int64: int64(b.ReservedBy.ID), Valid: true}
		}
		if _, err := addBook.Exec(b.ID, i, b.Title, b.Author, b.Publisher, b.Year, b.ISBN, string(b.Status), reserved); err != nil {
			return fmt.Errorf("save book %d: %w", b.ID, err)
		}
	}

	addUser, err := tx.Prepare(`INSERT INTO users(id,seq,username,password,role,name,fine) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer addUser.Close()
	addLoan, err := tx.Prepare(`INSERT INTO loans(user_id,book_id,seq,borrowed_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer addLoan.Close()

	for i, u := range lib.Directory.All() {
		if _, err := addUser.Exec(u.ID, i, u.Username, u.Password, string(u.Role), u.Name, u.Account.Fine); err != nil {
			return fmt.Errorf("save user %d: %w", u.ID, err)
		}
		for j, rec := range u.Account.Records {
			if _, err := addLoan.Exec(u.ID, rec.BookID, j, rec.BorrowedAt.Unix()); err != nil {
				return fmt.Errorf("save loan %d/%d: %w", u.ID, rec.BookID, err)
			}
		}
	}

	return tx.Commit()
}
