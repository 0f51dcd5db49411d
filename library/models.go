package library

import (
	"fmt"
	"strings"
	"time"
)

// BookStatus is the circulation state of a single catalog entry.
type BookStatus string

const (
	StatusAvailable BookStatus = "Available"
	StatusBorrowed  BookStatus = "Borrowed"
	StatusReserved  BookStatus = "Reserved"
)

// ParseBookStatus accepts the spellings written by the stores.
func ParseBookStatus(s string) (BookStatus, error) {
	switch BookStatus(strings.TrimSpace(s)) {
	case StatusAvailable:
		return StatusAvailable, nil
	case StatusBorrowed:
		return StatusBorrowed, nil
	case StatusReserved:
		return StatusReserved, nil
	}
	return "", fmt.Errorf("unknown book status %q", s)
}

// Role tags a user account. The set is closed.
type Role string

const (
	RoleStudent   Role = "Student"
	RoleFaculty   Role = "Faculty"
	RoleLibrarian Role = "Librarian"
)

// ParseRole maps a stored or typed role name onto a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleFaculty:
		return RoleFaculty, nil
	case RoleLibrarian:
		return RoleLibrarian, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// NullID is a user id that may be absent, in the spirit of sql.NullInt64.
type NullID struct {
	ID    int
	Valid bool
}

// SomeID returns a present NullID.
func SomeID(id int) NullID { return NullID{ID: id, Valid: true} }

// Is reports whether n holds exactly id.
func (n NullID) Is(id int) bool { return n.Valid && n.ID == id }

// Book represents a catalog entry and its circulation state.
// ReservedBy is only ever set while Status is Borrowed or Reserved.
type Book struct {
	ID         int
	Title      string
	Author     string
	Publisher  string
	Year       int
	ISBN       string
	Status     BookStatus
	ReservedBy NullID
}

// NewBook returns an Available, unreserved book.
func NewBook(id int, title, author, publisher string, year int, isbn string) *Book {
	return &Book{
		ID:        id,
		Title:     title,
		Author:    author,
		Publisher: publisher,
		Year:      year,
		ISBN:      isbn,
		Status:    StatusAvailable,
	}
}

// AvailableFor reports whether userID may borrow the book right now: it is
// on the shelf, or it is being held for that user.
func (b *Book) AvailableFor(userID int) bool {
	return b.Status == StatusAvailable ||
		(b.Status == StatusReserved && b.ReservedBy.Is(userID))
}

func (b *Book) String() string {
	s := fmt.Sprintf("%d: %s by %s (%d) - %s", b.ID, b.Title, b.Author, b.Year, b.Status)
	if b.ReservedBy.Valid {
		s += fmt.Sprintf(" [Reserved by User ID %d]", b.ReservedBy.ID)
	}
	return s
}

// BorrowRecord is one outstanding loan held in an Account.
type BorrowRecord struct {
	BookID     int
	BorrowedAt time.Time
}

// Account is the per-user ledger: outstanding loans in borrow order and the
// accumulated fine.
type Account struct {
	Records []BorrowRecord
	Fine    float64
}

// Record returns the loan for bookID, if any.
func (a *Account) Record(bookID int) (BorrowRecord, bool) {
	for _, rec := range a.Records {
		if rec.BookID == bookID {
			return rec, true
		}
	}
	return BorrowRecord{}, false
}

func (a *Account) addRecord(rec BorrowRecord) { a.Records = append(a.Records, rec) }

func (a *Account) removeRecord(bookID int) bool {
	for i, rec := range a.Records {
		if rec.BookID == bookID {
			a.Records = append(a.Records[:i], a.Records[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Account) addFine(amount float64) { a.Fine += amount }
func (a *Account) clearFine()             { a.Fine = 0 }

// User is a registered account holder. Password is opaque and compared verbatim.
type User struct {
	ID       int
	Username string
	Password string
	Name     string
	Role     Role
	Account  Account
}

// NewUser returns a user with an empty account.
func NewUser(id int, username, password, name string, role Role) *User {
	return &User{ID: id, Username: username, Password: password, Name: name, Role: role}
}
