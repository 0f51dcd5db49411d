package library

import (
	"errors"
	"fmt"
)

// Policy and lookup failures. All of them are recoverable and meant to be
// shown to the person at the console.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateID         = errors.New("id already exists")
	ErrBorrowLimitExceeded = errors.New("borrowing limit reached")
	ErrOutstandingFine     = errors.New("outstanding fine, please clear your fine before borrowing")
	ErrOverdueLockout      = errors.New("one of your loans is overdue beyond the allowed limit, cannot borrow new books")
	ErrBookUnavailable     = errors.New("book is not available for borrowing")
	ErrAlreadyReserved     = errors.New("book is already reserved")
	ErrNoReservationNeeded = errors.New("book is available, no need to reserve")
	ErrNoFineDue           = errors.New("no fine to pay")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidInput        = errors.New("invalid input")
)

// Lookup failures; each matches ErrNotFound with errors.Is.
var (
	ErrBookNotFound   = fmt.Errorf("book %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrRecordNotFound = fmt.Errorf("borrow record %w", ErrNotFound)
)
