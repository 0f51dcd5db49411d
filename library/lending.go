package library

import (
	"fmt"
	"time"
)

// ReturnReceipt describes what happened when a loan was closed.
type ReturnReceipt struct {
	BookID int
	// Days is the loan length in policy days.
	Days float64
	// Late is set when Days exceeded the borrow period.
	Late bool
	// OverdueDays is the whole number of days past the borrow period.
	OverdueDays int
	// Fine is the amount added to the account by this return.
	Fine float64
	// HeldFor is set when the book went back on hold for a reservation.
	HeldFor NullID
}

// Lending is the borrow/return/reserve state machine. It works on one
// Library and derives every limit from the caller's role policy.
type Lending struct {
	lib      *Library
	policies Policies
	now      func() time.Time
}

// NewLending builds an engine over lib. A nil clock means time.Now.
func NewLending(lib *Library, policies Policies, now func() time.Time) *Lending {
	if now == nil {
		now = time.Now
	}
	return &Lending{lib: lib, policies: policies, now: now}
}

// CanBorrow checks the account-level preconditions for a new loan, without
// looking at any particular book.
//
// Order of checks: overdue lockout, loan count, outstanding fine.
func (e *Lending) CanBorrow(u *User) error {
	p, err := e.policies.For(u.Role)
	if err != nil {
		return err
	}
	if p.OverdueLimitDays > 0 {
		now := e.now()
		for _, rec := range u.Account.Records {
			if ElapsedDays(rec.BorrowedAt, now) > float64(p.OverdueLimitDays) {
				return fmt.Errorf("book %d: %w", rec.BookID, ErrOverdueLockout)
			}
		}
	}
	if len(u.Account.Records) >= p.MaxBorrow {
		return fmt.Errorf("%w (%d of %d)", ErrBorrowLimitExceeded, len(u.Account.Records), p.MaxBorrow)
	}
	if p.BlockOnFine && u.Account.Fine > 0 {
		return ErrOutstandingFine
	}
	return nil
}

// Borrow lends bookID to u. The book must be Available, or Reserved for u;
// either way it ends up Borrowed with no reservation.
func (e *Lending) Borrow(u *User, bookID int) (BorrowRecord, error) {
	if err := e.CanBorrow(u); err != nil {
		return BorrowRecord{}, err
	}
	b := e.lib.Catalog.FindByID(bookID)
	if b == nil {
		return BorrowRecord{}, fmt.Errorf("book %d: %w", bookID, ErrBookNotFound)
	}
	if !b.AvailableFor(u.ID) {
		return BorrowRecord{}, fmt.Errorf("book %d: %w", bookID, ErrBookUnavailable)
	}

	rec := BorrowRecord{BookID: bookID, BorrowedAt: e.now()}
	b.Status = StatusBorrowed
	b.ReservedBy = NullID{}
	u.Account.addRecord(rec)
	return rec, nil
}

// Return closes the loan of bookID held by u, charging a fine when the
// policy has one. A book with a pending reservation goes to Reserved and
// keeps the reservation until the holder borrows it.
func (e *Lending) Return(u *User, bookID int) (ReturnReceipt, error) {
	rec, ok := u.Account.Record(bookID)
	if !ok {
		return ReturnReceipt{}, fmt.Errorf("book %d: %w", bookID, ErrRecordNotFound)
	}
	p, err := e.policies.For(u.Role)
	if err != nil {
		return ReturnReceipt{}, err
	}

	receipt := ReturnReceipt{BookID: bookID, Days: ElapsedDays(rec.BorrowedAt, e.now())}
	if receipt.Days > float64(p.BorrowPeriodDays) {
		receipt.Late = true
		receipt.OverdueDays = int(receipt.Days - float64(p.BorrowPeriodDays))
		receipt.Fine = float64(receipt.OverdueDays) * p.FinePerDay
	}

	u.Account.removeRecord(bookID)
	if receipt.Fine > 0 {
		u.Account.addFine(receipt.Fine)
	}
	if b := e.lib.Catalog.FindByID(bookID); b != nil {
		if b.ReservedBy.Valid {
			b.Status = StatusReserved
			receipt.HeldFor = b.ReservedBy
		} else {
			b.Status = StatusAvailable
		}
	}
	return receipt, nil
}

// Reserve places u's claim on a borrowed, unclaimed book.
func (e *Lending) Reserve(u *User, bookID int) error {
	if _, err := e.policies.For(u.Role); err != nil {
		return err
	}
	b := e.lib.Catalog.FindByID(bookID)
	if b == nil {
		return fmt.Errorf("book %d: %w", bookID, ErrBookNotFound)
	}
	switch {
	case b.ReservedBy.Valid:
		return fmt.Errorf("book %d: %w", bookID, ErrAlreadyReserved)
	case b.Status != StatusBorrowed:
		return fmt.Errorf("book %d: %w", bookID, ErrNoReservationNeeded)
	}
	b.ReservedBy = SomeID(u.ID)
	return nil
}

// PayFine clears u's fine and returns the amount paid.
func (e *Lending) PayFine(u *User) (float64, error) {
	if u.Account.Fine <= 0 {
		return 0, ErrNoFineDue
	}
	paid := u.Account.Fine
	u.Account.clearFine()
	return paid, nil
}
