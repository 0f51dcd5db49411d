package library

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source for the engine.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *clock) advanceDays(days float64) {
	c.advance(time.Duration(days*SecondsPerDay) * time.Second)
}

func newClock() *clock { return &clock{t: time.Unix(1_700_000_000, 0)} }

// seedLibrary returns a library with books 1..5, two students, a faculty
// member and a librarian.
func seedLibrary(t *testing.T) *Library {
	t.Helper()
	lib := New()
	for i := 1; i <= 5; i++ {
		require.NoError(t, lib.Catalog.Add(NewBook(i, "Title", "Author", "Pub", 2000+i, "isbn")))
	}
	require.NoError(t, lib.Directory.Add(NewUser(10, "alice", "pw", "Alice", RoleStudent)))
	require.NoError(t, lib.Directory.Add(NewUser(11, "bob", "pw", "Bob", RoleStudent)))
	require.NoError(t, lib.Directory.Add(NewUser(20, "carol", "pw", "Carol", RoleFaculty)))
	require.NoError(t, lib.Directory.Add(NewUser(30, "dave", "pw", "Dave", RoleLibrarian)))
	return lib
}

func newEngine(t *testing.T) (*Lending, *Library, *clock) {
	t.Helper()
	lib := seedLibrary(t)
	c := newClock()
	return NewLending(lib, DefaultPolicies(), c.now), lib, c
}

// assertReservationInvariant checks that a reservation only exists on a
// book that is out or being held.
func assertReservationInvariant(t *testing.T, lib *Library) {
	t.Helper()
	for _, b := range lib.Catalog.All() {
		if b.ReservedBy.Valid {
			assert.Contains(t, []BookStatus{StatusBorrowed, StatusReserved}, b.Status, "book %d", b.ID)
		}
		if b.Status == StatusAvailable {
			assert.False(t, b.ReservedBy.Valid, "available book %d has a reservation", b.ID)
		}
	}
}

func TestBorrowAndReturnOnTime(t *testing.T) {
	e, lib, _ := newEngine(t)
	alice := lib.Directory.FindByID(10)

	rec, err := e.Borrow(alice, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.BookID)
	assert.Equal(t, StatusBorrowed, lib.Catalog.FindByID(1).Status)
	assert.Len(t, alice.Account.Records, 1)

	receipt, err := e.Return(alice, 1)
	require.NoError(t, err)
	assert.False(t, receipt.Late)
	assert.Zero(t, receipt.Fine)
	assert.Zero(t, alice.Account.Fine)
	assert.Empty(t, alice.Account.Records)
	assert.Equal(t, StatusAvailable, lib.Catalog.FindByID(1).Status)
	assertReservationInvariant(t, lib)
}

func TestStudentLateReturnFine(t *testing.T) {
	e, lib, c := newEngine(t)
	alice := lib.Directory.FindByID(10)

	_, err := e.Borrow(alice, 1)
	require.NoError(t, err)

	// 200 seconds is 20 policy days, five past the student period.
	c.advance(200 * time.Second)
	receipt, err := e.Return(alice, 1)
	require.NoError(t, err)

	assert.True(t, receipt.Late)
	assert.Equal(t, 5, receipt.OverdueDays)
	assert.Equal(t, 50.0, receipt.Fine)
	assert.Equal(t, 50.0, alice.Account.Fine)
}

func TestOverdueDaysAreTruncated(t *testing.T) {
	e, lib, c := newEngine(t)
	alice := lib.Directory.FindByID(10)

	_, err := e.Borrow(alice, 1)
	require.NoError(t, err)
	c.advance(179 * time.Second) // 17.9 days

	receipt, err := e.Return(alice, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.OverdueDays)
	assert.Equal(t, 20.0, receipt.Fine)
}

func TestReturnJustPastPeriodChargesNothing(t *testing.T) {
	e, lib, c := newEngine(t)
	alice := lib.Directory.FindByID(10)

	_, err := e.Borrow(alice, 1)
	require.NoError(t, err)
	c.advance(155 * time.Second) // 15.5 days: late, but zero whole days over

	receipt, err := e.Return(alice, 1)
	require.NoError(t, err)
	assert.True(t, receipt.Late)
	assert.Zero(t, receipt.OverdueDays)
	assert.Zero(t, receipt.Fine)
	assert.Zero(t, alice.Account.Fine)
}

func TestStudentFineBlocksBorrowing(t *testing.T) {
	e, lib, c := newEngine(t)
	alice := lib.Directory.FindByID(10)

	_, err := e.Borrow(alice, 1)
	require.NoError(t, err)
	c.advanceDays(20)
	_, err = e.Return(alice, 1)
	require.NoError(t, err)

	for _, id := range []int{1, 2, 3} {
		_, err = e.Borrow(alice, id)
		assert.ErrorIs(t, err, ErrOutstandingFine, "book %d", id)
	}
	assert.ErrorIs(t, e.CanBorrow(alice), ErrOutstandingFine)

	paid, err := e.PayFine(alice)
	require.NoError(t, err)
	assert.Equal(t, 50.0, paid)
	assert.Zero(t, alice.Account.Fine)

	_, err = e.Borrow(alice, 2)
	assert.NoError(t, err)
}

func TestPayFineWithoutFine(t *testing.T) {
	e, lib, _ := newEngine(t)
	_, err := e.PayFine(lib.Directory.FindByID(10))
	assert.ErrorIs(t, err, ErrNoFineDue)
}

func TestStudentBorrowLimit(t *testing.T) {
	e, lib, _ := newEngine(t)
	alice := lib.Directory.FindByID(10)

	for id := 1; id <= 3; id++ {
		_, err := e.Borrow(alice, id)
		require.NoError(t, err)
	}
	_, err := e.Borrow(alice, 4)
	assert.ErrorIs(t, err, ErrBorrowLimitExceeded)
	assert.Equal(t, StatusAvailable, lib.Catalog.FindByID(4).Status)
	assert.Len(t, alice.Account.Records, 3)
}

func TestLimitCheckedBeforeFine(t *testing.T) {
	e, lib, _ := newEngine(t)
	alice := lib.Directory.FindByID(10)
	for id := 1; id <= 3; id++ {
		_, err := e.Borrow(alice, id)
		require.NoError(t, err)
	}
	alice.Account.addFine(10)

	assert.ErrorIs(t, e.CanBorrow(alice), ErrBorrowLimitExceeded)
}

func TestFacultyLimitAndNoFines(t *testing.T) {
	e, lib, c := newEngine(t)
	carol := lib.Directory.FindByID(20)

	for id := 1; id <= 5; id++ {
		_, err := e.Borrow(carol, id)
		require.NoError(t, err)
	}
	require.NoError(t, lib.Catalog.Add(NewBook(6, "Six", "A", "P", 2006, "i")))
	_, err := e.Borrow(carol, 6)
	assert.ErrorIs(t, err, ErrBorrowLimitExceeded)

	c.advanceDays(45)
	receipt, err := e.Return(carol, 1)
	require.NoError(t, err)
	assert.True(t, receipt.Late)
	assert.Equal(t, 15, receipt.OverdueDays)
	assert.Zero(t, receipt.Fine)
	assert.Zero(t, carol.Account.Fine)
}

func TestFacultyOverdueLockout(t *testing.T) {
	e, lib, c := newEngine(t)
	carol := lib.Directory.FindByID(20)

	_, err := e.Borrow(carol, 1)
	require.NoError(t, err)

	c.advanceDays(60)
	_, err = e.Borrow(carol, 2)
	require.NoError(t, err, "exactly at the limit is still allowed")

	c.advance(time.Second)
	_, err = e.Borrow(carol, 3)
	assert.ErrorIs(t, err, ErrOverdueLockout)

	// Returning the old loan lifts the lockout.
	_, err = e.Return(carol, 1)
	require.NoError(t, err)
	_, err = e.Borrow(carol, 3)
	assert.NoError(t, err)
}

func TestLockoutCheckedBeforeLimit(t *testing.T) {
	e, lib, c := newEngine(t)
	carol := lib.Directory.FindByID(20)
	for id := 1; id <= 5; id++ {
		_, err := e.Borrow(carol, id)
		require.NoError(t, err)
	}
	c.advanceDays(61)
	assert.ErrorIs(t, e.CanBorrow(carol), ErrOverdueLockout)
}

func TestLibrarianCannotBorrowOrReserve(t *testing.T) {
	e, lib, _ := newEngine(t)
	dave := lib.Directory.FindByID(30)

	_, err := e.Borrow(dave, 1)
	assert.ErrorIs(t, err, ErrInvalidRole)

	alice := lib.Directory.FindByID(10)
	_, err = e.Borrow(alice, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, e.Reserve(dave, 1), ErrInvalidRole)
}

func TestBorrowUnknownAndUnavailableBooks(t *testing.T) {
	e, lib, _ := newEngine(t)
	alice := lib.Directory.FindByID(10)
	bob := lib.Directory.FindByID(11)

	_, err := e.Borrow(alice, 99)
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Borrow(alice, 1)
	require.NoError(t, err)
	_, err = e.Borrow(bob, 1)
	assert.ErrorIs(t, err, ErrBookUnavailable)
	_, err = e.Borrow(alice, 1)
	assert.ErrorIs(t, err, ErrBookUnavailable, "no second record for the same book")
	assert.Len(t, alice.Account.Records, 1)
}

func TestReturnWithoutRecord(t *testing.T) {
	e, lib, _ := newEngine(t)
	alice := lib.Directory.FindByID(10)
	bob := lib.Directory.FindByID(11)

	_, err := e.Return(alice, 1)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = e.Borrow(alice, 1)
	require.NoError(t, err)
	_, err = e.Return(bob, 1)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, StatusBorrowed, lib.Catalog.FindByID(1).Status)
}

func TestReserve(t *testing.T) {
	e, lib, _ := newEngine(t)
	alice := lib.Directory.FindByID(10)
	bob := lib.Directory.FindByID(11)
	carol := lib.Directory.FindByID(20)

	err := e.Reserve(bob, 1)
	assert.ErrorIs(t, err, ErrNoReservationNeeded)

	assert.ErrorIs(t, e.Reserve(bob, 99), ErrBookNotFound)

	_, err = e.Borrow(alice, 1)
	require.NoError(t, err)
	require.NoError(t, e.Reserve(bob, 1))

	b := lib.Catalog.FindByID(1)
	assert.Equal(t, StatusBorrowed, b.Status)
	assert.Equal(t, SomeID(11), b.ReservedBy)

	assert.ErrorIs(t, e.Reserve(carol, 1), ErrAlreadyReserved)
	assert.ErrorIs(t, e.Reserve(bob, 1), ErrAlreadyReserved)
	assertReservationInvariant(t, lib)
}

func TestReservationHoldsBookAfterReturn(t *testing.T) {
	e, lib, _ := newEngine(t)
	alice := lib.Directory.FindByID(10)
	bob := lib.Directory.FindByID(11)
	carol := lib.Directory.FindByID(20)

	_, err := e.Borrow(alice, 1)
	require.NoError(t, err)
	require.NoError(t, e.Reserve(bob, 1))

	receipt, err := e.Return(alice, 1)
	require.NoError(t, err)
	assert.Equal(t, SomeID(11), receipt.HeldFor)

	b := lib.Catalog.FindByID(1)
	assert.Equal(t, StatusReserved, b.Status)
	assert.Equal(t, SomeID(11), b.ReservedBy, "return keeps the reservation")
	assertReservationInvariant(t, lib)

	// Only the holder sees it or may take it.
	assert.NotContains(t, ids(lib.Catalog.ListAvailableFor(20)), 1)
	assert.Contains(t, ids(lib.Catalog.ListAvailableFor(11)), 1)
	_, err = e.Borrow(carol, 1)
	assert.ErrorIs(t, err, ErrBookUnavailable)
	assert.ErrorIs(t, e.Reserve(carol, 1), ErrAlreadyReserved)

	_, err = e.Borrow(bob, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, b.Status)
	assert.False(t, b.ReservedBy.Valid)
	assertReservationInvariant(t, lib)
}

func TestInvariantAcrossMixedOperations(t *testing.T) {
	e, lib, c := newEngine(t)
	users := []*User{
		lib.Directory.FindByID(10),
		lib.Directory.FindByID(11),
		lib.Directory.FindByID(20),
	}

	// A fixed pseudo-random schedule of operations; errors are expected and
	// ignored, the invariant must hold either way.
	for step := 0; step < 300; step++ {
		u := users[step%len(users)]
		bookID := (step*7)%5 + 1
		switch (step * 13) % 4 {
		case 0:
			_, _ = e.Borrow(u, bookID)
		case 1:
			_, _ = e.Return(u, bookID)
		case 2:
			_ = e.Reserve(u, bookID)
		case 3:
			_, _ = e.PayFine(u)
		}
		c.advanceDays(3)
		assertReservationInvariant(t, lib)

		// A book id is held by at most one account.
		holders := map[int]int{}
		for _, u := range lib.Directory.All() {
			for _, rec := range u.Account.Records {
				holders[rec.BookID]++
			}
		}
		for id, n := range holders {
			if n > 1 {
				t.Fatalf("step %d: book %d held by %d accounts", step, id, n)
			}
			if lib.Catalog.FindByID(id).Status != StatusBorrowed {
				t.Fatalf("step %d: held book %d is %s", step, id, lib.Catalog.FindByID(id).Status)
			}
		}
	}
}

func TestElapsedDays(t *testing.T) {
	base := time.Unix(1_000, 0)
	tests := []struct {
		name string
		to   time.Time
		want float64
	}{
		{"same instant", base, 0},
		{"one day", base.Add(10 * time.Second), 1},
		{"fractional", base.Add(25 * time.Second), 2.5},
		{"sub-second ignored", base.Add(9*time.Second + 900*time.Millisecond), 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ElapsedDays(base, tt.to), 1e-9)
		})
	}
}

func TestPoliciesFor(t *testing.T) {
	p := DefaultPolicies()

	s, err := p.For(RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, Policy{MaxBorrow: 3, BorrowPeriodDays: 15, FinePerDay: 10, BlockOnFine: true}, s)

	f, err := p.For(RoleFaculty)
	require.NoError(t, err)
	assert.Equal(t, Policy{MaxBorrow: 5, BorrowPeriodDays: 30, OverdueLimitDays: 60}, f)

	_, err = p.For(RoleLibrarian)
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("librarian policy: got %v, want ErrInvalidRole", err)
	}
}

func ids(books []*Book) []int {
	out := make([]int, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}
