package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/library"
	"library-circulation/storage"
)

// newManager returns a manager over a text store in a temp dir, seeded with
// two books, a student, a faculty member and a librarian.
func newManager(t *testing.T, opts ...library.Option) *library.LibraryManager {
	t.Helper()
	m := library.NewLibraryManager(storage.NewTextStore(t.TempDir(), nil), opts...)
	require.NoError(t, m.AddBook(library.Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Publisher: "Chilton", Year: 1965, ISBN: "isbn-1"}))
	require.NoError(t, m.AddBook(library.Book{ID: 2, Title: "Emma", Author: "Jane Austen", Publisher: "John Murray", Year: 1815, ISBN: "isbn-2"}))
	require.NoError(t, m.AddUser(library.User{ID: 10, Username: "alice", Password: "pw", Name: "Alice", Role: library.RoleStudent}))
	require.NoError(t, m.AddUser(library.User{ID: 20, Username: "carol", Password: "pw", Name: "Carol", Role: library.RoleFaculty}))
	require.NoError(t, m.Bootstrap(library.User{ID: 30, Username: "admin", Password: "root", Name: "Dave"}))
	return m
}

// session feeds lines to a console and returns everything it printed.
func session(t *testing.T, m *library.LibraryManager, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	New(in, &out, m).Run()
	return out.String()
}

func TestStudentBorrowAndReturn(t *testing.T) {
	m := newManager(t)
	out := session(t, m,
		"1", "10", "pw", // login as student
		"1",             // view available
		"2", "1",        // borrow Dune
		"4",             // view borrowed
		"3", "1",        // return Dune
		"5",             // check fine
		"6",             // pay fine
		"8",             // logout
		"4",             // exit
	)

	assert.Contains(t, out, "Login successful. Welcome Alice!")
	assert.Contains(t, out, "STUDENT DASHBOARD (Alice)")
	assert.Contains(t, out, "1: Dune by Frank Herbert (1965) - Available")
	assert.Contains(t, out, "Book borrowed successfully.")
	assert.Contains(t, out, "Book ID: 1 Borrowed on: ")
	assert.Contains(t, out, "Book returned on time.")
	assert.Contains(t, out, "Total fine: 0.")
	assert.Contains(t, out, "No fine to pay.")
	assert.Contains(t, out, "Logging out...")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "Exiting program."))

	b, err := m.GetBook(1)
	require.NoError(t, err)
	assert.Equal(t, library.StatusAvailable, b.Status)
}

func TestLateReturnReportsFine(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newManager(t, library.WithClock(func() time.Time { return now }))
	_, err := m.Borrow(10, 1)
	require.NoError(t, err)
	now = now.Add(200 * time.Second)

	out := session(t, m,
		"1", "10", "pw",
		"3", "1", // return late
		"2",      // borrow is refused
		"6",      // pay
		"8", "4",
	)
	assert.Contains(t, out, "Book returned overdue by 5 days. Fine incurred: 50.")
	assert.Contains(t, out, "Error: outstanding fine")
	assert.Contains(t, out, "Paying fine of 50. Fine cleared.")
}

func TestFacultyReserveAndStatus(t *testing.T) {
	m := newManager(t)
	_, err := m.Borrow(10, 2)
	require.NoError(t, err)

	out := session(t, m,
		"2", "20", "pw",
		"6", "2", // reserve Emma
		"6", "1", // Dune is on the shelf
		"5",      // borrowing status
		"3", "2", // not ours to return
		"7", "4",
	)
	assert.Contains(t, out, "FACULTY DASHBOARD (Carol)")
	assert.Contains(t, out, "Book reserved successfully.")
	assert.Contains(t, out, library.ErrNoReservationNeeded.Error())
	assert.Contains(t, out, "Currently borrowed: 0 of 5 books.")
	assert.Contains(t, out, "Book not found in your borrowed list.")

	receipt, err := m.Return(10, 2)
	require.NoError(t, err)
	assert.Equal(t, library.SomeID(20), receipt.HeldFor)
}

func TestInvalidCredentialsAndChoices(t *testing.T) {
	m := newManager(t)
	out := session(t, m,
		"9",               // invalid main choice
		"abc",             // not a number
		"1", "10", "nope", // bad password
		"3", "10", "pw",   // student id as librarian
		"1", "abc",        // bad user id
		"4",
	)
	assert.Contains(t, out, "Invalid choice.")
	assert.Equal(t, 2, strings.Count(out, "Invalid credentials."))
	assert.Contains(t, out, "Invalid number: abc")
	assert.NotContains(t, out, "Login successful")
}

func TestLibrarianSession(t *testing.T) {
	m := newManager(t)
	out := session(t, m,
		"3", "30", "root",
		"1", "3", "Ulysses", "James Joyce", "Shakespeare and Company", "1922", "isbn-3", // add book
		"1", "1",                                                                        // duplicate id
		"3", "3", "Ulysses Annotated",                                                   // update title
		"4", "11", "bob", "secret", "Student", "Bob",                                    // add user
		"4", "12", "eve", "secret", "Janitor", "Eve",                                    // bad role
		"6",                                                                             // view all books
		"7",                                                                             // view all users
		"9",                                                                             // out of range
		"8", "4",
	)

	assert.Contains(t, out, "LIBRARIAN DASHBOARD (Dave)")
	assert.Contains(t, out, "New book added: Ulysses")
	assert.Contains(t, out, "Book with ID 1 already exists. Cannot add duplicate book.")
	assert.Contains(t, out, "Book 3 updated to: Ulysses Annotated")
	assert.Contains(t, out, "New user added: bob (Student)")
	assert.Contains(t, out, "Invalid role. User not added.")
	assert.Contains(t, out, "Ulysses Annotated")
	assert.Contains(t, out, "11 - bob (Student) - Bob")
	assert.Contains(t, out, "Invalid option. Try again.")

	_, err := m.Authenticate(library.RoleStudent, 11, "secret")
	assert.NoError(t, err)
	_, err = m.GetUser(12)
	assert.ErrorIs(t, err, library.ErrUserNotFound)
}

func TestLibrarianRemovesUserAndBook(t *testing.T) {
	m := newManager(t)
	_, err := m.Borrow(10, 1)
	require.NoError(t, err)

	out := session(t, m,
		"3", "30", "root",
		"2", "1",  // on loan, refused
		"5", "10", // remove alice, Dune goes back
		"2", "1",  // now removable
		"8", "4",
	)
	assert.Contains(t, out, "Error: book 1 is on loan to user 10")
	assert.Contains(t, out, "User 10 removed.")
	assert.Contains(t, out, "Book 1 removed.")

	_, err = m.GetBook(1)
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	m := newManager(t)
	out := session(t, m, "1", "10", "pw", "2")
	assert.Contains(t, out, "Login successful.")
}

func TestPasswordReaderOption(t *testing.T) {
	m := newManager(t)
	var prompts []string
	reader := func(p string) (string, error) {
		prompts = append(prompts, p)
		return "pw", nil
	}

	var out bytes.Buffer
	New(strings.NewReader("1\n10\n8\n4\n"), &out, m, WithPasswordReader(reader)).Run()

	assert.Equal(t, []string{"Enter password: "}, prompts)
	assert.Contains(t, out.String(), "Welcome Alice!")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmno", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

func TestLateReturnMessageFollowsPolicy(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newManager(t, library.WithClock(func() time.Time { return now }))
	_, err := m.Borrow(10, 1)
	require.NoError(t, err)
	_, err = m.Borrow(20, 2)
	require.NoError(t, err)

	// 15.5 days: past the student period but not a whole day over.
	now = now.Add(155 * time.Second)
	out := session(t, m,
		"1", "10", "pw",
		"3", "1",
		"8", "4",
	)
	assert.Contains(t, out, "Book returned overdue by 0 days. Fine incurred: 0.")
	assert.NotContains(t, out, "Book returned late.")

	// 45.5 days for faculty, who are never fined.
	now = now.Add(300 * time.Second)
	out = session(t, m,
		"2", "20", "pw",
		"3", "2",
		"7", "4",
	)
	assert.Contains(t, out, "Book returned late. Overdue by 15 days.")
	assert.NotContains(t, out, "Fine incurred")
}
