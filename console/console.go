// Package console runs the interactive menus on top of a LibraryManager.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"library-circulation/library"
)

// PasswordReader prompts for and returns a password.
type PasswordReader func(prompt string) (string, error)

// Console is one interactive session over in/out.
type Console struct {
	sc  *bufio.Scanner
	out io.Writer
	mgr *library.LibraryManager
	log *zap.Logger

	readPassword PasswordReader

	title lipgloss.Style
	fail  lipgloss.Style
}

// Option configures a Console.
type Option func(*Console)

// WithPasswordReader replaces the plain line read used for passwords.
func WithPasswordReader(r PasswordReader) Option { return func(c *Console) { c.readPassword = r } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Console) { c.log = l } }

// New builds a console reading commands from in and writing to out.
func New(in io.Reader, out io.Writer, mgr *library.LibraryManager, opts ...Option) *Console {
	r := lipgloss.NewRenderer(out)
	c := &Console{
		sc:    bufio.NewScanner(in),
		out:   out,
		mgr:   mgr,
		log:   zap.NewNop(),
		title: r.NewStyle().Bold(true),
		fail:  r.NewStyle().Foreground(lipgloss.Color("9")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run shows the main menu until Exit is chosen or input ends.
func (c *Console) Run() {
	for {
		c.heading("LIBRARY MANAGEMENT SYSTEM")
		c.println("1. Login as Student")
		c.println("2. Login as Faculty")
		c.println("3. Login as Librarian")
		c.println("4. Exit")
		choice, ok := c.readChoice()
		if !ok {
			return
		}

		switch choice {
		case 1:
			c.login(library.RoleStudent)
		case 2:
			c.login(library.RoleFaculty)
		case 3:
			c.login(library.RoleLibrarian)
		case 4:
			c.println("Exiting program.")
			return
		default:
			c.println("Invalid choice.")
		}
	}
}

func (c *Console) login(role library.Role) {
	id, ok := c.readInt("Enter user id: ")
	if !ok {
		return
	}
	password, err := c.password("Enter password: ")
	if err != nil {
		c.println("Invalid credentials.")
		return
	}
	user, err := c.mgr.Authenticate(role, id, password)
	if err != nil {
		c.println("Invalid credentials.")
		return
	}

	session := uuid.NewString()
	log := c.log.With(zap.String("session", session), zap.Int("user_id", user.ID), zap.String("role", string(role)))
	log.Info("session started")
	c.printf("Login successful. Welcome %s!\n", user.Name)

	c.dashboard(user, c.menuFor(user))
	log.Info("session ended")
}

// item is one numbered dashboard entry. A nil run means logout.
type item struct {
	label string
	run   func(u library.User)
}

// dashboard loops over a role menu until the logout entry is picked.
func (c *Console) dashboard(u library.User, items []item) {
	for {
		c.heading(fmt.Sprintf("%s DASHBOARD (%s)", strings.ToUpper(string(u.Role)), u.Name))
		for i, it := range items {
			c.printf("%d. %s\n", i+1, it.label)
		}
		choice, ok := c.readChoice()
		if !ok {
			return
		}
		if choice < 1 || choice > len(items) {
			c.println("Invalid option. Try again.")
			continue
		}
		it := items[choice-1]
		if it.run == nil {
			c.println("Logging out...")
			return
		}
		it.run(u)
	}
}

func (c *Console) menuFor(u library.User) []item {
	switch u.Role {
	case library.RoleStudent:
		return []item{
			{"View Available Books", c.viewAvailable},
			{"Borrow a Book", c.borrow},
			{"Return a Book", c.returnBook},
			{"View Borrowed Books", c.viewBorrowed},
			{"Check Fine Amount", c.checkFine},
			{"Pay Fine", c.payFine},
			{"Reserve a Book", c.reserve},
			{"Logout", nil},
		}
	case library.RoleFaculty:
		return []item{
			{"View Available Books", c.viewAvailable},
			{"Borrow a Book", c.borrow},
			{"Return a Book", c.returnBook},
			{"View Borrowed Books", c.viewBorrowed},
			{"Check Borrowing Status", c.borrowingStatus},
			{"Reserve a Book", c.reserve},
			{"Logout", nil},
		}
	default:
		return []item{
			{"Add a New Book", c.addBook},
			{"Remove a Book", c.removeBook},
			{"Update Book Information", c.updateBook},
			{"Add a New User", c.addUser},
			{"Remove a User", c.removeUser},
			{"View All Books", c.viewAllBooks},
			{"View All Users", c.viewAllUsers},
			{"Logout", nil},
		}
	}
}

// ------------------ Input helpers ------------------

func (c *Console) line() (string, bool) {
	if !c.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.sc.Text()), true
}

func (c *Console) prompt(p string) (string, bool) {
	fmt.Fprint(c.out, p)
	return c.line()
}

func (c *Console) readChoice() (int, bool) {
	for {
		s, ok := c.prompt("Enter your choice: ")
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			c.println("Invalid choice.")
			continue
		}
		return n, true
	}
}

// readInt prompts once; a non-number is reported and yields ok=false.
func (c *Console) readInt(p string) (int, bool) {
	s, ok := c.prompt(p)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		c.printf("Invalid number: %s\n", s)
		return 0, false
	}
	return n, true
}

func (c *Console) password(p string) (string, error) {
	if c.readPassword != nil {
		return c.readPassword(p)
	}
	s, ok := c.prompt(p)
	if !ok {
		return "", io.EOF
	}
	return s, nil
}

// ------------------ Output helpers ------------------

func (c *Console) heading(s string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.title.Render("--- "+s+" ---"))
}

func (c *Console) println(s string) { fmt.Fprintln(c.out, s) }

func (c *Console) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }

// report prints a failed action. Policy errors are expected and only go to
// the screen; anything else is logged too.
func (c *Console) report(err error) {
	fmt.Fprintln(c.out, c.fail.Render("Error: "+err.Error()))
	if !isPolicyError(err) {
		c.log.Warn("action failed", zap.Error(err))
	}
}

func isPolicyError(err error) bool {
	for _, target := range []error{
		library.ErrNotFound,
		library.ErrDuplicateID,
		library.ErrBorrowLimitExceeded,
		library.ErrOutstandingFine,
		library.ErrOverdueLockout,
		library.ErrBookUnavailable,
		library.ErrAlreadyReserved,
		library.ErrNoReservationNeeded,
		library.ErrNoFineDue,
		library.ErrInvalidRole,
		library.ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func formatAmount(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
