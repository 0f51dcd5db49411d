package library

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LibraryManager is the façade the console talks to. It owns the aggregate,
// runs the lending engine over it, and rewrites the store after every
// change. One mutex covers the whole aggregate because a loan touches a
// book and an account together.
type LibraryManager struct {
	mu      sync.Mutex
	lib     *Library
	lending *Lending
	store   Store
	log     *zap.Logger

	policies Policies
	now      func() time.Time
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option { return func(m *LibraryManager) { m.log = l } }

// WithPolicies overrides the role policies.
func WithPolicies(p Policies) Option { return func(m *LibraryManager) { m.policies = p } }

// WithClock overrides the time source used for loans.
func WithClock(now func() time.Time) Option { return func(m *LibraryManager) { m.now = now } }

// NewLibraryManager loads the library from store. A store that cannot be
// read leaves the manager with an empty library and a logged warning.
func NewLibraryManager(store Store, opts ...Option) *LibraryManager {
	m := &LibraryManager{
		lib:      New(),
		store:    store,
		log:      zap.NewNop(),
		policies: DefaultPolicies(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lending = NewLending(m.lib, m.policies, m.now)

	if err := store.Load(m.lib); err != nil {
		m.log.Warn("could not load library, starting empty", zap.Error(err))
		m.lib.Reset()
	}
	m.log.Info("library loaded",
		zap.Int("books", m.lib.Catalog.Len()),
		zap.Int("users", m.lib.Directory.Len()))
	return m
}

// Save writes the whole library to the store.
func (m *LibraryManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(m.lib)
}

// persist is called with mu held after every mutation. Failures are logged
// and otherwise ignored; the in-memory state stays authoritative.
func (m *LibraryManager) persist(action string) {
	if err := m.store.Save(m.lib); err != nil {
		m.log.Warn("save failed", zap.String("action", action), zap.Error(err))
	}
}

// View runs fn with the library locked. fn must not keep references.
func (m *LibraryManager) View(fn func(lib *Library)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.lib)
}

// ------------------ Sessions ------------------

// Authenticate checks a role, id and password triple.
func (m *LibraryManager) Authenticate(role Role, id int, password string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.lib.Directory.Authenticate(role, id, password)
	if err != nil {
		m.log.Info("login rejected", zap.String("role", string(role)), zap.Int("user_id", id))
		return User{}, err
	}
	return cloneUser(u), nil
}

// ------------------ Circulation ------------------

// CanBorrow reports whether userID may take out another book at all.
func (m *LibraryManager) CanBorrow(userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return err
	}
	return m.lending.CanBorrow(u)
}

// Borrow lends bookID to userID.
func (m *LibraryManager) Borrow(userID, bookID int) (BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return BorrowRecord{}, err
	}
	rec, err := m.lending.Borrow(u, bookID)
	if err != nil {
		return BorrowRecord{}, err
	}
	m.log.Info("book borrowed", zap.Int("user_id", userID), zap.Int("book_id", bookID))
	m.persist("borrow")
	return rec, nil
}

// Return closes userID's loan of bookID.
func (m *LibraryManager) Return(userID, bookID int) (ReturnReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return ReturnReceipt{}, err
	}
	receipt, err := m.lending.Return(u, bookID)
	if err != nil {
		return ReturnReceipt{}, err
	}
	m.log.Info("book returned",
		zap.Int("user_id", userID),
		zap.Int("book_id", bookID),
		zap.Float64("days", receipt.Days),
		zap.Float64("fine", receipt.Fine))
	m.persist("return")
	return receipt, nil
}

// Reserve places userID's claim on bookID.
func (m *LibraryManager) Reserve(userID, bookID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return err
	}
	if err := m.lending.Reserve(u, bookID); err != nil {
		return err
	}
	m.log.Info("book reserved", zap.Int("user_id", userID), zap.Int("book_id", bookID))
	m.persist("reserve")
	return nil
}

// PayFine settles userID's fine and returns the amount paid.
func (m *LibraryManager) PayFine(userID int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return 0, err
	}
	paid, err := m.lending.PayFine(u)
	if err != nil {
		return 0, err
	}
	m.log.Info("fine paid", zap.Int("user_id", userID), zap.Float64("amount", paid))
	m.persist("pay_fine")
	return paid, nil
}

// Account returns a copy of userID's ledger.
func (m *LibraryManager) Account(userID int) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(userID)
	if err != nil {
		return Account{}, err
	}
	return cloneUser(u).Account, nil
}

// Policy returns the lending policy that applies to role.
func (m *LibraryManager) Policy(role Role) (Policy, error) {
	return m.policies.For(role)
}

// ------------------ Book helpers ------------------

// GetBook returns a copy of the book with id.
func (m *LibraryManager) GetBook(id int) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.lib.Catalog.FindByID(id)
	if b == nil {
		return Book{}, fmt.Errorf("book %d: %w", id, ErrBookNotFound)
	}
	return *b, nil
}

// GetAllBooks returns copies of every book in catalog order.
func (m *LibraryManager) GetAllBooks() []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBooks(m.lib.Catalog.All())
}

// AvailableFor lists the books userID could borrow now.
func (m *LibraryManager) AvailableFor(userID int) []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBooks(m.lib.Catalog.ListAvailableFor(userID))
}

// AddBook puts a new Available book into the catalog.
func (m *LibraryManager) AddBook(b Book) error {
	if err := validateFields(map[string]string{
		"title":     b.Title,
		"author":    b.Author,
		"publisher": b.Publisher,
		"isbn":      b.ISBN,
	}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	nb := NewBook(b.ID, b.Title, b.Author, b.Publisher, b.Year, b.ISBN)
	if err := m.lib.Catalog.Add(nb); err != nil {
		return err
	}
	m.log.Info("book added", zap.Int("book_id", b.ID), zap.String("title", b.Title))
	m.persist("add_book")
	return nil
}

// RemoveBook deletes a catalog entry. A book that is out on loan cannot be
// removed, since that would leave a borrow record pointing at nothing.
func (m *LibraryManager) RemoveBook(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lib.Catalog.Exists(id) {
		return fmt.Errorf("book %d: %w", id, ErrBookNotFound)
	}
	for _, u := range m.lib.Directory.All() {
		if _, ok := u.Account.Record(id); ok {
			return fmt.Errorf("book %d is on loan to user %d: %w", id, u.ID, ErrBookUnavailable)
		}
	}
	if err := m.lib.Catalog.Remove(id); err != nil {
		return err
	}
	m.log.Info("book removed", zap.Int("book_id", id))
	m.persist("remove_book")
	return nil
}

// UpdateBookTitle renames a book.
func (m *LibraryManager) UpdateBookTitle(id int, title string) error {
	if err := validateFields(map[string]string{"title": title}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.lib.Catalog.FindByID(id)
	if b == nil {
		return fmt.Errorf("book %d: %w", id, ErrBookNotFound)
	}
	b.Title = title
	m.log.Info("book updated", zap.Int("book_id", id), zap.String("title", title))
	m.persist("update_book")
	return nil
}

// ------------------ User helpers ------------------

// GetUser returns a copy of the user with id.
func (m *LibraryManager) GetUser(id int) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(id)
	if err != nil {
		return User{}, err
	}
	return cloneUser(u), nil
}

// GetAllUsers returns copies of every user in directory order.
func (m *LibraryManager) GetAllUsers() []User {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.lib.Directory.All()
	out := make([]User, 0, len(all))
	for _, u := range all {
		out = append(out, cloneUser(u))
	}
	return out
}

// AddUser registers a Student or Faculty account.
func (m *LibraryManager) AddUser(u User) error {
	if u.Role != RoleStudent && u.Role != RoleFaculty {
		return fmt.Errorf("%w: %q (expected Student or Faculty)", ErrInvalidRole, u.Role)
	}
	return m.addUser(u, "add_user")
}

// Bootstrap registers the first Librarian. It refuses once any librarian
// exists; later librarians are not creatable from the console either.
func (m *LibraryManager) Bootstrap(u User) error {
	u.Role = RoleLibrarian
	if err := validateUser(u); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lib.Directory.HasRole(RoleLibrarian) {
		return fmt.Errorf("a librarian account already exists: %w", ErrInvalidRole)
	}
	return m.addUserLocked(u, "bootstrap")
}

func (m *LibraryManager) addUser(u User, action string) error {
	if err := validateUser(u); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addUserLocked(u, action)
}

// addUserLocked is called with mu held.
func (m *LibraryManager) addUserLocked(u User, action string) error {
	if err := m.lib.Directory.Add(NewUser(u.ID, u.Username, u.Password, u.Name, u.Role)); err != nil {
		return err
	}
	m.log.Info("user added", zap.Int("user_id", u.ID), zap.String("role", string(u.Role)))
	m.persist(action)
	return nil
}

// RemoveUser deletes a user and puts every book they held back on the shelf.
func (m *LibraryManager) RemoveUser(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.lib.RemoveUser(id); err != nil {
		return err
	}
	m.log.Info("user removed", zap.Int("user_id", id))
	m.persist("remove_user")
	return nil
}

// ------------------ Utilities ------------------

func (m *LibraryManager) user(id int) (*User, error) {
	u := m.lib.Directory.FindByID(id)
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	return u, nil
}

func cloneUser(u *User) User {
	c := *u
	c.Account.Records = append([]BorrowRecord(nil), u.Account.Records...)
	return c
}

func cloneBooks(books []*Book) []Book {
	out := make([]Book, 0, len(books))
	for _, b := range books {
		out = append(out, *b)
	}
	return out
}

// validateUser checks what the stores need from a new account. Negative ids
// are refused because -1 marks "no reservation" in the book store.
func validateUser(u User) error {
	if u.ID < 0 {
		return fmt.Errorf("user id %d must not be negative: %w", u.ID, ErrInvalidInput)
	}
	if strings.TrimSpace(u.Password) == "" {
		return fmt.Errorf("password cannot be empty: %w", ErrInvalidInput)
	}
	return validateFields(map[string]string{
		"username": u.Username,
		"password": u.Password,
		"name":     u.Name,
	})
}

// validateFields rejects values the comma-delimited stores cannot hold.
func validateFields(fields map[string]string) error {
	for name, v := range fields {
		if strings.ContainsAny(v, ",\r\n") {
			return fmt.Errorf("%s must not contain commas or line breaks: %w", name, ErrInvalidInput)
		}
	}
	return nil
}
