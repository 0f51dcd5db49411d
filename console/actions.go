package console

import (
	"errors"
	"strconv"
	"strings"

	"library-circulation/library"
)

const borrowedTimeLayout = "Mon Jan _2 15:04:05 2006"

// ------------------ Borrower actions ------------------

func (c *Console) viewAvailable(u library.User) {
	c.println("Available Books:")
	books := c.mgr.AvailableFor(u.ID)
	if len(books) == 0 {
		c.println("No books available.")
		return
	}
	for _, b := range books {
		c.println(b.String())
	}
}

func (c *Console) borrow(u library.User) {
	// Account-level refusals come before asking for a book.
	if err := c.mgr.CanBorrow(u.ID); err != nil {
		c.report(err)
		return
	}
	bookID, ok := c.readInt("Enter Book ID to borrow: ")
	if !ok {
		return
	}
	if _, err := c.mgr.Borrow(u.ID, bookID); err != nil {
		c.report(err)
		return
	}
	c.println("Book borrowed successfully.")
}

func (c *Console) returnBook(u library.User) {
	bookID, ok := c.readInt("Enter Book ID to return: ")
	if !ok {
		return
	}
	receipt, err := c.mgr.Return(u.ID, bookID)
	if errors.Is(err, library.ErrRecordNotFound) {
		c.println("Book not found in your borrowed list.")
		return
	}
	if err != nil {
		c.report(err)
		return
	}

	// Fining roles always see the amount, even a zero one.
	p, err := c.mgr.Policy(u.Role)
	if err != nil {
		c.report(err)
		return
	}
	switch {
	case receipt.Late && p.FinePerDay > 0:
		c.printf("Book returned overdue by %d days. Fine incurred: %s.\n",
			receipt.OverdueDays, formatAmount(receipt.Fine))
	case receipt.Late:
		c.printf("Book returned late. Overdue by %d days.\n", receipt.OverdueDays)
	default:
		c.println("Book returned on time.")
	}
	if receipt.HeldFor.Valid {
		c.printf("The book is now held for user %d.\n", receipt.HeldFor.ID)
	}
}

func (c *Console) viewBorrowed(u library.User) {
	acct, err := c.mgr.Account(u.ID)
	if err != nil {
		c.report(err)
		return
	}
	c.println("Your Borrowed Books:")
	if len(acct.Records) == 0 {
		c.println("None.")
		return
	}
	for _, rec := range acct.Records {
		c.printf("Book ID: %d Borrowed on: %s\n", rec.BookID, rec.BorrowedAt.Local().Format(borrowedTimeLayout))
	}
}

func (c *Console) checkFine(u library.User) {
	acct, err := c.mgr.Account(u.ID)
	if err != nil {
		c.report(err)
		return
	}
	c.printf("Total fine: %s.\n", formatAmount(acct.Fine))
}

func (c *Console) payFine(u library.User) {
	paid, err := c.mgr.PayFine(u.ID)
	if errors.Is(err, library.ErrNoFineDue) {
		c.println("No fine to pay.")
		return
	}
	if err != nil {
		c.report(err)
		return
	}
	c.printf("Paying fine of %s. Fine cleared.\n", formatAmount(paid))
}

func (c *Console) borrowingStatus(u library.User) {
	acct, err := c.mgr.Account(u.ID)
	if err != nil {
		c.report(err)
		return
	}
	p, err := c.mgr.Policy(u.Role)
	if err != nil {
		c.report(err)
		return
	}
	c.printf("Currently borrowed: %d of %d books.\n", len(acct.Records), p.MaxBorrow)
}

func (c *Console) reserve(u library.User) {
	bookID, ok := c.readInt("Enter Book ID to reserve: ")
	if !ok {
		return
	}
	if err := c.mgr.Reserve(u.ID, bookID); err != nil {
		c.report(err)
		return
	}
	c.println("Book reserved successfully. Upon return, it will be available only for you.")
}

// ------------------ Librarian actions ------------------

func (c *Console) addBook(library.User) {
	c.println("Enter new book details:")
	id, ok := c.readInt("ID: ")
	if !ok {
		return
	}
	if _, err := c.mgr.GetBook(id); err == nil {
		c.printf("Book with ID %d already exists. Cannot add duplicate book.\n", id)
		return
	}

	b := library.Book{ID: id}
	if b.Title, ok = c.prompt("Title: "); !ok {
		return
	}
	if b.Author, ok = c.prompt("Author: "); !ok {
		return
	}
	if b.Publisher, ok = c.prompt("Publisher: "); !ok {
		return
	}
	if b.Year, ok = c.readInt("Year: "); !ok {
		return
	}
	if b.ISBN, ok = c.prompt("ISBN: "); !ok {
		return
	}

	if err := c.mgr.AddBook(b); err != nil {
		c.report(err)
		return
	}
	c.printf("New book added: %s\n", b.Title)
}

func (c *Console) removeBook(library.User) {
	id, ok := c.readInt("Enter Book ID to remove: ")
	if !ok {
		return
	}
	if err := c.mgr.RemoveBook(id); err != nil {
		c.report(err)
		return
	}
	c.printf("Book %d removed.\n", id)
}

func (c *Console) updateBook(library.User) {
	id, ok := c.readInt("Enter Book ID to update: ")
	if !ok {
		return
	}
	title, ok := c.prompt("Enter new title: ")
	if !ok {
		return
	}
	if err := c.mgr.UpdateBookTitle(id, title); err != nil {
		c.report(err)
		return
	}
	c.printf("Book %d updated to: %s\n", id, title)
}

func (c *Console) addUser(library.User) {
	c.println("Enter new user details:")
	id, ok := c.readInt("ID: ")
	if !ok {
		return
	}
	if _, err := c.mgr.GetUser(id); err == nil {
		c.printf("User with ID %d already exists. Cannot add duplicate user.\n", id)
		return
	}

	u := library.User{ID: id}
	if u.Username, ok = c.prompt("Username: "); !ok {
		return
	}
	password, err := c.password("Password: ")
	if err != nil {
		return
	}
	u.Password = password
	roleName, ok := c.prompt("Role (Student/Faculty): ")
	if !ok {
		return
	}
	if u.Name, ok = c.prompt("Name: "); !ok {
		return
	}

	role, err := library.ParseRole(roleName)
	if err == nil {
		u.Role = role
		err = c.mgr.AddUser(u)
	}
	if errors.Is(err, library.ErrInvalidRole) {
		c.println("Invalid role. User not added.")
		return
	}
	if err != nil {
		c.report(err)
		return
	}
	c.printf("New user added: %s (%s)\n", u.Username, u.Role)
}

func (c *Console) removeUser(library.User) {
	id, ok := c.readInt("Enter User ID to remove: ")
	if !ok {
		return
	}
	if err := c.mgr.RemoveUser(id); err != nil {
		c.report(err)
		return
	}
	c.printf("User %d removed. All books borrowed by this user are now marked as available.\n", id)
}

func (c *Console) viewAllBooks(library.User) {
	books := c.mgr.GetAllBooks()
	if len(books) == 0 {
		c.println("No books in library.")
		return
	}

	c.println("All Books:")
	c.printf("%-5s %-30s %-25s %-6s %-10s %s\n", "ID", "Title", "Author", "Year", "Status", "Reserved By")
	c.println(strings.Repeat("-", 90))
	for _, b := range books {
		reserved := "None"
		if b.ReservedBy.Valid {
			reserved = "User ID " + strconv.Itoa(b.ReservedBy.ID)
		}
		c.printf("%-5d %-30s %-25s %-6d %-10s %s\n",
			b.ID,
			truncateString(b.Title, 30),
			truncateString(b.Author, 25),
			b.Year,
			b.Status,
			reserved)
	}
}

func (c *Console) viewAllUsers(library.User) {
	c.println("All Users:")
	for _, u := range c.mgr.GetAllUsers() {
		c.printf("%d - %s (%s) - %s\n", u.ID, u.Username, u.Role, u.Name)
	}
}

// truncateString shortens s for fixed-width columns.
func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
