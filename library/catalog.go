package library

import "fmt"

// Catalog owns the set of books, kept in insertion order for listing.
type Catalog struct {
	books []*Book
	byID  map[int]*Book
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[int]*Book)}
}

// FindByID returns the book with id, or nil.
func (c *Catalog) FindByID(id int) *Book { return c.byID[id] }

// Exists reports whether a book with id is present.
func (c *Catalog) Exists(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// Add stores b. The id must be new.
func (c *Catalog) Add(b *Book) error {
	if c.Exists(b.ID) {
		return fmt.Errorf("book %d: %w", b.ID, ErrDuplicateID)
	}
	c.books = append(c.books, b)
	c.byID[b.ID] = b
	return nil
}

// Remove deletes the book with id. Outstanding loans are not checked here.
func (c *Catalog) Remove(id int) error {
	if !c.Exists(id) {
		return fmt.Errorf("book %d: %w", id, ErrBookNotFound)
	}
	for i, b := range c.books {
		if b.ID == id {
			c.books = append(c.books[:i], c.books[i+1:]...)
			break
		}
	}
	delete(c.byID, id)
	return nil
}

// All returns every book in insertion order.
func (c *Catalog) All() []*Book {
	out := make([]*Book, len(c.books))
	copy(out, c.books)
	return out
}

// ListAvailableFor returns the books userID could borrow: Available ones and
// those Reserved for userID.
func (c *Catalog) ListAvailableFor(userID int) []*Book {
	var out []*Book
	for _, b := range c.books {
		if b.AvailableFor(userID) {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of books.
func (c *Catalog) Len() int { return len(c.books) }
