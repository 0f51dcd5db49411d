package library

// Library is the single aggregate holding the catalog and the directory.
// It has no internal locking; LibraryManager serializes access.
type Library struct {
	Catalog   *Catalog
	Directory *Directory
}

// New returns an empty library.
func New() *Library {
	return &Library{Catalog: NewCatalog(), Directory: NewDirectory()}
}

// Reset empties both containers in place.
func (l *Library) Reset() {
	l.Catalog = NewCatalog()
	l.Directory = NewDirectory()
}

// RemoveUser deletes a user after releasing every book they hold. Released
// books go back to Available and lose any reservation, including one placed
// by somebody else.
func (l *Library) RemoveUser(id int) error {
	u := l.Directory.FindByID(id)
	if u == nil {
		return l.Directory.remove(id)
	}
	for _, rec := range u.Account.Records {
		if b := l.Catalog.FindByID(rec.BookID); b != nil {
			b.Status = StatusAvailable
			b.ReservedBy = NullID{}
		}
	}
	return l.Directory.remove(id)
}

// Store is the persistence gateway. Load fills an empty Library; Save
// rewrites everything.
type Store interface {
	Load(lib *Library) error
	Save(lib *Library) error
}
