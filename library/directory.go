package library

import "fmt"

// Directory owns the set of user accounts, kept in insertion order.
type Directory struct {
	users []*User
	byID  map[int]*User
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{byID: make(map[int]*User)}
}

// FindByID returns the user with id, or nil.
func (d *Directory) FindByID(id int) *User { return d.byID[id] }

// Exists reports whether a user with id is present.
func (d *Directory) Exists(id int) bool {
	_, ok := d.byID[id]
	return ok
}

// Authenticate returns the user matching the exact role, id and password
// triple. The password is compared verbatim.
func (d *Directory) Authenticate(role Role, id int, password string) (*User, error) {
	for _, u := range d.users {
		if u.Role == role && u.ID == id && u.Password == password {
			return u, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// Add stores u. The id must be new.
func (d *Directory) Add(u *User) error {
	if d.Exists(u.ID) {
		return fmt.Errorf("user %d: %w", u.ID, ErrDuplicateID)
	}
	d.users = append(d.users, u)
	d.byID[u.ID] = u
	return nil
}

// remove drops the user without touching any books. Library.RemoveUser is
// the public path and releases loans first.
func (d *Directory) remove(id int) error {
	if !d.Exists(id) {
		return fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	for i, u := range d.users {
		if u.ID == id {
			d.users = append(d.users[:i], d.users[i+1:]...)
			break
		}
	}
	delete(d.byID, id)
	return nil
}

// All returns every user in insertion order.
func (d *Directory) All() []*User {
	out := make([]*User, len(d.users))
	copy(out, d.users)
	return out
}

// HasRole reports whether any user holds role.
func (d *Directory) HasRole(role Role) bool {
	for _, u := range d.users {
		if u.Role == role {
			return true
		}
	}
	return false
}

// Len returns the number of users.
func (d *Directory) Len() int { return len(d.users) }
