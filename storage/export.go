package storage

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"library-circulation/library"
)

type exportDocument struct {
	Books []exportBook `json:"books"`
	Users []exportUser `json:"users"`
}

type exportBook struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Publisher  string `json:"publisher"`
	Year       int    `json:"year"`
	ISBN       string `json:"isbn"`
	Status     string `json:"status"`
	ReservedBy *int   `json:"reserved_by,omitempty"`
}

type exportUser struct {
	ID       int          `json:"id"`
	Username string       `json:"username"`
	Name     string       `json:"name"`
	Role     string       `json:"role"`
	Fine     float64      `json:"fine"`
	Loans    []exportLoan `json:"loans"`
}

type exportLoan struct {
	BookID     int   `json:"book_id"`
	BorrowedAt int64 `json:"borrowed_at"`
}

// ExportJSON writes lib as an indented JSON document. Passwords are left out.
func ExportJSON(w io.Writer, lib *library.Library) error {
	doc := exportDocument{Books: []exportBook{}, Users: []exportUser{}}
	for _, b := range lib.Catalog.All() {
		eb := exportBook{
			ID:        b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Publisher: b.Publisher,
			Year:      b.Year,
			ISBN:      b.ISBN,
			Status:    string(b.Status),
		}
		if b.ReservedBy.Valid {
			id := b.ReservedBy.ID
			eb.ReservedBy = &id
		}
		doc.Books = append(doc.Books, eb)
	}
	for _, u := range lib.Directory.All() {
		eu := exportUser{
			ID:       u.ID,
			Username: u.Username,
			Name:     u.Name,
			Role:     string(u.Role),
			Fine:     u.Account.Fine,
			Loans:    []exportLoan{},
		}
		for _, rec := range u.Account.Records {
			eu.Loans = append(eu.Loans, exportLoan{BookID: rec.BookID, BorrowedAt: rec.BorrowedAt.Unix()})
		}
		doc.Users = append(doc.Users, eu)
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
