package library

import (
	"errors"
	"testing"
)

func TestCatalogAddFindRemove(t *testing.T) {
	c := NewCatalog()
	if err := c.Add(NewBook(1, "Dune", "Herbert", "Chilton", 1965, "isbn-1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(NewBook(2, "Emma", "Austen", "Murray", 1815, "isbn-2")); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := c.Add(NewBook(1, "Other", "X", "Y", 2000, "z")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate add: got %v, want ErrDuplicateID", err)
	}
	if got := c.FindByID(1); got == nil || got.Title != "Dune" {
		t.Fatalf("find 1: got %+v", got)
	}
	if c.FindByID(3) != nil {
		t.Fatalf("find 3: expected nil")
	}
	if !c.Exists(2) || c.Exists(3) {
		t.Fatalf("exists mismatch")
	}

	if err := c.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Remove(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: got %v, want ErrNotFound", err)
	}
	if c.Len() != 1 || c.All()[0].ID != 2 {
		t.Fatalf("remaining books: %v", ids(c.All()))
	}
}

func TestCatalogKeepsInsertionOrder(t *testing.T) {
	c := NewCatalog()
	for _, id := range []int{5, 3, 9, 1} {
		if err := c.Add(NewBook(id, "T", "A", "P", 2000, "i")); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}
	got := ids(c.All())
	want := []int{5, 3, 9, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}
}

func TestListAvailableFor(t *testing.T) {
	c := NewCatalog()
	statuses := []struct {
		id       int
		status   BookStatus
		reserved NullID
	}{
		{1, StatusAvailable, NullID{}},
		{2, StatusBorrowed, NullID{}},
		{3, StatusBorrowed, SomeID(7)},
		{4, StatusReserved, SomeID(7)},
		{5, StatusReserved, SomeID(8)},
	}
	for _, s := range statuses {
		b := NewBook(s.id, "T", "A", "P", 2000, "i")
		b.Status = s.status
		b.ReservedBy = s.reserved
		if err := c.Add(b); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	tests := []struct {
		user int
		want []int
	}{
		{7, []int{1, 4}},
		{8, []int{1, 5}},
		{9, []int{1}},
	}
	for _, tt := range tests {
		got := ids(c.ListAvailableFor(tt.user))
		if len(got) != len(tt.want) {
			t.Fatalf("user %d: got %v, want %v", tt.user, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("user %d: got %v, want %v", tt.user, got, tt.want)
			}
		}
	}
}

func TestBookString(t *testing.T) {
	b := NewBook(3, "Dune", "Frank Herbert", "Chilton", 1965, "isbn")
	if got, want := b.String(), "3: Dune by Frank Herbert (1965) - Available"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	b.Status = StatusBorrowed
	b.ReservedBy = SomeID(12)
	if got, want := b.String(), "3: Dune by Frank Herbert (1965) - Borrowed [Reserved by User ID 12]"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseBookStatus(t *testing.T) {
	for _, s := range []string{"Available", "Borrowed", " Reserved "} {
		if _, err := ParseBookStatus(s); err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
	}
	if _, err := ParseBookStatus("Lost"); err == nil {
		t.Fatalf("parse Lost: expected error")
	}
}
