package storage

import (
	"go.uber.org/zap"

	"library-circulation/library"
)

// reconcileLoans makes loaded loans agree with the catalog. A book may be
// held by one account only: later records for an already held book are
// dropped. A held book that was stored as Available or Reserved is marked
// Borrowed so nobody else can take it.
func reconcileLoans(lib *library.Library, log *zap.Logger) {
	holder := make(map[int]int)
	for _, u := range lib.Directory.All() {
		kept := u.Account.Records[:0]
		for _, rec := range u.Account.Records {
			if other, held := holder[rec.BookID]; held {
				log.Warn("dropping loan of a book already on loan",
					zap.Int("user_id", u.ID),
					zap.Int("book_id", rec.BookID),
					zap.Int("holder_id", other))
				continue
			}
			holder[rec.BookID] = u.ID
			kept = append(kept, rec)

			b := lib.Catalog.FindByID(rec.BookID)
			if b != nil && b.Status != library.StatusBorrowed {
				log.Warn("book on loan was stored as "+string(b.Status)+", marking borrowed",
					zap.Int("user_id", u.ID),
					zap.Int("book_id", b.ID))
				b.Status = library.StatusBorrowed
			}
		}
		u.Account.Records = kept
	}
}
