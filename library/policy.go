package library

import (
	"fmt"
	"time"
)

// SecondsPerDay is the policy day: loan periods and fines count one "day"
// for every ten elapsed seconds.
const SecondsPerDay = 10

const (
	studentMaxBorrow    = 3
	studentBorrowPeriod = 15
	studentFinePerDay   = 10

	facultyMaxBorrow    = 5
	facultyBorrowPeriod = 30
	facultyOverdueLimit = 60
)

// Policy holds the role-derived lending parameters used by the engine.
type Policy struct {
	// MaxBorrow is the number of simultaneous loans allowed.
	MaxBorrow int
	// BorrowPeriodDays is the loan length before a return counts as late.
	BorrowPeriodDays int
	// FinePerDay is charged per overdue day on return. Zero disables fines.
	FinePerDay float64
	// OverdueLimitDays blocks new loans while any loan is older than this.
	// Zero disables the lockout.
	OverdueLimitDays int
	// BlockOnFine refuses new loans while a fine is outstanding.
	BlockOnFine bool
}

// StudentPolicy: three loans, fifteen days, fined per late day.
func StudentPolicy() Policy {
	return Policy{
		MaxBorrow:        studentMaxBorrow,
		BorrowPeriodDays: studentBorrowPeriod,
		FinePerDay:       studentFinePerDay,
		BlockOnFine:      true,
	}
}

// FacultyPolicy: five loans, thirty days, no fines but locked out once a
// loan passes sixty days.
func FacultyPolicy() Policy {
	return Policy{
		MaxBorrow:        facultyMaxBorrow,
		BorrowPeriodDays: facultyBorrowPeriod,
		OverdueLimitDays: facultyOverdueLimit,
	}
}

// Policies maps the borrowing roles onto their parameters. Librarians do not
// borrow.
type Policies struct {
	Student Policy
	Faculty Policy
}

// DefaultPolicies returns the stock student and faculty rules.
func DefaultPolicies() Policies {
	return Policies{Student: StudentPolicy(), Faculty: FacultyPolicy()}
}

// For returns the policy for role.
func (p Policies) For(role Role) (Policy, error) {
	switch role {
	case RoleStudent:
		return p.Student, nil
	case RoleFaculty:
		return p.Faculty, nil
	}
	return Policy{}, fmt.Errorf("%s accounts cannot borrow: %w", role, ErrInvalidRole)
}

// ElapsedDays converts the whole seconds between from and to into policy days.
func ElapsedDays(from, to time.Time) float64 {
	return float64(to.Unix()-from.Unix()) / SecondsPerDay
}
