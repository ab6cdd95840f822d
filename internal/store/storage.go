package store

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by plain lookups that matched nothing.
var ErrNotFound = errors.New("record not found")

// Storage bundles one interface per aggregate. The collection and
// consolidation code depends only on these interfaces; the sqlx stores below
// are the postgres implementation and memstore provides the in-memory one
// used by tests.
type Storage struct {
	Institutions interface {
		GetOrCreate(ctx context.Context, siglum, name string) (Institution, bool, error)
		GetBySiglum(ctx context.Context, siglum string) (Institution, error)
		List(ctx context.Context) ([]Institution, error)
	}

	Legislatures interface {
		GetOrCreate(ctx context.Context, leg Legislature) (Legislature, bool, error)
		ListByInstitution(ctx context.Context, institutionID int64) ([]Legislature, error)
	}

	Parties interface {
		GetOrCreate(ctx context.Context, siglum, name string) (PoliticalParty, bool, error)
	}

	Legislators interface {
		GetOrCreate(ctx context.Context, name string, originalID string) (Legislator, bool, error)
		UpdateDetails(ctx context.Context, l *Legislator) error
	}

	Mandates interface {
		// GetOrCreate keys on (legislator_id, date_start). A supplied
		// original id is late-bound onto a pre-existing mandate that
		// lacks one.
		GetOrCreate(ctx context.Context, m Mandate) (Mandate, bool, error)
	}

	Natures interface {
		GetOrCreate(ctx context.Context, originalID, name string) (ExpenseNature, bool, error)
	}

	Suppliers interface {
		GetOrCreate(ctx context.Context, identifier, name string) (Supplier, bool, error)
	}

	Runs interface {
		// CreateOrResume returns the run for (date, legislature),
		// deleting all archived expenses of a pre-existing same-day run
		// before handing it back.
		CreateOrResume(ctx context.Context, legislatureID int64, date time.Time) (CollectionRun, bool, error)
		Latest(ctx context.Context, limit int) ([]CollectionRun, error)
	}

	Expenses interface {
		Insert(ctx context.Context, e *ArchivedExpense) error
		DeleteByRun(ctx context.Context, runID int64) error
		// Ledger returns joined expense rows for one institution within
		// [from, to], or for every institution when institutionID is 0.
		Ledger(ctx context.Context, institutionID int64, from, to time.Time) ([]LedgerEntry, error)
		// DateBounds reports the earliest and latest expense dates
		// observed for an institution (0 for all); ok is false with no
		// data.
		DateBounds(ctx context.Context, institutionID int64) (min, max time.Time, ok bool, err error)
	}

	Aggregates interface {
		ReplacePerNature(ctx context.Context, institutionID int64, rows []PerNature, byYear []PerNatureByYear, byMonth []PerNatureByMonth) error
		ReplacePerLegislator(ctx context.Context, institutionID int64, rows []PerLegislator) error
		ReplaceBiggestSuppliers(ctx context.Context, rows []BiggestSupplierForYear) error

		PerNatureForInstitution(ctx context.Context, institutionID int64) ([]PerNatureView, error)
		PerLegislatorForInstitution(ctx context.Context, institutionID int64) ([]PerLegislatorView, error)
		BiggestSuppliers(ctx context.Context, year int, limit int) ([]BiggestSupplierView, error)
	}
}

// Read-model rows served by the API, denormalized with display names.

type PerNatureView struct {
	NatureName    string  `db:"nature_name" json:"nature_name"`
	LegislatureID *int64  `db:"legislature_id" json:"legislature_id,omitempty"`
	Expensed      float64 `db:"expensed" json:"expensed"`
}

type PerLegislatorView struct {
	LegislatorName string  `db:"legislator_name" json:"legislator_name"`
	LegislatureID  *int64  `db:"legislature_id" json:"legislature_id,omitempty"`
	Expensed       float64 `db:"expensed" json:"expensed"`
}

type BiggestSupplierView struct {
	SupplierName       string  `db:"supplier_name" json:"supplier_name"`
	SupplierIdentifier string  `db:"supplier_identifier" json:"supplier_identifier"`
	Year               int     `db:"year" json:"year"`
	Expensed           float64 `db:"expensed" json:"expensed"`
	Rank               int     `db:"rank" json:"rank"`
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		Institutions: &InstitutionStore{db: db},
		Legislatures: &LegislatureStore{db: db},
		Parties:      &PartyStore{db: db},
		Legislators:  &LegislatorStore{db: db},
		Mandates:     &MandateStore{db: db},
		Natures:      &NatureStore{db: db},
		Suppliers:    &SupplierStore{db: db},
		Runs:         &RunStore{db: db},
		Expenses:     &ExpenseStore{db: db},
		Aggregates:   &AggregateStore{db: db},
	}
}
