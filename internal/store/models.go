package store

import (
	"database/sql"
	"time"
)

// Institution is a legislative house. Created once, rarely mutated.
type Institution struct {
	ID     int64  `db:"id"`
	Siglum string `db:"siglum"`
	Name   string `db:"name"`
}

// Legislature is one time-bounded term of an Institution. Terms are
// non-overlapping by convention; nothing enforces it.
type Legislature struct {
	ID            int64          `db:"id"`
	InstitutionID int64          `db:"institution_id"`
	DateStart     time.Time      `db:"date_start"`
	DateEnd       time.Time      `db:"date_end"`
	OriginalID    sql.NullString `db:"original_id"`
}

type PoliticalParty struct {
	ID           int64          `db:"id"`
	Siglum       string         `db:"siglum"`
	Name         string         `db:"name"`
	LogoURL      sql.NullString `db:"logo_url"`
	WikipediaURL sql.NullString `db:"wikipedia_url"`
}

// Legislator is a person. Name is the natural key when the source exposes no
// reliable original id.
type Legislator struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	OriginalID  sql.NullString `db:"original_id"`
	Site        sql.NullString `db:"site"`
	Email       sql.NullString `db:"email"`
	Gender      sql.NullString `db:"gender"`
	DateOfBirth sql.NullTime   `db:"date_of_birth"`
	AboutHTML   sql.NullString `db:"about_html"`
}

// Mandate binds a Legislator to a Legislature under one party. Natural key
// for upsert is (legislator_id, date_start), with date_start taken from the
// legislature.
type Mandate struct {
	ID            int64          `db:"id"`
	LegislatorID  int64          `db:"legislator_id"`
	LegislatureID int64          `db:"legislature_id"`
	PartyID       sql.NullInt64  `db:"party_id"`
	DateStart     time.Time      `db:"date_start"`
	DateEnd       sql.NullTime   `db:"date_end"`
	OriginalID    sql.NullString `db:"original_id"`
	State         sql.NullString `db:"state"`
}

// ExpenseNature is a reimbursement category. Scoped by original_id when the
// source publishes a stable code, by canonical name otherwise.
type ExpenseNature struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	OriginalID sql.NullString `db:"original_id"`
}

// Supplier is keyed by the normalized CNPJ/CPF digit string, or the
// synthetic "Sem CNPJ/CPF (<name>)" marker when the source has none.
type Supplier struct {
	ID         int64  `db:"id"`
	Identifier string `db:"identifier"`
	Name       string `db:"name"`
}

// CollectionRun marks one dated attempt to collect a legislature's data.
// At most one live run per (date, legislature); resuming the same day's run
// wipes its archived expenses first.
type CollectionRun struct {
	ID            int64     `db:"id" json:"id"`
	Token         string    `db:"token" json:"token"`
	Date          time.Time `db:"date" json:"date"`
	LegislatureID int64     `db:"legislature_id" json:"legislature_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ArchivedExpense is one reimbursement line tied to the collection run that
// observed it. Value is the claimed amount, Expensed the amount actually
// reimbursed.
type ArchivedExpense struct {
	ID              int64          `db:"id"`
	Number          string         `db:"number"`
	NatureID        int64          `db:"nature_id"`
	Date            time.Time      `db:"date"`
	Value           float64        `db:"value"`
	Expensed        float64        `db:"expensed"`
	MandateID       int64          `db:"mandate_id"`
	SupplierID      int64          `db:"supplier_id"`
	OriginalID      sql.NullString `db:"original_id"`
	CollectionRunID int64          `db:"collection_run_id"`
}

// LedgerEntry is the consolidation read model: one archived expense joined
// with its mandate, legislature and institution context.
type LedgerEntry struct {
	Expensed      float64   `db:"expensed"`
	Date          time.Time `db:"date"`
	NatureID      int64     `db:"nature_id"`
	SupplierID    int64     `db:"supplier_id"`
	LegislatorID  int64     `db:"legislator_id"`
	LegislatureID int64     `db:"legislature_id"`
	InstitutionID int64     `db:"institution_id"`
}

// Aggregate rows. All of them are deleted and rebuilt wholesale on each
// consolidation run, never incrementally patched.

type PerNature struct {
	ID            int64         `db:"id"`
	InstitutionID int64         `db:"institution_id"`
	LegislatureID sql.NullInt64 `db:"legislature_id"`
	NatureID      int64         `db:"nature_id"`
	Expensed      float64       `db:"expensed"`
}

type PerNatureByYear struct {
	ID            int64   `db:"id"`
	InstitutionID int64   `db:"institution_id"`
	NatureID      int64   `db:"nature_id"`
	Year          int     `db:"year"`
	Expensed      float64 `db:"expensed"`
}

type PerNatureByMonth struct {
	ID            int64   `db:"id"`
	InstitutionID int64   `db:"institution_id"`
	NatureID      int64   `db:"nature_id"`
	Year          int     `db:"year"`
	Month         int     `db:"month"`
	Expensed      float64 `db:"expensed"`
}

type PerLegislator struct {
	ID            int64         `db:"id"`
	InstitutionID int64         `db:"institution_id"`
	LegislatorID  int64         `db:"legislator_id"`
	LegislatureID sql.NullInt64 `db:"legislature_id"`
	Expensed      float64       `db:"expensed"`
}

type BiggestSupplierForYear struct {
	ID         int64   `db:"id"`
	SupplierID int64   `db:"supplier_id"`
	Year       int     `db:"year"`
	Expensed   float64 `db:"expensed"`
	Rank       int     `db:"rank"`
}
