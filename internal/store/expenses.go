package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type ExpenseStore struct {
	db *sqlx.DB
}

func (es *ExpenseStore) Insert(ctx context.Context, e *ArchivedExpense) error {
	query := `INSERT INTO archived_expenses (
		number,
		nature_id,
		date,
		value,
		expensed,
		mandate_id,
		supplier_id,
		original_id,
		collection_run_id
	) VALUES (
		:number,
		:nature_id,
		:date,
		:value,
		:expensed,
		:mandate_id,
		:supplier_id,
		:original_id,
		:collection_run_id
	) RETURNING id`

	rows, err := es.db.NamedQueryContext(ctx, query, e)
	if err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&e.ID); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (es *ExpenseStore) DeleteByRun(ctx context.Context, runID int64) error {
	_, err := es.db.ExecContext(ctx,
		`DELETE FROM archived_expenses WHERE collection_run_id = $1`, runID)
	return err
}

// Ledger feeds the consolidator: archived expenses joined with mandate,
// legislature and institution context. institutionID 0 selects every
// institution (the agnostic pass).
func (es *ExpenseStore) Ledger(ctx context.Context, institutionID int64, from, to time.Time) ([]LedgerEntry, error) {
	query := `
	SELECT
		ae.expensed,
		ae.date,
		ae.nature_id,
		ae.supplier_id,
		m.legislator_id,
		m.legislature_id,
		l.institution_id
	FROM
		archived_expenses ae
	JOIN
		mandates m ON m.id = ae.mandate_id
	JOIN
		legislatures l ON l.id = m.legislature_id
	WHERE
		ae.date BETWEEN $1 AND $2
		AND ($3 = 0 OR l.institution_id = $3)
	ORDER BY
		ae.date, ae.id`

	var entries []LedgerEntry
	err := es.db.SelectContext(ctx, &entries, query, from, to, institutionID)
	return entries, err
}

func (es *ExpenseStore) DateBounds(ctx context.Context, institutionID int64) (time.Time, time.Time, bool, error) {
	var bounds struct {
		Min sql.NullTime `db:"min"`
		Max sql.NullTime `db:"max"`
	}
	err := es.db.GetContext(ctx, &bounds, `
	SELECT
		MIN(ae.date) AS min,
		MAX(ae.date) AS max
	FROM
		archived_expenses ae
	JOIN
		mandates m ON m.id = ae.mandate_id
	JOIN
		legislatures l ON l.id = m.legislature_id
	WHERE
		($1 = 0 OR l.institution_id = $1)`, institutionID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, time.Time{}, false, err
	}
	if !bounds.Min.Valid || !bounds.Max.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return bounds.Min.Time, bounds.Max.Time, true, nil
}
