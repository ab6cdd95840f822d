package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type AggregateStore struct {
	db *sqlx.DB
}

// ReplacePerNature rebuilds the three per-nature rollup tables for one
// institution inside a single transaction. Delete-then-insert keeps
// consolidation idempotent.
func (as *AggregateStore) ReplacePerNature(ctx context.Context, institutionID int64, rows []PerNature, byYear []PerNatureByYear, byMonth []PerNatureByMonth) error {
	tx, err := as.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"per_nature", "per_nature_by_year", "per_nature_by_month"} {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE institution_id = $1`, table), institutionID)
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if len(rows) > 0 {
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO per_nature (institution_id, legislature_id, nature_id, expensed)
			 VALUES (:institution_id, :legislature_id, :nature_id, :expensed)`, rows)
		if err != nil {
			return fmt.Errorf("failed to insert per_nature rows: %w", err)
		}
	}
	if len(byYear) > 0 {
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO per_nature_by_year (institution_id, nature_id, year, expensed)
			 VALUES (:institution_id, :nature_id, :year, :expensed)`, byYear)
		if err != nil {
			return fmt.Errorf("failed to insert per_nature_by_year rows: %w", err)
		}
	}
	if len(byMonth) > 0 {
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO per_nature_by_month (institution_id, nature_id, year, month, expensed)
			 VALUES (:institution_id, :nature_id, :year, :month, :expensed)`, byMonth)
		if err != nil {
			return fmt.Errorf("failed to insert per_nature_by_month rows: %w", err)
		}
	}

	return tx.Commit()
}

func (as *AggregateStore) ReplacePerLegislator(ctx context.Context, institutionID int64, rows []PerLegislator) error {
	tx, err := as.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM per_legislator WHERE institution_id = $1`, institutionID)
	if err != nil {
		return fmt.Errorf("failed to clear per_legislator: %w", err)
	}

	if len(rows) > 0 {
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO per_legislator (institution_id, legislator_id, legislature_id, expensed)
			 VALUES (:institution_id, :legislator_id, :legislature_id, :expensed)`, rows)
		if err != nil {
			return fmt.Errorf("failed to insert per_legislator rows: %w", err)
		}
	}

	return tx.Commit()
}

// ReplaceBiggestSuppliers rebuilds the cross-institution supplier ranking.
// The table is global, so the whole thing is replaced at once.
func (as *AggregateStore) ReplaceBiggestSuppliers(ctx context.Context, rows []BiggestSupplierForYear) error {
	tx, err := as.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM biggest_supplier_for_year`)
	if err != nil {
		return fmt.Errorf("failed to clear biggest_supplier_for_year: %w", err)
	}

	if len(rows) > 0 {
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO biggest_supplier_for_year (supplier_id, year, expensed, rank)
			 VALUES (:supplier_id, :year, :expensed, :rank)`, rows)
		if err != nil {
			return fmt.Errorf("failed to insert biggest_supplier_for_year rows: %w", err)
		}
	}

	return tx.Commit()
}

func (as *AggregateStore) PerNatureForInstitution(ctx context.Context, institutionID int64) ([]PerNatureView, error) {
	query := `
	SELECT
		en.name AS nature_name,
		pn.legislature_id,
		pn.expensed
	FROM
		per_nature pn
	JOIN
		expense_natures en ON en.id = pn.nature_id
	WHERE
		pn.institution_id = $1
	ORDER BY
		pn.expensed DESC`

	var views []PerNatureView
	err := as.db.SelectContext(ctx, &views, query, institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-nature totals: %w", err)
	}
	return views, nil
}

func (as *AggregateStore) PerLegislatorForInstitution(ctx context.Context, institutionID int64) ([]PerLegislatorView, error) {
	query := `
	SELECT
		leg.name AS legislator_name,
		pl.legislature_id,
		pl.expensed
	FROM
		per_legislator pl
	JOIN
		legislators leg ON leg.id = pl.legislator_id
	WHERE
		pl.institution_id = $1
	ORDER BY
		pl.expensed DESC`

	var views []PerLegislatorView
	err := as.db.SelectContext(ctx, &views, query, institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-legislator totals: %w", err)
	}
	return views, nil
}

func (as *AggregateStore) BiggestSuppliers(ctx context.Context, year int, limit int) ([]BiggestSupplierView, error) {
	query := `
	SELECT
		s.name AS supplier_name,
		s.identifier AS supplier_identifier,
		bs.year,
		bs.expensed,
		bs.rank
	FROM
		biggest_supplier_for_year bs
	JOIN
		suppliers s ON s.id = bs.supplier_id
	WHERE
		($1 = 0 OR bs.year = $1)
	ORDER BY
		bs.year DESC, bs.rank
	LIMIT NULLIF($2, 0)`

	var views []BiggestSupplierView
	err := as.db.SelectContext(ctx, &views, query, year, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query biggest suppliers: %w", err)
	}
	return views, nil
}
