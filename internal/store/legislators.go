package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type LegislatorStore struct {
	db *sqlx.DB
}

// GetOrCreate prefers the original id as the lookup key and falls back to
// the exact name. Callers scope house-local ids by institution siglum before
// passing them here; name collisions across distinct people are handled
// upstream by the per-institution alias tables.
func (ls *LegislatorStore) GetOrCreate(ctx context.Context, name string, originalID string) (Legislator, bool, error) {
	var legislator Legislator

	if originalID != "" {
		err := ls.db.GetContext(ctx, &legislator,
			`SELECT id, name, original_id, site, email, gender, date_of_birth, about_html
			 FROM legislators WHERE original_id = $1`, originalID)
		if err == nil {
			return legislator, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Legislator{}, false, err
		}
	}

	err := ls.db.GetContext(ctx, &legislator,
		`SELECT id, name, original_id, site, email, gender, date_of_birth, about_html
		 FROM legislators WHERE name = $1`, name)
	if err == nil {
		// A legislator first seen without an original id keeps it once a
		// source finally publishes one.
		if originalID != "" && !legislator.OriginalID.Valid {
			_, err = ls.db.ExecContext(ctx,
				`UPDATE legislators SET original_id = $1 WHERE id = $2`,
				originalID, legislator.ID)
			if err != nil {
				return Legislator{}, false, err
			}
			legislator.OriginalID = sql.NullString{String: originalID, Valid: true}
		}
		return legislator, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Legislator{}, false, err
	}

	legislator = Legislator{Name: name}
	if originalID != "" {
		legislator.OriginalID = sql.NullString{String: originalID, Valid: true}
	}
	err = ls.db.QueryRowxContext(ctx,
		`INSERT INTO legislators (name, original_id) VALUES ($1, $2) RETURNING id`,
		name, legislator.OriginalID).Scan(&legislator.ID)
	if err != nil {
		return Legislator{}, false, err
	}
	return legislator, true, nil
}

// UpdateDetails persists biographical fields populated lazily by secondary
// collectors.
func (ls *LegislatorStore) UpdateDetails(ctx context.Context, l *Legislator) error {
	_, err := ls.db.NamedExecContext(ctx,
		`UPDATE legislators
		 SET site = :site, email = :email, gender = :gender,
		     date_of_birth = :date_of_birth, about_html = :about_html
		 WHERE id = :id`, l)
	return err
}
