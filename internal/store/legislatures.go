package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type LegislatureStore struct {
	db *sqlx.DB
}

// GetOrCreate keys on (institution_id, date_start). A legislature collected
// again with a learned original id gets it bound onto the existing row.
func (ls *LegislatureStore) GetOrCreate(ctx context.Context, leg Legislature) (Legislature, bool, error) {
	var existing Legislature
	err := ls.db.GetContext(ctx, &existing,
		`SELECT id, institution_id, date_start, date_end, original_id
		 FROM legislatures WHERE institution_id = $1 AND date_start = $2`,
		leg.InstitutionID, leg.DateStart)
	if err == nil {
		if leg.OriginalID.Valid && !existing.OriginalID.Valid {
			_, err = ls.db.ExecContext(ctx,
				`UPDATE legislatures SET original_id = $1 WHERE id = $2`,
				leg.OriginalID, existing.ID)
			if err != nil {
				return Legislature{}, false, err
			}
			existing.OriginalID = leg.OriginalID
		}
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Legislature{}, false, err
	}

	err = ls.db.QueryRowxContext(ctx,
		`INSERT INTO legislatures (institution_id, date_start, date_end, original_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		leg.InstitutionID, leg.DateStart, leg.DateEnd, leg.OriginalID).Scan(&leg.ID)
	if err != nil {
		return Legislature{}, false, err
	}
	return leg, true, nil
}

func (ls *LegislatureStore) ListByInstitution(ctx context.Context, institutionID int64) ([]Legislature, error) {
	var legs []Legislature
	err := ls.db.SelectContext(ctx, &legs,
		`SELECT id, institution_id, date_start, date_end, original_id
		 FROM legislatures WHERE institution_id = $1 ORDER BY date_start`,
		institutionID)
	return legs, err
}
