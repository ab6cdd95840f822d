package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type MandateStore struct {
	db *sqlx.DB
}

// GetOrCreate keys on (legislator_id, date_start). The caller fills DateStart
// from the legislature, so re-collection of the same term always finds the
// same mandate. A supplied original id is late-bound onto an existing mandate
// that pre-existed without one.
func (ms *MandateStore) GetOrCreate(ctx context.Context, m Mandate) (Mandate, bool, error) {
	var existing Mandate
	err := ms.db.GetContext(ctx, &existing,
		`SELECT id, legislator_id, legislature_id, party_id, date_start, date_end, original_id, state
		 FROM mandates WHERE legislator_id = $1 AND date_start = $2`,
		m.LegislatorID, m.DateStart)
	if err == nil {
		if m.OriginalID.Valid && !existing.OriginalID.Valid {
			_, err = ms.db.ExecContext(ctx,
				`UPDATE mandates SET original_id = $1 WHERE id = $2`,
				m.OriginalID, existing.ID)
			if err != nil {
				return Mandate{}, false, err
			}
			existing.OriginalID = m.OriginalID
		}
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Mandate{}, false, err
	}

	err = ms.db.QueryRowxContext(ctx,
		`INSERT INTO mandates (legislator_id, legislature_id, party_id, date_start, date_end, original_id, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.LegislatorID, m.LegislatureID, m.PartyID, m.DateStart, m.DateEnd, m.OriginalID, m.State).Scan(&m.ID)
	if err != nil {
		return Mandate{}, false, err
	}
	return m, true, nil
}
