package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type NatureStore struct {
	db *sqlx.DB
}

// GetOrCreate scopes the nature by original id when the source publishes a
// stable code, by canonical name otherwise. Name normalization happens
// before this call.
func (ns *NatureStore) GetOrCreate(ctx context.Context, originalID, name string) (ExpenseNature, bool, error) {
	var nature ExpenseNature
	var err error

	if originalID != "" {
		err = ns.db.GetContext(ctx, &nature,
			`SELECT id, name, original_id FROM expense_natures WHERE original_id = $1`,
			originalID)
	} else {
		err = ns.db.GetContext(ctx, &nature,
			`SELECT id, name, original_id FROM expense_natures WHERE original_id IS NULL AND name = $1`,
			name)
	}
	if err == nil {
		return nature, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ExpenseNature{}, false, err
	}

	nature = ExpenseNature{Name: name}
	if originalID != "" {
		nature.OriginalID = sql.NullString{String: originalID, Valid: true}
	}
	err = ns.db.QueryRowxContext(ctx,
		`INSERT INTO expense_natures (name, original_id) VALUES ($1, $2) RETURNING id`,
		name, nature.OriginalID).Scan(&nature.ID)
	if err != nil {
		return ExpenseNature{}, false, err
	}
	return nature, true, nil
}
