package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RunStore struct {
	db *sqlx.DB
}

// CreateOrResume enforces the at-most-one-committed-run-per-day invariant:
// finding an existing run for (date, legislature) wipes every archived
// expense it produced and hands the emptied run back, so an interrupted
// collection restarted the same day never double-counts. Across different
// days runs accumulate untouched.
func (rs *RunStore) CreateOrResume(ctx context.Context, legislatureID int64, date time.Time) (CollectionRun, bool, error) {
	day := date.Truncate(24 * time.Hour)

	var run CollectionRun
	err := rs.db.GetContext(ctx, &run,
		`SELECT id, token, date, legislature_id, created_at
		 FROM collection_runs WHERE legislature_id = $1 AND date = $2`,
		legislatureID, day)
	if err == nil {
		_, err = rs.db.ExecContext(ctx,
			`DELETE FROM archived_expenses WHERE collection_run_id = $1`, run.ID)
		if err != nil {
			return CollectionRun{}, false, err
		}
		return run, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return CollectionRun{}, false, err
	}

	run = CollectionRun{
		Token:         uuid.NewString(),
		Date:          day,
		LegislatureID: legislatureID,
	}
	err = rs.db.QueryRowxContext(ctx,
		`INSERT INTO collection_runs (token, date, legislature_id)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		run.Token, run.Date, run.LegislatureID).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return CollectionRun{}, false, err
	}
	return run, false, nil
}

func (rs *RunStore) Latest(ctx context.Context, limit int) ([]CollectionRun, error) {
	var runs []CollectionRun
	err := rs.db.SelectContext(ctx, &runs,
		`SELECT id, token, date, legislature_id, created_at
		 FROM collection_runs ORDER BY date DESC, id DESC LIMIT $1`, limit)
	return runs, err
}
