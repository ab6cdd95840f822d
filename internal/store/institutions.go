package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type InstitutionStore struct {
	db *sqlx.DB
}

func (is *InstitutionStore) GetOrCreate(ctx context.Context, siglum, name string) (Institution, bool, error) {
	var inst Institution
	err := is.db.GetContext(ctx, &inst,
		`SELECT id, siglum, name FROM institutions WHERE siglum = $1`, siglum)
	if err == nil {
		return inst, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Institution{}, false, err
	}

	inst = Institution{Siglum: siglum, Name: name}
	err = is.db.QueryRowxContext(ctx,
		`INSERT INTO institutions (siglum, name) VALUES ($1, $2) RETURNING id`,
		siglum, name).Scan(&inst.ID)
	if err != nil {
		return Institution{}, false, err
	}
	return inst, true, nil
}

func (is *InstitutionStore) GetBySiglum(ctx context.Context, siglum string) (Institution, error) {
	var inst Institution
	err := is.db.GetContext(ctx, &inst,
		`SELECT id, siglum, name FROM institutions WHERE siglum = $1`, siglum)
	if errors.Is(err, sql.ErrNoRows) {
		return Institution{}, ErrNotFound
	}
	return inst, err
}

func (is *InstitutionStore) List(ctx context.Context) ([]Institution, error) {
	var insts []Institution
	err := is.db.SelectContext(ctx, &insts,
		`SELECT id, siglum, name FROM institutions ORDER BY siglum`)
	return insts, err
}
