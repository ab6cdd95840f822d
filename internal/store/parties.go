package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type PartyStore struct {
	db *sqlx.DB
}

func (ps *PartyStore) GetOrCreate(ctx context.Context, siglum, name string) (PoliticalParty, bool, error) {
	var party PoliticalParty
	err := ps.db.GetContext(ctx, &party,
		`SELECT id, siglum, name, logo_url, wikipedia_url
		 FROM political_parties WHERE siglum = $1`, siglum)
	if err == nil {
		return party, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return PoliticalParty{}, false, err
	}

	if name == "" {
		name = siglum
	}
	party = PoliticalParty{Siglum: siglum, Name: name}
	err = ps.db.QueryRowxContext(ctx,
		`INSERT INTO political_parties (siglum, name) VALUES ($1, $2) RETURNING id`,
		siglum, name).Scan(&party.ID)
	if err != nil {
		return PoliticalParty{}, false, err
	}
	return party, true, nil
}
