package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type SupplierStore struct {
	db *sqlx.DB
}

// GetOrCreate keys on the normalized identifier, which may be the synthetic
// "Sem CNPJ/CPF (<name>)" marker built by the caller.
func (ss *SupplierStore) GetOrCreate(ctx context.Context, identifier, name string) (Supplier, bool, error) {
	var supplier Supplier
	err := ss.db.GetContext(ctx, &supplier,
		`SELECT id, identifier, name FROM suppliers WHERE identifier = $1`, identifier)
	if err == nil {
		return supplier, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Supplier{}, false, err
	}

	supplier = Supplier{Identifier: identifier, Name: name}
	err = ss.db.QueryRowxContext(ctx,
		`INSERT INTO suppliers (identifier, name) VALUES ($1, $2) RETURNING id`,
		identifier, name).Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, false, err
	}
	return supplier, true, nil
}
