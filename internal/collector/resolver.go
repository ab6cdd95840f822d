package collector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/olhopublico/verbas/internal/normalize"
	"github.com/olhopublico/verbas/internal/store"
)

// Resolver memoizes the reference-entity upserts for one collection run.
// A collector resolves the same party, nature and supplier thousands of
// times across expense rows; the cache turns those into map hits. Caches are
// per-run (a fresh Resolver is built at run start) and are only touched from
// the pipeline's single writer goroutine.
type Resolver struct {
	storage     *store.Storage
	institution store.Institution

	parties     map[string]store.PoliticalParty
	legislators map[string]store.Legislator
	natures     map[string]store.ExpenseNature
	suppliers   map[string]store.Supplier
	mandates    map[string]store.Mandate
}

func NewResolver(storage *store.Storage, institution store.Institution) *Resolver {
	return &Resolver{
		storage:     storage,
		institution: institution,
		parties:     make(map[string]store.PoliticalParty),
		legislators: make(map[string]store.Legislator),
		natures:     make(map[string]store.ExpenseNature),
		suppliers:   make(map[string]store.Supplier),
		mandates:    make(map[string]store.Mandate),
	}
}

func (r *Resolver) Institution() store.Institution { return r.institution }

// Party resolves a source party spelling. The zero value with ok=false means
// the source recorded no affiliation.
func (r *Resolver) Party(ctx context.Context, siglum string) (store.PoliticalParty, bool, error) {
	canonical := normalize.CanonicalPartySiglum(siglum)
	if canonical == "" {
		return store.PoliticalParty{}, false, nil
	}
	if party, ok := r.parties[canonical]; ok {
		return party, true, nil
	}
	party, _, err := r.storage.Parties.GetOrCreate(ctx, canonical, "")
	if err != nil {
		return store.PoliticalParty{}, false, fmt.Errorf("failed to upsert party %q: %w", canonical, err)
	}
	r.parties[canonical] = party
	return party, true, nil
}

func (r *Resolver) Legislator(ctx context.Context, name, originalID string) (store.Legislator, error) {
	canonical := normalize.CanonicalLegislatorName(r.institution.Siglum, name)
	// Source ids are house-local registers; the same number at two houses
	// names two different people. Scope the id by siglum before persisting.
	if originalID != "" {
		originalID = r.institution.Siglum + "-" + originalID
	}
	cacheKey := canonical + "\x00" + originalID
	if legislator, ok := r.legislators[cacheKey]; ok {
		return legislator, nil
	}
	legislator, _, err := r.storage.Legislators.GetOrCreate(ctx, canonical, originalID)
	if err != nil {
		return store.Legislator{}, fmt.Errorf("failed to upsert legislator %q: %w", canonical, err)
	}
	r.legislators[cacheKey] = legislator
	return legislator, nil
}

func (r *Resolver) Nature(ctx context.Context, originalID, name string) (store.ExpenseNature, error) {
	canonical := normalize.CanonicalNatureName(name)
	cacheKey := originalID + "\x00" + canonical
	if nature, ok := r.natures[cacheKey]; ok {
		return nature, nil
	}
	nature, _, err := r.storage.Natures.GetOrCreate(ctx, originalID, canonical)
	if err != nil {
		return store.ExpenseNature{}, fmt.Errorf("failed to upsert nature %q: %w", canonical, err)
	}
	r.natures[cacheKey] = nature
	return nature, nil
}

func (r *Resolver) Supplier(ctx context.Context, rawIdentifier, name string) (store.Supplier, error) {
	identifier := normalize.SupplierIdentifier(rawIdentifier, name)
	if supplier, ok := r.suppliers[identifier]; ok {
		return supplier, nil
	}
	supplier, _, err := r.storage.Suppliers.GetOrCreate(ctx, identifier, normalize.CleanName(name))
	if err != nil {
		return store.Supplier{}, fmt.Errorf("failed to upsert supplier %q: %w", identifier, err)
	}
	r.suppliers[identifier] = supplier
	return supplier, nil
}

// Mandate upserts the (legislator, legislature) binding, keyed by the
// legislature's start date. Party and original id are creation attributes;
// original id is late-bound onto an existing mandate by the store.
func (r *Resolver) Mandate(ctx context.Context, legislator store.Legislator, legislature store.Legislature, partySiglum, originalID string) (store.Mandate, error) {
	cacheKey := fmt.Sprintf("%d\x00%s", legislator.ID, legislature.DateStart.Format("2006-01-02"))
	if mandate, ok := r.mandates[cacheKey]; ok {
		return mandate, nil
	}

	m := store.Mandate{
		LegislatorID:  legislator.ID,
		LegislatureID: legislature.ID,
		DateStart:     legislature.DateStart,
		DateEnd:       sql.NullTime{Time: legislature.DateEnd, Valid: true},
	}
	if party, ok, err := r.Party(ctx, partySiglum); err != nil {
		return store.Mandate{}, err
	} else if ok {
		m.PartyID = sql.NullInt64{Int64: party.ID, Valid: true}
	}
	if originalID != "" {
		m.OriginalID = sql.NullString{String: originalID, Valid: true}
	}

	mandate, _, err := r.storage.Mandates.GetOrCreate(ctx, m)
	if err != nil {
		return store.Mandate{}, fmt.Errorf("failed to upsert mandate for legislator %d: %w", legislator.ID, err)
	}
	r.mandates[cacheKey] = mandate
	return mandate, nil
}
