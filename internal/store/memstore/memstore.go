// Package memstore implements the store interfaces in memory. The sqlx
// stores speak postgres SQL, which unit tests never execute; collector and
// consolidator tests run against this implementation instead.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/olhopublico/verbas/internal/store"
)

// Store holds every table as a slice and hands out sequential ids. It is not
// safe for concurrent use; like the production store it relies on the
// collector's single-writer discipline.
type Store struct {
	nextID int64

	institutions []store.Institution
	legislatures []store.Legislature
	parties      []store.PoliticalParty
	legislators  []store.Legislator
	mandates     []store.Mandate
	natures      []store.ExpenseNature
	suppliers    []store.Supplier
	runs         []store.CollectionRun
	expenses     []store.ArchivedExpense

	perNature        []store.PerNature
	perNatureByYear  []store.PerNatureByYear
	perNatureByMonth []store.PerNatureByMonth
	perLegislator    []store.PerLegislator
	biggestSuppliers []store.BiggestSupplierForYear
}

func New() (*Store, *store.Storage) {
	ms := &Store{}
	return ms, &store.Storage{
		Institutions: (*institutions)(ms),
		Legislatures: (*legislatures)(ms),
		Parties:      (*parties)(ms),
		Legislators:  (*legislators)(ms),
		Mandates:     (*mandates)(ms),
		Natures:      (*natures)(ms),
		Suppliers:    (*suppliers)(ms),
		Runs:         (*runs)(ms),
		Expenses:     (*expenses)(ms),
		Aggregates:   (*aggregates)(ms),
	}
}

func (ms *Store) id() int64 {
	ms.nextID++
	return ms.nextID
}

// Snapshot counters used by consolidation-determinism assertions.

func (ms *Store) PerNatureRows() []store.PerNature               { return ms.perNature }
func (ms *Store) PerNatureByYearRows() []store.PerNatureByYear   { return ms.perNatureByYear }
func (ms *Store) PerNatureByMonthRows() []store.PerNatureByMonth { return ms.perNatureByMonth }
func (ms *Store) PerLegislatorRows() []store.PerLegislator       { return ms.perLegislator }
func (ms *Store) BiggestSupplierRows() []store.BiggestSupplierForYear {
	return ms.biggestSuppliers
}
func (ms *Store) ArchivedExpenses() []store.ArchivedExpense { return ms.expenses }

type institutions Store

func (t *institutions) GetOrCreate(ctx context.Context, siglum, name string) (store.Institution, bool, error) {
	for _, inst := range t.institutions {
		if inst.Siglum == siglum {
			return inst, false, nil
		}
	}
	inst := store.Institution{ID: (*Store)(t).id(), Siglum: siglum, Name: name}
	t.institutions = append(t.institutions, inst)
	return inst, true, nil
}

func (t *institutions) GetBySiglum(ctx context.Context, siglum string) (store.Institution, error) {
	for _, inst := range t.institutions {
		if inst.Siglum == siglum {
			return inst, nil
		}
	}
	return store.Institution{}, store.ErrNotFound
}

func (t *institutions) List(ctx context.Context) ([]store.Institution, error) {
	out := append([]store.Institution(nil), t.institutions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Siglum < out[j].Siglum })
	return out, nil
}

type legislatures Store

func (t *legislatures) GetOrCreate(ctx context.Context, leg store.Legislature) (store.Legislature, bool, error) {
	for i, existing := range t.legislatures {
		if existing.InstitutionID == leg.InstitutionID && existing.DateStart.Equal(leg.DateStart) {
			if leg.OriginalID.Valid && !existing.OriginalID.Valid {
				t.legislatures[i].OriginalID = leg.OriginalID
			}
			return t.legislatures[i], false, nil
		}
	}
	leg.ID = (*Store)(t).id()
	t.legislatures = append(t.legislatures, leg)
	return leg, true, nil
}

func (t *legislatures) ListByInstitution(ctx context.Context, institutionID int64) ([]store.Legislature, error) {
	var out []store.Legislature
	for _, leg := range t.legislatures {
		if leg.InstitutionID == institutionID {
			out = append(out, leg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateStart.Before(out[j].DateStart) })
	return out, nil
}

type parties Store

func (t *parties) GetOrCreate(ctx context.Context, siglum, name string) (store.PoliticalParty, bool, error) {
	for _, party := range t.parties {
		if party.Siglum == siglum {
			return party, false, nil
		}
	}
	if name == "" {
		name = siglum
	}
	party := store.PoliticalParty{ID: (*Store)(t).id(), Siglum: siglum, Name: name}
	t.parties = append(t.parties, party)
	return party, true, nil
}

type legislators Store

func (t *legislators) GetOrCreate(ctx context.Context, name string, originalID string) (store.Legislator, bool, error) {
	if originalID != "" {
		for _, l := range t.legislators {
			if l.OriginalID.Valid && l.OriginalID.String == originalID {
				return l, false, nil
			}
		}
	}
	for i, l := range t.legislators {
		if l.Name == name {
			if originalID != "" && !l.OriginalID.Valid {
				t.legislators[i].OriginalID = sql.NullString{String: originalID, Valid: true}
			}
			return t.legislators[i], false, nil
		}
	}
	l := store.Legislator{ID: (*Store)(t).id(), Name: name}
	if originalID != "" {
		l.OriginalID = sql.NullString{String: originalID, Valid: true}
	}
	t.legislators = append(t.legislators, l)
	return l, true, nil
}

func (t *legislators) UpdateDetails(ctx context.Context, l *store.Legislator) error {
	for i, existing := range t.legislators {
		if existing.ID == l.ID {
			t.legislators[i] = *l
			return nil
		}
	}
	return store.ErrNotFound
}

type mandates Store

func (t *mandates) GetOrCreate(ctx context.Context, m store.Mandate) (store.Mandate, bool, error) {
	for i, existing := range t.mandates {
		if existing.LegislatorID == m.LegislatorID && existing.DateStart.Equal(m.DateStart) {
			if m.OriginalID.Valid && !existing.OriginalID.Valid {
				t.mandates[i].OriginalID = m.OriginalID
			}
			return t.mandates[i], false, nil
		}
	}
	m.ID = (*Store)(t).id()
	t.mandates = append(t.mandates, m)
	return m, true, nil
}

type natures Store

func (t *natures) GetOrCreate(ctx context.Context, originalID, name string) (store.ExpenseNature, bool, error) {
	for _, n := range t.natures {
		if originalID != "" {
			if n.OriginalID.Valid && n.OriginalID.String == originalID {
				return n, false, nil
			}
		} else if !n.OriginalID.Valid && n.Name == name {
			return n, false, nil
		}
	}
	n := store.ExpenseNature{ID: (*Store)(t).id(), Name: name}
	if originalID != "" {
		n.OriginalID = sql.NullString{String: originalID, Valid: true}
	}
	t.natures = append(t.natures, n)
	return n, true, nil
}

type suppliers Store

func (t *suppliers) GetOrCreate(ctx context.Context, identifier, name string) (store.Supplier, bool, error) {
	for _, s := range t.suppliers {
		if s.Identifier == identifier {
			return s, false, nil
		}
	}
	s := store.Supplier{ID: (*Store)(t).id(), Identifier: identifier, Name: name}
	t.suppliers = append(t.suppliers, s)
	return s, true, nil
}

type runs Store

func (t *runs) CreateOrResume(ctx context.Context, legislatureID int64, date time.Time) (store.CollectionRun, bool, error) {
	day := date.Truncate(24 * time.Hour)
	for _, run := range t.runs {
		if run.LegislatureID == legislatureID && run.Date.Equal(day) {
			kept := t.expenses[:0]
			for _, e := range t.expenses {
				if e.CollectionRunID != run.ID {
					kept = append(kept, e)
				}
			}
			t.expenses = kept
			return run, true, nil
		}
	}
	run := store.CollectionRun{
		ID:            (*Store)(t).id(),
		Token:         uuid.NewString(),
		Date:          day,
		LegislatureID: legislatureID,
		CreatedAt:     time.Now(),
	}
	t.runs = append(t.runs, run)
	return run, false, nil
}

func (t *runs) Latest(ctx context.Context, limit int) ([]store.CollectionRun, error) {
	out := append([]store.CollectionRun(nil), t.runs...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type expenses Store

func (t *expenses) Insert(ctx context.Context, e *store.ArchivedExpense) error {
	e.ID = (*Store)(t).id()
	t.expenses = append(t.expenses, *e)
	return nil
}

func (t *expenses) DeleteByRun(ctx context.Context, runID int64) error {
	kept := t.expenses[:0]
	for _, e := range t.expenses {
		if e.CollectionRunID != runID {
			kept = append(kept, e)
		}
	}
	t.expenses = kept
	return nil
}

func (t *expenses) Ledger(ctx context.Context, institutionID int64, from, to time.Time) ([]store.LedgerEntry, error) {
	var out []store.LedgerEntry
	for _, e := range t.expenses {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		mandate, err := (*Store)(t).mandateByID(e.MandateID)
		if err != nil {
			return nil, err
		}
		legislature, err := (*Store)(t).legislatureByID(mandate.LegislatureID)
		if err != nil {
			return nil, err
		}
		if institutionID != 0 && legislature.InstitutionID != institutionID {
			continue
		}
		out = append(out, store.LedgerEntry{
			Expensed:      e.Expensed,
			Date:          e.Date,
			NatureID:      e.NatureID,
			SupplierID:    e.SupplierID,
			LegislatorID:  mandate.LegislatorID,
			LegislatureID: legislature.ID,
			InstitutionID: legislature.InstitutionID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *expenses) DateBounds(ctx context.Context, institutionID int64) (time.Time, time.Time, bool, error) {
	var min, max time.Time
	found := false
	for _, e := range t.expenses {
		mandate, err := (*Store)(t).mandateByID(e.MandateID)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		legislature, err := (*Store)(t).legislatureByID(mandate.LegislatureID)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		if institutionID != 0 && legislature.InstitutionID != institutionID {
			continue
		}
		if !found || e.Date.Before(min) {
			min = e.Date
		}
		if !found || e.Date.After(max) {
			max = e.Date
		}
		found = true
	}
	return min, max, found, nil
}

func (ms *Store) mandateByID(id int64) (store.Mandate, error) {
	for _, m := range ms.mandates {
		if m.ID == id {
			return m, nil
		}
	}
	return store.Mandate{}, fmt.Errorf("memstore: mandate %d: %w", id, store.ErrNotFound)
}

func (ms *Store) legislatureByID(id int64) (store.Legislature, error) {
	for _, l := range ms.legislatures {
		if l.ID == id {
			return l, nil
		}
	}
	return store.Legislature{}, fmt.Errorf("memstore: legislature %d: %w", id, store.ErrNotFound)
}

type aggregates Store

func (t *aggregates) ReplacePerNature(ctx context.Context, institutionID int64, rows []store.PerNature, byYear []store.PerNatureByYear, byMonth []store.PerNatureByMonth) error {
	t.perNature = dropByInstitution(t.perNature, institutionID, func(r store.PerNature) int64 { return r.InstitutionID })
	t.perNatureByYear = dropByInstitution(t.perNatureByYear, institutionID, func(r store.PerNatureByYear) int64 { return r.InstitutionID })
	t.perNatureByMonth = dropByInstitution(t.perNatureByMonth, institutionID, func(r store.PerNatureByMonth) int64 { return r.InstitutionID })

	for _, r := range rows {
		r.ID = (*Store)(t).id()
		t.perNature = append(t.perNature, r)
	}
	for _, r := range byYear {
		r.ID = (*Store)(t).id()
		t.perNatureByYear = append(t.perNatureByYear, r)
	}
	for _, r := range byMonth {
		r.ID = (*Store)(t).id()
		t.perNatureByMonth = append(t.perNatureByMonth, r)
	}
	return nil
}

func (t *aggregates) ReplacePerLegislator(ctx context.Context, institutionID int64, rows []store.PerLegislator) error {
	t.perLegislator = dropByInstitution(t.perLegislator, institutionID, func(r store.PerLegislator) int64 { return r.InstitutionID })
	for _, r := range rows {
		r.ID = (*Store)(t).id()
		t.perLegislator = append(t.perLegislator, r)
	}
	return nil
}

func (t *aggregates) ReplaceBiggestSuppliers(ctx context.Context, rows []store.BiggestSupplierForYear) error {
	t.biggestSuppliers = nil
	for _, r := range rows {
		r.ID = (*Store)(t).id()
		t.biggestSuppliers = append(t.biggestSuppliers, r)
	}
	return nil
}

func (t *aggregates) PerNatureForInstitution(ctx context.Context, institutionID int64) ([]store.PerNatureView, error) {
	var out []store.PerNatureView
	for _, r := range t.perNature {
		if r.InstitutionID != institutionID {
			continue
		}
		view := store.PerNatureView{Expensed: r.Expensed}
		for _, n := range t.natures {
			if n.ID == r.NatureID {
				view.NatureName = n.Name
			}
		}
		if r.LegislatureID.Valid {
			id := r.LegislatureID.Int64
			view.LegislatureID = &id
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Expensed > out[j].Expensed })
	return out, nil
}

func (t *aggregates) PerLegislatorForInstitution(ctx context.Context, institutionID int64) ([]store.PerLegislatorView, error) {
	var out []store.PerLegislatorView
	for _, r := range t.perLegislator {
		if r.InstitutionID != institutionID {
			continue
		}
		view := store.PerLegislatorView{Expensed: r.Expensed}
		for _, l := range t.legislators {
			if l.ID == r.LegislatorID {
				view.LegislatorName = l.Name
			}
		}
		if r.LegislatureID.Valid {
			id := r.LegislatureID.Int64
			view.LegislatureID = &id
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Expensed > out[j].Expensed })
	return out, nil
}

func (t *aggregates) BiggestSuppliers(ctx context.Context, year int, limit int) ([]store.BiggestSupplierView, error) {
	var out []store.BiggestSupplierView
	for _, r := range t.biggestSuppliers {
		if year != 0 && r.Year != year {
			continue
		}
		view := store.BiggestSupplierView{Year: r.Year, Expensed: r.Expensed, Rank: r.Rank}
		for _, s := range t.suppliers {
			if s.ID == r.SupplierID {
				view.SupplierName = s.Name
				view.SupplierIdentifier = s.Identifier
			}
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Rank < out[j].Rank
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func dropByInstitution[T any](rows []T, institutionID int64, key func(T) int64) []T {
	kept := rows[:0]
	for _, r := range rows {
		if key(r) != institutionID {
			kept = append(kept, r)
		}
	}
	return kept
}
