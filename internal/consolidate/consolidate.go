// Package consolidate rebuilds the precomputed aggregate tables from the
// archived-expense ledger. Every pass deletes the prior rows for its scope
// and inserts the recomputed set, so re-running is always safe.
package consolidate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store"
)

type Consolidator struct {
	storage *store.Storage
	log     *logger.Logger
}

func New(storage *store.Storage, log *logger.Logger) *Consolidator {
	return &Consolidator{storage: storage, log: log}
}

// DateRangesFromData intersects the observed expense bounds with the
// institution's legislature span bounds. Expense dates outside the known
// spans clip to the nearest boundary instead of widening the range.
func DateRangesFromData(min, max time.Time, legislatures []store.Legislature) (time.Time, time.Time, bool) {
	if len(legislatures) == 0 {
		return time.Time{}, time.Time{}, false
	}
	spanStart := legislatures[0].DateStart
	spanEnd := legislatures[0].DateEnd
	for _, leg := range legislatures[1:] {
		if leg.DateStart.Before(spanStart) {
			spanStart = leg.DateStart
		}
		if leg.DateEnd.After(spanEnd) {
			spanEnd = leg.DateEnd
		}
	}

	from, to := min, max
	if from.Before(spanStart) {
		from = spanStart
	}
	if from.After(spanEnd) {
		from = spanEnd
	}
	if to.After(spanEnd) {
		to = spanEnd
	}
	if to.Before(spanStart) {
		to = spanStart
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// Institution rebuilds the per-nature and per-legislator aggregates for one
// house.
func (c *Consolidator) Institution(ctx context.Context, siglum string) error {
	const component = "Consolidator"

	institution, err := c.storage.Institutions.GetBySiglum(ctx, siglum)
	if err != nil {
		return fmt.Errorf("failed to load institution %s: %w", siglum, err)
	}
	legislatures, err := c.storage.Legislatures.ListByInstitution(ctx, institution.ID)
	if err != nil {
		return fmt.Errorf("failed to list legislatures for %s: %w", siglum, err)
	}

	min, max, ok, err := c.storage.Expenses.DateBounds(ctx, institution.ID)
	if err != nil {
		return fmt.Errorf("failed to derive date bounds for %s: %w", siglum, err)
	}
	if !ok {
		c.log.Info(component, "Nothing to consolidate: institution=%s", siglum)
		return nil
	}
	from, to, ok := DateRangesFromData(min, max, legislatures)
	if !ok {
		c.log.Warn(component, "Observed expenses fall entirely outside known legislatures: institution=%s", siglum)
		return nil
	}

	entries, err := c.storage.Expenses.Ledger(ctx, institution.ID, from, to)
	if err != nil {
		return fmt.Errorf("failed to load ledger for %s: %w", siglum, err)
	}

	perNature, byYear, byMonth := c.perNature(institution.ID, legislatures, entries, from, to)
	if err := c.storage.Aggregates.ReplacePerNature(ctx, institution.ID, perNature, byYear, byMonth); err != nil {
		return fmt.Errorf("failed to replace per-nature aggregates for %s: %w", siglum, err)
	}

	perLegislator := c.perLegislator(institution.ID, entries)
	if err := c.storage.Aggregates.ReplacePerLegislator(ctx, institution.ID, perLegislator); err != nil {
		return fmt.Errorf("failed to replace per-legislator aggregates for %s: %w", siglum, err)
	}

	c.log.Info(component, "Consolidated: institution=%s range=%s..%s ledger=%d natures=%d legislators=%d",
		siglum, from.Format(time.DateOnly), to.Format(time.DateOnly), len(entries), len(perNature), len(perLegislator))
	return nil
}

// perNature computes the global, per-legislature, per-year and per-month
// nature rollups. Every observed nature gets a row in each bucket of the
// range, zero when it spent nothing there; months past the latest date seen
// in a year are not emitted.
func (c *Consolidator) perNature(institutionID int64, legislatures []store.Legislature, entries []store.LedgerEntry, from, to time.Time) ([]store.PerNature, []store.PerNatureByYear, []store.PerNatureByMonth) {
	natures := map[int64]struct{}{}
	global := map[int64]float64{}
	perLegislature := map[[2]int64]float64{}
	perYear := map[[2]int64]float64{}
	perMonth := map[[3]int64]float64{}
	lastMonth := map[int]int{}

	for _, e := range entries {
		natures[e.NatureID] = struct{}{}
		global[e.NatureID] += e.Expensed
		perLegislature[[2]int64{e.NatureID, e.LegislatureID}] += e.Expensed

		year, month := e.Date.Year(), int(e.Date.Month())
		perYear[[2]int64{e.NatureID, int64(year)}] += e.Expensed
		perMonth[[3]int64{e.NatureID, int64(year), int64(month)}] += e.Expensed
		if month > lastMonth[year] {
			lastMonth[year] = month
		}
	}

	natureIDs := make([]int64, 0, len(natures))
	for id := range natures {
		natureIDs = append(natureIDs, id)
	}
	sort.Slice(natureIDs, func(i, j int) bool { return natureIDs[i] < natureIDs[j] })

	var rows []store.PerNature
	for _, natureID := range natureIDs {
		rows = append(rows, store.PerNature{
			InstitutionID: institutionID,
			NatureID:      natureID,
			Expensed:      global[natureID],
		})
	}
	for _, leg := range legislatures {
		if leg.DateEnd.Before(from) || leg.DateStart.After(to) {
			continue
		}
		for _, natureID := range natureIDs {
			rows = append(rows, store.PerNature{
				InstitutionID: institutionID,
				LegislatureID: sql.NullInt64{Int64: leg.ID, Valid: true},
				NatureID:      natureID,
				Expensed:      perLegislature[[2]int64{natureID, leg.ID}],
			})
		}
	}

	var yearRows []store.PerNatureByYear
	var monthRows []store.PerNatureByMonth
	for year := from.Year(); year <= to.Year(); year++ {
		for _, natureID := range natureIDs {
			yearRows = append(yearRows, store.PerNatureByYear{
				InstitutionID: institutionID,
				NatureID:      natureID,
				Year:          year,
				Expensed:      perYear[[2]int64{natureID, int64(year)}],
			})
		}

		last, seen := lastMonth[year]
		if !seen {
			continue
		}
		first := 1
		if year == from.Year() {
			first = int(from.Month())
		}
		for month := first; month <= last; month++ {
			for _, natureID := range natureIDs {
				monthRows = append(monthRows, store.PerNatureByMonth{
					InstitutionID: institutionID,
					NatureID:      natureID,
					Year:          year,
					Month:         month,
					Expensed:      perMonth[[3]int64{natureID, int64(year), int64(month)}],
				})
			}
		}
	}

	sortDescending(rows, func(r store.PerNature) float64 { return r.Expensed })
	sortDescending(yearRows, func(r store.PerNatureByYear) float64 { return r.Expensed })
	sortDescending(monthRows, func(r store.PerNatureByMonth) float64 { return r.Expensed })
	return rows, yearRows, monthRows
}

// perLegislator computes one row per legislature a legislator served in,
// plus a grand-total row with a null legislature.
func (c *Consolidator) perLegislator(institutionID int64, entries []store.LedgerEntry) []store.PerLegislator {
	perLegislature := map[[2]int64]float64{}
	totals := map[int64]float64{}

	for _, e := range entries {
		perLegislature[[2]int64{e.LegislatorID, e.LegislatureID}] += e.Expensed
		totals[e.LegislatorID] += e.Expensed
	}

	keys := make([][2]int64, 0, len(perLegislature))
	for key := range perLegislature {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	var rows []store.PerLegislator
	for _, key := range keys {
		rows = append(rows, store.PerLegislator{
			InstitutionID: institutionID,
			LegislatorID:  key[0],
			LegislatureID: sql.NullInt64{Int64: key[1], Valid: true},
			Expensed:      perLegislature[key],
		})
	}

	legislatorIDs := make([]int64, 0, len(totals))
	for id := range totals {
		legislatorIDs = append(legislatorIDs, id)
	}
	sort.Slice(legislatorIDs, func(i, j int) bool { return legislatorIDs[i] < legislatorIDs[j] })
	for _, id := range legislatorIDs {
		rows = append(rows, store.PerLegislator{
			InstitutionID: institutionID,
			LegislatorID:  id,
			Expensed:      totals[id],
		})
	}

	sortDescending(rows, func(r store.PerLegislator) float64 { return r.Expensed })
	return rows
}

// Agnostic rebuilds the cross-institution supplier ranking: for every
// calendar year with data, all suppliers ordered by total expensed. Every
// row is kept, not just a top-N cut.
func (c *Consolidator) Agnostic(ctx context.Context) error {
	const component = "Consolidator"

	min, max, ok, err := c.storage.Expenses.DateBounds(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to derive global date bounds: %w", err)
	}
	if !ok {
		c.log.Info(component, "Nothing to consolidate for the agnostic pass")
		return nil
	}

	entries, err := c.storage.Expenses.Ledger(ctx, 0, min, max)
	if err != nil {
		return fmt.Errorf("failed to load global ledger: %w", err)
	}

	perYear := map[int]map[int64]float64{}
	for _, e := range entries {
		year := e.Date.Year()
		if perYear[year] == nil {
			perYear[year] = map[int64]float64{}
		}
		perYear[year][e.SupplierID] += e.Expensed
	}

	years := make([]int, 0, len(perYear))
	for year := range perYear {
		years = append(years, year)
	}
	sort.Ints(years)

	var rows []store.BiggestSupplierForYear
	for _, year := range years {
		suppliers := perYear[year]
		ids := make([]int64, 0, len(suppliers))
		for id := range suppliers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		sort.SliceStable(ids, func(i, j int) bool { return suppliers[ids[i]] > suppliers[ids[j]] })

		for rank, id := range ids {
			rows = append(rows, store.BiggestSupplierForYear{
				SupplierID: id,
				Year:       year,
				Expensed:   suppliers[id],
				Rank:       rank + 1,
			})
		}
	}

	if err := c.storage.Aggregates.ReplaceBiggestSuppliers(ctx, rows); err != nil {
		return fmt.Errorf("failed to replace supplier ranking: %w", err)
	}

	c.log.Info(component, "Consolidated agnostic pass: years=%d rows=%d", len(years), len(rows))
	return nil
}

// sortDescending orders aggregate rows by expensed, biggest first, keeping
// the deterministic key order produced upstream for ties.
func sortDescending[T any](rows []T, expensed func(T) float64) {
	sort.SliceStable(rows, func(i, j int) bool { return expensed(rows[i]) > expensed(rows[j]) })
}
