package consolidate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store"
	"github.com/olhopublico/verbas/internal/store/memstore"
)

type fixture struct {
	ms          *memstore.Store
	storage     *store.Storage
	institution store.Institution
	legislature store.Legislature
	natures     map[string]store.ExpenseNature
	suppliers   map[string]store.Supplier
	mandates    map[string]store.Mandate
	legislators map[string]store.Legislator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ms, storage := memstore.New()

	institution, _, err := storage.Institutions.GetOrCreate(ctx, "ALMG", "Assembleia de Minas")
	require.NoError(t, err)
	legislature, _, err := storage.Legislatures.GetOrCreate(ctx, store.Legislature{
		InstitutionID: institution.ID,
		DateStart:     time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:       time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	return &fixture{
		ms:          ms,
		storage:     storage,
		institution: institution,
		legislature: legislature,
		natures:     map[string]store.ExpenseNature{},
		suppliers:   map[string]store.Supplier{},
		mandates:    map[string]store.Mandate{},
		legislators: map[string]store.Legislator{},
	}
}

func (f *fixture) expense(t *testing.T, legislator, nature, supplier string, date time.Time, expensed float64) {
	t.Helper()
	ctx := context.Background()

	person, ok := f.legislators[legislator]
	if !ok {
		var err error
		person, _, err = f.storage.Legislators.GetOrCreate(ctx, legislator, "")
		require.NoError(t, err)
		f.legislators[legislator] = person
	}
	mandate, ok := f.mandates[legislator]
	if !ok {
		var err error
		mandate, _, err = f.storage.Mandates.GetOrCreate(ctx, store.Mandate{
			LegislatorID:  person.ID,
			LegislatureID: f.legislature.ID,
			DateStart:     f.legislature.DateStart,
		})
		require.NoError(t, err)
		f.mandates[legislator] = mandate
	}
	nat, ok := f.natures[nature]
	if !ok {
		var err error
		nat, _, err = f.storage.Natures.GetOrCreate(ctx, "", nature)
		require.NoError(t, err)
		f.natures[nature] = nat
	}
	sup, ok := f.suppliers[supplier]
	if !ok {
		var err error
		sup, _, err = f.storage.Suppliers.GetOrCreate(ctx, supplier, supplier)
		require.NoError(t, err)
		f.suppliers[supplier] = sup
	}

	require.NoError(t, f.storage.Expenses.Insert(ctx, &store.ArchivedExpense{
		Number:     "n",
		NatureID:   nat.ID,
		Date:       date,
		Value:      expensed,
		Expensed:   expensed,
		MandateID:  mandate.ID,
		SupplierID: sup.ID,
	}))
}

func TestInstitutionPerNatureRollups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.expense(t, "Maria", "Combustível", "posto", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 100)
	f.expense(t, "Maria", "Combustível", "posto", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), 50)
	f.expense(t, "João", "Divulgação", "grafica", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), 30)

	consolidator := New(f.storage, &logger.Logger{MinLevel: logger.LevelError})
	require.NoError(t, consolidator.Institution(ctx, "ALMG"))

	// Global totals, biggest first.
	global := map[string]float64{}
	for _, row := range f.ms.PerNatureRows() {
		if !row.LegislatureID.Valid {
			global[natureName(f, row.NatureID)] = row.Expensed
		}
	}
	require.Equal(t, map[string]float64{"Combustível": 150, "Divulgação": 30}, global)
	require.GreaterOrEqual(t, f.ms.PerNatureRows()[0].Expensed, f.ms.PerNatureRows()[1].Expensed)

	// Yearly bucket covers both natures for 2024.
	years := map[string]float64{}
	for _, row := range f.ms.PerNatureByYearRows() {
		if row.Year == 2024 {
			years[natureName(f, row.NatureID)] = row.Expensed
		}
	}
	require.Equal(t, map[string]float64{"Combustível": 150, "Divulgação": 30}, years)

	// Months run from the range start to the last observed month (March),
	// with zero rows where a nature spent nothing.
	months := map[int]map[string]float64{}
	for _, row := range f.ms.PerNatureByMonthRows() {
		if row.Year != 2024 {
			continue
		}
		if months[row.Month] == nil {
			months[row.Month] = map[string]float64{}
		}
		months[row.Month][natureName(f, row.NatureID)] = row.Expensed
	}
	require.Len(t, months, 3)
	require.Equal(t, 100.0, months[1]["Combustível"])
	require.Equal(t, 0.0, months[1]["Divulgação"])
	require.Equal(t, 30.0, months[2]["Divulgação"])
	require.Equal(t, 50.0, months[3]["Combustível"])
	_, future := months[4]
	require.False(t, future)
}

func TestInstitutionPerLegislatorGrandTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.expense(t, "Maria", "Combustível", "posto", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 100)
	f.expense(t, "Maria", "Divulgação", "grafica", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 40)
	f.expense(t, "João", "Combustível", "posto", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), 70)

	consolidator := New(f.storage, &logger.Logger{MinLevel: logger.LevelError})
	require.NoError(t, consolidator.Institution(ctx, "ALMG"))

	var mariaTotal, mariaInLegislature float64
	for _, row := range f.ms.PerLegislatorRows() {
		if row.LegislatorID != f.legislators["Maria"].ID {
			continue
		}
		if row.LegislatureID.Valid {
			mariaInLegislature = row.Expensed
		} else {
			mariaTotal = row.Expensed
		}
	}
	require.Equal(t, 140.0, mariaInLegislature)
	require.Equal(t, 140.0, mariaTotal)
}

func TestInstitutionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.expense(t, "Maria", "Combustível", "posto", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 100)

	consolidator := New(f.storage, &logger.Logger{MinLevel: logger.LevelError})
	require.NoError(t, consolidator.Institution(ctx, "ALMG"))
	first := len(f.ms.PerNatureRows())

	// Re-running replaces instead of accumulating.
	require.NoError(t, consolidator.Institution(ctx, "ALMG"))
	require.Len(t, f.ms.PerNatureRows(), first)
}

func TestAgnosticRanksSuppliersPerYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.expense(t, "Maria", "Combustível", "posto", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), 500)
	f.expense(t, "Maria", "Divulgação", "grafica", time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), 800)
	f.expense(t, "João", "Combustível", "posto", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 100)

	consolidator := New(f.storage, &logger.Logger{MinLevel: logger.LevelError})
	require.NoError(t, consolidator.Agnostic(ctx))

	rows := f.ms.BiggestSupplierRows()
	require.Len(t, rows, 3)

	byYear := map[int][]store.BiggestSupplierForYear{}
	for _, row := range rows {
		byYear[row.Year] = append(byYear[row.Year], row)
	}
	require.Len(t, byYear[2023], 2)
	require.Equal(t, f.suppliers["grafica"].ID, byYear[2023][0].SupplierID)
	require.Equal(t, 1, byYear[2023][0].Rank)
	require.Equal(t, 2, byYear[2023][1].Rank)
	require.Equal(t, 1, byYear[2024][0].Rank)
}

func TestDateRangesFromDataClipsToLegislatures(t *testing.T) {
	legislatures := []store.Legislature{
		{
			DateStart: time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC),
			DateEnd:   time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			DateStart: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			DateEnd:   time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	// Expense dates straddling the span clip to its boundaries.
	from, to, ok := DateRangesFromData(
		time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		legislatures)
	require.True(t, ok)
	require.Equal(t, legislatures[0].DateStart, from)
	require.Equal(t, legislatures[1].DateEnd, to)

	// Bounds inside the span pass through untouched.
	from, to, ok = DateRangesFromData(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		legislatures)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), to)

	_, _, ok = DateRangesFromData(time.Time{}, time.Time{}, nil)
	require.False(t, ok)
}

func natureName(f *fixture, natureID int64) string {
	for name, nature := range f.natures {
		if nature.ID == natureID {
			return name
		}
	}
	return ""
}
