package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store"
	"github.com/olhopublico/verbas/internal/store/memstore"
)

func pipelineFixture(t *testing.T) (*memstore.Store, *store.Storage, *Resolver, *Appender, []PeriodJob) {
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

	resolver := NewResolver(storage, institution)
	legislator, err := resolver.Legislator(ctx, "Maria Souza", "10")
	require.NoError(t, err)
	mandate, err := resolver.Mandate(ctx, legislator, legislature, "PT", "10")
	require.NoError(t, err)

	run, _, err := storage.Runs.CreateOrResume(ctx, legislature.ID, time.Now().UTC())
	require.NoError(t, err)
	appender := NewAppender(storage, &logger.Logger{MinLevel: logger.LevelError}, run)

	var jobs []PeriodJob
	for month := 1; month <= 4; month++ {
		jobs = append(jobs, PeriodJob{
			Mandate:    mandate,
			Legislator: legislator,
			Period:     Period{Year: 2024, Month: month},
		})
	}
	return ms, storage, resolver, appender, jobs
}

func TestPipelineSkipsFailedPeriods(t *testing.T) {
	ms, _, resolver, appender, jobs := pipelineFixture(t)

	fetch := func(ctx context.Context, job PeriodJob) ([]ExpenseRecord, error) {
		switch job.Period.Month {
		case 1:
			return nil, ErrNotFound
		case 2:
			return nil, errors.New("malformed page")
		default:
			return []ExpenseRecord{{
				Number:             "123",
				NatureName:         "Combustível",
				Date:               time.Date(2024, time.Month(job.Period.Month), 5, 0, 0, 0, 0, time.UTC),
				Value:              150,
				Expensed:           150,
				SupplierIdentifier: "01234567000189",
				SupplierName:       "Posto XYZ",
			}}, nil
		}
	}

	pipeline := NewPipeline(resolver, appender, fetch, 2)
	require.NoError(t, pipeline.Run(context.Background(), jobs))

	// Months 1 and 2 were skipped, 3 and 4 archived.
	appended, skipped := appender.Stats()
	require.Equal(t, 2, appended)
	require.Equal(t, 0, skipped)
	require.Len(t, ms.ArchivedExpenses(), 2)
}

func TestPipelineDeduplicatesAcrossPeriods(t *testing.T) {
	ms, _, resolver, appender, jobs := pipelineFixture(t)

	// Every period reports the exact same expense line.
	fixed := ExpenseRecord{
		Number:             "777",
		NatureName:         "Divulgação",
		Date:               time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Value:              30,
		Expensed:           30,
		SupplierIdentifier: "",
		SupplierName:       "Gráfica ABC",
	}
	fetch := func(ctx context.Context, job PeriodJob) ([]ExpenseRecord, error) {
		return []ExpenseRecord{fixed}, nil
	}

	pipeline := NewPipeline(resolver, appender, fetch, 0)
	require.NoError(t, pipeline.Run(context.Background(), jobs))

	appended, skipped := appender.Stats()
	require.Equal(t, 1, appended)
	require.Equal(t, len(jobs)-1, skipped)
	require.Len(t, ms.ArchivedExpenses(), 1)
}

func TestMonthsBetweenClampsToNow(t *testing.T) {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	periods := MonthsBetween(start, end)
	require.Equal(t, []Period{
		{Year: 2024, Month: 11},
		{Year: 2024, Month: 12},
		{Year: 2025, Month: 1},
		{Year: 2025, Month: 2},
	}, periods)

	// A legislature still running never yields future months.
	open := MonthsBetween(start, time.Now().UTC().AddDate(2, 0, 0))
	last := open[len(open)-1]
	now := time.Now().UTC()
	require.Equal(t, now.Year(), last.Year)
	require.Equal(t, int(now.Month()), last.Month)
}
