// Package collector holds the shared machinery every per-institution
// collector drives: the HTTP retrieval base, the run-scoped upsert resolver,
// the dedup-enforcing expense appender and the fetch pipeline. One concrete
// collector package exists per legislative house; each supplies its own
// parsing and URL templates on top of this base.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store"
)

// Collector is the common contract. UpdateLegislators upserts the roster
// (legislators, parties, mandates); UpdateData walks the collectable periods
// and archives expense lines under the active collection run. Both are
// idempotent: running twice must not duplicate mandates or expenses.
type Collector interface {
	Siglum() string
	UpdateLegislators(ctx context.Context) error
	UpdateData(ctx context.Context) error
}

// Deps is everything a concrete collector needs injected. No collector owns
// process-wide state; the persistence handle is scoped per run by the caller.
type Deps struct {
	Storage *store.Storage
	Log     *logger.Logger
	// BaseURL overrides the house's production endpoint, used by tests to
	// point the collector at an httptest server.
	BaseURL string
}

// StartRun creates or resumes today's collection run for a legislature.
// Resuming logs the reset, since it means a previous same-day attempt was
// interrupted and its partial data has just been discarded.
func StartRun(ctx context.Context, deps Deps, legislature store.Legislature) (store.CollectionRun, error) {
	const component = "RunManager"

	run, resumed, err := deps.Storage.Runs.CreateOrResume(ctx, legislature.ID, time.Now().UTC())
	if err != nil {
		return store.CollectionRun{}, fmt.Errorf("failed to create collection run: %w", err)
	}
	if resumed {
		deps.Log.Warn(component, "Resumed same-day run, prior archived expenses discarded: legislature=%d date=%s token=%s",
			legislature.ID, run.Date.Format(time.DateOnly), run.Token)
	} else {
		deps.Log.Info(component, "Started collection run: legislature=%d date=%s token=%s",
			legislature.ID, run.Date.Format(time.DateOnly), run.Token)
	}
	return run, nil
}

// Span is a known legislature term, declared per house as ISO dates.
type Span struct {
	Start string
	End   string
}

// EnsureReferenceData upserts the institution and its known legislatures.
// Every collector entry point calls this so UpdateLegislators and UpdateData
// each work standalone.
func EnsureReferenceData(ctx context.Context, deps Deps, siglum, name string, spans []Span) (store.Institution, []store.Legislature, error) {
	institution, _, err := deps.Storage.Institutions.GetOrCreate(ctx, siglum, name)
	if err != nil {
		return store.Institution{}, nil, fmt.Errorf("failed to upsert institution %s: %w", siglum, err)
	}

	var legislatures []store.Legislature
	for _, span := range spans {
		start, err := time.Parse("2006-01-02", span.Start)
		if err != nil {
			return store.Institution{}, nil, fmt.Errorf("bad legislature span start %q: %w", span.Start, err)
		}
		end, err := time.Parse("2006-01-02", span.End)
		if err != nil {
			return store.Institution{}, nil, fmt.Errorf("bad legislature span end %q: %w", span.End, err)
		}
		leg, _, err := deps.Storage.Legislatures.GetOrCreate(ctx, store.Legislature{
			InstitutionID: institution.ID,
			DateStart:     start,
			DateEnd:       end,
		})
		if err != nil {
			return store.Institution{}, nil, fmt.Errorf("failed to upsert legislature: %w", err)
		}
		legislatures = append(legislatures, leg)
	}
	return institution, legislatures, nil
}

// CurrentLegislature picks the latest term that has already started.
func CurrentLegislature(legislatures []store.Legislature) store.Legislature {
	now := time.Now().UTC()
	current := legislatures[0]
	for _, leg := range legislatures {
		if !leg.DateStart.After(now) {
			current = leg
		}
	}
	return current
}

// MonthsBetween lists (year, month) pairs from the start of a legislature up
// to the earlier of its end and the current date. Collectors iterate this to
// drive per-period fetches.
type Period struct {
	Year  int
	Month int
}

func MonthsBetween(start, end time.Time) []Period {
	if end.After(time.Now().UTC()) {
		end = time.Now().UTC()
	}
	var periods []Period
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		periods = append(periods, Period{Year: cursor.Year(), Month: int(cursor.Month())})
		cursor = cursor.AddDate(0, 1, 0)
	}
	return periods
}

// YearsBetween is the coarser variant for sources that publish yearly dumps.
func YearsBetween(start, end time.Time) []int {
	if end.After(time.Now().UTC()) {
		end = time.Now().UTC()
	}
	var years []int
	for y := start.Year(); y <= end.Year(); y++ {
		years = append(years, y)
	}
	return years
}
