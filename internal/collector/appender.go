package collector

import (
	"context"
	"fmt"

	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store"
)

// expenseKey is the composite identity of an expense within one run. Several
// sources never expose a trustworthy document id, so equality over these
// fields is what "already collected" means.
type expenseKey struct {
	Number     string
	NatureID   int64
	Date       string
	MandateID  int64
	SupplierID int64
	Expensed   float64
}

// Appender is the single write path for archived expenses during a run. It
// enforces the dedup invariant: a record matching the composite key of one
// already appended this run is skipped, not re-inserted. Only the pipeline's
// writer goroutine may call it.
type Appender struct {
	storage *store.Storage
	log     *logger.Logger
	run     store.CollectionRun
	seen    map[expenseKey]struct{}

	appended int
	skipped  int
}

func NewAppender(storage *store.Storage, log *logger.Logger, run store.CollectionRun) *Appender {
	return &Appender{
		storage: storage,
		log:     log,
		run:     run,
		seen:    make(map[expenseKey]struct{}),
	}
}

// Add archives the expense under the current run unless an equivalent one
// was already appended. Returns whether a row was inserted.
func (a *Appender) Add(ctx context.Context, e *store.ArchivedExpense) (bool, error) {
	const component = "Appender"

	key := expenseKey{
		Number:     e.Number,
		NatureID:   e.NatureID,
		Date:       e.Date.Format("2006-01-02"),
		MandateID:  e.MandateID,
		SupplierID: e.SupplierID,
		Expensed:   e.Expensed,
	}
	if _, dup := a.seen[key]; dup {
		a.skipped++
		a.log.Debug(component, "Skipping duplicate expense: number=%s mandate=%d date=%s", e.Number, e.MandateID, key.Date)
		return false, nil
	}

	e.CollectionRunID = a.run.ID
	if err := a.storage.Expenses.Insert(ctx, e); err != nil {
		return false, fmt.Errorf("failed to archive expense %s: %w", e.Number, err)
	}
	a.seen[key] = struct{}{}
	a.appended++
	return true, nil
}

func (a *Appender) Stats() (appended, skipped int) {
	return a.appended, a.skipped
}
