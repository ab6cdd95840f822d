package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/olhopublico/verbas/internal/store"
)

// ExpenseRecord is the intermediate form a concrete collector parses remote
// rows into, before reference-data resolution.
type ExpenseRecord struct {
	Number             string
	NatureOriginalID   string
	NatureName         string
	Date               time.Time
	Value              float64
	Expensed           float64
	SupplierIdentifier string
	SupplierName       string
	OriginalID         string
}

// PeriodJob is one unit of fetch work: a mandate and the period to collect
// for it.
type PeriodJob struct {
	Mandate    store.Mandate
	Legislator store.Legislator
	Period     Period
}

// FetchFunc performs the network fetch and parse for one job. ErrNotFound
// means the source published nothing for the period.
type FetchFunc func(ctx context.Context, job PeriodJob) ([]ExpenseRecord, error)

type fetchResult struct {
	job     PeriodJob
	records []ExpenseRecord
	err     error
}

const (
	defaultWorkers = 4
	// Bounded result queue: fetch workers block here when parsing outpaces
	// database writes, capping memory growth.
	resultQueueSize = 64
)

// Pipeline runs the bounded worker pool for UpdateData. N workers pull
// period jobs and push parsed results onto a bounded channel; one writer
// goroutine drains it and performs every store write. Producers and the
// writer share nothing but the two channels and the completion signal, which
// keeps the resolver cache and the store free of concurrent writes.
type Pipeline struct {
	resolver *Resolver
	appender *Appender
	fetch    FetchFunc
	workers  int
}

func NewPipeline(resolver *Resolver, appender *Appender, fetch FetchFunc, workers int) *Pipeline {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pipeline{
		resolver: resolver,
		appender: appender,
		fetch:    fetch,
		workers:  workers,
	}
}

// Run processes every job to completion. Per-period failures (retry budget
// exhausted, malformed page) are logged and skipped so one bad month never
// forfeits the rest of the run; only a store write failure aborts.
func (p *Pipeline) Run(ctx context.Context, jobs []PeriodJob) error {
	const component = "Pipeline"
	log := p.appender.log

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobChan := make(chan PeriodJob, len(jobs))
	resultChan := make(chan fetchResult, resultQueueSize)

	var producers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for job := range jobChan {
				if ctx.Err() != nil {
					return
				}
				records, err := p.fetch(ctx, job)
				select {
				case resultChan <- fetchResult{job: job, records: records, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	go func() {
		producers.Wait()
		close(resultChan)
	}()

	var writeErr error
	for result := range resultChan {
		period := result.job.Period
		if result.err != nil {
			if errors.Is(result.err, ErrNotFound) {
				log.Debug(component, "No data for period: legislator=%s year=%d month=%d",
					result.job.Legislator.Name, period.Year, period.Month)
			} else {
				log.Warn(component, "Period fetch failed, skipping: legislator=%s year=%d month=%d err=%v",
					result.job.Legislator.Name, period.Year, period.Month, result.err)
			}
			continue
		}
		if writeErr != nil {
			// Already aborting; drain remaining results so producers
			// can finish.
			continue
		}
		if err := p.writeRecords(ctx, result); err != nil {
			log.Error(component, "Store write failed, aborting run: err=%v", err)
			writeErr = err
			cancel()
		}
	}

	return writeErr
}

func (p *Pipeline) writeRecords(ctx context.Context, result fetchResult) error {
	const component = "Pipeline"
	log := p.appender.log

	for _, rec := range result.records {
		nature, err := p.resolver.Nature(ctx, rec.NatureOriginalID, rec.NatureName)
		if err != nil {
			return err
		}
		supplier, err := p.resolver.Supplier(ctx, rec.SupplierIdentifier, rec.SupplierName)
		if err != nil {
			return err
		}

		expense := store.ArchivedExpense{
			Number:     rec.Number,
			NatureID:   nature.ID,
			Date:       rec.Date,
			Value:      rec.Value,
			Expensed:   rec.Expensed,
			MandateID:  result.job.Mandate.ID,
			SupplierID: supplier.ID,
		}
		if rec.OriginalID != "" {
			expense.OriginalID.String = rec.OriginalID
			expense.OriginalID.Valid = true
		}
		if _, err := p.appender.Add(ctx, &expense); err != nil {
			return err
		}
	}

	appended, skipped := p.appender.Stats()
	log.Debug(component, "Archived period: legislator=%s year=%d month=%d rows=%d totalAppended=%d totalSkipped=%d",
		result.job.Legislator.Name, result.job.Period.Year, result.job.Period.Month,
		len(result.records), appended, skipped)
	return nil
}
