// Package cmbh collects the Câmara Municipal de Belo Horizonte. The portal
// serves paginated HTML fragments behind a POST endpoint that expects
// browser-looking Referer/Origin headers, one page of expense rows at a
// time, with a reported period total in the table footer.
package cmbh

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/normalize"
	"github.com/olhopublico/verbas/internal/store"
)

const (
	siglum          = "CMBH"
	institutionName = "Câmara Municipal de Belo Horizonte"
	productionURL   = "https://www.cmbh.mg.gov.br"

	// Divergence between the portal's reported period total and the sum of
	// parsed rows beyond this is logged, never fatal; the computed total is
	// the one trusted.
	totalEpsilon = 0.01

	// No councilor has ever needed this many pages in one month; past it the
	// portal is ignoring the pagina parameter and the period is abandoned.
	maxPages = 50
)

var legislatureSpans = []collector.Span{
	{Start: "2013-01-01", End: "2016-12-31"},
	{Start: "2017-01-01", End: "2020-12-31"},
	{Start: "2021-01-01", End: "2024-12-31"},
	{Start: "2025-01-01", End: "2028-12-31"},
}

type Collector struct {
	deps    collector.Deps
	base    *collector.Base
	baseURL string
}

func New(deps collector.Deps) *Collector {
	baseURL := deps.BaseURL
	if baseURL == "" {
		baseURL = productionURL
	}
	return &Collector{
		deps:    deps,
		base:    collector.NewBase(deps.Log),
		baseURL: baseURL,
	}
}

func (c *Collector) Siglum() string { return siglum }

func (c *Collector) browserHeaders() map[string]string {
	return map[string]string{
		"Referer": c.baseURL + "/transparencia/vereadores/verba-indenizatoria",
		"Origin":  c.baseURL,
	}
}

// UpdateLegislators scrapes the councilor index page.
func (c *Collector) UpdateLegislators(ctx context.Context) error {
	const component = "CMBH"

	institution, legislatures, err := collector.EnsureReferenceData(ctx, c.deps, siglum, institutionName, legislatureSpans)
	if err != nil {
		return err
	}
	current := collector.CurrentLegislature(legislatures)

	doc, err := c.base.RetrieveDocument(ctx, collector.Request{
		URL:     c.baseURL + "/vereadores",
		Headers: c.browserHeaders(),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch CMBH roster page: %w", err)
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	count := 0
	var rosterErr error
	doc.Find("div.vereador-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := card.Find("h3.vereador-nome").Text()
		party := card.Find("span.vereador-partido").Text()
		if strings.TrimSpace(name) == "" {
			return true
		}
		legislator, err := resolver.Legislator(ctx, name, "")
		if err != nil {
			rosterErr = err
			return false
		}
		if _, err := resolver.Mandate(ctx, legislator, current, party, ""); err != nil {
			rosterErr = err
			return false
		}
		count++
		return true
	})
	if rosterErr != nil {
		return rosterErr
	}
	if count == 0 {
		return fmt.Errorf("no councilor cards found on roster page, page structure changed")
	}

	c.deps.Log.Info(component, "Roster updated: legislators=%d legislature=%d", count, current.ID)
	return nil
}

func (c *Collector) UpdateData(ctx context.Context) error {
	const component = "CMBH"

	institution, legislatures, err := collector.EnsureReferenceData(ctx, c.deps, siglum, institutionName, legislatureSpans)
	if err != nil {
		return err
	}
	current := collector.CurrentLegislature(legislatures)

	run, err := collector.StartRun(ctx, c.deps, current)
	if err != nil {
		return err
	}

	jobs, err := c.periodJobs(ctx, institution, current)
	if err != nil {
		return err
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	appender := collector.NewAppender(c.deps.Storage, c.deps.Log, run)
	pipeline := collector.NewPipeline(resolver, appender, c.fetchPeriod, 0)

	if err := pipeline.Run(ctx, jobs); err != nil {
		return err
	}

	appended, skipped := appender.Stats()
	c.deps.Log.Info(component, "Collection finished: periods=%d archived=%d duplicates=%d", len(jobs), appended, skipped)
	return nil
}

func (c *Collector) periodJobs(ctx context.Context, institution store.Institution, legislature store.Legislature) ([]collector.PeriodJob, error) {
	doc, err := c.base.RetrieveDocument(ctx, collector.Request{
		URL:     c.baseURL + "/vereadores",
		Headers: c.browserHeaders(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CMBH roster page: %w", err)
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	periods := collector.MonthsBetween(legislature.DateStart, legislature.DateEnd)

	var jobs []collector.PeriodJob
	var rosterErr error
	doc.Find("div.vereador-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := card.Find("h3.vereador-nome").Text()
		party := card.Find("span.vereador-partido").Text()
		if strings.TrimSpace(name) == "" {
			return true
		}
		legislator, err := resolver.Legislator(ctx, name, "")
		if err != nil {
			rosterErr = err
			return false
		}
		mandate, err := resolver.Mandate(ctx, legislator, legislature, party, "")
		if err != nil {
			rosterErr = err
			return false
		}
		for _, period := range periods {
			jobs = append(jobs, collector.PeriodJob{
				Mandate:    mandate,
				Legislator: legislator,
				Period:     period,
			})
		}
		return true
	})
	if rosterErr != nil {
		return nil, rosterErr
	}
	return jobs, nil
}

// fetchPeriod walks the paginated listing for one (councilor, month) until a
// page comes back without rows.
func (c *Collector) fetchPeriod(ctx context.Context, job collector.PeriodJob) ([]collector.ExpenseRecord, error) {
	const component = "CMBH"

	var records []collector.ExpenseRecord
	var reportedTotal float64
	var hasReportedTotal bool
	var previousPage string

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("pagination did not terminate after %d pages", maxPages)
		}
		doc, err := c.base.RetrieveDocument(ctx, collector.Request{
			URL:     c.baseURL + "/transparencia/verbaindenizatoria/lista",
			Headers: c.browserHeaders(),
			Form: map[string]string{
				"vereador": job.Legislator.Name,
				"ano":      strconv.Itoa(job.Period.Year),
				"mes":      strconv.Itoa(job.Period.Month),
				"pagina":   strconv.Itoa(page),
			},
		})
		if err != nil {
			return nil, err
		}

		table := doc.Find("table.listagem-verba tbody")
		if table.Length() == 0 {
			if page == 1 {
				return nil, fmt.Errorf("expense table missing, page structure changed")
			}
			break
		}

		// A portal that ignores the pagina field serves the same fragment
		// forever; treat the repeat as a broken period.
		pageHTML, _ := table.Html()
		if page > 1 && pageHTML == previousPage {
			return nil, fmt.Errorf("page %d repeated page %d, pagination parameter ignored", page, page-1)
		}
		previousPage = pageHTML

		rowsBefore := len(records)
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 6 {
				return
			}
			first := normalize.CleanName(cells.Eq(0).Text())
			if strings.HasPrefix(strings.ToLower(first), "total") {
				if total, err := normalize.ParseMoney(cells.Eq(cells.Length() - 1).Text()); err == nil {
					reportedTotal = total
					hasReportedTotal = true
				}
				return
			}

			rec, err := c.parseRow(cells, job)
			if err != nil {
				c.deps.Log.Warn(component, "Skipping malformed row: legislator=%s year=%d month=%d err=%v",
					job.Legislator.Name, job.Period.Year, job.Period.Month, err)
				return
			}
			records = append(records, rec)
		})

		if len(records) == rowsBefore {
			break
		}
	}

	if len(records) == 0 {
		return nil, collector.ErrNotFound
	}

	if hasReportedTotal {
		var computed float64
		for _, rec := range records {
			computed += rec.Expensed
		}
		if math.Abs(computed-reportedTotal) > totalEpsilon {
			c.deps.Log.Warn(component, "Period total diverges from portal summary, trusting computed value: legislator=%s year=%d month=%d computed=%.2f reported=%.2f",
				job.Legislator.Name, job.Period.Year, job.Period.Month, computed, reportedTotal)
		}
	}

	return records, nil
}

// parseRow reads one expense line. Columns: nature, document number, date,
// supplier name, supplier CNPJ/CPF, claimed value[, reimbursed value].
func (c *Collector) parseRow(cells *goquery.Selection, job collector.PeriodJob) (collector.ExpenseRecord, error) {
	nature := normalize.CleanName(cells.Eq(0).Text())
	number := normalize.CleanName(cells.Eq(1).Text())
	dateText := normalize.CleanName(cells.Eq(2).Text())
	supplierName := normalize.CleanName(cells.Eq(3).Text())
	supplierID := normalize.CleanName(cells.Eq(4).Text())
	valueText := normalize.CleanName(cells.Eq(5).Text())

	if nature == "" {
		return collector.ExpenseRecord{}, fmt.Errorf("row without expense nature")
	}

	date, err := normalize.ParseDate(dateText, normalize.LayoutBR)
	if err != nil {
		// Rows missing the document date still belong to the requested
		// period; clamp to its start rather than dropping the value.
		date = normalize.MonthStart(job.Period.Year, job.Period.Month)
	}

	value, err := normalize.ParseMoney(valueText)
	if err != nil {
		return collector.ExpenseRecord{}, err
	}

	expensed := value
	if cells.Length() > 6 {
		if v, err := normalize.ParseMoney(normalize.CleanName(cells.Eq(6).Text())); err == nil {
			expensed = v
		}
	}

	if number == "" {
		// Some rows carry no document id; synthesize one stable within
		// the period so the dedup key still discriminates rows.
		number = fmt.Sprintf("%s-%d-%02d", normalize.NormalizeIdentifier(supplierID), job.Period.Year, job.Period.Month)
	}

	return collector.ExpenseRecord{
		Number:             number,
		NatureName:         nature,
		Date:               date,
		Value:              value,
		Expensed:           expensed,
		SupplierIdentifier: supplierID,
		SupplierName:       supplierName,
	}, nil
}
