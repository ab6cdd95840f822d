// Package almg collects the Assembleia Legislativa de Minas Gerais. The
// house publishes an XML web service with a roster endpoint and one
// verba-indenizatória document per (deputy, year, month).
package almg

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/normalize"
	"github.com/olhopublico/verbas/internal/store"
)

const (
	siglum          = "ALMG"
	institutionName = "Assembleia Legislativa do Estado de Minas Gerais"
	productionURL   = "https://dadosabertos.almg.gov.br"
)

// Legislature spans the house has published data for.
var legislatureSpans = []collector.Span{
	{Start: "2011-02-01", End: "2015-01-31"},
	{Start: "2015-02-01", End: "2019-01-31"},
	{Start: "2019-02-01", End: "2023-01-31"},
	{Start: "2023-02-01", End: "2027-01-31"},
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

type rosterXML struct {
	Deputies []struct {
		ID    int64  `xml:"id"`
		Name  string `xml:"nome"`
		Party string `xml:"partido"`
	} `xml:"deputado"`
}

type expensesXML struct {
	Entries []struct {
		Description string `xml:"descTipoDespesa"`
		Details     []struct {
			ID            int64  `xml:"id"`
			ReferenceDate string `xml:"dataReferencia"`
			SupplierID    string `xml:"cpfCnpj"`
			SupplierName  string `xml:"nomeEmitente"`
			Claimed       string `xml:"valorDespesa"`
			Reimbursed    string `xml:"valorReembolsado"`
		} `xml:"listaDetalheVerba>detalheVerba"`
	} `xml:"verba"`
}

// UpdateLegislators upserts the current roster into the active legislature.
func (c *Collector) UpdateLegislators(ctx context.Context) error {
	const component = "ALMG"

	institution, legislatures, err := collector.EnsureReferenceData(ctx, c.deps, siglum, institutionName, legislatureSpans)
	if err != nil {
		return err
	}
	current := collector.CurrentLegislature(legislatures)

	var roster rosterXML
	err = c.base.RetrieveXML(ctx, collector.Request{
		URL:    c.baseURL + "/ws/deputados/em_exercicio",
		Params: map[string]string{"formato": "xml"},
	}, &roster)
	if err != nil {
		return fmt.Errorf("failed to fetch ALMG roster: %w", err)
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	for _, dep := range roster.Deputies {
		legislator, err := resolver.Legislator(ctx, dep.Name, strconv.FormatInt(dep.ID, 10))
		if err != nil {
			return err
		}
		if _, err := resolver.Mandate(ctx, legislator, current, dep.Party, strconv.FormatInt(dep.ID, 10)); err != nil {
			return err
		}
	}

	c.deps.Log.Info(component, "Roster updated: legislators=%d legislature=%d", len(roster.Deputies), current.ID)
	return nil
}

// UpdateData collects every (mandate, month) of the active legislature
// through the shared fetch pipeline.
func (c *Collector) UpdateData(ctx context.Context) error {
	const component = "ALMG"

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

// periodJobs re-resolves the roster into jobs so UpdateData works standalone,
// relying on the idempotent upserts done by UpdateLegislators.
func (c *Collector) periodJobs(ctx context.Context, institution store.Institution, legislature store.Legislature) ([]collector.PeriodJob, error) {
	var roster rosterXML
	err := c.base.RetrieveXML(ctx, collector.Request{
		URL:    c.baseURL + "/ws/deputados/em_exercicio",
		Params: map[string]string{"formato": "xml"},
	}, &roster)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ALMG roster: %w", err)
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	periods := collector.MonthsBetween(legislature.DateStart, legislature.DateEnd)

	var jobs []collector.PeriodJob
	for _, dep := range roster.Deputies {
		legislator, err := resolver.Legislator(ctx, dep.Name, strconv.FormatInt(dep.ID, 10))
		if err != nil {
			return nil, err
		}
		mandate, err := resolver.Mandate(ctx, legislator, legislature, dep.Party, strconv.FormatInt(dep.ID, 10))
		if err != nil {
			return nil, err
		}
		for _, period := range periods {
			jobs = append(jobs, collector.PeriodJob{
				Mandate:    mandate,
				Legislator: legislator,
				Period:     period,
			})
		}
	}
	return jobs, nil
}

func (c *Collector) fetchPeriod(ctx context.Context, job collector.PeriodJob) ([]collector.ExpenseRecord, error) {
	const component = "ALMG"

	deputyID := job.Mandate.OriginalID.String
	url := fmt.Sprintf("%s/ws/prestacao_contas/verbas_indenizatorias/deputados/%s/%d/%d",
		c.baseURL, deputyID, job.Period.Year, job.Period.Month)

	var payload expensesXML
	err := c.base.RetrieveXML(ctx, collector.Request{
		URL:    url,
		Params: map[string]string{"formato": "xml"},
	}, &payload)
	if err != nil {
		return nil, err
	}

	var records []collector.ExpenseRecord
	for _, entry := range payload.Entries {
		for _, detail := range entry.Details {
			date, err := normalize.ParseDate(detail.ReferenceDate, normalize.LayoutISO)
			if err != nil {
				// The period is known even when the row omits the
				// document date; fall back to the period start.
				date = normalize.MonthStart(job.Period.Year, job.Period.Month)
			}
			claimed, err := normalize.ParsePlainFloat(detail.Claimed)
			if err != nil {
				c.deps.Log.Warn(component, "Skipping row with bad claimed value: deputy=%s value=%q", deputyID, detail.Claimed)
				continue
			}
			reimbursed, err := normalize.ParsePlainFloat(detail.Reimbursed)
			if err != nil {
				reimbursed = claimed
			}
			records = append(records, collector.ExpenseRecord{
				Number:             strconv.FormatInt(detail.ID, 10),
				NatureName:         entry.Description,
				Date:               date,
				Value:              claimed,
				Expensed:           reimbursed,
				SupplierIdentifier: detail.SupplierID,
				SupplierName:       detail.SupplierName,
				OriginalID:         strconv.FormatInt(detail.ID, 10),
			})
		}
	}
	return records, nil
}
