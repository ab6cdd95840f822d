// Package cmsp collects the Câmara Municipal de São Paulo. The house
// publishes one ISO-8859-1 XML dump per year with every councilor's
// expense lines, month granularity only.
package cmsp

import (
	"context"
	"errors"
	"fmt"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/normalize"
	"github.com/olhopublico/verbas/internal/store"
)

const (
	siglum          = "CMSP"
	institutionName = "Câmara Municipal de São Paulo"
	productionURL   = "https://www.saopaulo.sp.leg.br"
)

// Legislature spans the house has published data for.
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

type yearXML struct {
	Rows []struct {
		Register   string `xml:"registro"`
		Councilor  string `xml:"vereador"`
		Year       int    `xml:"ano"`
		Month      int    `xml:"mes"`
		Nature     string `xml:"despesa"`
		SupplierID string `xml:"cnpj"`
		Supplier   string `xml:"fornecedor"`
		Value      string `xml:"valor"`
	} `xml:"detalhe_despesas"`
}

func (c *Collector) fetchYear(ctx context.Context, year int) (yearXML, error) {
	var dump yearXML
	err := c.base.RetrieveXML(ctx, collector.Request{
		URL:     c.baseURL + fmt.Sprintf("/transparencia/verba/despesas_%d.xml", year),
		Charset: "ISO-8859-1",
	}, &dump)
	if err != nil {
		return yearXML{}, err
	}
	if len(dump.Rows) == 0 {
		return yearXML{}, collector.ErrNotFound
	}
	return dump, nil
}

// UpdateLegislators upserts the roster found in the current year's dump.
// The dump carries no party affiliation, so mandates are created without
// one.
func (c *Collector) UpdateLegislators(ctx context.Context) error {
	const component = "CMSP"

	institution, legislatures, err := collector.EnsureReferenceData(ctx, c.deps, siglum, institutionName, legislatureSpans)
	if err != nil {
		return err
	}
	current := collector.CurrentLegislature(legislatures)

	years := collector.YearsBetween(current.DateStart, current.DateEnd)
	dump, err := c.fetchYear(ctx, years[len(years)-1])
	if err != nil {
		return fmt.Errorf("failed to fetch CMSP roster dump: %w", err)
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	seen := map[string]struct{}{}
	for _, row := range dump.Rows {
		if _, done := seen[row.Register]; done {
			continue
		}
		seen[row.Register] = struct{}{}
		legislator, err := resolver.Legislator(ctx, row.Councilor, row.Register)
		if err != nil {
			return err
		}
		if _, err := resolver.Mandate(ctx, legislator, current, "", row.Register); err != nil {
			return err
		}
	}

	c.deps.Log.Info(component, "Roster updated: legislators=%d legislature=%d", len(seen), current.ID)
	return nil
}

// UpdateData walks the current legislature's years sequentially. The dump
// mixes every councilor in one file, so each row resolves its own mandate
// instead of going through the per-mandate pipeline.
func (c *Collector) UpdateData(ctx context.Context) error {
	const component = "CMSP"

	institution, legislatures, err := collector.EnsureReferenceData(ctx, c.deps, siglum, institutionName, legislatureSpans)
	if err != nil {
		return err
	}
	current := collector.CurrentLegislature(legislatures)

	run, err := collector.StartRun(ctx, c.deps, current)
	if err != nil {
		return err
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	appender := collector.NewAppender(c.deps.Storage, c.deps.Log, run)

	years := collector.YearsBetween(current.DateStart, current.DateEnd)
	for _, year := range years {
		dump, err := c.fetchYear(ctx, year)
		if errors.Is(err, collector.ErrNotFound) {
			c.deps.Log.Debug(component, "No data published: year=%d", year)
			continue
		}
		if err != nil {
			c.deps.Log.Warn(component, "Skipping year after fetch failure: year=%d err=%v", year, err)
			continue
		}
		if err := c.archiveYear(ctx, resolver, appender, current, year, dump); err != nil {
			return err
		}
	}

	appended, skipped := appender.Stats()
	c.deps.Log.Info(component, "Collection finished: years=%d archived=%d duplicates=%d", len(years), appended, skipped)
	return nil
}

func (c *Collector) archiveYear(ctx context.Context, resolver *collector.Resolver, appender *collector.Appender, legislature store.Legislature, year int, dump yearXML) error {
	const component = "CMSP"

	for _, row := range dump.Rows {
		legislator, err := resolver.Legislator(ctx, row.Councilor, row.Register)
		if err != nil {
			return err
		}
		mandate, err := resolver.Mandate(ctx, legislator, legislature, "", row.Register)
		if err != nil {
			return err
		}
		nature, err := resolver.Nature(ctx, "", row.Nature)
		if err != nil {
			return err
		}
		supplier, err := resolver.Supplier(ctx, row.SupplierID, row.Supplier)
		if err != nil {
			return err
		}

		value, err := normalize.ParseMoney(row.Value)
		if err != nil {
			c.deps.Log.Warn(component, "Skipping malformed row: councilor=%s year=%d month=%d err=%v",
				row.Councilor, row.Year, row.Month, err)
			continue
		}
		if row.Year == 0 {
			row.Year = year
		}
		if row.Month < 1 || row.Month > 12 {
			c.deps.Log.Warn(component, "Skipping row with bad month: councilor=%s year=%d month=%d",
				row.Councilor, row.Year, row.Month)
			continue
		}

		expense := store.ArchivedExpense{
			// The dump has no document numbers; a synthetic one keeps
			// the dedup key discriminating across periods and natures.
			Number:     fmt.Sprintf("%s/%d-%02d", row.Register, row.Year, row.Month),
			NatureID:   nature.ID,
			Date:       normalize.MonthStart(row.Year, row.Month),
			Value:      value,
			Expensed:   value,
			MandateID:  mandate.ID,
			SupplierID: supplier.ID,
		}
		if _, err := appender.Add(ctx, &expense); err != nil {
			return err
		}
	}

	c.deps.Log.Debug(component, "Archived year: year=%d rows=%d", year, len(dump.Rows))
	return nil
}

var _ collector.Collector = (*Collector)(nil)
