// Package camara collects the Câmara dos Deputados. The house publishes
// one UTF-8 CSV per year (the CEAP export), dot-decimal values and
// ISO-style emission timestamps.
package camara

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/normalize"
	"github.com/olhopublico/verbas/internal/store"
)

const (
	siglum          = "CAMARA"
	institutionName = "Câmara dos Deputados"
	productionURL   = "https://www.camara.leg.br"
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

func (c *Collector) fetchYear(ctx context.Context, year int) (dataframe.DataFrame, error) {
	return c.base.RetrieveCSV(ctx, collector.Request{
		URL: c.baseURL + fmt.Sprintf("/cotas/Ano-%d.csv", year),
	}, ';', 0)
}

func cell(df dataframe.DataFrame, rowIdx int, col string) string {
	for _, name := range df.Names() {
		if name == col {
			return strings.TrimSpace(df.Col(col).Elem(rowIdx).String())
		}
	}
	return ""
}

// UpdateLegislators upserts the deputies found in the current year's
// export, party included.
func (c *Collector) UpdateLegislators(ctx context.Context) error {
	const component = "CAMARA"

	institution, legislatures, err := collector.EnsureReferenceData(ctx, c.deps, siglum, institutionName, legislatureSpans)
	if err != nil {
		return err
	}
	current := collector.CurrentLegislature(legislatures)

	years := collector.YearsBetween(current.DateStart, current.DateEnd)
	df, err := c.fetchYear(ctx, years[len(years)-1])
	if err != nil {
		return fmt.Errorf("failed to fetch CAMARA roster export: %w", err)
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	seen := map[string]struct{}{}
	count := 0
	for i := 0; i < df.Nrow(); i++ {
		name := cell(df, i, "txNomeParlamentar")
		register := cell(df, i, "ideCadastro")
		if name == "" {
			continue
		}
		key := register
		if key == "" {
			key = name
		}
		if _, done := seen[key]; done {
			continue
		}
		seen[key] = struct{}{}
		legislator, err := resolver.Legislator(ctx, name, register)
		if err != nil {
			return err
		}
		if _, err := resolver.Mandate(ctx, legislator, current, cell(df, i, "sgPartido"), register); err != nil {
			return err
		}
		count++
	}

	c.deps.Log.Info(component, "Roster updated: legislators=%d legislature=%d", count, current.ID)
	return nil
}

// UpdateData walks the current legislature's years sequentially, resolving
// each row's mandate from the deputy columns.
func (c *Collector) UpdateData(ctx context.Context) error {
	const component = "CAMARA"

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
		df, err := c.fetchYear(ctx, year)
		if errors.Is(err, collector.ErrNotFound) {
			c.deps.Log.Debug(component, "No data published: year=%d", year)
			continue
		}
		if err != nil {
			c.deps.Log.Warn(component, "Skipping year after fetch failure: year=%d err=%v", year, err)
			continue
		}
		if err := c.archiveYear(ctx, resolver, appender, current, year, df); err != nil {
			return err
		}
	}

	appended, skipped := appender.Stats()
	c.deps.Log.Info(component, "Collection finished: years=%d archived=%d duplicates=%d", len(years), appended, skipped)
	return nil
}

func (c *Collector) archiveYear(ctx context.Context, resolver *collector.Resolver, appender *collector.Appender, legislature store.Legislature, year int, df dataframe.DataFrame) error {
	const component = "CAMARA"

	for i := 0; i < df.Nrow(); i++ {
		name := cell(df, i, "txNomeParlamentar")
		if name == "" {
			continue
		}
		register := cell(df, i, "ideCadastro")
		legislator, err := resolver.Legislator(ctx, name, register)
		if err != nil {
			return err
		}
		mandate, err := resolver.Mandate(ctx, legislator, legislature, cell(df, i, "sgPartido"), register)
		if err != nil {
			return err
		}
		nature, err := resolver.Nature(ctx, "", cell(df, i, "txtDescricao"))
		if err != nil {
			return err
		}
		supplier, err := resolver.Supplier(ctx, cell(df, i, "txtCNPJCPF"), cell(df, i, "txtFornecedor"))
		if err != nil {
			return err
		}

		// CEAP values are dot-decimal; vlrLiquido is what was actually
		// reimbursed after glosses.
		value, err := normalize.ParsePlainFloat(cell(df, i, "vlrDocumento"))
		if err != nil {
			c.deps.Log.Warn(component, "Skipping malformed row: deputy=%s year=%d row=%d err=%v", name, year, i, err)
			continue
		}
		expensed, err := normalize.ParsePlainFloat(cell(df, i, "vlrLiquido"))
		if err != nil {
			expensed = value
		}

		rowYear, _ := strconv.Atoi(cell(df, i, "numAno"))
		rowMonth, _ := strconv.Atoi(cell(df, i, "numMes"))
		if rowYear == 0 {
			rowYear = year
		}
		date, err := parseEmission(cell(df, i, "datEmissao"))
		if err != nil {
			if rowMonth < 1 || rowMonth > 12 {
				c.deps.Log.Warn(component, "Skipping row without usable date: deputy=%s year=%d row=%d", name, year, i)
				continue
			}
			date = normalize.MonthStart(rowYear, rowMonth)
		}

		number := cell(df, i, "txtNumero")
		if number == "" {
			number = fmt.Sprintf("%s/%d-%02d", normalize.CleanName(name), rowYear, rowMonth)
		}

		expense := store.ArchivedExpense{
			Number:     number,
			NatureID:   nature.ID,
			Date:       date,
			Value:      value,
			Expensed:   expensed,
			MandateID:  mandate.ID,
			SupplierID: supplier.ID,
		}
		if _, err := appender.Add(ctx, &expense); err != nil {
			return err
		}
	}

	c.deps.Log.Debug(component, "Archived year: year=%d rows=%d", year, df.Nrow())
	return nil
}

// parseEmission accepts the export's timestamp form ("2024-03-05T00:00:00")
// by cutting it down to the date part.
func parseEmission(raw string) (time.Time, error) {
	if len(raw) > 10 {
		raw = raw[:10]
	}
	return normalize.ParseDate(raw, normalize.LayoutISO)
}

var _ collector.Collector = (*Collector)(nil)
