// Package senado collects the Senado Federal. The house publishes one
// Windows-1252 CSV per year (the CEAPS export) behind a banner of title
// lines whose height has changed over the years, so the header row is
// located by scanning instead of skipping a fixed count.
package senado

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/normalize"
	"github.com/olhopublico/verbas/internal/store"
)

const (
	siglum          = "SENADO"
	institutionName = "Senado Federal"
	productionURL   = "https://www12.senado.leg.br"

	// First column of the real header row, used by the locating pre-pass.
	headerPrefix = "\"ANO\";"
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

// fetchYear downloads one yearly export and cuts everything above the
// located header row before handing the rest to the CSV reader.
func (c *Collector) fetchYear(ctx context.Context, year int) (dataframe.DataFrame, error) {
	body, err := c.base.Retrieve(ctx, collector.Request{
		URL:     c.baseURL + fmt.Sprintf("/transparencia/sen/verba/csv/%d.csv", year),
		Charset: "Windows-1252",
	})
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	lines := bytes.Split(body, []byte("\n"))
	headerIdx := -1
	for i, line := range lines {
		if bytes.HasPrefix(line, []byte(headerPrefix)) || bytes.HasPrefix(line, []byte("ANO;")) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return dataframe.DataFrame{}, fmt.Errorf("header row not found in yearly export %d", year)
	}

	df := dataframe.ReadCSV(bytes.NewReader(bytes.Join(lines[headerIdx:], []byte("\n"))),
		dataframe.WithDelimiter(';'),
		dataframe.WithLazyQuotes(true))
	if df.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to read yearly export %d: %w", year, df.Error())
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, collector.ErrNotFound
	}
	return df, nil
}

func cell(df dataframe.DataFrame, rowIdx int, col string) string {
	for _, name := range df.Names() {
		if name == col {
			return strings.TrimSpace(df.Col(col).Elem(rowIdx).String())
		}
	}
	return ""
}

// UpdateLegislators upserts the senators found in the current year's
// export. The export carries no party column, so mandates are created
// without one.
func (c *Collector) UpdateLegislators(ctx context.Context) error {
	const component = "SENADO"

	institution, legislatures, err := collector.EnsureReferenceData(ctx, c.deps, siglum, institutionName, legislatureSpans)
	if err != nil {
		return err
	}
	current := collector.CurrentLegislature(legislatures)

	years := collector.YearsBetween(current.DateStart, current.DateEnd)
	df, err := c.fetchYear(ctx, years[len(years)-1])
	if err != nil {
		return fmt.Errorf("failed to fetch SENADO roster export: %w", err)
	}

	resolver := collector.NewResolver(c.deps.Storage, institution)
	seen := map[string]struct{}{}
	for i := 0; i < df.Nrow(); i++ {
		name := cell(df, i, "SENADOR")
		if name == "" {
			continue
		}
		if _, done := seen[name]; done {
			continue
		}
		seen[name] = struct{}{}
		legislator, err := resolver.Legislator(ctx, name, "")
		if err != nil {
			return err
		}
		if _, err := resolver.Mandate(ctx, legislator, current, "", ""); err != nil {
			return err
		}
	}

	c.deps.Log.Info(component, "Roster updated: legislators=%d legislature=%d", len(seen), current.ID)
	return nil
}

// UpdateData walks the current legislature's years sequentially, resolving
// each row's mandate by senator name.
func (c *Collector) UpdateData(ctx context.Context) error {
	const component = "SENADO"

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
	const component = "SENADO"

	for i := 0; i < df.Nrow(); i++ {
		name := cell(df, i, "SENADOR")
		if name == "" {
			continue
		}
		legislator, err := resolver.Legislator(ctx, name, "")
		if err != nil {
			return err
		}
		mandate, err := resolver.Mandate(ctx, legislator, legislature, "", "")
		if err != nil {
			return err
		}
		nature, err := resolver.Nature(ctx, "", cell(df, i, "TIPO_DESPESA"))
		if err != nil {
			return err
		}
		supplier, err := resolver.Supplier(ctx, cell(df, i, "CNPJ_CPF"), cell(df, i, "FORNECEDOR"))
		if err != nil {
			return err
		}

		value, err := normalize.ParseMoney(cell(df, i, "VALOR_REEMBOLSADO"))
		if err != nil {
			c.deps.Log.Warn(component, "Skipping malformed row: senator=%s year=%d row=%d err=%v", name, year, i, err)
			continue
		}

		rowYear, _ := strconv.Atoi(cell(df, i, "ANO"))
		rowMonth, _ := strconv.Atoi(cell(df, i, "MES"))
		if rowYear == 0 {
			rowYear = year
		}
		date, err := normalize.ParseDate(cell(df, i, "DATA"), normalize.LayoutBR)
		if err != nil {
			if rowMonth < 1 || rowMonth > 12 {
				c.deps.Log.Warn(component, "Skipping row without usable date: senator=%s year=%d row=%d", name, year, i)
				continue
			}
			date = normalize.MonthStart(rowYear, rowMonth)
		}

		number := cell(df, i, "DOCUMENTO")
		if number == "" {
			number = fmt.Sprintf("%s/%d-%02d", normalize.CleanName(name), rowYear, rowMonth)
		}

		expense := store.ArchivedExpense{
			Number:     number,
			NatureID:   nature.ID,
			Date:       date,
			Value:      value,
			Expensed:   value,
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

var _ collector.Collector = (*Collector)(nil)
