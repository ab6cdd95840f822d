package cmbh

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store"
	"github.com/olhopublico/verbas/internal/store/memstore"
)

const rosterPage = `<html><body>
<div class="vereador-card">
  <h3 class="vereador-nome">Maria Souza</h3>
  <span class="vereador-partido">PT</span>
</div>
</body></html>`

const expensesPage = `<html><body>
<table class="listagem-verba"><tbody>
<tr>
  <td>Combustível</td><td>123</td><td>10/01/2024</td>
  <td>Posto XYZ</td><td>01.234.567/0001-89</td><td>R$ 150,00</td>
</tr>
<tr>
  <td>Divulgação</td><td></td><td></td>
  <td>Gráfica ABC</td><td></td><td>R$ 30,00</td>
</tr>
<tr>
  <td>Total</td><td></td><td></td><td></td><td></td><td>R$ 180,00</td>
</tr>
</tbody></table>
</body></html>`

const emptyPage = `<html><body>
<table class="listagem-verba"><tbody></tbody></table>
</body></html>`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/vereadores", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rosterPage)
	})
	mux.HandleFunc("/transparencia/verbaindenizatoria/lista", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.NotEmpty(t, r.Header.Get("Referer"))
		if r.FormValue("ano") == "2024" && r.FormValue("mes") == "1" && r.FormValue("pagina") == "1" {
			fmt.Fprint(w, expensesPage)
			return
		}
		fmt.Fprint(w, emptyPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollectorParsesPaginatedListing(t *testing.T) {
	ctx := context.Background()
	ms, storage := memstore.New()
	srv := testServer(t)

	c := New(collector.Deps{
		Storage: storage,
		Log:     &logger.Logger{MinLevel: logger.LevelError},
		BaseURL: srv.URL,
	})
	require.Equal(t, "CMBH", c.Siglum())

	require.NoError(t, c.UpdateLegislators(ctx))
	require.NoError(t, c.UpdateData(ctx))

	expenses := ms.ArchivedExpenses()
	require.Len(t, expenses, 2)

	var total float64
	for _, e := range expenses {
		total += e.Expensed
	}
	// The footer "Total" row is a summary, never archived as an expense.
	require.Equal(t, 180.0, total)
}

func TestFetchPeriodStopsWhenPaginationStalls(t *testing.T) {
	ctx := context.Background()
	_, storage := memstore.New()

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, expensesPage)
	}))
	defer srv.Close()

	c := New(collector.Deps{
		Storage: storage,
		Log:     &logger.Logger{MinLevel: logger.LevelError},
		BaseURL: srv.URL,
	})

	_, err := c.fetchPeriod(ctx, collector.PeriodJob{
		Legislator: store.Legislator{Name: "Maria Souza"},
		Period:     collector.Period{Year: 2024, Month: 1},
	})
	require.ErrorContains(t, err, "pagination")
	require.Equal(t, 2, hits)
}

func TestUpdateLegislatorsFailsOnChangedStructure(t *testing.T) {
	ctx := context.Background()
	_, storage := memstore.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>redesigned</p></body></html>")
	}))
	defer srv.Close()

	c := New(collector.Deps{
		Storage: storage,
		Log:     &logger.Logger{MinLevel: logger.LevelError},
		BaseURL: srv.URL,
	})
	require.Error(t, c.UpdateLegislators(ctx))
}
