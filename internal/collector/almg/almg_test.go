package almg

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store/memstore"
)

const rosterFixture = `<?xml version="1.0" encoding="UTF-8"?>
<deputados>
  <deputado>
    <id>1234</id>
    <nome>Maria Souza</nome>
    <partido>PT</partido>
  </deputado>
</deputados>`

const expensesFixture = `<?xml version="1.0" encoding="UTF-8"?>
<verbas>
  <verba>
    <descTipoDespesa>COMBUSTIVEL</descTipoDespesa>
    <listaDetalheVerba>
      <detalheVerba>
        <id>9001</id>
        <dataReferencia>2024-01-10</dataReferencia>
        <cpfCnpj>01.234.567/0001-89</cpfCnpj>
        <nomeEmitente>Posto XYZ</nomeEmitente>
        <valorDespesa>100.00</valorDespesa>
        <valorReembolsado>100.00</valorReembolsado>
      </detalheVerba>
      <detalheVerba>
        <id>9002</id>
        <dataReferencia>2024-01-20</dataReferencia>
        <cpfCnpj>01.234.567/0001-89</cpfCnpj>
        <nomeEmitente>Posto XYZ</nomeEmitente>
        <valorDespesa>50.00</valorDespesa>
        <valorReembolsado>50.00</valorReembolsado>
      </detalheVerba>
    </listaDetalheVerba>
  </verba>
  <verba>
    <descTipoDespesa>DIVULGACAO</descTipoDespesa>
    <listaDetalheVerba>
      <detalheVerba>
        <id>9003</id>
        <dataReferencia>2024-01-15</dataReferencia>
        <cpfCnpj></cpfCnpj>
        <nomeEmitente>Gráfica ABC</nomeEmitente>
        <valorDespesa>30.00</valorDespesa>
        <valorReembolsado>30.00</valorReembolsado>
      </detalheVerba>
    </listaDetalheVerba>
  </verba>
</verbas>`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/deputados/em_exercicio", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rosterFixture)
	})
	mux.HandleFunc("/ws/prestacao_contas/verbas_indenizatorias/deputados/1234/2024/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, expensesFixture)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollectorArchivesExpenses(t *testing.T) {
	ctx := context.Background()
	ms, storage := memstore.New()
	srv := testServer(t)

	c := New(collector.Deps{
		Storage: storage,
		Log:     &logger.Logger{MinLevel: logger.LevelError},
		BaseURL: srv.URL,
	})
	require.Equal(t, "ALMG", c.Siglum())

	require.NoError(t, c.UpdateLegislators(ctx))
	require.NoError(t, c.UpdateData(ctx))

	expenses := ms.ArchivedExpenses()
	require.Len(t, expenses, 3)

	var total float64
	for _, e := range expenses {
		total += e.Expensed
		require.NotZero(t, e.CollectionRunID)
	}
	require.Equal(t, 180.0, total)
}

func TestCollectorIsIdempotentAcrossRuns(t *testing.T) {
	ctx := context.Background()
	ms, storage := memstore.New()
	srv := testServer(t)

	c := New(collector.Deps{
		Storage: storage,
		Log:     &logger.Logger{MinLevel: logger.LevelError},
		BaseURL: srv.URL,
	})

	require.NoError(t, c.UpdateLegislators(ctx))
	require.NoError(t, c.UpdateData(ctx))
	first := len(ms.ArchivedExpenses())

	// A same-day re-run resets the prior archive and rebuilds it.
	require.NoError(t, c.UpdateData(ctx))
	require.Len(t, ms.ArchivedExpenses(), first)
}
