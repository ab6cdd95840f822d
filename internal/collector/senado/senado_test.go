package senado

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/logger"
	"github.com/olhopublico/verbas/internal/store/memstore"
)

func csvFixture(year int) string {
	return fmt.Sprintf(`Relatório de verba indenizatória
Atualizado em 01/02/%d

"ANO";"MES";"SENADOR";"TIPO_DESPESA";"CNPJ_CPF";"FORNECEDOR";"DOCUMENTO";"DATA";"VALOR_REEMBOLSADO"
"%d";"1";"Gim";"Combustíveis e lubrificantes";"01.234.567/0001-89";"Posto XYZ";"NF 123";"10/01/%d";"150,00"
"%d";"2";"Maria Souza";"Divulgação da atividade parlamentar";"";"Gráfica ABC";"";"";"30,00"
`, year, year, year, year)
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	year := time.Now().UTC().Year()
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(csvFixture(year)))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == fmt.Sprintf("/transparencia/sen/verba/csv/%d.csv", year) {
			w.Write(encoded)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCollectorParsesYearlyExport(t *testing.T) {
	ctx := context.Background()
	ms, storage := memstore.New()
	srv := testServer(t)

	c := New(collector.Deps{
		Storage: storage,
		Log:     &logger.Logger{MinLevel: logger.LevelError},
		BaseURL: srv.URL,
	})
	require.Equal(t, "SENADO", c.Siglum())

	require.NoError(t, c.UpdateLegislators(ctx))
	require.NoError(t, c.UpdateData(ctx))

	expenses := ms.ArchivedExpenses()
	require.Len(t, expenses, 2)

	var total float64
	for _, e := range expenses {
		total += e.Expensed
	}
	require.Equal(t, 180.0, total)

	year := time.Now().UTC().Year()
	// Dated rows keep the document date; undated ones clamp to the month
	// start.
	require.Equal(t, time.Date(year, 1, 10, 0, 0, 0, 0, time.UTC), expenses[0].Date)
	require.Equal(t, time.Date(year, 2, 1, 0, 0, 0, 0, time.UTC), expenses[1].Date)
}

func TestCollectorAppliesNameOverrides(t *testing.T) {
	ctx := context.Background()
	_, storage := memstore.New()
	srv := testServer(t)

	c := New(collector.Deps{
		Storage: storage,
		Log:     &logger.Logger{MinLevel: logger.LevelError},
		BaseURL: srv.URL,
	})

	require.NoError(t, c.UpdateLegislators(ctx))

	// The roster name "Gim" was stored under its canonical form.
	legislator, created, err := storage.Legislators.GetOrCreate(ctx, "Gim Argello", "")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Gim Argello", legislator.Name)
}
