package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/olhopublico/verbas/internal/logger"
)

func testBase() *Base {
	base := NewBase(&logger.Logger{MinLevel: logger.LevelError})
	base.SetRetryWait(time.Millisecond)
	return base
}

func TestRetrieveNotFound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testBase().Retrieve(context.Background(), Request{URL: srv.URL})
	require.ErrorIs(t, err, ErrNotFound)
	// 404 means absent data; it is never retried.
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRetrieveRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testBase().Retrieve(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestRetrieveDecodesCharset(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("Combustível"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(encoded)
	}))
	defer srv.Close()

	body, err := testBase().Retrieve(context.Background(), Request{URL: srv.URL, Charset: "ISO-8859-1"})
	require.NoError(t, err)
	require.Equal(t, "Combustível", string(body))
}

func TestRetrieveSendsFormAsPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "2024", r.FormValue("ano"))
		require.Equal(t, "browser", r.Header.Get("Referer"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := testBase().Retrieve(context.Background(), Request{
		URL:     srv.URL,
		Form:    map[string]string{"ano": "2024"},
		Headers: map[string]string{"Referer": "browser"},
	})
	require.NoError(t, err)
}

func TestRetrieveCSVSkipsBannerLines(t *testing.T) {
	payload := "Relatório de despesas\nGerado em 2024\nANO;MES;VALOR\n2024;1;100\n2024;2;200\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	df, err := testBase().RetrieveCSV(context.Background(), Request{URL: srv.URL}, ';', 2)
	require.NoError(t, err)
	require.Equal(t, 2, df.Nrow())
	require.Contains(t, df.Names(), "ANO")
}

func TestRetrieveCSVEmptyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ANO;MES;VALOR\n"))
	}))
	defer srv.Close()

	_, err := testBase().RetrieveCSV(context.Background(), Request{URL: srv.URL}, ';', 0)
	require.ErrorIs(t, err, ErrNotFound)
}
