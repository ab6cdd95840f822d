package collector

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-resty/resty/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/olhopublico/verbas/internal/logger"
)

// ErrNotFound signals "no data published for this period". Callers move on
// to the next period; it is never retried and never fatal.
var ErrNotFound = errors.New("no data for period")

const (
	retryAttempts = 3
	retryWait     = 5 * time.Second
	fetchTimeout  = 60 * time.Second

	// Several portals refuse requests without a browser-looking agent.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
)

// Base wraps the retrying HTTP client shared by every concrete collector.
type Base struct {
	Log    *logger.Logger
	client *resty.Client
}

func NewBase(log *logger.Logger) *Base {
	client := resty.New().
		SetTimeout(fetchTimeout).
		SetRetryCount(retryAttempts).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryWait).
		SetHeader("User-Agent", defaultUserAgent).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			// Transient transport failures and 5xx are retried with a
			// fixed delay. 404 is data absence, not failure.
			if err != nil {
				return true
			}
			return res.StatusCode() >= http.StatusInternalServerError
		})

	return &Base{Log: log, client: client}
}

// SetRetryWait overrides the fixed retry delay. Tests use it to keep the
// retry path fast.
func (b *Base) SetRetryWait(d time.Duration) {
	b.client.SetRetryWaitTime(d).SetRetryMaxWaitTime(d)
}

// Request describes one remote fetch. Charset names the response encoding
// when the source does not serve UTF-8.
type Request struct {
	Method  string
	URL     string
	Params  map[string]string
	Headers map[string]string
	Form    map[string]string
	Charset string
}

// Retrieve performs the fetch and returns the body decoded to UTF-8, or
// ErrNotFound for a 404, or the transport error after the retry budget is
// exhausted. Exhaustion is fatal only for this one request; the calling
// collector converts it into a per-period skip.
func (b *Base) Retrieve(ctx context.Context, req Request) ([]byte, error) {
	const component = "Retrieve"

	r := b.client.R().SetContext(ctx)
	if len(req.Params) > 0 {
		r.SetQueryParams(req.Params)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if len(req.Form) > 0 {
		r.SetFormData(req.Form)
		method = http.MethodPost
	}

	b.Log.Debug(component, "Fetching: method=%s url=%s", method, req.URL)

	res, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed after %d attempts: %w", req.URL, retryAttempts+1, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("request to %s returned status %d", req.URL, res.StatusCode())
	}

	return decodeCharset(res.Body(), req.Charset)
}

func decodeCharset(body []byte, charset string) ([]byte, error) {
	dec := decoderFor(charset)
	if dec == nil {
		return body, nil
	}
	decoded, err := io.ReadAll(dec.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s body: %w", charset, err)
	}
	return decoded, nil
}

func decoderFor(charset string) *charmap.Charmap {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	default:
		return nil
	}
}

// RetrieveDocument fetches and parses an HTML page.
func (b *Base) RetrieveDocument(ctx context.Context, req Request) (*goquery.Document, error) {
	body, err := b.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", req.URL, err)
	}
	return doc, nil
}

// RetrieveXML fetches and unmarshals an XML payload. The charset reader
// covers sources that declare latin encodings in the XML prologue.
func (b *Base) RetrieveXML(ctx context.Context, req Request, v any) error {
	body, err := b.Retrieve(ctx, req)
	if err != nil {
		return err
	}
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if cm := decoderFor(charset); cm != nil {
			return cm.NewDecoder().Reader(input), nil
		}
		return input, nil
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode XML from %s: %w", req.URL, err)
	}
	return nil
}

// RetrieveCSV fetches a CSV export into a dataframe. A negative headerLine
// means the header is the first row; otherwise rows above it are discarded
// first (some sources prepend title banners of varying height).
func (b *Base) RetrieveCSV(ctx context.Context, req Request, delimiter rune, headerLine int) (dataframe.DataFrame, error) {
	body, err := b.Retrieve(ctx, req)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if headerLine > 0 {
		lines := bytes.SplitN(body, []byte("\n"), headerLine+1)
		body = lines[len(lines)-1]
	}
	df := dataframe.ReadCSV(bytes.NewReader(body),
		dataframe.WithDelimiter(delimiter),
		dataframe.WithLazyQuotes(true))
	if df.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to read CSV from %s: %w", req.URL, df.Error())
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, ErrNotFound
	}
	return df, nil
}
