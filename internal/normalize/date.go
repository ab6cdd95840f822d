package normalize

import (
	"fmt"
	"strings"
	"time"
)

// Layouts declared by the covered sources.
const (
	LayoutBR      = "02/01/2006"
	LayoutISO     = "2006-01-02"
	LayoutCompact = "20060102"
)

// ParseDate parses text using the layout the source declares. Invalid or
// missing input is an error; the calling collector owns the policy for it
// (skip the row, substitute a period boundary) rather than getting a silent
// zero date.
func ParseDate(text, layout string) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date text", ErrParse)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date text %q for layout %s", ErrParse, text, layout)
	}
	return t, nil
}

// MonthStart and MonthEnd bound one collection period. Collectors substitute
// these when a source omits the expense date inside a known period.
func MonthStart(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

func MonthEnd(year, month int) time.Time {
	return MonthStart(year, month).AddDate(0, 1, -1)
}
