package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse marks values that could not be normalized. Collectors decide
// per-row whether to skip or escalate.
var ErrParse = errors.New("unparseable value")

// ParseMoney converts a locale-formatted BRL amount ("R$ 1.234,56") into a
// float64 (1234.56). The dot is treated as a thousands separator and the
// comma as the decimal separator, which is how every covered source formats
// currency.
func ParseMoney(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "R$")
	// Some HTML sources pad "R$" with a non-breaking space.
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	if s == "" {
		return 0, fmt.Errorf("%w: empty money text", ErrParse)
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: money text %q", ErrParse, text)
	}
	return val, nil
}

// ParsePlainFloat handles machine-formatted amounts ("1234.56") emitted by
// XML dumps that never localize numbers.
func ParsePlainFloat(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("%w: empty numeric text", ErrParse)
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: numeric text %q", ErrParse, text)
	}
	return val, nil
}
