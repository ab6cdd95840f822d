package normalize

import (
	"fmt"
	"strings"
)

const (
	cnpjLength = 14
	cpfLength  = 11
)

var identifierStripper = strings.NewReplacer(".", "", "-", "", "/", "", " ", "")

// NormalizeIdentifier strips CNPJ/CPF punctuation and returns the bare digit
// string ("01.234.567/0001-89" becomes "01234567000189"). No checksum is
// verified here; the upsert path keys suppliers on whatever digits the source
// published.
func NormalizeIdentifier(text string) string {
	return identifierStripper.Replace(strings.TrimSpace(text))
}

// SupplierFallbackIdentifier builds the synthetic marker used when a source
// omits or mangles the supplier tax id. Keeping the name inside the marker
// stops distinct unknown suppliers from collapsing into a single record.
func SupplierFallbackIdentifier(name string) string {
	return fmt.Sprintf("Sem CNPJ/CPF (%s)", CleanName(name))
}

// SupplierIdentifier resolves the upsert key for a supplier: the normalized
// digits when they look like a CNPJ or CPF, the fallback marker otherwise.
func SupplierIdentifier(rawID, name string) string {
	digits := NormalizeIdentifier(rawID)
	if len(digits) == cnpjLength || len(digits) == cpfLength {
		if isAllDigits(digits) {
			return digits
		}
	}
	return SupplierFallbackIdentifier(name)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ValidCNPJ and ValidCPF verify the official check digits. The collection
// path never calls them; they exist for ad hoc data audits.
func ValidCNPJ(id string) bool {
	digits := NormalizeIdentifier(id)
	if len(digits) != cnpjLength || !isAllDigits(digits) {
		return false
	}
	weightsFirst := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	weightsSecond := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(digits, weightsFirst) == int(digits[12]-'0') &&
		checkDigit(digits, weightsSecond) == int(digits[13]-'0')
}

func ValidCPF(id string) bool {
	digits := NormalizeIdentifier(id)
	if len(digits) != cpfLength || !isAllDigits(digits) {
		return false
	}
	weightsFirst := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	weightsSecond := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(digits, weightsFirst) == int(digits[9]-'0') &&
		checkDigit(digits, weightsSecond) == int(digits[10]-'0')
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}
