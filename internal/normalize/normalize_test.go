package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	val, err := ParseMoney("R$ 1.234,56")
	require.NoError(t, err)
	require.Equal(t, 1234.56, val)

	val, err = ParseMoney("2.345.678,90")
	require.NoError(t, err)
	require.Equal(t, 2345678.90, val)

	val, err = ParseMoney("R$\u00a01.234,56")
	require.NoError(t, err)
	require.Equal(t, 1234.56, val)

	val, err = ParseMoney("0,30")
	require.NoError(t, err)
	require.Equal(t, 0.30, val)

	val, err = ParseMoney("-150,00")
	require.NoError(t, err)
	require.Equal(t, -150.0, val)

	_, err = ParseMoney("")
	require.ErrorIs(t, err, ErrParse)

	_, err = ParseMoney("R$ n/d")
	require.ErrorIs(t, err, ErrParse)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("01/03/2015", LayoutBR)
	require.NoError(t, err)
	require.Equal(t, time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2016-07-01", LayoutISO)
	require.NoError(t, err)
	require.Equal(t, time.Date(2016, 7, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("", LayoutBR)
	require.ErrorIs(t, err, ErrParse)

	_, err = ParseDate("31/02/2015", LayoutBR)
	require.ErrorIs(t, err, ErrParse)
}

func TestNormalizeIdentifier(t *testing.T) {
	require.Equal(t, "01234567000189", NormalizeIdentifier("01.234.567/0001-89"))
	require.Equal(t, "12345678901", NormalizeIdentifier("123.456.789-01"))
	require.Equal(t, "", NormalizeIdentifier("  "))
}

func TestSupplierIdentifier(t *testing.T) {
	// Well-formed CNPJ uses the digits.
	require.Equal(t, "01234567000189", SupplierIdentifier("01.234.567/0001-89", "Posto XYZ"))
	// Missing or malformed ids fall back to the synthetic marker.
	require.Equal(t, "Sem CNPJ/CPF (João)", SupplierIdentifier("", "João"))
	require.Equal(t, "Sem CNPJ/CPF (João)", SupplierIdentifier("000", "João"))
	require.Equal(t, "Sem CNPJ/CPF (Maria)", SupplierIdentifier("abc.def/ghi", " Maria "))
}

func TestChecksumValidators(t *testing.T) {
	require.True(t, ValidCPF("111.444.777-35"))
	require.False(t, ValidCPF("111.444.777-36"))
	require.True(t, ValidCNPJ("11.222.333/0001-81"))
	require.False(t, ValidCNPJ("11.222.333/0001-80"))
}

func TestCanonicalPartySiglum(t *testing.T) {
	require.Equal(t, "PTdoB", CanonicalPartySiglum("PT do B"))
	require.Equal(t, "PCdoB", CanonicalPartySiglum("pcdob"))
	require.Equal(t, "", CanonicalPartySiglum("Sem Partido"))
	require.Equal(t, "PSDB", CanonicalPartySiglum("psdb"))
}

func TestCanonicalNatureName(t *testing.T) {
	require.Equal(t, "Combustível", CanonicalNatureName("COMBUSTIVEL"))
	require.Equal(t, "Combustível", CanonicalNatureName("Combustíveis e Lubrificantes"))
	require.Equal(t, "Periódico", CanonicalNatureName("periodicos"))
	// Unknown categories pass through cleaned.
	require.Equal(t, "Hospedagem", CanonicalNatureName("  Hospedagem  "))
}

func TestCanonicalLegislatorName(t *testing.T) {
	require.Equal(t, "Gim Argello", CanonicalLegislatorName("senado", "Gim"))
	require.Equal(t, "Fulano de Tal", CanonicalLegislatorName("senado", " Fulano  de Tal "))
	require.Equal(t, "Fulano de Tal", CanonicalLegislatorName("xxxx", "Fulano de Tal"))
}
