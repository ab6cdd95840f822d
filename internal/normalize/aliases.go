package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CleanName trims and collapses whitespace. Sources pad cell text with
// newlines and runs of spaces.
func CleanName(s string) string {
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

var deaccenter = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldKey lowercases and strips diacritics so that "Combustível",
// "COMBUSTIVEL" and "Combustivel " all land on the same alias-table key.
// Sources re-encode the same category inconsistently over the years.
func foldKey(s string) string {
	folded, _, err := transform.String(deaccenter, CleanName(s))
	if err != nil {
		folded = CleanName(s)
	}
	return strings.ToLower(folded)
}

// Party siglums as sources have historically misspelled them. One table for
// every collector instead of inline conditionals per house.
var partyAliases = map[string]string{
	"ptdob":         "PTdoB",
	"pt do b":       "PTdoB",
	"pcdob":         "PCdoB",
	"pc do b":       "PCdoB",
	"solidaried":    "SDD",
	"solidariedade": "SDD",
	"dem":           "DEM",
	"democratas":    "DEM",
	"sem partido":   "",
	"s/partido":     "",
	"s/ partido":    "",
	"infiliado":     "",
	"sem legenda":   "",
	"republicanos":  "REPUBLICANOS",
	"patriota":      "PATRI",
	"podemos":       "PODE",
	"cidadania":     "CIDADANIA",
}

// CanonicalPartySiglum maps a source spelling onto the canonical siglum.
// Unknown spellings pass through uppercased; an empty result means
// "no party affiliation recorded".
func CanonicalPartySiglum(s string) string {
	key := foldKey(s)
	if canonical, ok := partyAliases[key]; ok {
		return canonical
	}
	return strings.ToUpper(CleanName(s))
}

// Expense-nature spellings seen drifting across years of the same source.
var natureAliases = map[string]string{
	"combustivel":                          "Combustível",
	"combustiveis":                         "Combustível",
	"combustiveis e lubrificantes":         "Combustível",
	"periodico":                            "Periódico",
	"periodicos":                           "Periódico",
	"divulgacao da atividade parlamentar":  "Divulgação da atividade parlamentar",
	"divulgacao de atividade parlamentar":  "Divulgação da atividade parlamentar",
	"locacao de veiculos":                  "Locação de veículos",
	"locacao de veiculo":                   "Locação de veículos",
	"material de escritorio":               "Material de escritório",
	"materiais de escritorio":              "Material de escritório",
	"servicos graficos":                    "Serviços gráficos",
	"servico grafico":                      "Serviços gráficos",
	"telefonia":                            "Telefonia",
	"telefone":                             "Telefonia",
	"correios e telegrafos":                "Correios",
	"correios":                             "Correios",
	"consultoria tecnico especializada":    "Consultoria técnico-especializada",
	"consultoria tecnico-especializada":    "Consultoria técnico-especializada",
	"passagens aereas":                     "Passagens aéreas",
	"passagem aerea":                       "Passagens aéreas",
}

// CanonicalNatureName repairs accents and historical typos before the nature
// upsert. Unrecognized names pass through cleaned but unchanged.
func CanonicalNatureName(s string) string {
	if canonical, ok := natureAliases[foldKey(s)]; ok {
		return canonical
	}
	return CleanName(s)
}

// Per-institution legislator-name overrides for known collisions and
// nickname drift ("Gim" and "Gim Argello" are the same senator). Falling
// back to the source spelling creates a fresh Legislator, which is the
// documented duplicate-person risk.
var legislatorAliases = map[string]map[string]string{
	"SENADO": {
		"gim":                  "Gim Argello",
		"luiz henrique":        "Luiz Henrique da Silveira",
		"marta":                "Marta Suplicy",
	},
	"ALMG": {
		"duarte bechir":        "Carlos Duarte Bechir",
		"joao leite":           "João Leite da Silva Neto",
	},
	"CMBH": {
		"preto":                "Antônio Carlos Pereira",
		"pablo":                "Pablo César de Souza",
	},
	"CMSP": {
		"police neto":          "José Police Neto",
	},
}

// CanonicalLegislatorName resolves a roster or expense-line name through the
// institution's override table.
func CanonicalLegislatorName(institutionSiglum, name string) string {
	overrides, ok := legislatorAliases[strings.ToUpper(institutionSiglum)]
	if !ok {
		return CleanName(name)
	}
	if canonical, ok := overrides[foldKey(name)]; ok {
		return canonical
	}
	return CleanName(name)
}
