// Package registry maps institution codes to collector constructors. It
// lives apart from the collector base so the house packages can depend on
// the base without a cycle.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olhopublico/verbas/internal/collector"
	"github.com/olhopublico/verbas/internal/collector/almg"
	"github.com/olhopublico/verbas/internal/collector/camara"
	"github.com/olhopublico/verbas/internal/collector/cmbh"
	"github.com/olhopublico/verbas/internal/collector/cmsp"
	"github.com/olhopublico/verbas/internal/collector/senado"
)

var constructors = map[string]func(collector.Deps) collector.Collector{
	"almg":   func(deps collector.Deps) collector.Collector { return almg.New(deps) },
	"cmbh":   func(deps collector.Deps) collector.Collector { return cmbh.New(deps) },
	"cmsp":   func(deps collector.Deps) collector.Collector { return cmsp.New(deps) },
	"senado": func(deps collector.Deps) collector.Collector { return senado.New(deps) },
	"camara": func(deps collector.Deps) collector.Collector { return camara.New(deps) },
}

// Codes lists every known institution code, sorted.
func Codes() []string {
	codes := make([]string, 0, len(constructors))
	for code := range constructors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Build resolves one code to a ready collector.
func Build(code string, deps collector.Deps) (collector.Collector, error) {
	constructor, ok := constructors[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, fmt.Errorf("unknown institution code %q (known: %s)", code, strings.Join(Codes(), ", "))
	}
	return constructor(deps), nil
}
