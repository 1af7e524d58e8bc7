// Package readiness decides when a dynamically rendered page is ready to be
// read, or why it never will be.
package readiness

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/postwatch/page"
)

// ProbeSet is the probe table of one page variant of one platform.
type ProbeSet struct {
	// Name identifies the variant, e.g. "xhs/note".
	Name string

	// Probes maps probe keys to page queries.
	Probes map[string]page.Probe

	// Required lists the keys that must all match for the page to be ready.
	Required []string

	// Interstitial, when set, is dismissed by clicking it whenever it is
	// visible (login pop-ups and the like).
	Interstitial *page.Probe
}

// Probe returns the probe registered under key.
func (s *ProbeSet) Probe(key string) (page.Probe, bool) {
	p, ok := s.Probes[key]
	return p, ok
}

// Validate checks that every required key exists and that CSS probes
// compile. It runs once when a platform table is loaded.
func (s *ProbeSet) Validate() error {
	if len(s.Required) == 0 {
		return fmt.Errorf("readiness: probe set %q has no required probes", s.Name)
	}
	for _, k := range s.Required {
		if _, ok := s.Probes[k]; !ok {
			return fmt.Errorf("readiness: probe set %q requires unknown key %q", s.Name, k)
		}
	}
	for k, p := range s.Probes {
		if err := validateProbe(p); err != nil {
			return fmt.Errorf("readiness: probe set %q key %q: %w", s.Name, k, err)
		}
	}
	if s.Interstitial != nil {
		if err := validateProbe(*s.Interstitial); err != nil {
			return fmt.Errorf("readiness: probe set %q interstitial: %w", s.Name, err)
		}
	}
	return nil
}

func validateProbe(p page.Probe) error {
	if p.Expr == "" {
		return fmt.Errorf("empty %s expression", p.Kind)
	}
	if p.Kind == page.CSS {
		if _, err := cascadia.ParseGroup(p.Expr); err != nil {
			return fmt.Errorf("invalid selector %q: %w", p.Expr, err)
		}
	}
	return nil
}
