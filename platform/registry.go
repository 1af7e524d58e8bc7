package platform

import (
	"fmt"
	"sort"
	"strings"
)

// Registry looks extractors up by platform key.
type Registry struct {
	byName map[string]*Platform
}

var aliases = map[string]string{
	"xiaohongshu": "xhs",
	"rednote":     "xhs",
	"dy":          "douyin",
	"tt":          "toutiao",
}

// NewRegistry builds and validates the built-in platforms.
func NewRegistry(run *Runner) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Platform)}
	for _, p := range []*Platform{NewXHS(run), NewDouyin(run), NewToutiao(run)} {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		r.byName[p.name] = p
	}
	return r, nil
}

// Get returns the extractor for name or one of its aliases.
func (r *Registry) Get(name string) (Extractor, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[name]; ok {
		name = a
	}
	p, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return p, true
}

// MustGet is Get for names known at compile time.
func (r *Registry) MustGet(name string) Extractor {
	e, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("platform: unknown platform %q", name))
	}
	return e
}

// Names lists the registered platform keys in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
