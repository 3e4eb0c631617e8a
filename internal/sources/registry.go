package sources

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// FetcherFactory builds the HTTP collaborator for one source: base URL,
// auth, retry policy.
type FetcherFactory func(source domain.Source) Fetcher

// Registry holds the constructed adapter per source.
type Registry struct {
	adapters map[domain.Source]Adapter
}

// NewRegistry constructs every source adapter. Market adapters need the
// category classifier; dataset adapters need the key store behind
// synthesized ids.
func NewRegistry(fetchers FetcherFactory, classifier Classifier, keys func(domain.Source) KeyStore, log zerolog.Logger) *Registry {
	r := &Registry{adapters: make(map[domain.Source]Adapter)}
	register := func(a Adapter) { r.adapters[a.Source()] = a }

	register(NewManifold(fetchers(domain.SourceManifold), classifier, log))
	register(NewMetaculus(fetchers(domain.SourceMetaculus), classifier, log))
	register(NewPolymarket(fetchers(domain.SourcePolymarket), classifier, log))
	register(NewRFI(fetchers(domain.SourceRFI), classifier, log))

	register(NewFRED(fetchers(domain.SourceFRED), keys(domain.SourceFRED), log))
	register(NewYFinance(fetchers(domain.SourceYFinance), keys(domain.SourceYFinance), log))
	register(NewACLED(fetchers(domain.SourceACLED), keys(domain.SourceACLED), log))
	register(NewWikipedia(fetchers(domain.SourceWikipedia), keys(domain.SourceWikipedia), log))

	return r
}

// Adapter returns the adapter for a source, folding source aliases first.
func (r *Registry) Adapter(source domain.Source) (Adapter, error) {
	canonical, ok := domain.CanonicalSource(string(source))
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	a, ok := r.adapters[canonical]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source %q", canonical)
	}
	return a, nil
}

// All returns every adapter in canonical source order.
func (r *Registry) All() []Adapter {
	sources := domain.AllSources()
	out := make([]Adapter, 0, len(sources))
	for _, s := range sources {
		if a, ok := r.adapters[s]; ok {
			out = append(out, a)
		}
	}
	return out
}
