package microvm

import "github.com/mandubian/ccos-sub020/internal/ccoserr"

// Factory selects a Provider by name, matching the teacher-style
// constructor-table pattern used across the capability registry. Registered
// but unavailable providers fall back to MockProvider so tests and default
// deployments never hard-fail on missing sandbox infrastructure; a name
// that is not registered at all is a KindNotFound error.
type Factory struct {
	providers map[string]Provider
}

// NewFactory constructs a Factory with the standard provider set.
func NewFactory() *Factory {
	f := &Factory{providers: map[string]Provider{}}
	for _, p := range []Provider{
		NewMockProvider(),
		NewProcessProvider(),
		NewWasmProvider(),
		NewGvisorProvider(),
		NewFirecrackerProvider(),
	} {
		f.providers[p.Name()] = p
	}
	return f
}

// Register adds or overrides a provider under its own Name().
func (f *Factory) Register(p Provider) {
	f.providers[p.Name()] = p
}

// Select resolves name to an available Provider, falling back to
// MockProvider ("" or "mock" also resolve directly to it).
func (f *Factory) Select(name string) (Provider, error) {
	if name == "" {
		name = "mock"
	}
	p, ok := f.providers[name]
	if !ok {
		return nil, ccoserr.Newf(ccoserr.KindNotFound, "unknown microvm provider %q", name)
	}
	if !p.IsAvailable() {
		mock := f.providers["mock"]
		return mock, nil
	}
	return p, nil
}
