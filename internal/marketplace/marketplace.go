// Package marketplace implements the Capability Marketplace: the unified
// execution surface over the Capability Registry plus remote, HTTP, MCP,
// and streaming capability providers, per spec §4.4.
package marketplace

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mandubian/ccos-sub020/internal/capability"
	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/security"
	"github.com/mandubian/ccos-sub020/internal/telemetry"
)

// RemoteExecutor abstracts the Remote provider variant's dispatch so the
// marketplace does not depend on a concrete RPC client.
type RemoteExecutor interface {
	Execute(ctx context.Context, capabilityID string, args map[string]any) (any, error)
}

// CatalogService is an optional external source of truth the marketplace
// consults when refreshing its search index, e.g. a control plane tracking
// which capabilities are currently deployed.
type CatalogService interface {
	ListManifests(ctx context.Context) ([]capability.Manifest, error)
}

// Marketplace is the unified execution surface over the Capability
// Registry. Discovery, caching, and provider routing are orthogonal
// concerns composed in here rather than folded into the Registry itself.
type Marketplace struct {
	mu sync.RWMutex

	registry *capability.Registry
	manifests map[string]capability.Manifest

	http   RemoteExecutor
	mcp    RemoteExecutor
	stream RemoteExecutor
	remote RemoteExecutor

	discovery []Discovery
	cache     Cache
	cacheTTL  time.Duration

	catalog CatalogService
	index   []string // sorted capability ids, rebuilt by refresh_catalog_index

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer
}

// Option configures a Marketplace at construction time.
type Option func(*Marketplace)

// WithDiscovery appends a Discovery source, consulted in order on a cache
// miss until one returns a non-empty result.
func WithDiscovery(d Discovery) Option {
	return func(m *Marketplace) { m.discovery = append(m.discovery, d) }
}

// WithCache sets the discovery result cache and its TTL.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(m *Marketplace) { m.cache = c; m.cacheTTL = ttl }
}

// WithHTTPProvider wires the Http provider variant.
func WithHTTPProvider(p RemoteExecutor) Option { return func(m *Marketplace) { m.http = p } }

// WithMCPProvider wires the MCP provider variant.
func WithMCPProvider(p RemoteExecutor) Option { return func(m *Marketplace) { m.mcp = p } }

// WithStreamProvider wires the Stream provider variant.
func WithStreamProvider(p RemoteExecutor) Option { return func(m *Marketplace) { m.stream = p } }

// WithRemoteProvider wires the Remote provider variant.
func WithRemoteProvider(p RemoteExecutor) Option { return func(m *Marketplace) { m.remote = p } }

// WithLogger sets the structured logger.
func WithLogger(l telemetry.Logger) Option { return func(m *Marketplace) { m.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(metrics telemetry.Metrics) Option { return func(m *Marketplace) { m.metrics = metrics } }

// WithTracer sets the tracer used to span execute_capability calls.
func WithTracer(t telemetry.Tracer) Option { return func(m *Marketplace) { m.tracer = t } }

// New constructs a Marketplace over registry with the given options.
func New(registry *capability.Registry, opts ...Option) *Marketplace {
	logger, metrics, tracer := telemetry.NewNoop()
	m := &Marketplace{
		registry:  registry,
		manifests: map[string]capability.Manifest{},
		cache:     NewMemoryCache(),
		cacheTTL:  5 * time.Minute,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterCapabilityManifest records manifest in the marketplace's own
// table, independent of whether a native registry entry backs it (a
// manifest may describe an Http/Mcp/Stream/Remote capability with no
// Registry entry at all).
func (m *Marketplace) RegisterCapabilityManifest(manifest capability.Manifest) error {
	if !capability.ValidID(manifest.ID) {
		return ccoserr.Newf(ccoserr.KindParse, "invalid capability id %q", manifest.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[manifest.ID] = manifest
	return nil
}

// SetCatalogService wires the external catalog service consulted by
// RefreshCatalogIndex.
func (m *Marketplace) SetCatalogService(cat CatalogService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = cat
}

// RefreshCatalogIndex rebuilds the marketplace's sorted search index from
// its own manifest table plus, if wired, the external catalog service.
func (m *Marketplace) RefreshCatalogIndex(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalog != nil {
		manifests, err := m.catalog.ListManifests(ctx)
		if err != nil {
			return ccoserr.NewWithCause(ccoserr.KindProvider, "catalog service list failed", err)
		}
		for _, manifest := range manifests {
			m.manifests[manifest.ID] = manifest
		}
	}

	ids := make([]string, 0, len(m.manifests))
	for id := range m.manifests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	m.index = ids
	return nil
}

// SearchIndex returns the current sorted capability id index, as of the
// last RefreshCatalogIndex call.
func (m *Marketplace) SearchIndex() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.index))
	copy(out, m.index)
	return out
}

// GetManifest returns the manifest registered for id, if any.
func (m *Marketplace) GetManifest(id string) (capability.Manifest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	manifest, ok := m.manifests[id]
	return manifest, ok
}

// ExecuteCapability resolves id's provider variant and routes the call:
// Native dispatches to the Capability Registry (and, through it, the
// selected MicroVM provider); Http/Mcp/Stream/Remote dispatch to the
// matching wired RemoteExecutor. Effect policy is checked here, ahead of
// any dispatch, so a denied effect never reaches a provider.
func (m *Marketplace) ExecuteCapability(ctx context.Context, id string, args any, rtCtx *security.Context) (any, error) {
	ctx, span := m.tracer.Start(ctx, "marketplace.execute_capability")
	defer span.End()

	manifest, ok := m.GetManifest(id)
	if !ok {
		if entry, ok := m.registry.GetCapability(id); ok {
			manifest = entry.Manifest
		} else {
			return nil, ccoserr.Newf(ccoserr.KindNotFound, "unknown capability %q", id)
		}
	}

	if rtCtx != nil {
		if !rtCtx.AllowsCapability(id) {
			m.metrics.IncCounter("marketplace.capability_denied", 1, "capability", id)
			return nil, ccoserr.Newf(ccoserr.KindSecurity, "capability %q denied by runtime context", id).
				WithFields(map[string]any{"operation": "capability_allowlist", "capability": id})
		}
		if allowed, denied := rtCtx.EnsureEffectsAllowed(manifest.Effects); !allowed {
			m.metrics.IncCounter("marketplace.effect_denied", 1, "capability", id)
			return nil, ccoserr.Newf(ccoserr.KindSecurity, "effect %q denied for capability %q", denied, id).
				WithFields(map[string]any{"operation": "effect_policy", "capability": id, "context": denied})
		}
	}

	start := time.Now()
	result, err := m.dispatch(ctx, manifest, id, args, rtCtx)
	m.metrics.RecordTimer("marketplace.execute_capability", time.Since(start), "capability", id)
	if err != nil {
		m.logger.Error(ctx, "capability execution failed", "capability", id, "error", err.Error())
		return nil, err
	}
	return result, nil
}

func (m *Marketplace) dispatch(ctx context.Context, manifest capability.Manifest, id string, args any, rtCtx *security.Context) (any, error) {
	switch manifest.Provider {
	case capability.ProviderNative, "":
		return m.registry.ExecuteCapabilityWithMicroVM(ctx, id, args, rtCtx)
	case capability.ProviderHTTP:
		return m.routeNormalized(ctx, m.http, manifest, id, args, "http")
	case capability.ProviderMCP:
		return m.routeNormalized(ctx, m.mcp, manifest, id, args, "mcp")
	case capability.ProviderStream:
		return m.routeNormalized(ctx, m.stream, manifest, id, args, "stream")
	case capability.ProviderRemote:
		return m.routeNormalized(ctx, m.remote, manifest, id, args, "remote")
	default:
		return nil, ccoserr.Newf(ccoserr.KindInternal, "unknown provider variant %q for capability %q", manifest.Provider, id)
	}
}

func (m *Marketplace) routeNormalized(ctx context.Context, executor RemoteExecutor, manifest capability.Manifest, id string, args any, variant string) (any, error) {
	if executor == nil {
		return nil, ccoserr.Newf(ccoserr.KindProvider, "%s provider not wired for capability %q", variant, id)
	}
	normalized, err := capability.NormalizeArgsToMap(args, manifest.InputSchema)
	if err != nil {
		return nil, err
	}
	if err := capability.Validate(normalized, manifest.InputSchema); err != nil {
		return nil, err
	}
	return executor.Execute(ctx, id, normalized)
}

// Discover runs the wired Discovery sources in order for capabilityID,
// serving from cache when possible and populating the cache on a live hit.
// It stops at the first source to return a non-empty result.
func (m *Marketplace) Discover(ctx context.Context, capabilityID string) ([]capability.Manifest, error) {
	if m.cache != nil {
		if cached, err := m.cache.Get(ctx, capabilityID); err == nil && cached != nil {
			return cached, nil
		}
	}
	for _, source := range m.discovery {
		manifests, err := source.Discover(ctx, capabilityID)
		if err != nil {
			m.logger.Error(ctx, "discovery source failed", "capability", capabilityID, "error", err.Error())
			continue
		}
		if len(manifests) == 0 {
			continue
		}
		if m.cache != nil {
			_ = m.cache.Set(ctx, capabilityID, manifests, m.cacheTTL)
		}
		return manifests, nil
	}
	return nil, nil
}
