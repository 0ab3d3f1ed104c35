package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math/rand"
	"net/http"
	"path"
	"time"

	"golang.org/x/time/rate"

	"github.com/mandubian/ccos-sub020/internal/capability"
	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// Discovery returns candidate manifests for a capability id from one
// external source. Implementations cover the four sources named in spec
// §4.4: static registry, filesystem catalog, MCP registry, HTTP
// introspection.
type Discovery interface {
	Discover(ctx context.Context, capabilityID string) ([]capability.Manifest, error)
}

// StaticDiscovery returns manifests from a fixed, pre-populated table —
// the default source wrapping whatever the Registry already knows.
type StaticDiscovery struct {
	manifests map[string][]capability.Manifest
}

// NewStaticDiscovery constructs a StaticDiscovery over the given table.
func NewStaticDiscovery(manifests map[string][]capability.Manifest) *StaticDiscovery {
	return &StaticDiscovery{manifests: manifests}
}

// Discover returns the manifests registered for capabilityID, if any.
func (d *StaticDiscovery) Discover(_ context.Context, capabilityID string) ([]capability.Manifest, error) {
	return d.manifests[capabilityID], nil
}

// FilesystemDiscovery reads manifest JSON documents out of a directory tree
// rooted at Root, one file per capability id, named "<id>.json".
type FilesystemDiscovery struct {
	FS   fs.FS
	Root string
}

// NewFilesystemDiscovery constructs a FilesystemDiscovery over fsys rooted
// at root.
func NewFilesystemDiscovery(fsys fs.FS, root string) *FilesystemDiscovery {
	return &FilesystemDiscovery{FS: fsys, Root: root}
}

// Discover reads <root>/<capabilityID>.json, if present.
func (d *FilesystemDiscovery) Discover(_ context.Context, capabilityID string) ([]capability.Manifest, error) {
	data, err := fs.ReadFile(d.FS, path.Join(d.Root, capabilityID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "filesystem catalog read failed", err)
	}
	var manifest capability.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindParse, "filesystem catalog entry malformed", err)
	}
	return []capability.Manifest{manifest}, nil
}

// MCPRegistryDiscovery queries a remote MCP registry's HTTP search endpoint
// for manifests advertising a capability id.
type MCPRegistryDiscovery struct {
	Client  *http.Client
	BaseURL string
}

// NewMCPRegistryDiscovery constructs an MCPRegistryDiscovery against baseURL.
func NewMCPRegistryDiscovery(client *http.Client, baseURL string) *MCPRegistryDiscovery {
	if client == nil {
		client = http.DefaultClient
	}
	return &MCPRegistryDiscovery{Client: client, BaseURL: baseURL}
}

// Discover issues a GET against BaseURL/capabilities/<id> and decodes the
// response body as a manifest list.
func (d *MCPRegistryDiscovery) Discover(ctx context.Context, capabilityID string) ([]capability.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/capabilities/"+capabilityID, nil)
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "mcp registry request build failed", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "mcp registry request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, ccoserr.Newf(ccoserr.KindProvider, "mcp registry returned status %d", resp.StatusCode)
	}
	var manifests []capability.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifests); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindParse, "mcp registry response malformed", err)
	}
	return manifests, nil
}

// HTTPIntrospectionDiscovery probes a capability provider's own
// introspection endpoint (e.g. an OpenAPI or tool-manifest document) rather
// than a central registry.
type HTTPIntrospectionDiscovery struct {
	Client   *http.Client
	Endpoint func(capabilityID string) string
}

// NewHTTPIntrospectionDiscovery constructs an HTTPIntrospectionDiscovery
// that derives each probe URL from endpoint.
func NewHTTPIntrospectionDiscovery(client *http.Client, endpoint func(string) string) *HTTPIntrospectionDiscovery {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPIntrospectionDiscovery{Client: client, Endpoint: endpoint}
}

// Discover probes Endpoint(capabilityID) and decodes the response as a
// single manifest.
func (d *HTTPIntrospectionDiscovery) Discover(ctx context.Context, capabilityID string) ([]capability.Manifest, error) {
	url := d.Endpoint(capabilityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "introspection request build failed", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "introspection request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, ccoserr.Newf(ccoserr.KindProvider, "introspection endpoint returned status %d", resp.StatusCode)
	}
	var manifest capability.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindParse, "introspection response malformed", err)
	}
	return []capability.Manifest{manifest}, nil
}

// RetryPolicy bounds the retry behavior of a rate-limited discovery call:
// up to MaxAttempts tries, exponential backoff from BaseDelay, with
// fractional jitter to avoid thundering-herd retries across concurrent
// orchestrator goroutines.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// DefaultRetryPolicy mirrors the discovery backoff named in spec §5.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second, Jitter: 0.2}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		jitter := float64(d) * p.Jitter * (rand.Float64()*2 - 1)
		d = time.Duration(float64(d) + jitter)
		if d < 0 {
			d = 0
		}
	}
	return d
}

// RateLimitedDiscovery wraps a Discovery with a token-bucket limiter and a
// retry policy, so a slow or failing external source cannot overrun it with
// network calls.
type RateLimitedDiscovery struct {
	inner   Discovery
	limiter *rate.Limiter
	retry   RetryPolicy
}

// NewRateLimitedDiscovery wraps inner with limiter and retry.
func NewRateLimitedDiscovery(inner Discovery, limiter *rate.Limiter, retry RetryPolicy) *RateLimitedDiscovery {
	return &RateLimitedDiscovery{inner: inner, limiter: limiter, retry: retry}
}

// Discover waits for a rate-limit token, then retries inner.Discover up to
// retry.MaxAttempts times with exponential backoff on error.
func (d *RateLimitedDiscovery) Discover(ctx context.Context, capabilityID string) ([]capability.Manifest, error) {
	var lastErr error
	attempts := d.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, ccoserr.NewWithCause(ccoserr.KindResource, "discovery rate limiter wait cancelled", err)
		}
		manifests, err := d.inner.Discover(ctx, capabilityID)
		if err == nil {
			return manifests, nil
		}
		lastErr = err
		if attempt < attempts-1 {
			select {
			case <-time.After(d.retry.delay(attempt)):
			case <-ctx.Done():
				return nil, ccoserr.NewWithCause(ccoserr.KindResource, "discovery cancelled during backoff", ctx.Err())
			}
		}
	}
	return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "discovery exhausted retry budget", lastErr)
}
