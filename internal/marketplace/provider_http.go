package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// HTTPProvider dispatches Http-variant capabilities by POSTing the
// normalized argument map as JSON to a per-capability endpoint and decoding
// the JSON response body as the result.
type HTTPProvider struct {
	Client   *http.Client
	Endpoint func(capabilityID string) string
}

// NewHTTPProvider constructs an HTTPProvider deriving each capability's URL
// from endpoint.
func NewHTTPProvider(client *http.Client, endpoint func(string) string) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{Client: client, Endpoint: endpoint}
}

// Execute POSTs args to Endpoint(capabilityID) and decodes the response.
func (p *HTTPProvider) Execute(ctx context.Context, capabilityID string, args map[string]any) (any, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "marshal http provider request failed", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(capabilityID), bytes.NewReader(body))
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "build http provider request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "http provider request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, ccoserr.Newf(ccoserr.KindProvider, "http provider returned status %d", resp.StatusCode)
	}
	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindParse, "http provider response malformed", err)
	}
	return result, nil
}

// MCPProvider dispatches MCP-variant capabilities by invoking a named tool
// on an MCP server through its Call function, matching the request/response
// shape of the Model Context Protocol's tools/call method.
type MCPProvider struct {
	Call func(ctx context.Context, toolName string, args map[string]any) (any, error)
}

// NewMCPProvider constructs an MCPProvider around call.
func NewMCPProvider(call func(ctx context.Context, toolName string, args map[string]any) (any, error)) *MCPProvider {
	return &MCPProvider{Call: call}
}

// Execute invokes capabilityID as an MCP tool name.
func (p *MCPProvider) Execute(ctx context.Context, capabilityID string, args map[string]any) (any, error) {
	if p.Call == nil {
		return nil, ccoserr.New(ccoserr.KindProvider, "mcp provider has no call function wired")
	}
	return p.Call(ctx, capabilityID, args)
}

// StreamProvider dispatches Stream-variant capabilities, draining a channel
// of incremental values into a single aggregated result. Callers see only
// that aggregated result, not the incremental values as they arrive.
type StreamProvider struct {
	Open func(ctx context.Context, capabilityID string, args map[string]any) (<-chan any, <-chan error)
}

// NewStreamProvider constructs a StreamProvider around open.
func NewStreamProvider(open func(ctx context.Context, capabilityID string, args map[string]any) (<-chan any, <-chan error)) *StreamProvider {
	return &StreamProvider{Open: open}
}

// Execute drains the stream opened for capabilityID and returns the
// accumulated values as a slice, or the first error observed.
func (p *StreamProvider) Execute(ctx context.Context, capabilityID string, args map[string]any) (any, error) {
	if p.Open == nil {
		return nil, ccoserr.New(ccoserr.KindProvider, "stream provider has no open function wired")
	}
	values, errs := p.Open(ctx, capabilityID, args)
	var out []any
	for {
		select {
		case v, ok := <-values:
			if !ok {
				return out, nil
			}
			out = append(out, v)
		case err := <-errs:
			if err != nil {
				return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "stream provider failed", err)
			}
		case <-ctx.Done():
			return nil, ccoserr.NewWithCause(ccoserr.KindResource, "stream provider cancelled", ctx.Err())
		}
	}
}
