package marketplace

import (
	"context"
	"net/http"

	"github.com/nexus-rpc/sdk-go/nexus"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// RemoteProvider dispatches Remote-variant capabilities over a Nexus RPC
// operation call, for capabilities exposed by another CCOS deployment or a
// Temporal Nexus-fronted service rather than an in-process registry entry.
type RemoteProvider struct {
	client  *nexus.HTTPClient
	service string
}

// NewRemoteProvider constructs a RemoteProvider against baseURL/service
// using httpClient for the underlying transport (http.DefaultClient if nil).
func NewRemoteProvider(baseURL, service string, httpClient *http.Client) (*RemoteProvider, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client, err := nexus.NewHTTPClient(nexus.HTTPClientOptions{
		BaseURL:    baseURL,
		Service:    service,
		HTTPCaller: httpClient.Do,
	})
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "nexus rpc client construction failed", err)
	}
	return &RemoteProvider{client: client, service: service}, nil
}

// Execute invokes capabilityID as a Nexus operation name with args as the
// operation input, and returns the decoded result value.
func (p *RemoteProvider) Execute(ctx context.Context, capabilityID string, args map[string]any) (any, error) {
	handle, err := p.client.ExecuteOperation(ctx, capabilityID, args, nexus.ExecuteOperationOptions{})
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "nexus rpc operation failed", err)
	}
	var result any
	if err := handle.Get(ctx, &result); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "nexus rpc result decode failed", err)
	}
	return result, nil
}
