package capability

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// WorkingMemory is the narrow slice of the working memory store the
// ccos.memory.* built-ins depend on, declared here rather than importing the
// workingmemory package; workingmemory.MemoryStore and MongoStore satisfy it.
type WorkingMemory interface {
	Put(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (any, bool, error)
}

// ApprovalStore is the narrow slice of the approval workflow the
// ccos.secrets.set and ccos.approval.* built-ins depend on.
type ApprovalStore interface {
	SetSecret(ctx context.Context, capabilityID, secretType, value string) error
	RequestHumanAction(ctx context.Context, description string) (string, error)
	Complete(ctx context.Context, requestID string, result any) error
}

func schema(keys []string, doc string) *Schema {
	return &Schema{Keys: keys, Doc: []byte(doc)}
}

// RegisterBuiltins registers the built-in capability set of spec §6. memory
// and approvals may be nil; the corresponding capabilities then fail with a
// KindProvider error rather than panicking, so a registry can be built up
// incrementally (e.g. in tests) without wiring every dependency.
func RegisterBuiltins(r *Registry, memory WorkingMemory, approvals ApprovalStore, http_ *http.Client) error {
	for _, reg := range []struct {
		manifest Manifest
		fn       NativeFunc
	}{
		{
			manifest: Manifest{
				ID:      "ccos.echo",
				Version: "1.0.0",
				InputSchema: schema([]string{"value"}, `{
					"type": "object",
					"properties": {"value": {}}
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				return args["value"], nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.math.add",
				Version: "1.0.0",
				InputSchema: schema([]string{"a", "b"}, `{
					"type": "object",
					"properties": {"a": {"type": "number"}, "b": {"type": "number"}},
					"required": ["a", "b"]
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				a, aok := toFloat(args["a"])
				b, bok := toFloat(args["b"])
				if !aok || !bok {
					return nil, ccoserr.New(ccoserr.KindParse, "ccos.math.add requires numeric a and b")
				}
				return a + b, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.io.read-file",
				Version: "1.0.0",
				Effects: []string{"filesystem.read"},
				InputSchema: schema([]string{"path"}, `{
					"type": "object",
					"properties": {"path": {"type": "string"}},
					"required": ["path"]
				}`),
				Policy: IsolationPolicy{Filesystem: FilesystemPolicy{Kind: FilesystemReadOnly, Paths: []string{"/"}}},
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				path, _ := args["path"].(string)
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindResource, "read file failed", err)
				}
				return string(data), nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.io.write-file",
				Version: "1.0.0",
				Effects: []string{"filesystem.write"},
				InputSchema: schema([]string{"path", "content"}, `{
					"type": "object",
					"properties": {"path": {"type": "string"}, "content": {"type": "string"}},
					"required": ["path", "content"]
				}`),
				Policy: IsolationPolicy{Filesystem: FilesystemPolicy{Kind: FilesystemReadWrite, Paths: []string{"/"}}},
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				path, _ := args["path"].(string)
				content, _ := args["content"].(string)
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindResource, "write file failed", err)
				}
				return true, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.io.delete-file",
				Version: "1.0.0",
				Effects: []string{"filesystem.write"},
				InputSchema: schema([]string{"path"}, `{
					"type": "object",
					"properties": {"path": {"type": "string"}},
					"required": ["path"]
				}`),
				Policy: IsolationPolicy{Filesystem: FilesystemPolicy{Kind: FilesystemReadWrite, Paths: []string{"/"}}},
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				path, _ := args["path"].(string)
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return nil, ccoserr.NewWithCause(ccoserr.KindResource, "delete file failed", err)
				}
				return true, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.io.file-exists",
				Version: "1.0.0",
				InputSchema: schema([]string{"path"}, `{
					"type": "object",
					"properties": {"path": {"type": "string"}},
					"required": ["path"]
				}`),
				Policy: IsolationPolicy{Filesystem: FilesystemPolicy{Kind: FilesystemReadOnly, Paths: []string{"/"}}},
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				path, _ := args["path"].(string)
				_, err := os.Stat(path)
				if err == nil {
					return true, nil
				}
				if os.IsNotExist(err) {
					return false, nil
				}
				return nil, ccoserr.NewWithCause(ccoserr.KindResource, "stat file failed", err)
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.network.http-fetch",
				Version: "1.0.0",
				Effects: []string{"network"},
				InputSchema: schema([]string{"url"}, `{
					"type": "object",
					"properties": {"url": {"type": "string"}},
					"required": ["url"]
				}`),
				Policy: IsolationPolicy{Network: NetworkPolicy{Kind: NetworkFull}, Timeout: 30},
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				url, _ := args["url"].(string)
				client := http_
				if client == nil {
					client = http.DefaultClient
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
				if err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindParse, "invalid http-fetch url", err)
				}
				resp, err := client.Do(req)
				if err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "http-fetch request failed", err)
				}
				defer resp.Body.Close()
				return map[string]any{"status": resp.StatusCode}, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.user.ask",
				Version: "1.0.0",
				Effects: []string{"user-interaction"},
				InputSchema: schema([]string{"prompt"}, `{
					"type": "object",
					"properties": {"prompt": {"type": "string"}},
					"required": ["prompt"]
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, ccoserr.New(ccoserr.KindProvider, "ccos.user.ask requires an interactive host, none attached")
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.memory.store",
				Version: "1.0.0",
				Effects: []string{"memory.write"},
				InputSchema: schema([]string{"key", "value"}, `{
					"type": "object",
					"properties": {"key": {"type": "string"}, "value": {}},
					"required": ["key", "value"]
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				if memory == nil {
					return nil, ccoserr.New(ccoserr.KindProvider, "working memory not wired")
				}
				key, _ := args["key"].(string)
				if err := memory.Put(ctx, key, args["value"]); err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "memory store failed", err)
				}
				return true, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.memory.get",
				Version: "1.0.0",
				InputSchema: schema([]string{"key"}, `{
					"type": "object",
					"properties": {"key": {"type": "string"}},
					"required": ["key"]
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				if memory == nil {
					return nil, ccoserr.New(ccoserr.KindProvider, "working memory not wired")
				}
				key, _ := args["key"].(string)
				value, ok, err := memory.Get(ctx, key)
				if err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "memory get failed", err)
				}
				if !ok {
					return nil, ccoserr.Newf(ccoserr.KindNotFound, "no memory entry for key %q", key)
				}
				return value, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.secrets.set",
				Version: "1.0.0",
				Effects: []string{"secrets.write"},
				InputSchema: schema([]string{"capability_id", "secret_type", "value"}, `{
					"type": "object",
					"properties": {
						"capability_id": {"type": "string"},
						"secret_type": {"type": "string"},
						"value": {"type": "string"}
					},
					"required": ["capability_id", "secret_type", "value"]
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				if approvals == nil {
					return nil, ccoserr.New(ccoserr.KindProvider, "approval store not wired")
				}
				capabilityID, _ := args["capability_id"].(string)
				secretType, _ := args["secret_type"].(string)
				value, _ := args["value"].(string)
				if err := approvals.SetSecret(ctx, capabilityID, secretType, value); err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "secret set failed", err)
				}
				return true, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.approval.request_human_action",
				Version: "1.0.0",
				Effects: []string{"approval.write"},
				InputSchema: schema([]string{"description"}, `{
					"type": "object",
					"properties": {"description": {"type": "string"}},
					"required": ["description"]
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				if approvals == nil {
					return nil, ccoserr.New(ccoserr.KindProvider, "approval store not wired")
				}
				description, _ := args["description"].(string)
				id, err := approvals.RequestHumanAction(ctx, description)
				if err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "request human action failed", err)
				}
				return map[string]any{"request_id": id}, nil
			},
		},
		{
			manifest: Manifest{
				ID:      "ccos.approval.complete",
				Version: "1.0.0",
				Effects: []string{"approval.write"},
				InputSchema: schema([]string{"request_id", "result"}, `{
					"type": "object",
					"properties": {"request_id": {"type": "string"}, "result": {}},
					"required": ["request_id"]
				}`),
			},
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				if approvals == nil {
					return nil, ccoserr.New(ccoserr.KindProvider, "approval store not wired")
				}
				requestID, _ := args["request_id"].(string)
				if err := approvals.Complete(ctx, requestID, args["result"]); err != nil {
					return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "complete approval failed", err)
				}
				return true, nil
			},
		},
	} {
		if err := r.Register(reg.manifest, reg.fn); err != nil {
			return fmt.Errorf("register %s: %w", reg.manifest.ID, err)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// RTFSExecutor backs ccos.execute.rtfs: a nested plan-fragment evaluation
// supplied by the caller of RegisterRTFSExecute.
type RTFSExecutor func(ctx context.Context, source string) (any, error)

// RegisterRTFSExecute registers ccos.execute.rtfs against the given
// evaluator callback. It is kept separate from RegisterBuiltins, which does
// not register ccos.execute.rtfs, and the orchestrator does not call it: a
// registry has the capability only once a caller registers it here.
func RegisterRTFSExecute(r *Registry, exec RTFSExecutor) error {
	return r.Register(Manifest{
		ID:      "ccos.execute.rtfs",
		Version: "1.0.0",
		InputSchema: schema([]string{"source"}, `{
			"type": "object",
			"properties": {"source": {"type": "string"}},
			"required": ["source"]
		}`),
	}, func(ctx context.Context, args map[string]any) (any, error) {
		if exec == nil {
			return nil, ccoserr.New(ccoserr.KindProvider, "rtfs executor not wired")
		}
		source, _ := args["source"].(string)
		return exec(ctx, source)
	})
}
