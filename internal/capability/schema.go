package capability

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// Schema describes a capability's expected input (or output) shape. Keys
// records the schema-declared key order for positional normalization; Doc,
// when set, is a JSON Schema document compiled and validated against the
// normalized map via jsonschema/v6.
type Schema struct {
	// Keys is the ordered set of keyword-map keys, used to bind positional
	// arguments in declared order.
	Keys []string
	// Doc is an optional raw JSON Schema document describing the keyed map.
	Doc json.RawMessage

	compiled *jsonschema.Schema
}

// compile lazily compiles Doc into a *jsonschema.Schema, caching the result.
func (s *Schema) compile() (*jsonschema.Schema, error) {
	if s == nil || len(s.Doc) == 0 {
		return nil, nil
	}
	if s.compiled != nil {
		return s.compiled, nil
	}
	var doc any
	if err := json.Unmarshal(s.Doc, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	s.compiled = compiled
	return compiled, nil
}

// NormalizeArgsToMap binds positional arguments into a keyed map using
// schema's declared key order. Map arguments pass through unchanged
// (idempotent on already-normalized input, per §8). Extra positional
// arguments beyond len(schema.Keys) fail with an arity error.
func NormalizeArgsToMap(args any, schema *Schema) (map[string]any, error) {
	switch v := args.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case []any:
		if schema == nil || len(schema.Keys) == 0 {
			if len(v) == 0 {
				return map[string]any{}, nil
			}
			return nil, ccoserr.New(ccoserr.KindParse, "positional arguments given but capability declares no keyed schema")
		}
		if len(v) > len(schema.Keys) {
			return nil, ccoserr.Newf(ccoserr.KindParse,
				"arity error: %d positional arguments given, schema declares %d keys", len(v), len(schema.Keys))
		}
		out := make(map[string]any, len(v))
		for i, arg := range v {
			out[schema.Keys[i]] = arg
		}
		return out, nil
	default:
		// A bare scalar arrives when rtfs unwraps a single (call :cap x) argument
		// instead of passing it as a one-element list; treat it as positional
		// argument zero so a single-key schema still normalizes it.
		if schema == nil || len(schema.Keys) == 0 {
			return nil, ccoserr.Newf(ccoserr.KindParse, "unsupported argument shape %T", args)
		}
		return map[string]any{schema.Keys[0]: v}, nil
	}
}

// Validate checks a normalized map against schema.Doc, if present. Key
// ordering never affects the result (map validation is inherently
// order-independent).
func Validate(normalized map[string]any, schema *Schema) error {
	if schema == nil {
		return nil
	}
	compiled, err := schema.compile()
	if err != nil {
		return ccoserr.NewWithCause(ccoserr.KindParse, "capability schema compile failed", err)
	}
	if compiled == nil {
		return nil
	}
	if err := compiled.Validate(normalized); err != nil {
		return ccoserr.NewWithCause(ccoserr.KindParse, "capability argument schema validation failed", err)
	}
	return nil
}
