package ccoserr

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Redacted is the literal placeholder substituted for sensitive values in
// every log path, per §7.
const Redacted = "***REDACTED***"

var (
	sensitiveJSONKey = regexp.MustCompile(`(?i)("(?:(?:client_)?secret|token|password|api_key|apikey|authorization|access_token|refresh_token)"\s*:\s*")([^"]+)(")`)
	bearerToken      = regexp.MustCompile(`(?i)(authorization\s*:\s*bearer\s+)\S+`)
	skLikeToken      = regexp.MustCompile(`(?i)\bsk_[a-z0-9]{8,}\b`)
)

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, needle := range []string{
		"secret", "token", "password", "api_key", "apikey", "authorization",
		"access_key", "access_token", "refresh_token", "client_secret", "skill_definition",
	} {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

// RedactToken shortens a token to a prefix/suffix hint suitable for logs,
// never the value itself. Empty and short tokens are fully redacted.
func RedactToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	if len(token) <= 8 {
		return Redacted
	}
	return token[:4] + "..." + token[len(token)-2:]
}

// RedactText scrubs free-form text of JSON-shaped secret fields, Authorization
// bearer values, and common secret-looking tokens (e.g. sk_...).
func RedactText(text string) string {
	out := sensitiveJSONKey.ReplaceAllString(text, "${1}"+Redacted+"${3}")
	out = bearerToken.ReplaceAllStringFunc(out, func(m string) string {
		idx := strings.Index(strings.ToLower(m), "bearer")
		return m[:idx+len("bearer")+1] + Redacted
	})
	out = skLikeToken.ReplaceAllString(out, Redacted)
	return out
}

// RedactJSON recursively redacts a decoded JSON value (map/slice/scalar),
// masking sensitive object keys and scrubbing string leaves via RedactText.
func RedactJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			if isSensitiveKey(k) {
				if strings.EqualFold(k, "skill_definition") {
					out[k] = "<omitted>"
				} else {
					out[k] = Redacted
				}
				continue
			}
			out[k] = RedactJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = RedactJSON(vv)
		}
		return out
	case string:
		return RedactText(val)
	default:
		return val
	}
}

// RedactJSONBytes decodes, redacts, and re-encodes a JSON document. Malformed
// input is returned with RedactText applied as a best-effort fallback.
func RedactJSONBytes(raw []byte) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return []byte(RedactText(string(raw)))
	}
	redacted := RedactJSON(v)
	out, err := json.Marshal(redacted)
	if err != nil {
		return []byte(RedactText(string(raw)))
	}
	return out
}

// EnvFlagState reports "SET" or "NOT_SET" for a runtime security env flag
// without ever surfacing its value, per §6.
func EnvFlagState(value string) string {
	if value == "" {
		return "NOT_SET"
	}
	return "SET"
}
