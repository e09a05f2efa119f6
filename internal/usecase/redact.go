package usecase

// Audit payloads must never leak file locations, raw evidence text, or
// identifiers that did not resolve in the caller's scope. These keys
// are replaced before a payload is hashed and persisted.
var redactedPayloadKeys = map[string]struct{}{
	"filename":    {},
	"storageKey":  {},
	"storage_key": {},
	"filePath":    {},
	"path":        {},
	"ip":          {},
	"userAgent":   {},
	"email":       {},
	"text":        {},
	"snippet":     {},
	"excerpt":     {},
	"anchorId":    {},
	"anchor_id":   {},
}

const redactedValue = "[REDACTED]"

// RedactPayload deep-copies a payload with sensitive keys masked.
func RedactPayload(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RedactPayload(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if _, sensitive := redactedPayloadKeys[key]; sensitive {
				out[key] = redactedValue
			} else {
				out[key] = RedactPayload(val)
			}
		}
		return out
	default:
		return value
	}
}
