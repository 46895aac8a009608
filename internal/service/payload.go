package service

import (
	"reflect"

	"logbook-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// payloadsEqual compares two entry payloads structurally: key-by-key,
// order-insensitive, recursing into nested documents and arrays. Any
// difference anywhere counts as a change; there is no per-field
// verification, so the caller resets all decided records or none.
//
// Payloads cross two codecs (JSON on the way in, BSON at rest), which
// disagree on number representation (float64 vs int32/int64) and on
// document types (map vs bson.D). Both sides are normalized before the
// comparison so a pure round-trip never looks like a change.
func payloadsEqual(a, b models.Payload) bool {
	return reflect.DeepEqual(normalizeValue(map[string]any(a)), normalizeValue(map[string]any(b)))
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return normalizeMap(val)
	case models.Payload:
		return normalizeMap(val)
	case bson.M:
		return normalizeMap(val)
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		return normalizeSlice(val)
	case []any:
		return normalizeSlice(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalizeValue(v)
	}
	return out
}
