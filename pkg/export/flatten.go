package export

import (
	"encoding/json"
	"fmt"

	"loomworks/trawl/pkg/api"
)

const (
	// maxArrayItems is the largest array serialized inline; longer
	// arrays become a truncation placeholder.
	maxArrayItems = 1000

	// maxSerializedLen is the largest serialized array accepted in a
	// cell, in characters.
	maxSerializedLen = 100000
)

// FlatRecord is a single-level mapping from dotted key paths to values
// ready for tabular output.
type FlatRecord map[string]any

// Flatten converts a nested record into a FlatRecord. Nested objects
// extend the key path with a dot; arrays are serialized to compact JSON
// unless oversized, in which case a placeholder names what was dropped.
// Flattening is pure: the same record always yields the same result.
// The second return reports whether any value was truncated or degraded.
func Flatten(rec api.Record) (FlatRecord, bool) {
	flat := make(FlatRecord, len(rec))
	truncated := false
	flattenInto(flat, "", rec, &truncated)
	return flat, truncated
}

func flattenInto(flat FlatRecord, prefix string, rec map[string]any, truncated *bool) {
	for key, value := range rec {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flattenInto(flat, path, v, truncated)
		case []any:
			cell, ok := serializeArray(v)
			if !ok {
				*truncated = true
			}
			flat[path] = cell
		default:
			flat[path] = v
		}
	}
}

// serializeArray renders an array as a compact JSON string, degrading
// to a placeholder when the array is too long, serializes too large, or
// cannot be serialized at all. ok is false whenever a placeholder was
// used.
func serializeArray(arr []any) (value string, ok bool) {
	if len(arr) > maxArrayItems {
		return fmt.Sprintf("[array of %d items, truncated]", len(arr)), false
	}

	data, err := json.Marshal(arr)
	if err != nil {
		return fmt.Sprintf("[unserializable array of %d items]", len(arr)), false
	}

	if len(data) > maxSerializedLen {
		return fmt.Sprintf("[array of ~%dKB, truncated]", len(data)/1024), false
	}

	return string(data), true
}

// formatCell renders one flattened value as a CSV field.
func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		// JSON numbers decode as float64; print integers without the
		// trailing ".0" so IDs survive round trips.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
