package graph

import (
	"strconv"
	"strings"

	"kgraph/internal/apierr"
)

var idPrefixes = []string{"entity_", "chunk_"}

// normalizeID strips a leading entity_/chunk_ prefix (added by search
// results that tag ids by kind) and parses the remainder as an integer.
// Non-integer input is a Validation error, per the identifier policy.
func normalizeID(raw string) (int64, error) {
	cleaned := raw
	for _, p := range idPrefixes {
		if strings.HasPrefix(cleaned, p) {
			cleaned = cleaned[len(p):]
			break
		}
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, apierr.Validation("invalid entity id: " + raw)
	}
	return n, nil
}

// normalizeLabel extracts the first element from the engine's list-wrapped
// label representation (AGE's labels(n) returns a JSON array), falling back
// to a plain string form. Unlabelled nodes normalise to "Unknown".
func normalizeLabel(v any) string {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return "Unknown"
		}
		if s, ok := t[0].(string); ok && s != "" {
			return s
		}
		return "Unknown"
	case string:
		if t == "" {
			return "Unknown"
		}
		return t
	default:
		return "Unknown"
	}
}
