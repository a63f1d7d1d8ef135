package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// toCypherMap renders a property bag as AGE's native map literal syntax
// ({k: v, ...}), never JSON. Keys with a nil value are dropped (used to
// remove a property rather than set it to null). Keys are sorted so
// generated queries are deterministic, which matters for tests and logs.
func toCypherMap(props Properties) string {
	keys := make([]string, 0, len(props))
	for k, v := range props {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, serializeValue(props[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// serializeValue renders a single Go value as an AGE Cypher literal.
func serializeValue(value any) string {
	switch v := value.(type) {
	case string:
		return quoteCypherString(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%v", v)
	case float32:
		return fmt.Sprintf("%v", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return quoteCypherString(fmt.Sprintf("%v", v))
		}
		return quoteCypherString(string(encoded))
	}
}

func quoteCypherString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}
