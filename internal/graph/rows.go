package graph

import "kgraph/internal/store"

// This file converts raw store.Row maps (decoded agtype values) into the
// typed response shapes the service returns. AGE surfaces every scalar as
// float64/string/bool/nil and every composite as map[string]any/[]any, so
// these helpers are deliberately permissive about the shapes they accept.

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func propertiesFromAny(v any) Properties {
	m, ok := v.(map[string]any)
	if !ok {
		return Properties{}
	}
	out := make(Properties, len(m))
	for k, val := range m {
		if k == "_age_type" {
			continue
		}
		out[k] = val
	}
	return out
}

func entityFromRow(r store.Row) Entity {
	return Entity{
		ID:         asInt64(r["id"]),
		Name:       asString(r["name"]),
		Type:       normalizeLabel(r["type"]),
		Properties: propertiesFromAny(r["properties"]),
	}
}

func entityWithConnectionsFromRow(r store.Row) EntityWithConnections {
	ewc := EntityWithConnections{
		Entity:      entityFromRow(r),
		Connections: []Connection{},
	}
	raw, ok := r["connections"].([]any)
	if !ok {
		return ewc
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if asInt64(m["id"]) == 0 && m["id"] == nil {
			continue
		}
		ewc.Connections = append(ewc.Connections, Connection{
			ID:           asInt64(m["id"]),
			Name:         asString(m["name"]),
			Type:         normalizeLabel(m["type"]),
			Relationship: asString(m["relationship"]),
			Direction:    asString(m["direction"]),
		})
	}
	return ewc
}

func relationshipFromRow(r store.Row) Relationship {
	return Relationship{
		ID:         asInt64(r["id"]),
		SourceID:   asInt64(r["source_id"]),
		TargetID:   asInt64(r["target_id"]),
		Type:       asString(r["type"]),
		Properties: propertiesFromAny(r["properties"]),
		SourceName: asString(r["source_name"]),
		TargetName: asString(r["target_name"]),
	}
}

func localGraphFromRow(r store.Row) LocalGraph {
	lg := LocalGraph{Nodes: []Entity{}, Edges: []GraphEdge{}}

	if rawNodes, ok := r["nodes"].([]any); ok {
		for _, item := range rawNodes {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			lg.Nodes = append(lg.Nodes, Entity{
				ID:         asInt64(m["id"]),
				Name:       asString(m["name"]),
				Type:       normalizeLabel(m["type"]),
				Properties: propertiesFromAny(m["properties"]),
			})
		}
	}

	if rawEdges, ok := r["edges"].([]any); ok {
		for _, item := range rawEdges {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			lg.Edges = append(lg.Edges, GraphEdge{
				ID:     asInt64(m["id"]),
				Source: asInt64(m["source"]),
				Target: asInt64(m["target"]),
				Type:   asString(m["type"]),
			})
		}
	}

	return lg
}
