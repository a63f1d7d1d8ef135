package graph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"kgraph/internal/apierr"
	"kgraph/internal/logging"
	"kgraph/internal/store"
)

// Store is the subset of internal/store.Store the graph service depends on.
// Declared here so tests can supply a fake instead of a real pool.
type Store interface {
	Execute(ctx context.Context, sql string, args ...any) error
	ExecuteQueryOnNamedGraph(ctx context.Context, graphName, query string) ([]store.Row, error)
}

// Service implements every property-graph operation over a named AGE graph.
type Service struct {
	store Store
}

func New(s Store) *Service { return &Service{store: s} }

// CreateGraph is idempotent: an "already exists" failure is treated as success.
func (s *Service) CreateGraph(ctx context.Context, graphName string) error {
	err := s.store.Execute(ctx, fmt.Sprintf("SELECT ag_catalog.create_graph(%s)", quoteIdent(graphName)))
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil
	}
	return err
}

// DropGraph is best-effort: failures are logged, not returned, so a project
// delete can continue even if the graph is already gone.
func (s *Service) DropGraph(ctx context.Context, graphName string) {
	err := s.store.Execute(ctx, fmt.Sprintf("SELECT ag_catalog.drop_graph(%s, true)", quoteIdent(graphName)))
	if err != nil {
		logging.Log.WithError(err).WithField("graph", graphName).Warn("drop_graph failed")
	}
}

func (s *Service) CreateEntity(ctx context.Context, graphName string, in EntityInput) (Entity, error) {
	if !ValidEntityLabel(string(in.Type)) {
		return Entity{}, apierr.Validation("invalid entity type: " + string(in.Type))
	}
	props := Properties{"name": in.Name}
	for k, v := range in.Properties {
		props[k] = v
	}
	cypher := fmt.Sprintf(
		`CREATE (n:%s %s) RETURN id(n) AS id, n.name AS name, labels(n) AS type`,
		in.Type, toCypherMap(props),
	)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return Entity{}, err
	}
	if len(rows) == 0 {
		return Entity{}, apierr.Internal("create_entity returned no row", nil)
	}
	return entityFromRow(rows[0]), nil
}

func (s *Service) GetEntity(ctx context.Context, graphName string, rawID string) (EntityWithConnections, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return EntityWithConnections{}, err
	}
	cypher := fmt.Sprintf(`
		MATCH (n)
		WHERE id(n) = %d
		OPTIONAL MATCH (n)-[r]-(connected)
		RETURN id(n) AS id, n.name AS name, labels(n) AS type, properties(n) AS properties,
		       collect({
		         id: id(connected),
		         name: connected.name,
		         type: labels(connected),
		         relationship: type(r),
		         direction: CASE WHEN startNode(r) = n THEN 'outgoing' ELSE 'incoming' END
		       }) AS connections
	`, id)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return EntityWithConnections{}, err
	}
	if len(rows) == 0 {
		return EntityWithConnections{}, apierr.NotFound("entity not found")
	}
	return entityWithConnectionsFromRow(rows[0]), nil
}

func (s *Service) ListEntities(ctx context.Context, graphName string, entityType string, limit, offset int) ([]Entity, error) {
	typeFilter := ""
	if entityType != "" {
		typeFilter = ":" + entityType
	}
	cypher := fmt.Sprintf(`
		MATCH (n%s)
		RETURN id(n) AS id, n.name AS name, labels(n) AS type, properties(n) AS properties
		ORDER BY n.name
		SKIP %d
		LIMIT %d
	`, typeFilter, offset, limit)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, entityFromRow(r))
	}
	return out, nil
}

func (s *Service) DeleteEntity(ctx context.Context, graphName string, rawID string) (bool, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return false, err
	}
	cypher := fmt.Sprintf(`
		MATCH (n)
		WHERE id(n) = %d
		DETACH DELETE n
		RETURN count(*) AS deleted
	`, id)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return false, err
	}
	return len(rows) > 0 && asInt64(rows[0]["deleted"]) > 0, nil
}

func (s *Service) UpdateEntity(ctx context.Context, graphName string, rawID string, updates Properties) (Entity, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return Entity{}, err
	}

	var setClauses, removeClauses []string
	for k, v := range updates {
		if v == nil {
			removeClauses = append(removeClauses, fmt.Sprintf("REMOVE n.%s", k))
		} else {
			setClauses = append(setClauses, fmt.Sprintf("n.%s = %s", k, serializeValue(v)))
		}
	}
	sort.Strings(setClauses)
	sort.Strings(removeClauses)

	var mutation string
	if len(setClauses) > 0 {
		mutation += "SET " + strings.Join(setClauses, ", ") + " "
	}
	if len(removeClauses) > 0 {
		mutation += strings.Join(removeClauses, " ") + " "
	}

	cypher := fmt.Sprintf(`
		MATCH (n)
		WHERE id(n) = %d
		%s
		RETURN id(n) AS id, n.name AS name, properties(n) AS properties
	`, id, mutation)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return Entity{}, err
	}
	if len(rows) == 0 {
		return Entity{}, apierr.NotFound("entity not found")
	}
	ent := entityFromRow(rows[0])
	ent.Type = "" // update_entity doesn't select labels(); callers already know the type
	return ent, nil
}

func (s *Service) CreateRelationship(ctx context.Context, graphName string, in RelationshipInput) (Relationship, error) {
	if !ValidRelationshipLabel(string(in.Type)) {
		return Relationship{}, apierr.Validation("invalid relationship type: " + string(in.Type))
	}
	sourceID, err := normalizeID(in.SourceID)
	if err != nil {
		return Relationship{}, err
	}
	targetID, err := normalizeID(in.TargetID)
	if err != nil {
		return Relationship{}, err
	}
	propsCypher := "{}"
	if len(in.Properties) > 0 {
		propsCypher = toCypherMap(in.Properties)
	}
	cypher := fmt.Sprintf(`
		MATCH (a), (b)
		WHERE id(a) = %d AND id(b) = %d
		CREATE (a)-[r:%s %s]->(b)
		RETURN id(r) AS id, type(r) AS type
	`, sourceID, targetID, in.Type, propsCypher)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return Relationship{}, err
	}
	if len(rows) == 0 {
		return Relationship{}, apierr.Validation("relationship endpoints do not exist")
	}
	return Relationship{
		ID:       asInt64(rows[0]["id"]),
		SourceID: sourceID,
		TargetID: targetID,
		Type:     asString(rows[0]["type"]),
	}, nil
}

func (s *Service) ListRelationships(ctx context.Context, graphName string, limit int) ([]Relationship, error) {
	cypher := fmt.Sprintf(`
		MATCH (a)-[r]->(b)
		RETURN id(r) AS id, id(a) AS source_id, id(b) AS target_id,
		       type(r) AS type, properties(r) AS properties,
		       a.name AS source_name, b.name AS target_name
		LIMIT %d
	`, limit)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return nil, err
	}
	out := make([]Relationship, 0, len(rows))
	for _, r := range rows {
		out = append(out, relationshipFromRow(r))
	}
	return out, nil
}

func (s *Service) GetEntityRelationships(ctx context.Context, graphName, rawID, direction, relType string) ([]Row, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return nil, err
	}
	typeFilter := ""
	if relType != "" {
		typeFilter = ":" + relType
	}
	var pattern string
	switch direction {
	case "outgoing":
		pattern = fmt.Sprintf("(n)-[r%s]->(other)", typeFilter)
	case "incoming":
		pattern = fmt.Sprintf("(n)<-[r%s]-(other)", typeFilter)
	default:
		pattern = fmt.Sprintf("(n)-[r%s]-(other)", typeFilter)
	}
	cypher := fmt.Sprintf(`
		MATCH %s
		WHERE id(n) = %d
		RETURN id(r) AS id, type(r) AS type, properties(r) AS properties,
		       id(other) AS other_id, other.name AS other_name, labels(other) AS other_type,
		       CASE WHEN startNode(r) = n THEN 'outgoing' ELSE 'incoming' END AS direction
	`, pattern, id)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row(r))
	}
	return out, nil
}

// Row re-exports store.Row so callers outside internal/store don't import it
// directly for loosely-typed relationship listings.
type Row = store.Row

func (s *Service) UpsertEntity(ctx context.Context, graphName string, in EntityInput, description string) (UpsertResult, error) {
	if !ValidEntityLabel(string(in.Type)) {
		return UpsertResult{}, apierr.Validation("invalid entity type: " + string(in.Type))
	}
	escapedName := strings.ReplaceAll(in.Name, "'", `\'`)
	findCypher := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE toLower(n.name) = toLower('%s')
		RETURN id(n) AS id, n.name AS name, properties(n) AS properties
	`, in.Type, escapedName)
	existing, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, findCypher)
	if err != nil {
		return UpsertResult{}, err
	}

	if len(existing) > 0 {
		entityID := fmt.Sprintf("%v", asInt64(existing[0]["id"]))
		existingProps := propertiesFromAny(existing[0]["properties"])
		merged := Properties{}
		for k, v := range existingProps {
			merged[k] = v
		}
		for k, v := range in.Properties {
			merged[k] = v
		}
		if description != "" {
			merged["description"] = description
		}
		if _, err := s.UpdateEntity(ctx, graphName, entityID, merged); err != nil {
			return UpsertResult{}, err
		}
		var mergedKeys []string
		for k := range in.Properties {
			if _, ok := existingProps[k]; ok {
				mergedKeys = append(mergedKeys, k)
			}
		}
		sort.Strings(mergedKeys)
		if mergedKeys == nil {
			mergedKeys = []string{}
		}
		return UpsertResult{
			ID:               entityID,
			Name:             asString(existing[0]["name"]),
			Properties:       merged,
			MergedProperties: mergedKeys,
			Created:          false,
		}, nil
	}

	props := Properties{}
	for k, v := range in.Properties {
		props[k] = v
	}
	if description != "" {
		props["description"] = description
	}
	created, err := s.CreateEntity(ctx, graphName, EntityInput{Name: in.Name, Type: in.Type, Properties: props})
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{
		ID:               strconv.FormatInt(created.ID, 10),
		Name:             in.Name,
		Properties:       props,
		MergedProperties: []string{},
		Created:          true,
	}, nil
}

func (s *Service) FindEntityByName(ctx context.Context, graphName, name, entityType string) ([]EntityWithConnections, error) {
	typeFilter := ""
	if entityType != "" {
		typeFilter = ":" + entityType
	}
	escapedName := strings.ReplaceAll(name, "'", `\'`)
	findCypher := fmt.Sprintf(`
		MATCH (n%s)
		WHERE toLower(n.name) = toLower('%s')
		RETURN id(n) AS id, n.name AS name, labels(n) AS type, properties(n) AS properties
	`, typeFilter, escapedName)
	entities, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, findCypher)
	if err != nil {
		return nil, err
	}

	out := make([]EntityWithConnections, 0, len(entities))
	for _, e := range entities {
		entID := asInt64(e["id"])
		connCypher := fmt.Sprintf(`
			MATCH (n)-[r]-(connected)
			WHERE id(n) = %d
			RETURN id(connected) AS conn_id, connected.name AS conn_name,
			       labels(connected) AS conn_type, type(r) AS rel_type,
			       CASE WHEN startNode(r) = n THEN 'outgoing' ELSE 'incoming' END AS direction
		`, entID)
		conns, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, connCypher)
		if err != nil {
			return nil, err
		}
		ewc := EntityWithConnections{Entity: entityFromRow(e), Connections: []Connection{}}
		for _, c := range conns {
			ewc.Connections = append(ewc.Connections, Connection{
				ID:           asInt64(c["conn_id"]),
				Name:         asString(c["conn_name"]),
				Type:         normalizeLabel(c["conn_type"]),
				Relationship: asString(c["rel_type"]),
				Direction:    asString(c["direction"]),
			})
		}
		out = append(out, ewc)
	}
	return out, nil
}

func (s *Service) BatchCreate(ctx context.Context, graphName string, entities []BatchEntity, relationships []BatchRelationship) (BatchResult, error) {
	refToID := map[string]string{}
	result := BatchResult{
		EntitiesCreated:      []BatchCreatedEntity{},
		RelationshipsCreated: []BatchCreatedRelationship{},
		Errors:               []string{},
	}

	for _, e := range entities {
		props := Properties{}
		if e.Description != "" {
			props["description"] = e.Description
		}
		for k, v := range e.Properties {
			props[k] = v
		}
		created, err := s.CreateEntity(ctx, graphName, EntityInput{Name: e.Name, Type: e.Type, Properties: props})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Entity '%s': %v", e.Name, err))
			continue
		}
		idStr := strconv.FormatInt(created.ID, 10)
		if e.Ref != "" {
			refToID[e.Ref] = idStr
		}
		result.EntitiesCreated = append(result.EntitiesCreated, BatchCreatedEntity{Ref: e.Ref, ID: idStr, Name: e.Name})
	}

	for _, r := range relationships {
		resolvedSource := resolveRef(refToID, r.FromRef)
		resolvedTarget := resolveRef(refToID, r.ToRef)
		created, err := s.CreateRelationship(ctx, graphName, RelationshipInput{
			SourceID: resolvedSource, TargetID: resolvedTarget, Type: r.Type, Properties: r.Properties,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Relationship '%s'->'%s': %v", r.FromRef, r.ToRef, err))
			continue
		}
		result.RelationshipsCreated = append(result.RelationshipsCreated, BatchCreatedRelationship{
			ID: strconv.FormatInt(created.ID, 10), From: resolvedSource, To: resolvedTarget, Type: string(r.Type),
		})
	}

	return result, nil
}

func resolveRef(refToID map[string]string, ref string) string {
	if id, ok := refToID[ref]; ok {
		return id
	}
	return ref
}

func (s *Service) BatchDelete(ctx context.Context, graphName string, rawIDs []string) (int, error) {
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := normalizeID(raw)
		if err != nil {
			return 0, err
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	cypher := fmt.Sprintf(`
		MATCH (n)
		WHERE id(n) IN [%s]
		DETACH DELETE n
		RETURN count(*) AS deleted_count
	`, strings.Join(ids, ", "))
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(asInt64(rows[0]["deleted_count"])), nil
}

func (s *Service) FindDuplicates(ctx context.Context, graphName, entityType string) ([]DuplicateGroup, error) {
	typeFilter := ""
	if entityType != "" {
		typeFilter = ":" + entityType
	}
	cypher := fmt.Sprintf(`
		MATCH (n%s)
		RETURN id(n) AS id, n.name AS name, labels(n) AS type, properties(n) AS properties
		ORDER BY n.name
	`, typeFilter)
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return nil, err
	}

	type groupKey struct{ name, typ string }
	groups := map[groupKey][]DuplicateEntity{}
	order := []groupKey{}
	names := map[groupKey]string{}
	types := map[groupKey]string{}
	for _, r := range rows {
		name := asString(r["name"])
		typ := normalizeLabel(r["type"])
		key := groupKey{strings.ToLower(name), typ}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			names[key] = name
			types[key] = typ
		}
		groups[key] = append(groups[key], DuplicateEntity{
			ID: fmt.Sprintf("%v", asInt64(r["id"])), Name: name, Properties: propertiesFromAny(r["properties"]),
		})
	}

	out := []DuplicateGroup{}
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		out = append(out, DuplicateGroup{Name: names[key], Type: types[key], Duplicates: members})
	}
	return out, nil
}

// MergeDuplicates rewires relationships from each removed entity onto the
// keeper, preserving label and properties, then deletes the removed node.
// A failure re-pointing any single relationship is logged and does not
// abort the merge.
func (s *Service) MergeDuplicates(ctx context.Context, graphName, keepID string, removeIDs []string) (MergeResult, error) {
	safeKeep, err := normalizeID(keepID)
	if err != nil {
		return MergeResult{}, err
	}

	for _, removeID := range removeIDs {
		safeRemove, err := normalizeID(removeID)
		if err != nil {
			return MergeResult{}, err
		}

		if err := s.repointOutgoing(ctx, graphName, safeKeep, safeRemove); err != nil {
			logging.Log.WithError(err).WithField("remove_id", removeID).Warn("failed to re-point outgoing relationships")
		}
		if err := s.repointIncoming(ctx, graphName, safeKeep, safeRemove); err != nil {
			logging.Log.WithError(err).WithField("remove_id", removeID).Warn("failed to re-point incoming relationships")
		}

		if _, err := s.DeleteEntity(ctx, graphName, strconv.FormatInt(safeRemove, 10)); err != nil {
			logging.Log.WithError(err).WithField("remove_id", removeID).Warn("failed to delete merged duplicate")
		}
	}

	return MergeResult{Kept: keepID, Removed: removeIDs}, nil
}

func (s *Service) repointOutgoing(ctx context.Context, graphName string, keep, remove int64) error {
	rels, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, fmt.Sprintf(`
		MATCH (old)-[r]->(target)
		WHERE id(old) = %d AND id(target) <> %d
		RETURN id(r) AS rid, type(r) AS rtype, properties(r) AS rprops, id(target) AS tid
	`, remove, keep))
	if err != nil {
		return err
	}
	for _, r := range rels {
		rtype := asString(r["rtype"])
		if rtype == "" {
			rtype = string(RelRelatedTo)
		}
		propsCypher := "{}"
		if props := propertiesFromAny(r["rprops"]); len(props) > 0 {
			propsCypher = toCypherMap(props)
		}
		tid := asInt64(r["tid"])
		if _, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, fmt.Sprintf(`
			MATCH (keeper), (target)
			WHERE id(keeper) = %d AND id(target) = %d
			CREATE (keeper)-[nr:%s %s]->(target)
			RETURN id(nr) AS id
		`, keep, tid, rtype, propsCypher)); err != nil {
			return err
		}
	}
	if len(rels) > 0 {
		_, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, fmt.Sprintf(`
			MATCH (old)-[r]->(target)
			WHERE id(old) = %d AND id(target) <> %d
			DELETE r
			RETURN count(*) AS deleted
		`, remove, keep))
		return err
	}
	return nil
}

func (s *Service) repointIncoming(ctx context.Context, graphName string, keep, remove int64) error {
	rels, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, fmt.Sprintf(`
		MATCH (source)-[r]->(old)
		WHERE id(old) = %d AND id(source) <> %d
		RETURN id(r) AS rid, type(r) AS rtype, properties(r) AS rprops, id(source) AS sid
	`, remove, keep))
	if err != nil {
		return err
	}
	for _, r := range rels {
		rtype := asString(r["rtype"])
		if rtype == "" {
			rtype = string(RelRelatedTo)
		}
		propsCypher := "{}"
		if props := propertiesFromAny(r["rprops"]); len(props) > 0 {
			propsCypher = toCypherMap(props)
		}
		sid := asInt64(r["sid"])
		if _, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, fmt.Sprintf(`
			MATCH (source), (keeper)
			WHERE id(source) = %d AND id(keeper) = %d
			CREATE (source)-[nr:%s %s]->(keeper)
			RETURN id(nr) AS id
		`, sid, keep, rtype, propsCypher)); err != nil {
			return err
		}
	}
	if len(rels) > 0 {
		_, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, fmt.Sprintf(`
			MATCH (source)-[r]->(old)
			WHERE id(old) = %d AND id(source) <> %d
			DELETE r
			RETURN count(*) AS deleted
		`, remove, keep))
		return err
	}
	return nil
}

// GetLocalGraph returns the neighbourhood within depth hops of center. A
// disconnected center still yields {nodes:[center], edges:[]} rather than an
// empty result (the clarified behaviour recorded in SPEC_FULL.md).
func (s *Service) GetLocalGraph(ctx context.Context, graphName, rawCenterID string, depth int) (LocalGraph, error) {
	centerID, err := normalizeID(rawCenterID)
	if err != nil {
		return LocalGraph{}, err
	}

	cypher := fmt.Sprintf(`
		MATCH path = (start)-[*1..%d]-(connected)
		WHERE id(start) = %d
		WITH nodes(path) AS ns, relationships(path) AS rs
		UNWIND ns AS n
		WITH collect(DISTINCT {
		  id: id(n), name: n.name, type: labels(n), properties: properties(n)
		}) AS nodes, rs
		UNWIND rs AS r
		RETURN nodes, collect(DISTINCT {
		  id: id(r), source: id(startNode(r)), target: id(endNode(r)), type: type(r)
		}) AS edges
	`, depth, centerID)

	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
	if err != nil {
		return LocalGraph{}, err
	}
	if len(rows) > 0 {
		return localGraphFromRow(rows[0]), nil
	}

	center, err := s.GetEntity(ctx, graphName, rawCenterID)
	if err != nil {
		return LocalGraph{}, err
	}
	return LocalGraph{Nodes: []Entity{center.Entity}, Edges: []GraphEdge{}}, nil
}

func (s *Service) GetFullGraph(ctx context.Context, graphName string, limit int, types []string) (FullGraph, error) {
	var nodes []Entity

	if len(types) > 0 {
		for _, t := range types {
			cypher := fmt.Sprintf(`
				MATCH (n:%s)
				RETURN id(n) AS id, n.name AS name, labels(n) AS type, properties(n) AS properties
				ORDER BY n.name
				LIMIT %d
			`, t, limit)
			rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
			if err != nil {
				return FullGraph{}, err
			}
			for _, r := range rows {
				nodes = append(nodes, entityFromRow(r))
			}
		}
	} else {
		rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, fmt.Sprintf(`
			MATCH (n)
			RETURN id(n) AS id, n.name AS name, labels(n) AS type, properties(n) AS properties
			LIMIT %d
		`, limit))
		if err != nil {
			return FullGraph{}, err
		}
		for _, r := range rows {
			nodes = append(nodes, entityFromRow(r))
		}
	}
	if nodes == nil {
		nodes = []Entity{}
	}

	edges := []GraphEdge{}
	if len(nodes) > 0 {
		idStrs := make([]string, len(nodes))
		for i, n := range nodes {
			idStrs[i] = strconv.FormatInt(n.ID, 10)
		}
		cypher := fmt.Sprintf(`
			MATCH (a)-[r]->(b)
			WHERE id(a) IN [%s] AND id(b) IN [%s]
			RETURN id(r) AS id, id(a) AS source, id(b) AS target, type(r) AS type
			LIMIT %d
		`, strings.Join(idStrs, ", "), strings.Join(idStrs, ", "), limit*2)
		rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
		if err != nil {
			return FullGraph{}, err
		}
		for _, r := range rows {
			edges = append(edges, GraphEdge{
				ID: asInt64(r["id"]), Source: asInt64(r["source"]), Target: asInt64(r["target"]), Type: asString(r["type"]),
			})
		}
	}

	return FullGraph{
		Nodes: nodes,
		Edges: edges,
		Stats: GraphCounts{NodeCount: len(nodes), EdgeCount: len(edges)},
	}, nil
}

func (s *Service) GetGraphStats(ctx context.Context, graphName string) (Stats, error) {
	typeCounts, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, `
		MATCH (n)
		WITH labels(n) AS type, count(*) AS count
		RETURN type, count
	`)
	if err != nil {
		return Stats{}, err
	}
	edgeRows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, `
		MATCH ()-[r]->()
		RETURN count(r) AS edge_count
	`)
	if err != nil {
		return Stats{}, err
	}

	nodeCount := 0
	types := map[string]int{}
	for _, t := range typeCounts {
		count := int(asInt64(t["count"]))
		nodeCount += count
		label := normalizeLabel(t["type"])
		if label != "" && label != "Unknown" {
			types[label] = count
		}
	}
	edgeCount := 0
	if len(edgeRows) > 0 {
		edgeCount = int(asInt64(edgeRows[0]["edge_count"]))
	}

	return Stats{NodeCount: nodeCount, EdgeCount: edgeCount, Types: types}, nil
}

func quoteIdent(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// ExecuteRawQuery runs a caller-supplied Cypher query against graphName after
// checking it against HasDangerousKeywords. This is the sole entry point for
// the "execute arbitrary read" HTTP endpoint; every other mutation goes
// through a dedicated operation above.
func (s *Service) ExecuteRawQuery(ctx context.Context, graphName, query string) ([]Row, error) {
	if HasDangerousKeywords(query) {
		return nil, apierr.Validation("query contains a restricted keyword (DELETE, CREATE, DROP, SET, REMOVE, MERGE, DETACH, CALL)")
	}
	rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, query)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row(r))
	}
	return out, nil
}

// SearchText runs the graph half of hybrid search (spec §4.7): a
// case-insensitive CONTAINS match over n.name and n.description, optionally
// restricted to a union of labels. Each label is queried separately and the
// results concatenated, the same one-label-at-a-time pattern GetFullGraph
// uses, since the AGE Cypher dialect has no portable multi-label match.
func (s *Service) SearchText(ctx context.Context, graphName, query string, labels []string, limit int) ([]Entity, error) {
	needle := strings.ToLower(strings.ReplaceAll(query, "'", "''"))
	if limit <= 0 {
		limit = 20
	}

	runOne := func(labelFilter string) ([]Entity, error) {
		cypher := fmt.Sprintf(`
			MATCH (n%s)
			WHERE toLower(n.name) CONTAINS '%s' OR toLower(n.description) CONTAINS '%s'
			RETURN id(n) AS id, n.name AS name, labels(n) AS type, properties(n) AS properties
			LIMIT %d
		`, labelFilter, needle, needle, limit)
		rows, err := s.store.ExecuteQueryOnNamedGraph(ctx, graphName, cypher)
		if err != nil {
			return nil, err
		}
		out := make([]Entity, 0, len(rows))
		for _, r := range rows {
			out = append(out, entityFromRow(r))
		}
		return out, nil
	}

	if len(labels) == 0 {
		return runOne("")
	}

	var out []Entity
	for _, l := range labels {
		hits, err := runOne(":" + l)
		if err != nil {
			return nil, err
		}
		out = append(out, hits...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
