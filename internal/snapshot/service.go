package snapshot

import (
	"context"
	"strconv"

	"kgraph/internal/apierr"
	"kgraph/internal/graph"
	"kgraph/internal/logging"
)

// exportLimit is the "very large limit" spec §4.8 calls for when paging
// through every entity/relationship during export.
const exportLimit = 1_000_000

// GraphOps is the subset of internal/graph.Service the snapshot engine drives.
type GraphOps interface {
	CreateGraph(ctx context.Context, graphName string) error
	DropGraph(ctx context.Context, graphName string)
	ListEntities(ctx context.Context, graphName, entityType string, limit, offset int) ([]graph.Entity, error)
	ListRelationships(ctx context.Context, graphName string, limit int) ([]graph.Relationship, error)
	CreateEntity(ctx context.Context, graphName string, in graph.EntityInput) (graph.Entity, error)
	CreateRelationship(ctx context.Context, graphName string, in graph.RelationshipInput) (graph.Relationship, error)
}

// EventPublisher emits a best-effort domain event.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, any) {}

// Service implements export, safety-snapshot, and restore.
type Service struct {
	rows    *RowStore
	graphs  GraphOps
	events  EventPublisher
	archive *Archiver
}

// New builds a Service. archive may be nil (no S3 mirror configured).
func New(rows *RowStore, graphs GraphOps, events EventPublisher, archive *Archiver) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	return &Service{rows: rows, graphs: graphs, events: events, archive: archive}
}

// Create exports the project's current graph into a new snapshot row, then
// prunes anything past the retention limit.
func (s *Service) Create(ctx context.Context, projectID, graphName, label string, trigger Trigger) (Snapshot, error) {
	data, entityCount, relCount, err := s.export(ctx, graphName)
	if err != nil {
		return Snapshot{}, apierr.UpstreamHard("export graph for snapshot", err)
	}

	created, err := s.rows.Insert(ctx, Snapshot{
		ProjectID: projectID, Label: label, Trigger: trigger,
		GraphData: data, EntityCount: entityCount, RelationshipCount: relCount,
	})
	if err != nil {
		return Snapshot{}, err
	}

	if err := s.rows.PruneBeyondRetention(ctx, projectID, MaxSnapshotsPerProject); err != nil {
		logging.Log.WithError(err).WithField("project_id", projectID).Warn("snapshot retention prune failed")
	}

	s.archive.Archive(ctx, created)
	s.events.Publish(ctx, "snapshot.created", created.ID, created)
	return created, nil
}

func (s *Service) export(ctx context.Context, graphName string) (GraphData, int, int, error) {
	entities, err := s.graphs.ListEntities(ctx, graphName, "", exportLimit, 0)
	if err != nil {
		return GraphData{}, 0, 0, err
	}
	relationships, err := s.graphs.ListRelationships(ctx, graphName, exportLimit)
	if err != nil {
		return GraphData{}, 0, 0, err
	}

	data := GraphData{
		Entities:      make([]ExportEntity, len(entities)),
		Relationships: make([]ExportRelationship, len(relationships)),
	}
	for i, e := range entities {
		data.Entities[i] = ExportEntity{
			AgeID: idToString(e.ID), Name: e.Name, Type: e.Type, Properties: e.Properties,
		}
	}
	for i, r := range relationships {
		data.Relationships[i] = ExportRelationship{
			AgeID: idToString(r.ID), SourceID: idToString(r.SourceID), TargetID: idToString(r.TargetID),
			Type: r.Type, Properties: r.Properties, SourceName: r.SourceName, TargetName: r.TargetName,
		}
	}
	return data, len(data.Entities), len(data.Relationships), nil
}

func (s *Service) List(ctx context.Context, projectID string, limit int) ([]Summary, error) {
	return s.rows.List(ctx, projectID, limit)
}

func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	return s.rows.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if s.archive != nil {
		if snap, err := s.rows.Get(ctx, id); err == nil {
			s.archive.Delete(ctx, snap.ProjectID, snap.ID)
		}
	}
	return s.rows.Delete(ctx, id)
}

// Restore rebuilds a project's graph from a snapshot: a safety snapshot
// first, then drop+recreate the graph, then entities fully before any
// relationship, remapping old age_id to the freshly created ids. A
// relationship whose endpoint did not get remapped is skipped with a
// warning, never aborts the restore.
func (s *Service) Restore(ctx context.Context, snapshotID, projectID, graphName string) (RestoreResult, error) {
	target, err := s.rows.Get(ctx, snapshotID)
	if err != nil {
		return RestoreResult{}, err
	}

	safety, err := s.Create(ctx, projectID, graphName, "", TriggerAutoPreRestore)
	if err != nil {
		return RestoreResult{}, apierr.UpstreamHard("create safety snapshot before restore", err)
	}

	s.graphs.DropGraph(ctx, graphName)
	if err := s.graphs.CreateGraph(ctx, graphName); err != nil {
		return RestoreResult{}, apierr.UpstreamHard("recreate graph for restore", err)
	}

	idMap := make(map[string]string, len(target.GraphData.Entities))
	entitiesRestored := 0
	for _, e := range target.GraphData.Entities {
		created, err := s.graphs.CreateEntity(ctx, graphName, graph.EntityInput{
			Name: e.Name, Type: graph.EntityLabel(e.Type), Properties: graph.Properties(e.Properties),
		})
		if err != nil {
			logging.Log.WithError(err).WithField("entity", e.Name).Warn("failed to recreate entity during restore")
			continue
		}
		idMap[e.AgeID] = idToString(created.ID)
		entitiesRestored++
	}

	relationshipsRestored := 0
	for _, r := range target.GraphData.Relationships {
		sourceID, ok1 := idMap[r.SourceID]
		targetID, ok2 := idMap[r.TargetID]
		if !ok1 || !ok2 {
			logging.Log.WithField("source", r.SourceID).WithField("target", r.TargetID).
				Warn("skipping relationship during restore, endpoint not recreated")
			continue
		}
		if _, err := s.graphs.CreateRelationship(ctx, graphName, graph.RelationshipInput{
			SourceID: sourceID, TargetID: targetID, Type: graph.RelationshipLabel(r.Type), Properties: graph.Properties(r.Properties),
		}); err != nil {
			logging.Log.WithError(err).Warn("failed to recreate relationship during restore")
			continue
		}
		relationshipsRestored++
	}

	return RestoreResult{
		SnapshotID:            snapshotID,
		EntitiesRestored:      entitiesRestored,
		RelationshipsRestored: relationshipsRestored,
		PreRestoreSnapshotID:  safety.ID,
	}, nil
}

func idToString(id int64) string { return strconv.FormatInt(id, 10) }
