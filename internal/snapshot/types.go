// Package snapshot implements the project snapshot/restore engine: full
// graph export, a safety snapshot before any destructive operation, graph
// drop+recreate on restore, and retention pruning.
package snapshot

import "time"

// MaxSnapshotsPerProject bounds retention: a create beyond this threshold
// prunes the oldest snapshots for the project.
const MaxSnapshotsPerProject = 20

// Trigger records why a snapshot was taken.
type Trigger string

const (
	TriggerManual        Trigger = "manual"
	TriggerAutoPreRestore Trigger = "auto_pre_restore"
	TriggerAutoPreDedupe  Trigger = "auto_pre_dedupe"
	TriggerAutoPreDelete  Trigger = "auto_pre_delete"
)

// ExportEntity is one node in a snapshot's canonical export shape.
type ExportEntity struct {
	AgeID      string         `json:"age_id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// ExportRelationship is one edge in a snapshot's canonical export shape.
type ExportRelationship struct {
	AgeID      string         `json:"age_id"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	SourceName string         `json:"source_name"`
	TargetName string         `json:"target_name"`
}

// GraphData is the opaque blob persisted on a snapshot row.
type GraphData struct {
	Entities      []ExportEntity       `json:"entities"`
	Relationships []ExportRelationship `json:"relationships"`
}

// Snapshot is one point-in-time export of a project's graph.
type Snapshot struct {
	ID                 string    `json:"id"`
	ProjectID           string    `json:"project_id"`
	Label               string    `json:"label,omitempty"`
	Trigger             Trigger   `json:"trigger"`
	GraphData           GraphData `json:"graph_data,omitempty"`
	EntityCount         int       `json:"entity_count"`
	RelationshipCount   int       `json:"relationship_count"`
	CreatedAt           time.Time `json:"created_at"`
}

// Summary is the list-view shape: everything but the graph_data blob.
type Summary struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	Label             string    `json:"label,omitempty"`
	Trigger           Trigger   `json:"trigger"`
	EntityCount       int       `json:"entity_count"`
	RelationshipCount int       `json:"relationship_count"`
	CreatedAt         time.Time `json:"created_at"`
}

// RestoreResult is the response of a restore operation.
type RestoreResult struct {
	SnapshotID            string `json:"snapshot_id"`
	EntitiesRestored      int    `json:"entities_restored"`
	RelationshipsRestored int    `json:"relationships_restored"`
	PreRestoreSnapshotID  string `json:"pre_restore_snapshot_id"`
}
