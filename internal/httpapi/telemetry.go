package httpapi

import "kgraph/internal/telemetry"

func telemetryIngestionEvent(project string, durationMS int64, chunkCount int) telemetry.Event {
	return telemetry.Event{Kind: "ingestion", Project: project, DurationMS: durationMS, ResultOrEntityCount: chunkCount}
}

func telemetrySearchEvent(project string, durationMS int64, resultCount int, mode string) telemetry.Event {
	return telemetry.Event{Kind: "search", Project: project, DurationMS: durationMS, ResultOrEntityCount: resultCount, Mode: mode}
}
