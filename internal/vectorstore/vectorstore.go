// Package vectorstore wraps Qdrant as the per-project chunk vector index:
// one collection per project (project_<slug>_chunks), cosine distance, with
// the original caller-supplied point id preserved in the payload whenever it
// isn't itself a valid UUID.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"kgraph/internal/apierr"
	"kgraph/internal/logging"
)

// payloadIDField stores the caller's original id when it had to be
// translated into a deterministic UUID for Qdrant's point-id constraint.
const payloadIDField = "_original_id"

// Store is a thin, per-project-collection wrapper over a single Qdrant
// client connection, shared across every project this process serves.
type Store struct {
	client    *qdrant.Client
	dimension int
}

// Point is one chunk's embedding plus the payload fields carried alongside it.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchHit is one scored result from Search.
type SearchHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// CollectionInfo summarizes a collection for diagnostics.
type CollectionInfo struct {
	Name         string
	Exists       bool
	VectorsCount uint64
	PointsCount  uint64
	Status       string
}

// Open parses a Qdrant gRPC DSN (default port 6334, optional ?api_key=...)
// and builds a Store. dimension is the embedding width every collection this
// Store creates will use.
func Open(dsn string, dimension int) (*Store, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, apierr.Internal("parse qdrant dsn", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, apierr.Internal("invalid qdrant port", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, apierr.UpstreamHard("create qdrant client", err)
	}
	return &Store{client: client, dimension: dimension}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// CollectionName derives the per-project collection name from a project
// slug, per the project_<slug>_chunks naming rule.
func CollectionName(projectSlug string) string {
	return fmt.Sprintf("project_%s_chunks", projectSlug)
}

// CreateCollection is idempotent: a collection that already exists is left
// as is and reported as success.
func (s *Store) CreateCollection(ctx context.Context, projectSlug string) error {
	name := CollectionName(projectSlug)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return apierr.UpstreamHard("check collection exists", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return apierr.UpstreamHard("create collection", err)
	}
	logging.Log.WithField("collection", name).Info("vector collection created")
	return nil
}

// DeleteCollection is best-effort: failures are logged and returned as a
// false ok rather than propagated, matching the teacher's swallow-and-report
// pattern for destructive cleanup paths.
func (s *Store) DeleteCollection(ctx context.Context, projectSlug string) bool {
	name := CollectionName(projectSlug)
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		logging.Log.WithError(err).WithField("collection", name).Error("failed to delete collection")
		return false
	}
	return true
}

// UpsertChunks writes one point per chunk. Each point's id is promoted to a
// deterministic UUID when it isn't one already, with the original id
// preserved under payloadIDField so callers never see the substitution.
func (s *Store) UpsertChunks(ctx context.Context, projectSlug string, points []Point) (int, error) {
	name := CollectionName(projectSlug)
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		pointID, payload := preparePoint(p)
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      pointID,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: payload,
		})
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: name, Points: qpoints}); err != nil {
		return 0, apierr.UpstreamHard("upsert chunks", err)
	}
	logging.Log.WithField("collection", name).WithField("count", len(qpoints)).Info("chunks upserted")
	return len(qpoints), nil
}

func preparePoint(p Point) (*qdrant.PointId, map[string]*qdrant.Value) {
	uuidStr := p.ID
	if _, err := uuid.Parse(p.ID); err != nil {
		uuidStr = uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.ID)).String()
	}
	payload := make(map[string]any, len(p.Payload)+1)
	for k, v := range p.Payload {
		payload[k] = v
	}
	if uuidStr != p.ID {
		payload[payloadIDField] = p.ID
	}
	return qdrant.NewIDUUID(uuidStr), qdrant.NewValueMap(payload)
}

// Search runs a cosine-similarity query, optionally filtered to the given
// content types (OR-matched), and returns up to limit hits ordered by score.
func (s *Store) Search(ctx context.Context, projectSlug string, vector []float32, limit int, contentTypes []string) ([]SearchHit, error) {
	name := CollectionName(projectSlug)
	if limit <= 0 {
		limit = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var filter *qdrant.Filter
	if len(contentTypes) > 0 {
		should := make([]*qdrant.Condition, 0, len(contentTypes))
		for _, ct := range contentTypes {
			should = append(should, qdrant.NewMatch("content_type", ct))
		}
		filter = &qdrant.Filter{Should: should}
	}

	lim := uint64(limit)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &lim,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apierr.UpstreamHard("vector search", err)
	}

	out := make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		id, payload := decodeHit(hit)
		out = append(out, SearchHit{ID: id, Score: float64(hit.Score), Payload: payload})
	}
	return out, nil
}

func decodeHit(hit *qdrant.ScoredPoint) (string, map[string]any) {
	uuidStr := hit.Id.GetUuid()
	if uuidStr == "" {
		uuidStr = hit.Id.String()
	}
	payload := map[string]any{}
	var originalID string
	for k, v := range hit.Payload {
		if k == payloadIDField {
			originalID = v.GetStringValue()
			continue
		}
		payload[k] = decodeValue(v)
	}
	id := originalID
	if id == "" {
		id = uuidStr
	}
	return id, payload
}

func decodeValue(v *qdrant.Value) any {
	switch k := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.Fields))
		for fk, fv := range k.StructValue.Fields {
			out[fk] = decodeValue(fv)
		}
		return out
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.Values))
		for _, lv := range k.ListValue.Values {
			out = append(out, decodeValue(lv))
		}
		return out
	default:
		return nil
	}
}

// DeleteByDocument scrolls through every point tagged with documentID and
// deletes them in one batch, a fresh nil-offset scroll each call (no
// continuation across calls, per the service's resolved behaviour).
func (s *Store) DeleteByDocument(ctx context.Context, projectSlug, documentID string) (int, error) {
	name := CollectionName(projectSlug)
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
	}

	var ids []*qdrant.PointId
	var offset *qdrant.PointId
	limit := uint32(100)
	for {
		points, next, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Filter:         filter,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return 0, apierr.UpstreamHard("scroll chunks for delete", err)
		}
		for _, p := range points {
			ids = append(ids, p.Id)
		}
		if next == nil {
			break
		}
		offset = next
	}

	if len(ids) > 0 {
		if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Points:         pointsSelector(ids),
		}); err != nil {
			return 0, apierr.UpstreamHard("delete chunks by document", err)
		}
	}
	logging.Log.WithField("document_id", documentID).WithField("count", len(ids)).Info("chunks deleted")
	return len(ids), nil
}

// DeletePoints removes specific points by their original (caller-facing) id.
func (s *Store) DeletePoints(ctx context.Context, projectSlug string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	name := CollectionName(projectSlug)
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		uuidStr := id
		if _, err := uuid.Parse(id); err != nil {
			uuidStr = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
		}
		pointIDs = append(pointIDs, qdrant.NewIDUUID(uuidStr))
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         pointsSelector(pointIDs),
	}); err != nil {
		return 0, apierr.UpstreamHard("delete points", err)
	}
	return len(ids), nil
}

// pointsSelector builds a selector matching an explicit list of point ids,
// the lower-level construction the client's NewPointsSelector convenience
// wrapper builds for a single id.
func pointsSelector(ids []*qdrant.PointId) *qdrant.PointsSelector {
	return &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Points{
			Points: &qdrant.PointsIdsList{Ids: ids},
		},
	}
}

// GetCollectionInfo reports point/vector counts; an error from Qdrant (most
// often collection-not-found) degrades to Exists=false rather than an error,
// matching the service's diagnostic-only use of this call.
func (s *Store) GetCollectionInfo(ctx context.Context, projectSlug string) CollectionInfo {
	name := CollectionName(projectSlug)
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return CollectionInfo{Name: name, Exists: false}
	}
	result := CollectionInfo{Name: name, Exists: true, Status: info.GetStatus().String()}
	if info.PointsCount != nil {
		result.PointsCount = *info.PointsCount
	}
	if info.VectorsCount != nil {
		result.VectorsCount = *info.VectorsCount
	}
	return result
}

func (s *Store) Dimension() int { return s.dimension }
