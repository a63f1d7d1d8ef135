package documents

import (
	"context"

	"kgraph/internal/apierr"
	"kgraph/internal/logging"
)

// VectorDeleter is the subset of internal/vectorstore.Store the document
// service needs to keep vector points in lockstep with chunk rows.
type VectorDeleter interface {
	DeleteByDocument(ctx context.Context, projectSlug, documentID string) (int, error)
	DeleteCollection(ctx context.Context, projectSlug string) bool
}

// Service is the document CRUD surface plus the cascades that keep chunk
// rows and vector points consistent with a document's lifecycle.
type Service struct {
	rows    *RowStore
	vectors VectorDeleter
}

func New(rows *RowStore, vectors VectorDeleter) *Service {
	return &Service{rows: rows, vectors: vectors}
}

func (s *Service) Create(ctx context.Context, d Document) (Document, error) {
	if !ValidContentType(string(d.ContentType)) {
		return Document{}, apierr.Validation("invalid content_type: " + string(d.ContentType))
	}
	return s.rows.Insert(ctx, d)
}

func (s *Service) Get(ctx context.Context, projectID, id string) (Document, error) {
	return s.rows.Get(ctx, projectID, id)
}

func (s *Service) List(ctx context.Context, projectID string) ([]Document, error) {
	return s.rows.List(ctx, projectID)
}

// Delete removes a document along with its chunk rows and vector points.
// Vector-point deletion is best-effort: a failure is logged but does not
// block chunk/document row removal, since the vector side is eventually
// consistent with the relational side by design.
func (s *Service) Delete(ctx context.Context, projectID, projectSlug, id string) error {
	if _, err := s.rows.Get(ctx, projectID, id); err != nil {
		return err
	}
	if _, err := s.vectors.DeleteByDocument(ctx, projectSlug, id); err != nil {
		logging.Log.WithError(err).WithField("document_id", id).Warn("vector point delete failed during document delete")
	}
	if err := s.rows.DeleteChunks(ctx, id); err != nil {
		return err
	}
	return s.rows.Delete(ctx, projectID, id)
}

// DeleteAllForProject implements projects.DocumentCascader: it removes every
// document belonging to a project, clearing each one's vector points first.
func (s *Service) DeleteAllForProject(ctx context.Context, projectID, projectSlug string) error {
	docs, err := s.rows.List(ctx, projectID)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if _, err := s.vectors.DeleteByDocument(ctx, projectSlug, d.ID); err != nil {
			logging.Log.WithError(err).WithField("document_id", d.ID).Warn("vector point delete failed during project cascade")
		}
	}
	return s.rows.DeleteAllForProject(ctx, projectID)
}
