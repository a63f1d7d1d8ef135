package projects

import (
	"context"

	"kgraph/internal/apierr"
	"kgraph/internal/logging"
)

// GraphStore is the graph-lifecycle subset of internal/graph.Service a
// project's namespace manager depends on.
type GraphStore interface {
	CreateGraph(ctx context.Context, graphName string) error
	DropGraph(ctx context.Context, graphName string)
}

// VectorStore is the collection-lifecycle subset of internal/vectorstore.Store.
type VectorStore interface {
	CreateCollection(ctx context.Context, projectSlug string) error
	DeleteCollection(ctx context.Context, projectSlug string) bool
}

// DocumentCascader removes every document (and, transitively, chunk row and
// vector point) belonging to a project, as part of project deletion.
type DocumentCascader interface {
	DeleteAllForProject(ctx context.Context, projectID, projectSlug string) error
}

// EventPublisher emits a best-effort domain event. Implementations must
// never block the caller or surface an error to it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, any) {}

// Service is the project namespace manager: it owns the invariant tying a
// project's metadata row, its named graph, and its vector collection
// together as one logical tenant.
type Service struct {
	rows      *RowStore
	graph     GraphStore
	vectors   VectorStore
	documents DocumentCascader
	events    EventPublisher
}

// New builds a Service. documents and events may be nil; a nil documents
// cascader skips document cleanup (used in tests focused on namespace
// invariants alone), and a nil events publisher is replaced with a no-op.
func New(rows *RowStore, graph GraphStore, vectors VectorStore, documents DocumentCascader, events EventPublisher) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	return &Service{rows: rows, graph: graph, vectors: vectors, documents: documents, events: events}
}

// Create inserts the project row, then creates its graph and vector
// collection as a unit: a failure at any step rolls back everything created
// so far, since (unlike delete) there is no reason to leave a half-built
// tenant around.
func (s *Service) Create(ctx context.Context, name, description string, settings Settings) (Project, error) {
	slug := Slugify(name)
	if slug == "" {
		return Project{}, apierr.Validation("project name must contain at least one alphanumeric character")
	}
	if settings == nil {
		settings = Settings{}
	}
	p := Project{
		Slug:        slug,
		Name:        name,
		GraphName:   GraphName(slug),
		Description: description,
		Settings:    settings,
	}
	created, err := s.rows.Insert(ctx, p)
	if err != nil {
		return Project{}, err
	}

	if err := s.graph.CreateGraph(ctx, created.GraphName); err != nil {
		_ = s.rows.Delete(ctx, created.Slug)
		return Project{}, apierr.UpstreamHard("create project graph", err)
	}
	if err := s.vectors.CreateCollection(ctx, created.Slug); err != nil {
		s.graph.DropGraph(ctx, created.GraphName)
		_ = s.rows.Delete(ctx, created.Slug)
		return Project{}, apierr.UpstreamHard("create project vector collection", err)
	}

	s.events.Publish(ctx, "project.created", created.ID, created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, slug string) (Project, error) {
	return s.rows.GetBySlug(ctx, slug)
}

func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.rows.List(ctx)
}

// Delete removes a project: graph drop, then collection delete, then
// document/chunk cascade, then the row itself. Each of the first three steps
// is best-effort — a failure is logged, never rolled back, and never blocks
// the next step, matching the cross-store consistency model in spec §3/§9.
func (s *Service) Delete(ctx context.Context, slug string) error {
	p, err := s.rows.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}

	s.graph.DropGraph(ctx, p.GraphName)

	if !s.vectors.DeleteCollection(ctx, p.Slug) {
		logging.Log.WithField("project", p.Slug).Warn("vector collection delete reported failure during project delete")
	}

	if s.documents != nil {
		if err := s.documents.DeleteAllForProject(ctx, p.ID, p.Slug); err != nil {
			logging.Log.WithError(err).WithField("project", p.Slug).Warn("document cascade failed during project delete")
		}
	}

	if err := s.rows.Delete(ctx, slug); err != nil {
		return err
	}
	s.events.Publish(ctx, "project.deleted", p.ID, p)
	return nil
}
