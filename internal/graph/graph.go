// Package graph is the call surface of the property graph: open a database,
// begin transactions, add and traverse vertices and edges.
//
// Each Tx method starts the underlying transaction on first use. Labels and
// property columns are created on demand and become visible to other
// transactions when the creating transaction commits.
package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/store"
	"github.com/roach88/sqlgraph/internal/topology"
	"github.com/roach88/sqlgraph/internal/txn"
)

// Re-exported element types.
type (
	Vertex    = store.Vertex
	VertexRef = store.VertexRef
	Edge      = store.Edge
)

// Options configures Open.
type Options struct {
	// Path is the SQLite database file.
	Path string

	MaxOpenConns int
	BusyTimeout  time.Duration

	// PollInterval is the Listener's topology log poll interval.
	PollInterval time.Duration

	Logger      *slog.Logger
	IDGenerator topology.IDGenerator
}

// Graph is an open graph database.
type Graph struct {
	store        *store.Store
	txm          *txn.Manager
	logger       *slog.Logger
	pollInterval time.Duration
}

// Open opens or creates the graph at opts.Path.
func Open(ctx context.Context, opts Options) (*Graph, error) {
	if opts.Path == "" {
		return nil, model.NewValidationError("open graph", "database path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s, err := store.Open(ctx, opts.Path, store.Options{
		MaxOpenConns: opts.MaxOpenConns,
		BusyTimeout:  opts.BusyTimeout,
		Logger:       opts.Logger,
		IDGenerator:  opts.IDGenerator,
	})
	if err != nil {
		return nil, model.WrapStoreError("open graph", err)
	}
	opts.Logger.Debug("graph opened", "path", opts.Path, "instance", s.Topology().InstanceID())
	return &Graph{
		store:        s,
		txm:          txn.NewManager(s.DB(), opts.Logger),
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
	}, nil
}

// Close closes the database.
func (g *Graph) Close() error {
	return g.store.Close()
}

// Topology returns the topology cache.
func (g *Graph) Topology() *topology.Topology {
	return g.store.Topology()
}

// Listener returns a listener that merges topology changes committed by
// other processes on the same database.
func (g *Graph) Listener() *topology.Listener {
	return g.store.Topology().Listener(g.pollInterval)
}

// Begin returns a new transaction. It is not started until first use.
func (g *Graph) Begin() *Tx {
	return &Tx{g: g, tx: g.txm.Begin()}
}

// Update runs fn in a transaction and commits it, or rolls back when fn
// returns an error.
func (g *Graph) Update(ctx context.Context, fn func(tx *Tx) error) error {
	tx := g.Begin()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			g.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// Tx is one caller's graph transaction. It is not safe for concurrent use.
type Tx struct {
	g  *Graph
	tx *txn.Tx
}

// Raw returns the underlying transaction handle.
func (t *Tx) Raw() *txn.Tx {
	return t.tx
}

// AddVertex adds a vertex. label is "label" or "schema.label".
func (t *Tx) AddVertex(ctx context.Context, label string, props map[string]any) (*Vertex, error) {
	return t.g.store.InsertVertex(ctx, t.tx, label, props)
}

// AddEdge adds an edge from out to in.
func (t *Tx) AddEdge(ctx context.Context, label string, out, in VertexRef, props map[string]any) (*Edge, error) {
	return t.g.store.InsertEdge(ctx, t.tx, label, out, in, props)
}

// Vertex loads a vertex by id.
func (t *Tx) Vertex(ctx context.Context, id int64) (*Vertex, error) {
	return t.g.store.LoadVertex(ctx, t.tx, id)
}

// Edge loads an edge by id.
func (t *Tx) Edge(ctx context.Context, id int64) (*Edge, error) {
	return t.g.store.LoadEdge(ctx, t.tx, id)
}

// Edges returns v's incident edges in dir, restricted to labels if any.
func (t *Tx) Edges(ctx context.Context, v VertexRef, dir model.Direction, labels ...string) ([]*Edge, error) {
	return t.g.store.Edges(ctx, t.tx, v, dir, labels...)
}

// Vertices returns the vertices adjacent to v in dir.
func (t *Tx) Vertices(ctx context.Context, v VertexRef, dir model.Direction, labels ...string) ([]*Vertex, error) {
	return t.g.store.Vertices(ctx, t.tx, v, dir, labels...)
}

// VerticesOfLabel returns all vertices of a label.
func (t *Tx) VerticesOfLabel(ctx context.Context, label string) ([]*Vertex, error) {
	return t.g.store.VerticesOfLabel(ctx, t.tx, label)
}

// LabelCounts returns the number of elements per label.
func (t *Tx) LabelCounts(ctx context.Context) ([]store.LabelCount, error) {
	return t.g.store.LabelCounts(ctx, t.tx)
}

// RemoveVertex removes a vertex and its incident edges.
func (t *Tx) RemoveVertex(ctx context.Context, id int64) error {
	return t.g.store.RemoveVertex(ctx, t.tx, id)
}

// RemoveEdge removes an edge.
func (t *Tx) RemoveEdge(ctx context.Context, id int64) error {
	return t.g.store.RemoveEdge(ctx, t.tx, id)
}

// SetProperty sets a property on the vertex or edge addressed by ref.
func (t *Tx) SetProperty(ctx context.Context, ref ElementRef, key string, value any) error {
	if ref.Edge {
		return t.g.store.SetEdgeProperty(ctx, t.tx, ref.ID, key, value)
	}
	return t.g.store.SetVertexProperty(ctx, t.tx, ref.ID, key, value)
}

// ElementRef addresses a vertex or an edge by id.
type ElementRef struct {
	ID   int64
	Edge bool
}

// VertexID addresses a vertex.
func VertexID(id int64) ElementRef { return ElementRef{ID: id} }

// EdgeID addresses an edge.
func EdgeID(id int64) ElementRef { return ElementRef{ID: id, Edge: true} }

// EnsureVertexLabel creates a vertex label and its properties ahead of use.
func (t *Tx) EnsureVertexLabel(ctx context.Context, label string, props map[string]model.PropertyType) error {
	st := model.ParseLabel(label, t.g.store.Dialect().DefaultSchema())
	return t.g.store.Topology().EnsureVertexLabelExists(ctx, t.tx, st, props)
}

// Commit commits the transaction. The handle may be reused afterwards.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback rolls back the transaction. The handle may be reused afterwards.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
