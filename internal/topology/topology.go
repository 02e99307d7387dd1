// Package topology caches the graph's schemas, labels and properties and
// evolves the physical schema on demand.
//
// The committed view is shared by every transaction and guarded by an
// RWMutex. Structural changes go through a single writer lock per Topology,
// taken on a transaction's first change and released when it ends; the
// changes stay in that transaction's Overlay until commit promotes them.
// Committed changes are appended to the topology log so other instances on
// the same database can merge them.
package topology

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/txn"
)

// Options configures a Topology.
type Options struct {
	// Dialect renders all SQL. Defaults to SQLite.
	Dialect dialect.Dialect

	// Logger receives DDL at debug level and merges at info level.
	Logger *slog.Logger

	// IDGenerator supplies the instance id. Defaults to UUIDv7Generator.
	IDGenerator IDGenerator
}

// Topology is the process-wide topology cache of one database.
type Topology struct {
	db         *sql.DB
	dialect    dialect.Dialect
	logger     *slog.Logger
	instanceID string

	// writeMu serializes structural changes. It is held by the transaction
	// owning the current Overlay.
	writeMu sync.Mutex

	mu        sync.RWMutex
	committed *catalog
	lastLogID int64
}

// New creates a Topology with an empty committed view. Call Load to read the
// persisted topology.
func New(db *sql.DB, opts Options) *Topology {
	if opts.Dialect == nil {
		opts.Dialect = dialect.SQLite{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = UUIDv7Generator{}
	}
	t := &Topology{
		db:         db,
		dialect:    opts.Dialect,
		logger:     opts.Logger,
		instanceID: opts.IDGenerator.Generate(),
		committed:  newCatalog(),
	}
	t.committed.addSchema(t.dialect.DefaultSchema())
	return t
}

// Load replaces the committed view with the persisted topology.
func (t *Topology) Load(ctx context.Context) error {
	// Read the log position first: anything committed after it is merged
	// again later, which is harmless.
	pos, err := maxLogID(ctx, t.db, t.dialect)
	if err != nil {
		return model.WrapStoreError("load topology", err)
	}
	c, err := loadCatalog(ctx, t.db, t.dialect)
	if err != nil {
		return model.WrapStoreError("load topology", err)
	}
	c.addSchema(t.dialect.DefaultSchema())

	t.mu.Lock()
	t.committed = c
	if pos > t.lastLogID {
		t.lastLogID = pos
	}
	t.mu.Unlock()

	t.logger.Info("topology loaded",
		"instance", t.instanceID,
		"vertex_labels", len(c.labels[KindVertex]),
		"edge_labels", len(c.labels[KindEdge]),
		"log_position", pos)
	return nil
}

// InstanceID identifies this Topology in the topology log.
func (t *Topology) InstanceID() string {
	return t.instanceID
}

// Dialect returns the SQL dialect.
func (t *Topology) Dialect() dialect.Dialect {
	return t.dialect
}

// DefaultSchema returns the dialect's default schema name.
func (t *Topology) DefaultSchema() string {
	return t.dialect.DefaultSchema()
}

// LogPosition returns the id of the last topology log row merged or written.
func (t *Topology) LogPosition() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastLogID
}

// overlay returns the Overlay bound to tx, or nil.
func (t *Topology) overlay(tx *txn.Tx) *Overlay {
	if tx == nil {
		return nil
	}
	o, _ := tx.Resource(resourceKey).(*Overlay)
	if o == nil || o.topo != t {
		return nil
	}
	return o
}

// read calls fn with the layers visible to tx under the read lock. A nil tx
// sees only the committed view.
func (t *Topology) read(tx *txn.Tx, fn func(l layers)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l := layers{t.committed}
	if o := t.overlay(tx); o != nil {
		l = append(l, o.added)
	}
	fn(l)
}

// HasSchema reports whether the schema exists for tx.
func (t *Topology) HasSchema(tx *txn.Tx, schema string) bool {
	var ok bool
	t.read(tx, func(l layers) { ok = l.hasSchema(schema) })
	return ok
}

// HasLabel reports whether the label exists for tx.
func (t *Topology) HasLabel(tx *txn.Tx, kind Kind, st model.SchemaTable) bool {
	var ok bool
	t.read(tx, func(l layers) { ok = l.hasLabel(kind, st) })
	return ok
}

// Properties returns a copy of the label's properties as seen by tx.
func (t *Topology) Properties(tx *txn.Tx, kind Kind, st model.SchemaTable) (map[string]model.PropertyType, bool) {
	var props map[string]model.PropertyType
	var ok bool
	t.read(tx, func(l layers) { props, ok = l.properties(kind, st) })
	return props, ok
}

// Endpoints returns the sorted foreign-key endpoints of an edge label.
func (t *Topology) Endpoints(tx *txn.Tx, edge model.SchemaTable) []Endpoint {
	var eps []Endpoint
	t.read(tx, func(l layers) { eps = l.endpoints(edge) })
	return eps
}

// EdgeLabelsFor returns the edge labels that have a foreign-key column for
// vertex on the given side, sorted.
func (t *Topology) EdgeLabelsFor(tx *txn.Tx, vertex model.SchemaTable, side model.Side) []model.SchemaTable {
	var out []model.SchemaTable
	t.read(tx, func(l layers) { out = l.edgeLabelsFor(vertex, side) })
	return out
}

// VertexLabels returns the committed vertex labels, sorted.
func (t *Topology) VertexLabels() []model.SchemaTable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedLabels(t.committed.labels[KindVertex])
}

// Snapshot describes the committed topology.
func (t *Topology) Snapshot() Description {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return describe(t.committed)
}

// Refresh merges topology log rows committed by other instances, reading
// through tx.
func (t *Topology) Refresh(ctx context.Context, tx *txn.Tx) (int, error) {
	if err := tx.ReadWrite(ctx); err != nil {
		return 0, err
	}
	return t.catchUp(ctx, tx.Conn())
}

// catchUp merges topology log rows written by other instances since the last
// position. It returns the number of rows merged. Only rows past the highest
// ID seen are read, so log rows must become visible in ID order.
func (t *Topology) catchUp(ctx context.Context, q txn.Executor) (int, error) {
	after := t.LogPosition()
	entries, err := readLog(ctx, q, t.dialect, after)
	if err != nil {
		return 0, model.WrapStoreError("read topology log", err)
	}

	merged := 0
	for _, e := range entries {
		if e.instanceID == t.instanceID {
			t.advance(e.id, nil)
			continue
		}
		c, err := decodeEntry(e)
		if err != nil {
			t.logger.Error("skip topology log entry", "id", e.id, "instance", e.instanceID, "error", err)
			t.advance(e.id, nil)
			continue
		}
		t.advance(e.id, c)
		merged++
		t.logger.Info("topology merged", "id", e.id, "from", e.instanceID)
	}
	return merged, nil
}

func decodeEntry(e logEntry) (*catalog, error) {
	desc, err := ParseDescription(e.payload)
	if err != nil {
		return nil, err
	}
	return desc.catalog()
}

// advance merges c, if any, and moves the log position to id.
func (t *Topology) advance(id int64, c *catalog) {
	t.mu.Lock()
	var conflicts []error
	if c != nil {
		conflicts = t.committed.merge(c)
	}
	if id > t.lastLogID {
		t.lastLogID = id
	}
	t.mu.Unlock()

	for _, err := range conflicts {
		t.logger.Warn("topology merge conflict", "id", id, "error", err)
	}
}
