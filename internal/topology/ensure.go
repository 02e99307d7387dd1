package topology

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/txn"
)

const resourceKey = "topology"

// Overlay holds the uncommitted topology of one transaction. While an Overlay
// is bound, its transaction owns the Topology's writer lock.
type Overlay struct {
	topo  *Topology
	added *catalog
	logID int64
}

var _ txn.Resource = (*Overlay)(nil)

// BeforeCommit appends the transaction's additions to the topology log.
func (o *Overlay) BeforeCommit(ctx context.Context, tx *txn.Tx) error {
	if o.added.empty() {
		return nil
	}
	payload, err := describe(o.added).MarshalCanonical()
	if err != nil {
		return fmt.Errorf("encode topology change: %w", err)
	}
	id, err := appendLog(ctx, tx.Conn(), o.topo.dialect, o.topo.instanceID, payload)
	if err != nil {
		return err
	}
	o.logID = id
	return nil
}

// AfterCommit promotes the additions into the committed view and releases
// the writer lock.
func (o *Overlay) AfterCommit() {
	t := o.topo
	if !o.added.empty() {
		t.advance(o.logID, o.added)
		t.logger.Info("topology committed", "id", o.logID, "instance", t.instanceID)
	}
	t.writeMu.Unlock()
}

// AfterRollback discards the additions and releases the writer lock.
func (o *Overlay) AfterRollback() {
	if !o.added.empty() {
		o.topo.logger.Debug("topology changes discarded", "instance", o.topo.instanceID)
	}
	o.topo.writeMu.Unlock()
}

// lock returns the Overlay of tx, taking the writer lock and creating one on
// the transaction's first structural change. The committed view is brought
// up to date with the topology log before any DDL runs.
func (t *Topology) lock(ctx context.Context, tx *txn.Tx) (*Overlay, error) {
	if o := t.overlay(tx); o != nil {
		return o, nil
	}
	if err := tx.ReadWrite(ctx); err != nil {
		return nil, err
	}

	t.writeMu.Lock()
	o := &Overlay{topo: t, added: newCatalog()}
	tx.Bind(resourceKey, o)

	// The lock is released by the transaction's end even if this fails.
	if _, err := t.catchUp(ctx, tx.Conn()); err != nil {
		return nil, err
	}
	return o, nil
}

// EnsureSchemaExists creates the schema if it does not exist.
func (t *Topology) EnsureSchemaExists(ctx context.Context, tx *txn.Tx, schema string) error {
	if err := model.ValidateName("schema", schema); err != nil {
		return err
	}
	if t.HasSchema(tx, schema) {
		return nil
	}
	o, err := t.lock(ctx, tx)
	if err != nil {
		return err
	}
	return o.ensureSchema(ctx, tx, schema)
}

// EnsureVertexLabelExists creates the vertex label and any missing properties.
// Existing properties with a different type are a ValidationError.
func (t *Topology) EnsureVertexLabelExists(ctx context.Context, tx *txn.Tx, st model.SchemaTable, props map[string]model.PropertyType) error {
	if err := validateLabel("vertex label", st, props); err != nil {
		return err
	}

	var exists bool
	var missing map[string]model.PropertyType
	var err error
	t.read(tx, func(l layers) {
		exists = l.hasLabel(KindVertex, st)
		missing, err = l.missingProperties(KindVertex, st, props)
	})
	if err != nil {
		return err
	}
	if exists && len(missing) == 0 {
		return nil
	}

	o, err := t.lock(ctx, tx)
	if err != nil {
		return err
	}
	return o.ensureVertexLabel(ctx, tx, st, props)
}

// EnsureEdgeLabelExists creates the edge label with foreign-key columns for
// the out and in vertex labels, adding whichever of the label, endpoints and
// properties are missing. The vertex labels are created if needed.
func (t *Topology) EnsureEdgeLabelExists(ctx context.Context, tx *txn.Tx, edge, out, in model.SchemaTable, props map[string]model.PropertyType) error {
	if err := validateLabel("edge label", edge, props); err != nil {
		return err
	}
	for _, v := range []model.SchemaTable{out, in} {
		if err := validateLabel("vertex label", v, nil); err != nil {
			return err
		}
	}
	endpoints := []Endpoint{{Vertex: out, Side: model.SideOut}, {Vertex: in, Side: model.SideIn}}

	complete := true
	var err error
	t.read(tx, func(l layers) {
		var missing map[string]model.PropertyType
		missing, err = l.missingProperties(KindEdge, edge, props)
		complete = l.hasLabel(KindEdge, edge) && len(missing) == 0 &&
			l.hasLabel(KindVertex, out) && l.hasLabel(KindVertex, in)
		for _, ep := range endpoints {
			complete = complete && l.hasEndpoint(edge, ep)
		}
	})
	if err != nil {
		return err
	}
	if complete {
		return nil
	}

	o, err := t.lock(ctx, tx)
	if err != nil {
		return err
	}
	return o.ensureEdgeLabel(ctx, tx, edge, endpoints, props)
}

// EnsurePropertiesExist adds missing properties to an existing label. A
// missing vertex label is created; a missing edge label is NotFound, since
// its endpoints are unknown.
func (t *Topology) EnsurePropertiesExist(ctx context.Context, tx *txn.Tx, kind Kind, st model.SchemaTable, props map[string]model.PropertyType) error {
	if kind == KindVertex {
		return t.EnsureVertexLabelExists(ctx, tx, st, props)
	}
	if err := validateLabel("edge label", st, props); err != nil {
		return err
	}

	var exists bool
	var missing map[string]model.PropertyType
	var err error
	t.read(tx, func(l layers) {
		exists = l.hasLabel(KindEdge, st)
		missing, err = l.missingProperties(KindEdge, st, props)
	})
	if err != nil {
		return err
	}
	if !exists {
		return model.NewNotFoundError("ensure properties", fmt.Sprintf("edge label %s does not exist", st))
	}
	if len(missing) == 0 {
		return nil
	}

	o, err := t.lock(ctx, tx)
	if err != nil {
		return err
	}
	if err := o.checkIdentifiers(tx, KindEdge, st, props); err != nil {
		return err
	}
	// Re-read: the catch-up may have added some of them.
	t.read(tx, func(l layers) { missing, err = l.missingProperties(KindEdge, st, props) })
	if err != nil {
		return err
	}
	return o.addProperties(ctx, tx, KindEdge, st, missing)
}

// checkIdentifiers runs before any registry row or DDL is written for st.
func (o *Overlay) checkIdentifiers(tx *txn.Tx, kind Kind, st model.SchemaTable, props map[string]model.PropertyType) error {
	var err error
	o.topo.read(tx, func(l layers) { err = l.checkIdentifiers(o.topo.dialect, kind, st, props) })
	return err
}

func validateLabel(kind string, st model.SchemaTable, props map[string]model.PropertyType) error {
	if err := model.ValidateName("schema", st.Schema); err != nil {
		return err
	}
	if err := model.ValidateName(kind, st.Table); err != nil {
		return err
	}
	for name, pt := range props {
		if err := model.ValidatePropertyKey(name); err != nil {
			return err
		}
		if pt == model.TypeUnknown {
			return model.NewValidationError("property", fmt.Sprintf("property %q has no type", name))
		}
	}
	return nil
}

func (o *Overlay) ensureSchema(ctx context.Context, tx *txn.Tx, schema string) error {
	t := o.topo
	if t.HasSchema(tx, schema) {
		return nil
	}
	if stmt := createSchemaStatement(t.dialect, schema); stmt != "" {
		if err := o.exec(ctx, tx, stmt); err != nil {
			return err
		}
	}
	if err := insertSchema(ctx, tx.Conn(), t.dialect, schema); err != nil {
		return model.WrapStoreError("ensure schema", err)
	}
	o.added.addSchema(schema)
	return nil
}

func (o *Overlay) ensureVertexLabel(ctx context.Context, tx *txn.Tx, st model.SchemaTable, props map[string]model.PropertyType) error {
	if err := o.checkIdentifiers(tx, KindVertex, st, props); err != nil {
		return err
	}
	if err := o.ensureSchema(ctx, tx, st.Schema); err != nil {
		return err
	}

	var exists bool
	var missing map[string]model.PropertyType
	var err error
	o.topo.read(tx, func(l layers) {
		exists = l.hasLabel(KindVertex, st)
		missing, err = l.missingProperties(KindVertex, st, props)
	})
	if err != nil {
		return err
	}
	if !exists {
		return o.createLabel(ctx, tx, KindVertex, st, nil, props)
	}
	return o.addProperties(ctx, tx, KindVertex, st, missing)
}

func (o *Overlay) ensureEdgeLabel(ctx context.Context, tx *txn.Tx, edge model.SchemaTable, endpoints []Endpoint, props map[string]model.PropertyType) error {
	if err := o.checkIdentifiers(tx, KindEdge, edge, props); err != nil {
		return err
	}
	for _, ep := range endpoints {
		if err := o.checkIdentifiers(tx, KindVertex, ep.Vertex, nil); err != nil {
			return err
		}
	}
	for _, ep := range endpoints {
		if err := o.ensureVertexLabel(ctx, tx, ep.Vertex, nil); err != nil {
			return err
		}
	}
	if err := o.ensureSchema(ctx, tx, edge.Schema); err != nil {
		return err
	}

	var exists bool
	var missing map[string]model.PropertyType
	var missingEndpoints []Endpoint
	var err error
	o.topo.read(tx, func(l layers) {
		exists = l.hasLabel(KindEdge, edge)
		missing, err = l.missingProperties(KindEdge, edge, props)
		for _, ep := range endpoints {
			if !l.hasEndpoint(edge, ep) {
				missingEndpoints = append(missingEndpoints, ep)
			}
		}
	})
	if err != nil {
		return err
	}

	if !exists {
		eps := slices.Clone(endpoints)
		slices.SortFunc(eps, compareEndpoints)
		eps = slices.Compact(eps)
		return o.createLabel(ctx, tx, KindEdge, edge, eps, props)
	}
	for _, ep := range missingEndpoints {
		if err := o.addEndpoint(ctx, tx, edge, ep); err != nil {
			return err
		}
	}
	return o.addProperties(ctx, tx, KindEdge, edge, missing)
}

func (o *Overlay) createLabel(ctx context.Context, tx *txn.Tx, kind Kind, st model.SchemaTable, endpoints []Endpoint, props map[string]model.PropertyType) error {
	t := o.topo
	if err := o.exec(ctx, tx, createLabelStatements(t.dialect, kind, st, endpoints, props)...); err != nil {
		return err
	}
	if err := insertLabel(ctx, tx.Conn(), t.dialect, kind, st); err != nil {
		return model.WrapStoreError("ensure label", err)
	}
	o.added.addLabel(kind, st)

	for _, ep := range endpoints {
		if err := insertEndpoint(ctx, tx.Conn(), t.dialect, st, ep); err != nil {
			return model.WrapStoreError("ensure label", err)
		}
		o.added.addEndpoint(st, ep)
	}
	for _, name := range slices.Sorted(maps.Keys(props)) {
		if err := insertProperty(ctx, tx.Conn(), t.dialect, kind, st, name, props[name]); err != nil {
			return model.WrapStoreError("ensure label", err)
		}
		if err := o.added.addProperty(kind, st, name, props[name]); err != nil {
			return model.NewValidationError("ensure label", err.Error())
		}
	}
	return nil
}

func (o *Overlay) addProperties(ctx context.Context, tx *txn.Tx, kind Kind, st model.SchemaTable, props map[string]model.PropertyType) error {
	t := o.topo
	for _, name := range slices.Sorted(maps.Keys(props)) {
		pt := props[name]
		if err := o.exec(ctx, tx, addPropertyStatements(t.dialect, kind, st, name, pt)...); err != nil {
			return err
		}
		if err := insertProperty(ctx, tx.Conn(), t.dialect, kind, st, name, pt); err != nil {
			return model.WrapStoreError("ensure property", err)
		}
		if err := o.added.addProperty(kind, st, name, pt); err != nil {
			return model.NewValidationError("ensure property", err.Error())
		}
	}
	return nil
}

func (o *Overlay) addEndpoint(ctx context.Context, tx *txn.Tx, edge model.SchemaTable, ep Endpoint) error {
	t := o.topo
	if err := o.exec(ctx, tx, addEndpointStatements(t.dialect, edge, ep)...); err != nil {
		return err
	}
	if err := insertEndpoint(ctx, tx.Conn(), t.dialect, edge, ep); err != nil {
		return model.WrapStoreError("ensure edge endpoint", err)
	}
	o.added.addEndpoint(edge, ep)
	return nil
}

func (o *Overlay) exec(ctx context.Context, tx *txn.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		o.topo.logger.Debug("topology ddl", "sql", stmt)
		if _, err := tx.Conn().ExecContext(ctx, stmt); err != nil {
			return model.WrapStoreError("topology ddl", fmt.Errorf("%s: %w", stmt, err))
		}
	}
	return nil
}
