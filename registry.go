package sqlstage

import (
	"context"
	"fmt"
)

// Templates holds the canonical SQL templates of one entity kind. Insert,
// Update and Delete resolve pending actions at dispatch; Select is the
// fetch helper. Template contents are opaque to this layer apart from their
// named placeholders. A template left empty rejects its action at dispatch.
type Templates struct {
	Insert string
	Update string
	Delete string
	Select string
}

// Registry binds one Conn to an entity kind and resolves records' pending
// actions into queued statements. Registries are created through
// (*Registries).Init or the package-level Init; there is exactly one live
// Registry per kind per container.
type Registry struct {
	kind string
	conn *Conn
	tpl  Templates
}

// Kind returns the entity kind this registry serves.
func (r *Registry) Kind() string { return r.kind }

// Conn returns the shared connection. The registry does not own it: one
// Conn is commonly shared by several registries.
func (r *Registry) Conn() *Conn { return r.conn }

// Templates returns the registry's SQL templates.
func (r *Registry) Templates() Templates { return r.tpl }

// Dispatch resolves the record's pending action into a queued statement on
// the registry's Conn. ActionIgnore is a no-op. For the other actions the
// matching template is compiled, the record's declared fields are filtered
// to the template's exact placeholder set, and the statement is enqueued
// with the resulting name→value map. No driver round trip happens here, so
// a dispatched record may target a table an earlier queued statement is
// about to create. Failures are logged and returned as a DispatchError.
func (r *Registry) Dispatch(ctx context.Context, rec Record) error {
	action := rec.Action()
	var query string
	switch action {
	case ActionIgnore:
		return nil
	case ActionInsert:
		query = r.tpl.Insert
	case ActionUpdate:
		query = r.tpl.Update
	case ActionDelete:
		query = r.tpl.Delete
	}
	if query == "" {
		err := newDispatchError(r.kind, action, fmt.Errorf("no %s template", action))
		r.conn.log.Error("sqlstage: dispatch failed", "kind", r.kind, "action", action.String(), "error", err)
		return err
	}
	stmt := r.conn.template(query)
	values := make(map[string]any)
	for _, f := range rec.Fields() {
		if stmt.Has(f.Name) {
			values[f.Name] = f.value()
		}
	}
	for _, name := range stmt.Names() {
		if _, ok := values[name]; !ok {
			err := newDispatchError(r.kind, action, fmt.Errorf("record declares no field for placeholder %q", ":"+name))
			r.conn.log.Error("sqlstage: dispatch failed", "kind", r.kind, "action", action.String(), "error", err)
			return err
		}
	}
	if err := r.conn.Enqueue(ctx, stmt, values); err != nil {
		return newDispatchError(r.kind, action, err)
	}
	return nil
}

// FetchAll executes a select template with the given bound params and
// materializes every result row as a fresh record built by newRec. Result
// columns are matched to the record's declared field names; unmapped
// columns are discarded. The result is eager: bounding the result set is
// the caller's responsibility. Driver failures surface as a QueryError with
// the query and params logged at error level.
func FetchAll[T Record](ctx context.Context, reg *Registry, query string, params map[string]any, newRec func() T) ([]T, error) {
	conn := reg.conn
	fail := func(err error) ([]T, error) {
		conn.log.Error("sqlstage: fetch failed",
			"kind", reg.kind, "query", query, "params", params, "error", err)
		return nil, newQueryError(query, err)
	}
	stmt, err := conn.Prepare(ctx, query)
	if err != nil {
		return fail(err)
	}
	args, err := stmt.BindValues(params)
	if err != nil {
		return fail(err)
	}
	rows, err := stmt.std.QueryContext(ctx, args...)
	if err != nil {
		return fail(err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return fail(err)
	}
	var out []T
	for rows.Next() {
		rec := newRec()
		byName := map[string]any{}
		for _, f := range rec.Fields() {
			byName[f.Name] = f.Value
		}
		dest := scanDest(cols, byName)
		if err := rows.Scan(dest...); err != nil {
			return fail(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return fail(err)
	}
	return out, nil
}

// scanDest builds scan destinations for the columns, pointing mapped columns
// into the record and discarding the rest.
func scanDest(cols []string, byName map[string]any) []any {
	dest := make([]any, len(cols))
	for i, col := range cols {
		if p, ok := byName[col]; ok {
			dest[i] = p
			continue
		}
		var discard any
		dest[i] = &discard
	}
	return dest
}

// FetchOne fetches at most one record. A missing row is reported through
// the boolean, not as an error.
func FetchOne[T Record](ctx context.Context, reg *Registry, query string, params map[string]any, newRec func() T) (T, bool, error) {
	var zero T
	recs, err := FetchAll(ctx, reg, query, params, newRec)
	if err != nil || len(recs) == 0 {
		return zero, false, err
	}
	return recs[0], true, nil
}

// Registries is an explicit container of per-kind registries. The
// package-level Init and Kind operate on a process-wide default container;
// tests build independent containers with NewRegistries.
type Registries struct {
	kinds map[string]*Registry
}

// NewRegistries returns an empty container.
func NewRegistries() *Registries {
	return &Registries{kinds: make(map[string]*Registry)}
}

// Init constructs the registry for a kind. Initializing the same kind twice
// is a programming error and fails with an AlreadyInitializedError.
func (rs *Registries) Init(kind string, conn *Conn, tpl Templates) (*Registry, error) {
	if _, ok := rs.kinds[kind]; ok {
		return nil, &AlreadyInitializedError{kind: kind}
	}
	r := &Registry{kind: kind, conn: conn, tpl: tpl}
	rs.kinds[kind] = r
	return r, nil
}

// Kind returns the registry for a kind, or a NotInitializedError if Init
// was never called for it.
func (rs *Registries) Kind(kind string) (*Registry, error) {
	r, ok := rs.kinds[kind]
	if !ok {
		return nil, &NotInitializedError{kind: kind}
	}
	return r, nil
}

// Reset tears down every registry in the container.
func (rs *Registries) Reset() {
	rs.kinds = make(map[string]*Registry)
}

// defaultRegistries backs the package-level singleton API.
var defaultRegistries = NewRegistries()

// Init constructs the process-wide registry for a kind. See
// (*Registries).Init.
func Init(kind string, conn *Conn, tpl Templates) (*Registry, error) {
	return defaultRegistries.Init(kind, conn, tpl)
}

// Kind returns the process-wide registry for a kind. See
// (*Registries).Kind.
func Kind(kind string) (*Registry, error) {
	return defaultRegistries.Kind(kind)
}

// ResetRegistries tears down the process-wide container. Intended for
// tests.
func ResetRegistries() {
	defaultRegistries.Reset()
}
