package sqlstage

import "reflect"

// Action is the CRUD intent recorded on a record, resolved at dispatch
// time. The zero value is ActionIgnore.
type Action int

// Pending actions.
const (
	ActionIgnore Action = iota
	ActionInsert
	ActionUpdate
	ActionDelete
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// Field maps one record field to a column name. Value is a pointer to the
// record's field so the same declaration serves both dispatch (read) and
// fetch (scan destination).
type Field struct {
	Name  string
	Value any
}

// value snapshots the current field value at dispatch time, so later
// mutation of the record does not change what was queued.
func (f Field) value() any {
	rv := reflect.ValueOf(f.Value)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return f.Value
}

// Record is one in-memory row of an entity kind. Implementations declare an
// explicit ordered field set; fields are never discovered by reflection,
// only dereferenced through their declared pointers at dispatch. The usual
// shape embeds Staged for the pending-action state:
//
//	type Widget struct {
//	    sqlstage.Staged
//	    ID   int64
//	    Name string
//	}
//
//	func (w *Widget) EntityKind() string { return "widget" }
//	func (w *Widget) Fields() []sqlstage.Field {
//	    return []sqlstage.Field{{"id", &w.ID}, {"name", &w.Name}}
//	}
type Record interface {
	// EntityKind returns the entity kind the record belongs to. The value
	// must depend only on the record type, not the instance.
	EntityKind() string
	// Fields returns the ordered field-to-column mapping. Each Value must
	// point into the receiver.
	Fields() []Field
	// Action returns the pending action. Provided by the embedded Staged.
	Action() Action
}

// Staged carries a record's pending action. Embed it in record types. All
// transitions are free while the record is alive; the last call before
// dispatch wins. The zero value is ActionIgnore.
type Staged struct {
	action Action
}

// Ignore resets the pending action; the record will not touch the database.
func (s *Staged) Ignore() { s.action = ActionIgnore }

// Insert marks the record for insertion at dispatch.
func (s *Staged) Insert() { s.action = ActionInsert }

// Update marks the record for update at dispatch.
func (s *Staged) Update() { s.action = ActionUpdate }

// Delete marks the record for deletion at dispatch.
func (s *Staged) Delete() { s.action = ActionDelete }

// Action returns the current pending action.
func (s *Staged) Action() Action { return s.action }
