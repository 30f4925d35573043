package sqlstage

import (
	"context"
	"errors"
)

// Unit is a scoped dispatch block. Records tracked by a Unit are dispatched
// to their registries exactly once, when the Unit is closed, on every exit
// path. It replaces end-of-life-triggered dispatch with an explicit scope:
//
//	u := sqlstage.NewUnit()
//	defer u.Close()
//	w := &Widget{ID: 1, Name: "a"}
//	w.Insert()
//	u.Track(reg, w)
//
// Records with ActionIgnore produce no statements. A Unit is not
// synchronized; it follows the one-goroutine-per-Conn model.
type Unit struct {
	bound []binding
	done  bool
}

type binding struct {
	reg *Registry
	rec Record
}

// NewUnit returns an empty Unit.
func NewUnit() *Unit {
	return &Unit{}
}

// Track binds a record to the Unit for dispatch through reg at Close.
func (u *Unit) Track(reg *Registry, rec Record) {
	u.bound = append(u.bound, binding{reg: reg, rec: rec})
}

// Close dispatches every tracked record in tracking order and returns the
// joined dispatch errors, if any. Only the first Close dispatches; further
// calls are no-ops, so it is safe to defer Close and also call it
// explicitly to observe errors.
func (u *Unit) Close() error {
	if u.done {
		return nil
	}
	u.done = true
	var errs []error
	for _, b := range u.bound {
		if err := b.reg.Dispatch(context.Background(), b.rec); err != nil {
			errs = append(errs, err)
		}
	}
	u.bound = nil
	return errors.Join(errs...)
}

// Do runs fn with a fresh Unit and guarantees dispatch on every exit path.
// fn's error and any dispatch errors are joined. If fn panics, tracked
// records are still dispatched before the panic resumes.
func Do(fn func(u *Unit) error) error {
	u := NewUnit()
	defer func() { _ = u.Close() }()
	if err := fn(u); err != nil {
		return errors.Join(err, u.Close())
	}
	return u.Close()
}

// RunInTransaction runs fn against the Conn's queue and resolves it in one
// step: if fn returns nil the queue is committed and the commit's outcome is
// returned; if fn fails the queue is discarded and fn's error is returned.
func RunInTransaction(ctx context.Context, conn *Conn, fn func() error) error {
	if err := fn(); err != nil {
		conn.Abort()
		return err
	}
	return conn.Commit(ctx)
}

// CommitGuard commits a Conn's pending queue best-effort when closed,
// swallowing (but logging) any commit error. It is the explicit opt-in
// replacement for relying on a Conn's implicit commit at end of life:
//
//	defer sqlstage.Guard(conn).Close()
type CommitGuard struct {
	conn *Conn
	done bool
}

// Guard returns a CommitGuard for the Conn.
func Guard(conn *Conn) *CommitGuard {
	return &CommitGuard{conn: conn}
}

// Close commits the Conn's queue. Errors are reported to the Conn's event
// sink at alert level and swallowed. Close is idempotent.
func (g *CommitGuard) Close() {
	if g.done {
		return
	}
	g.done = true
	if err := g.conn.Commit(context.Background()); err != nil {
		g.conn.log.Log(context.Background(), LevelAlert,
			"sqlstage: guarded commit failed", "error", err)
	}
}
