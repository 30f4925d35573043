// Package sqlstage is a deferred-transaction row-dispatch layer on top of
// database/sql.
//
// Callers describe row-level intents (insert, update, delete or ignore) on
// in-memory records and on a connection-level statement queue. Nothing
// touches the database until a commit point: the queue is then flushed as a
// single transaction, in FIFO order, and cleared.
//
// # Connections
//
// A Conn owns one database handle and one pending statement queue:
//
//	conn, err := sqlstage.Open(sqlstage.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	conn.Enqueue(ctx, "INSERT INTO widgets (id, name) VALUES (:id, :name)",
//	    map[string]any{"id": 1, "name": "a"})
//	err = conn.Commit(ctx)
//
// Statements use named placeholders (":name"); values are bound by name, not
// position. A Conn is not internally synchronized — use one Conn per worker.
//
// # Registries and records
//
// A Registry binds a Conn to one entity kind and holds its canonical
// statement templates. Registries are singletons per kind: initializing a
// kind twice fails with AlreadyInitializedError, and using a kind before
// initialization fails with NotInitializedError.
//
//	reg, err := sqlstage.Init("widget", conn, sqlstage.Templates{
//	    Insert: "INSERT INTO widgets (id, name) VALUES (:id, :name)",
//	    Update: "UPDATE widgets SET name = :name WHERE id = :id",
//	    Delete: "DELETE FROM widgets WHERE id = :id",
//	    Select: "SELECT id, name FROM widgets WHERE id = :id",
//	})
//
// Records declare an explicit ordered field set and carry a pending action
// via the embedded Staged type. A Unit block guarantees that every tracked
// record is dispatched exactly once on every exit path:
//
//	err := sqlstage.Do(func(u *sqlstage.Unit) error {
//	    w := &Widget{ID: 1, Name: "a"}
//	    w.Insert()
//	    u.Track(reg, w)
//	    return nil
//	})
//
// # Migrations
//
// VersionTracker persists a kind → schema-version mapping through the same
// queue, and Migrator applies an ordered list of incremental steps strictly
// above the stored version, committing once at the end. Running a migration
// that is already at the latest version applies zero steps.
//
// # Events
//
// All components report leveled events (connect, enqueue, abort, commit,
// prepare and fetch failures) to a *slog.Logger. The default sink discards
// everything; pass WithLogger to observe. The sink is a pure side channel
// and never changes control flow.
package sqlstage
