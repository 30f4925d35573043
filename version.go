package sqlstage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultVersionTable is the name of the schema-version table.
const DefaultVersionTable = "schema_versions"

// VersionTracker maintains a persistent mapping from entity-kind name to an
// integer schema version, used to sequence migration steps. Writes go
// through the Conn's statement queue; reads bypass it, so the tracker
// commits pending statements before reading.
type VersionTracker struct {
	conn  *Conn
	table string
}

// NewVersionTracker returns a tracker writing to DefaultVersionTable.
func NewVersionTracker(conn *Conn) *VersionTracker {
	return &VersionTracker{conn: conn, table: DefaultVersionTable}
}

// NewVersionTrackerAt returns a tracker writing to the named table.
func NewVersionTrackerAt(conn *Conn, table string) *VersionTracker {
	return &VersionTracker{conn: conn, table: table}
}

// EnsureTable enqueues a create-if-absent statement for the version table.
// Like every enqueue it has no immediate effect: commit before relying on
// the table for a read in the same logical step.
func (vt *VersionTracker) EnsureTable(ctx context.Context) error {
	qtable := quoteIdent(vt.conn.dialect, vt.table)
	var ddl string
	switch vt.conn.dialect {
	case MySQL:
		ddl = "CREATE TABLE IF NOT EXISTS " + qtable +
			" (name VARCHAR(190) NOT NULL PRIMARY KEY," +
			" version SMALLINT UNSIGNED NOT NULL DEFAULT 0)"
	case Postgres:
		ddl = "CREATE TABLE IF NOT EXISTS " + qtable +
			" (name TEXT NOT NULL PRIMARY KEY," +
			" version SMALLINT NOT NULL DEFAULT 0 CHECK (version >= 0))"
	default:
		ddl = "CREATE TABLE IF NOT EXISTS " + qtable +
			" (name TEXT NOT NULL PRIMARY KEY," +
			" version INTEGER NOT NULL DEFAULT 0)"
	}
	return vt.conn.Enqueue(ctx, ddl, nil)
}

// Current returns the stored schema version for a kind. The boolean is
// false if the kind has never been migrated. Pending statements are
// committed first so prior queued writes are visible to the read.
func (vt *VersionTracker) Current(ctx context.Context, kind string) (int, bool, error) {
	if err := vt.conn.Commit(ctx); err != nil {
		return 0, false, err
	}
	query := "SELECT version FROM " + quoteIdent(vt.conn.dialect, vt.table) + " WHERE name = :name"
	stmt, err := vt.conn.Prepare(ctx, query)
	if err != nil {
		return 0, false, newQueryError(query, err)
	}
	args, err := stmt.BindValues(map[string]any{"name": kind})
	if err != nil {
		return 0, false, newQueryError(query, err)
	}
	var version int
	if err := stmt.std.QueryRowContext(ctx, args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		vt.conn.log.Error("sqlstage: version read failed", "kind", kind, "error", err)
		return 0, false, newQueryError(query, err)
	}
	return version, true, nil
}

// SetCurrent enqueues an upsert of the kind's schema version. The write is
// not visible until the caller commits.
func (vt *VersionTracker) SetCurrent(ctx context.Context, kind string, version int) error {
	if version < 0 {
		return fmt.Errorf("sqlstage: negative schema version %d for %q", version, kind)
	}
	qtable := quoteIdent(vt.conn.dialect, vt.table)
	var upsert string
	if vt.conn.dialect == MySQL {
		upsert = "INSERT INTO " + qtable + " (name, version) VALUES (:name, :version)" +
			" ON DUPLICATE KEY UPDATE version = VALUES(version)"
	} else {
		upsert = "INSERT INTO " + qtable + " (name, version) VALUES (:name, :version)" +
			" ON CONFLICT (name) DO UPDATE SET version = excluded.version"
	}
	return vt.conn.Enqueue(ctx, upsert, map[string]any{"name": kind, "version": version})
}

// Step is one incremental migration for an entity kind. Apply enqueues the
// step's schema-altering statements on the given Conn; it should not
// commit.
type Step struct {
	Version int
	Apply   func(ctx context.Context, conn *Conn) error
}

// Migrator applies an ordered sequence of incremental migration steps for
// one entity kind. Steps are applied strictly above the stored version,
// then the final version is enqueued and everything commits once. Running a
// Migrator whose kind is already at the latest version applies zero steps
// and performs one harmless version write.
type Migrator struct {
	Tracker *VersionTracker
	Kind    string
	Steps   []Step
}

// Run executes the migration protocol and returns the number of steps
// applied. Step versions must be contiguous and ascending from 1. A step
// failure discards the partially built queue and aborts the run; nothing
// from this run reaches the database.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	for i, s := range m.Steps {
		if s.Version != i+1 {
			return 0, fmt.Errorf("sqlstage: migration steps for %q not contiguous: step %d has version %d", m.Kind, i, s.Version)
		}
	}
	conn := m.Tracker.conn
	if err := m.Tracker.EnsureTable(ctx); err != nil {
		return 0, err
	}
	// Current commits the ensure statement before reading.
	current, _, err := m.Tracker.Current(ctx, m.Kind)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, s := range m.Steps {
		if s.Version <= current {
			continue
		}
		if err := s.Apply(ctx, conn); err != nil {
			conn.Abort()
			return applied, fmt.Errorf("sqlstage: migration %q step %d: %w", m.Kind, s.Version, err)
		}
		applied++
	}
	// A stored version ahead of this step list means a newer build already
	// migrated further; the version write must never move it backwards.
	latest := current
	if n := len(m.Steps); n > 0 && m.Steps[n-1].Version > current {
		latest = m.Steps[n-1].Version
	}
	if err := m.Tracker.SetCurrent(ctx, m.Kind, latest); err != nil {
		conn.Abort()
		return applied, err
	}
	if err := conn.Commit(ctx); err != nil {
		return applied, err
	}
	return applied, nil
}
