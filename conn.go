package sqlstage

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event sink levels above slog.LevelError, for failures that cannot be
// reported to any caller.
const (
	LevelAlert     = slog.Level(12)
	LevelEmergency = slog.Level(16)
)

// queued is one pending statement: a prepared template plus the values to
// bind at execution time.
type queued struct {
	id     uuid.UUID
	stmt   *Stmt
	values map[string]any
}

// Conn owns one database handle and an ordered queue of pending statements.
// Statements accumulate through Enqueue and are executed as a single
// transaction, in FIFO order, by Commit. Abort discards the queue.
//
// A Conn is not internally synchronized. It assumes single-threaded or
// externally serialized access; callers needing concurrent transactions must
// use separate Conns.
type Conn struct {
	db      *sql.DB
	dialect string
	log     *slog.Logger
	stats   *ConnStats
	journal *journal
	queue   []queued
	stmts   map[string]*Stmt // prepared template cache, keyed by query text

	slowCommit time.Duration
	onSlow     SlowCommitHook

	closed bool
}

// SlowCommitHook is called after a commit whose total duration exceeded the
// configured threshold.
type SlowCommitHook func(ctx context.Context, statements int, duration time.Duration)

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the event sink. Events are a pure side channel; the
// default sink discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// WithStats shares a ConnStats collector, e.g. across several Conns.
func WithStats(s *ConnStats) Option {
	return func(c *Conn) {
		if s != nil {
			c.stats = s
		}
	}
}

// WithJournal enables the statement journal: after every successful commit,
// one msgpack-encoded entry per executed statement is written to w.
func WithJournal(w io.Writer) Option {
	return func(c *Conn) {
		c.journal = newJournal(w)
	}
}

// WithSlowCommit installs a hook called whenever Commit takes longer than
// the threshold.
func WithSlowCommit(threshold time.Duration, hook SlowCommitHook) Option {
	return func(c *Conn) {
		c.slowCommit = threshold
		c.onSlow = hook
	}
}

// Open opens a database handle for the given dialect, verifies it with a
// ping and wraps it in a Conn. Failures surface as a ConnectError and are
// reported to the event sink.
func Open(dialect, source string, opts ...Option) (*Conn, error) {
	c := newConn(dialect, nil, opts)
	db, err := sql.Open(dialect, source)
	if err != nil {
		c.log.Error("sqlstage: connect failed", "dialect", dialect, "error", err)
		return nil, newConnectError(dialect, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		c.log.Error("sqlstage: connect failed", "dialect", dialect, "error", err)
		return nil, newConnectError(dialect, err)
	}
	c.db = db
	c.log.Debug("sqlstage: connected", "dialect", dialect)
	return c, nil
}

// OpenDB wraps an existing database handle. The Conn takes ownership: the
// handle is closed by Conn.Close.
func OpenDB(dialect string, db *sql.DB, opts ...Option) *Conn {
	return newConn(dialect, db, opts)
}

func newConn(dialect string, db *sql.DB, opts []Option) *Conn {
	c := &Conn{
		db:      db,
		dialect: dialect,
		log:     slog.New(slog.DiscardHandler),
		stats:   &ConnStats{},
		stmts:   make(map[string]*Stmt),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the dialect name the Conn was opened with.
func (c *Conn) Dialect() string { return c.dialect }

// DB exposes the raw database handle for operations outside this layer's
// scope.
func (c *Conn) DB() *sql.DB { return c.db }

// Stats returns the Conn's statistics collector.
func (c *Conn) Stats() *ConnStats { return c.stats }

// Len returns the number of pending statements.
func (c *Conn) Len() int { return len(c.queue) }

// template returns the cached placeholder-compiled template for a query,
// building it on first use. No driver round trip happens here.
func (c *Conn) template(query string) *Stmt {
	if s, ok := c.stmts[query]; ok {
		return s
	}
	rewritten, names, occ := parseNamed(c.dialect, query)
	s := &Stmt{
		text:    query,
		query:   rewritten,
		names:   names,
		occ:     occ,
		dialect: c.dialect,
	}
	c.stmts[query] = s
	return s
}

// Prepare compiles a query with named placeholders into a reusable
// template backed by a driver-side prepared statement. Templates are
// cached by query text; preparing the same query twice returns the same
// Stmt. Driver-level failures surface as a PrepareError.
//
// Statements that reach the database only through the queue do not need an
// explicit Prepare: Enqueue compiles placeholders without a driver round
// trip, which also allows queueing DDL against tables an earlier queued
// statement is about to create.
func (c *Conn) Prepare(ctx context.Context, query string) (*Stmt, error) {
	s := c.template(query)
	if s.std != nil {
		return s, nil
	}
	std, err := c.db.PrepareContext(ctx, s.query)
	if err != nil {
		c.log.Error("sqlstage: prepare failed", "query", query, "error", err)
		return nil, newPrepareError(query, err)
	}
	s.std = std
	return s, nil
}

// Enqueue appends a statement to the pending queue. q is either a raw query
// string, compiled on the fly, or a *Stmt returned by Prepare. values maps
// placeholder names to the values bound at execution time. Nothing touches
// the database until Commit.
func (c *Conn) Enqueue(ctx context.Context, q any, values map[string]any) error {
	var s *Stmt
	switch q := q.(type) {
	case *Stmt:
		s = q
	case string:
		s = c.template(q)
	default:
		return newPrepareError("", errors.New("sqlstage: enqueue expects a string or *Stmt"))
	}
	id := uuid.New()
	c.queue = append(c.queue, queued{id: id, stmt: s, values: values})
	c.stats.Enqueued.Add(1)
	c.log.Debug("sqlstage: enqueued", "id", id, "query", s.text, "pending", len(c.queue))
	return nil
}

// Abort discards the pending queue unconditionally. It is idempotent and
// never fails.
func (c *Conn) Abort() {
	if len(c.queue) == 0 {
		return
	}
	n := len(c.queue)
	c.queue = nil
	c.stats.Aborted.Add(int64(n))
	c.log.Debug("sqlstage: aborted", "dropped", n)
}

// Commit executes every pending statement in FIFO order inside one database
// transaction. An empty queue is a successful no-op. The queue is cleared
// whether or not the commit succeeds, so a retry requires re-enqueueing.
//
// If a statement implicitly committed the transaction (for example DDL on
// backends that auto-commit), the final commit is treated as already done.
// On any failure the transaction is rolled back, if still open, and a
// TransactionError wrapping the failing statement is returned.
func (c *Conn) Commit(ctx context.Context) error {
	if len(c.queue) == 0 {
		return nil
	}
	batch := c.queue
	c.queue = nil
	start := time.Now()
	err := c.run(ctx, batch)
	if d := time.Since(start); c.onSlow != nil && c.slowCommit > 0 && d > c.slowCommit {
		c.onSlow(ctx, len(batch), d)
	}
	return err
}

func (c *Conn) run(ctx context.Context, batch []queued) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		c.stats.CommitErrors.Add(1)
		c.log.Error("sqlstage: begin failed", "error", err)
		return newTransactionError("", err)
	}
	for _, q := range batch {
		args, err := q.stmt.BindValues(q.values)
		if err == nil {
			_, err = tx.ExecContext(ctx, q.stmt.query, args...)
		}
		if err != nil {
			if rberr := tx.Rollback(); rberr != nil && !errors.Is(rberr, sql.ErrTxDone) {
				err = errors.Join(err, rberr)
			}
			c.stats.CommitErrors.Add(1)
			c.log.Error("sqlstage: commit failed",
				"id", q.id, "query", q.stmt.text, "values", q.values, "error", err)
			return newTransactionError(q.stmt.text, err)
		}
	}
	if err := tx.Commit(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		c.stats.CommitErrors.Add(1)
		c.log.Error("sqlstage: commit failed", "statements", len(batch), "error", err)
		return newTransactionError("", err)
	}
	c.stats.Committed.Add(1)
	c.stats.Statements.Add(int64(len(batch)))
	c.log.Debug("sqlstage: committed", "statements", len(batch))
	if c.journal != nil {
		if err := c.journal.record(batch); err != nil {
			// The transaction is already durable; the journal is best effort.
			c.log.Error("sqlstage: journal write failed", "error", err)
		}
	}
	return nil
}

// Close commits any pending statements best-effort, then closes the cached
// templates and the database handle. A failure of the implicit commit
// cannot be reported to anyone, so it is logged and swallowed; only the
// handle-close error is returned. Close is idempotent.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.Commit(context.Background()); err != nil {
		c.log.Log(context.Background(), LevelAlert,
			"sqlstage: implicit commit on close failed", "error", err)
	}
	for _, s := range c.stmts {
		if s.std != nil {
			_ = s.std.Close()
		}
	}
	return c.db.Close()
}
