package sqlstage

import (
	"fmt"
	"sync/atomic"
)

// ConnStats holds queue and commit statistics for one or more Conns.
type ConnStats struct {
	// Enqueued is the total number of statements appended to the queue.
	Enqueued atomic.Int64
	// Statements is the total number of statements executed by commits.
	Statements atomic.Int64
	// Committed is the number of successful non-empty commits.
	Committed atomic.Int64
	// Aborted is the number of statements dropped by Abort.
	Aborted atomic.Int64
	// CommitErrors is the number of failed commits.
	CommitErrors atomic.Int64
}

// Snapshot returns a point-in-time copy of the statistics.
func (s *ConnStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Enqueued:     s.Enqueued.Load(),
		Statements:   s.Statements.Load(),
		Committed:    s.Committed.Load(),
		Aborted:      s.Aborted.Load(),
		CommitErrors: s.CommitErrors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *ConnStats) Reset() {
	s.Enqueued.Store(0)
	s.Statements.Store(0)
	s.Committed.Store(0)
	s.Aborted.Store(0)
	s.CommitErrors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of connection statistics.
type StatsSnapshot struct {
	Enqueued     int64
	Statements   int64
	Committed    int64
	Aborted      int64
	CommitErrors int64
}

// Pending returns the number of enqueued statements not yet executed or
// dropped at snapshot time.
func (s StatsSnapshot) Pending() int64 {
	return s.Enqueued - s.Statements - s.Aborted
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"enqueued=%d statements=%d commits=%d aborted=%d errors=%d",
		s.Enqueued, s.Statements, s.Committed, s.Aborted, s.CommitErrors,
	)
}
