package sqlstage

import (
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// JournalEntry is one committed statement as recorded in the statement
// journal. Entries are msgpack-encoded, one per executed statement, in
// execution order.
type JournalEntry struct {
	ID     string         `msgpack:"id"`
	Query  string         `msgpack:"query"`
	Values map[string]any `msgpack:"values"`
	At     time.Time      `msgpack:"at"`
}

// journal appends committed statements to an io.Writer. It is written only
// after the transaction is durable, so a journal failure never affects the
// commit outcome.
type journal struct {
	enc *msgpack.Encoder
}

func newJournal(w io.Writer) *journal {
	return &journal{enc: msgpack.NewEncoder(w)}
}

func (j *journal) record(batch []queued) error {
	now := time.Now().UTC()
	for _, q := range batch {
		e := JournalEntry{
			ID:     q.id.String(),
			Query:  q.stmt.text,
			Values: q.values,
			At:     now,
		}
		if err := j.enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// ReadJournal decodes every entry from a journal stream. It is the inverse
// of the encoding done by WithJournal, intended for audit tooling and
// tests.
func ReadJournal(r io.Reader) ([]JournalEntry, error) {
	dec := msgpack.NewDecoder(r)
	var out []JournalEntry
	for {
		var e JournalEntry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, e)
	}
}
