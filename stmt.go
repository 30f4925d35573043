package sqlstage

import (
	"database/sql"
	"fmt"
	"strings"
)

// Stmt is a reusable statement template compiled from a query with named
// placeholders (":name"). It records the placeholder names in order of
// appearance and the query rewritten to the dialect's positional syntax.
// A Stmt is immutable after Prepare and safe to enqueue any number of times.
type Stmt struct {
	text    string   // original query, named placeholders
	query   string   // rewritten query, positional placeholders
	names   []string // unique placeholder names, first-appearance order
	occ     []string // placeholder names, one per occurrence
	dialect string
	std     *sql.Stmt // driver-side prepared statement
}

// String returns the original query text.
func (s *Stmt) String() string { return s.text }

// Query returns the rewritten query in the dialect's positional syntax.
func (s *Stmt) Query() string { return s.query }

// Names returns the unique placeholder names in first-appearance order.
func (s *Stmt) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Has reports whether the template contains the named placeholder. The
// match is exact: a placeholder ":widget_id" does not contain "id".
func (s *Stmt) Has(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// BindValues resolves the name→value mapping into positional arguments in
// placeholder order. Every placeholder must have a value; values with no
// matching placeholder are ignored.
func (s *Stmt) BindValues(values map[string]any) ([]any, error) {
	src := s.occ
	if s.dialect == Postgres {
		// $n placeholders are numbered per unique name.
		src = s.names
	}
	args := make([]any, len(src))
	for i, name := range src {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("no value bound for placeholder :%s", name)
		}
		args[i] = v
	}
	return args, nil
}

// parseNamed scans query for named placeholders and rewrites them to the
// dialect's positional syntax. Placeholders inside quoted strings and
// postgres casts ("::type") are left untouched.
func parseNamed(dialect, query string) (rewritten string, names, occ []string) {
	var (
		b     strings.Builder
		index = make(map[string]int) // name → 1-based postgres index
		quote byte
	)
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == ':':
			// "::" is a cast, not a placeholder.
			if i+1 < len(query) && query[i+1] == ':' {
				b.WriteString("::")
				i++
				continue
			}
			start := i + 1
			end := start
			for end < len(query) && isIdent(query[end], end > start) {
				end++
			}
			if end == start {
				b.WriteByte(c)
				continue
			}
			name := query[start:end]
			occ = append(occ, name)
			n, seen := index[name]
			if !seen {
				names = append(names, name)
				n = len(names)
				index[name] = n
			}
			if dialect == Postgres {
				b.WriteString(placeholder(dialect, n))
			} else {
				b.WriteByte('?')
			}
			i = end - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), names, occ
}

func isIdent(c byte, notFirst bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return notFirst
	}
	return false
}
