package sqlstage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNamed(t *testing.T) {
	tests := []struct {
		name      string
		dialect   string
		query     string
		rewritten string
		names     []string
	}{
		{
			name:      "insert",
			dialect:   SQLite,
			query:     "INSERT INTO widgets (id, name) VALUES (:id, :name)",
			rewritten: "INSERT INTO widgets (id, name) VALUES (?, ?)",
			names:     []string{"id", "name"},
		},
		{
			name:      "postgres numbering",
			dialect:   Postgres,
			query:     "UPDATE widgets SET name = :name WHERE id = :id",
			rewritten: "UPDATE widgets SET name = $1 WHERE id = $2",
			names:     []string{"name", "id"},
		},
		{
			name:      "postgres repeated name shares number",
			dialect:   Postgres,
			query:     "SELECT * FROM spans WHERE lo <= :v AND hi >= :v",
			rewritten: "SELECT * FROM spans WHERE lo <= $1 AND hi >= $1",
			names:     []string{"v"},
		},
		{
			name:      "question-mark dialect repeats placeholder",
			dialect:   SQLite,
			query:     "SELECT * FROM spans WHERE lo <= :v AND hi >= :v",
			rewritten: "SELECT * FROM spans WHERE lo <= ? AND hi >= ?",
			names:     []string{"v"},
		},
		{
			name:      "cast is not a placeholder",
			dialect:   Postgres,
			query:     "SELECT :id::bigint",
			rewritten: "SELECT $1::bigint",
			names:     []string{"id"},
		},
		{
			name:      "quoted strings untouched",
			dialect:   SQLite,
			query:     "SELECT ':id' AS literal, :id AS bound FROM widgets",
			rewritten: "SELECT ':id' AS literal, ? AS bound FROM widgets",
			names:     []string{"id"},
		},
		{
			name:      "no placeholders",
			dialect:   MySQL,
			query:     "CREATE TABLE widgets (id INT)",
			rewritten: "CREATE TABLE widgets (id INT)",
			names:     nil,
		},
		{
			name:      "bare colon passes through",
			dialect:   SQLite,
			query:     "SELECT 'a' || : || 'b'",
			rewritten: "SELECT 'a' || : || 'b'",
			names:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rewritten, names, _ := parseNamed(tt.dialect, tt.query)
			assert.Equal(t, tt.rewritten, rewritten)
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestStmtHasExactMatch(t *testing.T) {
	_, names, occ := parseNamed(SQLite, "UPDATE widgets SET name = :name WHERE widget_id = :widget_id")
	s := &Stmt{names: names, occ: occ, dialect: SQLite}

	assert.True(t, s.Has("name"))
	assert.True(t, s.Has("widget_id"))
	// "id" appears inside ":widget_id" but is not a placeholder of its own.
	assert.False(t, s.Has("id"))
}

func TestStmtBind(t *testing.T) {
	t.Run("occurrence order", func(t *testing.T) {
		rewritten, names, occ := parseNamed(SQLite, "SELECT * FROM spans WHERE lo <= :v AND hi >= :v AND kind = :kind")
		s := &Stmt{query: rewritten, names: names, occ: occ, dialect: SQLite}
		args, err := s.BindValues(map[string]any{"v": 7, "kind": "widget"})
		require.NoError(t, err)
		assert.Equal(t, []any{7, 7, "widget"}, args)
	})

	t.Run("postgres unique order", func(t *testing.T) {
		rewritten, names, occ := parseNamed(Postgres, "SELECT * FROM spans WHERE lo <= :v AND hi >= :v AND kind = :kind")
		s := &Stmt{query: rewritten, names: names, occ: occ, dialect: Postgres}
		args, err := s.BindValues(map[string]any{"v": 7, "kind": "widget"})
		require.NoError(t, err)
		assert.Equal(t, []any{7, "widget"}, args)
	})

	t.Run("missing value", func(t *testing.T) {
		_, names, occ := parseNamed(SQLite, "INSERT INTO widgets (id, name) VALUES (:id, :name)")
		s := &Stmt{names: names, occ: occ, dialect: SQLite}
		_, err := s.BindValues(map[string]any{"id": 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), ":name")
	})

	t.Run("extra values ignored", func(t *testing.T) {
		_, names, occ := parseNamed(SQLite, "DELETE FROM widgets WHERE id = :id")
		s := &Stmt{names: names, occ: occ, dialect: SQLite}
		args, err := s.BindValues(map[string]any{"id": 1, "name": "unused"})
		require.NoError(t, err)
		assert.Equal(t, []any{1}, args)
	})
}
