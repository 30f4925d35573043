package sqlstage

import (
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/lib/pq"
)

// TableFor derives the conventional table name for an entity kind:
// underscored and pluralized ("WidgetOrder" → "widget_orders").
func TableFor(kind string) string {
	return inflect.Tableize(kind)
}

// GenerateTemplates builds the canonical statement set for a table whose
// first column is the primary key. The generated statements carry one named
// placeholder per column; callers with hand-written SQL simply fill
// Templates directly instead.
//
// For table "widgets", key "id" and columns [id name]:
//
//	Insert: INSERT INTO "widgets" ("id", "name") VALUES (:id, :name)
//	Update: UPDATE "widgets" SET "name" = :name WHERE "id" = :id
//	Delete: DELETE FROM "widgets" WHERE "id" = :id
//	Select: SELECT "id", "name" FROM "widgets" WHERE "id" = :id
func GenerateTemplates(dialect, table, key string, columns []string) Templates {
	var (
		quoted = make([]string, len(columns))
		marks  = make([]string, len(columns))
		sets   []string
	)
	for i, col := range columns {
		quoted[i] = quoteIdent(dialect, col)
		marks[i] = ":" + col
		if col != key {
			sets = append(sets, quoteIdent(dialect, col)+" = :"+col)
		}
	}
	qtable := quoteIdent(dialect, table)
	qkey := quoteIdent(dialect, key)
	return Templates{
		Insert: "INSERT INTO " + qtable +
			" (" + strings.Join(quoted, ", ") + ")" +
			" VALUES (" + strings.Join(marks, ", ") + ")",
		Update: "UPDATE " + qtable +
			" SET " + strings.Join(sets, ", ") +
			" WHERE " + qkey + " = :" + key,
		Delete: "DELETE FROM " + qtable + " WHERE " + qkey + " = :" + key,
		Select: "SELECT " + strings.Join(quoted, ", ") +
			" FROM " + qtable + " WHERE " + qkey + " = :" + key,
	}
}

// quoteIdent quotes an identifier for the dialect. Identifiers reaching
// here come from template generation, not from caller-supplied SQL.
func quoteIdent(dialect, ident string) string {
	switch dialect {
	case MySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case Postgres:
		return pq.QuoteIdentifier(ident)
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}
