package sqlstage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableFor(t *testing.T) {
	assert.Equal(t, "widgets", TableFor("widget"))
	assert.Equal(t, "widget_orders", TableFor("WidgetOrder"))
	assert.Equal(t, "people", TableFor("person"))
}

func TestGenerateTemplates(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		tpl := GenerateTemplates(SQLite, "widgets", "id", []string{"id", "name"})
		assert.Equal(t, `INSERT INTO "widgets" ("id", "name") VALUES (:id, :name)`, tpl.Insert)
		assert.Equal(t, `UPDATE "widgets" SET "name" = :name WHERE "id" = :id`, tpl.Update)
		assert.Equal(t, `DELETE FROM "widgets" WHERE "id" = :id`, tpl.Delete)
		assert.Equal(t, `SELECT "id", "name" FROM "widgets" WHERE "id" = :id`, tpl.Select)
	})

	t.Run("mysql quoting", func(t *testing.T) {
		tpl := GenerateTemplates(MySQL, "widgets", "id", []string{"id", "name"})
		assert.Equal(t, "INSERT INTO `widgets` (`id`, `name`) VALUES (:id, :name)", tpl.Insert)
	})

	t.Run("postgres quoting", func(t *testing.T) {
		tpl := GenerateTemplates(Postgres, "widgets", "id", []string{"id", "name"})
		assert.Equal(t, `DELETE FROM "widgets" WHERE "id" = :id`, tpl.Delete)
	})

	t.Run("generated templates parse", func(t *testing.T) {
		tpl := GenerateTemplates(SQLite, "widgets", "id", []string{"id", "name"})
		_, names, _ := parseNamed(SQLite, tpl.Insert)
		assert.Equal(t, []string{"id", "name"}, names)
		_, names, _ = parseNamed(SQLite, tpl.Update)
		assert.Equal(t, []string{"name", "id"}, names)
	})
}
