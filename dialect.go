package sqlstage

import "strconv"

// Supported dialect names. The value doubles as the database/sql driver
// name the dialect is opened with.
const (
	// MySQL is the mysql dialect (github.com/go-sql-driver/mysql).
	MySQL = "mysql"
	// Postgres is the postgres dialect (github.com/lib/pq).
	Postgres = "postgres"
	// SQLite is the sqlite dialect (modernc.org/sqlite).
	SQLite = "sqlite"
)

// placeholder returns the positional placeholder for the i-th (1-based)
// bound value in the given dialect.
func placeholder(dialect string, i int) string {
	if dialect == Postgres {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}
