//go:build integration_test

// Package sqltest provisions throwaway SQL databases for integration
// tests.  Every test gets its own database, PostgreSQL tests share one
// container per process, and database names derive from the test name
// so repeated runs reuse the same identifiers and the Go test cache
// stays effective.
package sqltest

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"testing"

	// Register the pgx driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Register SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

// DBFactory hands out a fresh, isolated database for one test case and
// registers the cleanup that tears it down again.
type DBFactory func(t testing.TB) *sql.DB

// DBTestFunc is the signature of a test body that runs against every
// supported database backend.
type DBTestFunc func(t *testing.T, dbFactory DBFactory)

// backends lists every engine RunDatabaseTest drives a test body
// through.
var backends = []struct {
	name    string
	factory DBFactory
}{
	{name: "Postgres", factory: NewPostgresDB},
	{name: "SQLite", factory: NewSQLiteDB},
}

// RunDatabaseTest runs testFunc once per backend as a parallel subtest.
// The factory passed in builds a database private to the subtest, so
// bodies never observe each other's state.
func RunDatabaseTest(t *testing.T, testFunc DBTestFunc) {
	t.Helper()

	for _, backend := range backends {
		backend := backend
		t.Run(backend.name, func(t *testing.T) {
			t.Parallel()
			testFunc(t, backend.factory)
		})
	}
}

// testDBSuffix derives a short stable identifier from the test name.
// Hashing keeps the identifier within the length limits databases place
// on names, and determinism keeps the Go test cache valid across runs.
func testDBSuffix(t testing.TB) string {
	t.Helper()

	h := fnv.New32a()
	h.Write([]byte(t.Name()))

	suffix := fmt.Sprintf("%08x", h.Sum32())
	t.Logf("db name suffix: %s", suffix)
	return suffix
}
