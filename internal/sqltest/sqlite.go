//go:build integration_test

package sqltest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewSQLiteDB opens a file-backed SQLite database under the test's
// temporary directory.  The directory, and the database file with it,
// is removed by the testing framework when the test ends.
func NewSQLiteDB(t testing.TB) *sql.DB {
	t.Helper()

	file := filepath.Join(
		t.TempDir(), "walletkittest_"+testDBSuffix(t)+".sqlite",
	)

	// Read/write/create mode with a shared cache and foreign keys
	// enforced.
	db, err := sql.Open("sqlite", "file:"+file+"?mode=rwc&cache=shared&_fk=1")
	require.NoError(t, err, "open sqlite db at %s", file)

	t.Cleanup(func() {
		assert.NoError(t, db.Close(), "close sqlite db")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "ping sqlite db")

	return db
}
