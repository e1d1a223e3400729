package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SqliteBackend_PragmaSettings(t *testing.T) {
	t.Run("In-memory database has memory journal mode", func(t *testing.T) {
		backend := NewInMemoryBackend()
		defer backend.Close()

		// WAL mode is not supported for in-memory databases
		var journalMode string
		err := backend.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		require.Equal(t, "memory", journalMode)
	})

	t.Run("File backend has WAL mode", func(t *testing.T) {
		backend := NewSqliteBackend(filepath.Join(t.TempDir(), "transcribe.db"))
		defer backend.Close()

		var journalMode string
		err := backend.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		require.Equal(t, "wal", journalMode)
	})

	t.Run("Migrations are idempotent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "transcribe.db")

		backend := NewSqliteBackend(path)
		require.NoError(t, backend.Close())

		backend = NewSqliteBackend(path)
		defer backend.Close()

		require.NoError(t, backend.Migrate())
	})
}
