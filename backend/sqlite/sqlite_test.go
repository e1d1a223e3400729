package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/test"
)

func Test_SqliteBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		return NewInMemoryBackend(WithBackendOptions(options...))
	}, func(b test.TestBackend) {
		b.Close()
	})
}

func Test_EndToEndSqliteBackend(t *testing.T) {
	test.EndToEndBackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		return NewInMemoryBackend(WithBackendOptions(options...))
	}, func(b test.TestBackend) {
		b.Close()
	})
}

func Test_SqliteBackend_WorkerRestartOnReopenedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.db")

	b := NewSqliteBackend(path)

	test.WorkerRestartTest(t, b, func(b test.TestBackend) test.TestBackend {
		require.NoError(t, b.Close())

		reopened := NewSqliteBackend(path)
		t.Cleanup(func() { reopened.Close() })

		return reopened
	})
}
