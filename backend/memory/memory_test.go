package memory

import (
	"testing"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/test"
)

func Test_MemoryBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		return NewMemoryBackend(options...)
	}, nil)
}

func Test_EndToEndMemoryBackend(t *testing.T) {
	test.EndToEndBackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		return NewMemoryBackend(options...)
	}, func(b test.TestBackend) {
		b.Close()
	})
}
