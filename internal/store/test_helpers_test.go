package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh database in the test's temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a run and returns its ID.
func createTestRun(t *testing.T, s *Store, id string, seq int64) string {
	t.Helper()
	require.NoError(t, s.WriteRun(context.Background(), Run{
		ID:            id,
		SceneHash:     "scene-hash",
		EngineVersion: "0.1.0",
		IRVersion:     "1",
		Seq:           seq,
	}))
	return id
}
