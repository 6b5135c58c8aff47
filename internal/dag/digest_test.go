package dag_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"weave/internal/dag"
)

func TestDigestStore_RoundTripsAcrossLoad(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(f, []byte("content"), 0o644))

	store, err := dag.LoadDigestStore(dir)
	require.NoError(t, err)

	d1, err := store.Digest(f)
	require.NoError(t, err)
	require.NotEmpty(t, d1)

	store.RecordVector("target1", []string{d1})
	require.NoError(t, store.Save())

	reloaded, err := dag.LoadDigestStore(dir)
	require.NoError(t, err)
	vec, ok := reloaded.Vector("target1")
	require.True(t, ok)
	require.Equal(t, []string{d1}, vec)

	if _, err := os.Stat(filepath.Join(dir, dag.DigestStorePath)); err != nil {
		t.Fatalf("expected digest store file to exist: %v", err)
	}
}

func TestDigestStore_LoadMissingReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := dag.LoadDigestStore(dir)
	require.NoError(t, err)
	_, ok := store.Vector("anything")
	require.False(t, ok)
}
