package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerResolver_Root(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "utils"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "manuscript_quarto"), 0o755))
	deep := filepath.Join(root, "src", "utils")

	got, err := NewMarkerResolver(deep).Root()
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, want, gotResolved)
}

func TestMarkerResolver_NotFound(t *testing.T) {
	dir := t.TempDir()
	// only one of the two markers
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))

	_, err := (&MarkerResolver{Start: dir, Markers: []string{"src", "no_such_marker_dir_xyz"}}).Root()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestMarkerResolver_MarkerMustBeDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker_file_xyz"), []byte("x"), 0o644))

	_, err := (&MarkerResolver{Start: dir, Markers: []string{"marker_file_xyz"}}).Root()
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestStaticResolver(t *testing.T) {
	dir := t.TempDir()

	got, err := StaticResolver(dir).Root()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = StaticResolver("").Root()
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestResolve_Explicit(t *testing.T) {
	dir := t.TempDir()

	got, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}
