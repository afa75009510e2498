package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplug/tensorplug/pkg/manifest"
)

func writeModule(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("\x7fELF"), 0755))
	return path
}

func TestScan_FindsModules(t *testing.T) {
	dir := t.TempDir()
	scaler := writeModule(t, dir, "scaler.so")
	writeModule(t, dir, "passthrough.so")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	s := NewScanner([]string{dir}, nil)
	modules, err := s.Scan()
	require.NoError(t, err)

	require.Len(t, modules, 2)
	paths := []string{modules[0].Path, modules[1].Path}
	assert.Contains(t, paths, scaler)
	for _, m := range modules {
		assert.Nil(t, m.Manifest, "no sidecars present")
		assert.False(t, m.ModTime.IsZero())
	}
}

func TestScan_SkipsMissingDirectories(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "scaler.so")

	s := NewScanner([]string{filepath.Join(dir, "absent"), dir}, nil)
	modules, err := s.Scan()
	require.NoError(t, err)
	assert.Len(t, modules, 1)
}

func TestScan_LoadsSidecarManifest(t *testing.T) {
	dir := t.TempDir()
	modulePath := writeModule(t, dir, "scaler.so")

	m := &manifest.Manifest{
		ID:         "nearest-scaler",
		Name:       "Nearest Neighbor Scaler",
		Version:    "1.0.0",
		APIVersion: "1.0.0",
	}
	require.NoError(t, manifest.Save(m, manifest.SidecarPath(modulePath)))

	s := NewScanner([]string{dir}, nil)
	modules, err := s.Scan()
	require.NoError(t, err)

	require.Len(t, modules, 1)
	require.NotNil(t, modules[0].Manifest)
	assert.Equal(t, "nearest-scaler", modules[0].Manifest.ID)

	// Second scan hits the cache and returns the same parsed manifest.
	again, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Same(t, modules[0].Manifest, again[0].Manifest)
}

func TestScan_MalformedSidecarReported(t *testing.T) {
	dir := t.TempDir()
	modulePath := writeModule(t, dir, "scaler.so")
	require.NoError(t, os.WriteFile(manifest.SidecarPath(modulePath), []byte("id: [bad"), 0644))

	s := NewScanner([]string{dir}, nil)
	modules, err := s.Scan()
	require.NoError(t, err)

	require.Len(t, modules, 1)
	assert.Nil(t, modules[0].Manifest)
}
