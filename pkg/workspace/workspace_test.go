package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/modfile"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	return New(Config{
		Dir:        filepath.Join(root, "generated"),
		UploadsDir: filepath.Join(root, "uploads"),
	}, nil)
}

func TestWorkspace_WriteDocumentReplaces(t *testing.T) {
	ws := newTestWorkspace(t)
	assert.False(t, ws.HasDocument())

	first, err := ws.WriteDocument("package main\n// one\n")
	require.NoError(t, err)
	second, err := ws.WriteDocument("package main\n")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	doc, err := ws.ReadDocument()
	require.NoError(t, err)
	assert.Equal(t, "package main\n", doc)
	assert.True(t, ws.HasDocument())

	entries, err := os.ReadDir(ws.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"go.mod", "main.go"}, names)
}

func TestWorkspace_EnsureModule(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.EnsureModule())

	data, err := os.ReadFile(filepath.Join(ws.Dir(), "go.mod"))
	require.NoError(t, err)
	f, err := modfile.Parse("go.mod", data, nil)
	require.NoError(t, err)
	assert.Equal(t, "swaggermcp/generated", f.Module.Mod.Path)
	assert.Equal(t, "1.22", f.Go.Version)
}

func TestWorkspace_EnsureModuleKeepsRequires(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.MkdirAll(ws.Dir(), 0o755))
	existing := "module old/path\n\ngo 1.23\n\nrequire github.com/google/uuid v1.6.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir(), "go.mod"), []byte(existing), 0o644))

	require.NoError(t, ws.EnsureModule())

	data, err := os.ReadFile(filepath.Join(ws.Dir(), "go.mod"))
	require.NoError(t, err)
	f, err := modfile.Parse("go.mod", data, nil)
	require.NoError(t, err)
	assert.Equal(t, "swaggermcp/generated", f.Module.Mod.Path)
	assert.Equal(t, "1.23", f.Go.Version)
	require.Len(t, f.Require, 1)
	assert.Equal(t, "github.com/google/uuid", f.Require[0].Mod.Path)
}

func TestWorkspace_SaveUpload(t *testing.T) {
	ws := newTestWorkspace(t)

	path, err := ws.SaveUpload("../../etc/calc.go", []byte("package calc\n"))
	require.NoError(t, err)
	assert.Equal(t, "calc.go", filepath.Base(path))
	assert.Equal(t, ws.cfg.UploadsDir, filepath.Dir(path))

	_, err = ws.SaveUpload("", nil)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidUpload))
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
}
