package prompts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "draft.txt", "a prompt")
	writeFile(t, root, "prompts/summarize.md", "another prompt")
	writeFile(t, root, "notes.log", "ignored")
	writeFile(t, root, ".cache/stale.txt", "ignored")

	files, err := Discover(root, []string{"**/*.txt", "**/*.md"})
	require.NoError(t, err)
	require.Len(t, files, 2)

	rels := []string{files[0].RelPath, files[1].RelPath}
	assert.ElementsMatch(t, []string{"draft.txt", "prompts/summarize.md"}, rels)
}

func TestDiscover_NewestFirst(t *testing.T) {
	root := t.TempDir()
	older := writeFile(t, root, "older.txt", "x")
	writeFile(t, root, "newer.txt", "y")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	files, err := Discover(root, []string{"*.txt"})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "newer.txt", files[0].RelPath)
	assert.Equal(t, "older.txt", files[1].RelPath)
}

func TestDiscover_OverlappingPatternsDeduplicate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prompt.md", "x")

	files, err := Discover(root, []string{"*.md", "**/*.md"})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDiscover_InvalidPattern(t *testing.T) {
	_, err := Discover(t.TempDir(), []string{"[unclosed"})
	assert.Error(t, err)
}

func TestFile_Name(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"draft.txt", "draft"},
		{"prompts/summarize.md", "summarize"},
		{"no-ext", "no-ext"},
	}

	for _, tt := range tests {
		f := File{RelPath: tt.rel}
		assert.Equal(t, tt.want, f.Name())
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "prompt.txt", "line one\r\nline two\n\n")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
