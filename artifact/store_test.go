package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveCopiesFileUnderRunStepDir(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello world"), 0o644))

	s := New(base)
	a, err := s.Save("run-1", "step-1", src, "", "")
	require.NoError(t, err)

	assert.Equal(t, "report.txt", a.FileName)
	assert.Equal(t, int64(len("hello world")), a.Size)
	assert.Equal(t, filepath.Join(base, "run-1", "step-1", "report.txt"), a.Path)

	contents, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(contents))
}

func TestSaveCollisionSuffixes(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))

	s := New(base)
	first, err := s.Save("run-1", "step-1", src, "", "")
	require.NoError(t, err)
	second, err := s.Save("run-1", "step-1", src, "", "")
	require.NoError(t, err)

	assert.Equal(t, "out.txt", first.FileName)
	assert.Equal(t, "out-2.txt", second.FileName)
}

func TestSaveBytesInfersMimeType(t *testing.T) {
	base := t.TempDir()
	s := New(base)

	a, err := s.SaveBytes("run-2", "step-1", "summary.json", "", []byte(`{"ok":true}`))
	require.NoError(t, err)

	assert.Equal(t, "application/json", a.MimeType)
	assert.Equal(t, int64(len(`{"ok":true}`)), a.Size)
}
