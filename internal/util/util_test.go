package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/unicode/norm"
)

func TestReplaceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.json")

	require.NoError(t, ReplaceFile(path, []byte("first"), 0o600))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, ReplaceFile(path, []byte("second"), 0o600))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReplaceFile_MissingDirectory(t *testing.T) {
	err := ReplaceFile(filepath.Join(t.TempDir(), "missing", "target.json"), []byte("x"), 0o600)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	composed := "jos\u00e9"   // e-acute as a single codepoint
	decomposed := "jose\u0301" // e plus combining acute
	assert.Equal(t, Normalize(composed), Normalize(decomposed))
	assert.True(t, norm.NFKD.IsNormalString(Normalize(composed)))

	assert.Equal(t, "ascii_name", Normalize("ascii_name"))
}
