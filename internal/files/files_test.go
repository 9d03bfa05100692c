package files

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInDir(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)

	testCases := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"/tmp/vocab.json", "/tmp/vocab.json"},
		{"relative/vocab.json", "relative/vocab.json"},
		{"~", usr.HomeDir},
		{"~/models/vocab.json", filepath.Join(usr.HomeDir, "models/vocab.json")},
	}
	for _, tc := range testCases {
		got, err := ReplaceTildeInDir(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, got, "input %q", tc.input)
	}

	_, err = ReplaceTildeInDir("~user_that_does_not_exist_42/vocab.json")
	assert.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "nested", "deeper", "vocab.json")
	require.NoError(t, WriteFileAtomic(filePath, []byte(`{"a":0}`)))
	assert.True(t, Exists(filePath))
	assert.True(t, IsDir(filepath.Dir(filePath)))
	assert.False(t, IsDir(filePath))

	content, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, `{"a":0}`, string(content))

	// Overwrite, and check no temporary files are left behind.
	require.NoError(t, WriteFileAtomic(filePath, []byte(`{"b":0}`)))
	content, err = os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, `{"b":0}`, string(content))
	entries, err := os.ReadDir(filepath.Dir(filePath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
