package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestFileValidator(t *testing.T) {
	t.Run("ValidScript", func(t *testing.T) {
		path := writeTempFile(t, "background.js", []byte(`chrome.runtime.getURL("logo.png");`+"\n"))
		assert.NoError(t, NewFileValidator(1024).Validate(path))
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := writeTempFile(t, "empty.ts", nil)
		assert.NoError(t, NewFileValidator(1024).Validate(path))
	})

	t.Run("TooLarge", func(t *testing.T) {
		path := writeTempFile(t, "bundle.js", []byte(strings.Repeat("var a = 1;\n", 200)))
		err := NewFileValidator(100).Validate(path)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("NoLimit", func(t *testing.T) {
		path := writeTempFile(t, "bundle.js", []byte(strings.Repeat("var a = 1;\n", 200)))
		assert.NoError(t, NewFileValidator(0).Validate(path))
	})

	t.Run("ImageWithScriptExtension", func(t *testing.T) {
		png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 'I', 'H', 'D', 'R'}
		path := writeTempFile(t, "logo.js", png)
		err := NewFileValidator(0).Validate(path)
		assert.ErrorIs(t, err, ErrBinary)
		assert.Contains(t, err.Error(), "PNG")
	})

	t.Run("ControlBytes", func(t *testing.T) {
		path := writeTempFile(t, "blob.ts", []byte{1, 2, 3, 4, 5, 'a'})
		assert.ErrorIs(t, NewFileValidator(0).Validate(path), ErrBinary)
	})

	t.Run("MissingFile", func(t *testing.T) {
		assert.Error(t, NewFileValidator(0).Validate(filepath.Join(t.TempDir(), "missing.js")))
	})
}

func TestIsBinaryData(t *testing.T) {
	assert.False(t, isBinaryData(nil))
	assert.False(t, isBinaryData([]byte("const x = `tab\there`;\r\n")))
	assert.True(t, isBinaryData([]byte("text\x00more")))
}
