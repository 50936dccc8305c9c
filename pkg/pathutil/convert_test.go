package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/extpath/internal/types"
)

func TestToRelative(t *testing.T) {
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{
			name:     "simple relative conversion",
			absPath:  "/home/user/ext/src/background.ts",
			rootDir:  "/home/user/ext",
			expected: "src/background.ts",
		},
		{
			name:     "file in root directory",
			absPath:  "/home/user/ext/manifest.json",
			rootDir:  "/home/user/ext",
			expected: "manifest.json",
		},
		{
			name:     "already relative path",
			absPath:  "src/background.ts",
			rootDir:  "/home/user/ext",
			expected: "src/background.ts",
		},
		{
			name:     "path outside root",
			absPath:  "/other/location/file.js",
			rootDir:  "/home/user/ext",
			expected: "/other/location/file.js",
		},
		{
			name:     "empty path",
			absPath:  "",
			rootDir:  "/home/user/ext",
			expected: "",
		},
		{
			name:     "empty root",
			absPath:  "/home/user/ext/src/popup.tsx",
			rootDir:  "",
			expected: "/home/user/ext/src/popup.tsx",
		},
		{
			name:     "root with trailing slash",
			absPath:  "/home/user/ext/src/content.js",
			rootDir:  "/home/user/ext/",
			expected: "src/content.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if runtime.GOOS == "windows" && filepath.IsAbs(tt.absPath) {
				t.Skip("unix-style absolute paths")
			}
			assert.Equal(t, tt.expected, ToRelative(tt.absPath, tt.rootDir))
		})
	}
}

func TestToRelativeReferences(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-style absolute paths")
	}
	refs := []types.ResourceReference{
		{File: "/ext/src/a.ts", DeclaredPath: "icon.png"},
		{File: "/ext/src/b.ts", DeclaredPath: "popup.html"},
	}

	converted := ToRelativeReferences(refs, "/ext")

	assert.Equal(t, "src/a.ts", converted[0].File)
	assert.Equal(t, "src/b.ts", converted[1].File)
	assert.Equal(t, "/ext/src/a.ts", refs[0].File, "original slice must not be modified")
	assert.Nil(t, ToRelativeReferences(nil, "/ext"))
}

func TestToRelativeDiagnostics(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-style absolute paths")
	}
	diags := []types.Diagnostic{{File: "/ext/src/a.ts", Kind: types.DiagDynamicPath}}

	converted := ToRelativeDiagnostics(diags, "/ext")

	assert.Equal(t, "src/a.ts", converted[0].File)
	assert.Equal(t, "/ext/src/a.ts", diags[0].File)
}
