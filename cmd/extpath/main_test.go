package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/extpath/internal/debug"
)

// setupTestProject lays out a small extension under a temp root
func setupTestProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()

	files := map[string]string{
		"src/manifest.json": `{
  "manifest_version": 3,
  "name": "CLI Fixture",
  "background": {"service_worker": "background.ts"},
  "action": {"default_popup": "popup/index.html"}
}`,
		"src/background.ts": `chrome.action.setPopup({ popup: "popup/index.html" });
chrome.tabs.create({ url: "popup/indx.html" });
`,
		"src/public/logo.png": "png",
		".extpath.kdl": `manifest "src/manifest.json"
out_dir "build"
`,
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"extpath"}, args...))
	debug.SetQuietMode(false)
	return stdout.String(), stderr.String(), err
}

func TestRefsCommand_JSON(t *testing.T) {
	root := setupTestProject(t)

	stdout, _, err := runApp(t, "--root", root, "refs")
	require.NoError(t, err)

	var report refsReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, "chrome", report.Browser)
	require.Len(t, report.References, 2)

	assert.Equal(t, "src/background.ts", report.References[0].File)
	assert.Equal(t, "/action/index.html", report.References[0].Resolved)
	assert.True(t, report.References[0].OK)
	assert.False(t, report.References[1].OK)

	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "unresolved-path", report.Diagnostics[0].Kind)
	assert.Equal(t, "warning", report.Diagnostics[0].Severity)
	assert.Equal(t, "popup/index.html", report.Diagnostics[0].Suggestion)
}

func TestRefsCommand_UnresolvedOnly(t *testing.T) {
	root := setupTestProject(t)

	stdout, _, err := runApp(t, "--root", root, "refs", "--unresolved")
	require.NoError(t, err)

	var report refsReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.References, 1)
	assert.Equal(t, "popup/indx.html", report.References[0].Declared)
}

func TestResolveCommand_WritesOutputDirectory(t *testing.T) {
	root := setupTestProject(t)

	_, stderr, err := runApp(t, "--root", root, "resolve")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Resolved 1 files (1 rewritten, 1 warnings)")
	assert.Contains(t, stderr, "src/background.ts:2:")

	out, err := os.ReadFile(filepath.Join(root, "build", "src", "background.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `popup: "/action/index.html"`)
	assert.Contains(t, string(out), `url: "popup/indx.html"`)
}

func TestResolveCommand_StdoutAndStrict(t *testing.T) {
	root := setupTestProject(t)
	file := filepath.Join(root, "src", "background.ts")

	stdout, _, err := runApp(t, "--root", root, "resolve", "--stdout", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, `chrome.action.setPopup({ popup: "/action/index.html" });`)
	assert.NoDirExists(t, filepath.Join(root, "build"))

	_, _, err = runApp(t, "--root", root, "resolve", "--stdout", "--strict", file)
	require.Error(t, err)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestPlanCommand(t *testing.T) {
	root := setupTestProject(t)

	stdout, _, err := runApp(t, "--root", root, "plan")
	require.NoError(t, err)
	assert.Contains(t, stdout, "logo.png")
	assert.Contains(t, stdout, "action/index.html")

	stdout, _, err = runApp(t, "--root", root, "plan", "--json")
	require.NoError(t, err)
	var plan struct {
		Public  []string `json:"public"`
		Entries []struct {
			Category string `json:"category"`
			Declared string `json:"declared"`
			Output   string `json:"output"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	assert.Equal(t, []string{"logo.png"}, plan.Public)
	assert.NotEmpty(t, plan.Entries)
}

func TestConfigOverrides(t *testing.T) {
	root := setupTestProject(t)

	_, _, err := runApp(t, "--root", root, "--browser", "netscape", "refs")
	assert.ErrorContains(t, err, "browser")

	_, _, err = runApp(t, "--root", root, "--manifest", "missing.json", "refs")
	assert.Error(t, err)

	stdout, _, err := runApp(t, "--root", root, "--browser", "firefox", "refs")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"browser": "firefox"`)
}

func TestExplicitConfigPath(t *testing.T) {
	root := setupTestProject(t)
	custom := filepath.Join(t.TempDir(), "custom.kdl")
	require.NoError(t, os.WriteFile(custom, []byte(`manifest "src/manifest.json"
browser "edge"
`), 0o644))

	stdout, _, err := runApp(t, "--config", custom, "--root", root, "refs")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"browser": "edge"`)
}
