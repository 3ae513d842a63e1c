package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmkeys/internal/testutil"
)

const sampleConfig = `delimiter: "+"
listen: 127.0.0.1:0
bindings:
  - keys: super + Return
    spawn: xterm
    description: Open terminal
  - keys: super + shift + d
    spawn: dmenu_run
`

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestCheck(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", sampleConfig)

	res := runCLI(t, "check", "--config", path)
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "ok (2 bindings)")
}

func TestCheckReportsBrokenBindings(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", `bindings:
  - keys: super + d
    spawn: dmenu_run
  - keys: super + NoSuchKeyName
    spawn: x
  - keys: super + d
    spawn: again
`)

	res := runCLI(t, "check", "--config", path)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "bindings[1]")
	assert.Contains(t, res.stderr, "bindings[2]")
	assert.Contains(t, res.stderr, "duplicate keybinding")
}

func TestCheckReportsInvalidConfig(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", "delimiter: \"++\"\n")

	res := runCLI(t, "check", "--config", path)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "delimiter")
}

func TestList(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", sampleConfig)

	res := runCLI(t, "list", "--config", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "BINDING")
	assert.Contains(t, res.stdout, "super + Return")
	assert.Contains(t, res.stdout, "0xff0d")
	assert.Contains(t, res.stdout, "Return")
	assert.Contains(t, res.stdout, "Open terminal")
	assert.Contains(t, res.stdout, "super + shift + d")
}

func TestLookup(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", sampleConfig)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"exact", []string{"--mods", "super,shift", "d"}, 0, "super + shift + d", ""},
		{"ghost modifier ignored", []string{"--mods", "super,numlock", "Return"}, 0, "super + Return", ""},
		{"relaxed key name", []string{"--mods", "super", "return"}, 0, "super + Return", ""},
		{"no match", []string{"--mods", "ctrl", "Return"}, 1, "no binding", ""},
		{"unknown key", []string{"NoSuchKeyName"}, 1, "", "key not found"},
		{"bad modifier", []string{"--mods", "hyper", "d"}, 1, "", "unknown ghost modifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"lookup", "--config", path}, tt.args...)
			res := runCLI(t, args...)
			assert.Equal(t, tt.wantCode, res.code)
			assert.Contains(t, res.stdout, tt.wantOut)
			assert.Contains(t, res.stderr, tt.wantErr)
		})
	}
}

func TestInitWritesDefaultConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	res := runCLI(t, "init")
	require.Equal(t, 0, res.code, res.stderr)

	path := filepath.Join(xdg.ConfigHome, "wmkeys", "config.yaml")
	assert.Contains(t, res.stdout, path)
	_, err := os.Stat(path)
	require.NoError(t, err)

	// A second run keeps the existing file.
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	res = runCLI(t, "init")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "(2 bindings)")
}

func TestInitWithExplicitConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	path := filepath.Join(t.TempDir(), "x.yaml")
	res := runCLI(t, "init", "--config", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, path)

	res = runCLI(t, "check", "--config", path)
	assert.Equal(t, 0, res.code, res.stderr)
}

func TestCheckReportsBindingWithoutAction(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", `bindings:
  - keys: super + d
    spawn: dmenu_run
  - keys: super + x
`)

	res := runCLI(t, "check", "--config", path)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "bindings[1]")
	assert.Contains(t, res.stderr, "exactly one of spawn or lua")

	res = runCLI(t, "list", "--config", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "super + d")
}

func TestServeFailsOnBadListenAddress(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", sampleConfig)

	res := runCLI(t, "serve", "--config", path, "--listen", "127.0.0.1:notaport")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "listen")
}

func TestInvalidLogLevel(t *testing.T) {
	res := runCLI(t, "list", "--log-level", "loud")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "invalid --log-level")
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
