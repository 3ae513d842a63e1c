// Package shell prepares spawn commands from binding configuration.
package shell

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ParsedCommand holds the parts of a spawn line such as
// "cd ~/src && GOFLAGS=-v make build".
type ParsedCommand struct {
	WorkDir  string            // from a leading "cd <path> &&"
	ExtraEnv map[string]string // from leading KEY=VALUE tokens
	Command  string            // what remains, run through the platform shell
}

// Empty reports whether there is nothing to run.
func (p ParsedCommand) Empty() bool { return p.Command == "" }

// Environ returns ExtraEnv as sorted KEY=VALUE pairs.
func (p ParsedCommand) Environ() []string {
	keys := make([]string, 0, len(p.ExtraEnv))
	for k := range p.ExtraEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+p.ExtraEnv[k])
	}
	return out
}

// Argv returns the argument vector that runs Command through the platform
// shell: "/bin/sh -c" on unix, "cmd.exe /C" on Windows.
func (p ParsedCommand) Argv() []string {
	return argvFor(runtime.GOOS, p.Command)
}

func argvFor(goos, command string) []string {
	if goos == "windows" {
		return []string{"cmd.exe", "/C", command}
	}
	return []string{"/bin/sh", "-c", command}
}

// ParseCommand splits a spawn line into working directory, environment
// prefix and command. A leading "~" in the directory expands to the home
// directory.
func ParseCommand(cmd string) ParsedCommand {
	result := parseCommandCore(cmd)
	result.WorkDir = expandHome(result.WorkDir)

	slog.Debug("[DEBUG-SHELL] parsed spawn command",
		"original", cmd,
		"workDir", result.WorkDir,
		"extraEnv", result.ExtraEnv,
		"command", result.Command,
	)
	return result
}

func parseCommandCore(cmd string) ParsedCommand {
	result := ParsedCommand{ExtraEnv: map[string]string{}}

	remaining := strings.TrimSpace(cmd)
	if remaining == "" {
		return result
	}

	if after, ok := strings.CutPrefix(remaining, "cd "); ok {
		if path, rest, ok := extractCDPath(after); ok {
			result.WorkDir = path
			remaining = rest
		}
	}

	result.Command = extractEnvVars(remaining, result.ExtraEnv)
	return result
}

// extractCDPath splits the text after "cd " into the path and whatever
// follows "&&". The path may be single-quoted, double-quoted or bare.
func extractCDPath(afterCD string) (path, rest string, ok bool) {
	afterCD = strings.TrimSpace(afterCD)
	if afterCD == "" {
		return "", "", false
	}

	var tail string
	switch q := afterCD[0]; q {
	case '\'', '"':
		end := strings.IndexByte(afterCD[1:], q)
		if end < 0 {
			return "", "", false
		}
		path = afterCD[1 : end+1]
		tail = strings.TrimSpace(afterCD[end+2:])
	default:
		sep := strings.Index(afterCD, "&&")
		if sep < 0 {
			return "", "", false
		}
		path = strings.TrimSpace(afterCD[:sep])
		tail = afterCD[sep:]
	}

	after, found := strings.CutPrefix(tail, "&&")
	if !found || path == "" {
		return "", "", false
	}
	return path, strings.TrimSpace(after), true
}

// extractEnvVars moves leading KEY=VALUE tokens into env and returns the
// rest. A leading "env " is dropped when an assignment follows it.
func extractEnvVars(cmd string, env map[string]string) string {
	cmd = strings.TrimSpace(cmd)

	if candidate, ok := strings.CutPrefix(cmd, "env "); ok {
		candidate = strings.TrimSpace(candidate)
		token, _ := nextToken(candidate)
		if key, _, ok := strings.Cut(token, "="); ok && isEnvVarName(key) {
			cmd = candidate
		}
	}

	for {
		token, rest := nextToken(cmd)
		key, value, ok := strings.Cut(token, "=")
		if !ok || !isEnvVarName(key) {
			return cmd
		}
		env[key] = value
		cmd = strings.TrimSpace(rest)
	}
}

// isEnvVarName checks [A-Za-z_][A-Za-z0-9_]*.
func isEnvVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// nextToken returns the next space-delimited token. Quoted or flag-like
// input yields no token so it is never mistaken for an assignment.
func nextToken(s string) (token, rest string) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] == '\'' || s[0] == '"' || s[0] == '-' {
		return "", s
	}
	token, rest, _ = strings.Cut(s, " ")
	return token, rest
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("[WARN-SHELL] cannot expand home directory", "path", path, "error", err)
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
