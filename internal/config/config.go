// Package config loads and saves the wmkeys YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/xdg"
	"go.yaml.in/yaml/v3"

	"wmkeys/internal/hotkeys"
)

const (
	appName  = "wmkeys"
	fileName = "config.yaml"

	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	renameRetryBaseDelay = 10 * time.Millisecond

	DefaultDelimiter = "+"
	DefaultListen    = "127.0.0.1:7531"
)

// defaultConfigDirFn is a test seam for validateConfigPath.
var defaultConfigDirFn = defaultConfigDir

// Config is the wmkeys runtime configuration.
type Config struct {
	// Delimiter separates tokens in every binding's keys. Exactly one
	// non-space character.
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// GhostModifiers are ignored when matching key events. A missing key
	// selects the three lock modifiers; an explicit empty list ignores none.
	GhostModifiers []string `yaml:"ghost_modifiers" json:"ghost_modifiers"`
	// Listen is the host:port of the key-event WebSocket endpoint.
	Listen   string          `yaml:"listen" json:"listen"`
	Bindings []BindingConfig `yaml:"bindings" json:"bindings"`
}

// BindingConfig is one shortcut entry. Exactly one of Spawn and Lua is set.
type BindingConfig struct {
	Keys        string `yaml:"keys" json:"keys"`
	Spawn       string `yaml:"spawn,omitempty" json:"spawn,omitempty"`
	Lua         string `yaml:"lua,omitempty" json:"lua,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Kind returns "spawn" or "lua", or "" for an invalid entry.
func (b BindingConfig) Kind() string {
	switch {
	case b.Spawn != "" && b.Lua == "":
		return "spawn"
	case b.Lua != "" && b.Spawn == "":
		return "lua"
	default:
		return ""
	}
}

// DefaultGhostModifierNames mirrors hotkeys.DefaultGhostModifiers.
func DefaultGhostModifierNames() []string {
	return []string{"numlock", "scrolllock", "capslock"}
}

// DefaultConfig returns the configuration written by EnsureFile.
func DefaultConfig() Config {
	return Config{
		Delimiter:      DefaultDelimiter,
		GhostModifiers: DefaultGhostModifierNames(),
		Listen:         DefaultListen,
		Bindings: []BindingConfig{
			{Keys: "super + Return", Spawn: "xterm", Description: "Open terminal"},
			{Keys: "super + shift + r", Lua: `wmkeys.log("reload requested")`, Description: "Log a reload request"},
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/wmkeys/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, fileName)
}

// ResolvePath returns the first existing config file in the XDG config
// search path, or DefaultPath when none exists.
func ResolvePath() string {
	found, err := xdg.SearchConfigFile(filepath.Join(appName, fileName))
	if err != nil {
		return DefaultPath()
	}
	return found
}

// DelimiterRune returns the delimiter as a rune. Call only on a validated config.
func (c Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// GhostMask converts GhostModifiers into a modifier mask.
func (c Config) GhostMask() (hotkeys.ModMask, error) {
	return hotkeys.ParseGhostModifiers(c.GhostModifiers)
}

// Load reads the config file. A missing or empty file yields defaults with
// no bindings.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		applyDefaults(&cfg)
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		applyDefaults(&cfg)
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		cfg = Config{}
		applyDefaults(&cfg)
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	slog.Debug("[DEBUG-CONFIG] config loaded", "path", path, "bindings", len(cfg.Bindings))
	return cfg, nil
}

// EnsureFile writes the default config to an explicit path if it does not
// exist and returns the loaded config.
func EnsureFile(path string) (Config, error) {
	return ensure(path, SaveAs)
}

// EnsureDefaultFile is EnsureFile for DefaultPath. It returns the path used.
func EnsureDefaultFile() (string, Config, error) {
	path := DefaultPath()
	cfg, err := ensure(path, Save)
	return path, cfg, err
}

func ensure(path string, save func(string, Config) (Config, error)) (Config, error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg, err := save(path, DefaultConfig())
		if err != nil {
			return cfg, err
		}
		slog.Info("[INFO-CONFIG] wrote default config", "path", path)
		return cfg, nil
	}
	return Load(path)
}

// Clone returns a deep copy of src.
func Clone(src Config) Config {
	dst := src
	if src.GhostModifiers != nil {
		dst.GhostModifiers = slices.Clone(src.GhostModifiers)
	}
	if src.Bindings != nil {
		dst.Bindings = slices.Clone(src.Bindings)
	}
	return dst
}

// Save validates cfg and writes it atomically. path must lie inside the
// default config directory. Returns the normalized config that was written.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	return write(normalizedPath, cfg)
}

// SaveAs is Save for a path the user chose explicitly, such as a --config
// flag. The directory restriction does not apply.
func SaveAs(path string, cfg Config) (Config, error) {
	absolutePath, err := absConfigPath(path)
	if err != nil {
		return cfg, err
	}
	return write(absolutePath, cfg)
}

func write(path string, cfg Config) (Config, error) {
	cfg = Clone(cfg)
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	if err := validateBindings(cfg.Bindings); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(path, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

// atomicWrite writes data to a temp file in the target directory and renames
// it into place.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// validateConfigPath makes path absolute and requires it to be inside the
// default config directory.
func validateConfigPath(path string) (string, error) {
	absolutePath, err := absConfigPath(path)
	if err != nil {
		return "", err
	}

	expectedDir, err := defaultConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save config: path outside config directory: %q", absolutePath)
	}
	return absolutePath, nil
}

func absConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}
	return absolutePath, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir reports whether path is dir or below it. Cross-volume paths
// on Windows are rejected because filepath.Rel fails or stays absolute.
func pathWithinDir(path string, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func applyDefaults(cfg *Config) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}
	if cfg.GhostModifiers == nil {
		cfg.GhostModifiers = DefaultGhostModifierNames()
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
}

// applyDefaultsAndValidate fills missing defaults and validates the
// file-level settings in place. Bindings are checked per entry when the
// registry is built, so one broken entry does not reject the file.
func applyDefaultsAndValidate(cfg *Config) error {
	applyDefaults(cfg)
	cfg.Listen = strings.TrimSpace(cfg.Listen)

	if err := validateDelimiter(cfg.Delimiter); err != nil {
		return err
	}
	if _, err := cfg.GhostMask(); err != nil {
		return fmt.Errorf("ghost_modifiers: %w", err)
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("listen %q: %w", cfg.Listen, err)
	}
	return nil
}

// validateBindings checks that every entry names keys and exactly one action.
func validateBindings(bindings []BindingConfig) error {
	var errs []error
	for i, b := range bindings {
		if err := validateBinding(b); err != nil {
			errs = append(errs, fmt.Errorf("bindings[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateDelimiter(d string) error {
	if utf8.RuneCountInString(d) != 1 {
		return fmt.Errorf("delimiter %q: must be exactly one character", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if unicode.IsSpace(r) {
		return fmt.Errorf("delimiter %q: must not be whitespace", d)
	}
	return nil
}

func validateBinding(b BindingConfig) error {
	if strings.TrimSpace(b.Keys) == "" {
		return errors.New("keys is required")
	}
	if b.Kind() == "" {
		return fmt.Errorf("%q: exactly one of spawn or lua is required", b.Keys)
	}
	return nil
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
