// Package settings loads project settings for the command-line tool.
//
// Values come from, in increasing precedence: built-in defaults, the nearest
// sqfindex.toml above the target, a .env file next to it, and SQFINDEX_*
// environment variables.
package settings

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
)

// FileName is the settings file searched for above the target.
const FileName = "sqfindex.toml"

// Environment variables that override the settings file.
const (
	EnvWorkers  = "SQFINDEX_WORKERS"
	EnvMinDepth = "SQFINDEX_MIN_DEPTH"
	EnvLogLevel = "SQFINDEX_LOG_LEVEL"
)

// Settings configures discovery and analysis.
type Settings struct {
	// Workers bounds concurrent file analysis; 0 means one per CPU.
	Workers int
	// MinDepth is the discovery floor (fewest path components probed).
	MinDepth int
	LogLevel string
	// AddonScripts and MissionScripts replace the default entry scripts
	// when non-nil.
	AddonScripts   []string
	MissionScripts []string
	// Aliases maps game path prefixes to absolute directories.
	Aliases map[string]string
	// Path is the settings file that was loaded, empty when none was found.
	Path string
}

// tomlSettings is Settings as it is encoded in sqfindex.toml.
type tomlSettings struct {
	Workers  *int              `toml:"workers"`
	MinDepth *int              `toml:"min_depth"`
	LogLevel string            `toml:"log_level"`
	Defaults *tomlDefaults     `toml:"defaults"`
	Aliases  map[string]string `toml:"aliases"`
}

type tomlDefaults struct {
	Addon   []string `toml:"addon"`
	Mission []string `toml:"mission"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		MinDepth: 1,
		LogLevel: "warn",
		Aliases:  map[string]string{},
	}
}

// Find returns the nearest settings file in start or one of its ancestors,
// or "" when there is none. start may be a file or a directory.
func Find(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load resolves the settings that apply to start.
func Load(start string) (*Settings, error) {
	s := Default()
	envDir := start
	if path := Find(start); path != "" {
		if err := s.loadFile(path); err != nil {
			return nil, err
		}
		envDir = filepath.Dir(path)
	} else if info, err := os.Stat(start); err == nil && !info.IsDir() {
		envDir = filepath.Dir(start)
	}

	// A missing .env is normal; variables already set are never replaced.
	_ = godotenv.Load(filepath.Join(envDir, ".env"))

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) loadFile(path string) error {
	buff, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("settings: read %s: %w", path, err)
	}
	ts := &tomlSettings{}
	if err := toml.Unmarshal(buff, ts); err != nil {
		return fmt.Errorf("settings: parse %s: %w", path, err)
	}

	s.Path = path
	if ts.Workers != nil {
		s.Workers = *ts.Workers
	}
	if ts.MinDepth != nil {
		s.MinDepth = *ts.MinDepth
	}
	if ts.LogLevel != "" {
		s.LogLevel = ts.LogLevel
	}
	if ts.Defaults != nil {
		s.AddonScripts = ts.Defaults.Addon
		s.MissionScripts = ts.Defaults.Mission
	}
	base := filepath.Dir(path)
	for prefix, dir := range ts.Aliases {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		s.Aliases[prefix] = dir
	}
	return nil
}

func (s *Settings) applyEnv() error {
	if raw := strings.TrimSpace(os.Getenv(EnvWorkers)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", EnvWorkers, err)
		}
		s.Workers = n
	}
	if raw := strings.TrimSpace(os.Getenv(EnvMinDepth)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("settings: %s: %w", EnvMinDepth, err)
		}
		s.MinDepth = n
	}
	if raw := strings.TrimSpace(os.Getenv(EnvLogLevel)); raw != "" {
		s.LogLevel = raw
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelWarn, fmt.Errorf("settings: log level: %w", err)
	}
	return level, nil
}

// Logger builds a text logger writing to w at the configured level. An
// invalid level falls back to warn.
func (s *Settings) Logger(w io.Writer) *slog.Logger {
	level, _ := s.Level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
