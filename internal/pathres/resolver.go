// Package pathres resolves declared game paths to files on disk.
//
// Declared paths use backslashes and are case-insensitive. A path starting
// with a backslash is a game path (`\x\cba\addons\main\fnc_a.sqf`) and is
// mapped through the addon prefix aliases. A path without the backslash is
// mapped the same way when it starts with a known prefix; anything else is
// relative to the package root.
package pathres

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PrefixFile is the file in an addon root that declares its game path prefix.
const PrefixFile = "$PBOPREFIX$"

// dirCacheSize bounds the number of directory listings one Resolver keeps.
const dirCacheSize = 512

// ErrUnresolved is returned when a declared path cannot be mapped to disk.
var ErrUnresolved = errors.New("path cannot be resolved")

// Resolver maps declared paths to absolute filesystem paths. It is safe for
// concurrent use. Directory listings are cached for the lifetime of the
// Resolver, so create one per pass.
type Resolver struct {
	// prefixes are lower-cased, slash-separated, without leading slash,
	// sorted longest first.
	prefixes []string
	aliases  map[string]string
	dirs     *lru.Cache[string, []string]
}

// New creates a Resolver for the given alias table (game prefix → directory).
func New(aliases map[string]string) *Resolver {
	cache, err := lru.New[string, []string](dirCacheSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(fmt.Sprintf("pathres: %v", err))
	}
	r := &Resolver{
		aliases: make(map[string]string, len(aliases)),
		dirs:    cache,
	}
	for prefix, dir := range aliases {
		key := normalizePrefix(prefix)
		if key == "" {
			continue
		}
		r.aliases[key] = dir
		r.prefixes = append(r.prefixes, key)
	}
	sort.Slice(r.prefixes, func(i, j int) bool {
		if len(r.prefixes[i]) != len(r.prefixes[j]) {
			return len(r.prefixes[i]) > len(r.prefixes[j])
		}
		return r.prefixes[i] < r.prefixes[j]
	})
	return r
}

// Resolve maps declared to an absolute path. baseDir is the package root used
// for relative paths. The returned path may not exist; missing files are a
// read-time concern, not a resolution failure.
func (r *Resolver) Resolve(declared, baseDir string) (string, error) {
	p := strings.TrimSpace(strings.ReplaceAll(declared, `\`, "/"))
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnresolved)
	}

	trimmed := strings.TrimLeft(p, "/")
	dir, rest, ok := r.matchPrefix(trimmed)
	switch {
	case ok:
	case strings.HasPrefix(p, "/"):
		return "", fmt.Errorf("%w: no addon provides %q", ErrUnresolved, declared)
	case baseDir == "":
		return "", fmt.Errorf("%w: relative path %q without a package root", ErrUnresolved, declared)
	default:
		dir, rest = baseDir, p
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	return r.matchCase(abs, rest), nil
}

// matchPrefix finds the longest alias prefix of path, which must not start
// with a slash.
func (r *Resolver) matchPrefix(path string) (dir, rest string, ok bool) {
	lower := strings.ToLower(path)
	for _, prefix := range r.prefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix+"/") {
			return r.aliases[prefix], strings.TrimLeft(path[len(prefix):], "/"), true
		}
	}
	return "", "", false
}

// matchCase joins rest onto dir, replacing each segment with an on-disk
// entry of the same name ignoring case when the exact name does not exist.
// Segments with no match are kept verbatim.
func (r *Resolver) matchCase(dir, rest string) string {
	current := dir
	for _, segment := range strings.Split(rest, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			current = filepath.Dir(current)
			continue
		}
		exact := filepath.Join(current, segment)
		if _, err := os.Lstat(exact); err == nil {
			current = exact
			continue
		}
		current = filepath.Join(current, r.lookupFold(current, segment))
	}
	return current
}

func (r *Resolver) lookupFold(dir, name string) string {
	entries, ok := r.dirs.Get(dir)
	if !ok {
		des, err := os.ReadDir(dir)
		if err != nil {
			return name
		}
		entries = make([]string, len(des))
		for i, de := range des {
			entries[i] = de.Name()
		}
		r.dirs.Add(dir, entries)
	}
	for _, entry := range entries {
		if strings.EqualFold(entry, name) {
			return entry
		}
	}
	return name
}

// ReadPrefix returns the game path prefix declared in dir's $PBOPREFIX$ file,
// or "" when the file is absent. Only the first non-empty line is used;
// `key=value` lines (some packers write `prefix=...`) are honoured.
func ReadPrefix(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, PrefixFile))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			if !strings.EqualFold(strings.TrimSpace(key), "prefix") {
				continue
			}
			line = strings.TrimSpace(value)
		}
		return line
	}
	return ""
}

func normalizePrefix(prefix string) string {
	p := strings.ReplaceAll(strings.TrimSpace(prefix), `\`, "/")
	return strings.ToLower(strings.Trim(p, "/"))
}
