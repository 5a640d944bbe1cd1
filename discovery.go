package sqfindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/jward/sqfindex/internal/pathres"
)

// IdentifyAddon finds the addon that owns path: the nearest ancestor
// directory with a config.cpp that parses.
func (e *Engine) IdentifyAddon(path string) (*Root, error) {
	return e.Discover(path, Addon)
}

// IdentifyMission finds the mission that owns path.
func (e *Engine) IdentifyMission(path string) (*Root, error) {
	return e.Discover(path, Mission)
}

// Identify tries addon discovery first, then mission discovery. When neither
// finds a root the addon error (if any) is returned, otherwise the mission
// error.
func (e *Engine) Identify(path string) (*Root, error) {
	addon, addonErr := e.IdentifyAddon(path)
	if addon != nil {
		return addon, nil
	}
	mission, missionErr := e.IdentifyMission(path)
	if mission != nil {
		return mission, nil
	}
	if addonErr != nil {
		return nil, addonErr
	}
	return nil, missionErr
}

// Discover walks upward from the directory containing path looking for the
// document of the given kind. It returns (nil, nil) when no enclosing package
// exists. The nearest document that exists but does not parse ends the
// search with a *ConfigError; directories above it are not considered.
func (e *Engine) Discover(path string, kind PackageKind) (*Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sqfindex: discover %s: %w", path, err)
	}
	for dir := filepath.Dir(abs); depth(dir) >= e.minDepth; {
		root, err := e.probe(dir, kind)
		if err != nil {
			e.logger.Debug("discover.broken", "document", filepath.Join(dir, kind.Document()), "err", err)
			return nil, err
		}
		if root != nil {
			e.logger.Debug("discover.root", "dir", dir, "kind", kind.String(), "functions", len(root.Functions))
			return root, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, nil
}

// probe checks a single directory. A missing or unreadable document is a
// miss; a document with parse errors is a *ConfigError.
func (e *Engine) probe(dir string, kind PackageKind) (*Root, error) {
	doc := filepath.Join(dir, kind.Document())
	functions, errs, err := e.parser.Parse(doc)
	if err != nil {
		return nil, nil
	}
	if len(errs) > 0 {
		return nil, &ConfigError{Document: doc, Errors: errs}
	}
	if functions == nil {
		functions = Functions{}
	}
	root := &Root{Dir: dir, Kind: kind, Document: doc, Functions: functions}
	if kind == Addon {
		root.Prefix = pathres.ReadPrefix(dir)
	}
	return root, nil
}

// depth counts the path components of an absolute directory; "/" is 0.
func depth(dir string) int {
	dir = filepath.ToSlash(strings.TrimPrefix(dir, filepath.VolumeName(dir)))
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return 0
	}
	return strings.Count(dir, "/") + 1
}

// Siblings lists the packages next to root: every immediate subdirectory of
// root's parent that holds a parseable document of the same kind. Files,
// hidden directories, directories matched by the container's .gitignore, and
// directories whose document is missing or broken are skipped. root itself
// is always part of the result, which is sorted by directory.
func (e *Engine) Siblings(ctx context.Context, root *Root) ([]*Root, error) {
	if root == nil {
		return nil, ErrNoRoot
	}
	container := filepath.Dir(filepath.Dir(root.Document))
	entries, err := os.ReadDir(container)
	if err != nil {
		return nil, fmt.Errorf("sqfindex: list siblings of %s: %w", root.Dir, err)
	}
	gi := loadGitignore(container)

	var dirs []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if gi != nil && (gi.MatchesPath(name) || gi.MatchesPath(name+"/")) {
			e.logger.Debug("siblings.skip", "dir", name, "reason", "gitignore")
			continue
		}
		dirs = append(dirs, filepath.Join(container, name))
	}

	found := make([]*Root, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, dir := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := e.probe(dir, root.Kind)
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				e.logger.Warn("siblings.skip", "dir", dir, "reason", "broken document", "err", err)
				return nil
			}
			if r == nil {
				e.logger.Debug("siblings.skip", "dir", dir, "reason", "no document")
				return nil
			}
			found[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sqfindex: siblings of %s: %w", root.Dir, err)
	}

	roots := []*Root{root}
	for _, r := range found {
		if r != nil && r.Dir != root.Dir {
			roots = append(roots, r)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Dir < roots[j].Dir })
	return roots, nil
}

func loadGitignore(dir string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
