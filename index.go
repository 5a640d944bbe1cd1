package sqfindex

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jward/sqfindex/internal/sqf"
)

// ProjectIndex maps resolved file paths to analysis results. It is safe for
// concurrent use.
type ProjectIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewProjectIndex returns an empty index.
func NewProjectIndex() *ProjectIndex {
	return &ProjectIndex{entries: map[string]Entry{}}
}

// Put stores entry under its cleaned path, replacing any previous entry for
// the same file. When two declared functions point at one file the later
// Put wins; callers merge in a fixed order so the winner is stable.
func (x *ProjectIndex) Put(entry Entry) {
	entry.Path = filepath.Clean(entry.Path)
	x.mu.Lock()
	x.entries[entry.Path] = entry
	x.mu.Unlock()
}

// Get returns the entry for path.
func (x *ProjectIndex) Get(path string) (Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entry, ok := x.entries[filepath.Clean(path)]
	return entry, ok
}

// Len is the number of indexed files.
func (x *ProjectIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Paths returns every indexed path in sorted order.
func (x *ProjectIndex) Paths() []string {
	x.mu.RLock()
	paths := make([]string, 0, len(x.entries))
	for path := range x.entries {
		paths = append(paths, path)
	}
	x.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Range calls fn for each entry in path order until fn returns false. The
// index may be modified from fn.
func (x *ProjectIndex) Range(fn func(Entry) bool) {
	for _, path := range x.Paths() {
		entry, ok := x.Get(path)
		if !ok {
			continue
		}
		if !fn(entry) {
			return
		}
	}
}

// DefinitionAt returns the definition of the reference at offset in path.
func (x *ProjectIndex) DefinitionAt(path string, offset int) (Origin, bool) {
	entry, ok := x.Get(path)
	if !ok || entry.State == nil {
		return Origin{}, false
	}
	return entry.State.OriginAt(offset)
}

// Completions returns the completion items computed for path.
func (x *ProjectIndex) Completions(path string) []CompletionItem {
	entry, ok := x.Get(path)
	if !ok {
		return nil
	}
	return entry.Completions
}

// Environment collects the globals and declared functions of every entry,
// for analyzing a file against the whole project. Entries are visited in
// path order and the first definition of a name wins.
func (x *ProjectIndex) Environment() sqf.Environment {
	env := sqf.Environment{}
	x.Range(func(entry Entry) bool {
		if entry.State == nil {
			return true
		}
		for key, b := range entry.State.Exports(entry.Name) {
			if _, ok := env[key]; !ok {
				env[key] = b
			}
		}
		return true
	})
	return env
}

// Index analyzes every declared function of roots, plus each root's default
// entry scripts when present, and returns the resulting index with all
// diagnostics. Per-file failures only produce diagnostics; an error is
// returned only for no roots or a cancelled context.
func (e *Engine) Index(ctx context.Context, roots ...*Root) (*ProjectIndex, []Diagnostic, error) {
	outcomes, diagnostics, err := e.run(ctx, roots, true)
	if err != nil {
		return nil, nil, err
	}
	index := NewProjectIndex()
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		index.Put(Entry{
			Path:        o.Path,
			Name:        o.Name,
			State:       o.Result.State,
			Tokens:      o.Result.Tokens,
			Completions: o.Result.Completions,
		})
	}
	return index, diagnostics, nil
}

// AnalyzeFile analyzes one file that need not be declared anywhere, such as
// a script open in an editor. Its environment holds stubs for root's
// functions overlaid with the globals and functions of every index entry.
// root and index may each be nil.
func (e *Engine) AnalyzeFile(root *Root, index *ProjectIndex, path, content string) Outcome {
	env := sqf.Environment{}
	aliases := map[string]string{}
	if root != nil {
		p := e.prepare([]*Root{root}, false)
		env = p.env
		aliases = p.aliases
	}
	if index != nil {
		for key, b := range index.Environment() {
			env[key] = b
		}
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	return e.analyze(path, "", content, root, env, aliases)
}
