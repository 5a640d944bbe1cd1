package sqfindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jward/sqfindex/internal/source"
	"github.com/jward/sqfindex/internal/sqf"
)

// unit is one file to analyze in a pass.
type unit struct {
	// name is the declaring function; empty for default entry scripts.
	name     string
	declared string
	path     string
	// span and document locate the declaration in the configuration document.
	span     source.Span
	document string
	root     *Root
	// optional units are default entry scripts whose absence is expected.
	optional bool
}

// pass holds what every unit of one run shares. Nothing in it is written
// after prepare returns.
type pass struct {
	units   []unit
	env     sqf.Environment
	aliases map[string]string
	// diagnostics found while preparing, before any file is analyzed.
	diagnostics []Diagnostic
}

// run analyzes every unit of roots using a three-phase pipeline:
//
//	Phase A (serial):   Merge function tables, resolve paths, build stubs.
//	Phase B (parallel): Read and analyze each unit in a worker pool.
//	Phase C (serial):   Order outcomes by unit for the caller to merge.
//
// Outcomes are returned in unit order, which is stable for an unchanged
// tree regardless of which worker finished first.
func (e *Engine) run(ctx context.Context, roots []*Root, withDefaults bool) ([]Outcome, []Diagnostic, error) {
	if len(roots) == 0 {
		return nil, nil, ErrNoRoot
	}
	started := time.Now()

	// ---- Phase A: Serial preparation ----
	p := e.prepare(roots, withDefaults)
	if len(p.units) == 0 {
		return nil, p.diagnostics, nil
	}

	// ---- Phase B: Parallel analysis ----
	numWorkers := e.numWorkers(len(p.units))
	e.logger.Info("aggregate.start", "roots", len(roots), "units", len(p.units), "workers", numWorkers)

	workCh := make(chan int, len(p.units))
	for i := range p.units {
		workCh <- i
	}
	close(workCh)

	type result struct {
		idx     int
		outcome Outcome
	}
	resultCh := make(chan result, len(p.units))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- result{idx: idx, outcome: e.process(p.units[idx], p.env, p.aliases)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial collection ----
	outcomes := make([]Outcome, len(p.units))
	for res := range resultCh {
		outcomes[res.idx] = res.outcome
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqfindex: aggregate: %w", err)
	}

	diagnostics := p.diagnostics
	for _, o := range outcomes {
		diagnostics = append(diagnostics, o.Diagnostics...)
	}
	e.logger.Info("aggregate.done", "units", len(p.units), "diagnostics", len(diagnostics), "elapsed", time.Since(started))
	return outcomes, diagnostics, nil
}

// prepare builds the work list. Function names are merged across roots with
// the first root winning a duplicate name. Within a root, units are ordered
// by function key, then default scripts in their configured order.
func (e *Engine) prepare(roots []*Root, withDefaults bool) *pass {
	p := &pass{env: sqf.Environment{}, aliases: map[string]string{}}
	for prefix, dir := range e.aliases {
		p.aliases[prefix] = dir
	}
	for _, r := range roots {
		if r.Prefix != "" {
			p.aliases[r.Prefix] = r.Dir
		}
	}
	resolver := e.newResolver(p.aliases)

	claimed := map[string]bool{}
	for _, r := range roots {
		keys := make([]string, 0, len(r.Functions))
		for key := range r.Functions {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			fn := r.Functions[key]
			if claimed[key] {
				e.logger.Debug("aggregate.shadowed", "function", fn.Name, "root", r.Dir)
				continue
			}
			claimed[key] = true

			doc := fn.Document
			if doc == "" {
				doc = r.Document
			}
			path, err := resolve(resolver, fn.Path, r.Dir)
			if err != nil {
				p.diagnostics = append(p.diagnostics, Diagnostic{
					Message:  fmt.Sprintf("The function %q is defined but its path %q cannot be resolved: %v", fn.Name, fn.Path, err),
					Span:     fn.Span,
					Document: doc,
					Severity: SeverityError,
				})
				continue
			}

			// Stubs stand in for every function whose file resolved; the
			// origin points at the declaration, not the file.
			p.env.Bind(fn.Name, sqf.Binding{
				Origin: sqf.Origin{Kind: sqf.OriginExternal, Name: fn.Name, Path: doc, Span: fn.Span},
				Type:   sqf.TypeCode,
			})
			p.units = append(p.units, unit{
				name:     fn.Name,
				declared: fn.Path,
				path:     path,
				span:     fn.Span,
				document: doc,
				root:     r,
			})
		}

		if !withDefaults {
			continue
		}
		for _, script := range e.defaults[r.Kind] {
			p.units = append(p.units, unit{
				declared: script,
				path:     filepath.Join(r.Dir, filepath.FromSlash(script)),
				root:     r,
				optional: true,
			})
		}
	}
	return p
}

// resolve asks the resolver first and falls back to the declared path taken
// relative to the root when that file exists.
func resolve(r PathResolver, declared, rootDir string) (string, error) {
	path, err := r.Resolve(declared, rootDir)
	if err == nil {
		return path, nil
	}
	rel := strings.TrimLeft(strings.ReplaceAll(declared, `\`, "/"), "/")
	if rel != "" {
		fallback := filepath.Join(rootDir, filepath.FromSlash(rel))
		if info, statErr := os.Stat(fallback); statErr == nil && !info.IsDir() {
			return fallback, nil
		}
	}
	return "", err
}

// process reads and analyzes one unit. It only reads the shared pass data.
func (e *Engine) process(u unit, env sqf.Environment, aliases map[string]string) Outcome {
	out := Outcome{Path: u.path, Name: u.name}
	content, err := os.ReadFile(u.path)
	if err != nil {
		if u.optional {
			return out
		}
		e.logger.Debug("aggregate.missing", "function", u.name, "declared", u.declared, "path", u.path)
		out.Diagnostics = []Diagnostic{{
			Message:  fmt.Sprintf("The function %q is defined but the file %q does not exist", u.name, u.path),
			Span:     u.span,
			Document: u.document,
			Severity: SeverityError,
		}}
		return out
	}
	return e.analyze(u.path, u.name, string(content), u.root, env, aliases)
}

// analyze runs the analyzer and converts its findings. A fatal analyzer
// error becomes the only diagnostic and leaves Result nil.
func (e *Engine) analyze(path, name, content string, root *Root, env sqf.Environment, aliases map[string]string) Outcome {
	out := Outcome{Path: path, Name: name}
	cfg := sqf.Configuration{FilePath: path, Addons: aliases}
	if root != nil {
		cfg.BasePath = root.Dir
	}

	res, err := e.analyzer.Analyze(content, cfg, env)
	if err != nil {
		d := Diagnostic{Message: err.Error(), Document: path, Severity: SeverityError}
		var fatal *sqf.FatalError
		if errors.As(err, &fatal) {
			d.Message = fatal.Message
			d.Span = fatal.Span
		}
		out.Diagnostics = []Diagnostic{d}
		return out
	}
	out.Result = res
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{
			Message:  d.Message,
			Span:     d.Span,
			Document: path,
			Severity: d.Severity,
		})
	}
	return out
}
