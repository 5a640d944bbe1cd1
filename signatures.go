package sqfindex

import (
	"context"
	"sort"

	"github.com/jward/sqfindex/internal/cfgdoc"
	"github.com/jward/sqfindex/internal/sqf"
)

// Signature is the concluded call signature of one declared function.
type Signature struct {
	Name string
	Path string
	// Span is the declaration in Document.
	Span     Span
	Document string
	// Params is nil and HasParams false when the file declares no params.
	Params    []Parameter
	HasParams bool
	Return    sqf.Type
}

// SignatureTable maps lower-cased function names to signatures.
type SignatureTable map[string]Signature

// Lookup finds a signature ignoring case.
func (t SignatureTable) Lookup(name string) (Signature, bool) {
	s, ok := t[cfgdoc.Key(name)]
	return s, ok
}

// Sorted returns the signatures ordered by name.
func (t SignatureTable) Sorted() []Signature {
	out := make([]Signature, 0, len(t))
	for _, s := range t {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return cfgdoc.Key(out[i].Name) < cfgdoc.Key(out[j].Name)
	})
	return out
}

// Signatures analyzes every declared function of roots and collects each
// one's parameter list and return type. Default entry scripts are not
// functions and are skipped. Functions whose file is missing or rejected by
// the analyzer are absent from the table and reported as diagnostics.
func (e *Engine) Signatures(ctx context.Context, roots ...*Root) (SignatureTable, []Diagnostic, error) {
	outcomes, diagnostics, err := e.run(ctx, roots, false)
	if err != nil {
		return nil, nil, err
	}
	declared := map[string]Function{}
	for _, r := range roots {
		for key, fn := range r.Functions {
			if _, ok := declared[key]; !ok {
				if fn.Document == "" {
					fn.Document = r.Document
				}
				declared[key] = fn
			}
		}
	}

	table := SignatureTable{}
	for _, o := range outcomes {
		if o.Result == nil || o.Name == "" {
			continue
		}
		key := cfgdoc.Key(o.Name)
		fn := declared[key]
		params, has := o.Result.State.Signature()
		table[key] = Signature{
			Name:      o.Name,
			Path:      o.Path,
			Span:      fn.Span,
			Document:  fn.Document,
			Params:    params,
			HasParams: has,
			Return:    o.Result.State.ReturnType(),
		}
	}
	return table, diagnostics, nil
}
