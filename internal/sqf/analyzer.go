package sqf

import (
	"fmt"
	"strings"

	"github.com/jward/sqfindex/internal/source"
)

// keywords are the control-flow commands highlighted as keywords. Every other
// unknown identifier is treated as a command or an engine-provided global.
var keywords = map[string]bool{
	"private": true, "params": true, "call": true, "spawn": true, "if": true,
	"then": true, "else": true, "exitwith": true, "while": true, "do": true,
	"for": true, "from": true, "to": true, "step": true, "foreach": true,
	"switch": true, "case": true, "default": true, "true": true, "false": true,
	"nil": true, "with": true, "try": true, "catch": true, "throw": true,
	"waituntil": true, "breakout": true, "breakto": true, "scopename": true,
}

// magicLocals are provided by the engine inside loops, event handlers and
// spawned code.
var magicLocals = map[string]bool{
	"_this": true, "_x": true, "_y": true, "_foreachindex": true,
	"_thisscript": true, "_exception": true, "_thiseventhandler": true,
	"_thisfsm": true, "_time": true,
}

type local struct {
	// name is spelled as at the latest assignment.
	name string
	span source.Span
	typ  Type
}

type analysis struct {
	cfg    Configuration
	env    Environment
	tokens []token
	state  *State

	locals  map[string]local
	globals map[string]Global

	semantic    []SemanticToken
	diagnostics []Diagnostic
}

// Analyze runs the analyzer over one file. env supplies every name defined
// outside the file. A *FatalError is returned when the content cannot be
// tokenized; otherwise all findings are diagnostics on the Result.
func Analyze(content string, cfg Configuration, env Environment) (*Result, error) {
	tokens, err := lex(content)
	if err != nil {
		return nil, err
	}
	a := &analysis{
		cfg:    cfg,
		env:    env,
		tokens: tokens,
		state: &State{
			Path:    cfg.FilePath,
			Origins: map[source.Span]Origin{},
			Types:   map[source.Span]Type{},
			returns: TypeNothing,
		},
		locals:  map[string]local{},
		globals: map[string]Global{},
	}
	a.collectGlobals()
	a.walk()
	a.state.returns = a.returnType()

	return &Result{
		State:       a.state,
		Tokens:      a.semantic,
		Completions: a.completions(),
		Diagnostics: a.diagnostics,
	}, nil
}

func (a *analysis) warn(span source.Span, format string, args ...any) {
	a.diagnostics = append(a.diagnostics, Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
		Severity: SeverityWarning,
	})
}

func (a *analysis) mark(span source.Span, class TokenClass) {
	a.semantic = append(a.semantic, SemanticToken{Span: span, Class: class})
}

func (a *analysis) at(i int) (token, bool) {
	if i < 0 || i >= len(a.tokens) {
		return token{}, false
	}
	return a.tokens[i], true
}

// isAssignment reports whether tokens[i] is the target of `name = ...`.
func (a *analysis) isAssignment(i int) bool {
	next, ok := a.at(i + 1)
	return ok && next.is("=")
}

// collectGlobals records every global assignment first so that references
// above the assignment still resolve.
func (a *analysis) collectGlobals() {
	for i, t := range a.tokens {
		if t.kind != tokIdent || keywords[strings.ToLower(t.text)] || !a.isAssignment(i) {
			continue
		}
		key := strings.ToLower(t.text)
		if _, seen := a.globals[key]; seen {
			continue
		}
		g := Global{Name: t.text, Span: t.span, Type: a.literalTypeAt(i + 2)}
		a.globals[key] = g
		a.state.Globals = append(a.state.Globals, g)
	}
}

func (a *analysis) walk() {
	depth := 0
	for i := 0; i < len(a.tokens); i++ {
		t := a.tokens[i]
		switch t.kind {
		case tokOpen:
			depth++
		case tokClose:
			depth--
		case tokString:
			a.mark(t.span, TokenString)
		case tokNumber:
			a.mark(t.span, TokenNumber)
		case tokLocal:
			a.localRef(i)
		case tokIdent:
			word := strings.ToLower(t.text)
			switch {
			case word == "private":
				a.mark(t.span, TokenKeyword)
				i = a.private(i)
			case word == "params":
				a.mark(t.span, TokenKeyword)
				i = a.params(i, depth == 0)
			case word == "for":
				a.mark(t.span, TokenKeyword)
				if next, ok := a.at(i + 1); ok && next.kind == tokString {
					a.defineLocal(next.stringValue(), next.valueSpan(), TypeNumber)
					a.mark(next.span, TokenString)
					i++
				}
			case keywords[word]:
				a.mark(t.span, TokenKeyword)
			default:
				a.globalRef(i)
			}
		}
	}
}

func (a *analysis) defineLocal(name string, span source.Span, typ Type) {
	if !strings.HasPrefix(name, "_") {
		return
	}
	a.locals[strings.ToLower(name)] = local{name: name, span: span, typ: typ}
	a.state.Origins[span] = Origin{Kind: OriginLocal, Name: name, Span: span}
	a.state.Types[span] = typ
	a.mark(span, TokenLocal)
}

func (a *analysis) localRef(i int) {
	t := a.tokens[i]
	key := strings.ToLower(t.text)
	if a.isAssignment(i) {
		a.defineLocal(t.text, t.span, a.literalTypeAt(i+2))
		return
	}
	a.mark(t.span, TokenLocal)
	if l, ok := a.locals[key]; ok {
		a.state.Origins[t.span] = Origin{Kind: OriginLocal, Name: t.text, Span: l.span}
		a.state.Types[t.span] = l.typ
		return
	}
	if magicLocals[key] {
		return
	}
	a.warn(t.span, "Local variable %q is used before it is assigned", t.text)
}

func (a *analysis) globalRef(i int) {
	t := a.tokens[i]
	key := strings.ToLower(t.text)
	prev, _ := a.at(i - 1)
	called := prev.isWord("call") || prev.isWord("spawn")

	if g, ok := a.globals[key]; ok {
		a.state.Origins[t.span] = Origin{Kind: OriginLocal, Name: g.Name, Span: g.Span}
		a.state.Types[t.span] = g.Type
		if g.Type == TypeCode || called {
			a.mark(t.span, TokenFunction)
		} else {
			a.mark(t.span, TokenGlobal)
		}
		return
	}
	if b, ok := a.env.Lookup(t.text); ok {
		a.state.Origins[t.span] = b.Origin
		a.state.Types[t.span] = b.Type
		if b.Type == TypeCode {
			a.mark(t.span, TokenFunction)
		} else {
			a.mark(t.span, TokenGlobal)
		}
		return
	}
	if called {
		a.mark(t.span, TokenFunction)
		a.warn(t.span, "Function %q is not defined in this project", t.text)
	}
}

// private handles `private _x = ...`, `private "_x"` and `private ["_a", "_b"]`.
// It returns the index of the last consumed token.
func (a *analysis) private(i int) int {
	next, ok := a.at(i + 1)
	if !ok {
		return i
	}
	switch {
	case next.kind == tokLocal:
		typ := TypeNothing
		if a.isAssignment(i + 1) {
			typ = a.literalTypeAt(i + 3)
		}
		a.defineLocal(next.text, next.span, typ)
		return i + 1
	case next.kind == tokString:
		a.defineLocal(next.stringValue(), next.valueSpan(), TypeNothing)
		a.mark(next.span, TokenString)
		return i + 1
	case next.is("["):
		j := i + 2
		for ; j < len(a.tokens) && !a.tokens[j].is("]"); j++ {
			if t := a.tokens[j]; t.kind == tokString {
				a.defineLocal(t.stringValue(), t.valueSpan(), TypeNothing)
				a.mark(t.span, TokenString)
			}
		}
		return j
	}
	return i
}

// params handles `params ["_a", ["_b", default]]`. When top is true the
// declaration becomes the file's signature (the first one wins).
func (a *analysis) params(i int, top bool) int {
	next, ok := a.at(i + 1)
	if !ok || !next.is("[") {
		return i
	}
	var params []Parameter
	depth := 0
	j := i + 1
	for ; j < len(a.tokens); j++ {
		t := a.tokens[j]
		if t.kind == tokOpen {
			depth++
			if depth == 2 && t.is("[") {
				p, end := a.paramSpec(j)
				params = append(params, p...)
				j = end
				depth--
			}
			continue
		}
		if t.kind == tokClose {
			depth--
			if depth == 0 {
				break
			}
			continue
		}
		if depth == 1 && t.kind == tokString {
			name := t.stringValue()
			a.defineLocal(name, t.valueSpan(), TypeAnything)
			a.mark(t.span, TokenString)
			params = append(params, Parameter{Name: name, Type: TypeAnything})
		}
	}
	if top && !a.state.hasParams {
		a.state.params = params
		a.state.hasParams = true
	}
	return j
}

// paramSpec reads `["_name", default, ...]` starting at the opening bracket
// and returns the index of its closing bracket.
func (a *analysis) paramSpec(open int) ([]Parameter, int) {
	end := a.matching(open)
	nameTok, ok := a.at(open + 1)
	if !ok || nameTok.kind != tokString {
		return nil, end
	}
	name := nameTok.stringValue()
	typ := TypeAnything
	optional := false
	if comma, ok := a.at(open + 2); ok && comma.is(",") && open+3 < end {
		optional = true
		typ = a.literalTypeAt(open + 3)
	}
	a.defineLocal(name, nameTok.valueSpan(), typ)
	a.mark(nameTok.span, TokenString)
	return []Parameter{{Name: name, Type: typ, Optional: optional}}, end
}

// matching returns the index of the bracket closing tokens[open].
func (a *analysis) matching(open int) int {
	depth := 0
	for j := open; j < len(a.tokens); j++ {
		switch a.tokens[j].kind {
		case tokOpen:
			depth++
		case tokClose:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(a.tokens) - 1
}

// literalTypeAt infers the type of the expression starting at tokens[i]
// when it is a single literal; anything more complex is TypeAnything.
func (a *analysis) literalTypeAt(i int) Type {
	t, ok := a.at(i)
	if !ok {
		return TypeNothing
	}
	end := i
	if t.kind == tokOpen {
		end = a.matching(i)
	}
	if next, ok := a.at(end + 1); ok && !next.is(";") && !next.is(",") && next.kind != tokClose {
		return TypeAnything
	}
	return a.tokenType(t)
}

func (a *analysis) tokenType(t token) Type {
	switch t.kind {
	case tokNumber:
		return TypeNumber
	case tokString:
		return TypeString
	case tokOpen:
		switch t.text {
		case "[":
			return TypeArray
		case "{":
			return TypeCode
		}
	case tokLocal:
		if l, ok := a.locals[strings.ToLower(t.text)]; ok {
			return l.typ
		}
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true", "false":
			return TypeBoolean
		case "nil":
			return TypeNothing
		}
		if g, ok := a.globals[strings.ToLower(t.text)]; ok {
			return g.Type
		}
	}
	return TypeAnything
}

// returnType is the type of the last non-empty top-level statement.
func (a *analysis) returnType() Type {
	start, end := -1, -1
	depth := 0
	stmtStart := 0
	for j, t := range a.tokens {
		switch {
		case t.kind == tokOpen:
			depth++
		case t.kind == tokClose:
			depth--
		case depth == 0 && t.kind == tokSeparator:
			if j > stmtStart {
				start, end = stmtStart, j-1
			}
			stmtStart = j + 1
		}
	}
	if stmtStart < len(a.tokens) {
		start, end = stmtStart, len(a.tokens)-1
	}
	if start < 0 {
		return TypeNothing
	}
	first := a.tokens[start]
	if first.kind == tokOpen {
		if a.matching(start) == end {
			return a.tokenType(first)
		}
		return TypeAnything
	}
	if start == end {
		return a.tokenType(first)
	}
	return TypeAnything
}

func (a *analysis) completions() []CompletionItem {
	seen := map[string]bool{}
	var items []CompletionItem
	add := func(label string, typ Type) {
		key := strings.ToLower(label)
		if seen[key] {
			return
		}
		seen[key] = true
		kind := CompletionVariable
		if typ == TypeCode {
			kind = CompletionFunction
		}
		items = append(items, CompletionItem{Label: label, Kind: kind, Detail: string(typ)})
	}
	for _, l := range a.locals {
		add(l.name, l.typ)
	}
	for _, g := range a.state.Globals {
		add(g.Name, g.Type)
	}
	for _, b := range a.env {
		add(b.Origin.Name, b.Type)
	}
	sortCompletions(items)
	return items
}
