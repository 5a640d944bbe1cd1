// Package sqf is a small single-file analyzer for the scripting dialect.
//
// It tokenizes one script, tracks where every variable and function
// reference comes from, infers literal types, and extracts the declared
// parameter list and return type. Other files are never read: functions
// defined elsewhere are supplied through an Environment.
package sqf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/sqfindex/internal/source"
)

// Type is the inferred value kind of an expression.
type Type string

const (
	TypeAnything Type = "Anything"
	TypeNothing  Type = "Nothing"
	TypeNumber   Type = "Number"
	TypeString   Type = "String"
	TypeBoolean  Type = "Boolean"
	TypeArray    Type = "Array"
	TypeCode     Type = "Code"
)

// OriginKind says where a referenced name is defined.
type OriginKind int

const (
	// OriginLocal is a definition in the analyzed file.
	OriginLocal OriginKind = iota
	// OriginFile is a definition at a known location in another file.
	OriginFile
	// OriginExternal is a declared function whose file has not been analyzed.
	OriginExternal
)

func (k OriginKind) String() string {
	switch k {
	case OriginLocal:
		return "local"
	case OriginFile:
		return "file"
	default:
		return "external"
	}
}

// Origin is the definition a reference points at.
type Origin struct {
	Kind OriginKind
	Name string
	// Path is the defining file; empty for OriginLocal.
	Path string
	// Span locates the definition inside Path (or the analyzed file).
	Span source.Span
}

// Binding is one name visible to a file before its own definitions.
type Binding struct {
	Origin Origin
	Type   Type
}

// Environment maps lower-cased names to bindings.
type Environment map[string]Binding

// Bind adds a binding under name's lower-cased key.
func (e Environment) Bind(name string, b Binding) {
	e[strings.ToLower(name)] = b
}

// Lookup finds a binding ignoring case.
func (e Environment) Lookup(name string) (Binding, bool) {
	b, ok := e[strings.ToLower(name)]
	return b, ok
}

// Parameter is one entry of a `params [...]` declaration.
type Parameter struct {
	Name     string
	Type     Type
	Optional bool
}

// Global is a global variable assigned in the analyzed file.
type Global struct {
	Name string
	Span source.Span
	Type Type
}

// State is everything the analyzer concluded about one file.
type State struct {
	Path string
	// Origins maps the span of each resolved reference to its definition.
	Origins map[source.Span]Origin
	// Types maps the span of each typed reference or definition to its type.
	Types   map[source.Span]Type
	Globals []Global

	params    []Parameter
	hasParams bool
	returns   Type
}

// Signature returns the parameter list of the file's top-level params
// declaration, and false when the file declares none.
func (s *State) Signature() ([]Parameter, bool) {
	return s.params, s.hasParams
}

// ReturnType is the inferred type of the file's final statement.
func (s *State) ReturnType() Type {
	return s.returns
}

// OriginAt returns the origin of the reference covering offset.
func (s *State) OriginAt(offset int) (Origin, bool) {
	for span, origin := range s.Origins {
		if span.Contains(offset) {
			return origin, true
		}
	}
	return Origin{}, false
}

// Exports returns the bindings this file contributes to other files: every
// global it assigns and, when function is non-empty, the function itself.
func (s *State) Exports(function string) Environment {
	env := Environment{}
	for _, g := range s.Globals {
		env.Bind(g.Name, Binding{
			Origin: Origin{Kind: OriginFile, Name: g.Name, Path: s.Path, Span: g.Span},
			Type:   g.Type,
		})
	}
	if function != "" {
		env.Bind(function, Binding{
			Origin: Origin{Kind: OriginFile, Name: function, Path: s.Path},
			Type:   TypeCode,
		})
	}
	return env
}

// TokenClass is the semantic category of a token location.
type TokenClass string

const (
	TokenLocal    TokenClass = "local"
	TokenGlobal   TokenClass = "global"
	TokenFunction TokenClass = "function"
	TokenKeyword  TokenClass = "keyword"
	TokenString   TokenClass = "string"
	TokenNumber   TokenClass = "number"
)

// SemanticToken is a classified location; rendering belongs to the caller.
type SemanticToken struct {
	Span  source.Span
	Class TokenClass
}

// CompletionKind separates variables from callable code in completions.
type CompletionKind string

const (
	CompletionVariable CompletionKind = "variable"
	CompletionFunction CompletionKind = "function"
)

// CompletionItem is one name offered for completion.
type CompletionItem struct {
	Label  string
	Kind   CompletionKind
	Detail string
}

func sortCompletions(items []CompletionItem) {
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Label) < strings.ToLower(items[j].Label)
	})
}

// Severity of an analyzer diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a non-fatal finding in the analyzed file.
type Diagnostic struct {
	Message  string
	Span     source.Span
	Severity Severity
}

// FatalError means the file could not be analyzed at all.
type FatalError struct {
	Message string
	Span    source.Span
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Span)
}

// Configuration describes the file being analyzed.
type Configuration struct {
	FilePath string
	BasePath string
	// Addons maps game path prefixes to directories.
	Addons map[string]string
}

// Result is a successful analysis.
type Result struct {
	State       *State
	Tokens      []SemanticToken
	Completions []CompletionItem
	Diagnostics []Diagnostic
}
