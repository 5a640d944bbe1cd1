package sqfindex

import (
	"fmt"
	"strings"

	"github.com/jward/sqfindex/internal/cfgdoc"
	"github.com/jward/sqfindex/internal/source"
	"github.com/jward/sqfindex/internal/sqf"
)

// Public type aliases for internal types that appear in the Engine API.
// These are Go type aliases (=), so no conversion is needed by callers.

type Span = source.Span
type Function = cfgdoc.Function
type Functions = cfgdoc.Functions
type Severity = sqf.Severity
type State = sqf.State
type Origin = sqf.Origin
type Parameter = sqf.Parameter
type SemanticToken = sqf.SemanticToken
type CompletionItem = sqf.CompletionItem

const (
	SeverityError   = sqf.SeverityError
	SeverityWarning = sqf.SeverityWarning
)

// PackageKind selects which configuration document marks a package root.
type PackageKind int

const (
	// Addon packages are rooted at a directory containing config.cpp.
	Addon PackageKind = iota
	// Mission packages are rooted at a directory containing description.ext.
	Mission
)

// Document is the configuration document filename for the kind.
func (k PackageKind) Document() string {
	if k == Mission {
		return "description.ext"
	}
	return "config.cpp"
}

func (k PackageKind) String() string {
	if k == Mission {
		return "mission"
	}
	return "addon"
}

// Root is a discovered package: its directory, the configuration document
// that marks it, and the function table declared there.
type Root struct {
	Dir  string
	Kind PackageKind
	// Document is the absolute path of config.cpp or description.ext.
	Document  string
	Functions Functions
	// Prefix is the game path prefix from $PBOPREFIX$, empty when absent.
	Prefix string
}

// Diagnostic is a finding attributed to one document.
type Diagnostic struct {
	Message string
	Span    Span
	// Document is the absolute path of the file the span belongs to.
	Document string
	Severity Severity
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%s: %s: %s", d.Document, d.Span, d.Severity, d.Message)
}

// ConfigError is returned by discovery when the nearest configuration
// document exists but does not parse.
type ConfigError struct {
	Document string
	Errors   []cfgdoc.Error
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("sqfindex: %s does not parse: %s", e.Document, strings.Join(msgs, "; "))
}

// Diagnostics converts the parse errors into diagnostics on the documents
// they occurred in.
func (e *ConfigError) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(e.Errors))
	for i, err := range e.Errors {
		doc := err.Document
		if doc == "" {
			doc = e.Document
		}
		out[i] = Diagnostic{Message: err.Message, Span: err.Span, Document: doc, Severity: SeverityError}
	}
	return out
}

// Outcome is the result of processing one file. Result is nil when the file
// could not be read or the analyzer rejected it; Diagnostics explains why.
type Outcome struct {
	Path string
	// Name is the declaring function, empty for default entry scripts and
	// loose files.
	Name        string
	Result      *sqf.Result
	Diagnostics []Diagnostic
}

// Entry is one file in a ProjectIndex.
type Entry struct {
	Path        string
	Name        string
	State       *State
	Tokens      []SemanticToken
	Completions []CompletionItem
}
