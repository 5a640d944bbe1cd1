package sqfindex

import (
	"github.com/jward/sqfindex/internal/cfgdoc"
	"github.com/jward/sqfindex/internal/pathres"
	"github.com/jward/sqfindex/internal/sqf"
)

// ConfigParser reads a configuration document. A non-nil error means the
// document is absent or unreadable and the search should move on; parse
// errors mean the document exists but is broken.
type ConfigParser interface {
	Parse(path string) (Functions, []cfgdoc.Error, error)
}

// ConfigParserFunc adapts a function to ConfigParser.
type ConfigParserFunc func(path string) (Functions, []cfgdoc.Error, error)

func (f ConfigParserFunc) Parse(path string) (Functions, []cfgdoc.Error, error) {
	return f(path)
}

// PathResolver maps a declared path to an absolute path. baseDir is the
// package root used for relative paths.
type PathResolver interface {
	Resolve(declared, baseDir string) (string, error)
}

// ResolverFactory creates the resolver for one pass from the alias table
// (game path prefix to directory).
type ResolverFactory func(aliases map[string]string) PathResolver

// Analyzer analyzes one file against an environment of names defined
// elsewhere. A *sqf.FatalError means the file could not be analyzed.
type Analyzer interface {
	Analyze(content string, cfg sqf.Configuration, env sqf.Environment) (*sqf.Result, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(content string, cfg sqf.Configuration, env sqf.Environment) (*sqf.Result, error)

func (f AnalyzerFunc) Analyze(content string, cfg sqf.Configuration, env sqf.Environment) (*sqf.Result, error) {
	return f(content, cfg, env)
}

var (
	defaultParser   ConfigParser    = ConfigParserFunc(cfgdoc.ParseFile)
	defaultAnalyzer Analyzer        = AnalyzerFunc(sqf.Analyze)
	defaultResolver ResolverFactory = func(aliases map[string]string) PathResolver {
		return pathres.New(aliases)
	}
)
