package sqfindex

import (
	"errors"
	"log/slog"
	"runtime"
)

// ErrNoRoot is returned by passes that are given no package root.
var ErrNoRoot = errors.New("sqfindex: no package root")

// DefaultAddonScripts are the entry scripts analyzed for every addon when
// present, relative to the addon root.
var DefaultAddonScripts = []string{
	"XEH_preInit.sqf",
	"XEH_postInit.sqf",
	"XEH_preStart.sqf",
}

// DefaultMissionScripts are the event scripts the engine runs for a mission
// when present, relative to the mission root.
var DefaultMissionScripts = []string{
	"init.sqf",
	"initServer.sqf",
	"initPlayerLocal.sqf",
	"initPlayerServer.sqf",
	"onPlayerRespawn.sqf",
	"onPlayerKilled.sqf",
}

// Engine discovers package roots and runs analysis passes over them. An
// Engine holds no per-pass state and is safe for concurrent use.
type Engine struct {
	parser      ConfigParser
	newResolver ResolverFactory
	analyzer    Analyzer
	logger      *slog.Logger

	// workers bounds the analysis pool; 0 means runtime.NumCPU().
	workers int
	// minDepth is the fewest path components a directory must have to be
	// probed during upward discovery.
	minDepth int

	aliases  map[string]string
	defaults map[PackageKind][]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of files analyzed concurrently. n <= 0
// restores the default of one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithMinDepth stops upward discovery at directories with fewer than n path
// components. The default of 1 never probes the filesystem root.
func WithMinDepth(n int) Option {
	return func(e *Engine) {
		e.minDepth = n
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConfigParser replaces the configuration document parser.
func WithConfigParser(p ConfigParser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithResolverFactory replaces the path resolver.
func WithResolverFactory(f ResolverFactory) Option {
	return func(e *Engine) {
		e.newResolver = f
	}
}

// WithAnalyzer replaces the per-file analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(e *Engine) {
		e.analyzer = a
	}
}

// WithAliases adds game path prefixes on top of those declared by the
// discovered roots' $PBOPREFIX$ files. Roots win on conflict.
func WithAliases(aliases map[string]string) Option {
	return func(e *Engine) {
		for prefix, dir := range aliases {
			e.aliases[prefix] = dir
		}
	}
}

// WithDefaultScripts replaces the optional entry scripts for one package kind.
func WithDefaultScripts(kind PackageKind, scripts ...string) Option {
	return func(e *Engine) {
		e.defaults[kind] = scripts
	}
}

// New creates an Engine with the built-in parser, resolver and analyzer.
func New(opts ...Option) *Engine {
	e := &Engine{
		parser:      defaultParser,
		newResolver: defaultResolver,
		analyzer:    defaultAnalyzer,
		logger:      slog.New(slog.DiscardHandler),
		minDepth:    1,
		aliases:     map[string]string{},
		defaults: map[PackageKind][]string{
			Addon:   DefaultAddonScripts,
			Mission: DefaultMissionScripts,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) numWorkers(units int) int {
	n := e.workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(min(n, units), 1)
}
