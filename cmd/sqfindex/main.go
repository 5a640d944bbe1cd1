package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/sqfindex"
	"github.com/jward/sqfindex/internal/settings"
)

var (
	flagFormat    string
	flagWorkspace bool
	flagReport    string
	flagDocument  string
)

// stdout and stderr are swapped out by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// errCheckFailed makes `check` exit non-zero after printing its results.
var errCheckFailed = errors.New("check found errors")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sqfindex",
	Short:         "Project-wide analysis for addon and mission scripts",
	Long:          "sqfindex finds the package that owns a script, resolves its declared functions and analyzes every file with the rest of the project in scope.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		errorHandled = false
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	indexCmd.Flags().BoolVar(&flagWorkspace, "workspace", false, "include sibling packages next to the discovered one")
	checkCmd.Flags().BoolVar(&flagWorkspace, "workspace", false, "include sibling packages next to the discovered one")
	checkCmd.Flags().StringVar(&flagReport, "report", "", "write diagnostics and signatures to this SQLite file")

	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(definitionCmd)

	reportCmd.Flags().StringVar(&flagDocument, "document", "", "only show diagnostics for this document")
	rootCmd.AddCommand(reportCmd)
}

var identifyCmd = &cobra.Command{
	Use:   "identify [path]",
	Short: "Show the package that owns a file or directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIdentify,
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Analyze every file of the owning package",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Validate a package and report function signatures",
	Long:  "Analyzes every declared function, prints diagnostics and signatures, and exits non-zero when any error is found.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <offset>",
	Short: "Find where the name at a byte offset is defined",
	Args:  cobra.ExactArgs(2),
	RunE:  runDefinition,
}

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Show the latest run stored by check --report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

// setup resolves the target path and builds an Engine from the settings
// that apply to it.
func setup(args []string) (string, *sqfindex.Engine, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", target, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", nil, fmt.Errorf("path not found: %s", abs)
	}

	s, err := settings.Load(abs)
	if err != nil {
		return "", nil, err
	}
	opts := []sqfindex.Option{
		sqfindex.WithLogger(s.Logger(stderr)),
		sqfindex.WithWorkers(s.Workers),
		sqfindex.WithMinDepth(s.MinDepth),
		sqfindex.WithAliases(s.Aliases),
	}
	if s.AddonScripts != nil {
		opts = append(opts, sqfindex.WithDefaultScripts(sqfindex.Addon, s.AddonScripts...))
	}
	if s.MissionScripts != nil {
		opts = append(opts, sqfindex.WithDefaultScripts(sqfindex.Mission, s.MissionScripts...))
	}
	return abs, sqfindex.New(opts...), nil
}

// probePath turns a directory into a path inside it, so discovery starts at
// the directory itself rather than its parent.
func probePath(target string) string {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return filepath.Join(target, sqfindex.Addon.Document())
	}
	return target
}

// discoverRoots identifies the package owning target and, with
// --workspace, its siblings.
func discoverRoots(ctx context.Context, e *sqfindex.Engine, target string) ([]*sqfindex.Root, error) {
	root, err := e.Identify(probePath(target))
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("no addon or mission found for %s", target)
	}
	if !flagWorkspace {
		return []*sqfindex.Root{root}, nil
	}
	return e.Siblings(ctx, root)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	target, e, err := setup(args)
	if err != nil {
		return outputError("identify", err)
	}
	root, err := e.Identify(probePath(target))
	if err != nil {
		return outputError("identify", err)
	}
	if root == nil {
		return outputResult(CLIResult{Command: "identify"})
	}
	return outputResult(CLIResult{Command: "identify", Results: toCLIRoot(root)})
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	target, e, err := setup(args)
	if err != nil {
		return outputError("index", err)
	}
	roots, err := discoverRoots(ctx, e, target)
	if err != nil {
		return outputError("index", err)
	}
	index, diags, err := e.Index(ctx, roots...)
	if err != nil {
		return outputError("index", err)
	}

	out := CLIIndex{Diagnostics: toCLIDiagnostics(diags)}
	for _, r := range roots {
		out.Roots = append(out.Roots, r.Dir)
	}
	index.Range(func(entry sqfindex.Entry) bool {
		out.Files = append(out.Files, CLIFile{Path: entry.Path, Function: entry.Name})
		return true
	})
	count := len(out.Files)
	return outputResult(CLIResult{Command: "index", Results: out, TotalCount: &count})
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	started := time.Now()
	target, e, err := setup(args)
	if err != nil {
		return outputError("check", err)
	}
	roots, err := discoverRoots(ctx, e, target)
	if err != nil {
		var cfgErr *sqfindex.ConfigError
		if errors.As(err, &cfgErr) {
			// A broken document is a check failure, not a usage error.
			out := CLICheck{Diagnostics: toCLIDiagnostics(cfgErr.Diagnostics()), Errors: len(cfgErr.Errors)}
			if err := outputResult(CLIResult{Command: "check", Results: out}); err != nil {
				return err
			}
			errorHandled = true
			return errCheckFailed
		}
		return outputError("check", err)
	}
	table, diags, err := e.Signatures(ctx, roots...)
	if err != nil {
		return outputError("check", err)
	}

	out := CLICheck{Diagnostics: toCLIDiagnostics(diags)}
	for _, sig := range table.Sorted() {
		out.Signatures = append(out.Signatures, toCLISignature(sig))
	}
	for _, d := range diags {
		if d.Severity == sqfindex.SeverityError {
			out.Errors++
		}
	}

	if flagReport != "" {
		if err := writeReport(flagReport, target, started, len(roots), len(out.Signatures), out); err != nil {
			return outputError("check", err)
		}
	}
	if err := outputResult(CLIResult{Command: "check", Results: out}); err != nil {
		return err
	}
	if out.Errors > 0 {
		errorHandled = true
		return errCheckFailed
	}
	return nil
}

func runDefinition(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	target, e, err := setup(args[:1])
	if err != nil {
		return outputError("definition", err)
	}
	offset, err := strconv.Atoi(args[1])
	if err != nil || offset < 0 {
		return outputError("definition", fmt.Errorf("invalid offset %q", args[1]))
	}
	content, err := os.ReadFile(target)
	if err != nil {
		return outputError("definition", fmt.Errorf("reading %s: %w", target, err))
	}

	root, err := e.Identify(target)
	if err != nil {
		return outputError("definition", err)
	}
	var index *sqfindex.ProjectIndex
	if root != nil {
		if index, _, err = e.Index(ctx, root); err != nil {
			return outputError("definition", err)
		}
	}

	var origin sqfindex.Origin
	found := false
	if index != nil {
		origin, found = index.DefinitionAt(target, offset)
	}
	if !found {
		// Not a declared file: analyze it on its own against the project.
		out := e.AnalyzeFile(root, index, target, string(content))
		if out.Result != nil {
			origin, found = out.Result.State.OriginAt(offset)
		}
	}
	if !found {
		return outputResult(CLIResult{Command: "definition"})
	}
	return outputResult(CLIResult{Command: "definition", Results: toCLILocation(origin, target)})
}

func runReport(cmd *cobra.Command, args []string) error {
	document := flagDocument
	if document != "" {
		abs, err := filepath.Abs(document)
		if err != nil {
			return outputError("report", fmt.Errorf("resolving path %q: %w", document, err))
		}
		document = abs
	}
	out, err := readReport(args[0], document)
	if err != nil {
		return outputError("report", err)
	}
	if out == nil {
		return outputResult(CLIResult{Command: "report"})
	}
	return outputResult(CLIResult{Command: "report", Results: out})
}
