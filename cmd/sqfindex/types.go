package main

import (
	"os"
	"sort"
	"time"

	"github.com/jward/sqfindex"
	"github.com/jward/sqfindex/internal/source"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIRoot is a discovered package.
type CLIRoot struct {
	Dir       string        `json:"dir"`
	Kind      string        `json:"kind"`
	Document  string        `json:"document"`
	Prefix    string        `json:"prefix,omitempty"`
	Functions []CLIFunction `json:"functions"`
}

// CLIFunction is one declared function of a package.
type CLIFunction struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Document string `json:"document"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

// CLIIndex summarizes an index pass.
type CLIIndex struct {
	Roots       []string        `json:"roots"`
	Files       []CLIFile       `json:"files"`
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
}

// CLIFile is one indexed file.
type CLIFile struct {
	Path     string `json:"path"`
	Function string `json:"function,omitempty"`
}

// CLIDiagnostic is a diagnostic with 1-based positions.
type CLIDiagnostic struct {
	Document  string `json:"document"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// CLICheck is the result of a check pass.
type CLICheck struct {
	Signatures  []CLISignature  `json:"signatures"`
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
	Errors      int             `json:"errors"`
}

// CLIRun describes a stored check run.
type CLIRun struct {
	ID        int64     `json:"id"`
	Workspace string    `json:"workspace"`
	StartedAt time.Time `json:"started_at"`
	Roots     int       `json:"roots"`
	Files     int       `json:"files"`
}

// CLIReport is a check run read back from a report file.
type CLIReport struct {
	Run         CLIRun          `json:"run"`
	Signatures  []CLISignature  `json:"signatures"`
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
	Errors      int             `json:"errors"`
}

// CLISignature is one function's concluded signature.
type CLISignature struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Document  string     `json:"document"`
	HasParams bool       `json:"has_params"`
	Params    []CLIParam `json:"params,omitempty"`
	Return    string     `json:"return"`
}

// CLIParam is one parameter of a signature.
type CLIParam struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// CLILocation is a definition site.
type CLILocation struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// docCache reads each document at most once while converting positions.
type docCache map[string]string

func (c docCache) position(doc string, offset int) (line, col int) {
	content, ok := c[doc]
	if !ok {
		data, err := os.ReadFile(doc)
		if err != nil {
			return 0, 0
		}
		content = string(data)
		c[doc] = content
	}
	line, col = source.Position(content, offset)
	return line + 1, col + 1
}

func toCLIRoot(r *sqfindex.Root) CLIRoot {
	out := CLIRoot{Dir: r.Dir, Kind: r.Kind.String(), Document: r.Document, Prefix: r.Prefix}
	docs := docCache{}
	for _, fn := range r.Functions {
		doc := fn.Document
		if doc == "" {
			doc = r.Document
		}
		line, col := docs.position(doc, fn.Span.Start)
		out.Functions = append(out.Functions, CLIFunction{
			Name: fn.Name, Path: fn.Path, Document: doc, Line: line, Col: col,
		})
	}
	sort.Slice(out.Functions, func(i, j int) bool { return out.Functions[i].Name < out.Functions[j].Name })
	return out
}

func toCLIDiagnostics(diags []sqfindex.Diagnostic) []CLIDiagnostic {
	docs := docCache{}
	out := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		startLine, startCol := docs.position(d.Document, d.Span.Start)
		endLine, endCol := docs.position(d.Document, d.Span.End)
		out[i] = CLIDiagnostic{
			Document:  d.Document,
			StartLine: startLine,
			StartCol:  startCol,
			EndLine:   endLine,
			EndCol:    endCol,
			Start:     d.Span.Start,
			End:       d.Span.End,
			Severity:  d.Severity.String(),
			Message:   d.Message,
		}
	}
	return out
}

func toCLISignature(sig sqfindex.Signature) CLISignature {
	out := CLISignature{Name: sig.Name, Path: sig.Path, Document: sig.Document, HasParams: sig.HasParams, Return: string(sig.Return)}
	for _, p := range sig.Params {
		out.Params = append(out.Params, CLIParam{Name: p.Name, Type: string(p.Type), Optional: p.Optional})
	}
	return out
}

// toCLILocation converts an origin found in file. Local origins live in file
// itself.
func toCLILocation(origin sqfindex.Origin, file string) CLILocation {
	path := origin.Path
	if path == "" {
		path = file
	}
	docs := docCache{}
	startLine, startCol := docs.position(path, origin.Span.Start)
	endLine, endCol := docs.position(path, origin.Span.End)
	return CLILocation{
		Name:      origin.Name,
		Kind:      origin.Kind.String(),
		File:      path,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   endLine,
		EndCol:    endCol,
	}
}
