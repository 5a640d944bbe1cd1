package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jward/sqfindex/internal/report"
)

// writeReport appends the check results as a new run in the SQLite file at
// path, creating it when needed.
func writeReport(path, workspace string, started time.Time, roots, files int, c CLICheck) error {
	s, err := report.NewStore(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	diags := make([]report.Diagnostic, len(c.Diagnostics))
	for i, d := range c.Diagnostics {
		diags[i] = report.Diagnostic{
			Document: d.Document,
			Start:    d.Start,
			End:      d.End,
			Line:     d.StartLine,
			Col:      d.StartCol,
			Severity: d.Severity,
			Message:  d.Message,
		}
	}
	sigs := make([]report.Signature, len(c.Signatures))
	for i, sig := range c.Signatures {
		sigs[i] = report.Signature{
			Name:      sig.Name,
			Path:      sig.Path,
			Document:  sig.Document,
			HasParams: sig.HasParams,
			Return:    sig.Return,
		}
		for _, p := range sig.Params {
			sigs[i].Params = append(sigs[i].Params, report.Param{Name: p.Name, Type: p.Type, Optional: p.Optional})
		}
	}

	run := &report.Run{Workspace: workspace, StartedAt: started, Roots: roots, Files: files}
	if _, err := s.CommitRun(run, diags, sigs); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// readReport loads the latest run stored at path. With document set only
// that document's diagnostics are returned. A report with no runs yields nil.
func readReport(path, document string) (*CLIReport, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("report not found: %s", path)
	}
	s, err := report.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	defer s.Close()

	run, err := s.LatestRun()
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	if run == nil {
		return nil, nil
	}
	var diags []report.Diagnostic
	if document != "" {
		diags, err = s.DiagnosticsByDocument(run.ID, document)
	} else {
		diags, err = s.DiagnosticsByRun(run.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	sigs, err := s.SignaturesByRun(run.ID)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	out := &CLIReport{Run: CLIRun{
		ID:        run.ID,
		Workspace: run.Workspace,
		StartedAt: run.StartedAt,
		Roots:     run.Roots,
		Files:     run.Files,
	}}
	for _, d := range diags {
		out.Diagnostics = append(out.Diagnostics, CLIDiagnostic{
			Document:  d.Document,
			StartLine: d.Line,
			StartCol:  d.Col,
			Start:     d.Start,
			End:       d.End,
			Severity:  d.Severity,
			Message:   d.Message,
		})
		if d.Severity == "error" {
			out.Errors++
		}
	}
	for _, sig := range sigs {
		cs := CLISignature{Name: sig.Name, Path: sig.Path, Document: sig.Document, HasParams: sig.HasParams, Return: sig.Return}
		for _, p := range sig.Params {
			cs.Params = append(cs.Params, CLIParam{Name: p.Name, Type: p.Type, Optional: p.Optional})
		}
		out.Signatures = append(out.Signatures, cs)
	}
	return out, nil
}
