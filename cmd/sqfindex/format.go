package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

var (
	errorStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	warnStyle  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	infoStyle  = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	errorColor = pterm.FgRed
	warnColor  = pterm.FgYellow
	pathColor  = pterm.FgLightGreen
)

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(stdout, result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintln(stderr, errorStyle.Sprint(" Error ")+errorColor.Sprint(" "+err.Error()))
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIRoot:
		formatRootText(w, v)
	case CLIIndex:
		formatIndexText(w, v)
	case CLICheck:
		formatCheckText(w, v)
	case *CLIReport:
		fmt.Fprintf(w, "run %d  %s  %s  %d package(s), %d file(s)\n",
			v.Run.ID, v.Run.StartedAt.Format(time.RFC3339), pathColor.Sprint(v.Run.Workspace), v.Run.Roots, v.Run.Files)
		formatCheckText(w, CLICheck{Signatures: v.Signatures, Diagnostics: v.Diagnostics, Errors: v.Errors})
	case CLILocation:
		fmt.Fprintf(w, "%s:%d:%d\n", v.File, v.StartLine, v.StartCol)
	case nil:
		// Nothing found.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatRootText(w io.Writer, r CLIRoot) {
	fmt.Fprintln(w, infoStyle.Sprint(" "+r.Kind+" ")+" "+pathColor.Sprint(r.Dir))
	if r.Prefix != "" {
		fmt.Fprintf(w, "prefix: %s\n", r.Prefix)
	}
	if len(r.Functions) == 0 {
		return
	}
	data := pterm.TableData{{"FUNCTION", "PATH", "LINE"}}
	for _, fn := range r.Functions {
		data = append(data, []string{fn.Name, fn.Path, fmt.Sprint(fn.Line)})
	}
	renderTable(w, data)
}

func formatIndexText(w io.Writer, idx CLIIndex) {
	for _, f := range idx.Files {
		if f.Function != "" {
			fmt.Fprintf(w, "%s  %s\n", f.Path, f.Function)
		} else {
			fmt.Fprintln(w, f.Path)
		}
	}
	formatDiagnosticsText(w, idx.Diagnostics)
	fmt.Fprintf(w, "\n%d file(s) in %d package(s), %d diagnostic(s)\n", len(idx.Files), len(idx.Roots), len(idx.Diagnostics))
}

func formatCheckText(w io.Writer, c CLICheck) {
	if len(c.Signatures) > 0 {
		data := pterm.TableData{{"FUNCTION", "PARAMS", "RETURNS"}}
		for _, sig := range c.Signatures {
			data = append(data, []string{sig.Name, formatParams(sig), sig.Return})
		}
		renderTable(w, data)
	}
	formatDiagnosticsText(w, c.Diagnostics)
	if c.Errors > 0 {
		fmt.Fprintln(w, errorStyle.Sprintf(" %d error(s) ", c.Errors))
	}
}

func formatParams(sig CLISignature) string {
	if !sig.HasParams {
		return "-"
	}
	parts := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		s := p.Name + ": " + p.Type
		if p.Optional {
			s += "?"
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		tag, color := errorStyle.Sprint(" error "), errorColor
		if d.Severity == "warning" {
			tag, color = warnStyle.Sprint(" warning "), warnColor
		}
		loc := fmt.Sprintf("%s:%d:%d", filepath.ToSlash(d.Document), d.StartLine, d.StartCol)
		fmt.Fprintln(w, tag+" "+loc+" "+color.Sprint(d.Message))
	}
}

func renderTable(w io.Writer, data pterm.TableData) {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		for _, row := range data {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}
	fmt.Fprintln(w, out)
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
