package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sqfindex/internal/report"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const testConfig = `class CfgFunctions {
    class PKG {
        class Core {
            file = "functions";
            class x {};
            class y {};
        };
    };
};
`

const testFnX = "params [\"_a\"];\n[_a] call PKG_fnc_y;\n"

func newAddon(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "addons", "main")
	writeFile(t, filepath.Join(dir, "config.cpp"), testConfig)
	writeFile(t, filepath.Join(dir, "functions", "fn_x.sqf"), testFnX)
	writeFile(t, filepath.Join(dir, "functions", "fn_y.sqf"), "params [[\"_n\", 0]];\n_n\n")
	return dir
}

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = os.Stdout, os.Stderr })

	flagFormat, flagWorkspace, flagReport, flagDocument = "json", false, "", ""
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func decode[T any](t *testing.T, out string) (CLIResult, T) {
	t.Helper()
	var envelope struct {
		CLIResult
		Results json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	var results T
	if len(envelope.Results) > 0 && string(envelope.Results) != "null" {
		require.NoError(t, json.Unmarshal(envelope.Results, &results))
	}
	return envelope.CLIResult, results
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
}

func TestProbePath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "config.cpp"), probePath(dir))
	file := writeFile(t, filepath.Join(dir, "a.sqf"), "")
	assert.Equal(t, file, probePath(file))
}

func TestIdentifyCmd_JSON(t *testing.T) {
	dir := newAddon(t)

	out, err := execute(t, "identify", dir)
	require.NoError(t, err)
	result, root := decode[CLIRoot](t, out)
	assert.Equal(t, "identify", result.Command)
	assert.Equal(t, dir, root.Dir)
	assert.Equal(t, "addon", root.Kind)
	require.Len(t, root.Functions, 2)
	assert.Equal(t, "PKG_fnc_x", root.Functions[0].Name)
	assert.Equal(t, 5, root.Functions[0].Line)
}

func TestIdentifyCmd_MissingPath(t *testing.T) {
	out, err := execute(t, "identify", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errorHandled)
	result, _ := decode[CLIRoot](t, out)
	assert.Contains(t, result.Error, "path not found")
}

func TestIndexCmd_Text(t *testing.T) {
	dir := newAddon(t)

	out, err := execute(t, "--format", "text", "index", filepath.Join(dir, "functions", "fn_x.sqf"))
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "functions", "fn_x.sqf")+"  PKG_fnc_x")
	assert.Contains(t, out, "2 file(s) in 1 package(s), 0 diagnostic(s)")
}

func TestIndexCmd_Workspace(t *testing.T) {
	dir := newAddon(t)
	other := filepath.Join(filepath.Dir(dir), "other")
	writeFile(t, filepath.Join(other, "config.cpp"), "class CfgPatches {};\n")
	writeFile(t, filepath.Join(other, "XEH_preInit.sqf"), "[] call PKG_fnc_x;\n")

	out, err := execute(t, "index", "--workspace", dir)
	require.NoError(t, err)
	result, idx := decode[CLIIndex](t, out)
	require.NotNil(t, result.TotalCount)
	assert.Equal(t, 3, *result.TotalCount)
	assert.Equal(t, []string{dir, other}, idx.Roots)
	assert.Empty(t, idx.Diagnostics)
}

func TestCheckCmd_Clean(t *testing.T) {
	dir := newAddon(t)

	out, err := execute(t, "check", dir)
	require.NoError(t, err)
	_, check := decode[CLICheck](t, out)
	assert.Zero(t, check.Errors)
	require.Len(t, check.Signatures, 2)
	y := check.Signatures[1]
	assert.Equal(t, "PKG_fnc_y", y.Name)
	assert.Equal(t, "Number", y.Return)
	assert.Equal(t, []CLIParam{{Name: "_n", Type: "Number", Optional: true}}, y.Params)
}

func TestCheckCmd_FailsAndWritesReport(t *testing.T) {
	dir := newAddon(t)
	writeFile(t, filepath.Join(dir, "config.cpp"), strings.Replace(testConfig, "class y {};", "class y {};\n            class gone {};", 1))
	dbPath := filepath.Join(t.TempDir(), "report.db")

	out, err := execute(t, "check", "--report", dbPath, dir)
	require.ErrorIs(t, err, errCheckFailed)
	_, check := decode[CLICheck](t, out)
	assert.Equal(t, 1, check.Errors)
	require.Len(t, check.Diagnostics, 1)
	assert.Equal(t, filepath.Join(dir, "config.cpp"), check.Diagnostics[0].Document)
	assert.Equal(t, 7, check.Diagnostics[0].StartLine)

	s, err := report.NewStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, dir, run.Workspace)
	diags, err := s.DiagnosticsByRun(run.ID)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "error", diags[0].Severity)
	sigs, err := s.SignaturesByRun(run.ID)
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
}

func TestReportCmd_ShowsLatestRun(t *testing.T) {
	dir := newAddon(t)
	writeFile(t, filepath.Join(dir, "config.cpp"), strings.Replace(testConfig, "class y {};", "class y {};\n            class gone {};", 1))
	dbPath := filepath.Join(t.TempDir(), "report.db")
	_, err := execute(t, "check", "--report", dbPath, dir)
	require.ErrorIs(t, err, errCheckFailed)

	out, err := execute(t, "report", dbPath)
	require.NoError(t, err)
	result, rep := decode[CLIReport](t, out)
	assert.Equal(t, "report", result.Command)
	assert.Equal(t, dir, rep.Run.Workspace)
	assert.Equal(t, 1, rep.Run.Roots)
	assert.Equal(t, 1, rep.Errors)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, 7, rep.Diagnostics[0].StartLine)
	require.Len(t, rep.Signatures, 2)
	assert.Equal(t, "PKG_fnc_x", rep.Signatures[0].Name)
	assert.Equal(t, []CLIParam{{Name: "_a", Type: "Anything"}}, rep.Signatures[0].Params)

	out, err = execute(t, "report", "--document", filepath.Join(dir, "functions", "fn_x.sqf"), dbPath)
	require.NoError(t, err)
	_, rep = decode[CLIReport](t, out)
	assert.Empty(t, rep.Diagnostics)
	assert.Len(t, rep.Signatures, 2)

	out, err = execute(t, "--format", "text", "report", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run 1")
	assert.Contains(t, out, "1 error(s)")
}

func TestReportCmd_MissingFile(t *testing.T) {
	out, err := execute(t, "report", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	result, _ := decode[CLIReport](t, out)
	assert.Contains(t, result.Error, "report not found")
}

func TestCheckCmd_BrokenConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "main")
	writeFile(t, filepath.Join(dir, "config.cpp"), "class CfgFunctions {\n")

	out, err := execute(t, "--format", "text", "check", dir)
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "config.cpp:")
	assert.Contains(t, out, "error(s)")
}

func TestDefinitionCmd(t *testing.T) {
	dir := newAddon(t)
	file := filepath.Join(dir, "functions", "fn_x.sqf")
	offset := strings.Index(testFnX, "PKG_fnc_y")

	out, err := execute(t, "definition", file, strconv.Itoa(offset))
	require.NoError(t, err)
	_, loc := decode[CLILocation](t, out)
	assert.Equal(t, "PKG_fnc_y", loc.Name)
	assert.Equal(t, "external", loc.Kind)
	assert.Equal(t, filepath.Join(dir, "config.cpp"), loc.File)
	assert.Equal(t, 6, loc.StartLine)
}

func TestDefinitionCmd_LocalInLooseScript(t *testing.T) {
	dir := t.TempDir()
	content := "private _count = 1;\nhint str _count;\n"
	file := writeFile(t, filepath.Join(dir, "loose.sqf"), content)

	out, err := execute(t, "--format", "text", "definition", file, strconv.Itoa(strings.LastIndex(content, "_count")))
	require.NoError(t, err)
	assert.Equal(t, file+":1:9\n", out)
}

func TestDefinitionCmd_BadOffset(t *testing.T) {
	dir := newAddon(t)
	_, err := execute(t, "definition", filepath.Join(dir, "functions", "fn_x.sqf"), "abc")
	require.Error(t, err)
}
