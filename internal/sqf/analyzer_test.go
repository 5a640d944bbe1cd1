package sqf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sqfindex/internal/source"
)

func analyze(t *testing.T, content string, env Environment) *Result {
	t.Helper()
	res, err := Analyze(content, Configuration{FilePath: "/p/fn_test.sqf", BasePath: "/p"}, env)
	require.NoError(t, err)
	require.NotNil(t, res.State)
	return res
}

// spanOf returns the span of the nth (0-based) occurrence of needle.
func spanOf(t *testing.T, content, needle string, nth int) source.Span {
	t.Helper()
	offset := 0
	for i := 0; ; i++ {
		idx := strings.Index(content[offset:], needle)
		require.GreaterOrEqual(t, idx, 0, "occurrence %d of %q", nth, needle)
		if i == nth {
			start := offset + idx
			return source.Span{Start: start, End: start + len(needle)}
		}
		offset += idx + len(needle)
	}
}

func TestAnalyze_ExternalFunctionResolvesToStub(t *testing.T) {
	t.Parallel()
	content := "[1, 2] call PKG_fnc_y;\n"
	env := Environment{}
	env.Bind("PKG_fnc_y", Binding{Origin: Origin{Kind: OriginExternal, Name: "PKG_fnc_y"}, Type: TypeCode})

	res := analyze(t, content, env)

	span := spanOf(t, content, "PKG_fnc_y", 0)
	origin, ok := res.State.Origins[span]
	require.True(t, ok)
	assert.Equal(t, OriginExternal, origin.Kind)
	assert.Equal(t, "PKG_fnc_y", origin.Name)
	assert.Equal(t, TypeCode, res.State.Types[span])
	assert.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Tokens, SemanticToken{Span: span, Class: TokenFunction})
}

func TestAnalyze_UndefinedCallTargetWarns(t *testing.T) {
	t.Parallel()
	res := analyze(t, "[] call PKG_fnc_missing;", nil)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, SeverityWarning, res.Diagnostics[0].Severity)
	assert.Contains(t, res.Diagnostics[0].Message, `"PKG_fnc_missing"`)
}

func TestAnalyze_CaseInsensitiveEnvironment(t *testing.T) {
	t.Parallel()
	env := Environment{}
	env.Bind("PKG_fnc_y", Binding{Origin: Origin{Kind: OriginExternal, Name: "PKG_fnc_y"}, Type: TypeCode})

	res := analyze(t, "[] spawn pkg_FNC_Y;", env)
	assert.Empty(t, res.Diagnostics)
}

func TestAnalyze_Params(t *testing.T) {
	t.Parallel()
	content := `params ["_unit", ["_count", 3], ["_name", "x"], ["_opts", []]];
_count + 1`
	res := analyze(t, content, nil)

	params, ok := res.State.Signature()
	require.True(t, ok)
	assert.Equal(t, []Parameter{
		{Name: "_unit", Type: TypeAnything},
		{Name: "_count", Type: TypeNumber, Optional: true},
		{Name: "_name", Type: TypeString, Optional: true},
		{Name: "_opts", Type: TypeArray, Optional: true},
	}, params)
	assert.Empty(t, res.Diagnostics)

	use := spanOf(t, content, "_count", 1)
	origin, ok := res.State.Origins[use]
	require.True(t, ok)
	assert.Equal(t, OriginLocal, origin.Kind)
	assert.Equal(t, spanOf(t, content, "_count", 0), origin.Span)
	assert.Equal(t, TypeNumber, res.State.Types[use])
}

func TestAnalyze_NoParams(t *testing.T) {
	t.Parallel()
	res := analyze(t, `hint "hello";`, nil)
	params, ok := res.State.Signature()
	assert.False(t, ok)
	assert.Empty(t, params)
}

func TestAnalyze_NestedParamsIgnoredForSignature(t *testing.T) {
	t.Parallel()
	res := analyze(t, `_fn = { params ["_inner"]; _inner }; 1`, nil)
	_, ok := res.State.Signature()
	assert.False(t, ok)
}

func TestAnalyze_ReturnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    Type
	}{
		{"empty", "", TypeNothing},
		{"number", "1;", TypeNumber},
		{"string without semicolon", `private _a = 1; "done"`, TypeString},
		{"boolean", "true", TypeBoolean},
		{"array", "[1, 2, 3]", TypeArray},
		{"code", "{ 1 }", TypeCode},
		{"typed local", "private _n = 5; _n", TypeNumber},
		{"expression", "1 + 2", TypeAnything},
		{"only separators", ";;", TypeNothing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := analyze(t, tt.content, nil)
			assert.Equal(t, tt.want, res.State.ReturnType())
		})
	}
}

func TestAnalyze_LocalBeforeAssignmentWarns(t *testing.T) {
	t.Parallel()
	res := analyze(t, "hint str _late; _late = 1;", nil)

	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, `"_late"`)
}

func TestAnalyze_MagicVariablesAreSilent(t *testing.T) {
	t.Parallel()
	res := analyze(t, "{ hint str [_x, _forEachIndex, _this] } forEach [1];", nil)
	assert.Empty(t, res.Diagnostics)
}

func TestAnalyze_ForLoopVariable(t *testing.T) {
	t.Parallel()
	res := analyze(t, `for "_i" from 0 to 3 do { hint str _i };`, nil)
	assert.Empty(t, res.Diagnostics)
}

func TestAnalyze_PrivateForms(t *testing.T) {
	t.Parallel()
	res := analyze(t, `private "_a"; private ["_b", "_c"]; private _d = []; [_a, _b, _c, _d]`, nil)
	assert.Empty(t, res.Diagnostics)
}

func TestAnalyze_GlobalsAndExports(t *testing.T) {
	t.Parallel()
	content := "PKG_count = 0;\nPKG_handler = { PKG_count };\n[] call PKG_handler;"
	res := analyze(t, content, nil)

	require.Len(t, res.State.Globals, 2)
	assert.Equal(t, "PKG_count", res.State.Globals[0].Name)
	assert.Equal(t, TypeNumber, res.State.Globals[0].Type)
	assert.Equal(t, TypeCode, res.State.Globals[1].Type)
	assert.Empty(t, res.Diagnostics)

	env := res.State.Exports("PKG_fnc_test")
	b, ok := env.Lookup("pkg_count")
	require.True(t, ok)
	assert.Equal(t, OriginFile, b.Origin.Kind)
	assert.Equal(t, "/p/fn_test.sqf", b.Origin.Path)
	assert.Equal(t, spanOf(t, content, "PKG_count", 0), b.Origin.Span)

	fn, ok := env.Lookup("PKG_fnc_test")
	require.True(t, ok)
	assert.Equal(t, TypeCode, fn.Type)
}

func TestAnalyze_GlobalUsedAboveAssignment(t *testing.T) {
	t.Parallel()
	content := "[] call PKG_later;\nPKG_later = { 1 };"
	res := analyze(t, content, nil)

	assert.Empty(t, res.Diagnostics)
	origin, ok := res.State.OriginAt(spanOf(t, content, "PKG_later", 0).Start + 2)
	require.True(t, ok)
	assert.Equal(t, spanOf(t, content, "PKG_later", 1), origin.Span)
}

func TestAnalyze_OriginAtMiss(t *testing.T) {
	t.Parallel()
	res := analyze(t, `hint "x";`, nil)
	_, ok := res.State.OriginAt(1)
	assert.False(t, ok)
}

func TestAnalyze_CompletionsSorted(t *testing.T) {
	t.Parallel()
	env := Environment{}
	env.Bind("PKG_fnc_b", Binding{Origin: Origin{Kind: OriginExternal, Name: "PKG_fnc_b"}, Type: TypeCode})
	res := analyze(t, "private _zeta = 1; PKG_alpha = \"a\";", env)

	labels := make([]string, len(res.Completions))
	for i, c := range res.Completions {
		labels[i] = c.Label
	}
	assert.Equal(t, []string{"_zeta", "PKG_alpha", "PKG_fnc_b"}, labels)
	assert.Equal(t, CompletionFunction, res.Completions[2].Kind)
	assert.Equal(t, CompletionVariable, res.Completions[1].Kind)
}

func TestAnalyze_CompletionLabelFollowsAssignment(t *testing.T) {
	t.Parallel()
	content := "_Count = 1; hint str _count; _other = _COUNT;"

	for range 20 {
		res := analyze(t, content, nil)
		require.Len(t, res.Completions, 2)
		assert.Equal(t, "_Count", res.Completions[0].Label)
		assert.Equal(t, "_other", res.Completions[1].Label)
	}
}

func TestAnalyze_SemanticTokens(t *testing.T) {
	t.Parallel()
	content := `if (true) then { hint "a" };`
	res := analyze(t, content, nil)

	assert.Contains(t, res.Tokens, SemanticToken{Span: spanOf(t, content, "if", 0), Class: TokenKeyword})
	assert.Contains(t, res.Tokens, SemanticToken{Span: spanOf(t, content, "true", 0), Class: TokenKeyword})
	assert.Contains(t, res.Tokens, SemanticToken{Span: spanOf(t, content, `"a"`, 0), Class: TokenString})
}

func TestAnalyze_FatalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		message string
	}{
		{"unterminated string", `hint "oops`, "unterminated string"},
		{"unterminated comment", "/* never closed", "unterminated block comment"},
		{"unclosed bracket", "[1, 2", `unclosed "["`},
		{"stray closer", "1 }", `unexpected "}"`},
		{"mismatched", "(1]", `"(" closed by "]"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Analyze(tt.content, Configuration{}, nil)
			require.Error(t, err)
			var fatal *FatalError
			require.ErrorAs(t, err, &fatal)
			assert.Equal(t, tt.message, fatal.Message)
		})
	}
}

func TestLex_SkipsCommentsAndDirectives(t *testing.T) {
	t.Parallel()
	tokens, err := lex("#include \"script_component.hpp\"\n// line\n/* block */ _a = 'it''s';")
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, "_a", tokens[0].text)
	assert.Equal(t, "it's", tokens[2].stringValue())
}
