package pathres

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("// file\n"), 0o644))
}

func TestResolve_RelativeToBase(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	want := filepath.Join(root, "functions", "Core", "fn_init.sqf")
	touch(t, want)

	got, err := New(nil).Resolve(`functions\Core\fn_init.sqf`, root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_CaseInsensitiveSegments(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	want := filepath.Join(root, "Functions", "CORE", "fn_Init.sqf")
	touch(t, want)

	got, err := New(nil).Resolve(`functions\core\FN_INIT.SQF`, root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_MissingFileStillResolves(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	got, err := New(nil).Resolve(`functions\fn_gone.sqf`, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "functions", "fn_gone.sqf"), got)
}

func TestResolve_GamePathThroughAlias(t *testing.T) {
	t.Parallel()
	addon := filepath.Join(t.TempDir(), "main")
	want := filepath.Join(addon, "functions", "fnc_a.sqf")
	touch(t, want)

	r := New(map[string]string{
		`x\pkg\addons\main`: addon,
		`x\pkg`:             t.TempDir(),
	})
	got, err := r.Resolve(`\X\pkg\addons\main\functions\fnc_a.sqf`, "/unused")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_GamePathWithoutLeadingBackslash(t *testing.T) {
	t.Parallel()
	addon := filepath.Join(t.TempDir(), "main")
	want := filepath.Join(addon, "functions", "fn_a.sqf")
	touch(t, want)

	r := New(map[string]string{`x\pkg\addons\main`: addon})
	got, err := r.Resolve(`x\pkg\addons\main\functions\fn_a.sqf`, "/unused")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No prefix matches, so the path stays relative to the root.
	root := t.TempDir()
	got, err = r.Resolve(`x\other\fn_b.sqf`, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "x", "other", "fn_b.sqf"), got)
}

func TestResolve_UnknownPrefix(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Resolve(`\x\other\addons\main\fnc_a.sqf`, t.TempDir())
	require.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), "no addon provides")
}

func TestResolve_EmptyPath(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Resolve("  ", t.TempDir())
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestResolve_RelativeWithoutBase(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Resolve("fn_a.sqf", "")
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestReadPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "x\\pkg\\addons\\main\n", `x\pkg\addons\main`},
		{"key value", "version=1\nprefix=z\\ace\\addons\\common\n", `z\ace\addons\common`},
		{"blank lines", "\n\n  a\\b  \n", `a\b`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, PrefixFile), []byte(tt.content), 0o644))
			assert.Equal(t, tt.want, ReadPrefix(dir))
		})
	}
}

func TestReadPrefix_Missing(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", ReadPrefix(t.TempDir()))
}
