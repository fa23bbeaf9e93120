package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/isdmx/snippetbox/config"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("AllowList", func(t *testing.T) {
		for _, name := range []string{"print", "len", "range", "sum", "round", "True", "None"} {
			assert.True(t, catalog.IsAllowed(name), name)
		}
		for _, name := range []string{"getattr", "fail", "hash", "x"} {
			assert.False(t, catalog.IsAllowed(name), name)
		}
	})

	t.Run("DenyList", func(t *testing.T) {
		for _, name := range []string{"eval", "exec", "open", "__import__", "globals", "getattr", "type"} {
			assert.True(t, catalog.IsDenied(name), name)
		}
		assert.False(t, catalog.IsDenied("print"))
	})

	t.Run("Binding", func(t *testing.T) {
		v, ok := catalog.Binding("len")
		require.True(t, ok)
		assert.Equal(t, starlark.Universe["len"], v)

		_, ok = catalog.Binding("eval")
		assert.False(t, ok)
	})

	t.Run("SortedCopies", func(t *testing.T) {
		allowed := catalog.AllowedNames()
		assert.IsIncreasing(t, allowed)
		assert.Contains(t, allowed, "divmod")

		denied := catalog.DeniedNames()
		assert.IsIncreasing(t, denied)

		denied[0] = "mutated"
		assert.NotContains(t, catalog.DeniedNames(), "mutated")
	})
}

func TestNewCatalog(t *testing.T) {
	t.Run("DenyTakesPrecedence", func(t *testing.T) {
		catalog, err := NewCatalog(map[string]starlark.Value{"len": starlark.Universe["len"]}, []string{"len"})
		require.NoError(t, err)
		assert.True(t, catalog.IsDenied("len"))
		assert.False(t, catalog.IsAllowed("len"))
		assert.Empty(t, catalog.AllowedNames())
	})

	t.Run("InvalidAllowIdentifier", func(t *testing.T) {
		_, err := NewCatalog(map[string]starlark.Value{"not valid": starlark.None}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid allow-list identifier")
	})

	t.Run("NilBinding", func(t *testing.T) {
		_, err := NewCatalog(map[string]starlark.Value{"len": nil}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no binding")
	})

	t.Run("InvalidDenyIdentifier", func(t *testing.T) {
		_, err := NewCatalog(nil, []string{"os.system"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid deny-list identifier")
	})

	t.Run("InputNotRetained", func(t *testing.T) {
		allow := map[string]starlark.Value{"len": starlark.Universe["len"]}
		catalog, err := NewCatalog(allow, nil)
		require.NoError(t, err)

		allow["eval"] = starlark.None
		assert.False(t, catalog.IsAllowed("eval"))
	})
}

func TestCatalogWith(t *testing.T) {
	base := DefaultCatalog()

	derived, err := base.With(Overrides{Deny: []string{"sorted"}, Disable: []string{"zip"}})
	require.NoError(t, err)

	assert.True(t, derived.IsDenied("sorted"))
	assert.False(t, derived.IsAllowed("zip"))
	assert.True(t, derived.IsDenied("eval"))

	// The original catalog is unchanged.
	assert.False(t, base.IsDenied("sorted"))
	assert.True(t, base.IsAllowed("zip"))

	_, err = base.With(Overrides{Deny: []string{"bad name"}})
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("deny:\n  - sorted\n  - reversed\ndisable: [zip]\n"), 0o600))

		o, err := LoadOverrides(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"sorted", "reversed"}, o.Deny)
		assert.Equal(t, []string{"zip"}, o.Disable)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read policy file")
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("deny: {unterminated"), 0o600))

		_, err := LoadOverrides(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse policy file")
	})
}

func TestNewFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deny: [reversed]\n"), 0o600))

	cfg := &config.Config{
		Policy: config.PolicyConfig{
			File:    path,
			Deny:    []string{"sorted"},
			Disable: []string{"zip"},
		},
	}

	catalog, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.True(t, catalog.IsDenied("reversed"))
	assert.True(t, catalog.IsDenied("sorted"))
	assert.False(t, catalog.IsAllowed("zip"))
	assert.True(t, catalog.IsAllowed("print"))

	cfg.Policy.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewFromConfig(cfg)
	require.Error(t, err)
}
