package sandbox

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/isdmx/snippetbox/policy"
)

// Namespace is the set of predeclared bindings one snippet run can see.
// It is owned by a single run and never reused.
type Namespace struct {
	globals starlark.StringDict
	allowed []string
}

// BuildNamespace creates a fresh namespace holding only the catalog's allowed
// bindings. Starlark resolves names missing from the predeclared set against
// its universe, so every other universe name is shadowed by a builtin that
// fails when called.
func BuildNamespace(catalog *policy.Catalog) Namespace {
	allowed := catalog.AllowedNames()
	globals := make(starlark.StringDict, len(starlark.Universe))

	for _, name := range allowed {
		value, _ := catalog.Binding(name)
		globals[name] = value
	}

	for name := range starlark.Universe {
		if _, ok := globals[name]; !ok {
			globals[name] = unavailable(name)
		}
	}

	return Namespace{globals: globals, allowed: allowed}
}

// Globals returns the predeclared bindings passed to the interpreter
func (n Namespace) Globals() starlark.StringDict {
	return n.globals
}

// Has reports whether name is bound to an allowed value
func (n Namespace) Has(name string) bool {
	i := sort.SearchStrings(n.allowed, name)
	return i < len(n.allowed) && n.allowed[i] == name
}

// Names returns the allowed names, sorted
func (n Namespace) Names() []string {
	return append([]string(nil), n.allowed...)
}

func unavailable(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return nil, fmt.Errorf("%s is not available in the sandbox", name)
	})
}
