package policy

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/snippetbox/config"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// defaultDenyList holds dynamic evaluators, raw I/O and process primitives,
// and introspection helpers. Several of them do not exist in Starlark; they
// stay listed so a learner pasting Python gets a policy message rather than
// an undefined-name error.
var defaultDenyList = []string{
	"__import__",
	"breakpoint",
	"compile",
	"delattr",
	"dir",
	"eval",
	"exec",
	"exit",
	"getattr",
	"globals",
	"hasattr",
	"help",
	"input",
	"locals",
	"memoryview",
	"open",
	"quit",
	"setattr",
	"type",
	"vars",
}

// defaultAllowNames are taken from starlark.Universe.
var defaultAllowNames = []string{
	"None", "True", "False",
	"print", "len", "range", "abs", "min", "max",
	"int", "float", "str", "bool", "list", "dict", "tuple", "set",
	"sorted", "reversed", "enumerate", "zip", "any", "all",
	"repr", "chr", "ord",
}

// Catalog is the immutable allow/deny configuration shared by every run
type Catalog struct {
	allow map[string]starlark.Value
	deny  map[string]struct{}
}

// Overrides adjusts a catalog at startup. Deny adds names to the deny-list;
// Disable removes names from the allow-list.
type Overrides struct {
	Deny    []string `yaml:"deny"`
	Disable []string `yaml:"disable"`
}

// NewCatalog builds a catalog from explicit bindings and denied names
func NewCatalog(allow map[string]starlark.Value, deny []string) (*Catalog, error) {
	c := &Catalog{
		allow: make(map[string]starlark.Value, len(allow)),
		deny:  make(map[string]struct{}, len(deny)),
	}

	for name, value := range allow {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid allow-list identifier: %q", name)
		}
		if value == nil {
			return nil, fmt.Errorf("allow-list entry %q has no binding", name)
		}
		c.allow[name] = value
	}

	for _, name := range deny {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid deny-list identifier: %q", name)
		}
		c.deny[name] = struct{}{}
	}

	return c, nil
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	allow := make(map[string]starlark.Value, len(defaultAllowNames)+4)
	for _, name := range defaultAllowNames {
		allow[name] = starlark.Universe[name]
	}
	allow["sum"] = builtinSum
	allow["round"] = builtinRound
	allow["pow"] = builtinPow
	allow["divmod"] = builtinDivmod

	c, err := NewCatalog(allow, defaultDenyList)
	if err != nil {
		panic(fmt.Sprintf("policy: invalid default catalog: %v", err))
	}
	return c
}

// NewFromConfig builds the process catalog: the defaults, then the policy
// file (if any), then the inline overrides from the config.
func NewFromConfig(cfg *config.Config) (*Catalog, error) {
	catalog := DefaultCatalog()

	if cfg.Policy.File != "" {
		fileOverrides, err := LoadOverrides(cfg.Policy.File)
		if err != nil {
			return nil, err
		}
		if catalog, err = catalog.With(fileOverrides); err != nil {
			return nil, err
		}
	}

	return catalog.With(Overrides{
		Deny:    cfg.Policy.Deny,
		Disable: cfg.Policy.Disable,
	})
}

// LoadOverrides reads catalog overrides from a YAML file
func LoadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Overrides{}, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return o, nil
}

// With returns a new catalog with the overrides applied; c is not modified.
func (c *Catalog) With(o Overrides) (*Catalog, error) {
	allow := make(map[string]starlark.Value, len(c.allow))
	for name, value := range c.allow {
		allow[name] = value
	}
	for _, name := range o.Disable {
		delete(allow, name)
	}

	deny := append(c.DeniedNames(), o.Deny...)
	return NewCatalog(allow, deny)
}

// IsAllowed reports whether name is bound inside the sandbox. A denied name
// is never allowed.
func (c *Catalog) IsAllowed(name string) bool {
	if c.IsDenied(name) {
		return false
	}
	_, ok := c.allow[name]
	return ok
}

// IsDenied reports whether name must never appear in accepted code
func (c *Catalog) IsDenied(name string) bool {
	_, ok := c.deny[name]
	return ok
}

// Binding returns the value bound to an allowed name
func (c *Catalog) Binding(name string) (starlark.Value, bool) {
	if !c.IsAllowed(name) {
		return nil, false
	}
	return c.allow[name], true
}

// AllowedNames returns the effective allow-list, sorted
func (c *Catalog) AllowedNames() []string {
	names := make([]string, 0, len(c.allow))
	for name := range c.allow {
		if c.IsAllowed(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DeniedNames returns the deny-list, sorted
func (c *Catalog) DeniedNames() []string {
	names := make([]string, 0, len(c.deny))
	for name := range c.deny {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
