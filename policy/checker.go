package policy

import (
	"errors"
	"regexp"
	"strings"

	"go.starlark.net/syntax"
)

// SnippetFilename is the file name snippets are parsed and executed under.
const SnippetFilename = "<snippet>"

// importStatement matches a Python import at the start of a statement. The
// Starlark parser rejects these outright, so they only surface as parse errors.
var importStatement = regexp.MustCompile(`^\s*(?:import\s+([A-Za-z_][\w.]*)|from\s+([\w.]+)\s+import\b)`)

// importKeyword matches the reserved word the parser stopped at
var importKeyword = regexp.MustCompile(`^(?:import|from)\b`)

// FileOptions returns the dialect snippets are written in: Starlark with
// top-level control flow, while loops, recursion, sets and global reassignment.
func FileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// Checker statically validates snippets against a Catalog
type Checker struct {
	catalog *Catalog
}

// NewChecker creates a Checker bound to catalog
func NewChecker(catalog *Catalog) *Checker {
	return &Checker{catalog: catalog}
}

// Check returns the first *Violation found in snippet, or nil if it may run.
func (c *Checker) Check(snippet string) error {
	violations := c.CheckAll(snippet)
	if len(violations) == 0 {
		return nil
	}
	return violations[0]
}

// CheckAll returns every violation in snippet in depth-first, left-to-right
// order. A snippet that does not parse yields exactly one violation.
func (c *Checker) CheckAll(snippet string) (violations []*Violation) {
	defer func() {
		if r := recover(); r != nil {
			violations = []*Violation{newViolation(KindSyntaxInvalid, 0, 0, "unsupported syntax: %v", r)}
		}
	}()

	f, err := FileOptions().Parse(SnippetFilename, snippet, 0)
	if err != nil {
		return []*Violation{parseViolation(snippet, err)}
	}

	w := &walker{
		catalog:  c.catalog,
		notNames: make(map[*syntax.Ident]bool),
	}
	syntax.Walk(f, w.visit)
	return w.violations
}

type walker struct {
	catalog *Catalog
	// Attribute and keyword-argument names are labels, not references.
	notNames   map[*syntax.Ident]bool
	violations []*Violation
}

func (w *walker) visit(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.WhileStmt:
		// syntax.Walk does not descend into while loops.
		syntax.Walk(n.Cond, w.visit)
		for _, stmt := range n.Body {
			syntax.Walk(stmt, w.visit)
		}
		return false

	case *syntax.LoadStmt:
		w.add(KindImportDenied, n.Load, "loading module %q is not allowed", n.ModuleName())

	case *syntax.DotExpr:
		w.notNames[n.Name] = true
		if strings.HasPrefix(n.Name.Name, "__") {
			w.add(KindRestrictedAttributeAccess, n.NamePos, "access to internal attribute %q is not allowed", n.Name.Name)
		}

	case *syntax.CallExpr:
		for _, arg := range n.Args {
			if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				if id, ok := kw.X.(*syntax.Ident); ok {
					w.notNames[id] = true
				}
			}
		}

	case *syntax.Ident:
		if !w.notNames[n] && w.catalog.IsDenied(n.Name) {
			w.add(KindBannedIdentifierUsed, n.NamePos, "use of %q is not allowed", n.Name)
		}
	}
	return true
}

func (w *walker) add(kind ViolationKind, pos syntax.Position, format string, args ...any) {
	w.violations = append(w.violations, newViolation(kind, int(pos.Line), int(pos.Col), format, args...))
}

// parseViolation classifies a parse failure. An import at the failing
// position, or at the start of a statement on the failing line, is reported
// as ImportDenied, anything else as SyntaxInvalid.
func parseViolation(snippet string, err error) *Violation {
	var syntaxErr syntax.Error
	if !errors.As(err, &syntaxErr) {
		return newViolation(KindSyntaxInvalid, 0, 0, "invalid syntax: %v", err)
	}

	line, col := int(syntaxErr.Pos.Line), int(syntaxErr.Pos.Col)
	if module, ok := importAt(snippet, line, col); ok {
		return importViolation(module, line, col)
	}
	if module, ok := importOnLine(snippet, line); ok {
		return importViolation(module, line, 1)
	}
	return newViolation(KindSyntaxInvalid, line, col, "invalid syntax: %s", syntaxErr.Msg)
}

func importViolation(module string, line, col int) *Violation {
	if module == "" {
		return newViolation(KindImportDenied, line, col, "import statements are not allowed")
	}
	return newViolation(KindImportDenied, line, col, "importing module %q is not allowed", module)
}

func snippetLine(snippet string, line int) (string, bool) {
	lines := strings.Split(snippet, "\n")
	if line < 1 || line > len(lines) {
		return "", false
	}
	return lines[line-1], true
}

// importAt reports whether the token at line:col is the import or from keyword.
func importAt(snippet string, line, col int) (string, bool) {
	text, ok := snippetLine(snippet, line)
	if !ok || col < 1 {
		return "", false
	}

	// Columns count runes; fall back to bytes when the two disagree.
	var candidates []string
	if runes := []rune(text); col <= len(runes) {
		candidates = append(candidates, string(runes[col-1:]))
	}
	if col <= len(text) {
		candidates = append(candidates, text[col-1:])
	}

	for _, rest := range candidates {
		if !importKeyword.MatchString(rest) {
			continue
		}
		if m := importStatement.FindStringSubmatch(rest); m != nil {
			return firstNonEmpty(m[1], m[2]), true
		}
		return "", true
	}
	return "", false
}

func importOnLine(snippet string, line int) (string, bool) {
	text, ok := snippetLine(snippet, line)
	if !ok {
		return "", false
	}

	for _, stmt := range strings.Split(text, ";") {
		if m := importStatement.FindStringSubmatch(stmt); m != nil {
			return firstNonEmpty(m[1], m[2]), true
		}
	}
	return "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
