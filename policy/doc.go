// Package policy decides what a snippet may do before it is ever run.
//
// A Catalog is the immutable, process-wide allow-list of bindings visible
// inside the sandbox plus the deny-list of identifiers that must never appear
// in accepted code. A Checker parses a snippet with the Starlark parser and
// walks the syntax tree depth-first, reporting module loads, access to
// double-underscore attributes and references to denied identifiers as a
// *Violation.
//
// Denied names are matched by exact spelling. Aliasing through an allowed
// binding is not detected.
//
// Usage:
//
//	catalog := policy.DefaultCatalog()
//	checker := policy.NewChecker(catalog)
//	if err := checker.Check("import os"); err != nil {
//	    var v *policy.Violation
//	    if errors.As(err, &v) {
//	        fmt.Println(v.Kind, v.Message)
//	    }
//	}
package policy
