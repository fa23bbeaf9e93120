package policy

import "fmt"

// ViolationKind classifies why a snippet was rejected
type ViolationKind string

const (
	KindSyntaxInvalid             ViolationKind = "syntax_invalid"
	KindImportDenied              ViolationKind = "import_denied"
	KindRestrictedAttributeAccess ViolationKind = "restricted_attribute_access"
	KindBannedIdentifierUsed      ViolationKind = "banned_identifier_used"
)

// Violation is a pre-execution rejection. Line and Col are 1-based and zero
// when the location is unknown.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
	Line    int           `json:"line,omitempty"`
	Col     int           `json:"col,omitempty"`
}

func (v *Violation) Error() string {
	if v.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", v.Line, v.Col, v.Message)
	}
	return v.Message
}

// Title is a short human-readable label for the violation kind
func (k ViolationKind) Title() string {
	switch k {
	case KindSyntaxInvalid:
		return "Syntax error"
	case KindImportDenied:
		return "Import not allowed"
	case KindRestrictedAttributeAccess:
		return "Restricted attribute"
	case KindBannedIdentifierUsed:
		return "Forbidden name"
	default:
		return "Policy violation"
	}
}

func newViolation(kind ViolationKind, line, col int, format string, args ...any) *Violation {
	return &Violation{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Col:     col,
	}
}
