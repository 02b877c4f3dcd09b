// Package diagnostics defines MochaScript diagnostic types for lex, parse,
// validation and runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thomasrohde/mocha/go/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex      = "E_LEX"
	EParse    = "E_PARSE"
	EType     = "E_TYPE"
	EName     = "E_NAME"
	EIndex    = "E_INDEX"
	EZeroDiv  = "E_ZERO_DIV"
	EBudget   = "E_BUDGET"
	EUnbound  = "E_UNBOUND"
	EDupParam = "E_DUP_PARAM"
	EIO       = "E_IO"
	EConfig   = "E_CONFIG"
)

// errorNames maps codes to the user-facing error class names.
var errorNames = map[string]string{
	ELex:      "LexError",
	EParse:    "ParseError",
	EType:     "TypeError",
	EName:     "NameError",
	EIndex:    "IndexError",
	EZeroDiv:  "ZeroDivisionError",
	EBudget:   "BudgetError",
	EUnbound:  "NameError",
	EDupParam: "ParseError",
	EIO:       "IOError",
	EConfig:   "ConfigError",
}

// ErrorName returns the error class name for a diagnostic code, e.g.
// "TypeError" for E_TYPE. Unknown codes are returned unchanged.
func ErrorName(code string) string {
	if name, ok := errorNames[code]; ok {
		return name
	}
	return code
}

// Diagnostic represents a lex, parse, validation, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	out := fmt.Sprintf("%s[%s]: %s\n  --> %s", ErrorName(d.Code), d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
