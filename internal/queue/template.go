package queue

import (
	"fmt"
	"strings"
)

// LogTemplate is a log path with one designated substitution point for the
// array task index. Splitting at the first placeholder occurrence (rather
// than doing a global textual replace at expansion time) keeps a placeholder
// token that coincidentally reappears later in the path from being rewritten.
type LogTemplate struct {
	raw     string
	varName string // "" for non-array jobs
	prefix  string
	suffix  string
}

// NewLogTemplate validates that varName (when non-empty) occurs in path and
// returns the split template. An array job whose log path carries no
// placeholder has no distinguishable per-task destination and is rejected.
func NewLogTemplate(path, varName string) (LogTemplate, error) {
	if varName == "" {
		return LogTemplate{raw: path}, nil
	}
	idx := strings.Index(path, varName)
	if idx < 0 {
		return LogTemplate{}, NewUsageError("log path %q does not contain the array placeholder %q: %v",
			path, varName, ErrAmbiguousFanOut)
	}
	return LogTemplate{
		raw:     path,
		varName: varName,
		prefix:  path[:idx],
		suffix:  path[idx+len(varName):],
	}, nil
}

// Raw returns the unexpanded template text.
func (t LogTemplate) Raw() string { return t.raw }

// Var returns the placeholder token, "" for non-array templates.
func (t LogTemplate) Var() string { return t.varName }

// Expand substitutes idx at the designated point. Templates without a
// placeholder return the path unchanged.
func (t LogTemplate) Expand(idx string) string {
	if t.varName == "" {
		return t.raw
	}
	return t.prefix + idx + t.suffix
}

// ExpandInt is Expand for a numeric task index.
func (t LogTemplate) ExpandInt(idx int) string {
	return t.Expand(fmt.Sprintf("%d", idx))
}

// SubstituteTokens replaces every occurrence of varName in each command token
// with repl. Substitution is confined to the user command argv; it never
// touches resolved scheduler flags.
func SubstituteTokens(tokens []string, varName, repl string) []string {
	if varName == "" {
		return tokens
	}
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = strings.ReplaceAll(tok, varName, repl)
	}
	return out
}
