package clones

import (
	"strconv"
	"unicode"
)

// Tokenize splits source text into a language-generic token stream:
// identifiers, numbers, string literals, and punctuation. Whitespace and
// line/block comments are stripped so formatting never affects similarity.
func Tokenize(src string) []string {
	var tokens []string
	i := 0
	n := len(src)

	for i < n {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}

		case c == '#':
			for i < n && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2

		case c == '"' || c == '\'' || c == '`':
			quote := c
			j := i + 1
			for j < n && src[j] != quote {
				if src[j] == '\\' && j+1 < n {
					j++
				}
				j++
			}
			if j < n {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j

		case isIdentStart(rune(c)):
			j := i
			for j < n && isIdentPart(rune(src[j])) {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j

		case c >= '0' && c <= '9':
			j := i
			for j < n && (isIdentPart(rune(src[j])) || src[j] == '.') {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j

		default:
			tokens = append(tokens, string(c))
			i++
		}
	}

	return tokens
}

// keywords shared across the supported languages; kept as keywords during
// identifier normalization so control flow still distinguishes units.
var keywords = map[string]bool{
	"break": true, "case": true, "catch": true, "chan": true, "class": true,
	"const": true, "continue": true, "default": true, "defer": true,
	"do": true, "else": true, "export": true, "extends": true, "finally": true,
	"for": true, "func": true, "function": true, "go": true, "if": true,
	"import": true, "interface": true, "let": true, "map": true, "new": true,
	"nil": true, "null": true, "of": true, "package": true, "range": true,
	"return": true, "select": true, "struct": true, "switch": true,
	"this": true, "throw": true, "try": true, "type": true, "undefined": true,
	"var": true, "void": true, "while": true, "yield": true,
}

// NormalizeIdentifiers replaces each identifier with a positional
// placeholder ("$0", "$1", ...) assigned in first-occurrence order.
// Two units that differ only in identifier names normalize to identical
// streams, which is the type-2 clone signal.
func NormalizeIdentifiers(tokens []string) []string {
	out := make([]string, len(tokens))
	positions := make(map[string]string)

	for i, t := range tokens {
		if isIdentifier(t) && !keywords[t] {
			p, ok := positions[t]
			if !ok {
				p = "$" + strconv.Itoa(len(positions))
				positions[t] = p
			}
			out[i] = p
			continue
		}
		out[i] = t
	}

	return out
}

func isIdentifier(t string) bool {
	if t == "" || !isIdentStart(rune(t[0])) {
		return false
	}
	for _, r := range t {
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
