package sqf

import (
	"strings"

	"github.com/jward/sqfindex/internal/source"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokLocal           // identifier starting with an underscore
	tokNumber
	tokString
	tokOperator
	tokOpen  // ( [ {
	tokClose // ) ] }
	tokSeparator
)

type token struct {
	kind tokenKind
	text string
	span source.Span
}

func (t token) is(text string) bool {
	return (t.kind == tokOperator || t.kind == tokOpen || t.kind == tokClose || t.kind == tokSeparator) && t.text == text
}

func (t token) isWord(word string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

// stringValue is the unquoted text of a string token.
func (t token) stringValue() string {
	if len(t.text) < 2 {
		return ""
	}
	q := t.text[:1]
	return strings.ReplaceAll(t.text[1:len(t.text)-1], q+q, q)
}

// valueSpan is the span of a string token without its quotes.
func (t token) valueSpan() source.Span {
	if t.kind != tokString || t.span.Len() < 2 {
		return t.span
	}
	return source.Span{Start: t.span.Start + 1, End: t.span.End - 1}
}

var twoCharOperators = []string{"==", "!=", ">=", "<=", "&&", "||", ">>"}

var closerOf = map[string]string{"(": ")", "[": "]", "{": "}"}

// lex tokenizes a script. Brackets must balance; the first lexical problem
// is returned as a FatalError.
func lex(src string) ([]token, error) {
	var (
		tokens []token
		stack  []token
	)
	lineStart := true
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			lineStart = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r':
			i++
			continue
		case c == '#' && lineStart:
			for i < len(src) && src[i] != '\n' {
				if src[i] == '\\' && i+1 < len(src) && src[i+1] == '\n' {
					i++
				}
				i++
			}
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, &FatalError{Message: "unterminated block comment", Span: source.Span{Start: i, End: len(src)}}
			}
			i += end + 4
			continue
		}
		lineStart = false
		start := i

		switch {
		case c == '"' || c == '\'':
			end, ok := scanString(src, i, c)
			if !ok {
				return nil, &FatalError{Message: "unterminated string", Span: source.Span{Start: start, End: len(src)}}
			}
			tokens = append(tokens, token{kind: tokString, text: src[start:end], span: source.Span{Start: start, End: end}})
			i = end
		case c == '_' || isLetter(c):
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			kind := tokIdent
			if c == '_' {
				kind = tokLocal
			}
			tokens = append(tokens, token{kind: kind, text: src[start:i], span: source.Span{Start: start, End: i}})
		case isDigit(c) || c == '$' || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			i++
			for i < len(src) && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[start:i], span: source.Span{Start: start, End: i}})
		case c == '(' || c == '[' || c == '{':
			t := token{kind: tokOpen, text: src[i : i+1], span: source.Span{Start: i, End: i + 1}}
			tokens = append(tokens, t)
			stack = append(stack, t)
			i++
		case c == ')' || c == ']' || c == '}':
			t := token{kind: tokClose, text: src[i : i+1], span: source.Span{Start: i, End: i + 1}}
			if len(stack) == 0 {
				return nil, &FatalError{Message: "unexpected \"" + t.text + "\"", Span: t.span}
			}
			open := stack[len(stack)-1]
			if closerOf[open.text] != t.text {
				return nil, &FatalError{
					Message: "\"" + open.text + "\" closed by \"" + t.text + "\"",
					Span:    source.Span{Start: open.span.Start, End: t.span.End},
				}
			}
			stack = stack[:len(stack)-1]
			tokens = append(tokens, t)
			i++
		case c == ';' || c == ',':
			tokens = append(tokens, token{kind: tokSeparator, text: src[i : i+1], span: source.Span{Start: i, End: i + 1}})
			i++
		default:
			op := src[i : i+1]
			for _, two := range twoCharOperators {
				if strings.HasPrefix(src[i:], two) {
					op = two
					break
				}
			}
			tokens = append(tokens, token{kind: tokOperator, text: op, span: source.Span{Start: i, End: i + len(op)}})
			i += len(op)
		}
	}
	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, &FatalError{Message: "unclosed \"" + open.text + "\"", Span: source.Span{Start: open.span.Start, End: len(src)}}
	}
	return tokens, nil
}

// scanString returns the offset after the closing quote. Doubled quotes are
// escapes.
func scanString(src string, i int, quote byte) (int, bool) {
	i++
	for i < len(src) {
		if src[i] == quote {
			if i+1 < len(src) && src[i+1] == quote {
				i += 2
				continue
			}
			return i + 1, true
		}
		i++
	}
	return i, false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentPart(c byte) bool {
	return c == '_' || isLetter(c) || isDigit(c)
}
