package cfgdoc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jward/sqfindex/internal/pathres"
	"github.com/jward/sqfindex/internal/source"
)

// maxIncludeDepth bounds nested #include chains.
const maxIncludeDepth = 16

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokPunct
	tokEOF
)

func (k tokenKind) String() string {
	switch k {
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokPunct:
		return "punctuation"
	default:
		return "end of file"
	}
}

// token is one lexeme. Document is the file it came from, which differs from
// the root document for tokens spliced in by #include.
type token struct {
	kind     tokenKind
	text     string
	span     source.Span
	document string
}

func (t token) is(text string) bool {
	return t.kind == tokPunct && t.text == text
}

func (t token) isWord(word string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

// lexer turns one document into tokens, following #include directives into
// other documents. Preprocessor directives other than #include are skipped.
type lexer struct {
	// stack holds the documents currently being expanded, for cycle detection.
	stack  []string
	tokens []token
	errs   []Error
	// games maps game-path includes through the document's own addon prefix.
	games *pathres.Resolver
}

func lexFile(path string) ([]token, []Error, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	aliases := map[string]string{}
	if prefix := pathres.ReadPrefix(filepath.Dir(path)); prefix != "" {
		aliases[prefix] = filepath.Dir(path)
	}
	l := &lexer{games: pathres.New(aliases)}
	l.lexDocument(path, string(content))
	l.tokens = append(l.tokens, token{kind: tokEOF, span: source.Span{Start: len(content), End: len(content)}, document: path})
	return l.tokens, l.errs, nil
}

func (l *lexer) errorf(doc string, span source.Span, format string, args ...any) {
	l.errs = append(l.errs, Error{Message: fmt.Sprintf(format, args...), Span: span, Document: doc})
}

func (l *lexer) lexDocument(doc, src string) {
	l.stack = append(l.stack, doc)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

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
			end := directiveEnd(src, i)
			l.directive(doc, src[i:end], i)
			i = end
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				l.errorf(doc, source.Span{Start: i, End: len(src)}, "unterminated block comment")
				return
			}
			i += end + 4
			continue
		}
		lineStart = false

		switch {
		case c == '"' || c == '\'':
			start := i
			text, next, ok := scanString(src, i, c)
			if !ok {
				l.errorf(doc, source.Span{Start: start, End: len(src)}, "unterminated string")
				return
			}
			l.emit(tokString, text, start, next, doc)
			i = next
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			l.emit(tokIdent, src[start:i], start, i, doc)
		case isDigit(c) || ((c == '-' || c == '.') && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			for i < len(src) && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
			l.emit(tokNumber, src[start:i], start, i, doc)
		default:
			l.emit(tokPunct, src[i:i+1], i, i+1, doc)
			i++
		}
	}
}

func (l *lexer) emit(kind tokenKind, text string, start, end int, doc string) {
	l.tokens = append(l.tokens, token{kind: kind, text: text, span: source.Span{Start: start, End: end}, document: doc})
}

// directive handles one preprocessor line. Only #include changes the token
// stream; the rest (#define, #ifdef, ...) is skipped.
func (l *lexer) directive(doc, line string, offset int) {
	body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	if !strings.HasPrefix(body, "include") {
		return
	}
	target := strings.TrimSpace(strings.TrimPrefix(body, "include"))
	span := source.Span{Start: offset, End: offset + len(strings.TrimRight(line, "\r\n"))}
	if len(target) < 2 {
		l.errorf(doc, span, "malformed #include directive")
		return
	}
	open, closing := target[0], target[len(target)-1]
	if !(open == '"' && closing == '"') && !(open == '<' && closing == '>') {
		l.errorf(doc, span, "malformed #include directive")
		return
	}
	raw := target[1 : len(target)-1]
	rel := strings.ReplaceAll(raw, `\`, "/")
	// A game path (`\x\cba\addons\main\script_macros.hpp`) usually names
	// another addon's macros. Outside this addon it is skipped, not an error.
	game := strings.HasPrefix(rel, "/")
	path := filepath.Join(filepath.Dir(doc), filepath.FromSlash(rel))
	if game {
		resolved, err := l.games.Resolve(raw, "")
		if err != nil {
			return
		}
		path = resolved
	}

	for _, seen := range l.stack {
		if seen == path {
			l.errorf(doc, span, "recursive #include of %q", rel)
			return
		}
	}
	if len(l.stack) >= maxIncludeDepth {
		l.errorf(doc, span, "#include nesting exceeds %d levels", maxIncludeDepth)
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if game {
			return
		}
		l.errorf(doc, span, "cannot open included file %q", rel)
		return
	}
	l.lexDocument(path, string(content))
}

// directiveEnd returns the offset just past a preprocessor line, honouring
// backslash line continuations.
func directiveEnd(src string, i int) int {
	for i < len(src) {
		if src[i] == '\n' {
			if i > 0 && src[i-1] == '\\' {
				i++
				continue
			}
			if i > 1 && src[i-1] == '\r' && src[i-2] == '\\' {
				i++
				continue
			}
			return i
		}
		i++
	}
	return i
}

// scanString reads a quoted string starting at src[i]. A doubled quote is an
// escaped quote. Returns the unquoted text and the offset after the closing quote.
func scanString(src string, i int, quote byte) (string, int, bool) {
	var b strings.Builder
	i++
	for i < len(src) {
		c := src[i]
		if c == quote {
			if i+1 < len(src) && src[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1, true
		}
		b.WriteByte(c)
		i++
	}
	return "", i, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
