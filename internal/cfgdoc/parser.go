package cfgdoc

import (
	"fmt"
	"strings"

	"github.com/jward/sqfindex/internal/source"
)

// Class is one `class Name : Base { ... };` block.
type Class struct {
	Name     string
	Base     string
	Span     source.Span // span of the class name
	Document string
	Props    map[string]Property // keyed by lower-cased property name
	Children []*Class
}

// Child returns the first direct child class with the given name, compared
// case-insensitively.
func (c *Class) Child(name string) *Class {
	for _, child := range c.Children {
		if strings.EqualFold(child.Name, name) {
			return child
		}
	}
	return nil
}

// Prop returns a property value by case-insensitive name.
func (c *Class) Prop(name string) (Property, bool) {
	p, ok := c.Props[strings.ToLower(name)]
	return p, ok
}

// Property is a scalar or array assignment inside a class body. Array values
// are kept as their raw joined text; only scalars are interpreted.
type Property struct {
	Value    string
	Span     source.Span
	Document string
}

type parser struct {
	tokens []token
	pos    int
}

// parseError aborts parsing at the first structural error.
type parseError struct {
	Error
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) fail(t token, format string, args ...any) {
	panic(parseError{Error{Message: fmt.Sprintf(format, args...), Span: t.span, Document: t.document}})
}

func (p *parser) expect(text string) token {
	t := p.next()
	if !t.is(text) {
		p.fail(t, "expected %q, found %s", text, describe(t))
	}
	return t
}

func (p *parser) expectIdent() token {
	t := p.next()
	if t.kind != tokIdent {
		p.fail(t, "expected identifier, found %s", describe(t))
	}
	return t
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

// parseTokens builds the root class (an unnamed class holding every top-level
// item). Structural problems are returned as a single Error.
func parseTokens(tokens []token) (root *Class, errs []Error) {
	p := &parser{tokens: tokens}
	root = &Class{Props: map[string]Property{}}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(parseError)
			if !ok {
				panic(r)
			}
			root, errs = nil, []Error{pe.Error}
		}
	}()
	p.body(root, true)
	return root, nil
}

func (p *parser) body(c *Class, topLevel bool) {
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			if !topLevel {
				p.fail(t, "unexpected end of file inside class %q", c.Name)
			}
			return
		case t.is("}"):
			if topLevel {
				p.fail(t, "unexpected %q", "}")
			}
			return
		case t.is(";"):
			p.next()
		case t.isWord("class"):
			p.next()
			c.Children = append(c.Children, p.class())
		case t.isWord("delete"):
			p.next()
			p.expectIdent()
			p.expect(";")
		case t.kind == tokIdent:
			p.property(c)
		default:
			p.fail(t, "unexpected %s", describe(t))
		}
	}
}

func (p *parser) class() *Class {
	name := p.expectIdent()
	c := &Class{
		Name:     name.text,
		Span:     name.span,
		Document: name.document,
		Props:    map[string]Property{},
	}
	if p.peek().is(":") {
		p.next()
		c.Base = p.expectIdent().text
	}
	if p.peek().is("{") {
		p.next()
		p.body(c, false)
		p.expect("}")
	}
	p.expect(";")
	return c
}

func (p *parser) property(c *Class) {
	name := p.next()
	isArray := false
	if p.peek().is("[") {
		p.next()
		p.expect("]")
		isArray = true
	}
	t := p.next()
	switch {
	case t.is("="):
	case t.is("+") && isArray:
		p.expect("=")
	default:
		p.fail(t, "expected %q after property %q, found %s", "=", name.text, describe(t))
	}

	var value string
	var span source.Span
	if p.peek().is("{") {
		value, span = p.array()
	} else {
		value, span = p.scalar()
	}
	p.expect(";")
	c.Props[strings.ToLower(name.text)] = Property{Value: value, Span: span, Document: name.document}
}

// scalar consumes everything up to the terminating semicolon. A single string
// token yields its unquoted text; anything else is joined verbatim.
func (p *parser) scalar() (string, source.Span) {
	var parts []token
	for {
		t := p.peek()
		if t.is(";") {
			break
		}
		if t.kind == tokEOF || t.is("}") {
			p.fail(t, "expected %q, found %s", ";", describe(t))
		}
		parts = append(parts, p.next())
	}
	if len(parts) == 0 {
		p.fail(p.peek(), "missing property value")
	}
	span := source.Span{Start: parts[0].span.Start, End: parts[len(parts)-1].span.End}
	if len(parts) == 1 {
		return parts[0].text, span
	}
	texts := make([]string, len(parts))
	for i, t := range parts {
		texts[i] = t.text
	}
	return strings.Join(texts, " "), span
}

func (p *parser) array() (string, source.Span) {
	open := p.expect("{")
	depth := 1
	var texts []string
	for depth > 0 {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			p.fail(t, "unterminated array")
		case t.is("{"):
			depth++
		case t.is("}"):
			depth--
			if depth == 0 {
				return strings.Join(texts, " "), source.Span{Start: open.span.Start, End: t.span.End}
			}
		}
		texts = append(texts, t.text)
	}
	return "", open.span
}
