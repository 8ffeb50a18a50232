package flatten

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseLiteral decodes a payload that arrived pre-serialized as text. JSON is
// tried first; otherwise the text is read as a Python literal (dicts, lists,
// tuples, quoted strings, numbers, True/False/None). Nothing is evaluated.
func ParseLiteral(text string) (Node, error) {
	if n, err := Decode([]byte(text)); err == nil {
		return n, nil
	}

	p := &literalParser{src: text}
	p.skipSpace()
	n, err := p.value()
	if err != nil {
		return Node{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Node{}, p.errorf("unexpected trailing input")
	}
	return n, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("literal at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) value() (Node, error) {
	switch c := p.peek(); {
	case c == '{':
		return p.dict()
	case c == '[':
		return p.sequence('[', ']')
	case c == '(':
		return p.sequence('(', ')')
	case c == '\'' || c == '"':
		s, err := p.str()
		if err != nil {
			return Node{}, err
		}
		return Scalar(String(s)), nil
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case c == 0:
		return Node{}, p.errorf("unexpected end of input")
	default:
		return p.keyword()
	}
}

func (p *literalParser) dict() (Node, error) {
	p.pos++ // {
	obj := Node{Kind: KindObject}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return obj, nil
		}

		keyNode, err := p.value()
		if err != nil {
			return Node{}, err
		}
		if keyNode.Kind != KindScalar || keyNode.Scalar.IsNull() {
			return Node{}, p.errorf("dict key must be a scalar")
		}

		p.skipSpace()
		if p.peek() != ':' {
			return Node{}, p.errorf("expected ':'")
		}
		p.pos++
		p.skipSpace()

		val, err := p.value()
		if err != nil {
			return Node{}, err
		}
		obj.Fields = append(obj.Fields, Field{Key: keyNode.Scalar.Raw, Value: val})

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return Node{}, p.errorf("expected ',' or '}'")
		}
	}
}

func (p *literalParser) sequence(open, close byte) (Node, error) {
	p.pos++ // open
	arr := Node{Kind: KindArray}
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			return arr, nil
		}

		item, err := p.value()
		if err != nil {
			return Node{}, err
		}
		arr.Items = append(arr.Items, item)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case close:
		default:
			return Node{}, p.errorf("expected ',' or %q", close)
		}
	}
}

func (p *literalParser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++

	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\':
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *literalParser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.errorf("dangling escape")
	}
	c := p.src[p.pos]
	p.pos++

	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case '\\', '\'', '"':
		b.WriteByte(c)
	case '\n':
		// line continuation
	case 'x':
		return p.codepoint(b, 2)
	case 'u':
		return p.codepoint(b, 4)
	case 'U':
		return p.codepoint(b, 8)
	default:
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *literalParser) codepoint(b *strings.Builder, digits int) error {
	if p.pos+digits > len(p.src) {
		return p.errorf("short escape sequence")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+digits], 16, 32)
	if err != nil {
		return p.errorf("bad escape sequence")
	}
	p.pos += digits
	b.WriteRune(rune(v))
	return nil
}

func (p *literalParser) number() (Node, error) {
	start := p.pos
	for p.pos < len(p.src) && strings.IndexByte("+-.0123456789eE_", p.src[p.pos]) >= 0 {
		p.pos++
	}
	lit := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	lit = strings.TrimPrefix(lit, "+")

	if _, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Scalar(Number(lit)), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Node{}, p.errorf("bad number %q", lit)
	}
	return Scalar(Number(strconv.FormatFloat(f, 'f', -1, 64))), nil
}

func (p *literalParser) keyword() (Node, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			p.pos++
			continue
		}
		break
	}

	switch word := p.src[start:p.pos]; word {
	case "True", "true":
		return Scalar(Bool(true)), nil
	case "False", "false":
		return Scalar(Bool(false)), nil
	case "None", "null":
		return Scalar(Null()), nil
	case "nan", "NaN":
		return Scalar(Null()), nil
	default:
		p.pos = start
		return Node{}, p.errorf("unexpected token %q", word)
	}
}
