package questionnaire

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/auto-oracle/internal/model"
)

const parseOp = "questionnaire: parse response"

// ParseQuestions parses a cleaned model response that must be a list
// literal of strings, e.g. ["Q1", 'Q2']. Anything else is a ParseError.
// Nothing in the response is ever evaluated. Blank entries are dropped;
// the rest are NFC-normalised and trimmed.
func ParseQuestions(text string) ([]model.Question, error) {
	items, err := parseStringList(text)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(norm.NFC.String(item))
		if item == "" {
			continue
		}
		texts = append(texts, item)
	}
	return model.QuestionsFromTexts(texts), nil
}

// parseStringList implements the grammar
//
//	list   = '[' [ string { ',' string } [ ',' ] ] ']'
//	string = '"' chars '"' | "'" chars "'"
//
// with surrounding whitespace allowed between tokens.
func parseStringList(text string) ([]string, error) {
	p := &listParser{src: text}
	p.skipSpace()
	if p.eof() {
		return nil, model.NewError(model.KindParse, parseOp, "response is empty")
	}
	if p.peek() != '[' {
		return nil, model.Errorf(model.KindParse, parseOp, "expected a list, got %q", preview(text))
	}
	p.pos++

	items := []string{}
	p.skipSpace()
	if !p.eof() && p.peek() == ']' {
		p.pos++
		return items, p.expectEnd()
	}

	for {
		p.skipSpace()
		if !p.eof() && p.peek() == ']' && len(items) > 0 {
			// trailing comma
			p.pos++
			return items, p.expectEnd()
		}
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		items = append(items, s)

		p.skipSpace()
		if p.eof() {
			return nil, model.NewError(model.KindParse, parseOp, "unterminated list")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return items, p.expectEnd()
		default:
			return nil, model.Errorf(model.KindParse, parseOp, "unexpected %q at offset %d", p.peek(), p.pos)
		}
	}
}

type listParser struct {
	src string
	pos int
}

func (p *listParser) eof() bool  { return p.pos >= len(p.src) }
func (p *listParser) peek() byte { return p.src[p.pos] }

func (p *listParser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *listParser) expectEnd() error {
	p.skipSpace()
	if !p.eof() {
		return model.Errorf(model.KindParse, parseOp, "unexpected trailing text %q", preview(p.src[p.pos:]))
	}
	return nil
}

func (p *listParser) parseString() (string, error) {
	if p.eof() {
		return "", model.NewError(model.KindParse, parseOp, "unterminated list")
	}
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return "", model.Errorf(model.KindParse, parseOp, "list element at offset %d is not a string", p.pos)
	}
	p.pos++

	var b strings.Builder
	for {
		if p.eof() {
			return "", model.NewError(model.KindParse, parseOp, "unterminated string")
		}
		c := p.peek()
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\':
			r, err := p.parseEscape()
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
		case c == '\n':
			return "", model.Errorf(model.KindParse, parseOp, "newline inside string at offset %d", p.pos)
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *listParser) parseEscape() (rune, error) {
	p.pos++ // backslash
	if p.eof() {
		return 0, model.NewError(model.KindParse, parseOp, "unterminated escape")
	}
	c := p.peek()
	p.pos++
	switch c {
	case '"', '\'', '\\', '/':
		return rune(c), nil
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'u':
		r, err := p.parseHex4()
		if err != nil {
			return 0, err
		}
		if !utf16.IsSurrogate(r) {
			return r, nil
		}
		// A high surrogate followed by \uDC00-\uDFFF is one code point.
		if strings.HasPrefix(p.src[p.pos:], `\u`) {
			save := p.pos
			p.pos += 2
			if lo, err := p.parseHex4(); err == nil {
				if pair := utf16.DecodeRune(r, lo); pair != utf8.RuneError {
					return pair, nil
				}
			}
			p.pos = save
		}
		return utf8.RuneError, nil
	default:
		return 0, model.Errorf(model.KindParse, parseOp, "unknown escape \\%c", c)
	}
}

func (p *listParser) parseHex4() (rune, error) {
	if p.pos+4 > len(p.src) {
		return 0, model.NewError(model.KindParse, parseOp, "short \\u escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, model.Errorf(model.KindParse, parseOp, "bad \\u escape %q", p.src[p.pos:p.pos+4])
	}
	p.pos += 4
	return rune(n), nil
}

func preview(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
