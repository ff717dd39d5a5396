package candid

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber // integer or float literal, verbatim text without underscores
	tokText   // string literal, decoded bytes
	tokPunct  // one of ( ) { } ; : , = or ->
)

type token struct {
	kind tokenKind
	text string // ident name, number text, or punct
	str  string // decoded string content for tokText
	line int
	col  int

	isFloat bool // number literal contains . or exponent
	isHex   bool
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokText:
		return fmt.Sprintf("string %q", t.str)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// scanner tokenizes the shared lexical grammar of value expressions and
// interface descriptions: identifiers, numbers, strings with escape forms,
// punctuation, and line/block comments.
type scanner struct {
	src  string
	pos  int
	line int
	col  int
}

func newScanner(src string) *scanner {
	return &scanner{src: src, line: 1, col: 1}
}

func (s *scanner) errorf(line, col int, format string, args ...interface{}) *CodecError {
	return newParseError("%d:%d: %s", line, col, fmt.Sprintf(format, args...))
}

func (s *scanner) peekByte() (byte, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos], true
}

func (s *scanner) advance() byte {
	c := s.src[s.pos]
	s.pos++
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return c
}

func (s *scanner) skipSpaceAndComments() error {
	for {
		c, ok := s.peekByte()
		if !ok {
			return nil
		}
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.advance()
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for {
				c, ok := s.peekByte()
				if !ok || c == '\n' {
					break
				}
				s.advance()
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			line, col := s.line, s.col
			s.advance()
			s.advance()
			depth := 1
			for depth > 0 {
				c, ok := s.peekByte()
				if !ok {
					return s.errorf(line, col, "unterminated block comment")
				}
				if c == '*' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
					s.advance()
					s.advance()
					depth--
					continue
				}
				if c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*' {
					s.advance()
					s.advance()
					depth++
					continue
				}
				s.advance()
			}
		default:
			return nil
		}
	}
}

func (s *scanner) next() (token, error) {
	if err := s.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	line, col := s.line, s.col
	c, ok := s.peekByte()
	if !ok {
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	switch {
	case c == '"':
		str, err := s.scanString()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokText, str: str, line: line, col: col}, nil

	case isIdentStart(rune(c)):
		start := s.pos
		for {
			c, ok := s.peekByte()
			if !ok || !isIdentPart(rune(c)) {
				break
			}
			s.advance()
		}
		return token{kind: tokIdent, text: s.src[start:s.pos], line: line, col: col}, nil

	case c >= '0' && c <= '9' || c == '-' || c == '+':
		return s.scanNumber(line, col)

	default:
		s.advance()
		switch c {
		case '(', ')', '{', '}', ';', ':', ',', '=':
			return token{kind: tokPunct, text: string(c), line: line, col: col}, nil
		}
		return token{}, s.errorf(line, col, "unexpected character %q", string(c))
	}
}

func (s *scanner) scanNumber(line, col int) (token, error) {
	var sb strings.Builder
	c, _ := s.peekByte()
	if c == '-' || c == '+' {
		s.advance()
		if c == '-' {
			// "->" arrow for method signatures
			if n, ok := s.peekByte(); ok && n == '>' {
				s.advance()
				return token{kind: tokPunct, text: "->", line: line, col: col}, nil
			}
			sb.WriteByte('-')
		}
	}
	first, ok := s.peekByte()
	if !ok || first < '0' || first > '9' {
		return token{}, s.errorf(line, col, "malformed number")
	}
	isHex := false
	if first == '0' && s.pos+1 < len(s.src) && (s.src[s.pos+1] == 'x' || s.src[s.pos+1] == 'X') {
		isHex = true
		s.advance()
		s.advance()
		digits := 0
		for {
			c, ok := s.peekByte()
			if !ok {
				break
			}
			if c == '_' {
				s.advance()
				continue
			}
			if !isHexDigit(c) {
				break
			}
			sb.WriteByte(c)
			s.advance()
			digits++
		}
		if digits == 0 {
			return token{}, s.errorf(line, col, "malformed hex number")
		}
		return token{kind: tokNumber, text: sb.String(), isHex: true, line: line, col: col}, nil
	}

	isFloat := false
	readDigits := func() {
		for {
			c, ok := s.peekByte()
			if !ok {
				return
			}
			if c == '_' {
				s.advance()
				continue
			}
			if c < '0' || c > '9' {
				return
			}
			sb.WriteByte(c)
			s.advance()
		}
	}
	readDigits()
	if c, ok := s.peekByte(); ok && c == '.' {
		isFloat = true
		sb.WriteByte('.')
		s.advance()
		readDigits()
	}
	if c, ok := s.peekByte(); ok && (c == 'e' || c == 'E') {
		isFloat = true
		sb.WriteByte('e')
		s.advance()
		if c, ok := s.peekByte(); ok && (c == '-' || c == '+') {
			sb.WriteByte(c)
			s.advance()
		}
		readDigits()
	}
	return token{
		kind: tokNumber, text: sb.String(),
		isFloat: isFloat, isHex: isHex, line: line, col: col,
	}, nil
}

// scanString decodes a quoted literal. Escapes: \n \r \t \\ \" \' ,
// \u{hex} for code points, and \hh for raw bytes (the blob form).
func (s *scanner) scanString() (string, error) {
	line, col := s.line, s.col
	s.advance() // opening quote
	var sb strings.Builder
	for {
		c, ok := s.peekByte()
		if !ok {
			return "", s.errorf(line, col, "unterminated string literal")
		}
		s.advance()
		if c == '"' {
			return sb.String(), nil
		}
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		e, ok := s.peekByte()
		if !ok {
			return "", s.errorf(line, col, "unterminated escape")
		}
		s.advance()
		switch e {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		case '\'':
			sb.WriteByte('\'')
		case 'u':
			b, ok := s.peekByte()
			if !ok || b != '{' {
				return "", s.errorf(s.line, s.col, "expected '{' after \\u")
			}
			s.advance()
			var hex strings.Builder
			for {
				c, ok := s.peekByte()
				if !ok {
					return "", s.errorf(line, col, "unterminated \\u escape")
				}
				s.advance()
				if c == '}' {
					break
				}
				if !isHexDigit(c) && c != '_' {
					return "", s.errorf(s.line, s.col, "invalid hex digit %q in \\u escape", string(c))
				}
				if c != '_' {
					hex.WriteByte(c)
				}
			}
			var cp uint32
			if _, err := fmt.Sscanf(hex.String(), "%x", &cp); err != nil {
				return "", s.errorf(line, col, "invalid \\u escape")
			}
			if cp > utf8.MaxRune {
				return "", s.errorf(line, col, "code point out of range in \\u escape")
			}
			sb.WriteRune(rune(cp))
		default:
			if isHexDigit(e) {
				h, ok := s.peekByte()
				if !ok || !isHexDigit(h) {
					return "", s.errorf(s.line, s.col, "expected two hex digits in byte escape")
				}
				s.advance()
				var b uint32
				if _, err := fmt.Sscanf(string([]byte{e, h}), "%x", &b); err != nil {
					return "", s.errorf(line, col, "invalid byte escape")
				}
				sb.WriteByte(byte(b))
				continue
			}
			return "", s.errorf(s.line, s.col, "unknown escape \\%s", string(e))
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
