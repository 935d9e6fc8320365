package value

import (
	"fmt"
	"strconv"

	"photesthesis/symbol"
)

// ParseError reports a byte offset and what was expected, per the
// positional-error contract for Value text.
type ParseError struct {
	Offset   int
	Expected string
	Got      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("value: at byte offset %d: expected %s, got %q", e.Offset, e.Expected, e.Got)
}

func newParseError(offset int, expected, got string) *ParseError {
	return &ParseError{Offset: offset, Expected: expected, Got: got}
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() {
		c := s.src[s.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			s.pos++
			continue
		}
		break
	}
}

func isAlnumOrUnderscore(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Parse reads a single Value from its canonical textual form and reports
// the byte offset consumed. Trailing input is left unread (Parse parses
// exactly one value, like the C++ istream extraction operator it is
// grounded on).
func Parse(input string) (Value, int, error) {
	s := &scanner{src: input}
	v, err := parseValue(s)
	if err != nil {
		return Value{}, s.pos, err
	}
	return v, s.pos, nil
}

// ParseAll parses every value in input, each separated by whitespace, and
// requires the entire input to be consumed.
func ParseAll(input string) ([]Value, error) {
	s := &scanner{src: input}
	var out []Value
	for {
		s.skipSpace()
		if s.eof() {
			return out, nil
		}
		v, err := parseValue(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func parseValue(s *scanner) (Value, error) {
	s.skipSpace()
	if s.eof() {
		return Value{}, newParseError(s.pos, "a value", "end of input")
	}
	switch c := s.peek(); {
	case c == '(':
		return parseList(s)
	case c == '[':
		return parseBlob(s)
	case c == '"':
		return parseStr(s)
	case c == '#':
		return parseSpecial(s)
	case c == '-' || isDigit(c):
		return parseInt(s)
	case isAlnumOrUnderscore(c):
		return parseSym(s)
	default:
		return Value{}, newParseError(s.pos, "a value", string(c))
	}
}

func parseList(s *scanner) (Value, error) {
	start := s.pos
	s.pos++ // consume '('
	var vals []Value
	for {
		s.skipSpace()
		if s.eof() {
			return Value{}, newParseError(start, "')'", "end of input")
		}
		if s.peek() == ')' {
			s.pos++
			return List(vals...), nil
		}
		v, err := parseValue(s)
		if err != nil {
			return Value{}, err
		}
		vals = append(vals, v)
	}
}

func parseBlob(s *scanner) (Value, error) {
	start := s.pos
	s.pos++ // consume '['
	var bytes []byte
	for {
		s.skipSpace()
		if s.eof() {
			return Value{}, newParseError(start, "']'", "end of input")
		}
		if s.peek() == ']' {
			s.pos++
			return Blob(bytes), nil
		}
		byteStart := s.pos
		if s.pos+4 > len(s.src) || s.src[s.pos] != '0' || (s.src[s.pos+1] != 'x' && s.src[s.pos+1] != 'X') {
			return Value{}, newParseError(s.pos, "a 0xHH byte", "malformed blob byte")
		}
		s.pos += 2
		hexStart := s.pos
		for !s.eof() && isHexDigit(s.peek()) {
			s.pos++
		}
		hex := s.src[hexStart:s.pos]
		if hex == "" {
			return Value{}, newParseError(byteStart, "a 0xHH byte", "empty hex digits")
		}
		n, err := strconv.ParseUint(hex, 16, 8)
		if err != nil {
			return Value{}, newParseError(byteStart, "a 0xHH byte (0-255)", hex)
		}
		bytes = append(bytes, byte(n))
	}
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func parseStr(s *scanner) (Value, error) {
	start := s.pos
	s.pos++ // consume opening quote
	var buf []byte
	for {
		if s.eof() {
			return Value{}, newParseError(start, "closing '\"'", "end of input")
		}
		c := s.src[s.pos]
		if c == '"' {
			s.pos++
			return Str(string(buf)), nil
		}
		if c == '\\' {
			s.pos++
			if s.eof() {
				return Value{}, newParseError(s.pos, "escaped character", "end of input")
			}
			buf = append(buf, s.src[s.pos])
			s.pos++
			continue
		}
		buf = append(buf, c)
		s.pos++
	}
}

func parseSpecial(s *scanner) (Value, error) {
	start := s.pos
	s.pos++ // consume '#'
	tokStart := s.pos
	for !s.eof() && isAlnumOrUnderscore(s.peek()) {
		s.pos++
	}
	tok := "#" + s.src[tokStart:s.pos]
	switch tok {
	case "#t":
		return Bool(true), nil
	case "#f":
		return Bool(false), nil
	case "#nil":
		return Nil, nil
	default:
		return Value{}, newParseError(start, "#t, #f, or #nil", tok)
	}
}

func parseInt(s *scanner) (Value, error) {
	start := s.pos
	if s.peek() == '-' {
		s.pos++
	}
	digitsStart := s.pos
	for !s.eof() && isDigit(s.peek()) {
		s.pos++
	}
	if s.pos == digitsStart {
		return Value{}, newParseError(start, "an integer", "no digits")
	}
	n, err := strconv.ParseInt(s.src[start:s.pos], 10, 64)
	if err != nil {
		return Value{}, newParseError(start, "an Int64 value", s.src[start:s.pos])
	}
	return Int64(n), nil
}

func parseSym(s *scanner) (Value, error) {
	start := s.pos
	for !s.eof() && isAlnumOrUnderscore(s.peek()) {
		s.pos++
	}
	name := s.src[start:s.pos]
	sym, err := symbol.New(name)
	if err != nil {
		return Value{}, newParseError(start, "a valid symbol", name)
	}
	return Sym(sym), nil
}
