// This scanner is based on Rob Pike's excellent talk on Go scanners.
// Link to the talk on YouTube: https://www.youtube.com/watch?v=HxaD_trXwRE
// Link to presentation slides: https://talks.golang.org/2011/lex.slide#1
//
// The scanner uses state functions stateFunc to define the scanner state. The
// language is byte-defined, so the scanner walks the source byte by byte with
// at most two bytes of lookahead; bytes outside the ASCII token set are passed
// through verbatim inside string literals and reported as diagnostics
// elsewhere. Diagnostics for isolated unexpected bytes go to stderr and do not
// stop the scan; only an unterminated string literal aborts.

package frontend

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// stateFunc defines the state of the scanner.
type stateFunc func(*scanner) stateFunc

// scanner is a lexical type that traverses a source stream byte by byte and
// emits tokens.
type scanner struct {
	input   string  // The source stream of characters to scan for lexemes.
	start   int     // The starting position of the current token.
	pos     int     // The current position of the scanner in the source stream.
	width   int     // The width of the most recently scanned byte, 0 at end of input.
	line    int     // The current line in the source stream. Not zero-indexed.
	tokLine int     // The line of the first byte of the pending token.
	toks    []Token // Tokens emitted so far, in source order.
	err     error   // First fatal scan error, if any.
}

// ---------------------
// ----- Constants -----
// ---------------------

const eof = 0 // Same as '\0' for null-terminated C strings.

// ---------------------
// ----- functions -----
// ---------------------

// Scan traverses the source string and returns the scanned token stream. The
// final token is always an EOF token carrying the last line of the source.
// Scan fails only on an unterminated string literal.
func Scan(src string) ([]Token, error) {
	s := &scanner{
		input:   src,
		line:    1,
		tokLine: 1,
		toks:    make([]Token, 0, 256),
	}
	for state := scanGlobal; state != nil; {
		state = state(s)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.toks, nil
}

// TokenStream scans the given source string and returns a print friendly
// table of its token stream.
func TokenStream(src string) (string, error) {
	toks, err := Scan(src)
	if err != nil {
		return "", err
	}
	sb := strings.Builder{}
	tw := tabwriter.NewWriter(&sb, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Value\tType\tPosition\n")
	for _, t := range toks {
		if len(t.Val) > 20 {
			_, _ = fmt.Fprintf(tw, "%.17q...\t%s\tline: %d\n", t.Val, t.Kind, t.Line)
		} else {
			_, _ = fmt.Fprintf(tw, "%q\t%s\tline: %d\n", t.Val, t.Kind, t.Line)
		}
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// emit appends a token of kind typ covering the pending source slice.
func (s *scanner) emit(typ TokenKind) {
	s.toks = append(s.toks, Token{
		Kind: typ,
		Val:  s.input[s.start:s.pos],
		Line: s.tokLine,
	})
	s.start = s.pos
	s.tokLine = s.line
}

// next returns the next byte in the input, or eof at end of input.
func (s *scanner) next() byte {
	if s.pos >= len(s.input) {
		s.width = 0
		return eof
	}
	c := s.input[s.pos]
	s.width = 1
	s.pos++
	return c
}

// ignore skips over the pending input before this point.
func (s *scanner) ignore() {
	s.start = s.pos
	s.tokLine = s.line
}

// backup steps back one byte. Should only be called once per call of next.
func (s *scanner) backup() {
	if s.pos > s.start {
		s.pos -= s.width
	}
}

// peek returns, but does not consume, the next byte in the input.
func (s *scanner) peek() byte {
	c := s.next()
	s.backup()
	return c
}

// errorf records a fatal scan error and terminates the scan by passing back a
// nil pointer that will be the next state.
func (s *scanner) errorf(format string, args ...interface{}) stateFunc {
	s.err = fmt.Errorf(format, args...)
	return nil
}

// diagnostic reports a non-fatal scanner diagnostic on the side channel.
func (s *scanner) diagnostic(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// --------------------------
// ----- Scanner states -----
// --------------------------

// scanGlobal starts the scan and serves as the default state.
func scanGlobal(s *scanner) stateFunc {
	for {
		c := s.next()
		switch {
		case isAlpha(c) || c == '_':
			// Keyword, type name or identifier.
			return scanWord
		case isDigit(c):
			// Number.
			return scanNumber
		case c == '\n':
			// Newline.
			s.line++
			s.ignore()
		case c == ' ' || c == '\r' || c == '\t':
			// Ignore whitespace. Newlines are caught before whitespaces.
			s.ignore()
		case c == '"':
			// String.
			return scanString
		case c == '/' && s.peek() == '/':
			// Line comment, consumed until newline or end of input.
			for {
				c = s.next()
				if c == '\n' {
					s.line++
					break
				}
				if c == eof {
					break
				}
			}
			s.ignore()
		case c == '(':
			s.emit(LPAREN)
		case c == ')':
			s.emit(RPAREN)
		case c == '{':
			s.emit(LBRACE)
		case c == '}':
			s.emit(RBRACE)
		case c == '[':
			s.emit(LBRACKET)
		case c == ']':
			s.emit(RBRACKET)
		case c == ',':
			s.emit(COMMA)
		case c == ';':
			s.emit(SEMICOLON)
		case c == ':':
			s.emit(COLON)
		case c == '+':
			s.emit(PLUS)
		case c == '=':
			if s.peek() == '=' {
				s.next()
				s.emit(EQ)
			} else {
				s.emit(ASSIGN)
			}
		case c == '!':
			if s.peek() == '=' {
				s.next()
				s.emit(NEQ)
			} else {
				s.diagnostic("line %d: unexpected character '!'", s.line)
				s.ignore()
			}
		case c == '<':
			if s.peek() == '=' {
				s.next()
				s.emit(LEQ)
			} else {
				s.emit(LT)
			}
		case c == '>':
			if s.peek() == '=' {
				s.next()
				s.emit(GEQ)
			} else {
				s.emit(GT)
			}
		case c == '-':
			if s.peek() == '>' {
				s.next()
				s.emit(ARROW)
			} else if isDigit(s.peek()) {
				// Negative number; the minus is part of the lexeme.
				return scanNumber
			} else {
				s.emit(MINUS)
			}
		case c == eof:
			// End of input: stop the state machine.
			s.emit(EOF)
			return nil
		default:
			s.diagnostic("line %d: unexpected character %q", s.line, string(c))
			s.ignore()
		}
	}
}

// scanWord scans the input string for keywords, type names and identifiers.
func scanWord(s *scanner) stateFunc {
	// We know that the first scanned byte starts a word.
	for {
		c := s.next()
		if !isAlpha(c) && !isDigit(c) && c != '_' {
			s.backup()
			if kw, typ := isKeyword(s.input[s.start:s.pos]); kw {
				s.emit(typ)
			} else {
				s.emit(IDENTIFIER)
			}
			return scanGlobal
		}
	}
}

// scanNumber scans the input stream for a decimal integer number. The first
// digit, or a minus followed by a digit, has already been scanned.
func scanNumber(s *scanner) stateFunc {
	for {
		c := s.next()
		if !isDigit(c) {
			s.backup()
			s.emit(NUMBER)
			return scanGlobal
		}
	}
}

// scanString scans a string literal from the input stream. The bytes of the
// literal are kept verbatim; there is no escape processing. Newlines inside
// the literal advance the line counter but the token keeps the line of its
// opening quote.
func scanString(s *scanner) stateFunc {
	// By this point we're in the string. Accept anything until the next '"'.
	start := s.tokLine
	s.ignore()
	s.tokLine = start
	for {
		c := s.next()
		if c == eof {
			return s.errorf("line %d: unterminated string literal", start)
		}
		if c == '\n' {
			s.line++
			continue
		}
		if c == '"' {
			// Found string termination.
			s.backup()
			s.emit(STRING)
			s.next()
			s.ignore()
			return scanGlobal
		}
	}
}

// ----------------------------
// ----- Helper functions -----
// ----------------------------

// isAlpha returns true if byte c is an alphabetic character in the set [a-zA-Z].
func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isDigit returns true if byte c is a digit in the range [0-9].
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
