package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jptrs93/troto/internal/diag"
)

type tokenKind uint8

const (
	tEOF tokenKind = iota
	tIdent
	tNumber
	tString
	tPunct
)

func (k tokenKind) String() string {
	switch k {
	case tEOF:
		return "EOF"
	case tIdent:
		return "identifier"
	case tNumber:
		return "number"
	case tString:
		return "string"
	case tPunct:
		return "punctuation"
	default:
		return fmt.Sprintf("tokenKind(%d)", uint8(k))
	}
}

type token struct {
	kind tokenKind
	// text is the identifier, the punctuation character, the number as
	// written, or the decoded string contents.
	text string
	pos  diag.Pos
	// pragmas holds the @option lines of doc comments seen since the
	// previous token.
	pragmas []Option
}

func (t token) is(punct string) bool {
	return t.kind == tPunct && t.text == punct
}

func (t token) isIdent(name string) bool {
	return t.kind == tIdent && t.text == name
}

func (t token) describe() string {
	if t.kind == tEOF {
		return "end of file"
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

const punctChars = "{}()<>[],;:?|=.*-&"

type lexer struct {
	path string
	src  []byte
	off  int
	line int
	col  int

	pending []Option
}

func newLexer(path string, src []byte) (*lexer, error) {
	if !utf8.Valid(src) {
		return nil, diag.Errorf(diag.KindSyntax, diag.Pos{File: path}, "source file contains invalid UTF-8")
	}
	return &lexer{path: path, src: src, line: 1, col: 1}, nil
}

func (l *lexer) pos() diag.Pos {
	return diag.Pos{File: l.path, Line: l.line, Column: l.col}
}

func (l *lexer) errorf(pos diag.Pos, format string, args ...any) error {
	return diag.Errorf(diag.KindSyntax, pos, format, args...)
}

func (l *lexer) peekByte(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRune(l.src[l.off:])
	l.off += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) next() (token, error) {
	if err := l.skipTrivia(); err != nil {
		return token{}, err
	}
	pos := l.pos()
	tok, err := l.scan(pos)
	if err != nil {
		return token{}, err
	}
	tok.pos = pos
	tok.pragmas = l.pending
	l.pending = nil
	return tok, nil
}

func (l *lexer) scan(pos diag.Pos) (token, error) {
	if l.off >= len(l.src) {
		return token{kind: tEOF}, nil
	}
	r, _ := utf8.DecodeRune(l.src[l.off:])
	switch {
	case isIdentStart(r):
		start := l.off
		for l.off < len(l.src) {
			r, _ := utf8.DecodeRune(l.src[l.off:])
			if !isIdentPart(r) {
				break
			}
			l.advance()
		}
		return token{kind: tIdent, text: string(l.src[start:l.off])}, nil
	case r >= '0' && r <= '9':
		start := l.off
		for l.off < len(l.src) {
			c := l.src[l.off]
			if (c < '0' || c > '9') && c != '.' && c != '_' && c != 'e' && c != 'E' && c != 'x' && c != 'X' &&
				(c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
				break
			}
			l.advance()
		}
		return token{kind: tNumber, text: string(l.src[start:l.off])}, nil
	case r == '\'' || r == '"':
		return l.scanString(pos, r)
	case r < utf8.RuneSelf && strings.IndexByte(punctChars, byte(r)) >= 0:
		l.advance()
		return token{kind: tPunct, text: string(r)}, nil
	default:
		return token{}, l.errorf(pos, "unexpected character %q (U+%04X)", r, r)
	}
}

func (l *lexer) scanString(pos diag.Pos, quote rune) (token, error) {
	l.advance()
	var sb strings.Builder
	for {
		if l.off >= len(l.src) {
			return token{}, l.errorf(pos, "unterminated string literal")
		}
		r := l.advance()
		switch r {
		case quote:
			return token{kind: tString, text: sb.String()}, nil
		case '\n':
			return token{}, l.errorf(pos, "string literal contains unescaped newline")
		case '\\':
			if l.off >= len(l.src) {
				return token{}, l.errorf(pos, "unterminated string literal")
			}
			esc := l.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '\\', '\'', '"':
				sb.WriteRune(esc)
			default:
				return token{}, l.errorf(pos, "unsupported escape sequence \\%c", esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

func (l *lexer) skipTrivia() error {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekByte(1) == '/':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByte(1) == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		case c == 0xEF && l.off == 0 && l.peekByte(1) == 0xBB && l.peekByte(2) == 0xBF:
			l.off += 3
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) skipBlockComment() error {
	pos := l.pos()
	start := l.off
	l.advance()
	l.advance()
	for {
		if l.off >= len(l.src) {
			return l.errorf(pos, "unterminated block comment")
		}
		if l.src[l.off] == '*' && l.peekByte(1) == '/' {
			l.advance()
			l.advance()
			break
		}
		l.advance()
	}
	text := string(l.src[start:l.off])
	// Only /** doc comments carry pragmas; /**/ is an ordinary empty comment.
	if !strings.HasPrefix(text, "/**") || text == "/**/" {
		return nil
	}
	opts, err := parsePragmas(pos, text[2:len(text)-2])
	if err != nil {
		return err
	}
	l.pending = append(l.pending, opts...)
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
