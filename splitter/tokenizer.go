package splitter

import (
	"go/scanner"
	"go/token"
	"strings"
	"unicode/utf8"
)

// TokenKind is lexical class of a token, only classes relevant to locating
// end markers are distinguished.
type TokenKind int

const (
	TokenOther TokenKind = iota
	TokenWhitespace
	TokenLineComment
	TokenBlockComment
	TokenString
)

func (k TokenKind) String() string {
	switch k {
	case TokenWhitespace:
		return "whitespace"
	case TokenLineComment:
		return "line-comment"
	case TokenBlockComment:
		return "block-comment"
	case TokenString:
		return "string"
	default:
		return "other"
	}
}

// Token is a single lexical token. Terminated is only meaningful for string
// literals and block comments.
type Token struct {
	Kind       TokenKind
	Len        int
	Terminated bool
}

// Tokenizer classifies code text. Lengths of returned tokens add up to the
// length of the input.
type Tokenizer interface {
	Tokenize(code string) ([]Token, error)
}

// TokenizerFunc adapts ordinary function to Tokenizer interface.
type TokenizerFunc func(code string) ([]Token, error)

func (f TokenizerFunc) Tokenize(code string) ([]Token, error) {
	return f(code)
}

// GoTokenizer tokenizes Go source using go/scanner. Gaps between tokens are
// reported as whitespace and automatically inserted semicolons are dropped,
// so the last token always ends where the input does.
type GoTokenizer struct{}

func (GoTokenizer) Tokenize(code string) ([]Token, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(code))

	var (
		s            scanner.Scanner
		unterminated bool
	)
	s.Init(file, []byte(code), func(_ token.Position, msg string) {
		// "string literal not terminated", "raw string literal not terminated",
		// "comment not terminated"
		if strings.HasSuffix(msg, "not terminated") {
			unterminated = true
		}
	}, scanner.ScanComments)

	var (
		tokens []Token
		end    int
	)
	for {
		unterminated = false
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		off := file.Offset(pos)
		if off < end {
			// should never happen, scanner does not go back
			continue
		}
		if off > end {
			tokens = append(tokens, Token{Kind: TokenWhitespace, Len: off - end})
		}
		n := min(tokenLen(code, off, tok, lit), len(code)-off)
		tokens = append(tokens, classify(code[off:], tok, n, !unterminated))
		end = off + n
	}
	if end < len(code) {
		tokens = append(tokens, Token{Kind: TokenWhitespace, Len: len(code) - end})
	}
	return tokens, nil
}

func classify(rest string, tok token.Token, n int, terminated bool) Token {
	switch {
	case tok == token.COMMENT && strings.HasPrefix(rest, "//"):
		return Token{Kind: TokenLineComment, Len: n, Terminated: true}
	case tok == token.COMMENT:
		return Token{Kind: TokenBlockComment, Len: n, Terminated: terminated}
	case tok == token.STRING:
		return Token{Kind: TokenString, Len: n, Terminated: terminated}
	default:
		return Token{Kind: TokenOther, Len: n, Terminated: true}
	}
}

// tokenLen returns number of source bytes token occupies. Scanner strips
// carriage returns from comments and raw strings, so those are measured in
// the source directly.
func tokenLen(code string, off int, tok token.Token, lit string) int {
	rest := code[off:]
	switch {
	case tok == token.COMMENT && strings.HasPrefix(rest, "//"):
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			return i
		}
		return len(rest)
	case tok == token.COMMENT:
		if i := strings.Index(rest[2:], "*/"); i >= 0 {
			return i + 4
		}
		return len(rest)
	case tok == token.STRING && strings.HasPrefix(rest, "`"):
		if i := strings.IndexByte(rest[1:], '`'); i >= 0 {
			return i + 2
		}
		return len(rest)
	case tok == token.ILLEGAL:
		// lit holds decoded rune, which differs from source for broken UTF-8
		_, w := utf8.DecodeRuneInString(rest)
		return w
	case len(lit) > 0:
		return len(lit)
	default:
		return len(tok.String())
	}
}
