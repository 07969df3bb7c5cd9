package phptok

// Lexer is the default Tokenizer implementation: a single-pass byte scanner
// with no lookbehind beyond one character. It tolerates malformed input by
// emitting whatever tokens it can; it never returns an error.
type Lexer struct{}

// NewLexer creates a new PHP lexer
func NewLexer() *Lexer {
	return &Lexer{}
}

// Tokenize splits src into tokens. Line numbers are 1-based. Unterminated
// strings and comments run to end of input.
func (l *Lexer) Tokenize(src []byte) []Token {
	// Most PHP source averages under 8 bytes per token
	tokens := make([]Token, 0, len(src)/8+16)
	pos := 0
	line := 1

	for pos < len(src) {
		c := src[pos]
		start := pos
		startLine := line

		switch {
		case isSpace(c):
			for pos < len(src) && isSpace(src[pos]) {
				if src[pos] == '\n' {
					line++
				}
				pos++
			}
			tokens = append(tokens, Token{KindWhitespace, string(src[start:pos]), startLine})

		case c == '/' && pos+1 < len(src) && src[pos+1] == '/':
			pos = scanLineComment(src, pos)
			tokens = append(tokens, Token{KindComment, string(src[start:pos]), startLine})

		case c == '#' && !(pos+1 < len(src) && src[pos+1] == '['):
			pos = scanLineComment(src, pos)
			tokens = append(tokens, Token{KindComment, string(src[start:pos]), startLine})

		case c == '/' && pos+1 < len(src) && src[pos+1] == '*':
			pos += 2
			for pos < len(src) {
				if src[pos] == '\n' {
					line++
				}
				if src[pos] == '*' && pos+1 < len(src) && src[pos+1] == '/' {
					pos += 2
					break
				}
				pos++
			}
			tokens = append(tokens, Token{KindComment, string(src[start:pos]), startLine})

		case c == '\'' || c == '"':
			quote := c
			pos++
			for pos < len(src) {
				if src[pos] == '\\' && pos+1 < len(src) {
					pos += 2
					continue
				}
				if src[pos] == '\n' {
					line++
				}
				if src[pos] == quote {
					pos++
					break
				}
				pos++
			}
			tokens = append(tokens, Token{KindString, string(src[start:pos]), startLine})

		case c == '$' && pos+1 < len(src) && isNameStart(src[pos+1]):
			pos++
			for pos < len(src) && isNamePart(src[pos]) {
				pos++
			}
			tokens = append(tokens, Token{KindVariable, string(src[start:pos]), startLine})

		case isDigit(c):
			for pos < len(src) && (isNamePart(src[pos]) || src[pos] == '.') {
				pos++
			}
			tokens = append(tokens, Token{KindNumber, string(src[start:pos]), startLine})

		case isNameStart(c):
			for pos < len(src) && isNamePart(src[pos]) {
				pos++
			}
			tokens = append(tokens, Token{KindName, string(src[start:pos]), startLine})

		case c == ':' && pos+1 < len(src) && src[pos+1] == ':':
			pos += 2
			tokens = append(tokens, Token{KindOp, "::", startLine})

		case c == '-' && pos+1 < len(src) && src[pos+1] == '>':
			pos += 2
			tokens = append(tokens, Token{KindOp, "->", startLine})

		case c == '=' && pos+1 < len(src) && src[pos+1] == '>':
			pos += 2
			tokens = append(tokens, Token{KindOp, "=>", startLine})

		case c == '#' && pos+1 < len(src) && src[pos+1] == '[':
			// PHP 8 attribute opener; contents are lexed normally
			pos += 2
			tokens = append(tokens, Token{KindOp, "#[", startLine})

		default:
			pos++
			tokens = append(tokens, Token{KindOp, string(src[start:pos]), startLine})
		}
	}

	return tokens
}

func scanLineComment(src []byte, pos int) int {
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	return pos
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// PHP identifiers: [a-zA-Z_\x80-\xff][a-zA-Z0-9_\x80-\xff]*
func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isNamePart(c byte) bool {
	return isNameStart(c) || isDigit(c)
}
