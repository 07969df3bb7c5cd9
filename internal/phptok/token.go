// Package phptok provides a flat lexical token stream over PHP source text.
// The stream preserves whitespace and comment tokens so callers can
// reconstruct verbatim source snippets from any token range; pattern
// matching skips them via the helpers below.
package phptok

import "strings"

// Kind classifies a lexical token
type Kind uint8

const (
	KindWhitespace Kind = iota
	KindComment
	KindString
	KindNumber
	KindVariable // $name
	KindName     // identifiers and keywords
	KindOp       // operators and punctuation, "::" and "\" kept atomic
)

// String returns a human-readable name for the kind (used in test failures)
func (k Kind) String() string {
	switch k {
	case KindWhitespace:
		return "whitespace"
	case KindComment:
		return "comment"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindVariable:
		return "variable"
	case KindName:
		return "name"
	case KindOp:
		return "op"
	}
	return "unknown"
}

// Token is one lexical unit of a source file. Tokens are immutable once
// produced; Line is 1-based and refers to the line the token starts on.
type Token struct {
	Kind Kind
	Text string
	Line int
}

// IsKeyword reports whether the token is the given PHP keyword.
// PHP keywords are case-insensitive.
func (t Token) IsKeyword(word string) bool {
	return t.Kind == KindName && strings.EqualFold(t.Text, word)
}

// IsOp reports whether the token is the given operator text
func (t Token) IsOp(text string) bool {
	return t.Kind == KindOp && t.Text == text
}

// Skippable reports whether pattern matching should step over the token
func (t Token) Skippable() bool {
	return t.Kind == KindWhitespace || t.Kind == KindComment
}

// Tokenizer turns raw source text into an ordered token sequence.
// Implementations must preserve whitespace and comments and never fail on
// malformed input; worst case is a degraded token stream.
type Tokenizer interface {
	Tokenize(src []byte) []Token
}

// Snippet reconstructs the verbatim source text spanning tokens[from:to+1],
// trimmed of leading and trailing whitespace. Indices outside the slice are
// clamped.
func Snippet(tokens []Token, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to >= len(tokens) {
		to = len(tokens) - 1
	}
	if from > to {
		return ""
	}
	var b strings.Builder
	for i := from; i <= to; i++ {
		b.WriteString(tokens[i].Text)
	}
	return strings.TrimSpace(b.String())
}

// NextSignificant returns the index of the first non-skippable token at or
// after i, or -1 if none remains.
func NextSignificant(tokens []Token, i int) int {
	for ; i < len(tokens); i++ {
		if !tokens[i].Skippable() {
			return i
		}
	}
	return -1
}

// PrevSignificant returns the index of the first non-skippable token at or
// before i, or -1 if none remains.
func PrevSignificant(tokens []Token, i int) int {
	for ; i >= 0; i-- {
		if !tokens[i].Skippable() {
			return i
		}
	}
	return -1
}
