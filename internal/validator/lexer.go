/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package validator

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokParam
	tokSymbol
)

// token is a lexeme with its byte span in the input
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

// word returns the upper-cased text of an unquoted identifier, or ""
func (t token) word() string {
	if t.kind != tokIdent {
		return ""
	}
	return strings.ToUpper(t.text)
}

func (t token) is(sym string) bool {
	return t.kind == tokSymbol && t.text == sym
}

// comment is a -- or /* */ sequence found while lexing
type comment struct {
	text  string
	start int
}

// lexer splits a statement into tokens. It understands single-quoted
// strings, double-quoted and backquoted identifiers, PostgreSQL dollar
// quoting and both comment styles.
type lexer struct {
	input string
	pos   int

	comments []comment
	// unterminated is set when a string, identifier or comment runs to
	// the end of the input
	unterminated bool
}

func tokenize(input string) ([]token, *lexer) {
	l := &lexer{input: input}
	var toks []token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, l
		}
	}
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) next() token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, start: len(l.input), end: len(l.input)}
	}

	start := l.pos
	ch := l.input[l.pos]
	switch {
	case ch == '\'':
		l.readQuoted('\'', false)
		return l.emit(tokString, start)
	case ch == '"':
		l.readQuoted('"', false)
		return l.emit(tokQuotedIdent, start)
	case ch == '`':
		l.readQuoted('`', false)
		return l.emit(tokQuotedIdent, start)
	case (ch == 'E' || ch == 'e') && l.peek(1) == '\'':
		l.pos++
		l.readQuoted('\'', true)
		return l.emit(tokString, start)
	case ch == '$':
		if isDigit(l.peek(1)) {
			l.pos++
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
			return l.emit(tokParam, start)
		}
		if tag, ok := l.dollarTag(); ok {
			l.readDollarQuoted(tag)
			return l.emit(tokString, start)
		}
		l.pos++
		return l.emit(tokSymbol, start)
	case ch == '?' || ch == ':' && isLetter(l.peek(1)):
		l.pos++
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(tokParam, start)
	case isDigit(ch) || ch == '.' && isDigit(l.peek(1)):
		l.readNumber()
		return l.emit(tokNumber, start)
	case isLetter(ch):
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(tokIdent, start)
	}

	for _, op := range []string{"::", "<=", ">=", "<>", "!=", "||", "->>", "->"} {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.pos += len(op)
			return l.emit(tokSymbol, start)
		}
	}
	l.pos++
	return l.emit(tokSymbol, start)
}

func (l *lexer) emit(kind tokenKind, start int) token {
	return token{kind: kind, text: l.input[start:l.pos], start: start, end: l.pos}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			l.pos++
		case ch == '-' && l.peek(1) == '-':
			start := l.pos
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
			l.comments = append(l.comments, comment{text: l.input[start:l.pos], start: start})
		case ch == '/' && l.peek(1) == '*':
			start := l.pos
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.input)
				l.unterminated = true
			} else {
				l.pos += end + 4
			}
			l.comments = append(l.comments, comment{text: l.input[start:l.pos], start: start})
		default:
			return
		}
	}
}

// readQuoted consumes a quoted run where a doubled quote is an escape.
// Backslash escapes only apply to E-prefixed strings.
func (l *lexer) readQuoted(quote byte, backslash bool) {
	l.pos++ // opening quote
	for l.pos < len(l.input) {
		if l.input[l.pos] == quote {
			if l.peek(1) == quote {
				l.pos += 2
				continue
			}
			l.pos++
			return
		}
		if backslash && l.input[l.pos] == '\\' {
			l.pos++
		}
		l.pos++
	}
	l.pos = len(l.input)
	l.unterminated = true
}

// dollarTag recognises $$ or $tag$ at the current position
func (l *lexer) dollarTag() (string, bool) {
	end := l.pos + 1
	for end < len(l.input) && (isLetter(l.input[end]) || isDigit(l.input[end])) {
		end++
	}
	if end < len(l.input) && l.input[end] == '$' {
		return l.input[l.pos : end+1], true
	}
	return "", false
}

func (l *lexer) readDollarQuoted(tag string) {
	l.pos += len(tag)
	end := strings.Index(l.input[l.pos:], tag)
	if end < 0 {
		l.pos = len(l.input)
		l.unterminated = true
		return
	}
	l.pos += end + len(tag)
}

func (l *lexer) readNumber() {
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		next := l.peek(1)
		if isDigit(next) || (next == '+' || next == '-') && isDigit(l.peek(2)) {
			l.pos += 2
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch >= 0x80
}

func isIdentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '$'
}

// unquote returns the identifier text without its quotes
func unquote(t token) string {
	switch t.kind {
	case tokQuotedIdent:
		if len(t.text) >= 2 {
			q := t.text[:1]
			return strings.ReplaceAll(t.text[1:len(t.text)-1], q+q, q)
		}
	case tokString:
		s := strings.TrimPrefix(strings.TrimPrefix(t.text, "E"), "e")
		if len(s) >= 2 && s[0] == '\'' {
			return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
		}
		return s
	}
	return t.text
}
