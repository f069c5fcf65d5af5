/*
** Copyright (C) 2025 The MultiDelphi Authors
**
** This file is part of the MultiDelphi language project.
**
**
** GNU Lesser General Public License Usage
** This file may be used under the terms of the GNU Lesser
** General Public License version 2.1 or version 3 as published by the Free
** Software Foundation and appearing in the file LICENSE.LGPLv21 and
** LICENSE.LGPLv3 included in the packaging of this file. Please review the
** following information to ensure the GNU Lesser General Public License
** requirements will be met: https://www.gnu.org/licenses/lgpl.html and
** http://www.gnu.org/licenses/old-licenses/lgpl-2.1.html.
 */

package Delphi

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Scanner is the token supply of the parser. Stop is called by the parser
// once the goal has been accepted; afterwards Next only returns TokEof.
type Scanner interface {
	Next() Token
	Line() uint32
	Source() string
	Stop()
}

// Lexer implements Scanner for Delphi source text
type Lexer struct {
	reader         *bufio.Reader
	closer         io.Closer
	sloc           uint32
	lineNr         uint32
	colNr          int
	sourcePath     string
	line           []byte
	lastToken      Token
	ignoreComments bool
	lineCounted    bool
	eof            bool
	stopped        bool
	log            *slog.Logger
}

func NewLexer() *Lexer {
	return &Lexer{ignoreComments: true, log: discardLogger}
}

// SetLogger attaches a logger; the lexer logs at debug level only
func (l *Lexer) SetLogger(log *slog.Logger) {
	if log == nil {
		log = discardLogger
	}
	l.log = log.With(slog.String("component", "lexer"))
}

// SetStream sets the input stream and source path
func (l *Lexer) SetStream(input io.Reader, sourcePath string) {
	l.reader = bufio.NewReader(input)
	skipBOM(l.reader)
	l.lineNr = 0
	l.colNr = 0
	l.line = nil
	l.sourcePath = sourcePath
	l.lastToken = Token{Type: TokInvalid}
	l.sloc = 0
	l.lineCounted = false
	l.eof = false
	l.stopped = false
}

// SetStreamFromFile opens a file and sets it as input
func (l *Lexer) SetStreamFromFile(sourcePath string) error {
	file, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	l.closer = file
	l.SetStream(file, sourcePath)
	return nil
}

// SetString is a shortcut for in-memory sources
func (l *Lexer) SetString(src, sourcePath string) {
	l.SetStream(strings.NewReader(src), sourcePath)
}

func (l *Lexer) SetIgnoreComments(ignore bool) {
	l.ignoreComments = ignore
}

func (l *Lexer) Next() Token {
	return l.NextToken()
}

func (l *Lexer) Source() string {
	return l.sourcePath
}

func (l *Lexer) Line() uint32 {
	return l.lastToken.LineNr
}

// Stop ends scanning; the remainder of the input is never read
func (l *Lexer) Stop() {
	if l.stopped {
		return
	}
	l.stopped = true
	l.log.Debug("scanner stopped", slog.String("path", l.sourcePath), slog.Int("line", int(l.lineNr)))
	if l.closer != nil {
		l.closer.Close()
		l.closer = nil
	}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	if l.stopped {
		return l.eofToken()
	}
	t := l.nextTokenImp()
	for t.Type == TokComment && l.ignoreComments {
		t = l.nextTokenImp()
	}
	return t
}

// Tokens tokenizes a string and returns all tokens up to but excluding eof;
// an invalid token is included and ends the list.
func (l *Lexer) Tokens(code string) []Token {
	l.SetString(code, "")
	var tokens []Token
	for {
		t := l.NextToken()
		if t.Type == TokEof {
			break
		}
		tokens = append(tokens, t)
		if t.Type == TokInvalid {
			break
		}
	}
	return tokens
}

// GetSloc returns source lines of code count
func (l *Lexer) GetSloc() uint32 {
	return l.sloc
}

func (l *Lexer) eofToken() Token {
	t := Token{Type: TokEof, LineNr: l.lineNr, ColNr: uint32(l.colNr) + 1, SourcePath: l.sourcePath}
	l.lastToken = t
	return t
}

func (l *Lexer) nextTokenImp() Token {
	if l.reader == nil {
		return l.eofToken()
	}

	l.skipWhiteSpace()
	for l.colNr >= len(l.line) {
		if !l.nextLine() {
			return l.eofToken()
		}
		l.skipWhiteSpace()
	}

	ch := l.line[l.colNr]
	switch {
	case ch == '\'' || ch == '#':
		return l.parseString()
	case isAlpha(ch) || ch == '&' && isAlpha(l.lookAhead(1)):
		return l.parseIdent()
	case isDigit(ch) || ch == '$' && isHexDigit(l.lookAhead(1)):
		return l.parseNumber()
	case ch == '{':
		return l.parseComment("}", 1)
	case ch == '(' && l.lookAhead(1) == '*':
		return l.parseComment("*)", 2)
	case ch == '/' && l.lookAhead(1) == '/':
		t := l.makeToken(TokComment, len(l.line)-l.colNr, l.line[l.colNr:])
		return t
	}

	switch ch {
	case '+':
		return l.makeToken(TokPlus, 1, nil)
	case '-':
		return l.makeToken(TokMinus, 1, nil)
	case '*':
		return l.makeToken(TokStar, 1, nil)
	case '/':
		return l.makeToken(TokSlash, 1, nil)
	case '=':
		return l.makeToken(TokEq, 1, nil)
	case '<':
		switch l.lookAhead(1) {
		case '>':
			return l.makeToken(TokNeq, 2, nil)
		case '=':
			return l.makeToken(TokLeq, 2, nil)
		}
		return l.makeToken(TokLt, 1, nil)
	case '>':
		if l.lookAhead(1) == '=' {
			return l.makeToken(TokGeq, 2, nil)
		}
		return l.makeToken(TokGt, 1, nil)
	case '(':
		if l.lookAhead(1) == '.' {
			return l.makeToken(TokLbrack, 2, nil)
		}
		return l.makeToken(TokLpar, 1, nil)
	case ')':
		return l.makeToken(TokRpar, 1, nil)
	case '[':
		return l.makeToken(TokLbrack, 1, nil)
	case ']':
		return l.makeToken(TokRbrack, 1, nil)
	case '.':
		switch l.lookAhead(1) {
		case '.':
			return l.makeToken(Tok2Dot, 2, nil)
		case ')':
			return l.makeToken(TokRbrack, 2, nil)
		}
		return l.makeToken(TokDot, 1, nil)
	case ',':
		return l.makeToken(TokComma, 1, nil)
	case ';':
		return l.makeToken(TokSemi, 1, nil)
	case ':':
		if l.lookAhead(1) == '=' {
			return l.makeToken(TokColonEq, 2, nil)
		}
		return l.makeToken(TokColon, 1, nil)
	case '^':
		return l.makeToken(TokHat, 1, nil)
	case '@':
		return l.makeToken(TokAt, 1, nil)
	}
	return l.makeToken(TokInvalid, 1, []byte(fmt.Sprintf("unexpected character '%c' (%d)", ch, ch)))
}

func (l *Lexer) skipWhiteSpace() {
	for l.colNr < len(l.line) && isSpace(l.line[l.colNr]) {
		l.colNr++
	}
}

// nextLine reads the next line; it returns false at end of input
func (l *Lexer) nextLine() bool {
	if l.eof {
		l.line = nil
		l.colNr = 0
		return false
	}
	line, err := l.reader.ReadBytes('\n')
	if err != nil {
		l.eof = true
		if len(line) == 0 {
			l.line = nil
			l.colNr = 0
			return false
		}
	}
	l.colNr = 0
	l.lineNr++
	l.lineCounted = false
	l.line = bytes.TrimRight(line, "\r\n")
	return true
}

func (l *Lexer) lookAhead(off int) byte {
	pos := l.colNr + off
	if pos < len(l.line) {
		return l.line[pos]
	}
	return 0
}

func (l *Lexer) makeToken(tokenType TokenType, length int, val []byte) Token {
	if tokenType != TokInvalid && tokenType != TokComment && tokenType != TokEof {
		l.countLine()
	}
	tokenVal := make([]byte, len(val))
	copy(tokenVal, val)
	t := Token{
		Type:       tokenType,
		Len:        uint16(length),
		LineNr:     l.lineNr,
		ColNr:      uint32(l.colNr) + 1,
		Val:        tokenVal,
		SourcePath: l.sourcePath,
	}
	l.lastToken = t
	l.colNr += length
	return t
}

func (l *Lexer) parseIdent() Token {
	start := l.colNr
	escaped := l.line[start] == '&'
	pos := start + 1
	for pos < len(l.line) && isAlnum(l.line[pos]) {
		pos++
	}
	str := l.line[start:pos]
	if escaped {
		t := l.makeToken(TokIdent, pos-start, str[1:])
		return t
	}
	if strings.EqualFold(string(str), "asm") {
		return l.parseAssembler()
	}
	return l.makeToken(KeywordFromString(string(str)), pos-start, str)
}

// parseNumber handles decimal and $hex integers and reals; "1..2" is an
// integer followed by "..".
func (l *Lexer) parseNumber() Token {
	start := l.colNr
	pos := start
	if l.line[pos] == '$' {
		pos++
		for pos < len(l.line) && isHexDigit(l.line[pos]) {
			pos++
		}
		return l.makeToken(TokInteger, pos-start, l.line[start:pos])
	}
	for pos < len(l.line) && isDigit(l.line[pos]) {
		pos++
	}
	isReal := false
	if pos+1 < len(l.line) && l.line[pos] == '.' && isDigit(l.line[pos+1]) {
		isReal = true
		pos++
		for pos < len(l.line) && isDigit(l.line[pos]) {
			pos++
		}
	}
	if pos < len(l.line) && (l.line[pos] == 'e' || l.line[pos] == 'E') {
		p := pos + 1
		if p < len(l.line) && (l.line[p] == '+' || l.line[p] == '-') {
			p++
		}
		if p >= len(l.line) || !isDigit(l.line[p]) {
			return l.makeToken(TokInvalid, p-start, []byte("invalid real number"))
		}
		for p < len(l.line) && isDigit(l.line[p]) {
			p++
		}
		pos = p
		isReal = true
	}
	if pos < len(l.line) && isAlpha(l.line[pos]) {
		return l.makeToken(TokInvalid, pos-start+1, []byte("invalid number literal"))
	}
	if isReal {
		return l.makeToken(TokReal, pos-start, l.line[start:pos])
	}
	return l.makeToken(TokInteger, pos-start, l.line[start:pos])
}

// parseString folds a sequence of quoted strings and #nn control characters
// into one string token carrying the decoded text.
func (l *Lexer) parseString() Token {
	start := l.colNr
	pos := start
	var val []byte
	for pos < len(l.line) {
		ch := l.line[pos]
		if ch == '\'' {
			pos++
			closed := false
			for pos < len(l.line) {
				if l.line[pos] == '\'' {
					if pos+1 < len(l.line) && l.line[pos+1] == '\'' {
						val = append(val, '\'')
						pos += 2
						continue
					}
					pos++
					closed = true
					break
				}
				val = append(val, l.line[pos])
				pos++
			}
			if !closed {
				return l.makeToken(TokInvalid, pos-start, []byte("non-terminated string"))
			}
		} else if ch == '#' {
			pos++
			digStart := pos
			base := 10
			if pos < len(l.line) && l.line[pos] == '$' {
				base = 16
				pos++
				digStart = pos
				for pos < len(l.line) && isHexDigit(l.line[pos]) {
					pos++
				}
			} else {
				for pos < len(l.line) && isDigit(l.line[pos]) {
					pos++
				}
			}
			n, err := strconv.ParseUint(string(l.line[digStart:pos]), base, 32)
			if err != nil || n > utf8.MaxRune {
				return l.makeToken(TokInvalid, pos-start, []byte("invalid character code"))
			}
			val = utf8.AppendRune(val, rune(n))
		} else {
			break
		}
	}
	return l.makeToken(TokString, pos-start, val)
}

// parseComment consumes a comment up to term, possibly spanning lines.
// Compiler directives {$...} are comments as far as the parser is concerned.
func (l *Lexer) parseComment(term string, openLen int) Token {
	startLine := l.lineNr
	startCol := l.colNr
	var text []byte
	rest := l.line[l.colNr+openLen:]
	for {
		if i := bytes.Index(rest, []byte(term)); i >= 0 {
			text = append(text, rest[:i]...)
			l.colNr = len(l.line) - len(rest) + i + len(term)
			break
		}
		text = append(text, rest...)
		if !l.nextLine() {
			t := Token{Type: TokInvalid, LineNr: startLine, ColNr: uint32(startCol) + 1,
				Val: []byte("non-terminated comment"), SourcePath: l.sourcePath}
			l.lastToken = t
			return t
		}
		text = append(text, '\n')
		rest = l.line
	}
	t := Token{Type: TokComment, LineNr: startLine, ColNr: uint32(startCol) + 1,
		Len: uint16(len(text)), Val: text, SourcePath: l.sourcePath}
	l.lastToken = t
	return t
}

// parseAssembler returns the whole asm ... end block as one token; the
// closing end is consumed.
func (l *Lexer) parseAssembler() Token {
	startLine := l.lineNr
	startCol := l.colNr
	l.countLine()
	var code []byte
	pos := l.colNr + 3
	for {
		for pos < len(l.line) {
			if isAlpha(l.line[pos]) && (pos == 0 || !isAlnum(l.line[pos-1])) {
				end := pos
				for end < len(l.line) && isAlnum(l.line[end]) {
					end++
				}
				if strings.EqualFold(string(l.line[pos:end]), "end") {
					code = append(code, l.line[l.colNrOr(startLine, startCol):pos]...)
					t := Token{Type: TokAsm, LineNr: startLine, ColNr: uint32(startCol) + 1,
						Len: uint16(len(code)), Val: bytes.TrimSpace(code), SourcePath: l.sourcePath}
					l.lastToken = t
					l.colNr = end
					return t
				}
				pos = end
				continue
			}
			pos++
		}
		code = append(code, l.line[l.colNrOr(startLine, startCol):]...)
		if !l.nextLine() {
			t := Token{Type: TokInvalid, LineNr: startLine, ColNr: uint32(startCol) + 1,
				Val: []byte("non-terminated asm block"), SourcePath: l.sourcePath}
			l.lastToken = t
			return t
		}
		code = append(code, '\n')
		pos = 0
	}
}

// colNrOr gives the text start of the current line inside an asm block
func (l *Lexer) colNrOr(startLine uint32, startCol int) int {
	if l.lineNr == startLine {
		return startCol + 3
	}
	return 0
}

func (l *Lexer) countLine() {
	if !l.lineCounted {
		l.sloc++
		l.lineCounted = true
	}
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipBOM(r *bufio.Reader) bool {
	buf, err := r.Peek(3)
	if err == nil && buf[0] == 0xef && buf[1] == 0xbb && buf[2] == 0xbf {
		r.Discard(3)
		return true
	}
	return false
}
