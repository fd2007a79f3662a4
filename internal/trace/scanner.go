package trace

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/swarmverify/witness/internal/cexerr"
)

// Scanner is a streaming, pull-based parser over a raw trace. It yields one
// Event per state entry and holds O(1) state: it never materializes the
// trace and never backtracks past the entry being parsed. A consumer that
// stops calling Scan early leaves the remainder of the input untouched.
//
// Usage follows bufio.Scanner:
//
//	sc := trace.NewScanner(r, trace.DialectCurrent)
//	for sc.Scan() {
//	    ev := sc.Event()
//	    ...
//	}
//	if err := sc.Err(); err != nil {
//	    ...
//	}
//
// A parse failure is fatal for the whole trace: Scan returns false and Err
// reports a single LEX or DIALECT_MISMATCH diagnostic carrying the offending
// line number. The scanner never fabricates a guessed event from a corrupt
// entry.
type Scanner struct {
	lines   *bufio.Scanner
	dialect Dialect
	line    int
	lastSeq int
	ev      Event
	err     *cexerr.Error
	done    bool
}

// NewScanner creates a trace scanner for the given dialect. The dialect is
// supplied by the caller, which knows which backend produced the text.
func NewScanner(r io.Reader, dialect Dialect) *Scanner {
	return &Scanner{
		lines:   bufio.NewScanner(r),
		dialect: dialect,
		lastSeq: -1,
	}
}

// Scan advances to the next state entry. It returns false at the end of the
// trace or on the first fatal parse error.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.done {
		return false
	}

	header, ok := s.next()
	if !ok {
		s.done = true
		return false
	}
	ev, err := s.parseHeader(header)
	if err != nil {
		s.err = err
		return false
	}

	separator, ok := s.next()
	if !ok {
		s.err = cexerr.AtLine(cexerr.CodeLex, s.line, "trace ends after state header")
		return false
	}
	if !isSeparator(separator) {
		s.err = cexerr.AtLine(cexerr.CodeLex, s.line, "expected separator after state header")
		return false
	}

	assignment, ok := s.next()
	if !ok {
		s.err = cexerr.AtLine(cexerr.CodeLex, s.line, "trace ends before assignment")
		return false
	}
	if err := s.parseAssignment(assignment, &ev); err != nil {
		s.err = err
		return false
	}

	s.ev = ev
	return true
}

// Event returns the state entry parsed by the last successful Scan.
func (s *Scanner) Event() Event {
	return s.ev
}

// Err returns the fatal error that stopped the scan, if any.
func (s *Scanner) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// next returns the next meaningful line, discarding blank lines, simulation
// annotations, and two-line assumption blocks.
func (s *Scanner) next() (string, bool) {
	for s.lines.Scan() {
		s.line++
		line := s.lines.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "(SIMULATION)"):
			continue
		case strings.HasPrefix(trimmed, "Assumption:"):
			// The assumption body is a single follow-up line.
			if s.lines.Scan() {
				s.line++
			}
			continue
		}
		return line, true
	}
	return "", false
}

// isSeparator matches the fixed dash line between header and assignment.
func isSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 4 {
		return false
	}
	for _, c := range trimmed {
		if c != '-' {
			return false
		}
	}
	return true
}

// headerShape returns the keyword sequence of a dialect's header.
func headerShape(dialect Dialect) [5]string {
	if dialect == DialectLegacy {
		return [5]string{"State", "file", "line", "function", "thread"}
	}
	return [5]string{"State", "file", "function", "line", "thread"}
}

func otherDialect(dialect Dialect) Dialect {
	if dialect == DialectLegacy {
		return DialectCurrent
	}
	return DialectLegacy
}

func (s *Scanner) parseHeader(line string) (Event, *cexerr.Error) {
	fields := strings.Fields(line)
	if len(fields) != 10 {
		return Event{}, cexerr.AtLine(cexerr.CodeLex, s.line, "malformed state header")
	}

	shape := headerShape(s.dialect)
	keys := [5]string{fields[0], fields[2], fields[4], fields[6], fields[8]}
	if keys != shape {
		if keys == headerShape(otherDialect(s.dialect)) {
			return Event{}, cexerr.AtLine(cexerr.CodeDialectMismatch, s.line,
				"state header matches the "+string(otherDialect(s.dialect))+" dialect")
		}
		return Event{}, cexerr.AtLine(cexerr.CodeLex, s.line, "malformed state header")
	}

	seq, err := strconv.Atoi(fields[1])
	if err != nil {
		return Event{}, cexerr.AtLine(cexerr.CodeLex, s.line, "state sequence is not a number")
	}
	if seq <= s.lastSeq {
		return Event{}, cexerr.AtLine(cexerr.CodeLex, s.line, "state sequence does not increase")
	}

	ev := Event{Seq: seq, File: fields[3]}
	lineField, functionField := fields[7], fields[5]
	if s.dialect == DialectLegacy {
		lineField, functionField = fields[5], fields[7]
	}
	ev.Function = functionField
	if ev.Line, err = strconv.Atoi(lineField); err != nil {
		return Event{}, cexerr.AtLine(cexerr.CodeLex, s.line, "source line is not a number")
	}
	if ev.Thread, err = strconv.Atoi(fields[9]); err != nil {
		return Event{}, cexerr.AtLine(cexerr.CodeLex, s.line, "thread id is not a number")
	}

	s.lastSeq = seq
	return ev, nil
}

func (s *Scanner) parseAssignment(line string, ev *Event) *cexerr.Error {
	name, rest, found := strings.Cut(line, "=")
	name = strings.TrimSpace(name)
	if !found || name == "" || strings.ContainsAny(name, " \t") {
		return cexerr.AtLine(cexerr.CodeLex, s.line, "malformed assignment")
	}
	ev.Name = name

	value, pos, err := s.parseValue(rest, 0)
	if err != nil {
		return err
	}
	bits, pos, err := s.parseBitsGroup(rest, pos)
	if err != nil {
		return err
	}
	if rest = strings.TrimSpace(rest[pos:]); rest != "" {
		return cexerr.AtLine(cexerr.CodeLex, s.line, "trailing content after assignment")
	}

	ev.Value = value
	ev.Bits = bits
	return nil
}

// parseValue is a recursive-descent parser over the assignment right-hand
// side: a boolean, a numeric literal, a quoted string, or a brace list.
func (s *Scanner) parseValue(text string, pos int) (Raw, int, *cexerr.Error) {
	pos = skipSpaces(text, pos)
	if pos >= len(text) {
		return Raw{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "assignment has no value")
	}

	switch text[pos] {
	case '{':
		return s.parseList(text, pos)
	case '"':
		return s.parseString(text, pos)
	}

	token := readToken(text, pos)
	if token == "" {
		return Raw{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "unparsable value")
	}
	end := pos + len(token)
	switch token {
	case "TRUE":
		return Raw{Kind: RawBool, Bool: true}, end, nil
	case "FALSE":
		return Raw{Kind: RawBool, Bool: false}, end, nil
	}
	literal := stripIntSuffix(token)
	if !isNumericLiteral(literal) {
		return Raw{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "unparsable value "+strconv.Quote(token))
	}
	return Raw{Kind: RawNumber, Literal: literal}, end, nil
}

func (s *Scanner) parseList(text string, pos int) (Raw, int, *cexerr.Error) {
	pos++ // consume '{'
	list := Raw{Kind: RawList, Items: []Raw{}}
	for {
		item, next, err := s.parseValue(text, pos)
		if err != nil {
			return Raw{}, pos, err
		}
		list.Items = append(list.Items, item)
		pos = skipSpaces(text, next)
		if pos >= len(text) {
			return Raw{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "unterminated brace list")
		}
		switch text[pos] {
		case ',':
			pos++
		case '}':
			return list, pos + 1, nil
		default:
			return Raw{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "malformed brace list")
		}
	}
}

func (s *Scanner) parseString(text string, pos int) (Raw, int, *cexerr.Error) {
	var b strings.Builder
	for i := pos + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			if i+1 < len(text) {
				i++
				b.WriteByte(text[i])
			}
		case '"':
			return Raw{Kind: RawString, Literal: b.String()}, i + 1, nil
		default:
			b.WriteByte(text[i])
		}
	}
	return Raw{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "unterminated string literal")
}

// parseBitsGroup parses the trailing parenthesized bit pattern. The group is
// always present; the pattern inside may be empty.
func (s *Scanner) parseBitsGroup(text string, pos int) (Bits, int, *cexerr.Error) {
	pos = skipSpaces(text, pos)
	if pos >= len(text) || text[pos] != '(' {
		return Bits{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "assignment has no bit pattern group")
	}
	pos = skipSpaces(text, pos+1)
	if pos < len(text) && text[pos] == ')' {
		return Bits{}, pos + 1, nil
	}
	bits, pos, err := s.parseBits(text, pos)
	if err != nil {
		return Bits{}, pos, err
	}
	pos = skipSpaces(text, pos)
	if pos >= len(text) || text[pos] != ')' {
		return Bits{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "unterminated bit pattern group")
	}
	return bits, pos + 1, nil
}

func (s *Scanner) parseBits(text string, pos int) (Bits, int, *cexerr.Error) {
	pos = skipSpaces(text, pos)
	if pos < len(text) && text[pos] == '{' {
		pos++
		list := Bits{Present: true, Items: []Bits{}}
		for {
			item, next, err := s.parseBits(text, pos)
			if err != nil {
				return Bits{}, pos, err
			}
			list.Items = append(list.Items, item)
			pos = skipSpaces(text, next)
			if pos >= len(text) {
				return Bits{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "unterminated bit pattern list")
			}
			switch text[pos] {
			case ',':
				pos++
			case '}':
				return list, pos + 1, nil
			default:
				return Bits{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "malformed bit pattern list")
			}
		}
	}

	// A scalar run of 0/1 digits, possibly space-grouped for readability.
	var run strings.Builder
	for ; pos < len(text); pos++ {
		c := text[pos]
		if c == '0' || c == '1' {
			run.WriteByte(c)
			continue
		}
		if c == ' ' {
			continue
		}
		break
	}
	if run.Len() == 0 {
		return Bits{}, pos, cexerr.AtLine(cexerr.CodeLex, s.line, "malformed bit pattern")
	}
	return Bits{Present: true, Run: run.String()}, pos, nil
}

func skipSpaces(text string, pos int) int {
	for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t') {
		pos++
	}
	return pos
}

// readToken reads a bare literal token up to the next delimiter.
func readToken(text string, pos int) string {
	end := pos
	for end < len(text) && !strings.ContainsRune(" \t,{}()", rune(text[end])) {
		end++
	}
	return text[pos:end]
}

// stripIntSuffix removes the backend's integer literal suffixes (ul, u, l),
// which carry no information the symbol table does not already have.
func stripIntSuffix(token string) string {
	lower := strings.ToLower(token)
	for _, suffix := range []string{"ul", "lu", "ll", "u", "l"} {
		if strings.HasSuffix(lower, suffix) && len(token) > len(suffix) {
			return token[:len(token)-len(suffix)]
		}
	}
	return token
}

func isNumericLiteral(token string) bool {
	if token == "" {
		return false
	}
	start := 0
	if token[0] == '-' || token[0] == '+' {
		start = 1
	}
	if start == len(token) {
		return false
	}
	for i := start; i < len(token); i++ {
		c := token[i]
		if c >= '0' && c <= '9' {
			continue
		}
		// Tolerate float and exponent forms the backend occasionally
		// prints for derived expressions.
		if c == '.' || c == 'e' || c == 'E' || c == '-' || c == '+' {
			continue
		}
		return false
	}
	return true
}
