package commands

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one data row keyed by lower-cased header name.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of column, or "" when the row is short.
func (r Row) Get(column string) string {
	return r.Fields[strings.ToLower(column)]
}

// Sheet is a parsed CSV document.
type Sheet struct {
	Columns []string
	Rows    []Row
	// Skipped counts records that could not be parsed at all.
	Skipped int
}

// HasColumn reports whether the header names column.
func (t *Sheet) HasColumn(column string) bool {
	column = strings.ToLower(column)
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// DecodeText returns r as UTF-8, honouring a UTF-8 or UTF-16 byte order mark.
func DecodeText(r io.Reader) ([]byte, error) {
	return io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
}

// ReadTable parses CSV text with a header row. It is lenient:
// rows may have any number of fields, a stray quote inside an unquoted field
// is kept literally, and a record that cannot be parsed at all (for example
// an unterminated quoted field) is dropped while parsing resumes on the next
// physical line. A quoted field that spans lines and contains stray quotes
// is kept whole. Only I/O errors are returned.
func ReadTable(r io.Reader) (*Sheet, error) {
	text, err := DecodeText(r)
	if err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	src := newLineIndex(text)

	t := &Sheet{}
	emit := func(line int, rec []string) {
		fields := trimFields(rec)
		if allEmpty(fields) {
			return
		}
		if t.Columns == nil {
			t.Columns = make([]string, len(fields))
			for i, f := range fields {
				t.Columns[i] = strings.ToLower(f)
			}
			return
		}
		row := Row{Line: line, Fields: make(map[string]string, len(t.Columns))}
		for i, col := range t.Columns {
			if i < len(fields) && col != "" {
				row.Fields[col] = fields[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}

	// base is the 0-based physical line the current reader starts at.
	base := 0
	for base < src.lines() {
		cr := newCSVReader(src.from(base), false)
		for {
			rec, err := cr.Read()
			if err == io.EOF {
				return t, nil
			}
			if err == nil {
				line, _ := cr.FieldPos(0)
				emit(base+line, rec)
				continue
			}

			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read table: %w", err)
			}
			start := base + pe.StartLine - 1
			end := base + pe.Line - 1
			next := start + 1

			switch {
			case errors.Is(pe.Err, csv.ErrBareQuote):
				next = end + 1
				t.Skipped += emitLazy(src, start, next, emit)
			case errors.Is(pe.Err, csv.ErrQuote) && start == end:
				// one physical line: an odd quote count means the field never closes
				if bytes.Count(src.slice(start, next), []byte{'"'})%2 == 0 {
					t.Skipped += emitLazy(src, start, next, emit)
				} else {
					t.Skipped++
				}
			case errors.Is(pe.Err, csv.ErrQuote) && !rowsWithin(src, start+1, end+1):
				// a multi-line field with stray quotes; the lines it swallowed
				// are answer text, not rows
				next = end + 1
				t.Skipped += emitLazy(src, start, next, emit)
			default:
				// the quote opened on start never closes and later rows were
				// swallowed; drop only the opening line
				t.Skipped++
			}
			base = next
			break
		}
	}
	return t, nil
}

func newCSVReader(b []byte, lazy bool) *csv.Reader {
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = lazy
	return cr
}

// emitLazy re-reads lines [from, to) with relaxed quoting and emits every
// record found. It returns 1 when nothing could be recovered.
func emitLazy(src lineIndex, from, to int, emit func(line int, rec []string)) int {
	cr := newCSVReader(src.slice(from, to), true)
	n := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			break
		}
		line, _ := cr.FieldPos(0)
		emit(from+line, rec)
		n++
	}
	if n == 0 {
		return 1
	}
	return 0
}

// rowsWithin reports whether any line in [from, to) reads on its own as a
// command row, which means an earlier quote swallowed real rows.
func rowsWithin(src lineIndex, from, to int) bool {
	for i := from; i < to; i++ {
		rec, err := newCSVReader(src.slice(i, i+1), false).Read()
		if err != nil || len(rec) < 2 {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(rec[0]), CommandMarker) {
			return true
		}
	}
	return false
}

func trimFields(rec []string) []string {
	out := make([]string, len(rec))
	for i, f := range rec {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func allEmpty(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}

// lineIndex maps physical line numbers to byte offsets.
type lineIndex struct {
	text   []byte
	starts []int
}

func newLineIndex(text []byte) lineIndex {
	starts := []int{0}
	for i, c := range text {
		if c == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{text: text, starts: starts}
}

func (li lineIndex) lines() int {
	if len(li.text) == 0 {
		return 0
	}
	return len(li.starts)
}

func (li lineIndex) offset(line int) int {
	if line >= len(li.starts) {
		return len(li.text)
	}
	return li.starts[line]
}

func (li lineIndex) from(line int) []byte { return li.text[li.offset(line):] }

// slice returns lines [from, to).
func (li lineIndex) slice(from, to int) []byte {
	return li.text[li.offset(from):li.offset(to)]
}
