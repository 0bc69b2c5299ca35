package database

import (
	"bufio"
	"bytes"
	"database/sql"
	"io"
	"strings"
)

// Data chunks are encoded one record per line, fields separated by
// tabs, with tab/newline/backslash escaped and NULL spelled \N. This
// is the classic tab-separated dump encoding, so artifacts stay
// readable without the tool.
//
// The codec works on raw bytes throughout. Column values are arbitrary
// binary (BLOB, VARBINARY, non-UTF-8 charsets) and must round-trip
// byte for byte.

const nullField = `\N`

// WriteRecord encodes one row. A nil RawBytes is a SQL NULL.
func WriteRecord(w io.Writer, fields []sql.RawBytes) error {
	var b bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\t')
		}
		if f == nil {
			b.WriteString(nullField)
			continue
		}
		b.Write(escapeField(f))
	}
	b.WriteByte('\n')
	_, err := w.Write(b.Bytes())
	return err
}

func escapeField(f []byte) []byte {
	out := make([]byte, 0, len(f))
	for _, c := range f {
		switch c {
		case '\\':
			out = append(out, '\\', '\\')
		case '\t':
			out = append(out, '\\', 't')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, c)
		}
	}
	return out
}

// Field is one decoded value of a record. Value may hold arbitrary
// binary data.
type Field struct {
	Null  bool
	Value string
}

// RecordScanner decodes records written by WriteRecord.
type RecordScanner struct {
	scanner *bufio.Scanner
	record  []Field
}

func NewRecordScanner(r io.Reader) *RecordScanner {
	s := bufio.NewScanner(r)
	// rows can be wide; allow lines well past the default 64K
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &RecordScanner{scanner: s}
}

func (rs *RecordScanner) Scan() bool {
	for rs.scanner.Scan() {
		line := rs.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rs.record = decodeRecord(line)
		return true
	}
	return false
}

func (rs *RecordScanner) Record() []Field { return rs.record }

func (rs *RecordScanner) Err() error { return rs.scanner.Err() }

func decodeRecord(line []byte) []Field {
	var fields []Field
	var b []byte
	escaped := false
	flush := func() {
		if string(b) == nullField {
			fields = append(fields, Field{Null: true})
		} else {
			fields = append(fields, Field{Value: unescapeField(b)})
		}
		b = b[:0]
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		if !escaped && c == '\\' {
			escaped = true
			b = append(b, c)
			continue
		}
		if !escaped && c == '\t' {
			flush()
			continue
		}
		escaped = false
		b = append(b, c)
	}
	flush()
	return fields
}

func unescapeField(f []byte) string {
	out := make([]byte, 0, len(f))
	escaped := false
	for _, c := range f {
		if !escaped && c == '\\' {
			escaped = true
			continue
		}
		if escaped {
			switch c {
			case 't':
				out = append(out, '\t')
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			default:
				out = append(out, c)
			}
			escaped = false
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// valuesTuple renders one record as a quoted SQL values tuple.
func valuesTuple(fields []Field) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if f.Null {
			b.WriteString("NULL")
			continue
		}
		b.WriteByte('\'')
		b.WriteString(escapeSQL(f.Value))
		b.WriteByte('\'')
	}
	b.WriteByte(')')
	return b.String()
}

func escapeSQL(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
