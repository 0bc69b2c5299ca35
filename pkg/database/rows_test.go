package database

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRecordAndScanBack(t *testing.T) {
	var buf bytes.Buffer
	records := [][]sql.RawBytes{
		{sql.RawBytes("1"), sql.RawBytes("alice"), nil},
		{sql.RawBytes("2"), sql.RawBytes("tab\there"), sql.RawBytes("2026-01-02 03:04:05")},
		{sql.RawBytes("3"), sql.RawBytes("line\nbreak"), sql.RawBytes(`back\slash`)},
	}
	for _, rec := range records {
		require.NoError(t, WriteRecord(&buf, rec))
	}

	s := NewRecordScanner(&buf)

	require.True(t, s.Scan())
	got := s.Record()
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].Value)
	assert.Equal(t, "alice", got[1].Value)
	assert.True(t, got[2].Null)

	require.True(t, s.Scan())
	got = s.Record()
	assert.Equal(t, "tab\there", got[1].Value)
	assert.Equal(t, "2026-01-02 03:04:05", got[2].Value)

	require.True(t, s.Scan())
	got = s.Record()
	assert.Equal(t, "line\nbreak", got[1].Value)
	assert.Equal(t, `back\slash`, got[2].Value)

	assert.False(t, s.Scan())
	assert.NoError(t, s.Err())
}

func TestNullVersusLiteralBackslashN(t *testing.T) {
	var buf bytes.Buffer
	// a literal two-character string "\N" must not come back as NULL
	require.NoError(t, WriteRecord(&buf, []sql.RawBytes{sql.RawBytes(`\N`), nil}))

	s := NewRecordScanner(&buf)
	require.True(t, s.Scan())
	got := s.Record()
	require.Len(t, got, 2)
	assert.False(t, got[0].Null)
	assert.Equal(t, `\N`, got[0].Value)
	assert.True(t, got[1].Null)
}

func TestEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, []sql.RawBytes{sql.RawBytes(""), sql.RawBytes("x"), sql.RawBytes("")}))

	s := NewRecordScanner(&buf)
	require.True(t, s.Scan())
	got := s.Record()
	require.Len(t, got, 3)
	assert.Equal(t, "", got[0].Value)
	assert.False(t, got[0].Null)
	assert.Equal(t, "", got[2].Value)
}

func TestValuesTuple(t *testing.T) {
	tuple := valuesTuple([]Field{
		{Value: "1"},
		{Value: "o'brien"},
		{Null: true},
		{Value: `a\b`},
	})
	assert.Equal(t, `('1','o\'brien',NULL,'a\\b')`, tuple)
}

func TestEscapeIdentifier(t *testing.T) {
	assert.Equal(t, "`t1`", esc("t1"))
	assert.Equal(t, "`weird``name`", esc("weird`name"))
}

func TestConnectionDSN(t *testing.T) {
	c := Connection{User: "u", Pass: "p", Host: "db.example.com", Port: 3306}
	dsn := c.DSN()
	assert.Contains(t, dsn, "tcp(db.example.com:3306)")
	assert.Contains(t, dsn, "u:p@")

	sock := Connection{Host: "/var/run/mysqld/mysqld.sock"}
	assert.Contains(t, sock.DSN(), "unix(/var/run/mysqld/mysqld.sock)")
}

func TestIntegerType(t *testing.T) {
	for _, typ := range []string{"int", "bigint", "TINYINT", "smallint", "mediumint", "integer"} {
		assert.True(t, integerType(typ), typ)
	}
	for _, typ := range []string{"varchar", "char", "datetime", "decimal", "binary"} {
		assert.False(t, integerType(typ), typ)
	}
}

func TestDecodeRecordTrailingEmptyField(t *testing.T) {
	fields := decodeRecord([]byte("a\tb\t"))
	require.Len(t, fields, 3)
	assert.Equal(t, "", fields[2].Value)
}

func TestUnescapeUnknownEscapePassesThrough(t *testing.T) {
	assert.Equal(t, "aqb", unescapeField([]byte(`a\qb`)))
	assert.Equal(t, strings.Repeat("x", 3), unescapeField([]byte("xxx")))
}

func TestBinaryFieldsRoundTrip(t *testing.T) {
	// BLOB and non-UTF-8 charset values must come back byte for byte,
	// never through a UTF-8 decode
	binary := [][]byte{
		{0x00, 0xff, 0xfe, 0x80, 0x41},
		{0xc3},             // truncated UTF-8 sequence
		{0x80, 0x81, 0xbf}, // latin1 high bytes
		{'\\', 'N', 0xff},
		{'\t', 0xfe, '\n', 0xfd, '\r', '\\'},
	}

	var buf bytes.Buffer
	for _, f := range binary {
		require.NoError(t, WriteRecord(&buf, []sql.RawBytes{sql.RawBytes(f), nil}))
	}

	s := NewRecordScanner(&buf)
	for _, want := range binary {
		require.True(t, s.Scan())
		got := s.Record()
		require.Len(t, got, 2)
		assert.False(t, got[0].Null)
		assert.Equal(t, want, []byte(got[0].Value))
		assert.True(t, got[1].Null)
	}
	assert.False(t, s.Scan())
	assert.NoError(t, s.Err())
}

func TestEscapeSQLKeepsBinaryBytes(t *testing.T) {
	in := string([]byte{'a', 0x00, 0xff, '\'', 0x80})
	out := escapeSQL(in)
	assert.Equal(t, "a\\0\xff\\'\x80", out)
}
