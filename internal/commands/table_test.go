package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func names(t *Sheet) []string {
	out := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r.Get("command"))
	}
	return out
}

func TestReadTableBasics(t *testing.T) {
	in := " Command , answer ,keyboard,aliases,help\n" +
		"/ping, pong ,a|b,\"p, pi\",ping help\n" +
		"\n" +
		"/short,only answer\n" +
		"/long,x,,,,extra,fields\n" +
		",,,\n"
	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"command", "answer", "keyboard", "aliases", "help"}, tbl.Columns)
	require.Equal(t, []string{"/ping", "/short", "/long"}, names(tbl))
	require.Equal(t, "pong", tbl.Rows[0].Get("answer"))
	require.Equal(t, "p, pi", tbl.Rows[0].Get("aliases"))
	require.Equal(t, "", tbl.Rows[1].Get("keyboard"))
	require.Equal(t, 0, tbl.Skipped)
	require.True(t, tbl.HasColumn("Command"))
}

func TestReadTableMultilineQuotedField(t *testing.T) {
	in := "command,answer\n/a,\"line1\nline2\"\n/b,two\n"
	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"/a", "/b"}, names(tbl))
	require.Equal(t, "line1\nline2", tbl.Rows[0].Get("answer"))
	require.Equal(t, 4, tbl.Rows[1].Line)
}

func TestReadTableBareQuoteIsLiteral(t *testing.T) {
	in := "command,answer\n/quote,he said \"hi\" loudly\n/next,ok\n"
	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"/quote", "/next"}, names(tbl))
	require.Equal(t, `he said "hi" loudly`, tbl.Rows[0].Get("answer"))
	require.Equal(t, 0, tbl.Skipped)
}

func TestReadTableUnterminatedQuoteSkipsOnlyThatRow(t *testing.T) {
	in := "command,answer\n" +
		"/first,one\n" +
		"/broken,\"never closed\n" +
		"/after,two\n" +
		"/last,\"three\"\n"
	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"/first", "/after", "/last"}, names(tbl))
	require.Equal(t, "three", tbl.Rows[2].Get("answer"))
	require.Equal(t, 1, tbl.Skipped)
}

func TestReadTableMultilineFieldWithStrayQuotes(t *testing.T) {
	in := "command,answer,keyboard\n" +
		"/a,\"Hello\nworld, say \"hi\" there\",kb\n" +
		"/b,ok\n"
	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"/a", "/b"}, names(tbl))
	require.Equal(t, "Hello\nworld, say \"hi\" there", tbl.Rows[0].Get("answer"))
	require.Equal(t, "kb", tbl.Rows[0].Get("keyboard"))
	require.Equal(t, 2, tbl.Rows[0].Line)
	require.Equal(t, 4, tbl.Rows[1].Line)
	require.Zero(t, tbl.Skipped)

	recs := RecordsFromTable(tbl)
	require.Len(t, recs, 2)
	require.Equal(t, "a", recs[0].Name)
}

func TestReadTableUnterminatedQuoteOnLastRow(t *testing.T) {
	in := "command,answer\n/first,one\n/broken,\"oops"
	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"/first"}, names(tbl))
	require.Equal(t, 1, tbl.Skipped)
}

func TestReadTableBOMAndCRLF(t *testing.T) {
	in := "\ufeffcommand,answer\r\n/a,x\r\n/b,y\r\n"
	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"command", "answer"}, tbl.Columns)
	require.Equal(t, []string{"/a", "/b"}, names(tbl))
	require.Equal(t, "y", tbl.Rows[1].Get("answer"))
}

func TestReadTableUTF16(t *testing.T) {
	// UTF-16LE with BOM, as some spreadsheet exports produce.
	src := "command,answer\n/a,é\n"
	b := []byte{0xFF, 0xFE}
	for _, r := range src {
		b = append(b, byte(r), byte(r>>8))
	}
	tbl, err := ReadTable(strings.NewReader(string(b)))
	require.NoError(t, err)
	require.Equal(t, []string{"/a"}, names(tbl))
	require.Equal(t, "é", tbl.Rows[0].Get("answer"))
}

func TestReadTableEmpty(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, tbl.Rows)
	require.Nil(t, tbl.Columns)
}
