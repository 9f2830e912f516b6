package commands

import (
	"bytes"
	"encoding/csv"
	"errors"
)

const (
	StartCommand = "/start"
	StartAnswer  = "Welcome! Use /help to see available commands."
	StartHelp    = "Start the bot"
)

// ErrNoDataRows is returned when a table has a header but no rows to use as a template.
var ErrNoDataRows = errors.New("table has no data rows")

// StartRow builds a /start row in header order, using the first data row as
// a template for columns it does not override.
func StartRow(t *Sheet) ([]string, error) {
	if t == nil || len(t.Rows) == 0 {
		return nil, ErrNoDataRows
	}
	first := t.Rows[0]
	row := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		switch col {
		case "command":
			row[i] = StartCommand
		case "answer":
			row[i] = StartAnswer
		case "aliases":
			row[i] = ""
		case "help":
			row[i] = StartHelp
		default:
			row[i] = first.Get(col)
		}
	}
	return row, nil
}

// AppendStart returns raw with a /start row appended. The existing text is
// kept as is; the new row is written with standard CSV quoting.
func AppendStart(raw []byte) ([]byte, error) {
	text, err := DecodeText(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	t, err := ReadTable(bytes.NewReader(text))
	if err != nil {
		return nil, err
	}
	row, err := StartRow(t)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(text)
	if len(text) > 0 && text[len(text)-1] != '\n' {
		if bytes.Contains(text, []byte("\r\n")) {
			buf.WriteString("\r\n")
		} else {
			buf.WriteByte('\n')
		}
	}
	w := csv.NewWriter(&buf)
	w.UseCRLF = bytes.Contains(text, []byte("\r\n"))
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
