package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"salesforecast/internal/forecast"
)

// CSVReader reads comma or semicolon separated files. The separator is
// detected from the header line. Semicolon files are read with ',' as the
// decimal mark.
type CSVReader struct {
	// Comma forces the separator when non-zero.
	Comma rune
}

// Read implements Reader
func (c CSVReader) Read(ctx context.Context, r io.Reader) (forecast.Table, error) {
	br := bufio.NewReader(r)

	comma := c.Comma
	if comma == 0 {
		head, _ := br.Peek(4096)
		comma = sniffSeparator(head)
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return forecast.Table{}, err
		}
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return forecast.Table{}, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}

	table, err := tableFromRows(rows)
	if err != nil {
		return table, err
	}
	if comma == ';' {
		table.Decimal = ','
	}
	return table, nil
}

// sniffSeparator prefers ';' when the first line has more semicolons than
// commas, as spreadsheet exports in comma-decimal locales do.
func sniffSeparator(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}
