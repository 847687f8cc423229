package list

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Row is one parsed CSV data row.
type Row struct {
	Line   int
	Email  string
	Fields map[string]string
}

// RowReader yields CSV data rows one at a time. The first record is the
// header; the first column named "email" (any case) supplies Row.Email.
// Further email columns are dropped and every other named column goes to
// Row.Fields with surrounding whitespace trimmed.
type RowReader struct {
	r        *csv.Reader
	header   []string
	emailCol int
	line     int
	done     bool
}

// NewRowReader reads the header from src. An empty source yields a reader
// whose first Next returns io.EOF.
func NewRowReader(src io.Reader) (*RowReader, error) {
	r := csv.NewReader(bufio.NewReaderSize(src, 1024*1024))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	rr := &RowReader{r: r, emailCol: -1}
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		rr.done = true
		return rr, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrIngestion, err)
	}

	rr.header = make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		rr.header[i] = h
		if rr.emailCol < 0 && strings.EqualFold(h, "email") {
			rr.emailCol = i
		}
	}
	rr.line = 1
	return rr, nil
}

// Next returns the next data row, io.EOF at end of input, or an error
// wrapping ErrIngestion when the input cannot be parsed.
func (rr *RowReader) Next() (Row, error) {
	if rr.done {
		return Row{}, io.EOF
	}
	rec, err := rr.r.Read()
	if errors.Is(err, io.EOF) {
		rr.done = true
		return Row{}, io.EOF
	}
	if err != nil {
		rr.done = true
		return Row{}, fmt.Errorf("%w: line %d: %v", ErrIngestion, rr.line+1, err)
	}
	rr.line++

	row := Row{Line: rr.line, Fields: make(map[string]string, len(rec))}
	for i, v := range rec {
		if i >= len(rr.header) {
			break
		}
		if i == rr.emailCol {
			row.Email = v
			continue
		}
		if name := rr.header[i]; name != "" && !strings.EqualFold(name, "email") {
			row.Fields[name] = strings.TrimSpace(v)
		}
	}
	return row, nil
}
