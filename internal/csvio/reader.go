package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/firefly-engineering/skillctl/internal/parse"
)

// Table is a CSV file keyed by normalized header.
type Table struct {
	Headers  []string
	Rows     []map[string]string
	Encoding Encoding
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) []string {
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, row[name])
	}
	return out
}

// HasColumn reports whether any of the names is a header.
func (t *Table) HasColumn(names ...string) bool {
	for _, h := range t.Headers {
		for _, n := range names {
			if h == n {
				return true
			}
		}
	}
	return false
}

// ReadFile reads a CSV file from disk.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	table, err := ReadDelimited(data, delimiterFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// delimiterFor picks the field separator from the file extension.
func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// Read reads a CSV stream.
func Read(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ReadBytes(data)
}

// ReadBytes decodes and parses CSV content. The first non-blank record is the
// header row; blank records are skipped and short records are padded.
func ReadBytes(data []byte) (*Table, error) {
	return ReadDelimited(data, ',')
}

// ReadDelimited is ReadBytes with a custom field separator.
func ReadDelimited(data []byte, comma rune) (*Table, error) {
	text, enc, err := ToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s input: %w", enc, err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	table := &Table{Encoding: enc}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed csv: %w", err)
		}
		if isBlank(record) {
			continue
		}
		if table.Headers == nil {
			table.Headers = parse.NormalizeHeaders(record)
			continue
		}

		row := make(map[string]string, len(table.Headers))
		for i, h := range table.Headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if table.Headers == nil {
		return nil, fmt.Errorf("csv has no header row")
	}
	return table, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
