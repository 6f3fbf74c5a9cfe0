package csvio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/firefly-engineering/skillctl/internal/parse"
)

// ReadRecords loads header-keyed rows from a .csv, .tsv, .json (array of objects)
// or .jsonl file. Keys are normalized with parse.NormalizeHeader. For JSON
// inputs the returned headers are the sorted union of keys.
func ReadRecords(path string) ([]map[string]string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		table, err := ReadDelimited(data, delimiterFor(path))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return table.Rows, table.Headers, nil
	case ".jsonl", ".ndjson":
		rows, err := decodeJSONL(data)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return rows, unionKeys(rows), nil
	case ".json":
		rows, err := decodeJSONArray(data)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return rows, unionKeys(rows), nil
	default:
		return nil, nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
}

func decodeJSONArray(data []byte) ([]map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("expected a JSON array of objects: %w", err)
	}
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, flatten(item))
	}
	return rows, nil
}

func decodeJSONL(data []byte) ([]map[string]string, error) {
	var rows []map[string]string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var item map[string]any
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rows = append(rows, flatten(item))
	}
	return rows, scanner.Err()
}

func flatten(item map[string]any) map[string]string {
	row := make(map[string]string, len(item))
	for k, v := range item {
		row[parse.NormalizeHeader(k)] = stringify(v)
	}
	return row
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func unionKeys(rows []map[string]string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
