package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/config"
	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/parse"
)

// paths returns the default paths configuration.
func paths() *config.Paths {
	return app.Default.Paths
}

// cfg returns the loaded operator configuration.
func cfg() *config.Config {
	return app.Default.Config
}

// actor names who is acting in audit events and incident records.
func actor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeResult writes v as JSON to path, or to w when path is empty.
func writeResult(w io.Writer, path string, v any) error {
	if path == "" {
		return printJSON(w, v)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return printJSON(f, v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// parseKeyValues turns repeated key=value flags into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.ValidationError(fmt.Sprintf("expected key=value, got %q", pair))
		}
		out[key] = value
	}
	return out, nil
}

// parseMonth parses "YYYY-MM" (or "YYYY/MM").
func parseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.ReplaceAll(strings.TrimSpace(s), "/", "-"))
	if err != nil {
		return 0, 0, errors.ValidationError(fmt.Sprintf("invalid month %q: want YYYY-MM", s))
	}
	return t.Year(), t.Month(), nil
}

// parseDay parses a calendar date in any format parse.ParseDate accepts.
func parseDay(s string) (time.Time, error) {
	t, err := parse.ParseDate(s)
	if err != nil {
		return time.Time{}, errors.ValidationError(fmt.Sprintf("invalid date %q", s))
	}
	return t, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
