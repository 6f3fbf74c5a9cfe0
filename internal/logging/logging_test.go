package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetup_Formats(t *testing.T) {
	tests := []struct {
		name     string
		json     bool
		contains string
	}{
		{"text", false, "skill=gasprice"},
		{"json", true, `"skill":"gasprice"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Setup(false, tt.json, &buf)

			Info("price table fetched", "skill", "gasprice")

			if !strings.Contains(buf.String(), "price table fetched") || !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.contains)
			}
		})
	}
}

func TestSetup_Verbose(t *testing.T) {
	var buf bytes.Buffer

	Setup(false, false, &buf)
	Debug("ledger lookup")
	if Verbose || buf.Len() != 0 {
		t.Errorf("non-verbose: Verbose=%v output=%q", Verbose, buf.String())
	}

	Setup(true, false, &buf)
	Debug("ledger lookup")
	if !Verbose || !strings.Contains(buf.String(), "ledger lookup") {
		t.Errorf("verbose: Verbose=%v output=%q", Verbose, buf.String())
	}
}

func TestSetupLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupLevel(slog.LevelWarn, false, &buf)

	Info("run started")
	Warn("run failed", "type", "timeout")
	Error("ledger write failed")

	out := buf.String()
	if strings.Contains(out, "run started") {
		t.Errorf("info record passed a warn level: %q", out)
	}
	for _, want := range []string{"run failed", "type=timeout", "ledger write failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
	if Verbose {
		t.Error("Verbose should be false at warn level")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, false, &buf)

	With("incident", "inc-7").Info("approved")

	if !strings.Contains(buf.String(), "incident=inc-7") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestForSkill(t *testing.T) {
	var buf bytes.Buffer
	Setup(false, true, &buf)

	ForSkill("csv-export", "run-1").Info("finished")

	output := buf.String()
	if !strings.Contains(output, `"skill":"csv-export"`) {
		t.Errorf("expected skill attribute, got: %s", output)
	}
	if !strings.Contains(output, `"run_id":"run-1"`) {
		t.Errorf("expected run_id attribute, got: %s", output)
	}
}

func TestUserOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	defer func() { Stdout, Stderr = oldOut, oldErr }()

	UserSuccess("approved %s", "inc-1")
	UserWarning("%d rows skipped", 2)

	if !strings.Contains(out.String(), "approved inc-1") {
		t.Errorf("stdout = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "2 rows skipped") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestSetup_NilWriter(t *testing.T) {
	Setup(false, false, nil)
	if Logger == nil {
		t.Error("Logger is nil after Setup with a nil writer")
	}
}
