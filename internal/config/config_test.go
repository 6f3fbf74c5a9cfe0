package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewPaths(t *testing.T) {
	paths := NewPaths("/srv/skillctl", "")

	if paths.SkillsDir != filepath.Join("/srv/skillctl", "skills") {
		t.Errorf("SkillsDir = %q", paths.SkillsDir)
	}
	if paths.RunsDir != filepath.Join("/srv/skillctl", "runs") {
		t.Errorf("RunsDir = %q", paths.RunsDir)
	}
	if paths.IncidentsDir != filepath.Join("/srv/skillctl", "incidents") {
		t.Errorf("IncidentsDir = %q", paths.IncidentsDir)
	}
	if paths.EventsDir != filepath.Join("/srv/skillctl", "events") {
		t.Errorf("EventsDir = %q", paths.EventsDir)
	}
	if paths.LedgerPath != filepath.Join("/srv/skillctl", "ledger.db") {
		t.Errorf("LedgerPath = %q", paths.LedgerPath)
	}

	custom := NewPaths("/srv/skillctl", "/opt/skills")
	if custom.SkillsDir != "/opt/skills" {
		t.Errorf("SkillsDir = %q, want /opt/skills", custom.SkillsDir)
	}
}

func TestDefaultHomeDir_Env(t *testing.T) {
	t.Setenv("SKILLCTL_HOME", "/tmp/skillctl-home")
	if got := DefaultHomeDir(); got != "/tmp/skillctl-home" {
		t.Errorf("DefaultHomeDir() = %q", got)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Dashboard.Addr != DefaultDashboard {
		t.Errorf("Dashboard.Addr = %q, want %q", cfg.Dashboard.Addr, DefaultDashboard)
	}
	if cfg.Reconcile.DayWindow != 3 || cfg.Reconcile.FallbackWindow != 14 {
		t.Errorf("Reconcile = %+v", cfg.Reconcile)
	}
	if cfg.Dashboard.RunTimeout.Duration != 30*time.Minute {
		t.Errorf("RunTimeout = %v", cfg.Dashboard.RunTimeout)
	}
}

func TestLoad_File(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
log_level = "debug"

[paths]
skills_dir = "/opt/skills"

[dashboard]
addr = ":9000"
allow = ["csv-export", "gasprice"]
run_timeout = "5m"

[reconcile]
day_window = 2
fallback_window = 10

[kintone]
base_url = "https://example.cybozu.com"
app = 42
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Paths.SkillsDir != "/opt/skills" {
		t.Errorf("SkillsDir = %q", cfg.Paths.SkillsDir)
	}
	if cfg.Dashboard.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Dashboard.Addr)
	}
	if cfg.Dashboard.RunTimeout.Duration != 5*time.Minute {
		t.Errorf("RunTimeout = %v", cfg.Dashboard.RunTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.Dashboard.ReapInterval.Duration != 30*time.Second {
		t.Errorf("ReapInterval = %v", cfg.Dashboard.ReapInterval)
	}
	if !cfg.Allowed("gasprice") || cfg.Allowed("kintone") {
		t.Errorf("Allowed() mismatch for %v", cfg.Dashboard.Allow)
	}
	if cfg.Kintone.App != 42 {
		t.Errorf("Kintone.App = %d", cfg.Kintone.App)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SKILLCTL_DASHBOARD_ADDR", ":7000")
	t.Setenv("KINTONE_API_TOKEN", "tok")
	t.Setenv("KINTONE_APP", "7")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dashboard.Addr != ":7000" {
		t.Errorf("Addr = %q", cfg.Dashboard.Addr)
	}
	if cfg.Kintone.APIToken != "tok" || cfg.Kintone.App != 7 {
		t.Errorf("Kintone = %+v", cfg.Kintone)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("not = [valid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmpDir); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative window", func(c *Config) { c.Reconcile.DayWindow = -1 }, true},
		{"fallback smaller", func(c *Config) { c.Reconcile.FallbackWindow = 1 }, true},
		{"bad allow name", func(c *Config) { c.Dashboard.Allow = []string{"../x"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Defaults()
	cfg.Dashboard.Allow = []string{"csv-export"}

	if err := Save(tmpDir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Allowed("csv-export") {
		t.Errorf("Allow = %v", loaded.Dashboard.Allow)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"csv-export", "a", "gas_price2", "0day"}
	invalid := []string{"", "CSV", "-lead", "has space", "../up", "a/b", "x;y"}

	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestSafePath(t *testing.T) {
	base := t.TempDir()

	if _, err := SafePath(base, "run-1", ".json"); err != nil {
		t.Errorf("SafePath(run-1) = %v", err)
	}
	for _, name := range []string{"../escape", "/etc/passwd", "a/b"} {
		if _, err := SafePath(base, name, ".json"); err == nil {
			t.Errorf("SafePath(%q) should fail", name)
		}
	}
}
