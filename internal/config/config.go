package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// nameRegex validates skill names, incident ids and other on-disk keys.
// Names must start with a lowercase letter or digit, followed by lowercase
// letters, digits, underscores, or hyphens. Maximum length is 63 characters.
var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateName checks if a skill name or record key is valid.
// Valid names:
//   - Start with a lowercase letter or digit
//   - Contain only lowercase letters, digits, underscores, or hyphens
//   - Are between 1 and 63 characters long
//   - Do not contain path separators or special characters
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, underscores, or hyphens, and be at most 63 characters", name)
	}

	return nil
}

// SafePath validates that a constructed path stays within the base directory.
// This prevents path traversal where names like "../../../etc/passwd"
// could escape the intended directory.
func SafePath(baseDir, name, suffix string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("name cannot be an absolute path")
	}

	if filepath.Dir(name) != "." {
		return "", fmt.Errorf("name cannot contain path separators")
	}

	path := filepath.Join(baseDir, name+suffix)

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// Add separator to prevent prefix matching (e.g., /srv/runs vs /srv/runs-evil)
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", fmt.Errorf("path escapes base directory")
	}

	return path, nil
}

const (
	DefaultHomeDirName = ".skillctl"
	ConfigFileName     = "config.toml"
	DefaultDashboard   = "127.0.0.1:8787"
)

// Duration is a time.Duration that decodes from TOML strings like "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the operator configuration loaded from config.toml.
type Config struct {
	LogLevel  string          `toml:"log_level"`
	Paths     PathsConfig     `toml:"paths"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Kintone   KintoneConfig   `toml:"kintone"`
	Browser   BrowserConfig   `toml:"browser"`
	GasPrice  GasPriceConfig  `toml:"gasprice"`
}

type PathsConfig struct {
	SkillsDir string `toml:"skills_dir"`
}

type DashboardConfig struct {
	Addr         string   `toml:"addr"`
	Allow        []string `toml:"allow"`
	ReapInterval Duration `toml:"reap_interval"`
	RunTimeout   Duration `toml:"run_timeout"`
}

type ReconcileConfig struct {
	DayWindow      int `toml:"day_window"`
	FallbackWindow int `toml:"fallback_window"`
}

type KintoneConfig struct {
	BaseURL  string `toml:"base_url"`
	App      int    `toml:"app"`
	APIToken string `toml:"api_token"`
}

type BrowserConfig struct {
	Headless bool     `toml:"headless"`
	Timeout  Duration `toml:"timeout"`
}

type GasPriceConfig struct {
	URL    string `toml:"url"`
	Region string `toml:"region"`
}

// Defaults returns the configuration used when config.toml is absent.
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		Dashboard: DashboardConfig{
			Addr:         DefaultDashboard,
			ReapInterval: Duration{30 * time.Second},
			RunTimeout:   Duration{30 * time.Minute},
		},
		Reconcile: ReconcileConfig{
			DayWindow:      3,
			FallbackWindow: 14,
		},
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  Duration{60 * time.Second},
		},
	}
}

// Validate checks that the Config is valid.
func (c *Config) Validate() error {
	if c.Reconcile.DayWindow < 0 {
		return fmt.Errorf("reconcile.day_window must not be negative (got %d)", c.Reconcile.DayWindow)
	}
	if c.Reconcile.FallbackWindow < c.Reconcile.DayWindow {
		return fmt.Errorf("reconcile.fallback_window (%d) must be >= day_window (%d)",
			c.Reconcile.FallbackWindow, c.Reconcile.DayWindow)
	}
	for _, name := range c.Dashboard.Allow {
		if err := ValidateName(name); err != nil {
			return fmt.Errorf("dashboard.allow: %w", err)
		}
	}
	if c.Dashboard.RunTimeout.Duration < 0 {
		return fmt.Errorf("dashboard.run_timeout must not be negative")
	}
	return nil
}

// Allowed reports whether the dashboard may execute the named skill.
func (c *Config) Allowed(skill string) bool {
	for _, name := range c.Dashboard.Allow {
		if name == skill {
			return true
		}
	}
	return false
}

// Load reads config.toml from homeDir, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(homeDir string) (*Config, error) {
	cfg := Defaults()

	path := filepath.Join(homeDir, ConfigFileName)
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SKILLCTL_SKILLS_DIR"); v != "" {
		cfg.Paths.SkillsDir = v
	}
	if v := os.Getenv("SKILLCTL_DASHBOARD_ADDR"); v != "" {
		cfg.Dashboard.Addr = v
	}
	if v := os.Getenv("SKILLCTL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KINTONE_BASE_URL"); v != "" {
		cfg.Kintone.BaseURL = v
	}
	if v := os.Getenv("KINTONE_API_TOKEN"); v != "" {
		cfg.Kintone.APIToken = v
	}
	if v := os.Getenv("KINTONE_APP"); v != "" {
		if app, err := strconv.Atoi(v); err == nil {
			cfg.Kintone.App = app
		}
	}
}

// Save writes cfg as config.toml under homeDir.
func Save(homeDir string, cfg *Config) error {
	if err := os.MkdirAll(homeDir, 0755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	f, err := os.Create(filepath.Join(homeDir, ConfigFileName))
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Paths holds the on-disk layout under the skillctl home directory.
type Paths struct {
	HomeDir      string
	SkillsDir    string
	RunsDir      string
	IncidentsDir string
	EventsDir    string
	LedgerPath   string
}

// NewPaths derives the layout from a home directory. An empty skillsDir
// defaults to <home>/skills.
func NewPaths(homeDir, skillsDir string) *Paths {
	if skillsDir == "" {
		skillsDir = filepath.Join(homeDir, "skills")
	}
	return &Paths{
		HomeDir:      homeDir,
		SkillsDir:    skillsDir,
		RunsDir:      filepath.Join(homeDir, "runs"),
		IncidentsDir: filepath.Join(homeDir, "incidents"),
		EventsDir:    filepath.Join(homeDir, "events"),
		LedgerPath:   filepath.Join(homeDir, "ledger.db"),
	}
}

// DefaultHomeDir returns $SKILLCTL_HOME or ~/.skillctl.
func DefaultHomeDir() string {
	if v := os.Getenv("SKILLCTL_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultHomeDirName
	}
	return filepath.Join(home, DefaultHomeDirName)
}

// DefaultPaths returns the layout rooted at DefaultHomeDir.
func DefaultPaths() *Paths {
	return NewPaths(DefaultHomeDir(), os.Getenv("SKILLCTL_SKILLS_DIR"))
}

// Ensure creates every state directory in the layout.
func (p *Paths) Ensure() error {
	for _, dir := range []string{p.HomeDir, p.RunsDir, p.IncidentsDir, p.EventsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
