package app

import (
	"github.com/firefly-engineering/skillctl/internal/audit"
	"github.com/firefly-engineering/skillctl/internal/config"
	"github.com/firefly-engineering/skillctl/internal/incident"
	"github.com/firefly-engineering/skillctl/internal/ledger"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/runner"
	"github.com/firefly-engineering/skillctl/internal/skills"
	"github.com/firefly-engineering/skillctl/internal/system"
)

// App holds the application dependencies
type App struct {
	// Paths holds the home directory layout
	Paths *config.Paths

	// Config is the operator configuration
	Config *config.Config

	// ConfigErr is set when config.toml exists but could not be loaded
	ConfigErr error

	// Executor runs skill commands
	Executor system.CommandExecutor

	homeDir string
}

// Option is a function that configures the App
type Option func(*App)

// WithHome roots the App at a home directory other than the default
func WithHome(dir string) Option {
	return func(a *App) {
		a.homeDir = dir
	}
}

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithConfig sets the configuration instead of reading config.toml
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithExecutor sets a custom command executor
func WithExecutor(exec system.CommandExecutor) Option {
	return func(a *App) {
		a.Executor = exec
	}
}

// New creates a new App with the given options.
func New(opts ...Option) *App {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	home := a.homeDir
	if home == "" && a.Paths != nil {
		home = a.Paths.HomeDir
	}
	if home == "" {
		home = config.DefaultHomeDir()
	}

	if a.Config == nil {
		cfg, err := config.Load(home)
		if err != nil {
			logging.Debug("failed to load config, using defaults", "home", home, "error", err)
			a.ConfigErr = err
			cfg = config.Defaults()
		}
		a.Config = cfg
	}

	if a.Paths == nil {
		a.Paths = config.NewPaths(home, a.Config.Paths.SkillsDir)
	}

	if a.Executor == nil {
		a.Executor = system.DefaultExecutor()
	}

	return a
}

// Audit returns the event log under Paths.EventsDir
func (a *App) Audit() *audit.Logger {
	return audit.NewLogger(a.Paths.EventsDir)
}

// Runner returns a run-job runner writing to Paths.RunsDir
func (a *App) Runner(opts ...runner.Option) *runner.Runner {
	opts = append([]runner.Option{runner.WithAuditLogger(a.Audit())}, opts...)
	return runner.New(a.Paths.RunsDir, a.Executor, opts...)
}

// Incidents returns the incident store under Paths.IncidentsDir
func (a *App) Incidents(opts ...incident.Option) *incident.Store {
	opts = append([]incident.Option{incident.WithAuditLogger(a.Audit())}, opts...)
	return incident.NewStore(a.Paths.IncidentsDir, opts...)
}

// Skill loads a skill by name from Paths.SkillsDir
func (a *App) Skill(name string) (*skills.Skill, error) {
	return skills.Find(a.Paths.SkillsDir, name)
}

// Skills discovers every skill in Paths.SkillsDir
func (a *App) Skills() ([]*skills.Skill, error) {
	return skills.Discover(a.Paths.SkillsDir)
}

// OpenLedger opens the reconcile ledger. The caller must Close it.
func (a *App) OpenLedger() (*ledger.Ledger, error) {
	if err := a.Paths.Ensure(); err != nil {
		return nil, err
	}
	return ledger.Open(a.Paths.LedgerPath)
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
