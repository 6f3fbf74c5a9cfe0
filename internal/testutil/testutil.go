package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/config"
	"github.com/firefly-engineering/skillctl/internal/incident"
	"github.com/firefly-engineering/skillctl/internal/runner"
	"github.com/firefly-engineering/skillctl/internal/system"
)

// TestEnv holds the test environment
type TestEnv struct {
	T        *testing.T
	TmpDir   string
	Paths    *config.Paths
	Config   *config.Config
	Executor *system.MockExecutor
	App      *app.App
	cleanup  func()
}

// NewTestEnv creates a home directory under t.TempDir with a mock executor
// and installs it as app.Default until Cleanup.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	paths := config.NewPaths(filepath.Join(tmpDir, "home"), filepath.Join(tmpDir, "skills"))
	if err := paths.Ensure(); err != nil {
		t.Fatalf("Failed to create home: %v", err)
	}
	if err := os.MkdirAll(paths.SkillsDir, 0755); err != nil {
		t.Fatalf("Failed to create skills dir: %v", err)
	}

	cfg := config.Defaults()
	mock := system.NewMockExecutor()

	testApp := app.New(
		app.WithPaths(paths),
		app.WithConfig(cfg),
		app.WithExecutor(mock),
	)

	originalDefault := app.Default
	app.SetDefault(testApp)

	return &TestEnv{
		T:        t,
		TmpDir:   tmpDir,
		Paths:    paths,
		Config:   cfg,
		Executor: mock,
		App:      testApp,
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
	}
}

// AddSkill writes a skill directory with the given skill.toml content and
// returns its path.
func (e *TestEnv) AddSkill(name, description, manifest string) string {
	e.T.Helper()

	dir := filepath.Join(e.Paths.SkillsDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.T.Fatalf("Failed to create skill: %v", err)
	}
	doc, err := SkillDoc(name, description)
	if err != nil {
		e.T.Fatalf("Failed to render SKILL.md: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), doc, 0644); err != nil {
		e.T.Fatalf("Failed to write SKILL.md: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skill.toml"), []byte(manifest), 0644); err != nil {
		e.T.Fatalf("Failed to write skill.toml: %v", err)
	}
	return dir
}

// Allow adds skills to the dashboard allow-list
func (e *TestEnv) Allow(names ...string) {
	e.Config.Dashboard.Allow = append(e.Config.Dashboard.Allow, names...)
}

// RunSkill runs a skill synchronously through the mock executor
func (e *TestEnv) RunSkill(name string, params map[string]string) *runner.Job {
	e.T.Helper()

	s, err := e.App.Skill(name)
	if err != nil {
		e.T.Fatalf("Failed to load skill %s: %v", name, err)
	}
	job, err := e.App.Runner().Start(context.Background(), s, params, false, "test")
	if err != nil {
		e.T.Fatalf("Failed to run skill %s: %v", name, err)
	}
	return job
}

// CaptureIncident opens an incident directly in the store
func (e *TestEnv) CaptureIncident(skill, errType, message string) *incident.Incident {
	e.T.Helper()

	inc, err := e.App.Incidents().Capture(incident.CaptureInput{
		Skill:     skill,
		ErrorType: errType,
		Message:   message,
	})
	if err != nil {
		e.T.Fatalf("Failed to capture incident: %v", err)
	}
	return inc
}

// WriteFile writes a file relative to TmpDir and returns its path
func (e *TestEnv) WriteFile(rel string, data []byte) string {
	e.T.Helper()

	path := filepath.Join(e.TmpDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.T.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		e.T.Fatalf("Failed to write %s: %v", rel, err)
	}
	return path
}
