package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/firefly-engineering/skillctl/internal/audit"
	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/skills"
	"github.com/firefly-engineering/skillctl/internal/system"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testSkill(t *testing.T, command string) *skills.Skill {
	t.Helper()
	return &skills.Skill{
		Metadata: skills.Metadata{Name: "csv-export", Description: "export"},
		Manifest: skills.Manifest{
			Command:    command,
			DryRunFlag: "--dry-run",
			Params:     map[string]string{"month": "1"},
			Env:        map[string]string{"TZ": "Asia/Tokyo"},
		},
		Dir: t.TempDir(),
	}
}

func newTestRunner(t *testing.T, exec system.CommandExecutor) (*Runner, *fakeClock, *audit.Logger) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	n := 0
	auditLog := audit.NewLogger(t.TempDir())
	r := New(t.TempDir(), exec,
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("run-%d", n) }),
		WithAuditLogger(auditLog),
	)
	return r, clock, auditLog
}

func TestStart_Success(t *testing.T) {
	mock := system.NewMockExecutor()
	mock.AddResponse("python3", []byte("wrote 3 rows\n"), 0, nil)
	r, _, auditLog := newTestRunner(t, mock)
	s := testSkill(t, "python3 export.py --month {month} --out {output_dir}")

	job, err := r.Start(context.Background(), s, map[string]string{"month": "2"}, false, "cli")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if job.Status != StatusSucceeded || job.ExitCode == nil || *job.ExitCode != 0 || job.Error != nil {
		t.Errorf("job = %+v", job)
	}

	cmd, _ := mock.LastCommand()
	artifacts, _ := r.ArtifactsPath("run-1")
	want := "python3 export.py --month 2 --out " + artifacts
	if cmd.CommandLine() != want {
		t.Errorf("command = %q, want %q", cmd.CommandLine(), want)
	}
	if cmd.Dir != s.Dir {
		t.Errorf("Dir = %q, want %q", cmd.Dir, s.Dir)
	}
	env := strings.Join(cmd.Env, " ")
	if !strings.Contains(env, "TZ=Asia/Tokyo") || !strings.Contains(env, "SKILLCTL_RUN_ID=run-1") {
		t.Errorf("Env = %v", cmd.Env)
	}

	loaded, err := r.Load("run-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Status != StatusSucceeded || loaded.Params["month"] != "2" {
		t.Errorf("loaded = %+v", loaded)
	}
	if _, err := os.Stat(artifacts); err != nil {
		t.Errorf("artifacts dir missing: %v", err)
	}

	logText, err := r.Log("run-1", 0)
	if err != nil || logText != "wrote 3 rows\n" {
		t.Errorf("Log() = %q, %v", logText, err)
	}

	events, err := auditLog.Events("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Type != audit.EventRunStart || events[1].Type != audit.EventRunFinish {
		t.Errorf("events = %+v", events)
	}
}

func TestStart_Failures(t *testing.T) {
	tests := []struct {
		name     string
		response system.MockResponse
		wantType string
		wantMsg  string
	}{
		{
			name:     "non-zero exit",
			response: system.MockResponse{Output: []byte("boom\n"), ExitCode: 3},
			wantType: skillerrors.TypeExecution,
			wantMsg:  "exited with status 3",
		},
		{
			name:     "skill envelope",
			response: system.MockResponse{Output: []byte("login...\n{\"error\":{\"type\":\"auth\",\"message\":\"session expired\"}}\n"), ExitCode: 1},
			wantType: skillerrors.TypeAuth,
			wantMsg:  "session expired",
		},
		{
			name:     "start error",
			response: system.MockResponse{Err: errors.New("executable not found")},
			wantType: skillerrors.TypeExecution,
			wantMsg:  "executable not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := system.NewMockExecutor()
			mock.DefaultResponse = tt.response
			r, _, auditLog := newTestRunner(t, mock)

			job, err := r.Start(context.Background(), testSkill(t, "./run.sh"), nil, false, "")
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if job.Status != StatusFailed || job.FinishedAt == nil {
				t.Fatalf("job = %+v", job)
			}
			if job.Error.Type != tt.wantType || !strings.Contains(job.Error.Message, tt.wantMsg) {
				t.Errorf("Error = %+v, want type %q containing %q", job.Error, tt.wantType, tt.wantMsg)
			}
			if skillerrors.GetType(job.Err()) != tt.wantType {
				t.Errorf("Err() type = %q", skillerrors.GetType(job.Err()))
			}

			events, _ := auditLog.Events(job.RunID)
			if len(events) != 2 || events[1].Type != audit.EventRunFail || events[1].Actor != "cli" {
				t.Errorf("events = %+v", events)
			}
		})
	}
}

type blockingExecutor struct{}

func (blockingExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingExecutor) Run(ctx context.Context, c system.Command) (int, error) {
	<-ctx.Done()
	return -1, ctx.Err()
}

func TestStart_Timeout(t *testing.T) {
	r, _, _ := newTestRunner(t, blockingExecutor{})
	s := testSkill(t, "sleep 60")
	s.Manifest.Timeout.Duration = 10 * time.Millisecond

	job, err := r.Start(context.Background(), s, nil, false, "dashboard")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if job.Status != StatusFailed || job.Error.Type != skillerrors.TypeTimeout {
		t.Errorf("job = %+v", job)
	}
	if job.ExitCode != nil {
		t.Errorf("ExitCode = %d, want unset", *job.ExitCode)
	}
}

func TestPrepare_Errors(t *testing.T) {
	r, _, _ := newTestRunner(t, system.NewMockExecutor())

	if _, err := r.Prepare(testSkill(t, "run {missing}"), nil, false, ""); err == nil {
		t.Error("expected error for unknown placeholder")
	}
	noDry := testSkill(t, "run")
	noDry.Manifest.DryRunFlag = ""
	if _, err := r.Prepare(noDry, nil, true, ""); err == nil {
		t.Error("expected error for dry-run without flag")
	}

	jobs, err := r.List()
	if err != nil || len(jobs) != 0 {
		t.Errorf("failed prepares left runs behind: %v, %v", jobs, err)
	}
}

func TestPrepare_DryRun(t *testing.T) {
	r, _, _ := newTestRunner(t, system.NewMockExecutor())
	job, err := r.Prepare(testSkill(t, "run"), nil, true, "")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != StatusQueued || !job.DryRun || job.Command[len(job.Command)-1] != "--dry-run" {
		t.Errorf("job = %+v", job)
	}
}

func TestList_NewestFirst(t *testing.T) {
	r, clock, _ := newTestRunner(t, system.NewMockExecutor())
	s := testSkill(t, "run")

	for i := 0; i < 3; i++ {
		if _, err := r.Prepare(s, nil, false, ""); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Minute)
	}
	if err := os.MkdirAll(filepath.Join(r.RunsDir(), "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	jobs, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 3 || jobs[0].RunID != "run-3" || jobs[2].RunID != "run-1" {
		var ids []string
		for _, j := range jobs {
			ids = append(ids, j.RunID)
		}
		t.Errorf("List() = %v", ids)
	}
}

func TestLoad_Errors(t *testing.T) {
	r, _, _ := newTestRunner(t, system.NewMockExecutor())

	if _, err := r.Load("nope"); skillerrors.GetExitCode(err) != skillerrors.ExitRunNotFound {
		t.Errorf("Load(nope) = %v", err)
	}
	if _, err := r.Load("../etc"); skillerrors.GetExitCode(err) != skillerrors.ExitValidation {
		t.Errorf("Load(../etc) = %v", err)
	}
}

func TestLog_Tail(t *testing.T) {
	mock := system.NewMockExecutor()
	mock.DefaultResponse = system.MockResponse{Output: []byte("a\nb\nc\nd\n")}
	r, _, _ := newTestRunner(t, mock)

	job, err := r.Start(context.Background(), testSkill(t, "run"), nil, false, "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		tail int
		want string
	}{
		{0, "a\nb\nc\nd\n"},
		{2, "c\nd\n"},
		{10, "a\nb\nc\nd\n"},
	}
	for _, tt := range tests {
		got, err := r.Log(job.RunID, tt.tail)
		if err != nil || got != tt.want {
			t.Errorf("Log(tail=%d) = %q, %v; want %q", tt.tail, got, err, tt.want)
		}
	}
}

func TestReap(t *testing.T) {
	r, clock, auditLog := newTestRunner(t, system.NewMockExecutor())
	s := testSkill(t, "run")

	stale, err := r.Prepare(s, nil, false, "")
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(20 * time.Minute)
	fresh, err := r.Prepare(s, nil, false, "")
	if err != nil {
		t.Fatal(err)
	}
	done, err := r.Start(context.Background(), s, nil, false, "")
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(15 * time.Minute)

	reaped, err := r.Reap(30 * time.Minute)
	if err != nil {
		t.Fatalf("Reap() error = %v", err)
	}
	if len(reaped) != 1 || reaped[0].RunID != stale.RunID {
		t.Fatalf("Reap() = %+v, want only %s", reaped, stale.RunID)
	}

	got, _ := r.Load(stale.RunID)
	if got.Status != StatusFailed || got.Error.Type != skillerrors.TypeTimeout {
		t.Errorf("stale job = %+v", got)
	}
	for _, id := range []string{fresh.RunID, done.RunID} {
		j, _ := r.Load(id)
		if j.Status == StatusFailed {
			t.Errorf("job %s should not be reaped", id)
		}
	}

	events, _ := auditLog.Events(stale.RunID)
	if len(events) != 1 || events[0].Type != audit.EventRunReaped {
		t.Errorf("events = %+v", events)
	}

	if again, _ := r.Reap(30 * time.Minute); len(again) != 0 {
		t.Errorf("second Reap() = %d jobs", len(again))
	}
	if none, _ := r.Reap(0); none != nil {
		t.Error("Reap(0) should be a no-op")
	}
}
