package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/skillctl/internal/audit"
	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/skills"
	"github.com/firefly-engineering/skillctl/internal/system"
)

// Runner creates and executes run-jobs under a runs directory.
type Runner struct {
	runsDir  string
	exec     system.CommandExecutor
	auditLog *audit.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithAuditLogger records run lifecycle events.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(r *Runner) {
		r.auditLog = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithIDGenerator replaces the uuid run-id generator.
func WithIDGenerator(newID func() string) Option {
	return func(r *Runner) {
		r.newID = newID
	}
}

// New creates a Runner.
func New(runsDir string, exec system.CommandExecutor, opts ...Option) *Runner {
	r := &Runner{
		runsDir: runsDir,
		exec:    exec,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunsDir returns the directory holding all runs.
func (r *Runner) RunsDir() string {
	return r.runsDir
}

// Prepare creates the run directory and a queued job with its resolved
// command. Parameter errors are returned before anything is written.
func (r *Runner) Prepare(s *skills.Skill, params map[string]string, dryRun bool, actor string) (*Job, error) {
	runID := r.newID()
	dir, err := r.Dir(runID)
	if err != nil {
		return nil, err
	}
	artifacts := filepath.Join(dir, ArtifactsDir)

	full := make(map[string]string, len(params)+2)
	for k, v := range params {
		full[k] = v
	}
	full[skills.ParamOutputDir] = artifacts
	full[skills.ParamRunID] = runID

	argv, err := s.Command(full, dryRun)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(artifacts, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	job := &Job{
		RunID:     runID,
		Skill:     s.Name,
		Status:    StatusQueued,
		Actor:     actor,
		Params:    params,
		Command:   argv,
		DryRun:    dryRun,
		CreatedAt: r.now(),
	}
	if err := r.save(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Execute runs a prepared job to completion and records the outcome. The
// returned error is non-nil only when the job record itself could not be
// written; a failed skill is reported through job.Status and job.Error.
func (r *Runner) Execute(ctx context.Context, s *skills.Skill, job *Job) (*Job, error) {
	log := logging.ForSkill(job.Skill, job.RunID)
	dir, err := r.Dir(job.RunID)
	if err != nil {
		return job, err
	}

	started := r.now()
	job.Status = StatusRunning
	job.StartedAt = &started
	if err := r.save(job); err != nil {
		return job, err
	}
	r.event(audit.EventRunStart, job, skills.CommandLine(job.Command))
	log.Info("run started", "command", skills.CommandLine(job.Command))

	logPath := filepath.Join(dir, LogFile)
	out, err := os.Create(logPath)
	if err != nil {
		job.fail(r.now(), skillerrors.TypeExecution, fmt.Sprintf("failed to create %s: %v", LogFile, err))
		return job, r.finish(job)
	}

	if timeout := s.Manifest.Timeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	env := append(s.Environ(),
		"SKILLCTL_RUN_ID="+job.RunID,
		"SKILLCTL_OUTPUT_DIR="+filepath.Join(dir, ArtifactsDir),
	)
	exitCode, runErr := r.exec.Run(ctx, system.Command{
		Name:   job.Command[0],
		Args:   job.Command[1:],
		Dir:    s.WorkDir(),
		Env:    env,
		Stdout: out,
		Stderr: out,
	})
	out.Close()

	finished := r.now()
	switch {
	case runErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		job.fail(finished, skillerrors.TypeTimeout, fmt.Sprintf("skill %s timed out after %s", job.Skill, s.Manifest.Timeout.Duration))
	case runErr != nil:
		job.fail(finished, skillerrors.TypeExecution, runErr.Error())
	case exitCode != 0:
		job.fail(finished, skillerrors.TypeExecution, fmt.Sprintf("skill %s exited with status %d", job.Skill, exitCode))
		if detail := lastEnvelope(logPath); detail != nil {
			job.Error = detail
		}
	default:
		job.Status = StatusSucceeded
		job.FinishedAt = &finished
	}
	if runErr == nil {
		job.ExitCode = &exitCode
	}

	return job, r.finish(job)
}

// Start prepares and executes a job synchronously.
func (r *Runner) Start(ctx context.Context, s *skills.Skill, params map[string]string, dryRun bool, actor string) (*Job, error) {
	job, err := r.Prepare(s, params, dryRun, actor)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, s, job)
}

func (r *Runner) finish(job *Job) error {
	log := logging.ForSkill(job.Skill, job.RunID)
	if job.Status == StatusSucceeded {
		log.Info("run succeeded")
		r.event(audit.EventRunFinish, job, "succeeded")
	} else {
		log.Warn("run failed", "type", job.Error.Type, "error", job.Error.Message)
		r.event(audit.EventRunFail, job, job.Error.Type+": "+job.Error.Message)
	}
	return r.save(job)
}

// Reap fails jobs that are still queued or running longer than timeout
// after creation. It returns the jobs it changed.
func (r *Runner) Reap(timeout time.Duration) ([]*Job, error) {
	if timeout <= 0 {
		return nil, nil
	}
	jobs, err := r.List()
	if err != nil {
		return nil, err
	}

	now := r.now()
	var reaped []*Job
	for _, job := range jobs {
		if job.Status.Done() {
			continue
		}
		since := job.CreatedAt
		if job.StartedAt != nil {
			since = *job.StartedAt
		}
		if now.Sub(since) <= timeout {
			continue
		}

		job.fail(now, skillerrors.TypeTimeout, fmt.Sprintf("run exceeded %s without finishing", timeout))
		if err := r.save(job); err != nil {
			logging.Warn("failed to reap run", "run_id", job.RunID, "error", err)
			continue
		}
		r.event(audit.EventRunReaped, job, job.Error.Message)
		reaped = append(reaped, job)
	}
	return reaped, nil
}

func (r *Runner) event(t audit.EventType, job *Job, details string) {
	if r.auditLog == nil {
		return
	}
	actor := job.Actor
	if actor == "" {
		actor = "cli"
	}
	if err := r.auditLog.LogEvent(t, job.RunID, actor, details); err != nil {
		logging.Warn("failed to write run event", "run_id", job.RunID, "error", err)
	}
}
