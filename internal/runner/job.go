package runner

import (
	"time"

	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
)

// Status is the lifecycle state of a run-job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether the status is terminal.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is the record stored in run.json.
type Job struct {
	RunID      string              `json:"run_id"`
	Skill      string              `json:"skill"`
	Status     Status              `json:"status"`
	Actor      string              `json:"actor,omitempty"`
	Params     map[string]string   `json:"params,omitempty"`
	Command    []string            `json:"command"`
	DryRun     bool                `json:"dry_run,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	ExitCode   *int                `json:"exit_code,omitempty"`
	Error      *skillerrors.Detail `json:"error,omitempty"`
}

// Duration is the wall time of the run so far, or in total once finished.
func (j *Job) Duration(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(*j.StartedAt)
	}
	return now.Sub(*j.StartedAt)
}

// Err converts the job's error envelope back into an error, or nil.
func (j *Job) Err() error {
	if j.Error == nil {
		return nil
	}
	return skillerrors.New(skillerrors.ExitSkillFailed, j.Error.Type, j.Error.Message)
}

func (j *Job) fail(at time.Time, errType, message string) {
	j.Status = StatusFailed
	j.FinishedAt = &at
	j.Error = &skillerrors.Detail{Type: errType, Message: message}
}
