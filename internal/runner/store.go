package runner

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/firefly-engineering/skillctl/internal/config"
	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/logging"
)

const (
	JobFile      = "run.json"
	LogFile      = "output.log"
	ArtifactsDir = "artifacts"
)

// Dir returns the directory of a run, rejecting ids that would escape
// runsDir.
func (r *Runner) Dir(runID string) (string, error) {
	if err := config.ValidateName(runID); err != nil {
		return "", skillerrors.ValidationError(fmt.Sprintf("invalid run id: %v", err))
	}
	dir, err := config.SafePath(r.runsDir, runID, "")
	if err != nil {
		return "", skillerrors.ValidationError(fmt.Sprintf("invalid run id %q: %v", runID, err))
	}
	return dir, nil
}

// ArtifactsPath returns the artifacts directory of a run.
func (r *Runner) ArtifactsPath(runID string) (string, error) {
	dir, err := r.Dir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ArtifactsDir), nil
}

// Load reads run.json for runID.
func (r *Runner) Load(runID string) (*Job, error) {
	dir, err := r.Dir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, JobFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, skillerrors.RunNotFound(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, skillerrors.ParseError(fmt.Sprintf("run %s has a malformed %s", runID, JobFile), err)
	}
	return &job, nil
}

// List returns every run, newest first. Unreadable runs are skipped.
func (r *Runner) List() ([]*Job, error) {
	entries, err := os.ReadDir(r.runsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Job{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	jobs := []*Job{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		job, err := r.Load(entry.Name())
		if err != nil {
			logging.Debug("skipping run", "run_id", entry.Name(), "error", err)
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].RunID > jobs[j].RunID
	})
	return jobs, nil
}

// Log returns the run's output. tail > 0 keeps only the last tail lines.
func (r *Runner) Log(runID string, tail int) (string, error) {
	if _, err := r.Load(runID); err != nil {
		return "", err
	}
	dir, _ := r.Dir(runID)

	data, err := os.ReadFile(filepath.Join(dir, LogFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if tail <= 0 {
		return string(data), nil
	}

	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	return strings.Join(lines, ""), nil
}

func (r *Runner) save(job *Job) error {
	dir, err := r.Dir(job.RunID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	tmp := filepath.Join(dir, JobFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, JobFile))
}

// lastEnvelope returns the last error envelope printed to the log, if any.
func lastEnvelope(logPath string) *skillerrors.Detail {
	f, err := os.Open(logPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var found *skillerrors.Detail
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, `{"error"`) {
			continue
		}
		var env skillerrors.Envelope
		if json.Unmarshal([]byte(line), &env) == nil && env.Error.Type != "" {
			detail := env.Error
			found = &detail
		}
	}
	return found
}
