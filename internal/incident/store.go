package incident

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/firefly-engineering/skillctl/internal/audit"
	"github.com/firefly-engineering/skillctl/internal/config"
	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/parse"
	"github.com/firefly-engineering/skillctl/internal/runner"
)

const (
	IncidentFile = "incident.json"
	PlanFile     = "plan.json"
	HandoffFile  = "handoff.json"
	ArchiveDir   = "archive"
)

// Store manages incidents under a root directory.
type Store struct {
	root     string
	auditLog *audit.Logger
	now      func() time.Time
	newID    func(time.Time) string
}

// Option configures a Store.
type Option func(*Store)

// WithAuditLogger records every transition.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(s *Store) {
		s.auditLog = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator replaces the default id scheme.
func WithIDGenerator(newID func(time.Time) string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// NewStore creates a Store rooted at dir (normally Paths.IncidentsDir).
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		root:  dir,
		now:   time.Now,
		newID: defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultID(t time.Time) string {
	return "inc-" + t.In(parse.JST).Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// Root returns the incidents directory.
func (s *Store) Root() string {
	return s.root
}

// CaptureInput describes a failure to record.
type CaptureInput struct {
	Skill     string
	RunID     string
	Step      string
	ErrorType string
	Message   string
	Actor     string
}

// Capture opens a new incident.
func (s *Store) Capture(in CaptureInput) (*Incident, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, skillerrors.ValidationError("incident message is required")
	}
	if in.RunID != "" {
		if existing, err := s.findByRun(in.RunID); err != nil {
			return nil, err
		} else if existing != nil {
			logging.Debug("incident already captured for run", "run_id", in.RunID, "incident", existing.ID)
			return existing, nil
		}
	}

	now := s.now().UTC()
	inc := &Incident{
		ID:           s.newID(now),
		Status:       StatusOpen,
		Step:         in.Step,
		FailureClass: Classify(in.ErrorType, in.Message),
		Skill:        in.Skill,
		RunID:        in.RunID,
		ErrorType:    in.ErrorType,
		Message:      in.Message,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := config.ValidateName(inc.ID); err != nil {
		return nil, skillerrors.ValidationError(fmt.Sprintf("invalid incident id: %v", err))
	}

	dir, err := s.statusDir(StatusOpen, inc.ID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create incident directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, IncidentFile), inc); err != nil {
		return nil, err
	}

	s.event(audit.EventCapture, inc.ID, in.Actor, fmt.Sprintf("%s: %s", inc.FailureClass, inc.Message))
	logging.Info("incident captured", "incident", inc.ID, "skill", inc.Skill, "class", inc.FailureClass)
	return inc, nil
}

// CaptureRun opens an incident for a failed run. Capturing the same run twice
// returns the existing incident.
func (s *Store) CaptureRun(job *runner.Job, step, actor string) (*Incident, error) {
	if job.Status != runner.StatusFailed || job.Error == nil {
		return nil, skillerrors.ValidationError(fmt.Sprintf("run %s has not failed (status %s)", job.RunID, job.Status))
	}
	return s.Capture(CaptureInput{
		Skill:     job.Skill,
		RunID:     job.RunID,
		Step:      step,
		ErrorType: job.Error.Type,
		Message:   job.Error.Message,
		Actor:     actor,
	})
}

// Plan records remediation steps and moves the incident to planned.
func (s *Store) Plan(id string, steps []string, actor string) (*Incident, error) {
	var cleaned []string
	for _, step := range steps {
		if step = strings.TrimSpace(step); step != "" {
			cleaned = append(cleaned, step)
		}
	}
	if len(cleaned) == 0 {
		return nil, skillerrors.ValidationError("a plan needs at least one step")
	}

	return s.transition(id, StatusPlanned, actor, audit.EventPlan, strings.Join(cleaned, "; "),
		func(inc *Incident, dir string) error {
			inc.Plan = &Plan{Steps: cleaned, Author: actor, CreatedAt: s.now().UTC()}
			return writeJSON(filepath.Join(dir, PlanFile), inc.Plan)
		})
}

// Approve marks a planned incident as approved.
func (s *Store) Approve(id, by string) (*Incident, error) {
	if strings.TrimSpace(by) == "" {
		return nil, skillerrors.ValidationError("approver is required")
	}
	return s.transition(id, StatusApproved, by, audit.EventApprove, "approved by "+by,
		func(inc *Incident, dir string) error {
			inc.Approval = &Approval{By: by, At: s.now().UTC()}
			return nil
		})
}

// Handoff passes an approved incident to its owner and writes handoff.json.
func (s *Store) Handoff(id, to, notes, actor string) (*Incident, error) {
	if strings.TrimSpace(to) == "" {
		return nil, skillerrors.ValidationError("handoff recipient is required")
	}
	return s.transition(id, StatusHandedOff, actor, audit.EventHandoff, "handed off to "+to,
		func(inc *Incident, dir string) error {
			inc.Handoff = &Handoff{To: to, Notes: notes, By: actor, At: s.now().UTC()}
			return writeJSON(filepath.Join(dir, HandoffFile), inc.Handoff)
		})
}

// Resolve closes a handed-off incident.
func (s *Store) Resolve(id, note, actor string) (*Incident, error) {
	return s.transition(id, StatusResolved, actor, audit.EventResolve, note,
		func(inc *Incident, dir string) error {
			inc.Resolution = &Resolution{Outcome: StatusResolved, Note: note, By: actor, At: s.now().UTC()}
			return nil
		})
}

// Escalate closes an incident that cannot be handled by the normal workflow.
func (s *Store) Escalate(id, reason, actor string) (*Incident, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, skillerrors.ValidationError("escalation reason is required")
	}
	return s.transition(id, StatusEscalated, actor, audit.EventEscalate, reason,
		func(inc *Incident, dir string) error {
			inc.Resolution = &Resolution{Outcome: StatusEscalated, Note: reason, By: actor, At: s.now().UTC()}
			return nil
		})
}

func (s *Store) transition(id string, to Status, actor string, eventType audit.EventType, details string,
	mutate func(inc *Incident, dir string) error) (*Incident, error) {
	inc, dir, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	if inc.Archived() {
		return nil, skillerrors.InvalidTransition(id, "archive", string(to))
	}
	if !CanTransition(inc.Status, to) {
		return nil, skillerrors.InvalidTransition(id, string(inc.Status), string(to))
	}

	from := inc.Status
	if err := mutate(inc, dir); err != nil {
		return nil, err
	}
	inc.Status = to
	inc.UpdatedAt = s.now().UTC()
	if err := saveIncident(dir, inc); err != nil {
		return nil, err
	}

	target, err := s.statusDir(to, id)
	if err != nil {
		return nil, err
	}
	if err := move(dir, target); err != nil {
		return nil, err
	}

	s.event(eventType, id, actor, details)
	logging.Info("incident transition", "incident", id, "from", from, "to", to)
	return inc, nil
}

// Archive moves a resolved or escalated incident to archive/<YYYY-MM>/, by
// the month it was closed in JST.
func (s *Store) Archive(id, actor string) (*Incident, error) {
	inc, dir, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	if inc.Archived() {
		return inc, nil
	}
	if !inc.Status.Closed() {
		return nil, skillerrors.InvalidTransition(id, string(inc.Status), ArchiveDir)
	}

	now := s.now().UTC()
	inc.ArchivedAt = &now
	if err := saveIncident(dir, inc); err != nil {
		return nil, err
	}

	month := inc.UpdatedAt.In(parse.JST).Format("2006-01")
	target, err := securejoin.SecureJoin(s.root, filepath.Join(ArchiveDir, month, id))
	if err != nil {
		return nil, skillerrors.ValidationError(fmt.Sprintf("invalid incident id %q: %v", id, err))
	}
	if err := move(dir, target); err != nil {
		return nil, err
	}

	s.event(audit.EventArchive, id, actor, "archived to "+month)
	return inc, nil
}

// ArchiveClosed archives every resolved or escalated incident.
func (s *Store) ArchiveClosed(actor string) ([]*Incident, error) {
	closed, err := s.List(Filter{Statuses: []Status{StatusResolved, StatusEscalated}})
	if err != nil {
		return nil, err
	}
	var archived []*Incident
	for _, inc := range closed {
		a, err := s.Archive(inc.ID, actor)
		if err != nil {
			return archived, err
		}
		archived = append(archived, a)
	}
	return archived, nil
}

// Get loads an incident, including archived ones, with its plan and handoff.
func (s *Store) Get(id string) (*Incident, error) {
	inc, _, err := s.locate(id)
	return inc, err
}

// List returns incidents matching f, newest first.
func (s *Store) List(f Filter) ([]*Incident, error) {
	var dirs []string
	for _, status := range Statuses {
		entries, err := readDirs(filepath.Join(s.root, string(status)))
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, entries...)
	}
	if f.IncludeArchived {
		months, err := readDirs(filepath.Join(s.root, ArchiveDir))
		if err != nil {
			return nil, err
		}
		for _, m := range months {
			entries, err := readDirs(m)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, entries...)
		}
	}

	incidents := []*Incident{}
	for _, dir := range dirs {
		inc, err := loadIncident(dir)
		if err != nil {
			logging.Debug("skipping incident", "dir", dir, "error", err)
			continue
		}
		if f.match(inc) {
			incidents = append(incidents, inc)
		}
	}

	sort.Slice(incidents, func(i, j int) bool {
		if !incidents[i].CreatedAt.Equal(incidents[j].CreatedAt) {
			return incidents[i].CreatedAt.After(incidents[j].CreatedAt)
		}
		return incidents[i].ID > incidents[j].ID
	})
	return incidents, nil
}

// Counts returns the number of live incidents per status.
func (s *Store) Counts() (map[Status]int, error) {
	all, err := s.List(Filter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[Status]int, len(Statuses))
	for _, inc := range all {
		counts[inc.Status]++
	}
	return counts, nil
}

// Events returns the audit trail of an incident.
func (s *Store) Events(id string) ([]audit.Event, error) {
	if _, _, err := s.locate(id); err != nil {
		return nil, err
	}
	if s.auditLog == nil {
		return nil, nil
	}
	return s.auditLog.Events(id)
}

// locate finds the directory holding id, checking status folders first and
// then the archive.
func (s *Store) locate(id string) (*Incident, string, error) {
	if err := config.ValidateName(id); err != nil {
		return nil, "", skillerrors.ValidationError(fmt.Sprintf("invalid incident id: %v", err))
	}

	candidates := make([]string, 0, len(Statuses))
	for _, status := range Statuses {
		dir, err := s.statusDir(status, id)
		if err != nil {
			return nil, "", err
		}
		candidates = append(candidates, dir)
	}
	months, err := readDirs(filepath.Join(s.root, ArchiveDir))
	if err != nil {
		return nil, "", err
	}
	for _, m := range months {
		candidates = append(candidates, filepath.Join(m, id))
	}

	for _, dir := range candidates {
		inc, err := loadIncident(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return inc, dir, nil
	}
	return nil, "", skillerrors.IncidentNotFound(id)
}

func (s *Store) findByRun(runID string) (*Incident, error) {
	all, err := s.List(Filter{IncludeArchived: true})
	if err != nil {
		return nil, err
	}
	for _, inc := range all {
		if inc.RunID == runID {
			return inc, nil
		}
	}
	return nil, nil
}

func (s *Store) statusDir(status Status, id string) (string, error) {
	dir, err := securejoin.SecureJoin(s.root, filepath.Join(string(status), id))
	if err != nil {
		return "", skillerrors.ValidationError(fmt.Sprintf("invalid incident id %q: %v", id, err))
	}
	return dir, nil
}

func (s *Store) event(t audit.EventType, id, actor, details string) {
	if s.auditLog == nil {
		return
	}
	if actor == "" {
		actor = "cli"
	}
	if err := s.auditLog.LogEvent(t, id, actor, details); err != nil {
		logging.Warn("failed to write incident event", "incident", id, "error", err)
	}
}

func loadIncident(dir string) (*Incident, error) {
	data, err := os.ReadFile(filepath.Join(dir, IncidentFile))
	if err != nil {
		return nil, err
	}
	var inc Incident
	if err := json.Unmarshal(data, &inc); err != nil {
		return nil, skillerrors.ParseError(fmt.Sprintf("malformed %s in %s", IncidentFile, dir), err)
	}

	var plan Plan
	if ok, err := readJSON(filepath.Join(dir, PlanFile), &plan); err != nil {
		return nil, err
	} else if ok {
		inc.Plan = &plan
	}
	var handoff Handoff
	if ok, err := readJSON(filepath.Join(dir, HandoffFile), &handoff); err != nil {
		return nil, err
	} else if ok {
		inc.Handoff = &handoff
	}
	return &inc, nil
}

// saveIncident writes incident.json without the plan and handoff, which
// have their own files.
func saveIncident(dir string, inc *Incident) error {
	record := *inc
	record.Plan = nil
	record.Handoff = nil
	return writeJSON(filepath.Join(dir, IncidentFile), &record)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, skillerrors.ParseError("malformed "+filepath.Base(path), err)
	}
	return true, nil
}

func readDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}

func move(from, to string) error {
	if from == to {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(to), err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to move incident: %w", err)
	}
	return nil
}
