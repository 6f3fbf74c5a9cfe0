package incident

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firefly-engineering/skillctl/internal/audit"
	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/runner"
)

func newTestStore(t *testing.T) (*Store, *time.Time, *audit.Logger) {
	t.Helper()
	now := time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC)
	n := 0
	auditLog := audit.NewLogger(t.TempDir())
	s := NewStore(t.TempDir(),
		WithAuditLogger(auditLog),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func(time.Time) string { n++; return fmt.Sprintf("inc-%d", n) }),
	)
	return s, &now, auditLog
}

func capture(t *testing.T, s *Store, skill string) *Incident {
	t.Helper()
	inc, err := s.Capture(CaptureInput{Skill: skill, Step: "login", ErrorType: "auth", Message: "session expired"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	return inc
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusOpen, StatusPlanned, true},
		{StatusOpen, StatusEscalated, true},
		{StatusOpen, StatusApproved, false},
		{StatusPlanned, StatusApproved, true},
		{StatusPlanned, StatusEscalated, true},
		{StatusPlanned, StatusPlanned, false},
		{StatusApproved, StatusHandedOff, true},
		{StatusApproved, StatusEscalated, false},
		{StatusHandedOff, StatusResolved, true},
		{StatusHandedOff, StatusEscalated, true},
		{StatusResolved, StatusOpen, false},
		{StatusEscalated, StatusResolved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		errType, message string
		want             FailureClass
	}{
		{"auth", "", ClassAuth},
		{"forbidden", "", ClassAuth},
		{"remote", "kintone request failed", ClassNetwork},
		{"timeout", "", ClassTimeout},
		{"parse", "", ClassParse},
		{"not_found", "", ClassNotFound},
		{"execution", "page.goto: Timeout 30000ms exceeded", ClassTimeout},
		{"execution", "Login failed: invalid password", ClassAuth},
		{"execution", "dial tcp 10.0.0.1:443: connection refused", ClassNetwork},
		{"execution", "receipt.pdf: no such file or directory", ClassNotFound},
		{"execution", "invalid character 'x' looking for beginning of value", ClassParse},
		{"execution", "exited with status 2", ClassUnknown},
		{"", "", ClassUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.errType, tt.message); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.errType, tt.message, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Handed_Off "); err != nil || s != StatusHandedOff {
		t.Errorf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("closed"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestWorkflow_HappyPath(t *testing.T) {
	s, now, _ := newTestStore(t)

	inc := capture(t, s, "mf-reconcile")
	if inc.Status != StatusOpen || inc.FailureClass != ClassAuth {
		t.Fatalf("captured = %+v", inc)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "open", inc.ID, IncidentFile)); err != nil {
		t.Fatalf("incident.json not in open/: %v", err)
	}

	if _, err := s.Plan(inc.ID, []string{"re-login", " ", "rerun for 2026-03"}, "alice"); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := s.Approve(inc.ID, "bob"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if _, err := s.Handoff(inc.ID, "ops", "rerun after password reset", "bob"); err != nil {
		t.Fatalf("Handoff() error = %v", err)
	}
	*now = now.Add(time.Hour)
	resolved, err := s.Resolve(inc.ID, "rerun succeeded", "ops")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != StatusResolved || resolved.Resolution.Outcome != StatusResolved {
		t.Errorf("resolved = %+v", resolved)
	}

	dir := filepath.Join(s.Root(), "resolved", inc.ID)
	for _, f := range []string{IncidentFile, PlanFile, HandoffFile} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s missing after moves: %v", f, err)
		}
	}
	for _, status := range []Status{StatusOpen, StatusPlanned, StatusApproved, StatusHandedOff} {
		if _, err := os.Stat(filepath.Join(s.Root(), string(status), inc.ID)); !os.IsNotExist(err) {
			t.Errorf("incident left behind in %s/", status)
		}
	}

	got, err := s.Get(inc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Plan == nil || len(got.Plan.Steps) != 2 || got.Plan.Author != "alice" {
		t.Errorf("Plan = %+v", got.Plan)
	}
	if got.Approval == nil || got.Approval.By != "bob" {
		t.Errorf("Approval = %+v", got.Approval)
	}
	if got.Handoff == nil || got.Handoff.To != "ops" {
		t.Errorf("Handoff = %+v", got.Handoff)
	}

	events, err := s.Events(inc.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []audit.EventType{audit.EventCapture, audit.EventPlan, audit.EventApprove, audit.EventHandoff, audit.EventResolve}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, e.Type, want[i])
		}
	}
	if events[0].Actor != "cli" {
		t.Errorf("capture actor = %q, want cli", events[0].Actor)
	}

	// Closed in April JST (2026-03-31 21:00 UTC).
	archived, err := s.Archive(inc.ID, "")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !archived.Archived() {
		t.Error("ArchivedAt not set")
	}
	if _, err := os.Stat(filepath.Join(s.Root(), ArchiveDir, "2026-04", inc.ID, IncidentFile)); err != nil {
		t.Errorf("archive location: %v", err)
	}
	if _, err := s.Get(inc.ID); err != nil {
		t.Errorf("Get() after archive = %v", err)
	}
	if _, err := s.Escalate(inc.ID, "too late", ""); skillerrors.GetExitCode(err) != skillerrors.ExitTransition {
		t.Errorf("transition on archived incident = %v", err)
	}
}

func TestWorkflow_InvalidTransitions(t *testing.T) {
	s, _, _ := newTestStore(t)
	inc := capture(t, s, "csv-export")

	if _, err := s.Approve(inc.ID, "bob"); skillerrors.GetType(err) != skillerrors.TypeTransition {
		t.Errorf("Approve(open) = %v, want invalid_transition", err)
	}
	if _, err := s.Resolve(inc.ID, "", ""); skillerrors.GetExitCode(err) != skillerrors.ExitTransition {
		t.Errorf("Resolve(open) = %v", err)
	}
	if _, err := s.Archive(inc.ID, ""); skillerrors.GetExitCode(err) != skillerrors.ExitTransition {
		t.Errorf("Archive(open) = %v", err)
	}

	if _, err := s.Plan(inc.ID, nil, ""); skillerrors.GetExitCode(err) != skillerrors.ExitValidation {
		t.Errorf("Plan(no steps) = %v", err)
	}
	if _, err := s.Escalate(inc.ID, "", ""); err == nil {
		t.Error("Escalate without reason should fail")
	}

	got, _ := s.Get(inc.ID)
	if got.Status != StatusOpen {
		t.Errorf("status changed to %s after rejected transitions", got.Status)
	}

	esc, err := s.Escalate(inc.ID, "vendor site redesigned", "alice")
	if err != nil || esc.Status != StatusEscalated {
		t.Fatalf("Escalate(open) = %+v, %v", esc, err)
	}
	if _, err := s.Plan(inc.ID, []string{"x"}, ""); skillerrors.GetExitCode(err) != skillerrors.ExitTransition {
		t.Errorf("Plan(escalated) = %v", err)
	}
}

func TestGet_Errors(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.Get("inc-404"); skillerrors.GetExitCode(err) != skillerrors.ExitIncidentNotFound {
		t.Errorf("Get(missing) = %v", err)
	}
	if _, err := s.Get("../../etc"); skillerrors.GetExitCode(err) != skillerrors.ExitValidation {
		t.Errorf("Get(traversal) = %v", err)
	}
}

func TestCaptureRun(t *testing.T) {
	s, _, _ := newTestStore(t)

	ok := &runner.Job{RunID: "run-ok", Skill: "gasprice", Status: runner.StatusSucceeded}
	if _, err := s.CaptureRun(ok, "", ""); err == nil {
		t.Error("CaptureRun on a succeeded run should fail")
	}

	failed := &runner.Job{RunID: "run-1", Skill: "gasprice", Status: runner.StatusFailed,
		Error: &skillerrors.Detail{Type: "timeout", Message: "skill gasprice timed out after 5m"}}
	first, err := s.CaptureRun(failed, "fetch", "dashboard")
	if err != nil {
		t.Fatalf("CaptureRun() error = %v", err)
	}
	if first.RunID != "run-1" || first.FailureClass != ClassTimeout || first.Step != "fetch" {
		t.Errorf("incident = %+v", first)
	}

	again, err := s.CaptureRun(failed, "fetch", "dashboard")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("second capture created %s, want existing %s", again.ID, first.ID)
	}

	if _, err := s.Escalate(first.ID, "site changed", "ops"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Archive(first.ID, "ops"); err != nil {
		t.Fatal(err)
	}
	afterArchive, err := s.CaptureRun(failed, "fetch", "dashboard")
	if err != nil {
		t.Fatal(err)
	}
	if afterArchive.ID != first.ID || !afterArchive.Archived() {
		t.Errorf("capture after archive = %s (archived=%v), want archived %s", afterArchive.ID, afterArchive.Archived(), first.ID)
	}
	all, err := s.List(Filter{IncludeArchived: true})
	if err != nil || len(all) != 1 {
		t.Errorf("incidents after re-capture = %d (%v), want 1", len(all), err)
	}
}

func TestList(t *testing.T) {
	s, now, _ := newTestStore(t)

	a := capture(t, s, "csv-export")
	*now = now.Add(time.Minute)
	b := capture(t, s, "gasprice")
	*now = now.Add(time.Minute)
	c := capture(t, s, "gasprice")
	if _, err := s.Escalate(a.ID, "broken", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Archive(a.ID, ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"live", Filter{}, []string{c.ID, b.ID}},
		{"with archive", Filter{IncludeArchived: true}, []string{c.ID, b.ID, a.ID}},
		{"by skill", Filter{Skill: "csv-export", IncludeArchived: true}, []string{a.ID}},
		{"by status", Filter{Statuses: []Status{StatusEscalated}}, nil},
		{"by class", Filter{Class: ClassNetwork}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var ids []string
			for _, inc := range got {
				ids = append(ids, inc.ID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
				t.Errorf("List() = %v, want %v", ids, tt.want)
			}
		})
	}

	counts, err := s.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[StatusOpen] != 2 || counts[StatusEscalated] != 0 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestArchiveClosed(t *testing.T) {
	s, _, _ := newTestStore(t)
	a := capture(t, s, "csv-export")
	capture(t, s, "csv-export")
	if _, err := s.Escalate(a.ID, "broken", ""); err != nil {
		t.Fatal(err)
	}

	archived, err := s.ArchiveClosed("cli")
	if err != nil {
		t.Fatalf("ArchiveClosed() error = %v", err)
	}
	if len(archived) != 1 || archived[0].ID != a.ID {
		t.Errorf("archived = %+v", archived)
	}
}
