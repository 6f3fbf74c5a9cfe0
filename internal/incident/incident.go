package incident

import (
	"strings"
	"time"

	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
)

// Status is the workflow state of an incident.
type Status string

const (
	StatusOpen      Status = "open"
	StatusPlanned   Status = "planned"
	StatusApproved  Status = "approved"
	StatusHandedOff Status = "handed_off"
	StatusResolved  Status = "resolved"
	StatusEscalated Status = "escalated"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusOpen, StatusPlanned, StatusApproved, StatusHandedOff, StatusResolved, StatusEscalated,
}

var transitions = map[Status][]Status{
	StatusOpen:      {StatusPlanned, StatusEscalated},
	StatusPlanned:   {StatusApproved, StatusEscalated},
	StatusApproved:  {StatusHandedOff},
	StatusHandedOff: {StatusResolved, StatusEscalated},
}

// CanTransition reports whether an incident may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Closed reports whether no further transitions are possible.
func (s Status) Closed() bool {
	return s == StatusResolved || s == StatusEscalated
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", skillerrors.ValidationError("unknown incident status: " + s)
	}
	return status, nil
}

// FailureClass groups incidents by what broke.
type FailureClass string

const (
	ClassAuth     FailureClass = "auth"
	ClassNetwork  FailureClass = "network"
	ClassTimeout  FailureClass = "timeout"
	ClassParse    FailureClass = "parse"
	ClassNotFound FailureClass = "not_found"
	ClassUnknown  FailureClass = "unknown"
)

var messageHints = []struct {
	class FailureClass
	words []string
}{
	{ClassTimeout, []string{"timed out", "timeout", "deadline exceeded"}},
	{ClassAuth, []string{"unauthorized", "forbidden", "login", "401", "403", "credential", "password"}},
	{ClassNetwork, []string{"connection refused", "connection reset", "no such host", "dial tcp", "network"}},
	{ClassNotFound, []string{"not found", "404", "no such file"}},
	{ClassParse, []string{"parse", "invalid character", "malformed", "unexpected"}},
}

// Classify maps an error envelope to a failure class. The envelope type wins
// when it is specific; otherwise the message is searched for known hints.
func Classify(errType, message string) FailureClass {
	switch errType {
	case skillerrors.TypeAuth, skillerrors.TypeForbidden:
		return ClassAuth
	case skillerrors.TypeRemote, "network":
		return ClassNetwork
	case skillerrors.TypeTimeout:
		return ClassTimeout
	case skillerrors.TypeParse, skillerrors.TypeValidation:
		return ClassParse
	case skillerrors.TypeNotFound:
		return ClassNotFound
	}

	lower := strings.ToLower(message)
	for _, hint := range messageHints {
		for _, w := range hint.words {
			if strings.Contains(lower, w) {
				return hint.class
			}
		}
	}
	return ClassUnknown
}

// Incident is the record stored in incident.json. Plan and Handoff live in
// their own files and are attached on load.
type Incident struct {
	ID           string       `json:"id"`
	Status       Status       `json:"status"`
	Step         string       `json:"step,omitempty"`
	FailureClass FailureClass `json:"failure_class"`
	Skill        string       `json:"skill,omitempty"`
	RunID        string       `json:"run_id,omitempty"`
	ErrorType    string       `json:"error_type,omitempty"`
	Message      string       `json:"message"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Approval     *Approval    `json:"approval,omitempty"`
	Resolution   *Resolution  `json:"resolution,omitempty"`
	ArchivedAt   *time.Time   `json:"archived_at,omitempty"`

	Plan    *Plan    `json:"plan,omitempty"`
	Handoff *Handoff `json:"handoff,omitempty"`
}

// Archived reports whether the incident has been moved to the archive.
func (i *Incident) Archived() bool {
	return i.ArchivedAt != nil
}

// Plan is the remediation plan written to plan.json.
type Plan struct {
	Steps     []string  `json:"steps"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Approval records who approved the plan.
type Approval struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// Handoff is written to handoff.json when work is passed to its owner.
type Handoff struct {
	To    string    `json:"to"`
	Notes string    `json:"notes,omitempty"`
	By    string    `json:"by,omitempty"`
	At    time.Time `json:"at"`
}

// Resolution closes an incident as resolved or escalated.
type Resolution struct {
	Outcome Status    `json:"outcome"`
	Note    string    `json:"note,omitempty"`
	By      string    `json:"by,omitempty"`
	At      time.Time `json:"at"`
}

// Filter narrows List results. Zero values match everything except archived
// incidents.
type Filter struct {
	Statuses        []Status
	Skill           string
	Class           FailureClass
	IncludeArchived bool
}

func (f Filter) match(inc *Incident) bool {
	if inc.Archived() && !f.IncludeArchived {
		return false
	}
	if f.Skill != "" && inc.Skill != f.Skill {
		return false
	}
	if f.Class != "" && inc.FailureClass != f.Class {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if inc.Status == s {
			return true
		}
	}
	return false
}
