// Package audit provides structured event logging for run-jobs and incidents.
// Events are stored as JSON Lines (JSONL) files, one per subject.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/firefly-engineering/skillctl/internal/config"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventRunStart    EventType = "run_start"
	EventRunFinish   EventType = "run_finish"
	EventRunFail     EventType = "run_fail"
	EventRunReaped   EventType = "run_reaped"
	EventCapture     EventType = "capture"
	EventPlan        EventType = "plan"
	EventApprove     EventType = "approve"
	EventHandoff     EventType = "handoff"
	EventResolve     EventType = "resolve"
	EventEscalate    EventType = "escalate"
	EventArchive     EventType = "archive"
	EventLedgerWrite EventType = "ledger_write"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject"`
	Actor     string    `json:"actor,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Logger writes and reads audit events.
// Events are stored in {dir}/{subject}.events.jsonl.
type Logger struct {
	dir string
}

// NewLogger creates a new audit logger rooted at dir.
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir}
}

func (l *Logger) eventPath(subject string) (string, error) {
	return config.SafePath(l.dir, subject, ".events.jsonl")
}

// Log appends an event to the subject's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	path, err := l.eventPath(event.Subject)
	if err != nil {
		return fmt.Errorf("invalid audit subject: %w", err)
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, subject, actor, details string) error {
	return l.Log(Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Subject:   subject,
		Actor:     actor,
		Details:   details,
	})
}

// Events reads all events for a subject in chronological order.
func (l *Logger) Events(subject string) ([]Event, error) {
	path, err := l.eventPath(subject)
	if err != nil {
		return nil, fmt.Errorf("invalid audit subject: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}
