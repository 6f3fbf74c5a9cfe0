package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for skillctl
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitSkillNotFound    = 2
	ExitIncidentNotFound = 3
	ExitRunNotFound      = 4
	ExitSkillFailed      = 5
	ExitConfigError      = 6
	ExitValidation       = 7
	ExitTransition       = 8
	ExitCheckFailed      = 9
	ExitRemoteError      = 10
)

// Error types used in the JSON envelope.
const (
	TypeGeneral    = "error"
	TypeNotFound   = "not_found"
	TypeConfig     = "config"
	TypeValidation = "validation"
	TypeExecution  = "execution"
	TypeTransition = "invalid_transition"
	TypeCheck      = "check_failed"
	TypeRemote     = "remote"
	TypeAuth       = "auth"
	TypeParse      = "parse"
	TypeTimeout    = "timeout"
	TypeForbidden  = "forbidden"
)

// SkillError is the base error type for skillctl
type SkillError struct {
	Code    int
	Type    string
	Message string
	Cause   error
}

func (e *SkillError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SkillError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *SkillError) ExitCode() int {
	return e.Code
}

// New creates a new SkillError
func New(code int, errType, message string) *SkillError {
	return &SkillError{
		Code:    code,
		Type:    errType,
		Message: message,
	}
}

// Wrap wraps an existing error with a SkillError
func Wrap(code int, errType, message string, cause error) *SkillError {
	return &SkillError{
		Code:    code,
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// SkillNotFound returns an error for a missing skill
func SkillNotFound(name string) *SkillError {
	return New(ExitSkillNotFound, TypeNotFound, fmt.Sprintf("skill not found: %s", name))
}

// IncidentNotFound returns an error for a missing incident
func IncidentNotFound(id string) *SkillError {
	return New(ExitIncidentNotFound, TypeNotFound, fmt.Sprintf("incident not found: %s", id))
}

// RunNotFound returns an error for a missing run-job
func RunNotFound(id string) *SkillError {
	return New(ExitRunNotFound, TypeNotFound, fmt.Sprintf("run not found: %s", id))
}

// SkillFailed returns an error for a skill process that exited non-zero
func SkillFailed(name string, cause error) *SkillError {
	return Wrap(ExitSkillFailed, TypeExecution, fmt.Sprintf("skill %s failed", name), cause)
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *SkillError {
	return Wrap(ExitConfigError, TypeConfig, message, cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *SkillError {
	return New(ExitValidation, TypeValidation, message)
}

// ParseError returns an error for malformed input data
func ParseError(message string, cause error) *SkillError {
	return Wrap(ExitValidation, TypeParse, message, cause)
}

// InvalidTransition returns an error for a disallowed incident status change
func InvalidTransition(id, from, to string) *SkillError {
	return New(ExitTransition, TypeTransition, fmt.Sprintf("incident %s cannot move from %s to %s", id, from, to))
}

// CheckFailed returns an error when a hygiene check reports findings
func CheckFailed(check string, findings int) *SkillError {
	return New(ExitCheckFailed, TypeCheck, fmt.Sprintf("%s check reported %d finding(s)", check, findings))
}

// RemoteError returns an error for a failed call to a third-party API
func RemoteError(service string, cause error) *SkillError {
	return Wrap(ExitRemoteError, TypeRemote, fmt.Sprintf("%s request failed", service), cause)
}

// Forbidden returns an error for a skill that is not on the allow-list
func Forbidden(name string) *SkillError {
	return New(ExitValidation, TypeForbidden, fmt.Sprintf("skill %s is not allow-listed", name))
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var skillErr *SkillError
	if errors.As(err, &skillErr) {
		return skillErr.ExitCode()
	}
	return ExitGeneralError
}

// GetType extracts the envelope type from an error
func GetType(err error) string {
	var skillErr *SkillError
	if errors.As(err, &skillErr) && skillErr.Type != "" {
		return skillErr.Type
	}
	return TypeGeneral
}

// Detail is the body of an error envelope.
type Detail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Envelope is the JSON shape errors take at the CLI and HTTP boundaries.
type Envelope struct {
	Error Detail `json:"error"`
}

// ToEnvelope converts any error into an Envelope.
func ToEnvelope(err error) Envelope {
	return Envelope{Error: Detail{Type: GetType(err), Message: err.Error()}}
}

// WriteEnvelope writes err as a single-line JSON envelope.
func WriteEnvelope(w io.Writer, err error) error {
	data, mErr := json.Marshal(ToEnvelope(err))
	if mErr != nil {
		return mErr
	}
	_, wErr := w.Write(append(data, '\n'))
	return wErr
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
