// Package errors provides typed errors with exit codes for skillctl.
//
// # Error Types
//
// SkillError is the base error type that wraps an error with an exit code
// and an envelope type:
//
//	type SkillError struct {
//	    Code    int    // Exit code
//	    Type    string // Envelope type, e.g. "not_found"
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess          = 0  // Success
//	ExitGeneralError     = 1  // General/unknown errors
//	ExitSkillNotFound    = 2  // Skill does not exist
//	ExitIncidentNotFound = 3  // Incident does not exist
//	ExitRunNotFound      = 4  // Run-job does not exist
//	ExitSkillFailed      = 5  // Skill process exited non-zero
//	ExitConfigError      = 6  // Configuration error
//	ExitValidation       = 7  // Bad input
//	ExitTransition       = 8  // Disallowed incident status change
//	ExitCheckFailed      = 9  // Hygiene check reported findings
//	ExitRemoteError      = 10 // Third-party API failure
//
// # Envelopes
//
// At the CLI and HTTP boundaries errors are rendered as
//
//	{"error": {"type": "not_found", "message": "skill not found: foo"}}
//
// using WriteEnvelope or ToEnvelope.
package errors
