// Package incident tracks failed automation runs through a manual review
// workflow.
//
// # Lifecycle
//
//	open ──► planned ──► approved ──► handed_off ──► resolved
//	  │         │                         │
//	  └─────────┴──────► escalated ◄──────┘
//
// Any other transition is rejected with an invalid_transition error.
//
// # Storage
//
// Each incident is a directory named by its id inside a folder named by its
// status:
//
//	incidents/<status>/<id>/incident.json
//	incidents/<status>/<id>/plan.json      written by Plan
//	incidents/<status>/<id>/handoff.json   written by Handoff
//
// A transition rewrites incident.json in place and then renames the
// directory into the new status folder. Resolved and escalated incidents can
// be archived to incidents/archive/<YYYY-MM>/<id>/, after which they are
// read-only.
//
// Every transition appends an event to the audit log under the incident id.
package incident
