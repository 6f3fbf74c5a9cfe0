// Package health reports whether a skillctl installation is usable.
//
// Each probe checks one piece of local state and yields a Status:
//
//	StatusHealthy   - nothing to do
//	StatusDegraded  - works, but needs attention (stale runs, escalations)
//	StatusUnhealthy - a command that depends on it will fail
//
// Probes:
//
//	config     config.toml loads and validates
//	home       the home layout can be created
//	skills     skills are discovered and the allow-list names real ones
//	ledger     the SQLite ledger opens and is migrated
//	runs       no run is queued or running past dashboard.run_timeout
//	incidents  nothing is escalated and left unarchived
//	kintone    credentials are either absent or complete
//
// Usage:
//
//	result := health.Check(ctx, app.Default, time.Now())
//	// result.Status, result.Probes, result.ActiveRuns
package health
