// Package dashboard serves the operational dashboard: a small REST API over
// skills, run-jobs, incidents and the reconcile ledger, plus an HTML
// overview page.
//
// # Routes
//
//	GET  /healthz
//	GET  /api/skills
//	POST /api/skills/{name}/run          allow-listed skills only
//	GET  /api/runs
//	GET  /api/runs/{id}
//	GET  /api/runs/{id}/log?tail=N
//	GET  /api/runs/{id}/artifacts
//	GET  /api/runs/{id}/artifacts/*
//	GET  /api/incidents?status=open
//	GET  /api/incidents/{id}
//	GET  /api/ledger/stats
//	GET  /
//
// Errors use the same envelope as the CLI: {"error":{"type":..,"message":..}}.
//
// Runs started from the dashboard execute in a background goroutine; the
// request returns 202 with the queued job. While the server is up a reaper
// fails runs that exceed the configured run timeout.
package dashboard
