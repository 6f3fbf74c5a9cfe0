// Package config provides configuration types and loading for skillctl.
//
// # Configuration File
//
// Operator settings live in $SKILLCTL_HOME/config.toml:
//
//	log_level = "info"
//
//	[paths]
//	skills_dir = "/srv/skills"
//
//	[dashboard]
//	addr = "127.0.0.1:8787"
//	allow = ["csv-export", "gasprice"]
//	reap_interval = "30s"
//	run_timeout = "30m"
//
//	[reconcile]
//	day_window = 3
//	fallback_window = 14
//
//	[kintone]
//	base_url = "https://example.cybozu.com"
//	app = 12
//
// A missing file is not an error; Defaults() applies. Environment variables
// (SKILLCTL_SKILLS_DIR, SKILLCTL_DASHBOARD_ADDR, SKILLCTL_LOG_LEVEL,
// KINTONE_BASE_URL, KINTONE_API_TOKEN, KINTONE_APP) override file values.
//
// # Layout
//
// Paths describes the fixed directory layout under the home directory:
//
//	runs/<run_id>/           run-job record, log, artifacts
//	incidents/<status>/<id>/ incident records grouped by status
//	events/<subject>.events.jsonl
//	ledger.db                reconcile ledger
package config
