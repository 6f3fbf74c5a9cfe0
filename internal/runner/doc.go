// Package runner executes skills as tracked run-jobs.
//
// Every run gets a uuid and a directory:
//
//	runs/<run_id>/run.json    job record, rewritten on each status change
//	runs/<run_id>/output.log  combined stdout/stderr of the skill process
//	runs/<run_id>/artifacts/  passed to the skill as {output_dir}
//
// A job moves queued -> running -> succeeded | failed. A failed job carries
// an error envelope {type, message}. When the skill itself printed an
// envelope as its last JSON line, that envelope is recorded, so the incident
// workflow can classify the failure from the skill's own error type.
//
// Reap marks jobs that have been running longer than a timeout as failed
// with type "timeout"; the dashboard calls it periodically through the
// monitor package.
package runner
