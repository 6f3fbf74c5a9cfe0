// Package logging holds skillctl's two output channels.
//
// Diagnostics go through a global slog logger that Setup points at stderr,
// as text or JSON, at info level or debug with -v:
//
//	logging.Debug("discovered skill", "name", name)
//	logging.ForSkill("csv-export", runID).Info("run finished", "exit", code)
//
// Operator messages are single marked lines. UserInfo and UserSuccess write
// to Stdout, UserWarning and UserError to Stderr; both writers can be
// replaced in tests.
//
//	logging.UserSuccess("Incident %s approved", id)
//	logging.UserWarning("%d orders had no pdf", n)
package logging
