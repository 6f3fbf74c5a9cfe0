// Package app wires skillctl's dependencies together.
//
// An App is built from options and fills in whatever was not given: the
// home directory ($SKILLCTL_HOME or ~/.skillctl), config.toml with its env
// overrides, the derived Paths and the real command executor.
//
//	a := app.New()                                  // CLI default
//	a := app.New(app.WithHome("/srv/skillctl"))     // --home
//	a := app.New(app.WithPaths(p), app.WithConfig(config.Defaults()),
//	    app.WithExecutor(system.NewMockExecutor())) // tests
//
// Stores are opened per call from the App's paths: Runner writes runs/,
// Incidents writes incidents/, both append to the audit log under events/,
// and OpenLedger opens ledger.db.
//
// A config.toml that does not parse leaves the defaults in place and the
// error in ConfigErr; the root command turns it into a config error.
//
// Commands read app.Default. Tests swap it with SetDefault.
package app
