// Package testutil provides test fixtures and utilities.
//
// # Test Environment
//
// NewTestEnv builds a throwaway skillctl home with a mock command executor
// and installs it as app.Default:
//
//	env := testutil.NewTestEnv(t)
//	defer env.Cleanup()
//
//	env.AddSkill("csv-export", "Export CSV", `command = "python3 export.py"`)
//	env.Executor.AddResponse("python3", []byte("ok\n"), 0, nil)
//	job := env.RunSkill("csv-export", nil)
//
// # Fixtures
//
// Fixtures are embedded using go:embed:
//
//	fixtures/orders.json    order rows from two sources, one duplicate
//	fixtures/expenses.csv   MoneyForward-style expense export
//	fixtures/skill.md       SKILL.md template used by AddSkill
//
// SampleOrders and SampleExpenses load them through the real parsers.
package testutil
