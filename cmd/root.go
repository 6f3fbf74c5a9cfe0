package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	homeDir    string
)

var rootCmd = &cobra.Command{
	Use:   "skillctl",
	Short: "Run and operate automation skills",
	Long: `skillctl runs independent automation skills and tracks what they did.

Each skill is a directory with SKILL.md and skill.toml. Runs are recorded under
$SKILLCTL_HOME/runs, failures become incidents that move through a manual
review workflow, and the dashboard serves both over HTTP.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, cmd.ErrOrStderr())

		if homeDir != "" {
			app.SetDefault(app.New(app.WithHome(homeDir)))
		}
		a := app.Default
		// init --force is how a broken config.toml gets replaced.
		if a.ConfigErr != nil && cmd != initCmd {
			return errors.ConfigError("failed to load config.toml", a.ConfigErr)
		}
		if !verbose && a.Config.LogLevel != "" {
			logging.SetupLevel(logging.ParseLevel(a.Config.LogLevel), jsonOutput, cmd.ErrOrStderr())
		}
		return nil
	},
}

// Execute runs the root command and reports any error at the boundary.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// reportError prints err as a JSON envelope with --json, otherwise as a
// user-facing error line.
func reportError(w io.Writer, err error) {
	if jsonOutput {
		_ = errors.WriteEnvelope(w, err)
		return
	}
	logging.UserError("%v", err)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results, logs and errors as JSON")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "skillctl home directory (default $SKILLCTL_HOME or ~/.skillctl)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
