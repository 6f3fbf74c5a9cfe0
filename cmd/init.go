package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/config"
	"github.com/firefly-engineering/skillctl/internal/errors"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the home layout and a default config.toml",
	Long: `Creates the runs, incidents and events directories under the skillctl home
and writes config.toml with default values.

An existing config.toml is left alone unless --force is given. Credentials
from the environment are never written to the file.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config.toml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	p := paths()
	if err := p.Ensure(); err != nil {
		return errors.ConfigError("failed to create home layout", err)
	}

	target := filepath.Join(p.HomeDir, config.ConfigFileName)
	if _, err := os.Stat(target); err == nil && !initForce {
		logInfo("%s already exists (use --force to overwrite)", target)
		return nil
	}

	if err := config.Save(p.HomeDir, config.Defaults()); err != nil {
		return errors.ConfigError("failed to write config", err)
	}
	logSuccess("Wrote %s", target)
	return nil
}
