package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/hygiene"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Repository hygiene checks",
	Long: `Checks that exit non-zero when they find problems, for use in CI.

  structure  every skill has SKILL.md with matching frontmatter, skill.toml
             with a command, and tests
  encoding   text files are UTF-8 without BOM or CRLF`,
}

var checkStructureCmd = &cobra.Command{
	Use:   "structure [skills-dir]",
	Short: "Check skill directory layout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheckStructure,
}

var checkEncodingCmd = &cobra.Command{
	Use:   "encoding [dir]",
	Short: "Check text file encodings and line endings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheckEncoding,
}

var (
	checkAllowCRLF bool
	checkAllowBOM  []string
)

func init() {
	checkEncodingCmd.Flags().BoolVar(&checkAllowCRLF, "allow-crlf", false, "Do not report CRLF line endings")
	checkEncodingCmd.Flags().StringSliceVar(&checkAllowBOM, "allow-bom", []string{".csv"}, "Extensions where a UTF-8 BOM is expected")

	checkCmd.AddCommand(checkStructureCmd, checkEncodingCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckStructure(cmd *cobra.Command, args []string) error {
	dir := paths().SkillsDir
	if len(args) == 1 {
		dir = args[0]
	}

	report, err := hygiene.CheckStructure(dir)
	if err != nil {
		return errors.ConfigError("structure check failed", err)
	}

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "SKILL\tLANGUAGE\tTESTS")
		fmt.Fprintln(w, "-----\t--------\t-----")
		for _, s := range report.Skills {
			tests := "✗"
			if s.HasTests {
				tests = "✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Language, tests)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return finishCheck(cmd, &report.Report)
}

func runCheckEncoding(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	report, err := hygiene.CheckEncoding(dir, hygiene.EncodingOptions{
		AllowBOMExts: checkAllowBOM,
		AllowCRLF:    checkAllowCRLF,
	})
	if err != nil {
		return errors.ConfigError("encoding check failed", err)
	}

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	return finishCheck(cmd, report)
}

// finishCheck prints findings and turns them into a CheckFailed error.
func finishCheck(cmd *cobra.Command, report *hygiene.Report) error {
	if !jsonOutput {
		out := cmd.OutOrStdout()
		for _, f := range report.Findings {
			fmt.Fprintln(out, f.String())
		}
	}

	if report.OK() {
		if !jsonOutput {
			logSuccess("%s check passed (%d scanned)", report.Check, report.Scanned)
		}
		return nil
	}
	return errors.CheckFailed(report.Check, len(report.Findings))
}
