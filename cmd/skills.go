package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/skills"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List, inspect and scaffold skills",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered skills",
	Args:  cobra.NoArgs,
	RunE:  runSkillsList,
}

var skillsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a skill's metadata and manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsShow,
}

var skillsNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Scaffold a new skill directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsNew,
}

var (
	skillsNewDescription string
	skillsNewCommand     string
	skillsNewTags        []string
)

func init() {
	skillsNewCmd.Flags().StringVarP(&skillsNewDescription, "description", "d", "", "One-line description for SKILL.md")
	skillsNewCmd.Flags().StringVar(&skillsNewCommand, "command", "", "Command line for skill.toml")
	skillsNewCmd.Flags().StringSliceVar(&skillsNewTags, "tag", nil, "Tag to add to the frontmatter (repeatable)")

	skillsCmd.AddCommand(skillsListCmd, skillsShowCmd, skillsNewCmd)
	rootCmd.AddCommand(skillsCmd)
}

func runSkillsList(cmd *cobra.Command, args []string) error {
	list, err := app.Default.Skills()
	if err != nil {
		return fmt.Errorf("failed to discover skills: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), list)
	}
	if len(list) == 0 {
		logInfo("No skills found in %s. Create one with: skillctl skills new <name>", paths().SkillsDir)
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "NAME\tALLOWED\tDESCRIPTION")
	fmt.Fprintln(w, "----\t-------\t-----------")
	for _, s := range list {
		allowed := "-"
		if cfg().Allowed(s.Name) {
			allowed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, allowed, s.Description)
	}
	return w.Flush()
}

func runSkillsShow(cmd *cobra.Command, args []string) error {
	s, err := app.Default.Skill(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), s)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:        %s\n", s.Name)
	fmt.Fprintf(out, "Description: %s\n", s.Description)
	if len(s.Tags) > 0 {
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(s.Tags, ", "))
	}
	fmt.Fprintf(out, "Directory:   %s\n", s.Dir)
	fmt.Fprintf(out, "Command:     %s\n", s.Manifest.Command)
	fmt.Fprintf(out, "Workdir:     %s\n", s.WorkDir())
	if s.Manifest.Timeout.Duration > 0 {
		fmt.Fprintf(out, "Timeout:     %s\n", s.Manifest.Timeout.Duration)
	}
	if len(s.Manifest.Required) > 0 {
		fmt.Fprintf(out, "Required:    %s\n", strings.Join(s.Manifest.Required, ", "))
	}
	fmt.Fprintf(out, "Dashboard:   %v\n", cfg().Allowed(s.Name))
	return nil
}

func runSkillsNew(cmd *cobra.Command, args []string) error {
	dir, err := skills.Scaffold(paths().SkillsDir, skills.ScaffoldOptions{
		Name:        args[0],
		Description: skillsNewDescription,
		Tags:        skillsNewTags,
		Command:     skillsNewCommand,
	})
	if err != nil {
		return err
	}
	logSuccess("Created skill %s at %s", args[0], dir)
	return nil
}
