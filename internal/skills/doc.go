// Package skills discovers and describes the skills under the skills
// directory.
//
// # Layout
//
// Each skill is a directory named after the skill:
//
//	skills/csv-export/
//	  SKILL.md     YAML frontmatter (name, description, tags) + usage notes
//	  skill.toml   how to run it
//	  tests/       or *_test.* files next to the code
//
// skill.toml:
//
//	command = "python3 export.py --in {input} --out {output_dir}/out.csv"
//	workdir = "."
//	dry_run_flag = "--dry-run"
//	artifacts = ["*.csv"]
//	required = ["input"]
//
//	[params]
//	input = "orders.jsonl"
//
// # Command expansion
//
// The command is split into words with shell quoting rules first, then
// {name} placeholders are substituted inside each word, so a parameter value
// containing spaces stays a single argument. The runner supplies output_dir,
// skill_dir and run_id; other names come from [params] defaults overlaid by
// caller parameters. An unknown placeholder is an error.
//
// # Scaffolding
//
// Scaffold renders SKILL.md and skill.toml for a new skill from embedded
// templates.
package skills
