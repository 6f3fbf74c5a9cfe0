package hygiene

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/firefly-engineering/skillctl/internal/config"
	"github.com/firefly-engineering/skillctl/internal/skills"
)

// Structure rules.
const (
	RuleMissingDoc      = "missing_skill_md"
	RuleFrontmatter     = "frontmatter"
	RuleNameMismatch    = "name_mismatch"
	RuleInvalidName     = "invalid_name"
	RuleMissingDesc     = "missing_description"
	RuleMissingManifest = "missing_manifest"
	RuleManifest        = "manifest"
	RuleMissingTests    = "missing_tests"
)

// Language is the implementation language guessed from marker files.
type Language string

const (
	LanguageGo      Language = "go"
	LanguagePython  Language = "python"
	LanguageNode    Language = "node"
	LanguageShell   Language = "shell"
	LanguageUnknown Language = "unknown"
)

// SkillLayout summarizes one skill directory.
type SkillLayout struct {
	Name     string   `json:"name"`
	Language Language `json:"language"`
	HasTests bool     `json:"has_tests"`
}

// StructureReport extends Report with per-skill layout details.
type StructureReport struct {
	Report
	Skills []SkillLayout `json:"skills"`
}

// CheckStructure validates every directory under skillsDir as a skill.
// Hidden directories and those starting with "_" are ignored.
func CheckStructure(skillsDir string) (*StructureReport, error) {
	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	rep := &StructureReport{Report: Report{Check: "structure", Root: skillsDir, Findings: []Finding{}}}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		rep.Scanned++
		layout := checkSkill(&rep.Report, filepath.Join(skillsDir, name))
		rep.Skills = append(rep.Skills, layout)
	}
	rep.sort()
	return rep, nil
}

func checkSkill(rep *Report, dir string) SkillLayout {
	name := filepath.Base(dir)
	layout := SkillLayout{Name: name, Language: DetectLanguage(dir), HasTests: hasTests(dir)}

	if err := config.ValidateName(name); err != nil {
		rep.add(name, RuleInvalidName, "%v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, skills.DocFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rep.add(name, RuleMissingDoc, "%s not found", skills.DocFile)
	case err != nil:
		rep.add(name, RuleMissingDoc, "cannot read %s: %v", skills.DocFile, err)
	default:
		meta, _, err := skills.ParseFrontmatter(data)
		if err != nil {
			rep.add(name, RuleFrontmatter, "%v", err)
			break
		}
		if meta.Name != name {
			rep.add(name, RuleNameMismatch, "frontmatter name %q does not match directory", meta.Name)
		}
		if strings.TrimSpace(meta.Description) == "" {
			rep.add(name, RuleMissingDesc, "frontmatter has no description")
		}
	}

	var manifest skills.Manifest
	_, err = toml.DecodeFile(filepath.Join(dir, skills.ManifestFile), &manifest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rep.add(name, RuleMissingManifest, "%s not found", skills.ManifestFile)
	case err != nil:
		rep.add(name, RuleManifest, "%v", err)
	case strings.TrimSpace(manifest.Command) == "":
		rep.add(name, RuleManifest, "command is empty")
	}

	if !layout.HasTests {
		rep.add(name, RuleMissingTests, "no tests directory or test files")
	}
	return layout
}

var languageMarkers = []struct {
	file string
	lang Language
}{
	{"go.mod", LanguageGo},
	{"pyproject.toml", LanguagePython},
	{"requirements.txt", LanguagePython},
	{"setup.py", LanguagePython},
	{"package.json", LanguageNode},
}

// DetectLanguage guesses a skill's language from marker files, then from
// the extensions of its top-level files.
func DetectLanguage(dir string) Language {
	for _, m := range languageMarkers {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.lang
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return LanguageUnknown
	}
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".py":
			return LanguagePython
		case ".go":
			return LanguageGo
		case ".js", ".mjs", ".ts":
			return LanguageNode
		case ".sh":
			return LanguageShell
		}
	}
	return LanguageUnknown
}

// hasTests reports whether dir has a tests/ or test/ directory, or a test
// file anywhere below it in one of the usual naming schemes.
func hasTests(dir string) bool {
	for _, d := range []string{"tests", "test", "__tests__"} {
		if info, err := os.Stat(filepath.Join(dir, d)); err == nil && info.IsDir() {
			return true
		}
	}

	found := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if isTestFile(d.Name()) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func isTestFile(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(base, "_test") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(base, ".test") ||
		strings.HasSuffix(base, ".spec")
}
