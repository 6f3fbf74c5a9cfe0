package skills

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/firefly-engineering/skillctl/internal/config"
	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/logging"
)

const (
	DocFile      = "SKILL.md"
	ManifestFile = "skill.toml"
)

// Built-in parameters supplied by the runner.
const (
	ParamOutputDir = "output_dir"
	ParamSkillDir  = "skill_dir"
	ParamRunID     = "run_id"
)

var placeholderRegex = regexp.MustCompile(`\{([a-z_][a-z0-9_]*)\}`)

// Metadata is the YAML frontmatter of SKILL.md.
type Metadata struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Manifest is skill.toml.
type Manifest struct {
	Command    string            `toml:"command" json:"command"`
	Workdir    string            `toml:"workdir" json:"workdir,omitempty"`
	DryRunFlag string            `toml:"dry_run_flag" json:"dry_run_flag,omitempty"`
	Artifacts  []string          `toml:"artifacts" json:"artifacts,omitempty"`
	Required   []string          `toml:"required" json:"required,omitempty"`
	Params     map[string]string `toml:"params" json:"params,omitempty"`
	Env        map[string]string `toml:"env" json:"env,omitempty"`
	Timeout    config.Duration   `toml:"timeout" json:"timeout,omitempty"`
}

// Skill is a loaded skill directory.
type Skill struct {
	Metadata
	Manifest Manifest `json:"manifest"`
	Dir      string   `json:"dir"`
	Body     string   `json:"-"`
}

// ParseFrontmatter splits SKILL.md into its YAML frontmatter and body.
func ParseFrontmatter(data []byte) (Metadata, string, error) {
	var meta Metadata

	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return meta, text, fmt.Errorf("missing frontmatter")
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, text, fmt.Errorf("unterminated frontmatter")
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, text, fmt.Errorf("invalid frontmatter: %w", err)
	}

	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return meta, body, nil
}

// Load reads the skill in dir. The directory name must equal the
// frontmatter name.
func Load(dir string) (*Skill, error) {
	data, err := os.ReadFile(filepath.Join(dir, DocFile))
	if err != nil {
		return nil, err
	}
	meta, body, err := ParseFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DocFile, err)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("%s: frontmatter has no name", DocFile)
	}
	if base := filepath.Base(dir); meta.Name != base {
		return nil, fmt.Errorf("%s: name %q does not match directory %q", DocFile, meta.Name, base)
	}

	var manifest Manifest
	if _, err := toml.DecodeFile(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		return nil, fmt.Errorf("%s: %w", ManifestFile, err)
	}
	if strings.TrimSpace(manifest.Command) == "" {
		return nil, fmt.Errorf("%s: command is empty", ManifestFile)
	}

	return &Skill{Metadata: meta, Manifest: manifest, Dir: dir, Body: body}, nil
}

// Discover loads every valid skill under dir, sorted by name. Invalid
// directories are skipped and logged at debug level.
func Discover(dir string) ([]*Skill, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Skill{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	skills := []*Skill{}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		s, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			logging.Debug("skipping skill", "dir", entry.Name(), "error", err)
			continue
		}
		skills = append(skills, s)
	}

	sort.Slice(skills, func(i, j int) bool {
		return skills[i].Name < skills[j].Name
	})
	return skills, nil
}

// Find loads a skill by name.
func Find(dir, name string) (*Skill, error) {
	if err := config.ValidateName(name); err != nil {
		return nil, skillerrors.ValidationError(err.Error())
	}
	skillDir := filepath.Join(dir, name)
	if _, err := os.Stat(filepath.Join(skillDir, DocFile)); errors.Is(err, fs.ErrNotExist) {
		return nil, skillerrors.SkillNotFound(name)
	}
	s, err := Load(skillDir)
	if err != nil {
		return nil, skillerrors.ConfigError(fmt.Sprintf("invalid skill %s", name), err)
	}
	return s, nil
}

// ResolveParams overlays params on the manifest defaults and checks
// required names.
func (s *Skill) ResolveParams(params map[string]string) (map[string]string, error) {
	merged := make(map[string]string, len(s.Manifest.Params)+len(params))
	for k, v := range s.Manifest.Params {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	merged[ParamSkillDir] = s.Dir

	for _, name := range s.Manifest.Required {
		if merged[name] == "" {
			return nil, skillerrors.ValidationError(fmt.Sprintf("skill %s requires parameter %q", s.Name, name))
		}
	}
	return merged, nil
}

// Command builds argv for a run. With dryRun the manifest's dry-run flag is
// appended; a skill without one cannot be dry-run.
func (s *Skill) Command(params map[string]string, dryRun bool) ([]string, error) {
	merged, err := s.ResolveParams(params)
	if err != nil {
		return nil, err
	}

	words, err := shellquote.Split(s.Manifest.Command)
	if err != nil {
		return nil, skillerrors.ConfigError(fmt.Sprintf("skill %s has an invalid command", s.Name), err)
	}

	argv := make([]string, 0, len(words)+1)
	for _, w := range words {
		expanded, err := expand(w, merged)
		if err != nil {
			return nil, skillerrors.ValidationError(fmt.Sprintf("skill %s: %v", s.Name, err))
		}
		argv = append(argv, expanded)
	}

	if dryRun {
		if s.Manifest.DryRunFlag == "" {
			return nil, skillerrors.ValidationError(fmt.Sprintf("skill %s does not support dry-run", s.Name))
		}
		flags, err := shellquote.Split(s.Manifest.DryRunFlag)
		if err != nil {
			return nil, skillerrors.ConfigError(fmt.Sprintf("skill %s has an invalid dry_run_flag", s.Name), err)
		}
		argv = append(argv, flags...)
	}
	return argv, nil
}

// CommandLine renders argv quoted for display.
func CommandLine(argv []string) string {
	return shellquote.Join(argv...)
}

// WorkDir returns the directory the command runs in.
func (s *Skill) WorkDir() string {
	if s.Manifest.Workdir == "" {
		return s.Dir
	}
	if filepath.IsAbs(s.Manifest.Workdir) {
		return s.Manifest.Workdir
	}
	return filepath.Join(s.Dir, s.Manifest.Workdir)
}

// Environ returns the manifest env as KEY=VALUE pairs, sorted.
func (s *Skill) Environ() []string {
	env := make([]string, 0, len(s.Manifest.Env))
	for k, v := range s.Manifest.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

func expand(word string, params map[string]string) (string, error) {
	var missing []string
	out := placeholderRegex.ReplaceAllStringFunc(word, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unknown placeholder {%s}", missing[0])
	}
	return out, nil
}

