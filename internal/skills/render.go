package skills

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/firefly-engineering/skillctl/internal/config"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var skillTemplates *template.Template

func init() {
	funcs := template.FuncMap{
		"joinStrings": strings.Join,
		"quote":       func(s string) string { return fmt.Sprintf("%q", s) },
	}
	skillTemplates = template.Must(
		template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.tmpl"),
	)
}

// renderTemplate executes a named template with the given data and returns the result.
func renderTemplate(name string, data any) string {
	var buf bytes.Buffer
	if err := skillTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		// Templates are embedded and exercised by tests.
		panic("skills: failed to render template " + name + ": " + err.Error())
	}
	return buf.String()
}

// ScaffoldOptions describes a new skill.
type ScaffoldOptions struct {
	Name        string
	Description string
	Tags        []string
	Command     string
}

// Scaffold creates <skillsDir>/<name> with SKILL.md, skill.toml and an
// empty tests directory. It refuses to overwrite an existing skill.
func Scaffold(skillsDir string, opts ScaffoldOptions) (string, error) {
	if err := config.ValidateName(opts.Name); err != nil {
		return "", err
	}
	if opts.Description == "" {
		opts.Description = "TODO: describe " + opts.Name
	}
	if opts.Command == "" {
		opts.Command = "./run.sh --out {output_dir}"
	}

	dir := filepath.Join(skillsDir, opts.Name)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("skill directory %s already exists", dir)
	}
	if err := os.MkdirAll(filepath.Join(dir, "tests"), 0755); err != nil {
		return "", fmt.Errorf("failed to create skill directory: %w", err)
	}

	files := map[string]string{
		DocFile:      renderTemplate("skill.md.tmpl", opts),
		ManifestFile: renderTemplate("skill.toml.tmpl", opts),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return dir, nil
}
