package dashboard

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/firefly-engineering/skillctl/internal/incident"
	"github.com/firefly-engineering/skillctl/internal/ledger"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/runner"
	"github.com/firefly-engineering/skillctl/internal/skills"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var indexTmpl = template.Must(template.New("index.html.tmpl").Funcs(template.FuncMap{
	"since": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return time.Since(t).Round(time.Second).String()
	},
	"duration": func(j *runner.Job) string {
		return j.Duration(time.Now()).Round(time.Second).String()
	},
}).ParseFS(templateFS, "templates/index.html.tmpl"))

// recentRuns is how many runs the overview page shows.
const recentRuns = 20

type runRow struct {
	Job       *runner.Job
	Artifacts ArtifactSummary
}

type skillRow struct {
	*skills.Skill
	Allowed bool
}

type indexData struct {
	Skills    []skillRow
	Runs      []runRow
	Incidents []*incident.Incident
	Counts    map[incident.Status]int
	Statuses  []incident.Status
	Ledger    *ledger.Stats
	Now       time.Time
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Statuses: incident.Statuses, Now: time.Now()}

	found, err := skills.Discover(s.deps.SkillsDir)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, sk := range found {
		data.Skills = append(data.Skills, skillRow{Skill: sk, Allowed: s.deps.Config.Allowed(sk.Name)})
	}

	jobs, err := s.deps.Runner.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if len(jobs) > recentRuns {
		jobs = jobs[:recentRuns]
	}
	summaries, err := ScanRuns(r.Context(), s.deps.Runner, jobs)
	if err != nil {
		writeError(w, err)
		return
	}
	for i, job := range jobs {
		data.Runs = append(data.Runs, runRow{Job: job, Artifacts: summaries[i]})
	}

	if s.deps.Incidents != nil {
		if data.Incidents, err = s.deps.Incidents.List(incident.Filter{}); err != nil {
			writeError(w, err)
			return
		}
		data.Counts = make(map[incident.Status]int)
		for _, inc := range data.Incidents {
			data.Counts[inc.Status]++
		}
	}

	if s.deps.Ledger != nil {
		if stats, err := s.deps.Ledger.Stats(r.Context()); err != nil {
			logging.Warn("failed to read ledger stats", "error", err)
		} else {
			data.Ledger = &stats
		}
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
