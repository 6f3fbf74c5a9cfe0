package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/incident"
)

// Status represents the health of one probe or of the whole installation
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Probe is the outcome of a single check
type Probe struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// CheckResult contains the results of all probes
type CheckResult struct {
	Status        Status  `json:"status"`
	Probes        []Probe `json:"probes"`
	Skills        int     `json:"skills"`
	ActiveRuns    int     `json:"active_runs"`
	OldestActive  string  `json:"oldest_active,omitempty"`
	OpenIncidents int     `json:"open_incidents"`
}

func (r *CheckResult) add(name string, status Status, format string, args ...any) {
	r.Probes = append(r.Probes, Probe{Name: name, Status: status, Detail: fmt.Sprintf(format, args...)})
	if status.rank() > r.Status.rank() {
		r.Status = status
	}
}

// Unhealthy returns the probes that failed outright.
func (r *CheckResult) Unhealthy() []Probe {
	var out []Probe
	for _, p := range r.Probes {
		if p.Status == StatusUnhealthy {
			out = append(out, p)
		}
	}
	return out
}

// Check runs every probe against a.
func Check(ctx context.Context, a *app.App, now time.Time) *CheckResult {
	result := &CheckResult{Status: StatusHealthy}

	checkConfig(a, result)
	if err := a.Paths.Ensure(); err != nil {
		result.add("home", StatusUnhealthy, "%v", err)
	} else {
		result.add("home", StatusHealthy, "%s", a.Paths.HomeDir)
	}
	checkSkills(a, result)
	checkRuntimes(ctx, a, result)
	checkLedger(ctx, a, result)
	checkRuns(a, result, now)
	checkIncidents(a, result)
	checkKintone(a, result)

	return result
}

// GetSummary returns only the overall status.
func GetSummary(ctx context.Context, a *app.App, now time.Time) Status {
	return Check(ctx, a, now).Status
}

func checkConfig(a *app.App, r *CheckResult) {
	if a.ConfigErr != nil {
		r.add("config", StatusUnhealthy, "config.toml: %v", a.ConfigErr)
		return
	}
	if err := a.Config.Validate(); err != nil {
		r.add("config", StatusUnhealthy, "%v", err)
		return
	}
	r.add("config", StatusHealthy, "log level %s", a.Config.LogLevel)
}

func checkSkills(a *app.App, r *CheckResult) {
	list, err := a.Skills()
	if err != nil {
		r.add("skills", StatusUnhealthy, "%v", err)
		return
	}
	r.Skills = len(list)
	if len(list) == 0 {
		r.add("skills", StatusDegraded, "no skills in %s", a.Paths.SkillsDir)
		return
	}

	known := make(map[string]bool, len(list))
	for _, s := range list {
		known[s.Name] = true
	}
	for _, name := range a.Config.Dashboard.Allow {
		if !known[name] {
			r.add("skills", StatusDegraded, "dashboard allow-list names unknown skill %q", name)
			return
		}
	}
	r.add("skills", StatusHealthy, "%d discovered, %d allowed on the dashboard", len(list), len(a.Config.Dashboard.Allow))
}

// runtimeTimeout bounds each "<interpreter> --version" call.
const runtimeTimeout = 5 * time.Second

// checkRuntimes runs "--version" for every interpreter a skill command
// starts with. Commands naming a path (./run.sh) are the skill's own script
// and are skipped.
func checkRuntimes(ctx context.Context, a *app.App, r *CheckResult) {
	list, err := a.Skills()
	if err != nil {
		return
	}
	seen := make(map[string]bool)
	var names []string
	for _, s := range list {
		words, err := shellquote.Split(s.Manifest.Command)
		if err != nil || len(words) == 0 || strings.ContainsRune(words[0], '/') || seen[words[0]] {
			continue
		}
		seen[words[0]] = true
		names = append(names, words[0])
	}
	if len(names) == 0 {
		r.add("runtimes", StatusHealthy, "no interpreters needed")
		return
	}
	sort.Strings(names)

	var missing, found []string
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, runtimeTimeout)
		out, err := a.Executor.Execute(cctx, name, "--version")
		cancel()
		if err != nil {
			missing = append(missing, name)
			continue
		}
		version := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
		if version == "" {
			found = append(found, name)
		} else {
			found = append(found, name+" "+version)
		}
	}
	if len(missing) > 0 {
		r.add("runtimes", StatusDegraded, "not runnable: %s", strings.Join(missing, ", "))
		return
	}
	r.add("runtimes", StatusHealthy, "%s", strings.Join(found, "; "))
}

func checkLedger(ctx context.Context, a *app.App, r *CheckResult) {
	l, err := a.OpenLedger()
	if err != nil {
		r.add("ledger", StatusUnhealthy, "%v", err)
		return
	}
	defer l.Close()

	versions, err := l.Versions()
	if err != nil {
		r.add("ledger", StatusUnhealthy, "schema: %v", err)
		return
	}
	if len(versions) == 0 {
		r.add("ledger", StatusUnhealthy, "no migrations applied")
		return
	}
	stats, err := l.Stats(ctx)
	if err != nil {
		r.add("ledger", StatusUnhealthy, "%v", err)
		return
	}
	r.add("ledger", StatusHealthy, "schema v%d, %d matches", versions[len(versions)-1], stats.Matched)
}

func checkRuns(a *app.App, r *CheckResult, now time.Time) {
	jobs, err := a.Runner().List()
	if err != nil {
		r.add("runs", StatusUnhealthy, "%v", err)
		return
	}

	timeout := a.Config.Dashboard.RunTimeout.Duration
	var oldest time.Duration
	stale := 0
	for _, job := range jobs {
		if job.Status.Done() {
			continue
		}
		r.ActiveRuns++
		since := job.CreatedAt
		if job.StartedAt != nil {
			since = *job.StartedAt
		}
		age := now.Sub(since)
		if age > oldest {
			oldest = age
		}
		if timeout > 0 && age > timeout {
			stale++
		}
	}
	if r.ActiveRuns > 0 {
		r.OldestActive = formatDuration(oldest)
	}

	switch {
	case stale > 0:
		r.add("runs", StatusDegraded, "%d run(s) past %s; run skillctl gc", stale, timeout)
	case r.ActiveRuns > 0:
		r.add("runs", StatusHealthy, "%d active, oldest %s", r.ActiveRuns, r.OldestActive)
	default:
		r.add("runs", StatusHealthy, "%d recorded, none active", len(jobs))
	}
}

func checkIncidents(a *app.App, r *CheckResult) {
	counts, err := a.Incidents().Counts()
	if err != nil {
		r.add("incidents", StatusUnhealthy, "%v", err)
		return
	}
	for _, s := range incident.Statuses {
		if !s.Closed() {
			r.OpenIncidents += counts[s]
		}
	}
	if n := counts[incident.StatusEscalated]; n > 0 {
		r.add("incidents", StatusDegraded, "%d escalated, %d open", n, r.OpenIncidents)
		return
	}
	r.add("incidents", StatusHealthy, "%d open", r.OpenIncidents)
}

func checkKintone(a *app.App, r *CheckResult) {
	kc := a.Config.Kintone
	set := 0
	for _, ok := range []bool{kc.BaseURL != "", kc.App > 0, kc.APIToken != ""} {
		if ok {
			set++
		}
	}
	switch set {
	case 0:
		r.add("kintone", StatusHealthy, "not configured")
	case 3:
		r.add("kintone", StatusHealthy, "app %d at %s", kc.App, kc.BaseURL)
	default:
		r.add("kintone", StatusDegraded, "partially configured: need base_url, app and api_token")
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
