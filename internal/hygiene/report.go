package hygiene

import (
	"fmt"
	"sort"
)

// Finding is a single problem reported by a check.
type Finding struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: [%s] %s", f.Path, f.Rule, f.Message)
}

// Report is the result of one check.
type Report struct {
	Check    string    `json:"check"`
	Root     string    `json:"root"`
	Scanned  int       `json:"scanned"`
	Findings []Finding `json:"findings"`
}

// OK reports whether the check found nothing.
func (r *Report) OK() bool {
	return len(r.Findings) == 0
}

func (r *Report) add(path, rule, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Path: path, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) sort() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		if r.Findings[i].Path != r.Findings[j].Path {
			return r.Findings[i].Path < r.Findings[j].Path
		}
		return r.Findings[i].Rule < r.Findings[j].Rule
	})
}

// ByRule counts findings per rule.
func (r *Report) ByRule() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Findings {
		counts[f.Rule]++
	}
	return counts
}
