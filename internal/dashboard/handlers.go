package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-chi/chi/v5"

	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/incident"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/skills"
)

const maxRunBodySize = 64 << 10

// RunRequest is the body of POST /api/skills/{name}/run.
type RunRequest struct {
	Params map[string]string `json:"params"`
	DryRun bool              `json:"dry_run"`
}

type skillView struct {
	*skills.Skill
	Allowed bool `json:"allowed"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	found, err := skills.Discover(s.deps.SkillsDir)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]skillView, 0, len(found))
	for _, sk := range found {
		views = append(views, skillView{Skill: sk, Allowed: s.deps.Config.Allowed(sk.Name)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRunSkill(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.deps.Config.Allowed(name) {
		writeError(w, skillerrors.Forbidden(name))
		return
	}

	var req RunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRunBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, skillerrors.ValidationError(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	sk, err := skills.Find(s.deps.SkillsDir, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if sk.Manifest.Timeout.Duration == 0 {
		sk.Manifest.Timeout = s.deps.Config.Dashboard.RunTimeout
	}

	job, err := s.deps.Runner.Prepare(sk, req.Params, req.DryRun, "dashboard")
	if err != nil {
		writeError(w, err)
		return
	}

	queued := *job
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		done, err := s.deps.Runner.Execute(s.runCtx, sk, job)
		if err != nil {
			logging.Error("failed to record run", "run_id", job.RunID, "error", err)
			return
		}
		s.captureFailure(done)
	}()

	w.Header().Set("Location", "/api/runs/"+job.RunID)
	writeJSON(w, http.StatusAccepted, &queued)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.deps.Runner.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if name := r.URL.Query().Get("skill"); name != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Skill == name {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Runner.Load(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRunLog(w http.ResponseWriter, r *http.Request) {
	tail, _ := strconv.Atoi(r.URL.Query().Get("tail"))
	text, err := s.deps.Runner.Log(chi.URLParam(r, "id"), tail)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Runner.Load(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	dir, err := s.deps.Runner.ArtifactsPath(job.RunID)
	if err != nil {
		writeError(w, err)
		return
	}
	listing, err := ListArtifacts(job.RunID, dir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if _, err := s.deps.Runner.Load(runID); err != nil {
		writeError(w, err)
		return
	}
	dir, err := s.deps.Runner.ArtifactsPath(runID)
	if err != nil {
		writeError(w, err)
		return
	}

	rel := chi.URLParam(r, "*")
	path, err := securejoin.SecureJoin(dir, rel)
	if err != nil {
		writeError(w, skillerrors.ValidationError(fmt.Sprintf("invalid artifact path: %v", err)))
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, skillerrors.New(skillerrors.ExitRunNotFound, skillerrors.TypeNotFound,
			fmt.Sprintf("artifact not found: %s", rel)))
		return
	}
	if strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".ndjson") {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Incidents == nil {
		writeJSON(w, http.StatusOK, []*incident.Incident{})
		return
	}

	q := r.URL.Query()
	filter := incident.Filter{
		Skill:           q.Get("skill"),
		Class:           incident.FailureClass(q.Get("class")),
		IncludeArchived: q.Get("archived") == "true",
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			status, err := incident.ParseStatus(part)
			if err != nil {
				writeError(w, err)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	list, err := s.deps.Incidents.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.deps.Incidents == nil {
		writeError(w, skillerrors.IncidentNotFound(id))
		return
	}
	inc, err := s.deps.Incidents.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleLedgerStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		httpError(w, http.StatusServiceUnavailable, skillerrors.TypeConfig, "ledger is not available")
		return
	}
	stats, err := s.deps.Ledger.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("failed to encode response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, skillerrors.Envelope{Error: skillerrors.Detail{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}})
}

// writeError maps a skillctl error onto an HTTP status and writes its
// envelope.
func writeError(w http.ResponseWriter, err error) {
	env := skillerrors.ToEnvelope(err)
	writeJSON(w, statusFor(err), env)
}

func statusFor(err error) int {
	if skillerrors.GetType(err) == skillerrors.TypeForbidden {
		return http.StatusForbidden
	}
	switch skillerrors.GetExitCode(err) {
	case skillerrors.ExitSkillNotFound, skillerrors.ExitIncidentNotFound, skillerrors.ExitRunNotFound:
		return http.StatusNotFound
	case skillerrors.ExitValidation:
		return http.StatusBadRequest
	case skillerrors.ExitTransition:
		return http.StatusConflict
	case skillerrors.ExitRemoteError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
