package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/skillctl/internal/runner"
)

// scanConcurrency bounds how many run directories are scanned at once.
const scanConcurrency = 4

// Artifact is one file under a run's artifacts directory.
type Artifact struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Records int       `json:"records,omitempty"`
}

// ArtifactSummary aggregates a run's artifacts.
type ArtifactSummary struct {
	RunID   string `json:"run_id"`
	Files   int    `json:"files"`
	Bytes   int64  `json:"bytes"`
	Records int    `json:"records"`
}

// ArtifactListing is the response of GET /api/runs/{id}/artifacts.
type ArtifactListing struct {
	ArtifactSummary
	Artifacts []Artifact `json:"artifacts"`
}

// ListArtifacts walks dir and returns every regular file with sizes and
// JSONL record counts. A missing directory yields an empty listing.
func ListArtifacts(runID, dir string) (*ArtifactListing, error) {
	listing := &ArtifactListing{
		ArtifactSummary: ArtifactSummary{RunID: runID},
		Artifacts:       []Artifact{},
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		a := Artifact{Path: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime()}
		if isJSONL(path) {
			if a.Records, err = countRecords(path); err != nil {
				return err
			}
		}
		listing.Artifacts = append(listing.Artifacts, a)
		listing.Files++
		listing.Bytes += a.Size
		listing.Records += a.Records
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(listing.Artifacts, func(i, j int) bool {
		return listing.Artifacts[i].Path < listing.Artifacts[j].Path
	})
	return listing, nil
}

// ScanRuns summarizes the artifacts of every job in parallel. The result is
// in the same order as jobs.
func ScanRuns(ctx context.Context, r *runner.Runner, jobs []*runner.Job) ([]ArtifactSummary, error) {
	out := make([]ArtifactSummary, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dir, err := r.ArtifactsPath(job.RunID)
			if err != nil {
				return err
			}
			listing, err := ListArtifacts(job.RunID, dir)
			if err != nil {
				return err
			}
			out[i] = listing.ArtifactSummary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func isJSONL(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jsonl" || ext == ".ndjson"
}

func countRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}
