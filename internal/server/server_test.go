package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/repotriage/internal/analyze"
	"github.com/ppiankov/repotriage/internal/github"
	"github.com/ppiankov/repotriage/internal/history"
	"github.com/ppiankov/repotriage/internal/workflow"
)

// stubRunner returns a canned result or error.
type stubRunner struct {
	result *workflow.Result
	err    error
	repos  []string
}

func (r *stubRunner) Run(_ context.Context, repoRef string) (*workflow.Result, error) {
	r.repos = append(r.repos, repoRef)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func cannedResult() *workflow.Result {
	combined := &analyze.Combined{Score: 85}
	return &workflow.Result{
		Repo:     &github.Repo{FullName: "owner/proj"},
		Combined: combined,
		Summary:  analyze.Summarize(combined),
	}
}

func TestHealthz(t *testing.T) {
	s := New(Config{}, &stubRunner{result: cannedResult()}, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAnalyze(t *testing.T) {
	runner := &stubRunner{result: cannedResult()}
	s := New(Config{}, runner, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"repo":"owner/proj"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(runner.repos) != 1 || runner.repos[0] != "owner/proj" {
		t.Errorf("runner called with %v", runner.repos)
	}

	var result workflow.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Combined.Score != 85 {
		t.Errorf("score = %d, want 85", result.Combined.Score)
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	s := New(Config{}, &stubRunner{result: cannedResult()}, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"missing repo", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAnalyze_RunnerError(t *testing.T) {
	s := New(Config{}, &stubRunner{err: fmt.Errorf("repo not found")}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"repo":"owner/gone"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestRuns_NilStore(t *testing.T) {
	s := New(Config{}, &stubRunner{}, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty array", rec.Body.String())
	}
}

func TestRuns_WithStore(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for _, repo := range []string{"a/one", "b/two", "a/one"} {
		if err := store.Record(ctx, history.Run{Repo: repo, StartedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	s := New(Config{}, &stubRunner{}, store, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=2", nil))
	var runs []history.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?repo=b/two", nil))
	runs = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Repo != "b/two" {
		t.Errorf("filtered runs = %+v", runs)
	}
}

func TestRuns_InvalidLimit(t *testing.T) {
	s := New(Config{}, &stubRunner{}, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// stubDirectory implements RepoDirectory.
type stubDirectory struct {
	repos []github.Repo
	err   error
}

func (d *stubDirectory) ListUserRepos(_ context.Context, _ string) ([]github.Repo, error) {
	return d.repos, d.err
}

func TestRepos(t *testing.T) {
	dir := &stubDirectory{repos: []github.Repo{{Name: "proj", FullName: "octocat/proj"}}}
	s := New(Config{}, &stubRunner{}, nil, dir)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/repos/octocat", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var repos []github.Repo
	if err := json.Unmarshal(rec.Body.Bytes(), &repos); err != nil {
		t.Fatal(err)
	}
	if len(repos) != 1 || repos[0].FullName != "octocat/proj" {
		t.Errorf("repos = %+v", repos)
	}
}

func TestRepos_Unconfigured(t *testing.T) {
	s := New(Config{}, &stubRunner{}, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/repos/octocat", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Listen: "127.0.0.1:0"}, &stubRunner{result: cannedResult()}, nil, nil)

	addr, err := s.Start()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := s.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
}

func TestSpool_ProcessesExisting(t *testing.T) {
	dir := t.TempDir()
	writeRequest(t, dir, "req.json", `{"repo":"owner/proj"}`)

	runner := &stubRunner{result: cannedResult()}
	spool, err := NewSpool(dir, runner)
	if err != nil {
		t.Fatal(err)
	}

	if err := spool.scanExisting(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(runner.repos) != 1 || runner.repos[0] != "owner/proj" {
		t.Errorf("runner called with %v", runner.repos)
	}
	if _, err := os.Stat(filepath.Join(dir, "req.json.done")); err != nil {
		t.Errorf("request not marked done: %v", err)
	}
}

func TestSpool_MarksFailures(t *testing.T) {
	dir := t.TempDir()
	writeRequest(t, dir, "bad.json", "{nope")
	writeRequest(t, dir, "err.json", `{"repo":"owner/gone"}`)

	runner := &stubRunner{err: fmt.Errorf("not found")}
	spool, err := NewSpool(dir, runner)
	if err != nil {
		t.Fatal(err)
	}

	if err := spool.scanExisting(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"bad.json.failed", "err.json.failed"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestNewSpool_RequiresDir(t *testing.T) {
	if _, err := NewSpool("", &stubRunner{}); err == nil {
		t.Error("expected error for empty spool dir")
	}
}

func TestIsRequestFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"req.json", true},
		{"req.json.done", false},
		{"req.json.failed", false},
		{".hidden.json", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := isRequestFile(tt.name); got != tt.want {
			t.Errorf("isRequestFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func writeRequest(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
