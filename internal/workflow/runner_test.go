package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/repotriage/internal/ai"
	"github.com/ppiankov/repotriage/internal/analyze"
	"github.com/ppiankov/repotriage/internal/github"
	"github.com/ppiankov/repotriage/internal/history"
	"github.com/ppiankov/repotriage/internal/trello"
)

// stubRepos is an in-memory RepoFetcher.
type stubRepos struct {
	repo    *github.Repo
	tree    []github.TreeEntry
	files   map[string]string
	dirs    map[string]bool
	issues  []github.Issue
	commits []github.Commit
	repoErr error
	treeErr error

	contentCalls int
}

func (s *stubRepos) GetRepo(_ context.Context, _ string) (*github.Repo, error) {
	return s.repo, s.repoErr
}

func (s *stubRepos) ListTree(_ context.Context, _, _ string) ([]github.TreeEntry, error) {
	return s.tree, s.treeErr
}

func (s *stubRepos) FileContent(_ context.Context, _, path string) (string, bool) {
	s.contentCalls++
	content, ok := s.files[path]
	return content, ok
}

func (s *stubRepos) DirExists(_ context.Context, _, path string) bool {
	return s.dirs[path]
}

func (s *stubRepos) ListIssues(_ context.Context, _ string, _ int) ([]github.Issue, error) {
	return s.issues, nil
}

func (s *stubRepos) ListCommits(_ context.Context, _ string, _ int) ([]github.Commit, error) {
	return s.commits, nil
}

// fixedReviewer returns a canned model review.
type fixedReviewer struct {
	result *ai.Result
	calls  int
}

func (r *fixedReviewer) Available() bool { return true }

func (r *fixedReviewer) Analyze(_ context.Context, _ string, _ []ai.Sample) *ai.Result {
	r.calls++
	return r.result
}

// fakeBoard implements trello.CardCreator.
type fakeBoard struct {
	cards []trello.CardParams
}

func (b *fakeBoard) CreateCard(_ context.Context, p trello.CardParams) (*trello.Card, error) {
	b.cards = append(b.cards, p)
	return &trello.Card{ID: fmt.Sprintf("c%d", len(b.cards)), Name: p.Title, ListName: p.ListName}, nil
}

func healthyRepo() *stubRepos {
	return &stubRepos{
		repo: &github.Repo{
			Name: "proj", FullName: "owner/proj", Language: "Python",
			Stars: 5, DefaultBranch: "main",
		},
		tree: []github.TreeEntry{
			{Path: "README.md", Type: "file"},
			{Path: "app.py", Type: "file"},
			{Path: "docs", Type: "dir"},
		},
		files: map[string]string{
			"README.md":        "# proj",
			"LICENSE":          "MIT",
			"requirements.txt": "flask",
			"app.py":           "import os\n\ndef main():\n    pass\n",
		},
		dirs: map[string]bool{"tests": true, ".github/workflows": true},
		commits: []github.Commit{
			{SHA: "abc123", Message: "fix parser\n\ndetails", Author: "alice"},
		},
	}
}

func TestRun_StructureOnly(t *testing.T) {
	repos := healthyRepo()
	runner := NewRunner(repos, nil, nil, nil, Options{})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}

	if result.Combined.Score != 100 {
		t.Errorf("score = %d, want 100 for a healthy repo", result.Combined.Score)
	}
	if result.FilesScanned != 1 {
		t.Errorf("files scanned = %d, want 1 (only app.py is code)", result.FilesScanned)
	}
	if result.AIProvider != "" || len(result.Cards) != 0 {
		t.Errorf("unexpected AI/board activity: %+v", result)
	}
	if len(result.RecentCommits) != 1 || result.RecentCommits[0].SHA != "abc123" {
		t.Errorf("recent commits = %+v", result.RecentCommits)
	}
}

func TestRun_WithReview(t *testing.T) {
	repos := healthyRepo()
	reviewer := &fixedReviewer{result: &ai.Result{
		Issues: []analyze.Issue{
			{Type: "architecture", Severity: analyze.SeverityMedium, Title: "god object", Description: "d"},
		},
		CodeQualityScore: 80,
		Provider:         "openai",
	}}
	runner := NewRunner(repos, nil, reviewer, nil, Options{})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}

	if result.Combined.Score != 90 {
		t.Errorf("score = %d, want 90 ((100+80)/2)", result.Combined.Score)
	}
	if result.AIProvider != "openai" {
		t.Errorf("provider = %q", result.AIProvider)
	}
	if reviewer.calls != 1 {
		t.Errorf("reviewer calls = %d, want 1", reviewer.calls)
	}
	found := false
	for _, issue := range result.Combined.Issues {
		if issue.Title == "god object" {
			found = true
		}
	}
	if !found {
		t.Error("review issue missing from combined result")
	}
}

func TestRun_FallbackReviewAveragesNeutral(t *testing.T) {
	repos := healthyRepo()
	reviewer := &fixedReviewer{result: ai.FallbackResult()}
	runner := NewRunner(repos, nil, reviewer, nil, Options{})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}

	if result.Combined.Score != 85 {
		t.Errorf("score = %d, want 85 ((100+70)/2)", result.Combined.Score)
	}
	if !result.AIFallback {
		t.Error("fallback flag not propagated")
	}
}

func TestRun_FilesCards(t *testing.T) {
	repos := healthyRepo()
	repos.files["app.py"] = "password = \"hunter2\"\n"
	board := &fakeBoard{}
	store, err := history.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	runner := NewRunner(repos, trello.NewMapper(board), nil, store, Options{})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Cards) != 1 {
		t.Fatalf("cards = %d, want 1 (hardcoded password issue)", len(result.Cards))
	}
	if result.SummaryCard == nil {
		t.Fatal("summary card missing")
	}
	// issue card + summary card on the board
	if len(board.cards) != 2 {
		t.Errorf("board cards = %d, want 2", len(board.cards))
	}
	if board.cards[0].ListName != "High Priority" {
		t.Errorf("issue card list = %q, want High Priority", board.cards[0].ListName)
	}

	runs, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Repo != "owner/proj" {
		t.Errorf("history runs = %+v", runs)
	}
	if runs[0].Cards != 1 {
		t.Errorf("recorded cards = %d, want 1", runs[0].Cards)
	}
}

func TestRun_IncludeIssues(t *testing.T) {
	repos := healthyRepo()
	repos.issues = []github.Issue{
		{Number: 7, Title: "crash on startup", Labels: []string{"bug"}, User: "alice"},
	}
	board := &fakeBoard{}
	runner := NewRunner(repos, trello.NewMapper(board), nil, nil, Options{IncludeIssues: true})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Cards) != 1 {
		t.Fatalf("cards = %d, want 1 issue mirror", len(result.Cards))
	}
	if board.cards[0].ListName != "Bugs" {
		t.Errorf("issue card list = %q, want Bugs", board.cards[0].ListName)
	}
	if !strings.Contains(board.cards[0].Title, "#7") {
		t.Errorf("issue card title = %q", board.cards[0].Title)
	}
}

func TestRun_TreeFailureDegrades(t *testing.T) {
	repos := healthyRepo()
	repos.treeErr = fmt.Errorf("api rate limit")
	runner := NewRunner(repos, nil, nil, nil, Options{})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesScanned != 0 {
		t.Errorf("files scanned = %d, want 0", result.FilesScanned)
	}
	if result.Combined.Score != 100 {
		t.Errorf("structure-only score = %d, want 100", result.Combined.Score)
	}
}

func TestRun_RepoFetchError(t *testing.T) {
	repos := &stubRepos{repoErr: fmt.Errorf("not found")}
	runner := NewRunner(repos, nil, nil, nil, Options{})

	if _, err := runner.Run(context.Background(), "owner/missing"); err == nil {
		t.Error("expected error when repository fetch fails")
	}
}

func TestRun_BadRef(t *testing.T) {
	runner := NewRunner(healthyRepo(), nil, nil, nil, Options{})
	if _, err := runner.Run(context.Background(), "https://github.com/onlyowner"); err == nil {
		t.Error("expected error for malformed repository reference")
	}
}

func TestRun_MaxFilesCap(t *testing.T) {
	repos := healthyRepo()
	repos.tree = nil
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("f%d.py", i)
		repos.tree = append(repos.tree, github.TreeEntry{Path: path, Type: "file"})
		repos.files[path] = "pass\n"
	}
	runner := NewRunner(repos, nil, nil, nil, Options{MaxFiles: 3})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesScanned != 3 {
		t.Errorf("files scanned = %d, want 3", result.FilesScanned)
	}
}

func TestRun_SkipsNonCodeFiles(t *testing.T) {
	repos := healthyRepo()
	repos.tree = []github.TreeEntry{
		{Path: "logo.png", Type: "file"},
		{Path: "data.csv", Type: "file"},
		{Path: "src", Type: "dir"},
		{Path: "src/main.go", Type: "file"},
	}
	repos.files["src/main.go"] = "package main\n"
	runner := NewRunner(repos, nil, nil, nil, Options{})

	result, err := runner.Run(context.Background(), "owner/proj")
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesScanned != 1 {
		t.Errorf("files scanned = %d, want 1 (only main.go)", result.FilesScanned)
	}
}
