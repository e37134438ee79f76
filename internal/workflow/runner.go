package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/repotriage/internal/ai"
	"github.com/ppiankov/repotriage/internal/analyze"
	"github.com/ppiankov/repotriage/internal/github"
	"github.com/ppiankov/repotriage/internal/history"
	"github.com/ppiankov/repotriage/internal/trello"
)

const (
	defaultMaxFiles = 50
	issueCardLimit  = 20
	commitLimit     = 10
)

// codeExts are the extensions selected for content scanning.
var codeExts = map[string]bool{
	".py": true, ".pyx": true, ".pyi": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".go": true, ".java": true, ".rb": true, ".php": true,
	".c": true, ".cpp": true, ".h": true, ".rs": true,
}

// extLanguages maps extensions to the language tag used in model prompts.
var extLanguages = map[string]string{
	".py": "python", ".pyx": "python", ".pyi": "python",
	".js": "javascript", ".jsx": "javascript", ".ts": "typescript", ".tsx": "typescript",
	".go": "go", ".java": "java", ".rb": "ruby", ".php": "php",
	".c": "c", ".cpp": "cpp", ".h": "c", ".rs": "rust",
}

// RepoFetcher is the remote repository surface the runner needs. Satisfied by
// *github.Client.
type RepoFetcher interface {
	GetRepo(ctx context.Context, fullName string) (*github.Repo, error)
	ListTree(ctx context.Context, fullName, branch string) ([]github.TreeEntry, error)
	FileContent(ctx context.Context, fullName, path string) (string, bool)
	DirExists(ctx context.Context, fullName, path string) bool
	ListIssues(ctx context.Context, fullName string, limit int) ([]github.Issue, error)
	ListCommits(ctx context.Context, fullName string, limit int) ([]github.Commit, error)
}

// Reviewer is the model review surface. Satisfied by *ai.Analyzer.
type Reviewer interface {
	Available() bool
	Analyze(ctx context.Context, repoName string, samples []ai.Sample) *ai.Result
}

// Options tunes a runner.
type Options struct {
	MaxFiles      int  // files scanned per run; 0 means the default
	IncludeIssues bool // mirror open tracker issues onto the board
}

// Runner orchestrates one full analysis: fetch, audit, scan, review, file
// cards, record history. Board, reviewer, and store are each optional.
type Runner struct {
	repos    RepoFetcher
	board    *trello.Mapper
	reviewer Reviewer
	store    *history.Store
	opts     Options
}

// NewRunner wires a runner. Board, reviewer, and store may be nil.
func NewRunner(repos RepoFetcher, board *trello.Mapper, reviewer Reviewer, store *history.Store, opts Options) *Runner {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = defaultMaxFiles
	}
	return &Runner{repos: repos, board: board, reviewer: reviewer, store: store, opts: opts}
}

// Result is everything one run produced.
type Result struct {
	Repo          *github.Repo      `json:"repo"`
	Combined      *analyze.Combined `json:"combined"`
	Summary       *analyze.Summary  `json:"summary"`
	FilesScanned  int               `json:"files_scanned"`
	RecentCommits []github.Commit   `json:"recent_commits,omitempty"`
	Cards         []trello.Card     `json:"cards,omitempty"`
	SummaryCard   *trello.Card      `json:"summary_card,omitempty"`
	AIProvider    string            `json:"ai_provider,omitempty"`
	AIFallback    bool              `json:"ai_fallback,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	Duration      time.Duration     `json:"duration"`
}

// contentAdapter narrows a RepoFetcher to one repository for the structure
// audit.
type contentAdapter struct {
	repos    RepoFetcher
	fullName string
}

func (a contentAdapter) FileContent(ctx context.Context, path string) (string, bool) {
	return a.repos.FileContent(ctx, a.fullName, path)
}

func (a contentAdapter) DirExists(ctx context.Context, path string) bool {
	return a.repos.DirExists(ctx, a.fullName, path)
}

// Run analyzes one repository end to end.
func (r *Runner) Run(ctx context.Context, repoRef string) (*Result, error) {
	started := time.Now()

	fullName, err := github.ParseRepoRef(repoRef)
	if err != nil {
		return nil, err
	}

	repo, err := r.repos.GetRepo(ctx, fullName)
	if err != nil {
		return nil, fmt.Errorf("fetch repository: %w", err)
	}
	slog.Info("analyzing repository", "repo", repo.FullName, "language", repo.Language)

	structural := analyze.AuditStructure(ctx, contentAdapter{repos: r.repos, fullName: fullName})

	commits, err := r.repos.ListCommits(ctx, fullName, commitLimit)
	if err != nil {
		slog.Warn("commit listing failed", "repo", fullName, "error", err)
	}

	fileResults, samples, scanned := r.scanTree(ctx, repo)

	var aiInput *analyze.AIInput
	result := &Result{Repo: repo, StartedAt: started, RecentCommits: commits}
	if r.reviewer != nil {
		review := r.reviewer.Analyze(ctx, fullName, samples)
		aiInput = &analyze.AIInput{
			Issues:           review.Issues,
			Suggestions:      review.Suggestions,
			CodeQualityScore: review.CodeQualityScore,
		}
		result.AIProvider = review.Provider
		result.AIFallback = review.Fallback
	}

	combined := analyze.Combine(structural, fileResults, aiInput)
	result.Combined = combined
	result.Summary = analyze.Summarize(combined)
	result.FilesScanned = scanned

	if r.board != nil {
		r.fileCards(ctx, result, fullName, repo)
	}

	result.Duration = time.Since(started)
	r.record(ctx, result)

	slog.Info("analysis complete", "repo", fullName, "score", combined.Score,
		"issues", len(combined.Issues), "suggestions", len(combined.Suggestions),
		"duration", result.Duration.Round(time.Millisecond))

	return result, nil
}

// scanTree lists the default branch and scans code files up to the cap.
// A listing failure degrades to a structure-only analysis.
func (r *Runner) scanTree(ctx context.Context, repo *github.Repo) ([]*analyze.FileResult, []ai.Sample, int) {
	entries, err := r.repos.ListTree(ctx, repo.FullName, repo.DefaultBranch)
	if err != nil {
		slog.Warn("tree listing failed, skipping file scan", "repo", repo.FullName, "error", err)
		return nil, nil, 0
	}

	var results []*analyze.FileResult
	var samples []ai.Sample
	scanned := 0

	for _, entry := range entries {
		if entry.Type != "file" {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Path))
		if !codeExts[ext] {
			continue
		}
		if scanned >= r.opts.MaxFiles {
			break
		}

		content, ok := r.repos.FileContent(ctx, repo.FullName, entry.Path)
		if !ok {
			continue
		}
		scanned++
		results = append(results, analyze.ScanFile(content, entry.Path))
		samples = append(samples, ai.NewSample(entry.Path, extLanguages[ext], content))
	}

	return results, samples, scanned
}

// fileCards pushes findings onto the board. Card failures never fail the run.
func (r *Runner) fileCards(ctx context.Context, result *Result, fullName string, repo *github.Repo) {
	result.Cards = r.board.CreateAnalysisCards(ctx, result.Combined, fullName)

	if r.opts.IncludeIssues {
		issues, err := r.repos.ListIssues(ctx, fullName, issueCardLimit)
		if err != nil {
			slog.Warn("issue listing failed", "repo", fullName, "error", err)
		} else {
			tracker := make([]trello.TrackerIssue, 0, len(issues))
			for _, is := range issues {
				tracker = append(tracker, trello.TrackerIssue{
					Number:    is.Number,
					Title:     is.Title,
					Body:      is.Body,
					Author:    is.User,
					Labels:    is.Labels,
					CreatedAt: is.CreatedAt.Format("2006-01-02"),
				})
			}
			result.Cards = append(result.Cards, r.board.CreateIssueCards(ctx, tracker, fullName)...)
		}
	}

	result.SummaryCard = r.board.CreateSummaryCard(ctx, trello.RepoSummary{
		Name:       repo.Name,
		FullName:   repo.FullName,
		Language:   repo.Language,
		Stars:      repo.Stars,
		Forks:      repo.Forks,
		OpenIssues: repo.OpenIssues,
		URL:        repo.URL,
	}, result.Combined, len(result.Cards))
}

// record appends the run to history. Failures are logged, never fatal.
func (r *Runner) record(ctx context.Context, result *Result) {
	run := history.Run{
		Repo:        result.Repo.FullName,
		Score:       result.Combined.Score,
		Issues:      len(result.Combined.Issues),
		Suggestions: len(result.Combined.Suggestions),
		Cards:       len(result.Cards),
		AIProvider:  result.AIProvider,
		StartedAt:   result.StartedAt,
		Duration:    result.Duration,
	}
	if err := r.store.Record(ctx, run); err != nil {
		slog.Warn("history record failed", "repo", run.Repo, "error", err)
	}
}
