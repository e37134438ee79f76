package trello

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/repotriage/internal/analyze"
)

// StandardLists are the queues an analysis board is expected to carry.
var StandardLists = []string{
	"To Do",
	"Bugs",
	"Enhancements",
	"High Priority",
	"Critical",
	"Suggestions",
	"Summary",
}

// labelColors is the fixed category → color table for on-demand label creation.
var labelColors = map[string]string{
	"security":      "red",
	"bug":           "red",
	"enhancement":   "blue",
	"documentation": "green",
	"testing":       "yellow",
	"performance":   "orange",
	"code-quality":  "purple",
	"code_quality":  "purple",
	"suggestion":    "sky",
	"summary":       "lime",
}

// LabelColor returns the color for a label name, defaulting to black.
func LabelColor(name string) string {
	if c, ok := labelColors[strings.ToLower(name)]; ok {
		return c
	}
	return "black"
}

// StandardLabels returns the standard label set with colors for board setup.
func StandardLabels() map[string]string {
	labels := map[string]string{}
	for name, color := range labelColors {
		if name == "code_quality" {
			continue
		}
		labels[name] = color
	}
	labels["generic"] = "black"
	return labels
}

// ListForIssue routes an analysis issue to a board list by severity.
func ListForIssue(sev analyze.Severity) string {
	switch sev {
	case analyze.SeverityCritical:
		return "Critical"
	case analyze.SeverityHigh:
		return "High Priority"
	default:
		return "To Do"
	}
}

// ListForTrackerIssue routes a remote tracker issue to a board list by its
// labels: bug wins over enhancement, everything else lands in To Do.
func ListForTrackerIssue(labels []string) string {
	for _, l := range labels {
		if strings.EqualFold(l, "bug") {
			return "Bugs"
		}
	}
	for _, l := range labels {
		if strings.EqualFold(l, "enhancement") {
			return "Enhancements"
		}
	}
	return "To Do"
}

// scoreBandLabel returns the color-coded label for a quality score.
func scoreBandLabel(score int) string {
	switch {
	case score >= 80:
		return "green"
	case score >= 60:
		return "yellow"
	default:
		return "red"
	}
}

// TrackerIssue is a remote tracker issue to be mirrored as a card.
type TrackerIssue struct {
	Number    int
	Title     string
	Body      string
	Author    string
	Labels    []string
	CreatedAt string
}

// RepoSummary is the repository metadata embedded in the summary card.
type RepoSummary struct {
	Name       string
	FullName   string
	Language   string
	Stars      int
	Forks      int
	OpenIssues int
	URL        string
}

// CardCreator is the single capability the mapper needs from the board client.
type CardCreator interface {
	CreateCard(ctx context.Context, p CardParams) (*Card, error)
}

// Mapper deterministically places analysis findings onto board lists.
type Mapper struct {
	board CardCreator
}

// NewMapper creates a mapper over a board client.
func NewMapper(board CardCreator) *Mapper {
	return &Mapper{board: board}
}

// CreateAnalysisCards files one card per issue and per suggestion. A failed
// card is logged and skipped; it never aborts the batch.
func (m *Mapper) CreateAnalysisCards(ctx context.Context, combined *analyze.Combined, repoFullName string) []Card {
	var created []Card

	for _, issue := range combined.Issues {
		labels := []string{repoFullName, issue.Type, issue.Severity.String()}
		desc := fmt.Sprintf(`**Code Analysis Issue**

**Type:** %s
**Severity:** %s

%s

**Repository:** %s
**Analysis Score:** %d/100`,
			issue.Type, issue.Severity, issue.Description, repoFullName, combined.Score)

		card, err := m.board.CreateCard(ctx, CardParams{
			Title:       issue.Title,
			Description: desc,
			ListName:    ListForIssue(issue.Severity),
			Labels:      labels,
			LabelColors: colorsFor(labels),
		})
		if err != nil {
			slog.Warn("card creation failed", "title", issue.Title, "error", err)
			continue
		}
		created = append(created, *card)
	}

	for _, sug := range combined.Suggestions {
		labels := []string{repoFullName, "suggestion", sug.Type}
		desc := fmt.Sprintf(`**Code Analysis Suggestion**

**Type:** %s

%s

**Repository:** %s
**Analysis Score:** %d/100`,
			sug.Type, sug.Description, repoFullName, combined.Score)

		card, err := m.board.CreateCard(ctx, CardParams{
			Title:       sug.Title,
			Description: desc,
			ListName:    "Suggestions",
			Labels:      labels,
			LabelColors: colorsFor(labels),
		})
		if err != nil {
			slog.Warn("card creation failed", "title", sug.Title, "error", err)
			continue
		}
		created = append(created, *card)
	}

	return created
}

// CreateIssueCards mirrors remote tracker issues as cards.
func (m *Mapper) CreateIssueCards(ctx context.Context, issues []TrackerIssue, repoFullName string) []Card {
	var created []Card

	for _, issue := range issues {
		labels := append([]string{repoFullName}, issue.Labels...)
		body := issue.Body
		if body == "" {
			body = "No description provided"
		}
		desc := fmt.Sprintf(`**GitHub Issue #%d**

%s

**Created by:** %s
**Created:** %s
**Labels:** %s

[View on GitHub](https://github.com/%s/issues/%d)`,
			issue.Number, body, issue.Author, issue.CreatedAt,
			strings.Join(issue.Labels, ", "), repoFullName, issue.Number)

		card, err := m.board.CreateCard(ctx, CardParams{
			Title:       fmt.Sprintf("Issue #%d: %s", issue.Number, issue.Title),
			Description: desc,
			ListName:    ListForTrackerIssue(issue.Labels),
			Labels:      labels,
			LabelColors: colorsFor(labels),
		})
		if err != nil {
			slog.Warn("issue card creation failed", "number", issue.Number, "error", err)
			continue
		}
		created = append(created, *card)
	}

	return created
}

// CreateSummaryCard files the single run summary card on the Summary list.
func (m *Mapper) CreateSummaryCard(ctx context.Context, repo RepoSummary, combined *analyze.Combined, totalCards int) *Card {
	desc := fmt.Sprintf(`**Repository Analysis Summary**

**Repository:** %s
**Language:** %s
**Stars:** %d
**Forks:** %d
**Open Issues:** %d

**Analysis Results:**
- **Quality Score:** %d/100
- **Issues Found:** %d
- **Suggestions:** %d
- **Trello Cards Created:** %d

**Repository URL:** %s`,
		repo.FullName, repo.Language, repo.Stars, repo.Forks, repo.OpenIssues,
		combined.Score, len(combined.Issues), len(combined.Suggestions), totalCards, repo.URL)

	labels := []string{repo.FullName, "summary", scoreBandLabel(combined.Score)}

	card, err := m.board.CreateCard(ctx, CardParams{
		Title:       fmt.Sprintf("Analysis Summary: %s", repo.Name),
		Description: desc,
		ListName:    "Summary",
		Labels:      labels,
		LabelColors: colorsFor(labels),
	})
	if err != nil {
		slog.Warn("summary card creation failed", "repo", repo.FullName, "error", err)
		return nil
	}
	return card
}

func colorsFor(labels []string) map[string]string {
	colors := make(map[string]string, len(labels))
	for _, l := range labels {
		colors[l] = LabelColor(l)
	}
	return colors
}
