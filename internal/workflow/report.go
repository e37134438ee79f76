package workflow

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ppiankov/repotriage/internal/analyze"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

// TextFormatter writes a human-readable analysis report.
type TextFormatter struct {
	color bool
}

// NewTextFormatter creates a text formatter with optional ANSI color.
func NewTextFormatter(color bool) *TextFormatter {
	return &TextFormatter{color: color}
}

func (f *TextFormatter) Format(w io.Writer, result *Result) error {
	repo := result.Repo

	fmt.Fprintf(w, "%s%s%s — score %s, %d files scanned\n",
		f.c(colorBold), repo.FullName, f.c(colorReset),
		f.scoreLabel(result.Combined.Score), result.FilesScanned)
	if repo.Description != "" {
		fmt.Fprintf(w, "%s%s%s\n", f.c(colorDim), repo.Description, f.c(colorReset))
	}
	fmt.Fprintf(w, "language %s, %d stars, %d forks, %d open issues\n",
		orDash(repo.Language), repo.Stars, repo.Forks, repo.OpenIssues)
	if len(result.RecentCommits) > 0 {
		latest := result.RecentCommits[0]
		fmt.Fprintf(w, "latest commit: %s (%s)\n", firstLine(latest.Message), latest.Author)
	}
	fmt.Fprintln(w)

	if len(result.Combined.Issues) > 0 {
		fmt.Fprintf(w, "%sIssues%s\n", f.c(colorBold), f.c(colorReset))
		for _, issue := range result.Combined.Issues {
			fmt.Fprintf(w, "  %s  %-14s %s%s\n",
				f.severityLabel(issue.Severity), issue.Type, issue.Title, f.location(issue))
		}
		fmt.Fprintln(w)
	}

	if len(result.Combined.Suggestions) > 0 {
		fmt.Fprintf(w, "%sSuggestions%s\n", f.c(colorBold), f.c(colorReset))
		for _, sug := range result.Combined.Suggestions {
			loc := ""
			if sug.File != "" {
				loc = fmt.Sprintf(" %s(%s)%s", f.c(colorDim), sug.File, f.c(colorReset))
			}
			fmt.Fprintf(w, "  %-14s %s%s\n", sug.Type, sug.Title, loc)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Summary: %d issues (%s), %d suggestions",
		result.Summary.TotalIssues, f.severityCounts(result.Summary),
		result.Summary.TotalSuggestions)
	if result.AIProvider != "" {
		fmt.Fprintf(w, ", reviewed by %s", result.AIProvider)
	} else if result.AIFallback {
		fmt.Fprint(w, ", AI review unavailable")
	}
	if len(result.Cards) > 0 {
		fmt.Fprintf(w, ", %d cards filed", len(result.Cards))
	}
	fmt.Fprintln(w)

	return nil
}

func (f *TextFormatter) c(code string) string {
	if !f.color {
		return ""
	}
	return code
}

func (f *TextFormatter) scoreLabel(score int) string {
	color := colorRed
	switch {
	case score >= 80:
		color = colorGreen
	case score >= 60:
		color = colorYellow
	}
	return fmt.Sprintf("%s%d/100%s", f.c(color), score, f.c(colorReset))
}

func (f *TextFormatter) severityLabel(s analyze.Severity) string {
	switch s {
	case analyze.SeverityCritical:
		return fmt.Sprintf("%sCRITICAL%s", f.c(colorRed), f.c(colorReset))
	case analyze.SeverityHigh:
		return fmt.Sprintf("%sHIGH    %s", f.c(colorRed), f.c(colorReset))
	case analyze.SeverityMedium:
		return fmt.Sprintf("%sMEDIUM  %s", f.c(colorYellow), f.c(colorReset))
	default:
		return fmt.Sprintf("%slow     %s", f.c(colorDim), f.c(colorReset))
	}
}

func (f *TextFormatter) location(issue analyze.Issue) string {
	if issue.File == "" {
		return ""
	}
	loc := issue.File
	if issue.Line > 0 {
		loc = fmt.Sprintf("%s:%d", issue.File, issue.Line)
	}
	return fmt.Sprintf(" %s(%s)%s", f.c(colorDim), loc, f.c(colorReset))
}

func (f *TextFormatter) severityCounts(s *analyze.Summary) string {
	order := []string{"critical", "high", "medium", "low"}
	var parts []string
	for _, sev := range order {
		if n := s.IssueSeverities[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// MarkdownFormatter writes a report suitable for issues and wikis.
type MarkdownFormatter struct{}

func NewMarkdownFormatter() *MarkdownFormatter { return &MarkdownFormatter{} }

func (f *MarkdownFormatter) Format(w io.Writer, result *Result) error {
	repo := result.Repo

	fmt.Fprintf(w, "# Analysis: %s\n\n", repo.FullName)
	fmt.Fprintf(w, "**Score:** %d/100  \n", result.Combined.Score)
	fmt.Fprintf(w, "**Language:** %s | **Stars:** %d | **Forks:** %d | **Open issues:** %d\n\n",
		orDash(repo.Language), repo.Stars, repo.Forks, repo.OpenIssues)

	if len(result.Combined.Issues) > 0 {
		fmt.Fprintf(w, "## Issues (%d)\n\n", len(result.Combined.Issues))
		fmt.Fprintln(w, "| Severity | Type | Title | Location |")
		fmt.Fprintln(w, "|---|---|---|---|")
		for _, issue := range result.Combined.Issues {
			loc := issue.File
			if issue.Line > 0 {
				loc = fmt.Sprintf("%s:%d", issue.File, issue.Line)
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
				issue.Severity, issue.Type, escapePipes(issue.Title), orDash(loc))
		}
		fmt.Fprintln(w)
	}

	if len(result.Combined.Suggestions) > 0 {
		fmt.Fprintf(w, "## Suggestions (%d)\n\n", len(result.Combined.Suggestions))
		for _, sug := range result.Combined.Suggestions {
			fmt.Fprintf(w, "- **%s**: %s\n", sug.Type, escapePipes(sug.Title))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "## Breakdown")
	fmt.Fprintln(w)
	for _, line := range countLines(result.Summary.IssueTypes) {
		fmt.Fprintf(w, "- %s\n", line)
	}

	return nil
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func countLines(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return lines
}

// JSONFormatter writes the full result as JSON.
type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter { return &JSONFormatter{} }

func (f *JSONFormatter) Format(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
