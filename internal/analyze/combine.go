package analyze

// AIInput carries the parts of an AI-assisted analysis the aggregator needs.
type AIInput struct {
	Issues           []Issue
	Suggestions      []Suggestion
	CodeQualityScore int
}

// Combined is the merged result of one analysis run, consumed by the card mapper.
type Combined struct {
	Issues      []Issue      `json:"issues"`
	Suggestions []Suggestion `json:"suggestions"`
	Score       int          `json:"score"`
}

// Combine merges structural, per-file, and optional AI results into one report.
// Issue and suggestion order is source order: structural first, then files in
// iteration order, then AI. The score is the structural score, averaged with
// the AI code-quality score (floor division) when an AI result is present.
// Per-file findings never move the score on their own.
func Combine(structural *StructureResult, files []*FileResult, ai *AIInput) *Combined {
	c := &Combined{}

	if structural != nil {
		c.Issues = append(c.Issues, structural.Issues...)
		c.Suggestions = append(c.Suggestions, structural.Suggestions...)
		c.Score = structural.Score
	}

	for _, f := range files {
		if f == nil {
			continue
		}
		c.Issues = append(c.Issues, f.Issues...)
		c.Suggestions = append(c.Suggestions, f.Suggestions...)
	}

	if ai != nil {
		c.Issues = append(c.Issues, ai.Issues...)
		c.Suggestions = append(c.Suggestions, ai.Suggestions...)
		if structural != nil {
			c.Score = (structural.Score + ai.CodeQualityScore) / 2
		} else {
			c.Score = ai.CodeQualityScore
		}
	}

	return c
}

// Summary aggregates finding counts. Type and severity counts each sum to
// TotalIssues: no issue is double-counted or dropped.
type Summary struct {
	TotalIssues      int            `json:"total_issues"`
	TotalSuggestions int            `json:"total_suggestions"`
	IssueTypes       map[string]int `json:"issue_types"`
	IssueSeverities  map[string]int `json:"issue_severities"`
	SuggestionTypes  map[string]int `json:"suggestion_types"`
}

// Summarize computes per-type and per-severity counts for a combined report.
func Summarize(c *Combined) *Summary {
	s := &Summary{
		TotalIssues:      len(c.Issues),
		TotalSuggestions: len(c.Suggestions),
		IssueTypes:       make(map[string]int),
		IssueSeverities:  make(map[string]int),
		SuggestionTypes:  make(map[string]int),
	}
	for _, issue := range c.Issues {
		s.IssueTypes[issue.Type]++
		s.IssueSeverities[issue.Severity.String()]++
	}
	for _, sug := range c.Suggestions {
		s.SuggestionTypes[sug.Type]++
	}
	return s
}
