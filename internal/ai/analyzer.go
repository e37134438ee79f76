package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/repotriage/internal/analyze"
)

const (
	maxSamples        = 10
	maxSampleChars    = 2000
	promptSampleChars = 1000
	neutralScore      = 70
)

// Sample is a code excerpt submitted for model review.
type Sample struct {
	Path     string
	Language string
	Code     string
}

// NewSample builds a sample, truncating the code to the retained window.
func NewSample(path, language, code string) Sample {
	if len(code) > maxSampleChars {
		code = code[:maxSampleChars]
	}
	return Sample{Path: path, Language: language, Code: code}
}

// Result is the model's structured review of a repository.
type Result struct {
	Issues               []analyze.Issue      `json:"issues"`
	Suggestions          []analyze.Suggestion `json:"suggestions"`
	CodeQualityScore     int                  `json:"code_quality_score"`
	SecurityScore        int                  `json:"security_score"`
	MaintainabilityScore int                  `json:"maintainability_score"`
	DetailedAnalysis     string               `json:"detailed_analysis"`
	Provider             string               `json:"provider,omitempty"`
	Fallback             bool                 `json:"fallback,omitempty"`
}

// Analyzer runs a provider chain: each provider is tried in order and the
// first successful, parseable completion wins. With no providers configured
// or all of them failing, FallbackResult is returned.
type Analyzer struct {
	providers []Provider
}

// NewAnalyzer builds an analyzer over the given providers, tried in order.
func NewAnalyzer(providers ...Provider) *Analyzer {
	a := &Analyzer{}
	for _, p := range providers {
		if p != nil {
			a.providers = append(a.providers, p)
		}
	}
	return a
}

// NewAnalyzerFromKeys builds an analyzer from API keys, skipping providers
// whose key is empty. OpenAI is tried before Anthropic.
func NewAnalyzerFromKeys(openaiKey, anthropicKey string) *Analyzer {
	a := &Analyzer{}
	if p := NewOpenAIProvider(openaiKey); p != nil {
		a.providers = append(a.providers, p)
	}
	if p := NewAnthropicProvider(anthropicKey); p != nil {
		a.providers = append(a.providers, p)
	}
	return a
}

// Available reports whether at least one provider is configured.
func (a *Analyzer) Available() bool {
	return len(a.providers) > 0
}

// ProviderNames lists the configured providers in fallback order.
func (a *Analyzer) ProviderNames() []string {
	names := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		names = append(names, p.Name())
	}
	return names
}

// Analyze reviews the sampled code. It never returns an error: when every
// provider fails, the neutral fallback result is returned instead.
func (a *Analyzer) Analyze(ctx context.Context, repoName string, samples []Sample) *Result {
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	prompt := buildPrompt(repoName, samples)

	for _, p := range a.providers {
		raw, err := p.Complete(ctx, prompt)
		if err != nil {
			slog.Warn("model provider failed, trying next", "provider", p.Name(), "error", err)
			continue
		}
		result, err := parseResult(raw)
		if err != nil {
			slog.Warn("model response unparseable, trying next", "provider", p.Name(), "error", err)
			continue
		}
		result.Provider = p.Name()
		return result
	}

	return FallbackResult()
}

// FallbackResult is the fixed result used when no model review is available.
// All scores sit at the neutral midpoint so a combined score is not skewed.
func FallbackResult() *Result {
	return &Result{
		Issues: []analyze.Issue{{
			Type:        "ai_unavailable",
			Severity:    analyze.SeverityMedium,
			Title:       "AI Analysis Unavailable",
			Description: "AI-powered analysis could not be performed. Configure an OpenAI or Anthropic API key for deeper insights.",
		}},
		Suggestions: []analyze.Suggestion{{
			Type:        "improvement",
			Title:       "Enable AI Analysis",
			Description: "Set up an AI provider API key to get AI-powered code review with detailed recommendations.",
		}},
		CodeQualityScore:     neutralScore,
		SecurityScore:        neutralScore,
		MaintainabilityScore: neutralScore,
		DetailedAnalysis:     "AI analysis unavailable - using neutral baseline scores.",
		Fallback:             true,
	}
}

func buildPrompt(repoName string, samples []Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following code from the repository %q and provide a structured review.\n\n", repoName)

	for _, s := range samples {
		code := s.Code
		if len(code) > promptSampleChars {
			code = code[:promptSampleChars]
		}
		fmt.Fprintf(&b, "File: %s\n```%s\n%s\n```\n\n", s.Path, s.Language, code)
	}

	b.WriteString(`Respond with ONLY a JSON object in this exact format:
{
  "issues": [
    {"type": "security|code_quality|performance|architecture", "severity": "low|medium|high|critical", "title": "short title", "description": "detailed description", "file": "file path", "line": 0}
  ],
  "suggestions": [
    {"type": "improvement|refactoring|optimization", "title": "short title", "description": "detailed description"}
  ],
  "code_quality_score": 0,
  "security_score": 0,
  "maintainability_score": 0,
  "detailed_analysis": "overall assessment"
}
Scores are integers from 0 to 100.`)

	return b.String()
}

// wireIssue tolerates the loose typing models produce: severity as a string
// and line as either a number or a string.
type wireIssue struct {
	Type        string      `json:"type"`
	Severity    string      `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	File        string      `json:"file"`
	Line        flexibleInt `json:"line"`
}

type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		*f = 0
		return nil
	}
	*f = flexibleInt(n)
	return nil
}

// parseResult extracts the JSON object span from a completion and decodes it.
// Models wrap JSON in prose or code fences often enough that the span between
// the first '{' and the last '}' is taken rather than the whole body.
func parseResult(raw string) (*Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var wire struct {
		Issues               []wireIssue          `json:"issues"`
		Suggestions          []analyze.Suggestion `json:"suggestions"`
		CodeQualityScore     int                  `json:"code_quality_score"`
		SecurityScore        int                  `json:"security_score"`
		MaintainabilityScore int                  `json:"maintainability_score"`
		DetailedAnalysis     string               `json:"detailed_analysis"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := &Result{
		Suggestions:          wire.Suggestions,
		CodeQualityScore:     clampScore(wire.CodeQualityScore),
		SecurityScore:        clampScore(wire.SecurityScore),
		MaintainabilityScore: clampScore(wire.MaintainabilityScore),
		DetailedAnalysis:     wire.DetailedAnalysis,
	}
	for _, wi := range wire.Issues {
		sev := analyze.ParseSeverity(wi.Severity)
		if sev == 0 {
			sev = analyze.SeverityMedium
		}
		result.Issues = append(result.Issues, analyze.Issue{
			Type:        wi.Type,
			Severity:    sev,
			Title:       wi.Title,
			Description: wi.Description,
			File:        wi.File,
			Line:        int(wi.Line),
		})
	}
	return result, nil
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
