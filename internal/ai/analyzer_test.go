package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/repotriage/internal/analyze"
)

type stubProvider struct {
	name     string
	response string
	err      error
	calls    int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.response, s.err
}

const goodResponse = `{
	"issues": [
		{"type": "security", "severity": "high", "title": "hardcoded secret", "description": "d", "file": "app.py", "line": 12}
	],
	"suggestions": [
		{"type": "refactoring", "title": "split module", "description": "d"}
	],
	"code_quality_score": 82,
	"security_score": 55,
	"maintainability_score": 74,
	"detailed_analysis": "solid overall"
}`

func TestAnalyze_NoProviders_Fallback(t *testing.T) {
	a := NewAnalyzer()
	if a.Available() {
		t.Error("analyzer with no providers should not be available")
	}

	result := a.Analyze(context.Background(), "owner/repo", nil)

	if !result.Fallback {
		t.Error("expected fallback result")
	}
	if result.CodeQualityScore != 70 || result.SecurityScore != 70 || result.MaintainabilityScore != 70 {
		t.Errorf("fallback scores = %d/%d/%d, want 70/70/70",
			result.CodeQualityScore, result.SecurityScore, result.MaintainabilityScore)
	}
	if len(result.Issues) != 1 || result.Issues[0].Title != "AI Analysis Unavailable" {
		t.Errorf("fallback issues = %+v", result.Issues)
	}
	if len(result.Suggestions) != 1 || result.Suggestions[0].Title != "Enable AI Analysis" {
		t.Errorf("fallback suggestions = %+v", result.Suggestions)
	}
}

func TestAnalyze_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "first", response: goodResponse}
	second := &stubProvider{name: "second", response: goodResponse}
	a := NewAnalyzer(first, second)

	result := a.Analyze(context.Background(), "owner/repo", nil)

	if result.Provider != "first" {
		t.Errorf("provider = %q, want first", result.Provider)
	}
	if second.calls != 0 {
		t.Errorf("second provider called %d times, want 0", second.calls)
	}
	if result.CodeQualityScore != 82 {
		t.Errorf("code quality score = %d, want 82", result.CodeQualityScore)
	}
	if len(result.Issues) != 1 || result.Issues[0].Severity != analyze.SeverityHigh {
		t.Errorf("issues = %+v", result.Issues)
	}
}

func TestAnalyze_FallsThroughOnError(t *testing.T) {
	first := &stubProvider{name: "first", err: fmt.Errorf("rate limited")}
	second := &stubProvider{name: "second", response: goodResponse}
	a := NewAnalyzer(first, second)

	result := a.Analyze(context.Background(), "owner/repo", nil)

	if result.Provider != "second" {
		t.Errorf("provider = %q, want second", result.Provider)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
}

func TestAnalyze_FallsThroughOnGarbage(t *testing.T) {
	first := &stubProvider{name: "first", response: "I cannot analyze this code."}
	second := &stubProvider{name: "second", response: goodResponse}
	a := NewAnalyzer(first, second)

	result := a.Analyze(context.Background(), "owner/repo", nil)

	if result.Provider != "second" {
		t.Errorf("provider = %q, want second", result.Provider)
	}
}

func TestAnalyze_AllFail_Fallback(t *testing.T) {
	first := &stubProvider{name: "first", err: fmt.Errorf("down")}
	second := &stubProvider{name: "second", response: "not json"}
	a := NewAnalyzer(first, second)

	result := a.Analyze(context.Background(), "owner/repo", nil)

	if !result.Fallback {
		t.Error("expected fallback result when every provider fails")
	}
}

func TestNewAnalyzerFromKeys(t *testing.T) {
	if a := NewAnalyzerFromKeys("", ""); a.Available() {
		t.Error("analyzer without keys should not be available")
	}

	a := NewAnalyzerFromKeys("sk-openai", "sk-ant")
	names := a.ProviderNames()
	if len(names) != 2 || names[0] != "openai" || names[1] != "anthropic" {
		t.Errorf("provider order = %v, want [openai anthropic]", names)
	}

	a = NewAnalyzerFromKeys("", "sk-ant")
	names = a.ProviderNames()
	if len(names) != 1 || names[0] != "anthropic" {
		t.Errorf("providers = %v, want [anthropic]", names)
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"bare object", goodResponse, false},
		{"fenced", "```json\n" + goodResponse + "\n```", false},
		{"prose wrapped", "Here is my analysis:\n" + goodResponse + "\nHope that helps!", false},
		{"no json", "sorry, no can do", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if result.SecurityScore != 55 {
				t.Errorf("security score = %d, want 55", result.SecurityScore)
			}
		})
	}
}

func TestParseResult_ToleratesLooseTyping(t *testing.T) {
	raw := `{
		"issues": [
			{"type": "x", "severity": "sorta bad", "title": "t", "description": "d", "line": "42"}
		],
		"code_quality_score": 150,
		"security_score": -5,
		"maintainability_score": 80
	}`

	result, err := parseResult(raw)
	if err != nil {
		t.Fatal(err)
	}
	if result.Issues[0].Severity != analyze.SeverityMedium {
		t.Errorf("unknown severity = %v, want medium default", result.Issues[0].Severity)
	}
	if result.Issues[0].Line != 42 {
		t.Errorf("string line = %d, want 42", result.Issues[0].Line)
	}
	if result.CodeQualityScore != 100 || result.SecurityScore != 0 {
		t.Errorf("scores not clamped: %d, %d", result.CodeQualityScore, result.SecurityScore)
	}
}

func TestNewSample_Truncates(t *testing.T) {
	s := NewSample("a.py", "python", strings.Repeat("x", 5000))
	if len(s.Code) != maxSampleChars {
		t.Errorf("code length = %d, want %d", len(s.Code), maxSampleChars)
	}
}

func TestBuildPrompt_CapsSamples(t *testing.T) {
	var samples []Sample
	for i := 0; i < 15; i++ {
		samples = append(samples, Sample{Path: fmt.Sprintf("f%d.py", i), Language: "python", Code: "pass"})
	}

	a := NewAnalyzer(&stubProvider{name: "s", response: goodResponse})
	a.Analyze(context.Background(), "r", samples)

	prompt := buildPrompt("r", samples[:maxSamples])
	if strings.Contains(prompt, "f10.py") {
		t.Error("prompt should not include samples past the cap")
	}
	if !strings.Contains(prompt, "f9.py") {
		t.Error("prompt missing last retained sample")
	}
}

func TestOpenAIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4" {
			t.Errorf("model = %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "reply"}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("sk-test", srv.URL)
	got, err := p.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "reply" {
		t.Errorf("completion = %q, want reply", got)
	}
}

func TestAnthropicProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant" {
			t.Errorf("api key header = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "reply"}},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProviderWithBaseURL("sk-ant", srv.URL)
	got, err := p.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "reply" {
		t.Errorf("completion = %q, want reply", got)
	}
}

func TestProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("sk-test", srv.URL)
	if _, err := p.Complete(context.Background(), "prompt"); err == nil {
		t.Error("expected error on HTTP 429")
	}
}
