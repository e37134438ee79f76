package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/repotriage/internal/ai"
)

// aiProbeSample is a deliberately flawed snippet for credential smoke-testing.
const aiProbeSample = `import os

password = "hunter2"

def run(cmd):
    os.system(cmd)  # TODO: sanitize

while True:
    run(input())
`

func newAITestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ai-test",
		Short: "Smoke-test the configured AI providers",
		Long: `Send a small embedded code sample through the AI provider chain and
print the resulting scores. Useful for verifying API keys without running
a full analysis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			defer d.close()

			if !d.reviewer.Available() {
				return fmt.Errorf("no AI provider configured (set ai.openai_api_key or ai.anthropic_api_key)")
			}
			fmt.Printf("providers: %v\n", d.reviewer.ProviderNames())

			result := d.reviewer.Analyze(cmd.Context(), "repotriage/ai-test",
				[]ai.Sample{ai.NewSample("probe.py", "python", aiProbeSample)})

			if result.Fallback {
				return fmt.Errorf("every provider failed; run with --verbose for details")
			}

			fmt.Printf("provider used:    %s\n", result.Provider)
			fmt.Printf("code quality:     %d/100\n", result.CodeQualityScore)
			fmt.Printf("security:         %d/100\n", result.SecurityScore)
			fmt.Printf("maintainability:  %d/100\n", result.MaintainabilityScore)
			fmt.Printf("issues found:     %d\n", len(result.Issues))
			fmt.Printf("suggestions:      %d\n", len(result.Suggestions))

			return nil
		},
	}
}
