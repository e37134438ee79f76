package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/repotriage/internal/analyze"
)

// fixtureContent drives the offline self-check: each pattern category should
// fire at least once.
const fixtureContent = `import os

password = "secret123"
api_key = "sk-12345"

def risky(data):
    eval(data)  # FIXME: remove

# TODO: refactor this
print("debug")

while True:
    pass
`

// fixtureRepo is an in-memory repository with every structural artifact
// missing except the README.
type fixtureRepo struct{}

func (fixtureRepo) FileContent(_ context.Context, path string) (string, bool) {
	if path == "README.md" {
		return "# fixture", true
	}
	return "", false
}

func (fixtureRepo) DirExists(context.Context, string) bool { return false }

func newSelfTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run an offline self-check of the analysis engine",
		Long: "Run the pattern scanner and structure auditor against embedded " +
			"fixtures. No network access or credentials needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			failures := 0
			check := func(name string, ok bool) {
				status := "ok"
				if !ok {
					status = "FAIL"
					failures++
				}
				fmt.Printf("%-40s %s\n", name, status)
			}

			result := analyze.ScanFile(fixtureContent, "fixture.py")
			types := map[string]int{}
			for _, issue := range result.Issues {
				types[issue.Type]++
			}
			check("scanner: security issues found", types["security"] >= 2)
			check("scanner: code quality issues found", types["code_quality"] >= 1)
			check("scanner: performance issues found", types["performance"] >= 1)
			check("scanner: python suggestions", len(result.Suggestions) >= 1)

			structural := analyze.AuditStructure(cmd.Context(), fixtureRepo{})
			check("auditor: deductions applied", structural.Score == 70)
			check("auditor: missing artifacts reported", len(structural.Issues) == 3)
			check("auditor: ci suggestion present", len(structural.Suggestions) == 1)

			combined := analyze.Combine(structural, []*analyze.FileResult{result}, nil)
			summary := analyze.Summarize(combined)
			check("aggregator: counts consistent",
				summary.TotalIssues == len(structural.Issues)+len(result.Issues))

			if failures > 0 {
				return fmt.Errorf("%d self-check(s) failed", failures)
			}
			fmt.Println("all self-checks passed")
			return nil
		},
	}
}
