package analyze

import "context"

// RepoContent is the narrow capability the auditor needs from a code host.
// FileContent returns ok=false when the path does not exist; a missing file is
// a normal negative result, not an error.
type RepoContent interface {
	FileContent(ctx context.Context, path string) (string, bool)
	DirExists(ctx context.Context, path string) bool
}

// Structural scoring policy: each missing artifact deducts a fixed amount from
// a starting score of 100.
const (
	deductionReadme       = 10
	deductionLicense      = 5
	deductionDependencies = 15
	deductionTests        = 10
)

var licenseFiles = []string{"LICENSE", "LICENSE.md", "LICENSE.txt"}
var dependencyFiles = []string{"requirements.txt", "pyproject.toml", "setup.py", "package.json"}
var testDirs = []string{"tests", "test", "spec", "__tests__"}

// AuditStructure checks the repository for conventional artifacts and converts
// absence into scored issues. Deductions apply independently; the score is
// floored at 0 so it never displays negative.
func AuditStructure(ctx context.Context, repo RepoContent) *StructureResult {
	result := &StructureResult{Score: 100}

	if _, ok := repo.FileContent(ctx, "README.md"); !ok {
		result.Issues = append(result.Issues, Issue{
			Type:        "documentation",
			Severity:    SeverityMedium,
			Title:       "Missing README.md",
			Description: "Repository lacks a README file which is essential for project documentation.",
		})
		result.Score -= deductionReadme
	}

	if !anyFileExists(ctx, repo, licenseFiles) {
		result.Issues = append(result.Issues, Issue{
			Type:        "legal",
			Severity:    SeverityMedium,
			Title:       "Missing License",
			Description: "Repository does not have a license file, which may limit its usability.",
		})
		result.Score -= deductionLicense
	}

	if !anyFileExists(ctx, repo, dependencyFiles) {
		result.Issues = append(result.Issues, Issue{
			Type:        "setup",
			Severity:    SeverityHigh,
			Title:       "Missing Dependencies File",
			Description: "No dependency management file found, making it difficult to set up the project.",
		})
		result.Score -= deductionDependencies
	}

	if !anyDirExists(ctx, repo, testDirs) {
		result.Issues = append(result.Issues, Issue{
			Type:        "testing",
			Severity:    SeverityMedium,
			Title:       "Missing Tests",
			Description: "No test directory found, which may indicate lack of testing.",
		})
		result.Score -= deductionTests
	}

	// no deduction: advisory only
	if !repo.DirExists(ctx, ".github/workflows") {
		result.Suggestions = append(result.Suggestions, Suggestion{
			Type:        "ci_cd",
			Title:       "Consider Adding CI/CD",
			Description: "Adding GitHub Actions or other CI/CD would improve development workflow.",
		})
	}

	if result.Score < 0 {
		result.Score = 0
	}

	return result
}

func anyFileExists(ctx context.Context, repo RepoContent, paths []string) bool {
	for _, p := range paths {
		if _, ok := repo.FileContent(ctx, p); ok {
			return true
		}
	}
	return false
}

func anyDirExists(ctx context.Context, repo RepoContent, paths []string) bool {
	for _, p := range paths {
		if repo.DirExists(ctx, p) {
			return true
		}
	}
	return false
}
