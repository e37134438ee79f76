package analyze

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxFileLines is the threshold above which a file gets a decomposition suggestion.
const maxFileLines = 1000

var pythonExts = map[string]bool{".py": true, ".pyx": true, ".pyi": true}
var javascriptExts = map[string]bool{".js": true, ".jsx": true, ".ts": true, ".tsx": true}

// ScanFile runs the rule catalog against one file's text, line by line.
// Filename is used only to infer a language tag and label messages.
// Empty content short-circuits to an empty result. Pure and stateless:
// identical input always produces an identical result.
func ScanFile(content, filename string) *FileResult {
	result := &FileResult{}
	if content == "" {
		return result
	}

	ext := strings.ToLower(filepath.Ext(filename))
	isPython := pythonExts[ext]
	isJavascript := javascriptExts[ext]

	lines := strings.Split(content, "\n")
	result.TotalLines = len(lines)

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		// comments and blank lines are exempt from all category checks
		if trimmed == "" || strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") {
			continue
		}

		// first match wins within each category; categories are independent
		if matchAny(securityRules, line) {
			result.Issues = append(result.Issues, Issue{
				Type:        CategorySecurity,
				Severity:    SeverityHigh,
				Title:       fmt.Sprintf("Security Issue in %s", filename),
				Description: fmt.Sprintf("Potential security vulnerability found on line %d: %s", lineNum, trimmed),
				File:        filename,
				Line:        lineNum,
				Code:        trimmed,
			})
		}

		if matchAny(codeQualityRules, line) {
			sev := SeverityMedium
			if strings.Contains(line, "TODO:") || strings.Contains(line, "FIXME:") {
				sev = SeverityLow
			}
			result.Issues = append(result.Issues, Issue{
				Type:        CategoryCodeQuality,
				Severity:    sev,
				Title:       fmt.Sprintf("Code Quality Issue in %s", filename),
				Description: fmt.Sprintf("Code quality issue found on line %d: %s", lineNum, trimmed),
				File:        filename,
				Line:        lineNum,
				Code:        trimmed,
			})
		}

		var next string
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		if matchAny(performanceRules, line) || isNestedLoop(line, next) {
			result.Issues = append(result.Issues, Issue{
				Type:        CategoryPerformance,
				Severity:    SeverityMedium,
				Title:       fmt.Sprintf("Performance Issue in %s", filename),
				Description: fmt.Sprintf("Potential performance issue found on line %d: %s", lineNum, trimmed),
				File:        filename,
				Line:        lineNum,
				Code:        trimmed,
			})
		}

		switch {
		case isPython:
			if strings.Contains(line, "import *") {
				result.Suggestions = append(result.Suggestions, Suggestion{
					Type:        "python",
					Title:       fmt.Sprintf("Consider explicit imports in %s", filename),
					Description: fmt.Sprintf("Wildcard import on line %d should be replaced with explicit imports for better code clarity.", lineNum),
					File:        filename,
					Line:        lineNum,
					Code:        trimmed,
				})
			}
			if strings.Contains(line, "print(") {
				result.Suggestions = append(result.Suggestions, Suggestion{
					Type:        "python",
					Title:       fmt.Sprintf("Consider logging instead of print in %s", filename),
					Description: fmt.Sprintf("Print statement on line %d should be replaced with proper logging for production code.", lineNum),
					File:        filename,
					Line:        lineNum,
					Code:        trimmed,
				})
			}
		case isJavascript:
			if strings.Contains(line, "console.log(") {
				result.Suggestions = append(result.Suggestions, Suggestion{
					Type:        "javascript",
					Title:       fmt.Sprintf("Consider proper logging in %s", filename),
					Description: fmt.Sprintf("Console.log statement on line %d should be replaced with proper logging for production code.", lineNum),
					File:        filename,
					Line:        lineNum,
					Code:        trimmed,
				})
			}
			// fires in addition to the generic debugger rule; both findings are kept
			if strings.Contains(line, "debugger;") {
				result.Issues = append(result.Issues, Issue{
					Type:        "javascript",
					Severity:    SeverityHigh,
					Title:       fmt.Sprintf("Debugger statement in %s", filename),
					Description: fmt.Sprintf("Debugger statement found on line %d should be removed from production code.", lineNum),
					File:        filename,
					Line:        lineNum,
					Code:        trimmed,
				})
			}
		}
	}

	if len(lines) > maxFileLines {
		result.Suggestions = append(result.Suggestions, Suggestion{
			Type:        "file_size",
			Title:       fmt.Sprintf("Large file detected: %s", filename),
			Description: fmt.Sprintf("File %s has %d lines. Consider breaking it into smaller, more manageable files.", filename, len(lines)),
			File:        filename,
		})
	}

	return result
}

func matchAny(rules []Rule, line string) bool {
	for _, r := range rules {
		if r.Pattern.MatchString(line) {
			return true
		}
	}
	return false
}

// isNestedLoop reports whether line is a loop header immediately followed by a
// more-indented loop header on the next line.
func isNestedLoop(line, next string) bool {
	if next == "" {
		return false
	}
	if !loopHeaderRe.MatchString(line) || !loopHeaderRe.MatchString(next) {
		return false
	}
	return indentWidth(next) > indentWidth(line)
}

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
