package analyze

import "regexp"

// Rule categories. Every category rule that matches produces at most one issue
// per line (first match wins within a category).
const (
	CategorySecurity    = "security"
	CategoryCodeQuality = "code_quality"
	CategoryPerformance = "performance"
)

// Rule is a single pattern in the catalog. Pure data, no behavior.
type Rule struct {
	Category string
	Pattern  *regexp.Regexp
}

var securityRules = []Rule{
	{CategorySecurity, regexp.MustCompile(`(?i)password\s*=\s*['"][^'"]+['"]`)},
	{CategorySecurity, regexp.MustCompile(`(?i)api_key\s*=\s*['"][^'"]+['"]`)},
	{CategorySecurity, regexp.MustCompile(`(?i)secret\s*=\s*['"][^'"]+['"]`)},
	{CategorySecurity, regexp.MustCompile(`(?i)eval\s*\(`)},
	{CategorySecurity, regexp.MustCompile(`(?i)exec\s*\(`)},
	{CategorySecurity, regexp.MustCompile(`(?i)os\.system\s*\(`)},
	{CategorySecurity, regexp.MustCompile(`(?i)subprocess\.call\s*\(`)},
}

var codeQualityRules = []Rule{
	{CategoryCodeQuality, regexp.MustCompile(`(?i)TODO:`)},
	{CategoryCodeQuality, regexp.MustCompile(`(?i)FIXME:`)},
	{CategoryCodeQuality, regexp.MustCompile(`(?i)XXX:`)},
	{CategoryCodeQuality, regexp.MustCompile(`(?i)HACK:`)},
	{CategoryCodeQuality, regexp.MustCompile(`(?i)print\s*\(`)},
	{CategoryCodeQuality, regexp.MustCompile(`(?i)debugger;`)},
	{CategoryCodeQuality, regexp.MustCompile(`(?i)console\.log\s*\(`)},
}

var performanceRules = []Rule{
	{CategoryPerformance, regexp.MustCompile(`(?i)while\s+True:`)},
	{CategoryPerformance, regexp.MustCompile(`(?i)while\s*\(\s*true\s*\)`)},
	{CategoryPerformance, regexp.MustCompile(`(?i)import\s+\*`)},
}

// loopHeaderRe matches a loop header line. Used by the scanner's nested-loop
// check: a loop header immediately followed by a more-indented loop header.
var loopHeaderRe = regexp.MustCompile(`(?i)^\s*(for\s+.*|while\s+.*)[:{]\s*$|^\s*for\s*\(`)
