package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FallbackConfidence is assumed when a reply carries no parseable header.
// The header is a prompt mandate, not a protocol guarantee.
const FallbackConfidence = 85

var headerPattern = regexp.MustCompile(
	`^\s*\[CONFIDENCE:\s*(\d{1,3})%\s*\|\s*COMPLETENESS:\s*(\d{1,3})%\s*\|\s*ISSUES:\s*([^\]]*)\]`)

// Report is the self-assessment the model prefixes to every reply.
type Report struct {
	Confidence   int
	Completeness int
	Issues       []string
}

func (r Report) String() string {
	issues := "None"
	if len(r.Issues) > 0 {
		issues = strings.Join(r.Issues, ", ")
	}
	return fmt.Sprintf("[CONFIDENCE: %d%% | COMPLETENESS: %d%% | ISSUES: %s]",
		r.Confidence, r.Completeness, issues)
}

// ParseReport extracts the self-assessment header from reply content. When
// the header is missing or malformed it returns the fallback report and
// ok=false; turns never fail on a formatting lapse.
func ParseReport(content string) (Report, bool) {
	m := headerPattern.FindStringSubmatch(content)
	if m == nil {
		return Report{Confidence: FallbackConfidence, Completeness: FallbackConfidence}, false
	}

	confidence, _ := strconv.Atoi(m[1])
	completeness, _ := strconv.Atoi(m[2])
	if confidence > 100 || completeness > 100 {
		return Report{Confidence: FallbackConfidence, Completeness: FallbackConfidence}, false
	}

	var issues []string
	raw := strings.TrimSpace(m[3])
	if raw != "" && !strings.EqualFold(raw, "none") {
		for _, issue := range strings.Split(raw, ",") {
			if issue = strings.TrimSpace(issue); issue != "" {
				issues = append(issues, issue)
			}
		}
	}
	return Report{Confidence: confidence, Completeness: completeness, Issues: issues}, true
}

// StripHeader removes the self-assessment header from reply content, leaving
// the user-facing text.
func StripHeader(content string) string {
	loc := headerPattern.FindStringIndex(content)
	if loc == nil {
		return content
	}
	return strings.TrimLeft(content[loc[1]:], " \t\r\n")
}
