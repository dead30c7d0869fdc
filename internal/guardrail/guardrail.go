// Package guardrail checks generated replies against the clinical formatting
// and safety rules in the system prompt. Findings are reported, never enforced.
package guardrail

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	RuleFreeTestosteroneHigh = "free_testosterone_high"
	RuleStartAndReduce       = "start_and_reduce"
	RuleNormalRange          = "normal_range"
	RuleInterpretation       = "interpretation"
	RuleDuplicateHeading     = "duplicate_heading"

	freeTestosteroneLimit = 200
)

type Finding struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

func (f Finding) String() string {
	return f.Rule + ": " + f.Detail
}

var (
	headingRe          = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	freeTestosteroneRe = regexp.MustCompile(`(?i)free\s+testosterone[^0-9\n]*?(\d+(?:\.\d+)?)`)
	reductionRe        = regexp.MustCompile(`(?i)\b(reduc\w*|decreas\w*|lower\w*|taper\w*)\b`)
	startRe            = regexp.MustCompile(`(?i)\b(start|begin|initiate)\w*\b`)
	normalRangeRe      = regexp.MustCompile(`(?i)\bnormal\s+range\b`)
	interpretationRe   = regexp.MustCompile(`(?i)\binterpretation\b`)
)

// Headings that may legitimately repeat once per hormone.
var repeatableHeadings = map[string]bool{
	"clinical plan": true,
}

// Lint runs every rule over reply and returns the findings in rule order.
func Lint(reply string) []Finding {
	var findings []Finding

	findings = append(findings, checkFreeTestosterone(reply)...)
	findings = append(findings, checkStartAndReduce(reply)...)

	if normalRangeRe.MatchString(reply) {
		findings = append(findings, Finding{Rule: RuleNormalRange, Detail: `reply uses the phrase "normal range"`})
	}
	if interpretationRe.MatchString(reply) {
		findings = append(findings, Finding{Rule: RuleInterpretation, Detail: `reply uses the word "Interpretation"`})
	}

	findings = append(findings, checkDuplicateHeadings(reply)...)

	return findings
}

// Strings flattens findings for logging and JSON responses.
func Strings(findings []Finding) []string {
	if len(findings) == 0 {
		return nil
	}
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.String()
	}
	return out
}

func checkFreeTestosterone(reply string) []Finding {
	for _, m := range freeTestosteroneRe.FindAllStringSubmatch(reply, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= freeTestosteroneLimit {
			continue
		}
		if reductionRe.MatchString(reply) {
			return nil
		}
		return []Finding{{
			Rule:   RuleFreeTestosteroneHigh,
			Detail: fmt.Sprintf("free testosterone %s pg/mL is above %d without a dose reduction", m[1], freeTestosteroneLimit),
		}}
	}
	return nil
}

func checkStartAndReduce(reply string) []Finding {
	var findings []Finding
	for _, s := range sections(reply) {
		if s.heading == "" || repeatableHeadings[normalizeHeading(s.heading)] {
			continue
		}
		if startRe.MatchString(s.body) && reductionRe.MatchString(s.body) {
			findings = append(findings, Finding{
				Rule:   RuleStartAndReduce,
				Detail: fmt.Sprintf("section %q recommends both starting and reducing", s.heading),
			})
		}
	}
	return findings
}

func checkDuplicateHeadings(reply string) []Finding {
	var findings []Finding
	seen := make(map[string]int)

	for _, m := range headingRe.FindAllStringSubmatch(reply, -1) {
		key := normalizeHeading(m[1])
		if key == "" || repeatableHeadings[key] {
			continue
		}
		seen[key]++
		if seen[key] == 2 {
			findings = append(findings, Finding{
				Rule:   RuleDuplicateHeading,
				Detail: fmt.Sprintf("heading %q appears more than once", strings.TrimSpace(m[1])),
			})
		}
	}
	return findings
}

type section struct {
	heading string
	body    string
}

// sections splits reply at bold headings. Text before the first heading is
// returned with an empty heading.
func sections(reply string) []section {
	locs := headingRe.FindAllStringSubmatchIndex(reply, -1)
	if len(locs) == 0 {
		return []section{{body: reply}}
	}

	out := []section{{body: reply[:locs[0][0]]}}
	for i, loc := range locs {
		end := len(reply)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, section{
			heading: reply[loc[2]:loc[3]],
			body:    reply[loc[1]:end],
		})
	}
	return out
}

func normalizeHeading(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(h), ":")))
}
