package labs

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// number is the capture every pattern ends with.
const number = `(\d+(?:\.\d+)?)`

type rule struct {
	key      Key
	patterns []*regexp.Regexp
}

func mustRule(key Key, exprs ...string) rule {
	r := rule{key: key}
	for _, expr := range exprs {
		r.patterns = append(r.patterns, regexp.MustCompile(expr+number))
	}
	return r
}

// Patterns run against lower-cased lines. Labels that contain digits
// (free t3, igf-1, vitamin d3, estradiol (e2)) consume them so the capture
// lands on the reading.
var rules = []rule{
	mustRule(Estradiol, `estradiol(?:[\s,]*\(e2\))?.*?`),
	mustRule(Progesterone, `progesterone(?:[\s,]*\(p4\))?.*?`),
	mustRule(DHEA, `dhea(?:[\s-]?s(?:ulfate)?)?.*?`),
	mustRule(FreeT3,
		`free[\s-]?(?:t3|triiodothyronine).*?`,
		`\bt3[\s-]+free.*?`,
	),
	mustRule(TSH, `\btsh\b.*?`),
	mustRule(FreeT4,
		`free[\s-]?(?:t4|thyroxine).*?`,
		`\bt4[\s-]+free.*?`,
	),
	mustRule(TotalTestosterone,
		`(?:total\s+testosterone|testosterone[\s:-]*\(?\s*total\)?).*?`,
		`^\s*testosterone[^a-z\d]*`,
	),
	mustRule(FreeTestosterone,
		`free\s+testosterone.*?`,
		`testosterone[\s:-]*\(?\s*free\)?.*?`,
	),
	mustRule(PSA, `\bpsa\b.*?`),
	mustRule(VitaminD, `vitamin[\s-]?d[23]?(?:[\s:-]*(?:25[\s-]*(?:\(oh\)|oh|hydroxy)(?:[\s-]*d)?|total))*.*?`),
	mustRule(IGF1,
		`igf[\s-]?(?:1|i)\b.*?`,
		`insulin[\s-]like growth factor(?:[\s-]*(?:1|i)\b)?.*?`,
	),
}

// Parse scans text for hormone readings. Each key takes the first reading
// found in document order; later mentions are ignored. Readings written as an
// inequality ("<0.5") or a range ("10-15") are not recorded.
func Parse(text string) ValueMap {
	values := make(ValueMap)

	for _, line := range SplitLines(strings.ToLower(text)) {
		for _, r := range rules {
			if _, seen := values[r.key]; seen {
				continue
			}
			if v, ok := r.match(line); ok {
				values[r.key] = v
			}
		}
	}

	return values
}

func (r rule) match(line string) (float64, bool) {
	for _, re := range r.patterns {
		loc := re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		start, end := loc[2], loc[3]
		if qualified(line, start, end) {
			return 0, false
		}
		v, err := strconv.ParseFloat(line[start:end], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

// qualified reports whether the number at line[start:end] is part of an
// inequality or a range rather than a plain reading.
func qualified(line string, start, end int) bool {
	before := strings.TrimRightFunc(line[:start], unicode.IsSpace)
	if strings.HasSuffix(before, "<") || strings.HasSuffix(before, ">") ||
		strings.HasSuffix(before, "≤") || strings.HasSuffix(before, "≥") {
		return true
	}

	after := strings.TrimLeftFunc(line[end:], unicode.IsSpace)
	for _, dash := range []string{"-", "–"} {
		if rest, ok := strings.CutPrefix(after, dash); ok {
			rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
			if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
				return true
			}
		}
	}
	return false
}

// SplitLines breaks text into candidate fields on newlines, commas and
// periods. A period between two digits is a decimal point and does not split.
func SplitLines(text string) []string {
	var lines []string
	var b strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		split := false
		switch r {
		case '\n', ',':
			split = true
		case '.':
			split = !(i > 0 && i+1 < len(runes) && isDigit(runes[i-1]) && isDigit(runes[i+1]))
		}
		if split {
			lines = append(lines, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(r)
	}
	lines = append(lines, b.String())

	return lines
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

var labKeywords = []string{
	"estradiol", "progesterone", "dhea", "lab", "testosterone", "hormone",
	"pg/ml", "ng/ml", "tsh", "t3", "t4", "triiodothyronine", "thyroxine",
	"psa", "vitamin d", "vitamin-d", "igf", "insulin-like growth factor",
}

// IsLabRelated reports whether text mentions lab results at all.
func IsLabRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range labKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
