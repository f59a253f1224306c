package council

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-conclave/internal/domain"
)

// rankingHeader is the exact footer marker evaluators are told to
// emit before their ranked list.
const rankingHeader = "FINAL RANKING:"

// maxHeaderDistance is how many edits a header line may be from the
// canonical marker and still be accepted ("Final ranking -",
// "FINAL RANKINGS:" and similar near-misses).
const maxHeaderDistance = 3

// Parse confidence levels, from a well-formed numbered list down to a
// bare label scan over the whole verdict.
const (
	confidenceNumbered = 1.0
	confidenceSection  = 0.6
	confidenceScan     = 0.3
)

var (
	numberedLabelPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	labelPattern         = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRanking extracts the ranked label list from an evaluator's
// verdict text. It prefers the numbered list after the last ranking
// header, degrading to a label scan of the header section, then of
// the whole text. Labels are deduplicated keeping first occurrence,
// and labels outside the assignment are dropped.
func ParseRanking(text string, labels domain.LabelMap) domain.ParseResult {
	section, found := rankingSection(text)
	if found {
		if matches := numberedLabelPattern.FindAllString(section, -1); len(matches) > 0 {
			ordered := make([]string, 0, len(matches))
			for _, m := range matches {
				ordered = append(ordered, labelPattern.FindString(m))
			}
			if valid := filterLabels(ordered, labels); len(valid) > 0 {
				return domain.ParseResult{Labels: valid, Confidence: confidenceNumbered}
			}
		}
		if valid := filterLabels(labelPattern.FindAllString(section, -1), labels); len(valid) > 0 {
			return domain.ParseResult{Labels: valid, Confidence: confidenceSection}
		}
	}

	if valid := filterLabels(labelPattern.FindAllString(text, -1), labels); len(valid) > 0 {
		return domain.ParseResult{Labels: valid, Confidence: confidenceScan}
	}
	return domain.ParseResult{}
}

// rankingSection returns the text after the last ranking header. The
// last occurrence wins because evaluators often quote the required
// format earlier in their reasoning.
func rankingSection(text string) (string, bool) {
	if i := strings.LastIndex(text, rankingHeader); i >= 0 {
		return text[i+len(rankingHeader):], true
	}

	// Tolerate slightly malformed headers on their own line.
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.ToUpper(strings.TrimSpace(lines[i]))
		if line == "" || len(line) > len(rankingHeader)+maxHeaderDistance {
			continue
		}
		if levenshtein.ComputeDistance(line, rankingHeader) <= maxHeaderDistance {
			return strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", false
}

// filterLabels deduplicates by first occurrence and drops labels that
// were never assigned.
func filterLabels(found []string, labels domain.LabelMap) []string {
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, label := range found {
		if _, dup := seen[label]; dup {
			continue
		}
		if _, assigned := labels.Model(label); !assigned {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
