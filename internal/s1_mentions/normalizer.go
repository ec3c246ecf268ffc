package s1_mentions

import (
	"regexp"
	"strings"
)

// DefaultSuffixes are corporate designators stripped from organization names
var DefaultSuffixes = []string{"Inc", "Incorporated", "Corp", "Corporation", "Ltd", "LLC"}

// Normalizer strips corporate suffixes and periods from organization names
// ⭐ SSOT: 기업명 정규화는 여기서만
type Normalizer struct {
	suffixes *regexp.Regexp
}

// NewNormalizer builds a normalizer for DefaultSuffixes plus extra tokens
// (e.g. "Motors"). Matching is whole-word and case-insensitive.
func NewNormalizer(extra ...string) *Normalizer {
	words := make([]string, 0, len(DefaultSuffixes)+len(extra))
	for _, w := range append(append([]string{}, DefaultSuffixes...), extra...) {
		if w = strings.TrimSpace(strings.ReplaceAll(w, ".", "")); w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	return &Normalizer{
		suffixes: regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`),
	}
}

// Normalize returns the cleaned name. Periods go first so that a suffix
// split by a period ("Co.rp") cannot survive into a second pass.
func (n *Normalizer) Normalize(name string) string {
	name = strings.ReplaceAll(name, ".", "")
	name = n.suffixes.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}
