package s1_mentions

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// fold lower-cases text with Unicode case folding.
// A Caser is stateful, so one is created per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// sortTokens folds, splits on whitespace, sorts and rejoins with single spaces
func sortTokens(s string) string {
	tokens := strings.Fields(fold(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TokenSortRatio scores two names on 0-100 regardless of word order.
// The score is the normalized Indel similarity 200*LCS/(len(a)+len(b))
// over the sorted token strings, counted in runes.
func TokenSortRatio(a, b string) float64 {
	return indelRatio([]rune(sortTokens(a)), []rune(sortTokens(b)))
}

func indelRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(a, b)) / float64(total)
}

// lcsLength is the longest common subsequence length, two-row DP
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
